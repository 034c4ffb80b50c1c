package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/metrics"
	"github.com/wanderwise/wanderwise/model"
)

const nytimesProvider = "nytimes"

const nytimesDateLayout = "20060102"

type NYTimesNewsSearcher struct {
	baseURL      string
	apiKey       string
	lookbackDays int
	httpClient   *http.Client
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewNYTimesNewsSearcher(cfg *config.NYTimes, m *metrics.Metrics) *NYTimesNewsSearcher {
	return &NYTimesNewsSearcher{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		lookbackDays: cfg.LookbackDays,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		metrics: m,
		now:     time.Now,
	}
}

type nytimesResponse struct {
	Response struct {
		Docs []struct {
			Headline struct {
				Main string `json:"main"`
			} `json:"headline"`
			PubDate string `json:"pub_date"`
			WebURL  string `json:"web_url"`
		} `json:"docs"`
	} `json:"response"`
}

// RecentArticles searches articles about keyword published in the lookback window.
func (s *NYTimesNewsSearcher) RecentArticles(ctx context.Context, keyword string) ([]model.Article, error) {
	start := time.Now()
	articles, err := s.recentArticles(ctx, keyword)
	s.metrics.ProviderRequestDuration.WithLabelValues(nytimesProvider).Observe(time.Since(start).Seconds())
	s.metrics.ProviderRequestsTotal.WithLabelValues(nytimesProvider, providerStatus(err)).Inc()
	return articles, err
}

func (s *NYTimesNewsSearcher) recentArticles(ctx context.Context, keyword string) ([]model.Article, error) {
	today := s.now()

	params := url.Values{}
	params.Set("q", keyword)
	params.Set("begin_date", today.AddDate(0, 0, -s.lookbackDays).Format(nytimesDateLayout))
	params.Set("end_date", today.Format(nytimesDateLayout))
	params.Set("api-key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("nytimes error (status %d): %s", resp.StatusCode, string(body))
	}

	var result nytimesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]model.Article, 0, len(result.Response.Docs))
	for _, doc := range result.Response.Docs {
		articles = append(articles, model.Article{
			Title:         doc.Headline.Main,
			PublishedDate: doc.PubDate,
			URL:           doc.WebURL,
		})
	}
	return articles, nil
}
