package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/logger"
)

const systemPrompt = "You are a concise travel advisor. Answer in at most three short paragraphs of plain text."

const (
	maxRetries = 2
	baseDelay  = 2 * time.Second
)

var ErrEmptyOpinion = errors.New("model returned an empty opinion")

// OpinionService asks a chat model for a travel opinion.
type OpinionService struct {
	chatModel einomodel.BaseChatModel
	baseDelay time.Duration
}

// NewOpinionService connects to an OpenAI-compatible chat completion endpoint.
func NewOpinionService(ctx context.Context, cfg *config.LLM) (*OpinionService, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewOpinionServiceWithModel(chatModel), nil
}

func NewOpinionServiceWithModel(chatModel einomodel.BaseChatModel) *OpinionService {
	return &OpinionService{chatModel: chatModel, baseDelay: baseDelay}
}

// Opinion generates an answer to prompt, backing off when the provider rate limits.
func (s *OpinionService) Opinion(ctx context.Context, prompt string) (string, error) {
	messages := []*schema.Message{
		{
			Role:    schema.System,
			Content: systemPrompt,
		},
		{
			Role:    schema.User,
			Content: prompt,
		},
	}

	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		resp, err := s.chatModel.Generate(ctx, messages)
		if err != nil {
			lastErr = err
			if !rateLimited(err) || i == maxRetries {
				return "", fmt.Errorf("failed to generate opinion: %w", err)
			}

			delay := s.baseDelay * time.Duration(1<<i)
			l := logger.Ctx(ctx)
			l.Warn().Err(err).Dur("delay", delay).Int(logger.FieldAttempt, i+1).Msg("Opinion model rate limited, backing off")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		opinion := strings.TrimSpace(resp.Content)
		if opinion == "" {
			return "", ErrEmptyOpinion
		}
		return opinion, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func rateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

