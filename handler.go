package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wanderwise/wanderwise/logger"
	"github.com/wanderwise/wanderwise/model"
	"github.com/wanderwise/wanderwise/orchestrator"
	"github.com/wanderwise/wanderwise/planner"
	"github.com/wanderwise/wanderwise/progress"
)

const retryAfterSeconds = "5"

// statusClientClosedRequest is written when the client went away before a result was ready.
const statusClientClosedRequest = 499

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type FlightHandler struct {
	flights       orchestrator.FlightOrchestrator
	planner       planner.TripPlanner
	progress      progress.Subscriber
	dependencies  map[string]Pinger
	streamTimeout time.Duration
	now           func() time.Time
}

func NewFlightHandler(
	flights orchestrator.FlightOrchestrator,
	tripPlanner planner.TripPlanner,
	subscriber progress.Subscriber,
	dependencies map[string]Pinger,
	streamTimeout time.Duration,
) *FlightHandler {
	return &FlightHandler{
		flights:       flights,
		planner:       tripPlanner,
		progress:      subscriber,
		dependencies:  dependencies,
		streamTimeout: streamTimeout,
		now:           time.Now,
	}
}

// Index returns the API banner
func (h *FlightHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{
		Status:  "ok",
		Message: "WanderWise API v1 at /api/v1/",
	})
}

// SearchFlights returns flights for the search, waiting for the worker on a cache miss
func (h *FlightHandler) SearchFlights(c *gin.Context) {
	req, ok := h.bindSearch(c)
	if !ok {
		return
	}

	outcome := h.flights.FindFlights(c.Request.Context(), req)
	if !outcome.OK() {
		h.respondError(c, req.RequestID, outcome.Err)
		return
	}

	c.JSON(http.StatusOK, model.FlightListResponse{
		RequestID: req.RequestID,
		CacheHit:  outcome.CacheHit,
		Flights:   outcome.Flights,
	})
}

// PlanTrip returns flights together with price history, news and an opinion
func (h *FlightHandler) PlanTrip(c *gin.Context) {
	req, ok := h.bindSearch(c)
	if !ok {
		return
	}

	plan, err := h.planner.Plan(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, req.RequestID, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// StreamProgress provides Server-Sent Events for a request's worker progress
func (h *FlightHandler) StreamProgress(c *gin.Context) {
	requestID := c.Param("requestId")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_id",
			Message: "Request ID is required",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	events, stop, err := h.progress.Subscribe(ctx, requestID)
	if err != nil {
		l := logger.Ctx(ctx)
		l.Error().Err(err).Msg("Failed to subscribe to progress")
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error:   "progress_unavailable",
			Message: "Progress stream is unavailable",
		})
		return
	}
	defer stop()

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}

			eventData, _ := json.Marshal(event)
			c.SSEvent("progress", string(eventData))
			c.Writer.Flush()

			// Close stream on a terminal stage
			if event.Stage.Terminal() {
				finalData, _ := json.Marshal(map[string]interface{}{
					"request_id":  requestID,
					"final_stage": event.Stage,
				})
				c.SSEvent("complete", string(finalData))
				c.Writer.Flush()
				return
			}

		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				c.SSEvent("timeout", fmt.Sprintf(`{"request_id":%q}`, requestID))
				c.Writer.Flush()
			}
			return
		}
	}
}

// HealthCheck pings every backing store
func (h *FlightHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			l := logger.Ctx(ctx)
			l.Error().Err(err).Str("dependency", name).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
				Error:   "service_unavailable",
				Message: fmt.Sprintf("%s ping failed", name),
			})
			return
		}
	}

	c.JSON(http.StatusOK, model.HealthResponse{
		Status:    "healthy",
		Service:   "wanderwise-api",
		Timestamp: h.now(),
	})
}

// bindSearch decodes and validates the request body. It writes the 400 response itself.
func (h *FlightHandler) bindSearch(c *gin.Context) (model.SearchRequest, bool) {
	var body model.FlightSearchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
		})
		return model.SearchRequest{}, false
	}

	requestID := logger.RequestID(c.Request.Context())
	if requestID == "" {
		requestID = uuid.New().String()
	}

	req := body.ToSearchRequest(requestID)
	if err := req.Validate(h.now()); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
		})
		return model.SearchRequest{}, false
	}
	return req, true
}

// respondError maps lookup and planning failures to HTTP responses.
func (h *FlightHandler) respondError(c *gin.Context, requestID string, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrCancelled), errors.Is(err, context.Canceled):
		l := logger.Ctx(c.Request.Context())
		l.Info().Err(err).Msg("Client went away before the result was ready")
		c.AbortWithStatus(statusClientClosedRequest)
	case errors.Is(err, orchestrator.ErrTimeout):
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusAccepted, model.ProcessingResponse{
			RequestID: requestID,
			Status:    "processing",
			Message:   "Flights are still being fetched, retry shortly",
			StreamURL: fmt.Sprintf("/api/v1/progress/%s/stream", requestID),
		})
	case errors.Is(err, orchestrator.ErrFetch):
		c.JSON(http.StatusBadGateway, model.ErrorResponse{
			Error:   "fetch_failed",
			Message: "Flight provider request failed",
		})
	case errors.Is(err, orchestrator.ErrPublish):
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error:   "queue_unavailable",
			Message: "Unable to schedule flight search",
		})
	case errors.Is(err, orchestrator.ErrStore):
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error:   "cache_unavailable",
			Message: "Flight cache is unavailable",
		})
	case errors.Is(err, planner.ErrCountryNotFound):
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{
			Error:   "country_not_found",
			Message: "Unable to find country for the destination location code",
		})
	default:
		l := logger.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("Unhandled request error")
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to process request",
		})
	}
}
