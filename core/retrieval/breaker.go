package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	"github.com/sony/gobreaker"
)

const documentIndexCapability = "document index"

// BreakerSettings configures the circuit breaker around the document index
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings returns the default breaker settings
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "DocumentIndex",
		MaxRequests:  5,
		Interval:     10 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// BreakerIndex wraps a document index in a circuit breaker that trips on
// CapabilityUnavailable errors. An open breaker reports the index as unavailable.
type BreakerIndex struct {
	index   DocumentIndex
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerIndex creates a new circuit breaker around index
func NewBreakerIndex(index DocumentIndex, settings BreakerSettings, logger *slog.Logger, metrics *helper.Metrics) *BreakerIndex {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Only connection failures trip the breaker. Timeouts and query
			// errors are handled per hop by the orchestrator.
			return err == nil || !errors.Is(err, model.ErrCapabilityUnavailable)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker changed state", slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
			metrics.BreakerOpen(name, to == gobreaker.StateOpen)
		},
	})

	return &BreakerIndex{
		index:   index,
		breaker: breaker,
	}
}

// Search runs the search through the circuit breaker
func (b *BreakerIndex) Search(ctx context.Context, request model.SearchRequest) ([]*model.SearchHit, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.index.Search(ctx, request)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, model.NewCapabilityUnavailable(documentIndexCapability, err)
		}
		return nil, err
	}

	hits, _ := result.([]*model.SearchHit)
	return hits, nil
}

// State returns the current breaker state
func (b *BreakerIndex) State() gobreaker.State {
	return b.breaker.State()
}
