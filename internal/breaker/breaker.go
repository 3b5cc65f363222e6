// Package breaker wraps best-effort collaborators in circuit breakers so a
// failing downstream is skipped quickly instead of slowing every transfer.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// Config controls when a breaker opens and how long it stays open.
type Config struct {
	MaxRequests         uint32        // requests allowed while half-open
	Interval            time.Duration // closed-state counter reset period
	Timeout             time.Duration // open-state duration before half-open
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
}

// DefaultConfig returns settings suited to a message broker or analytics store.
func DefaultConfig() Config {
	return Config{
		MaxRequests:         3,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

// New creates a circuit breaker that logs its state changes.
func New(name string, cfg Config, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// execute runs fn through cb and annotates the rejections of an open breaker.
func execute(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s is currently unavailable: %w", cb.Name(), err)
	}
	return err
}

// Notifier is a domain.Notifier guarded by a circuit breaker.
type Notifier struct {
	next domain.Notifier
	cb   *gobreaker.CircuitBreaker
}

// NewNotifier wraps next with cb.
func NewNotifier(next domain.Notifier, cb *gobreaker.CircuitBreaker) *Notifier {
	return &Notifier{next: next, cb: cb}
}

func (n *Notifier) Notify(ctx context.Context, event domain.Event) error {
	return execute(n.cb, func() error { return n.next.Notify(ctx, event) })
}

// HistoryWriter is a domain.HistoryWriter guarded by a circuit breaker.
type HistoryWriter struct {
	next domain.HistoryWriter
	cb   *gobreaker.CircuitBreaker
}

// NewHistoryWriter wraps next with cb.
func NewHistoryWriter(next domain.HistoryWriter, cb *gobreaker.CircuitBreaker) *HistoryWriter {
	return &HistoryWriter{next: next, cb: cb}
}

func (h *HistoryWriter) Append(ctx context.Context, records []domain.HistoryRecord) error {
	return execute(h.cb, func() error { return h.next.Append(ctx, records) })
}
