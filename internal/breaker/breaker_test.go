package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, domain.Event) error {
	c.calls++
	return c.err
}

func TestNotifier_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Hour
	cb := New("notifier", cfg, nil)

	next := &countingNotifier{err: errors.New("broker down")}
	n := NewNotifier(next, cb)

	for i := 0; i < 3; i++ {
		assert.Error(t, n.Notify(context.Background(), domain.Event{}))
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	err := n.Notify(context.Background(), domain.Event{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls, "open breaker must not call the collaborator")
}

type historyFunc func([]domain.HistoryRecord) error

func (f historyFunc) Append(_ context.Context, records []domain.HistoryRecord) error {
	return f(records)
}

func TestHistoryWriter_PassesThrough(t *testing.T) {
	var got int
	h := NewHistoryWriter(historyFunc(func(r []domain.HistoryRecord) error {
		got = len(r)
		return nil
	}), New("history", DefaultConfig(), nil))

	assert.NoError(t, h.Append(context.Background(), make([]domain.HistoryRecord, 2)))
	assert.Equal(t, 2, got)
}
