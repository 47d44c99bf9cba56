package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunNow(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	s := NewScheduler(discard(),
		Job{Name: "count", Spec: "@every 1h", Run: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			calls++
			return nil
		}},
		Job{Name: "fail", Spec: "@every 1h", Run: func(context.Context) error { return boom }},
	)

	require.NoError(t, s.RunNow("count"))
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, s.RunNow("fail"), boom)
	assert.Error(t, s.RunNow("missing"))
}

func TestStart(t *testing.T) {
	s := NewScheduler(discard(), Job{Name: "noop", Spec: "*/5 * * * *", Run: func(context.Context) error { return nil }})
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	<-s.Stop().Done()

	bad := NewScheduler(discard(), Job{Name: "bad", Spec: "not a spec", Run: func(context.Context) error { return nil }})
	assert.Error(t, bad.Start())
}
