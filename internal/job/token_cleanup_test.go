package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("missing deadline")
	}
	return 3, f.err
}

func TestTokenCleanup_LogsDeleted(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	purger := &fakePurger{}

	TokenCleanup(purger, time.Second, zap.New(core))()

	assert.Equal(t, 1, purger.calls)
	entries := logs.FilterMessage("Token cleanup completed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, int64(3), entries[0].ContextMap()["deleted"])
	}
}

func TestTokenCleanup_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	TokenCleanup(&fakePurger{err: errors.New("db down")}, time.Second, zap.New(core))()

	assert.Equal(t, 1, logs.FilterMessage("Token cleanup failed").Len())
	assert.Equal(t, 0, logs.FilterMessage("Token cleanup completed").Len())
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	assert.Error(t, s.AddTokenCleanup("not a schedule", &fakePurger{}, time.Second))
	assert.NoError(t, s.AddTokenCleanup("@hourly", &fakePurger{}, time.Second))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
