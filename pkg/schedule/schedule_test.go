package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerFiresRunnerOnEverySecond(t *testing.T) {
	var calls int32
	s, err := New("@every 1s", "", func(ctx context.Context) {
		atomic.AddInt32(&calls, 1)
	}, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestNewRejectsInvalidExpression(t *testing.T) {
	_, err := New("not a cron expr", "", func(ctx context.Context) {}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New("@every 1h", "Not/AZone", func(ctx context.Context) {}, zerolog.Nop())
	assert.Error(t, err)
}
