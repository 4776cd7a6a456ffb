package logistics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_FirstWaitTakesInterval(t *testing.T) {
	g := NewGate(50 * time.Millisecond)
	start := time.Now()
	require.NoError(t, g.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestGate_SerializesCallers(t *testing.T) {
	g := NewGate(30 * time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestGate_ZeroIntervalDoesNotWait(t *testing.T) {
	g := NewGate(0)
	start := time.Now()
	require.NoError(t, g.Wait(context.Background()))
	assert.Less(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, time.Duration(0), g.Interval())
}

func TestGate_CancelWhileWaiting(t *testing.T) {
	g := NewGate(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := g.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGate_DeadlineBeforeRelease(t *testing.T) {
	g := NewGate(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := g.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
}
