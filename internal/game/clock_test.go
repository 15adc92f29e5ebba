package game

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnClock_CountsDownAndExpiresOnce(t *testing.T) {
	c := NewTurnClock(5 * time.Millisecond)

	var mu sync.Mutex
	var ticks []int
	var expired atomic.Int32
	done := make(chan struct{})

	c.Start(3, func(r int) {
		mu.Lock()
		ticks = append(ticks, r)
		mu.Unlock()
	}, func() {
		if expired.Add(1) == 1 {
			close(done)
		}
	})
	require.True(t, c.Running())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("clock never expired")
	}
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{2, 1, 0}, ticks)
	mu.Unlock()
	assert.Equal(t, int32(1), expired.Load())
	assert.False(t, c.Running())
	assert.Equal(t, 0, c.Remaining())
}

func TestTurnClock_ClearStopsCallbacks(t *testing.T) {
	c := NewTurnClock(10 * time.Millisecond)

	var calls atomic.Int32
	c.Start(5, func(int) { calls.Add(1) }, func() { calls.Add(100) })
	c.Clear()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, c.Running())
}

func TestTurnClock_RestartDropsPreviousCountdown(t *testing.T) {
	c := NewTurnClock(5 * time.Millisecond)

	var first atomic.Int32
	c.Start(1, nil, func() { first.Add(1) })

	done := make(chan struct{})
	c.Start(2, nil, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second countdown never expired")
	}
	assert.Equal(t, int32(0), first.Load())
}
