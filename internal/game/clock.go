package game

import (
	"sync"
	"time"
)

// TurnClock counts down whole ticks for a trivia round or a category turn.
// Callbacks run on the timer goroutine without the clock lock held, so they
// may take the session lock. A callback from a cleared or restarted clock is
// never delivered after Clear/Start return, except for one already past its
// generation check; callers guard against that with the session epoch.
type TurnClock struct {
	mu        sync.Mutex
	interval  time.Duration
	timer     *time.Timer
	gen       uint64
	remaining int
	running   bool
}

func NewTurnClock(interval time.Duration) *TurnClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &TurnClock{interval: interval}
}

// Start replaces any running countdown. onTick gets the remaining count after
// every tick, including the final 0; onExpire fires once, right after it.
func (c *TurnClock) Start(seconds int, onTick func(remaining int), onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.gen++
	c.remaining = max(seconds, 0)
	c.running = true
	c.scheduleLocked(c.gen, onTick, onExpire)
}

func (c *TurnClock) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.gen++
}

func (c *TurnClock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *TurnClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *TurnClock) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.running = false
}

func (c *TurnClock) scheduleLocked(gen uint64, onTick func(int), onExpire func()) {
	c.timer = time.AfterFunc(c.interval, func() {
		c.tick(gen, onTick, onExpire)
	})
}

func (c *TurnClock) tick(gen uint64, onTick func(int), onExpire func()) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	c.remaining = max(c.remaining-1, 0)
	remaining := c.remaining
	expired := remaining == 0
	if expired {
		c.running = false
		c.timer = nil
	} else {
		c.scheduleLocked(gen, onTick, onExpire)
	}
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired && onExpire != nil {
		onExpire()
	}
}
