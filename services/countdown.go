// services/countdown.go - Server side question timers
package services

import (
	"sync"
	"time"

	"wizzzard/metrics"
)

// Countdown holds at most one armed timer per session. A timer only fires
// for the (session, question) pair it was armed for.
type Countdown struct {
	mu     sync.Mutex
	timers map[string]*countdownTimer
}

type countdownTimer struct {
	index int
	timer *time.Timer
}

func NewCountdown() *Countdown {
	return &Countdown{timers: make(map[string]*countdownTimer)}
}

// Arm replaces any timer for id with one that calls fire after d.
func (c *Countdown) Arm(id string, index int, d time.Duration, fire func(id string, index int)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disarmLocked(id)

	entry := &countdownTimer{index: index}
	entry.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		current, ok := c.timers[id]
		if !ok || current != entry {
			c.mu.Unlock()
			return
		}
		delete(c.timers, id)
		metrics.CountdownsArmed.Dec()
		c.mu.Unlock()

		fire(id, index)
	})
	c.timers[id] = entry
	metrics.CountdownsArmed.Inc()
}

// Disarm cancels the timer for id, if any.
func (c *Countdown) Disarm(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked(id)
}

func (c *Countdown) disarmLocked(id string) {
	if entry, ok := c.timers[id]; ok {
		entry.timer.Stop()
		delete(c.timers, id)
		metrics.CountdownsArmed.Dec()
	}
}

// Armed reports the question index armed for id.
func (c *Countdown) Armed(id string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.timers[id]
	if !ok {
		return 0, false
	}
	return entry.index, true
}

// Stop cancels every timer. Used on shutdown.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.timers {
		c.disarmLocked(id)
	}
}
