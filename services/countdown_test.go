package services_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wizzzard/services"
)

func TestCountdownFiresOnce(t *testing.T) {
	c := services.NewCountdown()
	defer c.Stop()

	var fired atomic.Int32
	var gotIndex atomic.Int32
	c.Arm("quiz-1", 2, 10*time.Millisecond, func(id string, index int) {
		fired.Add(1)
		gotIndex.Store(int32(index))
	})

	idx, ok := c.Armed("quiz-1")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), gotIndex.Load())

	_, ok = c.Armed("quiz-1")
	assert.False(t, ok)
}

func TestCountdownRearmReplacesTimer(t *testing.T) {
	c := services.NewCountdown()
	defer c.Stop()

	var first, second atomic.Int32
	c.Arm("quiz-1", 0, 20*time.Millisecond, func(string, int) { first.Add(1) })
	c.Arm("quiz-1", 1, 20*time.Millisecond, func(string, int) { second.Add(1) })

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestCountdownDisarmAndStop(t *testing.T) {
	c := services.NewCountdown()

	var fired atomic.Int32
	c.Arm("quiz-1", 0, 20*time.Millisecond, func(string, int) { fired.Add(1) })
	c.Arm("quiz-2", 0, 20*time.Millisecond, func(string, int) { fired.Add(1) })

	c.Disarm("quiz-1")
	c.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
