package internal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock_DefaultStart(t *testing.T) {
	c := NewMockClock(time.Time{})
	assert.Equal(t, time.Unix(1000000000, 0), c.Now())
}

func TestMockClock_AdvanceNegativePanics(t *testing.T) {
	c := NewMockClock(time.Time{})
	assert.Panics(t, func() { c.Advance(-time.Millisecond) })
}

func TestMockClock_AdvanceToNeverGoesBack(t *testing.T) {
	c := NewMockClock(time.Time{})
	start := c.Now()

	c.AdvanceTo(start.Add(5 * time.Millisecond))
	assert.Equal(t, start.Add(5*time.Millisecond), c.Now())

	c.AdvanceTo(start)
	assert.Equal(t, start.Add(5*time.Millisecond), c.Now())
}

func TestMockClock_ConcurrentReaders(t *testing.T) {
	c := NewMockClock(time.Time{})
	start := c.Now()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := c.Now()
			for j := 0; j < 1000; j++ {
				now := c.Now()
				assert.False(t, now.Before(last))
				last = now
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		c.Advance(time.Microsecond)
	}
	wg.Wait()
	assert.Equal(t, start.Add(time.Millisecond), c.Now())
}

func TestStopwatch_RestartAndElapsed(t *testing.T) {
	c := NewMockClock(time.Time{})
	sw := NewStopwatch(c)

	c.Advance(7 * time.Millisecond)
	assert.Equal(t, 7*time.Millisecond, sw.Elapsed())
	assert.Equal(t, 7*time.Millisecond, sw.Restart())

	assert.Equal(t, time.Duration(0), sw.Elapsed())

	c.Advance(3 * time.Millisecond)
	assert.Equal(t, 3*time.Millisecond, sw.Restart())
}

func TestStopwatch_NilClockUsesMonotonic(t *testing.T) {
	sw := NewStopwatch(nil)
	assert.GreaterOrEqual(t, sw.Elapsed(), time.Duration(0))
}
