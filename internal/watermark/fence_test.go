package watermark

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestWatermark_NoWritesIsJustBeforeNow(t *testing.T) {
	clk := &fakeClock{t: time.UnixMilli(5000).UTC()}
	f := NewFence(clk.Now)

	assert.Equal(t, clk.Now().Add(-time.Microsecond), f.Watermark())
	assert.Equal(t, int64(4999), Millis(f.Watermark()))

	stamp, done := f.Begin()
	defer done()
	assert.True(t, stamp.After(f.Watermark()))
}

func TestWatermark_HeldBelowOpenWrite(t *testing.T) {
	clk := &fakeClock{t: time.UnixMilli(5000).UTC()}
	f := NewFence(clk.Now)

	stamp, done := f.Begin()
	clk.Advance(3 * time.Second)

	w := f.Watermark()
	assert.True(t, w.Before(stamp), "watermark must stay below an uncommitted write")
	assert.Equal(t, int64(4999), Millis(w))

	done()
	done() // idempotent
	assert.Equal(t, clk.Now().Add(-time.Microsecond), f.Watermark())
}

func TestWatermark_ConcurrentWriters(t *testing.T) {
	f := NewFence(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stamp, done := f.Begin()
			defer done()
			assert.True(t, f.Watermark().Before(stamp))
		}()
	}
	wg.Wait()
	assert.Empty(t, f.inflight)
}

func TestMillis_RoundsDown(t *testing.T) {
	assert.Equal(t, int64(1000), Millis(time.UnixMilli(1000).Add(999*time.Microsecond)))
	assert.Equal(t, int64(1000), Millis(time.UnixMilli(1000)))
	assert.Equal(t, int64(-2), Millis(time.UnixMilli(-1).Add(-time.Microsecond)))
}
