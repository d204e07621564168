// Package watermark hands out write timestamps and computes sync watermarks
// that never run ahead of a write still in flight.
package watermark

import (
	"sync"
	"time"
)

// Fence tracks writes that have taken a timestamp but may not have committed.
// A watermark taken while such a write is open stays strictly below its stamp,
// so a delta query "updated_at > watermark" will pick it up on the next round.
type Fence struct {
	mu       sync.Mutex
	now      func() time.Time
	next     uint64
	inflight map[uint64]time.Time
}

func NewFence(now func() time.Time) *Fence {
	if now == nil {
		now = time.Now
	}
	return &Fence{now: now, inflight: make(map[uint64]time.Time)}
}

// Begin returns the updated_at stamp for one write and a func to call once the
// write has committed or failed.
func (f *Fence) Begin() (time.Time, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stamp := f.now().UTC().Truncate(time.Microsecond)
	id := f.next
	f.next++
	f.inflight[id] = stamp

	var once sync.Once
	return stamp, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.inflight, id)
			f.mu.Unlock()
		})
	}
}

// Watermark is just below the current time, pulled back further below the
// oldest open write. Any stamp handed out later is strictly greater.
func (f *Fence) Watermark() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	w := f.now().UTC().Truncate(time.Microsecond).Add(-time.Microsecond)
	for _, stamp := range f.inflight {
		if limit := stamp.Add(-time.Microsecond); limit.Before(w) {
			w = limit
		}
	}
	return w
}

// Millis converts a watermark to the wire format, rounding down so the
// boundary never moves past a record.
func Millis(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Before(time.UnixMilli(ms)) {
		ms--
	}
	return ms
}
