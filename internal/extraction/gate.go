package extraction

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the number of model calls allowed in flight at once
const DefaultConcurrency = 18

// Gate is a counting admission gate bounding concurrent model calls. It
// records the current and peak number of holders.
type Gate struct {
	sem      *semaphore.Weighted
	limit    int
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewGate returns a gate admitting at most limit holders, or
// DefaultConcurrency when limit is not positive.
func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: limit,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	n := g.inFlight.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return nil
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

func (g *Gate) Limit() int {
	return g.limit
}

func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Peak is the highest number of simultaneous holders observed.
func (g *Gate) Peak() int {
	return int(g.peak.Load())
}
