package rw

import (
	"context"
	"sync"
	"time"

	"gitlab.com/slon/readerswriters/event"
)

// Probe is a critical section that watches who is inside.
//
// A writer that finds anyone else inside, or a reader that finds a writer
// inside, counts as an overlap.
type Probe struct {
	work time.Duration

	mu         sync.Mutex
	readers    int
	writers    int
	maxReaders int
	overlaps   int
}

// ProbeStats is what a Probe has seen so far.
type ProbeStats struct {
	MaxReaders int
	Overlaps   int
}

// NewProbe returns a probe whose section lasts for work (or until ctx is done).
func NewProbe(work time.Duration) *Probe {
	return &Probe{work: work}
}

// Section records who is inside for the duration of the work. It has the
// Section signature.
func (p *Probe) Section(ctx context.Context, role event.Role) {
	p.enter(role)
	defer p.exit(role)

	if p.work <= 0 {
		return
	}
	t := time.NewTimer(p.work)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (p *Probe) enter(role event.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch role {
	case event.Read:
		if p.writers > 0 {
			p.overlaps++
		}
		p.readers++
		p.maxReaders = max(p.maxReaders, p.readers)
	case event.Write:
		if p.writers > 0 || p.readers > 0 {
			p.overlaps++
		}
		p.writers++
	}
}

func (p *Probe) exit(role event.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch role {
	case event.Read:
		p.readers--
	case event.Write:
		p.writers--
	}
}

// Stats returns the maximum number of readers inside at once and the overlap
// count.
func (p *Probe) Stats() ProbeStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProbeStats{MaxReaders: p.maxReaders, Overlaps: p.overlaps}
}
