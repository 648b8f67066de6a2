package rw

import "sync/atomic"

// Counter is the number of readers inside a strategy.
//
// Enter and Leave must only be called while the strategy's counter guard is
// held. Load may be called from anywhere.
type Counter struct {
	n atomic.Int64
}

// Enter adds a reader and reports whether it is the first one (0→1).
func (c *Counter) Enter() (first bool) {
	return c.n.Add(1) == 1
}

// Leave removes a reader and reports whether it was the last one (1→0).
func (c *Counter) Leave() (last bool) {
	n := c.n.Add(-1)
	if n < 0 {
		panic("negative reader count")
	}
	return n == 0
}

// Load returns the number of readers inside.
func (c *Counter) Load() int {
	return int(c.n.Load())
}
