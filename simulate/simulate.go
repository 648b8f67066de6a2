// Package simulate runs reader and writer goroutines against a strategy and
// reports what happened.
package simulate

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.com/slon/readerswriters/event"
	"gitlab.com/slon/readerswriters/metrics"
	"gitlab.com/slon/readerswriters/rw"
)

// Plan says how many goroutines call each operation and how often.
type Plan struct {
	Readers int
	Writers int
	Rounds  int
	// Work is how long one critical section lasts.
	Work time.Duration
}

type Result struct {
	RunID    uuid.UUID
	Strategy string
	Plan     Plan

	Reads         int
	Writes        int
	ReadFailures  int
	WriteFailures int

	Probe    rw.ProbeStats
	Duration time.Duration
	// Events is everything the strategy emitted. A barrier read whose
	// second rendezvous failed is here and in ReadFailures.
	Events   []event.Event
}

// Runner is the driver: it spawns the goroutines and waits for them.
type Runner struct {
	Factory Factory
	Logger  *zap.Logger
	// Sink gets every event in addition to the run's own collector.
	Sink    event.Sink
	Metrics *metrics.Metrics
	// Section, if set, runs at the start of every critical section.
	Section rw.Section
}

type participants interface {
	Parties() int
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run executes plan against a fresh instance of the named strategy.
//
// Failed calls are counted, not returned; the error is only for a strategy
// that could not be built. A strategy with fixed participants gets one
// reader and one writer no matter what plan says.
func (r *Runner) Run(ctx context.Context, name string, plan Plan) (Result, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Result{}, err
	}
	logger := r.logger().With(zap.String("strategy", name), zap.Stringer("run", id))

	probe := rw.NewProbe(plan.Work)
	collector := event.NewCollector()

	section := rw.Section(probe.Section)
	if r.Section != nil {
		work := section
		section = func(ctx context.Context, role event.Role) {
			r.Section(ctx, role)
			work(ctx, role)
		}
	}
	var sink event.Sink = collector
	if r.Metrics != nil {
		section = r.Metrics.Track(name, section)
	}
	if r.Sink != nil {
		sink = event.Multi(sink, r.Sink)
	}

	s, err := r.Factory.New(name,
		rw.WithSink(sink),
		rw.WithSection(section),
		rw.WithLogger(logger),
	)
	if err != nil {
		return Result{}, err
	}
	if c, ok := s.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("close strategy", zap.Error(err))
			}
		}()
	}

	if p, ok := s.(participants); ok && p.Parties() == 2 {
		plan.Readers, plan.Writers = 1, 1
	}
	logger.Info("run started",
		zap.Int("readers", plan.Readers),
		zap.Int("writers", plan.Writers),
		zap.Int("rounds", plan.Rounds),
	)

	var reads, writes, readFailures, writeFailures atomic.Int64
	call := func(role event.Role, op func(context.Context) error, ok, failed *atomic.Int64) func() error {
		return func() error {
			for i := 0; i < plan.Rounds; i++ {
				if err := op(ctx); err != nil {
					failed.Add(1)
					if r.Metrics != nil {
						r.Metrics.Failed(name, role, err)
					}
					continue
				}
				ok.Add(1)
				if r.Metrics != nil {
					r.Metrics.Succeeded(name, role)
				}
			}
			return nil
		}
	}

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < plan.Readers; i++ {
		g.Go(call(event.Read, s.Read, &reads, &readFailures))
	}
	for i := 0; i < plan.Writers; i++ {
		g.Go(call(event.Write, s.Write, &writes, &writeFailures))
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	if r.Metrics != nil {
		r.Metrics.ObserveRun(name, elapsed)
	}

	res := Result{
		RunID:         id,
		Strategy:      name,
		Plan:          plan,
		Reads:         int(reads.Load()),
		Writes:        int(writes.Load()),
		ReadFailures:  int(readFailures.Load()),
		WriteFailures: int(writeFailures.Load()),
		Probe:         probe.Stats(),
		Duration:      elapsed,
		Events:        collector.Events(),
	}
	logger.Info("run finished",
		zap.Int("reads", res.Reads),
		zap.Int("writes", res.Writes),
		zap.Int("failures", res.ReadFailures+res.WriteFailures),
		zap.Int("overlaps", res.Probe.Overlaps),
		zap.Duration("took", elapsed),
	)
	return res, nil
}
