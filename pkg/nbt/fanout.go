package nbt

import (
	"context"
	"net/netip"
	"time"

	"darvaza.org/slog"
	"darvaza.org/slog/handlers/discard"

	"darvaza.org/namequery/pkg/errors"
)

// A QueryFunc is one attempt of a fanned-out query, bound to a single
// destination.
type QueryFunc func(ctx context.Context, dest netip.AddrPort) ([]NameRecord, error)

// Queries runs the same query against an ordered destination list,
// starting attempts on a stagger cadence and finishing on the first
// success. Losing attempts are abandoned, never cancelled; they run to
// their own per-attempt timeout and their eventual outcome is
// discarded. When every attempt fails, the error of the last attempt
// to resolve is reported.
type Queries struct {
	// Stagger is the delay between starting successive attempts.
	// Zero starts them all at once.
	Stagger time.Duration

	// Timeout bounds each attempt.
	Timeout time.Duration

	// Log receives debug output.
	Log slog.Logger
}

func (s *Queries) logger() slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return discard.New()
}

type attemptResult struct {
	index int
	recs  []NameRecord
	err   error
}

// Run fans fn out over dests. On success it returns the winning
// attempt's records and destination index.
func (s *Queries) Run(ctx context.Context, dests []netip.AddrPort,
	fn QueryFunc) ([]NameRecord, int, error) {
	//
	if ctx == nil || fn == nil || s.Timeout <= 0 {
		return nil, -1, errors.ErrBadRequest()
	}
	if len(dests) == 0 {
		return nil, -1, errors.ErrNotFound("")
	}

	// buffered so abandoned attempts never block on delivery
	results := make(chan attemptResult, len(dests))

	start := func(i int) {
		s.logger().Debug().
			WithField("dest", dests[i].String()).
			WithField("attempt", i).
			Print("starting query attempt")

		go func() {
			ctx2, cancel := context.WithTimeout(ctx, s.Timeout)
			defer cancel()

			recs, err := fn(ctx2, dests[i])
			results <- attemptResult{index: i, recs: recs, err: err}
		}()
	}

	return s.run(ctx, dests, start, results)
}

func (s *Queries) run(ctx context.Context, dests []netip.AddrPort,
	start func(int), results chan attemptResult) ([]NameRecord, int, error) {
	//
	started := 0
	if s.Stagger <= 0 {
		for started < len(dests) {
			start(started)
			started++
		}
	} else {
		start(started)
		started++
	}

	var next <-chan time.Time
	if started < len(dests) {
		tick := time.NewTicker(s.Stagger)
		defer tick.Stop()
		next = tick.C
	}

	finished := 0
	for {
		select {
		case <-ctx.Done():
			return nil, -1, errors.ErrTimeout("", ctx.Err())
		case <-next:
			if started < len(dests) {
				start(started)
				started++
			}
		case r := <-results:
			if r.err == nil {
				return r.recs, r.index, nil
			}

			finished++
			if finished == len(dests) {
				// every destination has failed. report
				// the outcome of the attempt that
				// resolved last.
				return nil, -1, r.err
			}
		}
	}
}
