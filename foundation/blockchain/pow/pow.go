// Package pow implements the proof of work search. Starting at nonce zero,
// the search hashes the block header for every nonce until the hash has the
// required number of leading zero bits or the search is cancelled.
package pow

import (
	"context"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
)

// DefaultPollInterval is the number of attempts between checks of the
// cancellation signal.
const DefaultPollInterval = 10_000

// DefaultReportInterval is the number of attempts between progress events.
const DefaultReportInterval = 1_000_000

// =============================================================================

// Result is the outcome of a search, either Found or Cancelled.
type Result interface {
	result()
}

// Found is returned when a nonce satisfying the difficulty was discovered.
type Found struct {
	Block    block.Block
	Attempts uint64
	Elapsed  time.Duration
}

func (Found) result() {}

// Cancelled is returned when the search observed the cancellation signal
// before finding a solution.
type Cancelled struct {
	Attempts uint64
	Elapsed  time.Duration
}

func (Cancelled) result() {}

// =============================================================================

// EventHandler defines a function that is called when events
// occur during a search.
type EventHandler func(v string, args ...any)

type options struct {
	pollInterval   uint64
	reportInterval uint64
	evHandler      EventHandler
	now            func() time.Time
}

// Option changes the behavior of a search.
type Option func(o *options)

// WithPollInterval sets how many attempts are made between checks of the
// cancellation signal. A smaller interval lowers cancellation latency at the
// cost of more frequent checks.
func WithPollInterval(attempts uint64) Option {
	return func(o *options) {
		if attempts > 0 {
			o.pollInterval = attempts
		}
	}
}

// WithEvents provides an event handler that receives progress reports.
func WithEvents(evHandler EventHandler) Option {
	return func(o *options) {
		o.evHandler = evHandler
	}
}

// WithReportInterval sets how many attempts are made between progress events.
func WithReportInterval(attempts uint64) Option {
	return func(o *options) {
		if attempts > 0 {
			o.reportInterval = attempts
		}
	}
}

// WithClock replaces the clock used to stamp the header.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// =============================================================================

// Search mines the specified task. The header timestamp is captured when the
// search starts. The context is the cancellation signal and is checked every
// poll interval.
func Search(ctx context.Context, task block.Task, opts ...Option) Result {
	o := newOptions(opts)

	header := task.Header(uint64(o.now().UTC().Unix()))
	return search(ctx, header, task.Difficulty, o)
}

// SearchHeader mines the specified header as is, ignoring any nonce it
// carries. Re-running it with the same header and difficulty is deterministic.
//
// A difficulty above block.HashBits can't be satisfied and the search will
// only return once it is cancelled.
func SearchHeader(ctx context.Context, header block.Header, difficulty uint, opts ...Option) Result {
	return search(ctx, header, difficulty, newOptions(opts))
}

func newOptions(opts []Option) options {
	o := options{
		pollInterval:   DefaultPollInterval,
		reportInterval: DefaultReportInterval,
		evHandler:      func(string, ...any) {},
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.evHandler == nil {
		o.evHandler = func(string, ...any) {}
	}

	return o
}

// search performs the nonce loop.
func search(ctx context.Context, header block.Header, difficulty uint, o options) Result {
	o.evHandler("pow: search: MINING: started: blk[%d]: difficulty[%d]", header.Number, difficulty)

	start := time.Now()
	header.Nonce = 0

	var attempts uint64
	for {
		if attempts%o.pollInterval == 0 && ctx.Err() != nil {
			elapsed := time.Since(start)
			o.evHandler("pow: search: MINING: CANCELLED: blk[%d]: attempts[%d]: elapsed[%v]", header.Number, attempts, elapsed)
			return Cancelled{Attempts: attempts, Elapsed: elapsed}
		}

		hash := header.Hash()
		attempts++

		if block.IsHashSolved(difficulty, hash) {
			elapsed := time.Since(start)
			o.evHandler("pow: search: MINING: SOLVED: blk[%d]: nonce[%d]: hash[%s]: attempts[%d]: elapsed[%v]", header.Number, header.Nonce, hash, attempts, elapsed)

			return Found{
				Block: block.Block{
					Header:    header,
					BlockHash: hash,
				},
				Attempts: attempts,
				Elapsed:  elapsed,
			}
		}

		if attempts%o.reportInterval == 0 {
			o.evHandler("pow: search: MINING: blk[%d]: attempts[%d]: rate[%.0f H/s]", header.Number, attempts, HashRate(attempts, time.Since(start)))
		}

		header.Nonce++
	}
}

// HashRate returns the number of hashes computed per second.
func HashRate(attempts uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(attempts) / elapsed.Seconds()
}
