// Package metrics provides the append-only sinks the codecs report
// operation timings to. Every sink is safe for concurrent use.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Operation names reported by the codecs.
const (
	OpEncode           = "text.encode"
	OpDecode           = "text.decode"
	OpSerialize        = "delta.serialize"
	OpDeserialize      = "delta.deserialize"
	OpSerializeDelta   = "delta.serialize_delta"
	OpDeserializeDelta = "delta.deserialize_delta"
	OpCompare          = "comparator.compare"
	OpEqual            = "comparator.equal"
	OpExportJSON       = "json.export"
	OpImportJSON       = "json.import"
)

// Sink receives one observation per codec call.
type Sink interface {
	// Observe is called after each operation. err is nil if it succeeded.
	Observe(op string, duration time.Duration, err error)
}

// Noop discards observations.
type Noop struct{}

func (Noop) Observe(string, time.Duration, error) {}

// Since reports the time elapsed from start for op. It is meant to be
// deferred with a pointer to the named error result.
func Since(s Sink, op string, start time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	s.Observe(op, time.Since(start), e)
}

// OpStats is a snapshot of the counters of one operation.
type OpStats struct {
	Op         string
	Count      int64
	Errors     int64
	TotalNanos int64
}

// Average returns the mean duration of the operation.
func (s OpStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return time.Duration(s.TotalNanos / s.Count)
}

type opCounters struct {
	count      atomic.Int64
	errors     atomic.Int64
	totalNanos atomic.Int64
}

// Basic keeps in-memory counters per operation.
type Basic struct {
	ops sync.Map // string -> *opCounters
}

func NewBasic() *Basic {
	return &Basic{}
}

func (b *Basic) Observe(op string, duration time.Duration, err error) {
	v, ok := b.ops.Load(op)
	if !ok {
		v, _ = b.ops.LoadOrStore(op, &opCounters{})
	}
	c := v.(*opCounters)
	c.count.Add(1)
	c.totalNanos.Add(duration.Nanoseconds())
	if err != nil {
		c.errors.Add(1)
	}
}

// Snapshot returns the counters of every operation seen so far, sorted by
// operation name.
func (b *Basic) Snapshot() []OpStats {
	var out []OpStats
	b.ops.Range(func(key, value any) bool {
		c := value.(*opCounters)
		out = append(out, OpStats{
			Op:         key.(string),
			Count:      c.count.Load(),
			Errors:     c.errors.Load(),
			TotalNanos: c.totalNanos.Load(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

// Stats returns the counters of op.
func (b *Basic) Stats(op string) OpStats {
	v, ok := b.ops.Load(op)
	if !ok {
		return OpStats{Op: op}
	}
	c := v.(*opCounters)
	return OpStats{Op: op, Count: c.count.Load(), Errors: c.errors.Load(), TotalNanos: c.totalNanos.Load()}
}
