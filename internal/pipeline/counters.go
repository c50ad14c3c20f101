package pipeline

import "sync/atomic"

// Counters holds cross-goroutine progress totals for one run.
//
// All fields are updated atomically and are monotonically non-decreasing for
// the lifetime of the run. Counters are created per run and injected into
// every stage, so independent runs never share state.
type Counters struct {
	toRead  atomic.Int64 // declared records across all opened sources
	read    atomic.Int64 // records pulled from sources
	written atomic.Int64 // records appended across all sinks
	sinks   []sinkCounters
}

type sinkCounters struct {
	toWrite atomic.Int64 // records routed to this sink
	written atomic.Int64 // records appended to this sink
}

// NewCounters returns counters for a run with numSinks sinks.
func NewCounters(numSinks int) *Counters {
	return &Counters{sinks: make([]sinkCounters, numSinks)}
}

// AddToRead adds a source's declared record count to the read total.
func (c *Counters) AddToRead(n int64) { c.toRead.Add(n) }

// AddRead counts records pulled from a source.
func (c *Counters) AddRead(n int64) { c.read.Add(n) }

// AddRouted counts records routed to sink i (they are now owed to it).
func (c *Counters) AddRouted(i int, n int64) { c.sinks[i].toWrite.Add(n) }

// AddWritten counts records durably appended to sink i.
func (c *Counters) AddWritten(i int, n int64) {
	c.sinks[i].written.Add(n)
	c.written.Add(n)
}

// SinkWritten returns the number of records appended to sink i so far.
func (c *Counters) SinkWritten(i int) int64 { return c.sinks[i].written.Load() }

// Snapshot is a point-in-time copy of the counters, safe to compute with.
type Snapshot struct {
	ToRead  int64
	Read    int64
	ToWrite int64 // sum of routed records across sinks
	Written int64
}

// Snapshot reads all counters. Values are individually atomic; the snapshot
// as a whole is approximate while the pipeline is running, which is fine for
// progress reporting.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		ToRead:  c.toRead.Load(),
		Read:    c.read.Load(),
		Written: c.written.Load(),
	}
	for i := range c.sinks {
		s.ToWrite += c.sinks[i].toWrite.Load()
	}
	return s
}
