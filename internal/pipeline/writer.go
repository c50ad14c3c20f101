package pipeline

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"

	"laspipe/internal/las"
)

// runSink is one sink writer. It owns its sink exclusively for the run:
// opens it from the authoritative output schema, appends routed records in
// receipt order, and terminates when its channel is closed and drained. An
// append failure is fatal; records already appended stay in place.
//
// Alongside the counters the writer folds every appended record's
// coordinates into an xxh3 digest, reported in the run summary so identical
// runs can be compared cheaply.
func (p *Processor) runSink(ctx context.Context, idx int, outHdr las.Header, route <-chan []las.Point) error {
	sink := p.cfg.Sinks[idx]
	name := sink.name()

	ap, err := openSink(p, ctx, sink, outHdr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSinkOpen, name, err)
	}
	// Every exit releases the sink: the failure returns below rely on this
	// deferred close (its error is irrelevant then), while the success path
	// closes explicitly and clears ap so the defer is a no-op.
	defer func() {
		if ap != nil {
			_ = ap.Close(ctx)
		}
	}()

	digest := xxh3.New()
	var coord [24]byte

	for batch := range route {
		for i := range batch {
			pt := &batch[i]
			if err := ap.Append(ctx, pt); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrSinkWrite, name, err)
			}
			p.counters.AddWritten(idx, 1)

			binary.LittleEndian.PutUint64(coord[0:8], uint64(int64(pt.X*1000)))
			binary.LittleEndian.PutUint64(coord[8:16], uint64(int64(pt.Y*1000)))
			binary.LittleEndian.PutUint64(coord[16:24], uint64(int64(pt.Z*1000)))
			_, _ = digest.Write(coord[:])
		}
	}

	final := ap
	ap = nil
	if err := final.Close(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSinkWrite, name, err)
	}

	p.sinkSums[idx] = SinkSummary{
		Name:    name,
		Written: p.counters.SinkWritten(idx),
		Digest:  digest.Sum64(),
	}
	return nil
}

// openSink is a seam for tests to inject failing appenders.
var openSink = (*Processor).openAppender

// openAppender opens the sink's write surface: the codec for file sinks, a
// COPY-batching repository for relational sinks.
func (p *Processor) openAppender(ctx context.Context, sink Sink, outHdr las.Header) (appender, error) {
	if sink.DB != nil {
		return newDBAppender(ctx, *sink.DB, sink.AutoCreateTable, p.chunk)
	}
	w, err := las.Create(sink.Path, outHdr)
	if err != nil {
		return nil, err
	}
	return fileAppender{w: w}, nil
}
