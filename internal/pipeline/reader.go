package pipeline

import (
	"context"
	"fmt"

	"laspipe/internal/las"
	"laspipe/internal/metrics"
)

// runSource is one read worker. It owns its source exclusively: opens it,
// adds the declared count to the read total, pulls records in chunks, and
// evaluates every sink's predicate against every record; a record matching
// several predicates is routed to each of their sinks. Matches accumulate in
// per-sink local batches flushed at the chunk threshold and at exhaustion.
func (p *Processor) runSource(ctx context.Context, path string, template las.Header, routes []chan []las.Point) error {
	r, err := las.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceOpen, err)
	}
	defer r.Close()

	hdr := r.Header()
	if !hdr.Compatible(template) {
		return fmt.Errorf("%w: %s: schema (format %d, record length %d) incompatible with first source (format %d, record length %d)",
			ErrSourceOpen, path, hdr.PointFormat, hdr.RecordLength, template.PointFormat, template.RecordLength)
	}
	p.counters.AddToRead(int64(hdr.PointCount))

	batches := make([][]las.Point, len(p.cfg.Sinks))
	pull := make([]las.Point, 0, p.chunk)

	for {
		pull = pull[:0]
		pull, err = r.ReadN(pull, p.chunk)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
		}
		if len(pull) == 0 {
			break
		}
		for i := range pull {
			pt := &pull[i]
			p.counters.AddRead(1)
			for s := range p.cfg.Sinks {
				if !p.cfg.Sinks[s].Predicate.Match(pt) {
					continue
				}
				if batches[s] == nil {
					batches[s] = make([]las.Point, 0, p.chunk)
				}
				// One copy per matching predicate; the routed batch owns it.
				batches[s] = append(batches[s], *pt)
				p.counters.AddRouted(s, 1)
				if len(batches[s]) >= p.chunk {
					if err := p.send(ctx, routes[s], batches[s]); err != nil {
						return err
					}
					batches[s] = nil
				}
			}
		}
	}

	for s, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		if err := p.send(ctx, routes[s], batch); err != nil {
			return err
		}
	}
	return nil
}

// send delivers one routed batch, blocking while the sink's channel is at
// capacity (this is the backpressure point). A run already shutting down
// surfaces as ErrRouteClosed rather than being silently dropped.
func (p *Processor) send(ctx context.Context, route chan<- []las.Point, batch []las.Point) error {
	select {
	case route <- batch:
		metrics.RecordBatches(p.cfg.Job, 1)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrRouteClosed, ctx.Err())
	}
}
