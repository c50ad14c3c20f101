// Package pipeline implements the concurrent ingest-filter-route-write core:
// a bounded pool of per-source readers, predicate fan-out of every record to
// its matching sinks, bounded per-sink routing channels for backpressure, one
// exclusive writer per sink, and a background progress monitor over shared
// atomic counters.
//
// Shutdown ordering is an explicit contract: the orchestrator closes each
// routing channel only after every reader has joined, so writers terminate by
// draining a closed channel. The first fatal error from any participant
// cancels the run and is the error returned to the caller; later errors are
// not reported.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"laspipe/internal/config"
	dsfile "laspipe/internal/datasource/file"
	"laspipe/internal/filter"
	"laspipe/internal/las"
	"laspipe/internal/metrics"
	"laspipe/internal/storage/postgres"
)

// DefaultChunkSize is the number of records pulled per read call and the
// local batch flush threshold.
const DefaultChunkSize = 10_000

// defaultChannelBuffer is the routing channel capacity, in batches, per sink.
const defaultChannelBuffer = 8

// Sink pairs one output with the predicate that guards it. Exactly one of
// Path or DB is set; a record is written to this sink iff Predicate accepts
// it.
type Sink struct {
	// Path names a record-file sink (accepted extension required).
	Path string

	// DB selects a relational sink instead of a file.
	DB *postgres.Config

	// AutoCreateTable creates the relational destination if missing.
	AutoCreateTable bool

	Predicate filter.Predicate
}

// name labels the sink in logs and the run summary.
func (s Sink) name() string {
	if s.DB != nil {
		return s.DB.Table
	}
	return s.Path
}

// Config is the programmatic constructor input for a run.
type Config struct {
	// Job names the run for logs, metrics, and the catalog.
	Job string

	// Sources are input paths; each may be a record file or a directory of
	// record files.
	Sources []string

	// Sinks are the ordered (sink, predicate) pairs. Every record is
	// evaluated against every sink's predicate.
	Sinks []Sink

	// StripExtra drops the opaque extra-bytes block from the output schema
	// of file sinks.
	StripExtra bool

	// ChunkSize overrides DefaultChunkSize when positive.
	ChunkSize int

	// ChannelBuffer overrides the per-sink routing capacity (in batches).
	ChannelBuffer int

	// MaxReaders bounds the read pool. Zero derives it from the host:
	// max(1, NumCPU - len(Sinks)).
	MaxReaders int

	// Interval is the monitor tick (DefaultInterval when zero).
	Interval time.Duration

	// Logf replaces log.Printf, mainly for tests.
	Logf func(format string, args ...any)
}

// SinkSummary reports one sink's outcome.
type SinkSummary struct {
	Name    string
	Written int64
	Digest  uint64 // xxh3 over appended coordinates, in append order
}

// RunSummary reports a completed run.
type RunSummary struct {
	Job      string
	Sources  int
	Read     int64
	Written  int64
	Duration time.Duration
	Sinks    []SinkSummary
}

// Processor executes one configured run. It is single-use: construct, Run
// once, inspect the summary.
type Processor struct {
	cfg       Config
	chunk     int
	chanSize  int
	counters  *Counters
	sinkSums  []SinkSummary
	logf      func(format string, args ...any)

	mu       sync.Mutex
	firstErr error
	cancel   context.CancelFunc
}

// New validates cfg and returns a Processor. Validation is static, with no
// I/O performed; violations are reported as ErrConfig.
func New(cfg Config) (*Processor, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("%w: no sources", ErrConfig)
	}
	if len(cfg.Sinks) == 0 {
		return nil, fmt.Errorf("%w: no sinks", ErrConfig)
	}
	seen := map[string]struct{}{}
	for i, s := range cfg.Sinks {
		if s.Predicate == nil {
			return nil, fmt.Errorf("%w: sink %d has no predicate (predicates and sinks pair 1:1)", ErrConfig, i)
		}
		if s.DB != nil {
			continue
		}
		if s.Path == "" {
			return nil, fmt.Errorf("%w: sink %d has neither path nor db", ErrConfig, i)
		}
		if !config.AcceptedExtension(s.Path) {
			return nil, fmt.Errorf("%w: sink %q: extension not accepted", ErrConfig, s.Path)
		}
		if _, dup := seen[s.Path]; dup {
			return nil, fmt.Errorf("%w: sink %q configured twice", ErrConfig, s.Path)
		}
		seen[s.Path] = struct{}{}
	}
	if cfg.ChunkSize < 0 || cfg.ChannelBuffer < 0 || cfg.MaxReaders < 0 {
		return nil, fmt.Errorf("%w: negative runtime setting", ErrConfig)
	}

	p := &Processor{
		cfg:      cfg,
		chunk:    cfg.ChunkSize,
		chanSize: cfg.ChannelBuffer,
		logf:     cfg.Logf,
	}
	if p.chunk == 0 {
		p.chunk = DefaultChunkSize
	}
	if p.chanSize == 0 {
		p.chanSize = defaultChannelBuffer
	}
	if p.logf == nil {
		p.logf = log.Printf
	}
	return p, nil
}

// NewFromConfig builds a Processor from a decoded pipeline file, compiling
// each filter kind into its predicate.
func NewFromConfig(pc config.Pipeline) (*Processor, error) {
	if err := config.FirstError(config.ValidatePipeline(pc)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg := Config{
		Job:           pc.Job,
		Sources:       []string{pc.Source.Path},
		StripExtra:    pc.StripExtra,
		ChunkSize:     pc.Runtime.ChunkSize,
		ChannelBuffer: pc.Runtime.ChannelBuffer,
		MaxReaders:    pc.Runtime.ReaderWorkers,
	}
	for i, f := range pc.Filters {
		pred, err := filter.FromConfig(f.Kind, f.Options)
		if err != nil {
			return nil, fmt.Errorf("%w: filters[%d]: %v", ErrConfig, i, err)
		}
		s := Sink{Predicate: pred}
		if f.Sink.Kind == "postgres" {
			s.DB = &postgres.Config{DSN: f.Sink.DB.DSN, Table: f.Sink.DB.Table}
			s.AutoCreateTable = f.Sink.DB.AutoCreateTable
		} else {
			s.Path = f.Sink.Path
		}
		cfg.Sinks = append(cfg.Sinks, s)
	}
	return New(cfg)
}

// fail records the first fatal error and cancels the run. Later calls keep
// the original error so a cancellation-induced failure never masks its root
// cause.
func (p *Processor) fail(err error) {
	p.mu.Lock()
	if p.firstErr == nil {
		p.firstErr = err
	}
	p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Processor) failure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

// maxReaders resolves the read pool bound: writers get a thread each, the
// rest of the machine reads.
func (p *Processor) maxReaders() int {
	if p.cfg.MaxReaders > 0 {
		return p.cfg.MaxReaders
	}
	n := runtime.NumCPU() - len(p.cfg.Sinks)
	if n < 1 {
		n = 1
	}
	return n
}

// Run executes the pipeline and blocks until every sink is fully written or
// the first fatal error occurs. The returned summary is valid on success;
// on error it reflects whatever progress was made.
func (p *Processor) Run(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{Job: p.cfg.Job}

	// Resolve inputs and the authoritative output schema before any writer
	// or reader task exists: a missing input fails here, with nothing to
	// tear down.
	sources, err := p.expandSources()
	if err != nil {
		return summary, err
	}
	summary.Sources = len(sources)

	template, err := p.readTemplateHeader(sources[0])
	if err != nil {
		return summary, err
	}
	outHdr := template
	if p.cfg.StripExtra {
		outHdr = outHdr.Strip()
	}

	p.counters = NewCounters(len(p.cfg.Sinks))
	p.sinkSums = make([]SinkSummary, len(p.cfg.Sinks))

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	defer cancel()

	// The monitor is daemon-like: started, never awaited, stopped by the
	// run context when Run returns.
	mon := NewMonitor(p.counters, p.cfg.Interval, p.cfg.Job)
	mon.logf = p.logf
	go mon.Run(runCtx)

	routes := make([]chan []las.Point, len(p.cfg.Sinks))
	for i := range routes {
		routes[i] = make(chan []las.Point, p.chanSize)
	}

	var writers errgroup.Group
	for i := range p.cfg.Sinks {
		i := i
		writers.Go(func() error {
			if err := p.runSink(runCtx, i, outHdr, routes[i]); err != nil {
				p.fail(err)
				return err
			}
			return nil
		})
	}

	readers := errgroup.Group{}
	readers.SetLimit(p.maxReaders())
	for _, src := range sources {
		src := src
		readers.Go(func() error {
			if err := p.runSource(runCtx, src, template, routes); err != nil {
				p.fail(err)
				return err
			}
			return nil
		})
	}

	readErr := readers.Wait()
	// All producers have joined; closing is now safe and happens exactly once.
	for _, route := range routes {
		close(route)
	}
	writeErr := writers.Wait()

	summary.Duration = time.Since(start)
	snap := p.counters.Snapshot()
	summary.Read = snap.Read
	summary.Written = snap.Written
	summary.Sinks = p.sinkSums

	runErr := p.failure()
	if runErr == nil {
		runErr = readErr
	}
	if runErr == nil {
		runErr = writeErr
	}
	metrics.RecordRun(p.cfg.Job, runErr, summary.Duration)
	if runErr != nil {
		return summary, runErr
	}

	p.logf("run %q done: sources=%d read=%d written=%d duration=%s",
		p.cfg.Job, summary.Sources, summary.Read, summary.Written,
		summary.Duration.Truncate(time.Millisecond))
	for _, s := range summary.Sinks {
		p.logf("sink %s: written=%d digest=%016x", s.Name, s.Written, s.Digest)
	}
	return summary, nil
}

// expandSources resolves configured inputs into concrete record files.
func (p *Processor) expandSources() ([]string, error) {
	var out []string
	for _, src := range p.cfg.Sources {
		files, err := dsfile.Expand(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceOpen, err)
		}
		out = append(out, files...)
	}
	return out, nil
}

// readTemplateHeader opens the first source just long enough to learn the
// run's authoritative schema.
func (p *Processor) readTemplateHeader(path string) (las.Header, error) {
	r, err := las.Open(path)
	if err != nil {
		return las.Header{}, fmt.Errorf("%w: %v", ErrSourceOpen, err)
	}
	hdr := r.Header()
	if err := r.Close(); err != nil {
		return las.Header{}, fmt.Errorf("%w: %v", ErrSourceOpen, err)
	}
	return hdr, nil
}
