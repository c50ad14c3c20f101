package pipeline

import (
	"context"

	"laspipe/internal/las"
	"laspipe/internal/storage/postgres"
)

// appender is the narrow write surface a sink writer drives. File sinks wrap
// the record codec; relational sinks batch rows and COPY them. Each appender
// is owned by exactly one writer goroutine.
type appender interface {
	Append(ctx context.Context, p *las.Point) error
	Close(ctx context.Context) error
}

// fileAppender writes records through the codec.
type fileAppender struct {
	w *las.Writer
}

func (a fileAppender) Append(_ context.Context, p *las.Point) error { return a.w.Append(p) }
func (a fileAppender) Close(context.Context) error                  { return a.w.Close() }

// dbAppender accumulates records and flushes them to Postgres in COPY
// batches of batchSize.
type dbAppender struct {
	repo      *postgres.Repository
	closeRepo func()
	batchSize int
	buf       []las.Point
}

func newDBAppender(ctx context.Context, cfg postgres.Config, autoCreate bool, batchSize int) (*dbAppender, error) {
	repo, closeRepo, err := postgres.NewRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if autoCreate {
		if err := repo.EnsureTable(ctx); err != nil {
			closeRepo()
			return nil, err
		}
	}
	return &dbAppender{
		repo:      repo,
		closeRepo: closeRepo,
		batchSize: batchSize,
		buf:       make([]las.Point, 0, batchSize),
	}, nil
}

func (a *dbAppender) Append(ctx context.Context, p *las.Point) error {
	a.buf = append(a.buf, *p)
	if len(a.buf) >= a.batchSize {
		return a.flush(ctx)
	}
	return nil
}

func (a *dbAppender) flush(ctx context.Context) error {
	if len(a.buf) == 0 {
		return nil
	}
	_, err := a.repo.CopyPoints(ctx, a.buf)
	a.buf = a.buf[:0]
	return err
}

func (a *dbAppender) Close(ctx context.Context) error {
	defer a.closeRepo()
	return a.flush(ctx)
}
