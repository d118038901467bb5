package store

import (
	"context"
	"errors"
	"time"

	"pagestream/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the adapter needs
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// emitter sends query trace events when a tracer is configured
type emitter struct {
	tracer pg.QueryTracer
	slowUS int64
}

func (e emitter) emit(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if e.tracer == nil {
		return
	}
	elapsedUS := time.Since(start).Microseconds()
	e.tracer.OnQuery(ctx, pg.QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsedUS,
		Err:       err,
		Slow:      e.slowUS >= 0 && elapsedUS >= e.slowUS,
	})
}

// sqlQuerier implements RowQuerier over any pgx querier with tracing
type sqlQuerier struct {
	q querier
	emitter
}

func (s sqlQuerier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := s.q.Exec(ctx, sql, args...)
	s.emit(ctx, sql, args, start, err)
	return tag{ct}, err
}

func (s sqlQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := s.q.Query(ctx, sql, args...)
	s.emit(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

func (s sqlQuerier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	r := s.q.QueryRow(ctx, sql, args...)
	// emit after Scan completes so the event captures the scan error
	return row{
		r: r,
		after: func(scanErr error) {
			s.emit(ctx, sql, args, start, scanErr)
		},
	}
}

// pgAdapter wraps pg.PG and implements TxRunner
type pgAdapter struct {
	p *pg.PG
	sqlQuerier
}

func newPGAdapter(p *pg.PG) *pgAdapter {
	return &pgAdapter{
		p: p,
		sqlQuerier: sqlQuerier{
			q:       p.Pool,
			emitter: emitter{tracer: p.Tracer, slowUS: int64(p.SlowMs) * 1000},
		},
	}
}

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil || a.p == nil {
		return errors.New("pg: nil adapter")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *pgAdapter) Close() error { a.p.Close(); return nil }

func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.p.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	q := sqlQuerier{q: tx, emitter: a.emitter}
	if err := fn(q); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// adapters for pgx to our tiny Row/Rows/CommandTag

type row struct {
	r     pgx.Row
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct{ r pgx.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { x.r.Close() }
func (x rows) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = string(f[i].Name)
	}
	return out
}

type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }
