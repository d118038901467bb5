package feed

import (
	"context"
	"strings"
	"testing"

	pstore "pagestream/internal/platform/store"
)

type seedTag struct{}

func (seedTag) String() string      { return "INSERT 0 1" }
func (seedTag) RowsAffected() int64 { return 1 }

// fakeTxRunner records the statements SeedStores issues and hands its own
// querier to the transaction body
type fakeTxRunner struct {
	txCalls int
	execs   []string
}

func (f *fakeTxRunner) Exec(_ context.Context, sql string, _ ...any) (pstore.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return seedTag{}, nil
}

func (f *fakeTxRunner) Query(context.Context, string, ...any) (pstore.Rows, error) {
	return nil, nil
}

func (f *fakeTxRunner) QueryRow(context.Context, string, ...any) pstore.Row { return nil }

func (f *fakeTxRunner) Tx(_ context.Context, fn func(q pstore.RowQuerier) error) error {
	f.txCalls++
	return fn(f)
}

type fakeInserter struct {
	table string
	rows  [][]any
}

func (f *fakeInserter) Insert(_ context.Context, table string, rows [][]any) error {
	f.table = table
	f.rows = rows
	return nil
}

func (f *fakeInserter) Query(context.Context, string, ...any) (pstore.Rows, error) {
	return nil, nil
}

func (f *fakeInserter) Close() error { return nil }

func TestSeedStoresWritesBothBackends(t *testing.T) {
	pgf := &fakeTxRunner{}
	chf := &fakeInserter{}
	svc := NewService(Options{
		Store:     &pstore.Store{PG: pgf, CH: chf},
		SeedItems: 3,
	})
	defer svc.Shutdown()

	if err := svc.SeedStores(context.Background()); err != nil {
		t.Fatalf("SeedStores: %v", err)
	}

	if pgf.txCalls != 1 {
		t.Fatalf("postgres seed should run in one transaction, got %d", pgf.txCalls)
	}
	if len(pgf.execs) != 3 || !strings.Contains(pgf.execs[0], "INSERT INTO feed_items") {
		t.Fatalf("postgres seed statements: %v", pgf.execs)
	}
	if chf.table != "feed_items" || len(chf.rows) != 3 {
		t.Fatalf("clickhouse seed: table=%q rows=%d", chf.table, len(chf.rows))
	}
	if len(chf.rows[0]) != 3 {
		t.Fatalf("clickhouse row width = %d, want id, body, created_at", len(chf.rows[0]))
	}
}

func TestSeedStoresNoopWithoutStore(t *testing.T) {
	svc := NewService(Options{SeedItems: 2})
	defer svc.Shutdown()
	if err := svc.SeedStores(context.Background()); err != nil {
		t.Fatalf("SeedStores without a store: %v", err)
	}
}
