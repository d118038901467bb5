package chstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"pagestream/cursor"
	perr "pagestream/internal/platform/errors"
	pstore "pagestream/internal/platform/store"
	"pagestream/store"
)

type event struct {
	Kind string
}

func scanEvent(r pstore.Row) (event, time.Time, uuid.UUID, error) {
	var e event
	var at time.Time
	var id uuid.UUID
	err := r.Scan(&e.Kind, &at, &id)
	return e, at, id, err
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.data) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan arity: want %d got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int64:
			*p = row[i].(int64)
		case *time.Time:
			*p = row[i].(time.Time)
		case *uuid.UUID:
			*p = row[i].(uuid.UUID)
		default:
			return fmt.Errorf("unsupported scan dest %T", d)
		}
	}
	return nil
}

func (f *fakeRows) Err() error        { return nil }
func (f *fakeRows) Close()            {}
func (f *fakeRows) Columns() []string { return nil }

// fakeCH serves one canned row set per Query call, in order
type fakeCH struct {
	results [][][]any
	err     error
	sqls    []string
	argss   [][]any
}

func (f *fakeCH) Insert(context.Context, string, [][]any) error { return nil }

func (f *fakeCH) Query(_ context.Context, sql string, args ...any) (pstore.Rows, error) {
	f.sqls = append(f.sqls, sql)
	f.argss = append(f.argss, args)
	if f.err != nil {
		return nil, f.err
	}
	var data [][]any
	if len(f.results) > 0 {
		data = f.results[0]
		f.results = f.results[1:]
	}
	return &fakeRows{data: data}, nil
}

func (f *fakeCH) Close() error { return nil }

func rowAt(kind string, sec int) []any {
	at := time.Date(2026, 8, 1, 0, 0, sec, 0, time.UTC)
	return []any{kind, at, uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind))}
}

func newEventPager(t *testing.T, ch pstore.Clickhouse, opts ...Option[event]) *Pager[event] {
	t.Helper()
	p, err := New(ch, "events", "kind", scanEvent, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewValidation(t *testing.T) {
	ch := &fakeCH{}
	if _, err := New(nil, "events", "kind", scanEvent); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("nil seam: %v", err)
	}
	if _, err := New[event](ch, "e v e", "kind", scanEvent); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("bad table: %v", err)
	}
	if _, err := New[event](ch, "events", "kind", nil); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("nil scan: %v", err)
	}
}

func TestFetchProbeAndOrder(t *testing.T) {
	ch := &fakeCH{results: [][][]any{{rowAt("push", 1), rowAt("fork", 2), rowAt("star", 3)}}}
	p := newEventPager(t, ch)

	res, err := p.FetchPage(context.Background(), store.Query{Limit: 2})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if res.Len() != 2 || !res.HasMore() {
		t.Fatalf("probe handling: len=%d hasMore=%v", res.Len(), res.HasMore())
	}
	if res.Items()[0].Kind != "push" {
		t.Fatalf("items = %v", res.Items())
	}

	sql := ch.sqls[0]
	if !strings.Contains(sql, "ORDER BY created_at, id LIMIT ?") {
		t.Fatalf("sql = %s", sql)
	}
	if got := ch.argss[0][len(ch.argss[0])-1]; got != 3 {
		t.Fatalf("probe limit = %v", got)
	}
}

func TestFetchAnchoredAndFiltered(t *testing.T) {
	ch := &fakeCH{results: [][][]any{{rowAt("star", 3)}}}
	p := newEventPager(t, ch)

	at := time.Date(2026, 8, 1, 0, 0, 2, 0, time.UTC)
	id := uuid.New()
	q := store.Query{Limit: 2}.WithAfter(keyCursor(at, id)).WithParam("repo", "acme/infra")

	res, err := p.FetchPage(context.Background(), q)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if !res.PageInfo().HasPreviousPage {
		t.Fatalf("anchored fetch should report a previous page")
	}

	sql := ch.sqls[0]
	if !strings.Contains(sql, "WHERE repo = ? AND (created_at, id) > (?, ?)") {
		t.Fatalf("sql = %s", sql)
	}
	args := ch.argss[0]
	if args[0] != "acme/infra" {
		t.Fatalf("filter arg = %v", args[0])
	}
	if gotAt, ok := args[1].(time.Time); !ok || !gotAt.Equal(at) {
		t.Fatalf("anchor time arg = %v", args[1])
	}
}

func TestFetchTotalCount(t *testing.T) {
	ch := &fakeCH{results: [][][]any{
		{rowAt("push", 1)},
		{{int64(7)}},
	}}
	p := newEventPager(t, ch, WithTotalCount[event]())

	res, err := p.FetchPage(context.Background(), store.Query{Limit: 5})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if total, ok := res.TotalCount(); !ok || total != 7 {
		t.Fatalf("total = %d, %v", total, ok)
	}
	if len(ch.sqls) != 2 || !strings.Contains(ch.sqls[1], "count()") {
		t.Fatalf("expected a count query, got %v", ch.sqls)
	}
}

func TestFetchRejectsBadCursor(t *testing.T) {
	p := newEventPager(t, &fakeCH{})
	after := cursor.MustNew(map[string]any{"created_at": "not-a-time", "id": uuid.New().String()})
	_, err := p.FetchPage(context.Background(), store.Query{Limit: 2}.WithAfter(after))
	if !cursor.IsInvalid(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchWrapsBackendErrors(t *testing.T) {
	boom := errors.New("ch down")
	p := newEventPager(t, &fakeCH{err: boom})
	_, err := p.FetchPage(context.Background(), store.Query{Limit: 2})
	if !perr.IsCode(err, perr.ErrorCodeDB) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
