package pgstore

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"pagestream/cursor"
	perr "pagestream/internal/platform/errors"
	pstore "pagestream/internal/platform/store"
	"pagestream/store"
)

type note struct {
	Body string
}

func scanNote(r pstore.Row) (note, time.Time, uuid.UUID, error) {
	var n note
	var at time.Time
	var id uuid.UUID
	err := r.Scan(&n.Body, &at, &id)
	return n, at, id, err
}

// fakeRows serves canned (body, created_at, id) tuples
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

func assignAny(dest, val any) error {
	switch d := dest.(type) {
	case *string:
		*d = val.(string)
	case *int64:
		*d = val.(int64)
	case *time.Time:
		*d = val.(time.Time)
	case *uuid.UUID:
		*d = val.(uuid.UUID)
	default:
		return fmt.Errorf("unsupported scan dest %T", dest)
	}
	return nil
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan arity: want %d got %d", len(row), len(dest))
	}
	for i := range dest {
		if err := assignAny(dest[i], row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRows) Err() error        { return nil }
func (f *fakeRows) Close()            {}
func (f *fakeRows) Columns() []string { return nil }

type fakeRow struct{ val any }

func (f fakeRow) Scan(dest ...any) error { return assignAny(dest[0], f.val) }

// fakeQuerier records statements and serves canned results
type fakeQuerier struct {
	rows   [][]any
	scalar any
	err    error

	sqls  []string
	argss [][]any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pstore.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	f.argss = append(f.argss, args)
	return nil, f.err
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pstore.Rows, error) {
	f.sqls = append(f.sqls, sql)
	f.argss = append(f.argss, args)
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{data: f.rows}, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pstore.Row {
	f.sqls = append(f.sqls, sql)
	f.argss = append(f.argss, args)
	return fakeRow{val: f.scalar}
}

func rowAt(body string, sec int) []any {
	at := time.Date(2026, 8, 1, 0, 0, sec, 0, time.UTC)
	return []any{body, at, uuid.NewSHA1(uuid.NameSpaceOID, []byte(body))}
}

func newNotePager(t *testing.T, q pstore.RowQuerier, opts ...Option[note]) *Pager[note] {
	t.Helper()
	p, err := New(q, "notes", "body", scanNote, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewValidation(t *testing.T) {
	q := &fakeQuerier{}
	cases := []struct {
		name string
		fn   func() error
	}{
		{"nil querier", func() error { _, err := New(nil, "notes", "body", scanNote); return err }},
		{"bad table", func() error { _, err := New[note](q, "notes; DROP TABLE x", "body", scanNote); return err }},
		{"empty columns", func() error { _, err := New[note](q, "notes", "  ", scanNote); return err }},
		{"nil scan", func() error { _, err := New[note](q, "notes", "body", nil); return err }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.fn(); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestFetchUnanchored(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{rowAt("a", 1), rowAt("b", 2)}}
	p := newNotePager(t, q)

	res, err := p.FetchPage(context.Background(), store.Query{Limit: 5})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if res.Len() != 2 || res.Items()[0].Body != "a" {
		t.Fatalf("items = %v", res.Items())
	}
	if res.HasMore() || res.PageInfo().HasPreviousPage {
		t.Fatalf("two rows under a limit of five should be the whole set")
	}

	sql := q.sqls[0]
	if !strings.Contains(sql, "ORDER BY created_at, id") {
		t.Fatalf("missing keyset order: %s", sql)
	}
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("unanchored unfiltered fetch should have no WHERE: %s", sql)
	}
	// probe limit
	if got := q.argss[0][len(q.argss[0])-1]; got != 6 {
		t.Fatalf("probe limit = %v", got)
	}
}

func TestFetchProbeTrimsAndSetsNext(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{rowAt("a", 1), rowAt("b", 2), rowAt("c", 3)}}
	p := newNotePager(t, q)

	res, err := p.FetchPage(context.Background(), store.Query{Limit: 2})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if res.Len() != 2 || !res.HasMore() {
		t.Fatalf("probe handling: len=%d hasMore=%v", res.Len(), res.HasMore())
	}

	// the end cursor anchors at row "b", not the probe row
	end := res.NextCursor()
	if end == nil {
		t.Fatalf("no end cursor")
	}
	v, _ := end.Field("created_at")
	at, err := time.Parse(time.RFC3339Nano, v.(string))
	if err != nil || at.Second() != 2 {
		t.Fatalf("end cursor anchors at %v (%v)", v, err)
	}
}

func TestFetchAnchored(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{rowAt("c", 3)}}
	p := newNotePager(t, q)

	at := time.Date(2026, 8, 1, 0, 0, 2, 0, time.UTC)
	id := uuid.New()
	after := keyCursor(at, id)

	res, err := p.FetchPage(context.Background(), store.Query{Limit: 2}.WithAfter(after))
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if !res.PageInfo().HasPreviousPage {
		t.Fatalf("anchored fetch should report a previous page")
	}

	sql := q.sqls[0]
	if !strings.Contains(sql, "(created_at, id) > ($1, $2)") {
		t.Fatalf("missing keyset anchor: %s", sql)
	}
	args := q.argss[0]
	gotAt, ok := args[0].(time.Time)
	if !ok || !gotAt.Equal(at) {
		t.Fatalf("anchor time arg = %v", args[0])
	}
	if gotID, ok := args[1].(uuid.UUID); !ok || gotID != id {
		t.Fatalf("anchor id arg = %v", args[1])
	}
}

func TestFetchParamFilters(t *testing.T) {
	q := &fakeQuerier{}
	p := newNotePager(t, q)

	qry := store.Query{Limit: 2}.WithParam("owner", "alice").WithParam("archived", false)
	if _, err := p.FetchPage(context.Background(), qry); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	// filters appear in sorted key order
	sql := q.sqls[0]
	if !strings.Contains(sql, "WHERE archived = $1 AND owner = $2") {
		t.Fatalf("filter clause wrong: %s", sql)
	}

	bad := store.Query{Limit: 2}.WithParam("owner; --", "x")
	if _, err := p.FetchPage(context.Background(), bad); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("bad filter column accepted: %v", err)
	}
}

func TestFetchTotalCount(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{rowAt("a", 1)}, scalar: int64(41)}
	p := newNotePager(t, q, WithTotalCount[note]())

	res, err := p.FetchPage(context.Background(), store.Query{Limit: 5})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if total, ok := res.TotalCount(); !ok || total != 41 {
		t.Fatalf("total = %d, %v", total, ok)
	}
	if len(q.sqls) != 2 || !strings.Contains(q.sqls[1], "count(*)") {
		t.Fatalf("expected a count query, got %v", q.sqls)
	}

	// anchored fetches skip the count
	q.sqls = nil
	after := keyCursor(time.Now(), uuid.New())
	res, err = p.FetchPage(context.Background(), store.Query{Limit: 5}.WithAfter(after))
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if _, ok := res.TotalCount(); ok || len(q.sqls) != 1 {
		t.Fatalf("anchored fetch should skip the count query")
	}
}

func TestFetchRejectsBadCursors(t *testing.T) {
	p := newNotePager(t, &fakeQuerier{})
	cases := []struct {
		name  string
		after cursor.Cursor
	}{
		{"missing created_at", cursor.MustNew(map[string]any{"id": uuid.New().String()})},
		{"missing id", cursor.MustNew(map[string]any{"created_at": "2026-08-01T00:00:00Z"})},
		{"bad timestamp", cursor.MustNew(map[string]any{"created_at": "yesterday", "id": uuid.New().String()})},
		{"bad uuid", cursor.MustNew(map[string]any{"created_at": "2026-08-01T00:00:00Z", "id": "nope"})},
		{"numeric created_at", cursor.MustNew(map[string]any{"created_at": 12345, "id": uuid.New().String()})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := p.FetchPage(context.Background(), store.Query{Limit: 2}.WithAfter(c.after))
			if !cursor.IsInvalid(err) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestFetchClassifiesPgErrors(t *testing.T) {
	q := &fakeQuerier{err: &pgconn.PgError{Code: "40001", Message: "serialization failure"}}
	p := newNotePager(t, q)

	_, err := p.FetchPage(context.Background(), store.Query{Limit: 2})
	if !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("err = %v", err)
	}
	if !perr.Retryable(err) {
		t.Fatalf("serialization failure should be retryable")
	}
}

func TestCursorRoundTripKeepsAnchors(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 15, 123456789, time.UTC)
	id := uuid.New()
	c := keyCursor(at, id)

	dec, err := cursor.Decode(c.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	gotAt, gotID, err := keyOf(&dec)
	if err != nil {
		t.Fatalf("keyOf: %v", err)
	}
	if !gotAt.Equal(at) || gotID != id {
		t.Fatalf("round trip lost the anchor: %v %v", gotAt, gotID)
	}
}
