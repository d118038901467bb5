// Package chstore serves cursor pages from ClickHouse using keyset
// pagination over (created_at, id), mirroring pgstore for columnar datasets
package chstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pagestream/cursor"
	perr "pagestream/internal/platform/errors"
	pstore "pagestream/internal/platform/store"
	"pagestream/page"
	"pagestream/store"
)

const (
	createdAtField = "created_at"
	idField        = "id"
)

// ScanFunc scans one result row: the configured columns first, then the
// trailing created_at and id key columns
type ScanFunc[T any] func(r pstore.Row) (item T, createdAt time.Time, id uuid.UUID, err error)

// Pager pages a ClickHouse table ordered by (created_at, id). Query params
// become equality filters on same-named columns
type Pager[T any] struct {
	ch        pstore.Clickhouse
	table     string
	columns   string
	scan      ScanFunc[T]
	withTotal bool
}

// Option mutates a Pager during New
type Option[T any] func(*Pager[T])

// WithTotalCount makes un-anchored fetches also run a count query and
// populate PageInfo.TotalCount
func WithTotalCount[T any]() Option[T] {
	return func(p *Pager[T]) { p.withTotal = true }
}

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New builds a Pager over table selecting columns (a comma-separated list
// without the key columns; those are appended automatically)
func New[T any](ch pstore.Clickhouse, table, columns string, scan ScanFunc[T], opts ...Option[T]) (*Pager[T], error) {
	if ch == nil {
		return nil, perr.InvalidArgf("chstore: nil clickhouse seam")
	}
	if !identRe.MatchString(table) {
		return nil, perr.InvalidArgf("chstore: bad table name %q", table)
	}
	if strings.TrimSpace(columns) == "" {
		return nil, perr.InvalidArgf("chstore: empty column list")
	}
	if scan == nil {
		return nil, perr.InvalidArgf("chstore: nil scan func")
	}
	p := &Pager[T]{ch: ch, table: table, columns: columns, scan: scan}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// FetchPage implements store.Pager
func (p *Pager[T]) FetchPage(ctx context.Context, q store.Query) (page.PagedResult[T], error) {
	var zero page.PagedResult[T]

	if q.Limit <= 0 {
		return zero, perr.InvalidArgf("chstore: non-positive limit %d", q.Limit)
	}

	where, args, err := buildWhere(q)
	if err != nil {
		return zero, err
	}

	sql := fmt.Sprintf(
		"SELECT %s, created_at, id FROM %s%s ORDER BY created_at, id LIMIT ?",
		p.columns, p.table, where,
	)
	args = append(args, q.Limit+1)

	rows, err := p.ch.Query(ctx, sql, args...)
	if err != nil {
		return zero, perr.Wrapf(err, perr.ErrorCodeDB, "chstore: list %s", p.table)
	}
	defer rows.Close()

	type keyed struct {
		item      T
		createdAt time.Time
		id        uuid.UUID
	}
	var got []keyed
	for rows.Next() {
		var k keyed
		k.item, k.createdAt, k.id, err = p.scan(rowShim{rows})
		if err != nil {
			return zero, perr.Wrapf(err, perr.ErrorCodeDB, "chstore: scan %s", p.table)
		}
		got = append(got, k)
	}
	if err := rows.Err(); err != nil {
		return zero, perr.Wrapf(err, perr.ErrorCodeDB, "chstore: iterate %s", p.table)
	}

	hasNext := len(got) > q.Limit
	if hasNext {
		got = got[:q.Limit]
	}

	items := make([]T, len(got))
	for i, k := range got {
		items[i] = k.item
	}

	info := page.PageInfo{
		HasNextPage:     hasNext,
		HasPreviousPage: q.After != nil,
	}
	if len(got) > 0 {
		start := keyCursor(got[0].createdAt, got[0].id)
		end := keyCursor(got[len(got)-1].createdAt, got[len(got)-1].id)
		info.StartCursor = &start
		info.EndCursor = &end
	}

	if p.withTotal && q.After == nil {
		total, err := p.count(ctx, q)
		if err != nil {
			return zero, err
		}
		info.TotalCount = page.Count(total)
	}

	return page.NewPagedResult(items, info), nil
}

func (p *Pager[T]) count(ctx context.Context, q store.Query) (int, error) {
	where, args, err := buildWhere(q.WithoutAfter())
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf("SELECT toInt64(count()) FROM %s%s", p.table, where)
	rows, err := p.ch.Query(ctx, sql, args...)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeDB, "chstore: count %s", p.table)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, perr.Wrapf(err, perr.ErrorCodeDB, "chstore: count %s", p.table)
		}
		return 0, perr.DBf("chstore: count %s returned no rows", p.table)
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeDB, "chstore: count %s", p.table)
	}
	return int(n), rows.Err()
}

// buildWhere assembles the predicate: param equality filters in sorted key
// order, then the keyset anchor
func buildWhere(q store.Query) (string, []any, error) {
	var parts []string
	var args []any

	keys := make([]string, 0, len(q.Params))
	for k := range q.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !identRe.MatchString(k) {
			return "", nil, perr.InvalidArgf("chstore: bad filter column %q", k)
		}
		args = append(args, q.Params[k])
		parts = append(parts, k+" = ?")
	}

	if q.After != nil {
		at, id, err := keyOf(q.After)
		if err != nil {
			return "", nil, err
		}
		args = append(args, at, id)
		parts = append(parts, "(created_at, id) > (?, ?)")
	}

	if len(parts) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// rowShim narrows Rows to the single-row scan contract
type rowShim struct{ rows pstore.Rows }

func (r rowShim) Scan(dest ...any) error { return r.rows.Scan(dest...) }

// keyCursor encodes a keyset position as a cursor
func keyCursor(at time.Time, id uuid.UUID) cursor.Cursor {
	return cursor.MustNew(map[string]any{
		createdAtField: at.UTC().Format(time.RFC3339Nano),
		idField:        id.String(),
	})
}

// keyOf decodes and validates the keyset anchor carried by a cursor
func keyOf(c *cursor.Cursor) (time.Time, uuid.UUID, error) {
	var zt time.Time
	var zid uuid.UUID

	v, ok := c.Field(createdAtField)
	if !ok {
		return zt, zid, perr.InvalidCursorf("chstore: cursor missing %q", createdAtField)
	}
	s, ok := v.(string)
	if !ok {
		return zt, zid, perr.InvalidCursorf("chstore: cursor %q is not a string", createdAtField)
	}
	at, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return zt, zid, perr.InvalidCursorf("chstore: cursor %q: %v", createdAtField, err)
	}

	v, ok = c.Field(idField)
	if !ok {
		return zt, zid, perr.InvalidCursorf("chstore: cursor missing %q", idField)
	}
	s, ok = v.(string)
	if !ok {
		return zt, zid, perr.InvalidCursorf("chstore: cursor %q is not a string", idField)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return zt, zid, perr.InvalidCursorf("chstore: cursor %q: %v", idField, err)
	}

	return at, id, nil
}
