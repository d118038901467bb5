// Package pgstore serves cursor pages from Postgres using stable keyset
// pagination over (created_at, id)
package pgstore

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

// Pager pages a table ordered by (created_at, id). Query params become
// equality filters on same-named columns
type Pager[T any] struct {
	q         pstore.RowQuerier
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
// that must not include the key columns; those are appended automatically)
func New[T any](q pstore.RowQuerier, table, columns string, scan ScanFunc[T], opts ...Option[T]) (*Pager[T], error) {
	if q == nil {
		return nil, perr.InvalidArgf("pgstore: nil querier")
	}
	if !identRe.MatchString(table) {
		return nil, perr.InvalidArgf("pgstore: bad table name %q", table)
	}
	if strings.TrimSpace(columns) == "" {
		return nil, perr.InvalidArgf("pgstore: empty column list")
	}
	if scan == nil {
		return nil, perr.InvalidArgf("pgstore: nil scan func")
	}
	p := &Pager[T]{q: q, table: table, columns: columns, scan: scan}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// FetchPage implements store.Pager
func (p *Pager[T]) FetchPage(ctx context.Context, q store.Query) (page.PagedResult[T], error) {
	var zero page.PagedResult[T]

	if q.Limit <= 0 {
		return zero, perr.InvalidArgf("pgstore: non-positive limit %d", q.Limit)
	}

	where, args, err := p.buildWhere(q)
	if err != nil {
		return zero, err
	}

	// probe one past the page to learn whether a next page exists
	sql := fmt.Sprintf(
		"SELECT %s, created_at, id FROM %s%s ORDER BY created_at, id LIMIT $%d",
		p.columns, p.table, where, len(args)+1,
	)
	args = append(args, q.Limit+1)

	type keyed struct {
		item      T
		createdAt time.Time
		id        uuid.UUID
	}
	rows, err := pstore.Many(ctx, p.q, func(r pstore.Row) (keyed, error) {
		var k keyed
		var scanErr error
		k.item, k.createdAt, k.id, scanErr = p.scan(r)
		return k, scanErr
	}, sql, args...)
	if err != nil {
		return zero, perr.FromPostgresf(err, "pgstore: list %s", p.table)
	}

	hasNext := len(rows) > q.Limit
	if hasNext {
		rows = rows[:q.Limit]
	}

	items := make([]T, len(rows))
	for i, k := range rows {
		items[i] = k.item
	}

	info := page.PageInfo{
		HasNextPage:     hasNext,
		HasPreviousPage: q.After != nil,
	}
	if len(rows) > 0 {
		start := keyCursor(rows[0].createdAt, rows[0].id)
		end := keyCursor(rows[len(rows)-1].createdAt, rows[len(rows)-1].id)
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

// buildWhere assembles the predicate: param equality filters in sorted key
// order, then the keyset anchor
func (p *Pager[T]) buildWhere(q store.Query) (string, []any, error) {
	var parts []string
	var args []any

	keys := make([]string, 0, len(q.Params))
	for k := range q.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !identRe.MatchString(k) {
			return "", nil, perr.InvalidArgf("pgstore: bad filter column %q", k)
		}
		args = append(args, q.Params[k])
		parts = append(parts, fmt.Sprintf("%s = $%d", k, len(args)))
	}

	if q.After != nil {
		at, id, err := keyOf(q.After)
		if err != nil {
			return "", nil, err
		}
		args = append(args, at, id)
		parts = append(parts, fmt.Sprintf("(created_at, id) > ($%d, $%d)", len(args)-1, len(args)))
	}

	if len(parts) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (p *Pager[T]) count(ctx context.Context, q store.Query) (int, error) {
	where, args, err := p.buildWhere(q.WithoutAfter())
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf("SELECT count(*) FROM %s%s", p.table, where)
	n, err := pstore.Scalar[int64](ctx, p.q, sql, args...)
	if err != nil {
		return 0, perr.FromPostgresf(err, "pgstore: count %s", p.table)
	}
	return int(n), nil
}

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
		return zt, zid, perr.InvalidCursorf("pgstore: cursor missing %q", createdAtField)
	}
	s, ok := v.(string)
	if !ok {
		return zt, zid, perr.InvalidCursorf("pgstore: cursor %q is not a string", createdAtField)
	}
	at, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return zt, zid, perr.InvalidCursorf("pgstore: cursor %q: %v", createdAtField, err)
	}

	v, ok = c.Field(idField)
	if !ok {
		return zt, zid, perr.InvalidCursorf("pgstore: cursor missing %q", idField)
	}
	s, ok = v.(string)
	if !ok {
		return zt, zid, perr.InvalidCursorf("pgstore: cursor %q is not a string", idField)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return zt, zid, perr.InvalidCursorf("pgstore: cursor %q: %v", idField, err)
	}

	return at, id, nil
}
