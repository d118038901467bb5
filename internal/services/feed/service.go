package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pagestream/internal/platform/config"
	perr "pagestream/internal/platform/errors"
	"pagestream/internal/platform/logger"
	pstore "pagestream/internal/platform/store"
	"pagestream/page"
	"pagestream/paginate"
	"pagestream/store"
	"pagestream/store/chstore"
	"pagestream/store/memstore"
	"pagestream/store/pgstore"
)

// Options configures the feed service
type Options struct {
	Config config.Conf
	Store  *pstore.Store
	Logger *logger.Logger

	// SeedItems sizes the in-memory dataset, 0 means 250
	SeedItems int
}

// Service owns the backends and the open sessions
type Service struct {
	cfg      config.Conf
	log      *logger.Logger
	st       *pstore.Store
	mem      *memstore.Store[Item]
	seed     []Item
	sessions *registry
}

// NewService builds a Service with a seeded in-memory backend. Postgres and
// clickhouse backends are available when opts.Store carries them
func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Named("feed")
	}
	n := opts.SeedItems
	if n <= 0 {
		n = 250
	}
	items := seedItems(n)
	return &Service{
		cfg:      opts.Config,
		log:      log,
		st:       opts.Store,
		mem:      memstore.New(items),
		seed:     items,
		sessions: newRegistry(),
	}
}

// SeedStores writes the demo dataset into every configured database backend
// so the postgres and clickhouse pagers have rows to serve. Postgres rows go
// through one transaction; clickhouse rows go through one batch insert
func (s *Service) SeedStores(ctx context.Context) error {
	if s.st == nil {
		return nil
	}
	if s.st.PG != nil {
		err := s.st.PG.Tx(ctx, func(q pstore.RowQuerier) error {
			for _, it := range s.seed {
				_, err := q.Exec(ctx,
					`INSERT INTO feed_items (id, body, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
					it.ID, it.Body, it.CreatedAt,
				)
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return perr.DBf("feed: seed postgres: %v", err)
		}
		s.log.Info().Int("items", len(s.seed)).Msg("postgres backend seeded")
	}
	if s.st.CH != nil {
		rows := make([][]any, 0, len(s.seed))
		for _, it := range s.seed {
			rows = append(rows, []any{it.ID, it.Body, it.CreatedAt})
		}
		if err := s.st.CH.Insert(ctx, "feed_items", rows); err != nil {
			return perr.DBf("feed: seed clickhouse: %v", err)
		}
		s.log.Info().Int("items", len(s.seed)).Msg("clickhouse backend seeded")
	}
	return nil
}

// Shutdown disposes every open session
func (s *Service) Shutdown() {
	s.sessions.disposeAll()
}

// pagerFor selects the backend a session or direct fetch reads from
func (s *Service) pagerFor(backend string) (store.Pager[Item], error) {
	switch backend {
	case "", "memory":
		return s.mem, nil
	case "postgres":
		if s.st == nil || s.st.PG == nil {
			return nil, perr.Unavailablef("feed: postgres backend not configured")
		}
		return pgstore.New(s.st.PG, "feed_items", "body", scanItemRow, pgstore.WithTotalCount[Item]())
	case "clickhouse":
		if s.st == nil || s.st.CH == nil {
			return nil, perr.Unavailablef("feed: clickhouse backend not configured")
		}
		return chstore.New(s.st.CH, "feed_items", "body", scanItemRow, chstore.WithTotalCount[Item]())
	default:
		return nil, perr.InvalidArgf("feed: unknown backend %q", backend)
	}
}

// openSession builds a controller over the chosen backend and starts the
// initial load
func (s *Service) openSession(req CreateSessionRequest) (*session, error) {
	pager, err := s.pagerFor(req.Backend)
	if err != nil {
		return nil, err
	}

	maxPages := req.MaxPagesInMemory
	if maxPages == 0 {
		maxPages = 10
	}
	cfg, err := paginate.NewStreamingConfig(
		req.PageSize,
		req.PrefetchDistance,
		maxPages,
		time.Duration(req.DebounceMs)*time.Millisecond,
	)
	if err != nil {
		return nil, err
	}

	q := store.Query{}
	for k, v := range req.Params {
		q = q.WithParam(k, v)
	}

	ctrl, err := paginate.New(pager, q, cfg)
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:      uuid.New(),
		backend: backendName(req.Backend),
		ctrl:    ctrl,
		created: time.Now(),
	}
	s.sessions.add(sess)
	ctrl.Refresh()

	s.log.Info().
		Str("session_id", sess.id.String()).
		Str("backend", sess.backend).
		Int("page_size", req.PageSize).
		Msg("session opened")
	return sess, nil
}

func backendName(b string) string {
	if b == "" {
		return "memory"
	}
	return b
}

// snapshot renders the controller's current state for the wire
func snapshot(sess *session) StateResponse {
	st := sess.ctrl.CurrentState()

	resp := StateResponse{
		ID:        sess.id.String(),
		Phase:     st.Phase().String(),
		Items:     st.Items(),
		ItemCount: st.ItemCount(),
		HasMore:   st.HasMore(),
	}
	if resp.Items == nil {
		resp.Items = []Item{}
	}
	if err := st.Err(); err != nil {
		resp.Error = perr.WireFrom(err).Message
	}
	if info, ok := st.PageInfo(); ok {
		resp.Page = pageBlock(info)
	}
	return resp
}

func pageBlock(info page.PageInfo) *PageBlock {
	b := &PageBlock{
		HasMore: info.HasNextPage,
		Total:   info.TotalCount,
	}
	if info.EndCursor != nil {
		b.NextCursor = info.EndCursor.Encode()
	}
	return b
}

// seedItems builds a deterministic demo dataset
func seedItems(n int) []Item {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Item, n)
	for i := range out {
		body := fmt.Sprintf("story #%03d", i)
		out[i] = Item{
			ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(body)).String(),
			Body:      body,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

// scanItemRow adapts a (body, created_at, id) row to an Item
func scanItemRow(r pstore.Row) (Item, time.Time, uuid.UUID, error) {
	var body string
	var at time.Time
	var id uuid.UUID
	if err := r.Scan(&body, &at, &id); err != nil {
		return Item{}, at, id, err
	}
	return Item{ID: id.String(), Body: body, CreatedAt: at}, at, id, nil
}
