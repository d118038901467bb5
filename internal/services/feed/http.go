package feed

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pagestream/cursor"
	perr "pagestream/internal/platform/errors"
	"pagestream/internal/platform/logger"
	pnet "pagestream/internal/platform/net"
	phttp "pagestream/internal/platform/net/http"
	"pagestream/internal/platform/net/http/bind"
	"pagestream/store"
)

// Mount wires the feed routes onto the mux
func Mount(m *chi.Mux, opts Options) *Service {
	s := NewService(opts)

	m.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession())
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(sessionContext)
			r.Get("/", s.handleGetSession())
			r.Post("/more", s.handleAction("more", (*sessionRef).loadMore))
			r.Post("/refresh", s.handleAction("refresh", (*sessionRef).refresh))
			r.Post("/retry", s.handleAction("retry", (*sessionRef).retry))
			r.Post("/visible", s.handleVisible())
			r.Delete("/", s.handleCloseSession())
		})

		r.Get("/items", s.handleItems())
	})

	m.Get("/healthz", s.handleHealth())
	return s
}

// sessionRef gives the shared action handler method values to dispatch on
type sessionRef struct{ sess *session }

func (ref *sessionRef) loadMore() { ref.sess.ctrl.LoadMore() }
func (ref *sessionRef) refresh()  { ref.sess.ctrl.Refresh() }
func (ref *sessionRef) retry()    { ref.sess.ctrl.Retry() }

// sessionContext lifts the session id path param into the request context so
// downstream handlers and logs can pick it up
func sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chi.URLParam(r, "id"); id != "" {
			ctx := pnet.WithRequest(r.Context(), "", id)
			r = r.WithContext(logger.WithSession(ctx, id, ""))
		}
		next.ServeHTTP(w, r)
	})
}

func sessionIDFrom(r *http.Request) (uuid.UUID, error) {
	raw := pnet.SessionID(r.Context())
	if raw == "" {
		raw = chi.URLParam(r, "id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, perr.InvalidArgf("feed: bad session id %q", raw)
	}
	return id, nil
}

func (s *Service) sessionFrom(r *http.Request) (*session, error) {
	id, err := sessionIDFrom(r)
	if err != nil {
		return nil, err
	}
	return s.sessions.get(id)
}

func (s *Service) handleCreateSession() http.HandlerFunc {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		req, err := bind.ParseJSON[CreateSessionRequest](r)
		if err != nil {
			return phttp.Error(err)
		}
		sess, err := s.openSession(req)
		if err != nil {
			return phttp.Error(err)
		}
		return phttp.Created(SessionResponse{ID: sess.id.String(), Backend: sess.backend})
	})
}

func (s *Service) handleGetSession() http.HandlerFunc {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		sess, err := s.sessionFrom(r)
		if err != nil {
			return phttp.Error(err)
		}
		return phttp.OK(snapshot(sess))
	})
}

// handleAction runs a state-machine entry point and returns the new snapshot
func (s *Service) handleAction(name string, act func(*sessionRef)) http.HandlerFunc {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		sess, err := s.sessionFrom(r)
		if err != nil {
			return phttp.Error(err)
		}
		act(&sessionRef{sess: sess})
		logger.C(r.Context()).Debug().Str("action", name).Msg("session action")
		return phttp.OK(snapshot(sess))
	})
}

func (s *Service) handleVisible() http.HandlerFunc {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		sess, err := s.sessionFrom(r)
		if err != nil {
			return phttp.Error(err)
		}
		req, err := bind.ParseJSON[VisibleRequest](r)
		if err != nil {
			return phttp.Error(err)
		}
		sess.ctrl.OnItemVisible(req.Index)
		return phttp.OK(snapshot(sess))
	})
}

func (s *Service) handleCloseSession() http.HandlerFunc {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		id, err := sessionIDFrom(r)
		if err != nil {
			return phttp.Error(err)
		}
		if err := s.sessions.remove(id); err != nil {
			return phttp.Error(err)
		}
		return phttp.NoContent()
	})
}

// handleItems serves one page directly, bypassing sessions. The cursor query
// param carries the opaque position from a previous response
func (s *Service) handleItems() http.HandlerFunc {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		pager, err := s.pagerFor(r.URL.Query().Get("backend"))
		if err != nil {
			return phttp.Error(err)
		}

		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 1 || limit > 500 {
				return phttp.Error(perr.InvalidArgf("feed: bad limit %q", raw))
			}
		}

		q := store.Query{Limit: limit}
		if raw := r.URL.Query().Get("cursor"); raw != "" {
			c, err := cursor.Decode(raw)
			if err != nil {
				return phttp.Error(err)
			}
			q = q.WithAfter(c)
		}

		res, err := pager.FetchPage(r.Context(), q)
		if err != nil {
			return phttp.Error(err)
		}

		pg := phttp.Page{
			PageSize: limit,
			HasMore:  res.HasMore(),
			Total:    res.PageInfo().TotalCount,
		}
		if c := res.NextCursor(); c != nil {
			pg.NextCursor = c.Encode()
		}
		return phttp.List(res.Items(), pg)
	})
}

func (s *Service) handleHealth() http.HandlerFunc {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		if s.st != nil {
			if err := s.st.Guard(r.Context()); err != nil {
				return phttp.Error(perr.Unavailablef("feed: %v", err))
			}
		}
		return phttp.OK(map[string]any{
			"sessions": s.sessions.len(),
			"seeded":   s.mem.Len(),
		})
	})
}
