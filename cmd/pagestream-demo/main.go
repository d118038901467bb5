// Command pagestream-demo serves paginated item feeds over HTTP. It keeps an
// in-memory dataset by default and adds postgres and clickhouse backends when
// DEMO_PGSQL_DBURL / DEMO_CLICKHOUSE_DBURL are set; DEMO_SEED_DB=true writes
// the demo dataset into those backends on startup
package main

import (
	"context"
	"time"

	"pagestream/internal/platform/config"
	"pagestream/internal/platform/logger"
	phttp "pagestream/internal/platform/net/http"
	"pagestream/internal/platform/net/middleware"
	"pagestream/internal/platform/store"

	"pagestream/internal/services/feed"

	"github.com/go-chi/chi/v5"
)

func main() {
	root := config.New()
	demoCfg := root.Prefix("DEMO_")
	pgCfg := demoCfg.Prefix("PGSQL_")
	chCfg := demoCfg.Prefix("CLICKHOUSE_")

	logger.Init(logger.FromEnv())
	l := logger.Get()

	// optional backends; the in-memory feed works without either
	storeCfg := store.Config{AppName: "pagestream-demo"}
	if url := pgCfg.MayString("DBURL", ""); url != "" {
		storeCfg.PG = store.PGConfig{
			Enabled:     true,
			URL:         url,
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		}
	}
	if url := chCfg.MayString("DBURL", ""); url != "" {
		storeCfg.CH = store.CHConfig{Enabled: true, URL: url}
	}

	st, err := store.Open(context.Background(), storeCfg, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	var svc *feed.Service
	srv := phttp.NewServer(demoCfg, func(m *chi.Mux) {
		m.Use(middleware.RealIP())
		m.Use(middleware.RequestID())
		m.Use(middleware.RecoverJSON)
		m.Use(middleware.AccessLog(middleware.AccessLogOptions{Slow: 500 * time.Millisecond}))
		m.Use(middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: []string{demoCfg.MayString("CORS_ORIGIN", "*")},
		}))
		m.Use(middleware.Timeout(60 * time.Second))

		svc = feed.Mount(m, feed.Options{
			Config:    demoCfg,
			Store:     st,
			Logger:    l,
			SeedItems: demoCfg.MayInt("SEED_ITEMS", 250),
		})
	})
	defer svc.Shutdown()

	if demoCfg.MayBool("SEED_DB", false) {
		if err := svc.SeedStores(context.Background()); err != nil {
			l.Panic().Err(err).Msg("seeding database backends failed")
		}
	}

	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
