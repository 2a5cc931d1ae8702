// @title         ruleexplain API
// @version       0.1.0
// @description   Submit legal clauses for plain-English explanation and follow their status

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"ruleexplain/internal/platform/config"
	"ruleexplain/internal/platform/logger"
	"ruleexplain/internal/platform/metrics"
	phttp "ruleexplain/internal/platform/net/http"
	"ruleexplain/internal/platform/net/middleware"
	"ruleexplain/internal/platform/store"

	"ruleexplain/internal/modkit/httpkit"

	"ruleexplain/internal/services/api"
	explainmod "ruleexplain/internal/services/explain/module"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_") // pgCfg lives under SERVICE_PGSQL_*

	// bring up logging early
	l := logger.Get()

	// open the platform store (postgres ledger)
	st, err := store.Open(
		ctx,
		store.Config{
			AppName: "ruleexplain-api",
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", true),

				ConnectRetries: pgCfg.MayInt("CONNECT_RETRIES", 20),
				PingTimeout:    pgCfg.MayDuration("PING_TIMEOUT", 3*time.Second),
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// chain runtime: network profile, signer, session (EXPLAIN_*)
	opts, err := explainmod.FromConfig(root)
	if err != nil {
		l.Panic().Err(err).Msg("explain config invalid")
	}
	rt, err := explainmod.Dial(ctx, opts, nil)
	if err != nil {
		l.Panic().Err(err).Msg("explain runtime failed")
	}
	defer rt.Close()

	reg := metrics.NewRegistry()
	svc := rt.NewService(st.PG, reg)
	if err := svc.Start(ctx); err != nil {
		l.Panic().Err(err).Msg("explain ledger not ready")
	}

	// operator tokens for submit and cancel (CORE_API_TOKENS=name:token,...)
	var auth middleware.AuthPort
	port, err := httpkit.StaticTokens(apiCfg.MayCSV("TOKENS", nil))
	if err != nil {
		l.Panic().Err(err).Msg("api tokens invalid")
	}
	if port != nil {
		auth = port
	}

	// http server (CORE_API_PORT, CORE_API_READ_HEADER_TIMEOUT, CORE_API_IDLE_TIMEOUT)
	srv := phttp.NewServer(apiCfg)

	// mount our API
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Store:          st,
			Logger:         l,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
			Chain:          rt,
			Explain:        svc,
			Registry:       reg,
			Auth:           auth,
		},
	)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		l.Info().Int("in_flight", svc.Running()).Msg("shutting down")
		grace := apiCfg.MayDuration("SHUTDOWN_GRACE", 10*time.Second)
		sctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			l.Error().Err(err).Msg("http shutdown")
		}
		if err := svc.Shutdown(sctx); err != nil {
			l.Error().Err(err).Msg("explain shutdown")
		}
	}()

	// run
	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
	// running submissions record their final event before the store closes
	<-drained
}
