package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/synth-engine/internal/api"
	"github.com/atmx/synth-engine/internal/config"
	"github.com/atmx/synth-engine/internal/engine"
	"github.com/atmx/synth-engine/internal/fixed"
	"github.com/atmx/synth-engine/internal/journal"
	"github.com/atmx/synth-engine/internal/limits"
	"github.com/atmx/synth-engine/internal/metrics"
	"github.com/atmx/synth-engine/internal/oracle"
	"github.com/atmx/synth-engine/internal/token"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	assetSpec := os.Getenv("ASSETS")
	if assetSpec == "" {
		assetSpec = "weth=eth-usd,wbtc=btc-usd"
		slog.Warn("ASSETS not set, using default", "assets", assetSpec)
	}
	pairs, err := config.ParseAssets(assetSpec)
	if err != nil {
		slog.Error("invalid ASSETS", "err", err)
		os.Exit(1)
	}

	maxQuoteAge := time.Hour
	if raw := os.Getenv("MAX_QUOTE_AGE"); raw != "" {
		maxQuoteAge, err = time.ParseDuration(raw)
		if err != nil {
			slog.Error("invalid MAX_QUOTE_AGE", "err", err)
			os.Exit(1)
		}
	}

	// Optional per-user exposure limits, 18-decimal amounts.
	posLimits := &limits.PositionLimits{
		MaxDebt:               envAmount("MAX_USER_DEBT"),
		MaxCollateralPerAsset: envAmount("MAX_COLLATERAL_PER_ASSET"),
	}

	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Price sources ---
	// With REDIS_URL set, quotes come from external feeders publishing
	// to Redis. Otherwise static development sources are used.
	assets := make([]string, len(pairs))
	sources := make([]oracle.PriceSource, len(pairs))

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		for i, p := range pairs {
			assets[i] = p.Asset
			sources[i] = oracle.NewRedisSource(rdb, p.Feed)
		}
		slog.Info("Redis price sources enabled", "max_quote_age", maxQuoteAge.String())
	} else {
		slog.Warn("REDIS_URL not set, using static development prices")
		for i, p := range pairs {
			assets[i] = p.Asset
			sources[i] = oracle.NewStaticSource(2000e8) // $2000, 8 decimals
		}
	}

	// --- Journal ---
	var jrnl journal.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := journal.NewPostgresStore(pool)
		if err := pg.InitSchema(context.Background()); err != nil {
			slog.Error("journal schema init failed", "err", err)
			os.Exit(1)
		}
		jrnl = pg
		slog.Info("connected to PostgreSQL journal")
	} else {
		slog.Warn("DATABASE_URL not set, journal kept in memory only")
		jrnl = journal.NewMemoryStore()
	}

	// --- Token collaborators ---
	// The in-memory bank stands in for real token ledgers; a dev
	// account is seeded with collateral so the API is usable out of
	// the box.
	const engineAccount = "engine"
	bank := token.NewMemoryBank()
	collateral := make(map[string]token.CollateralToken, len(assets))
	devBalance := new(uint256.Int).Mul(uint256.NewInt(1000), uint256.NewInt(1e18))
	for _, asset := range assets {
		collateral[asset] = bank.Collateral(asset, engineAccount)
		bank.SetBalance(asset, "dev", devBalance)
	}
	synth := bank.Synthetic("susd", engineAccount)

	// --- Event hub ---
	hub := api.NewHub()
	go hub.Run()

	// --- Engine ---
	eng, err := engine.New(engine.Config{
		Account:     engineAccount,
		Assets:      assets,
		Sources:     sources,
		Collateral:  collateral,
		Synth:       synth,
		Journal:     jrnl,
		Events:      hub,
		Limits:      posLimits,
		MaxQuoteAge: maxQuoteAge,
	})
	if err != nil {
		slog.Error("engine construction failed", "err", err)
		os.Exit(1)
	}

	svc := api.NewService(eng, jrnl)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"synth-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for committed-operation events.
		r.Get("/ws", hub.HandleWS)
		svc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("synth-engine listening", "port", port, "assets", assetSpec)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down synth-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("synth-engine stopped")
}

// envAmount parses a decimal amount from the environment into
// 18-decimal fixed-point. Unset means no limit (nil).
func envAmount(key string) *uint256.Int {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Error("invalid amount", "var", key, "err", err)
		os.Exit(1)
	}
	v, err := fixed.FromDecimal(d)
	if err != nil {
		slog.Error("invalid amount", "var", key, "err", err)
		os.Exit(1)
	}
	return v
}
