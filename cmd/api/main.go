package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/compliance"
	"dialer-platform/internal/config"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/lead"
	"dialer-platform/internal/phoneline"
	"dialer-platform/internal/qualify"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/telephony"
	"dialer-platform/internal/tenant"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Storage
	campaigns := campaign.NewPostgresRepo(db)
	leads := lead.NewPostgresRepository(db)
	lines := phoneline.NewPostgresRepository(db)
	items := queue.NewPostgresRepository(db)
	records := calls.NewPostgresRepo(db)
	complianceLog := compliance.NewPostgresLogRepository(db)
	credCache := tenant.NewCache(tenant.NewPostgresCredentialsRepository(db), 5*time.Minute)

	// Telephony provider. Per-workspace keys come from the credential
	// cache and fall back to the platform key.
	provider := telephony.NewVapiClient(cfg.Vapi.BaseURL, cfg.Vapi.APIKey)
	provider.KeyForWorkspace = func(ctx context.Context, workspaceID string) (string, error) {
		creds, err := credCache.Get(ctx, workspaceID)
		if errors.Is(err, tenant.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return creds.APIKey, nil
	}

	// Compliance
	var registry compliance.Registry
	if cfg.Compliance.RegistryURL != "" {
		registry = compliance.NewHTTPRegistry(cfg.Compliance.RegistryURL, cfg.Compliance.RegistryAPIKey)
	}
	gatekeeper := compliance.NewGatekeeper(compliance.NewPostgresDNCList(db), registry, complianceLog, log)
	gatekeeper.MaxDailyAttempts = cfg.Compliance.MaxDailyAttempts
	gatekeeper.MaxMonthlyContacts = cfg.Compliance.MaxMonthlyContacts

	// Dialer
	retry := dialer.NewRetryScheduler(items, log)
	dispatcher := &dialer.Dispatcher{
		Queue:  items,
		Leads:  leads,
		Creds:  credCache,
		Client: provider,
		Limiter: &dialer.RedisLimiter{
			RDB:   rdb,
			Limit: cfg.Dialer.DispatchConcurrency,
			TTL:   cfg.Dialer.SweepTimeout,
		},
		Retry:  retry,
		Logger: log,
	}

	var analyzer qualify.Analyzer
	if cfg.Vapi.QualifyURL != "" {
		analyzer = qualify.NewHTTPAnalyzer(cfg.Vapi.QualifyURL)
	}
	reconciler := &dialer.Reconciler{
		Queue:     items,
		Leads:     leads,
		Calls:     records,
		Lines:     lines,
		Campaigns: campaigns,
		Retry:     retry,
		Analyzer:  analyzer,
		Logger:    log,
		Async:     true,
	}

	engine := &dialer.Engine{
		Campaigns:     campaigns,
		Leads:         leads,
		Queue:         items,
		Allocator:     phoneline.NewAllocator(lines, cfg.Dialer.LineSpacing),
		Gatekeeper:    gatekeeper,
		Dispatcher:    dispatcher,
		Selector:      &lead.Selector{Repo: leads, InFlight: items.ListCallingLeadIDs},
		Lease:         dialer.NewRedisLease(rdb, uuid.NewString()),
		Logger:        log,
		TickInterval:  cfg.Dialer.TickInterval,
		LeaseTTL:      cfg.Dialer.LeaseTTL,
		DispatchDelay: cfg.Dialer.DispatchDelay,
	}
	go engine.Run(rootCtx)

	sweeper := &dialer.Sweeper{
		Queue:      items,
		Leads:      leads,
		Client:     provider,
		Reconciler: reconciler,
		Logger:     log,
		Interval:   cfg.Dialer.SweepInterval,
		Timeout:    cfg.Dialer.SweepTimeout,
	}
	go sweeper.Run(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	handlers := httpapi.Handlers{
		Auth:          authManager,
		Campaigns:     campaigns,
		Queue:         items,
		ComplianceLog: complianceLog,
		Reporting:     reporting.NewService(records),
		Credentials:   credCache,
		Audit:         audit.NewService(audit.NewPostgresRepo(db)),
		Logger:        log,
	}
	webhook := &telephony.WebhookHandler{Secret: cfg.Vapi.WebhookSecret, Sink: reconciler}
	registerRoutes(r, handlers, webhook, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
