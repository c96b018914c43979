package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"claimflow/internal/agent"
	"claimflow/internal/config"
	"claimflow/internal/email/noop"
	"claimflow/internal/email/ses"
	"claimflow/internal/handler"
	"claimflow/internal/logger"
	"claimflow/internal/port"
	"claimflow/internal/repository/postgres"
	"claimflow/internal/resultstore"
	"claimflow/internal/router"
	"claimflow/internal/service"
	"claimflow/internal/storage"
	"claimflow/internal/telemetry"
	"claimflow/internal/workflowconfig"
)

const shutdownTimeout = 30 * time.Second

// @title Claimflow API
// @version 1.0
// @description Claim document pipeline driven by an external workflow engine.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	shutdownTracing, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	configRepo := postgres.NewWorkflowConfigRepo(db)
	ticketRepo := postgres.NewTicketRepo(db)
	pipelineRepo := postgres.NewPipelineRepo(db)
	queryRunner := postgres.NewQueryRunner(db)

	scheme, err := resultstore.SchemeByName(cfg.Storage.KeyScheme, cfg.Storage.RootFolder)
	if err != nil {
		return fmt.Errorf("failed to select key scheme: %w", err)
	}

	notifier, err := newNotifier(&cfg.Email)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	configs := workflowconfig.NewCache(configRepo, cfg.Cache.Size, cfg.Cache.TTL)
	followUps := service.NewFollowUpScheduler(pipelineRepo, notifier, cfg.FollowUp)

	// Initialize services
	pipelineSvc := service.NewPipelineService(service.PipelineDeps{
		Configs:    configs,
		Tickets:    ticketRepo,
		Pipelines:  pipelineRepo,
		Storage:    storage.NewProviderCache(storage.NewDefaultRegistry(), &cfg.Storage, cfg.Cache.Size, cfg.Cache.TTL),
		Invoker:    agent.NewInvoker(&cfg.Agent, cfg.Properties),
		Queries:    queryRunner,
		Properties: cfg.Properties,
		FollowUps:  followUps,
	}, service.PipelineOptions{
		KeyScheme:        scheme,
		FetchConcurrency: cfg.Pipeline.FetchConcurrency,
		MaxFileSize:      cfg.Storage.MaxFileSizeMB * 1024 * 1024,
	})
	authSvc := service.NewAuthService(cfg.JWT)
	workflowSvc := service.NewWorkflowConfigService(configRepo, configs)

	// Initialize handlers
	pipelineH := handler.NewPipelineHandler(pipelineSvc, cfg.Storage.MaxFileSizeMB*1024*1024)
	workflowH := handler.NewWorkflowConfigHandler(workflowSvc)
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(authSvc, pipelineH, workflowH, healthH, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      otelhttp.NewHandler(r, "claimflow"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server starting", zap.String("addr", cfg.Server.Port), zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		zap.L().Info("server shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("server shutdown failed", zap.Error(err))
	}
	if err := followUps.Shutdown(ctx); err != nil {
		zap.L().Warn("follow-up scheduler did not drain", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		zap.L().Warn("tracer shutdown failed", zap.Error(err))
	}
	return nil
}

func newNotifier(cfg *config.EmailConfig) (port.Notifier, error) {
	switch cfg.Provider {
	case "ses":
		return ses.NewSESNotifier(context.Background(), cfg)
	case "", "noop":
		return noop.NewNoopNotifier(), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
