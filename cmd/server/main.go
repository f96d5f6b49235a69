package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asakaida/permcondition/internal/handlers"
	"github.com/asakaida/permcondition/internal/infrastructure/cache"
	"github.com/asakaida/permcondition/internal/infrastructure/catalog"
	"github.com/asakaida/permcondition/internal/infrastructure/config"
	"github.com/asakaida/permcondition/internal/infrastructure/database"
	"github.com/asakaida/permcondition/internal/infrastructure/metrics"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/asakaida/permcondition/internal/repositories/postgres"
	"github.com/asakaida/permcondition/internal/services"
	"github.com/asakaida/permcondition/internal/services/condition"
	"github.com/asakaida/permcondition/internal/services/visibility"
	"github.com/asakaida/permcondition/pkg/cache/memorycache"
	pb "github.com/asakaida/permcondition/proto/permcondition/v1"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

const defaultEnv = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// catalogSources bundles the collaborators that depend on CATALOG_SOURCE
type catalogSources struct {
	permissions condition.PermissionCatalog
	modules     condition.ModuleResolver
	users       repositories.UserRepository
}

func run() error {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pg, err := database.NewPostgres(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pg.Close()

	logger.Info("connected to database",
		"user", cfg.Database.User,
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Database)

	migrationsPath, err := database.DefaultMigrationsPath()
	if err != nil {
		return err
	}
	if err := pg.RunMigrations(migrationsPath, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize repositories
	conditionRepo := postgres.NewPostgresConditionRepository(pg.DB)
	sources, err := loadCatalogSources(cfg, pg, logger)
	if err != nil {
		return err
	}

	// Initialize services
	celEngine, err := condition.NewCELEngine()
	if err != nil {
		return fmt.Errorf("failed to create CEL engine: %w", err)
	}
	manager, err := condition.NewManager(
		condition.UserPermissionDefinition(sources.permissions, sources.modules),
		condition.RequestExpressionDefinition(celEngine),
	)
	if err != nil {
		return fmt.Errorf("failed to register condition plugins: %w", err)
	}
	conditionService := services.NewConditionService(conditionRepo, manager)

	// Metrics
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector, nil)

	// Initialize checker, with the result cache when enabled
	var checker *visibility.Checker
	if cfg.Cache.Enabled {
		resultCache, err := memorycache.New(&memorycache.Config{
			MaxSizeBytes:  cfg.Cache.MaxMemoryBytes,
			DefaultTTL:    cfg.Cache.TTL(),
			EnableMetrics: cfg.Cache.Metrics,
		})
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		defer resultCache.Close()

		revisions := cache.NewRevisionManager(pg.DB, cfg.Database.ConnectionString(), cfg.Cache.RevisionRefreshInterval(), logger)
		if err := revisions.Start(ctx); err != nil {
			return fmt.Errorf("failed to start revision manager: %w", err)
		}
		defer revisions.Stop()

		checker = visibility.NewCheckerWithCache(conditionRepo, sources.users, manager, logger, resultCache, revisions, cfg.Cache.TTL())
		collector.SetCache(resultCache)
		logger.Info("evaluation cache enabled",
			"max_memory_bytes", cfg.Cache.MaxMemoryBytes,
			"ttl", cfg.Cache.TTL())
	} else {
		checker = visibility.NewChecker(conditionRepo, sources.users, manager, logger)
	}
	checker.SetRecorder(exporter)

	handler := handlers.NewConditionHandler(conditionService, checker)

	// Create gRPC server
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(collector, exporter, logger)),
	)
	pb.RegisterConditionServiceServer(grpcServer, handler)

	// Register reflection service (for grpcurl, etc.)
	reflection.Register(grpcServer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", addr)
		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	// Shut down on signal or when either server fails
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("error shutting down metrics server", "error", err)
			}
		}

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			logger.Info("server stopped gracefully")
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout exceeded, forcing stop")
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// loadCatalogSources returns the permission catalog, module resolver and
// user repository for the configured catalog source.
func loadCatalogSources(cfg *config.Config, pg *database.Postgres, logger *slog.Logger) (*catalogSources, error) {
	switch cfg.Catalog.Source {
	case config.CatalogSourceYAML:
		c, err := catalog.LoadDir(cfg.Catalog.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog from %s: %w", cfg.Catalog.Dir, err)
		}
		logger.Info("serving permission catalog from files",
			"dir", cfg.Catalog.Dir,
			"modules", len(c.Modules()),
			"roles", len(c.Roles()))
		return &catalogSources{permissions: c, modules: c, users: c}, nil
	default:
		return &catalogSources{
			permissions: postgres.NewPostgresPermissionRepository(pg.DB),
			modules:     postgres.NewPostgresModuleRepository(pg.DB),
			users:       postgres.NewPostgresUserRepository(pg.DB),
		}, nil
	}
}
