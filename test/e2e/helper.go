package e2e

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asakaida/permcondition/internal/handlers"
	"github.com/asakaida/permcondition/internal/infrastructure/cache"
	"github.com/asakaida/permcondition/internal/infrastructure/catalog"
	"github.com/asakaida/permcondition/internal/infrastructure/config"
	"github.com/asakaida/permcondition/internal/infrastructure/database"
	"github.com/asakaida/permcondition/internal/infrastructure/metrics"
	"github.com/asakaida/permcondition/internal/repositories/postgres"
	"github.com/asakaida/permcondition/internal/services"
	"github.com/asakaida/permcondition/internal/services/condition"
	"github.com/asakaida/permcondition/internal/services/visibility"
	"github.com/asakaida/permcondition/pkg/cache/memorycache"
	"github.com/asakaida/permcondition/pkg/client"
	pb "github.com/asakaida/permcondition/proto/permcondition/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// E2ETestServer represents an E2E test server
type E2ETestServer struct {
	Server    *grpc.Server
	Client    *client.Client
	Conn      *grpc.ClientConn
	DB        *sql.DB
	Listener  *bufconn.Listener
	Collector *metrics.Collector
	revisions *cache.RevisionManager
}

// SetupE2ETest starts a server backed by the test database with the
// repository catalog imported. The test is skipped unless INTEGRATION is set.
func SetupE2ETest(t *testing.T) *E2ETestServer {
	t.Helper()

	if os.Getenv("INTEGRATION") == "" {
		t.Skip("Skipping E2E test. Set INTEGRATION=1 to run")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Initialize config for test environment
	if err := config.InitConfig("test"); err != nil {
		t.Fatalf("failed to init config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Connect to test database
	pg, err := database.NewPostgres(ctx, &cfg.Database)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	migrationsPath, err := database.DefaultMigrationsPath()
	if err != nil {
		t.Fatalf("failed to find migrations: %v", err)
	}
	if err := pg.RunMigrations(migrationsPath, logger); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Clean up existing data
	cleanupDatabase(t, pg.DB)

	// Initialize repositories
	conditionRepo := postgres.NewPostgresConditionRepository(pg.DB)
	moduleRepo := postgres.NewPostgresModuleRepository(pg.DB)
	permissionRepo := postgres.NewPostgresPermissionRepository(pg.DB)
	roleRepo := postgres.NewPostgresRoleRepository(pg.DB)
	userRepo := postgres.NewPostgresUserRepository(pg.DB)

	// Import the sample catalog
	root, err := config.ProjectRoot()
	if err != nil {
		t.Fatalf("failed to find project root: %v", err)
	}
	cat, err := catalog.LoadDir(filepath.Join(root, "catalog"))
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	importer := catalog.NewImporter(moduleRepo, permissionRepo, roleRepo, userRepo, logger)
	if _, err := importer.Import(ctx, cat); err != nil {
		t.Fatalf("failed to import catalog: %v", err)
	}

	// Initialize services
	celEngine, err := condition.NewCELEngine()
	if err != nil {
		t.Fatalf("failed to create CEL engine: %v", err)
	}
	manager, err := condition.NewManager(
		condition.UserPermissionDefinition(permissionRepo, moduleRepo),
		condition.RequestExpressionDefinition(celEngine),
	)
	if err != nil {
		t.Fatalf("failed to create condition manager: %v", err)
	}
	conditionService := services.NewConditionService(conditionRepo, manager)

	resultCache, err := memorycache.New(&memorycache.Config{
		MaxSizeBytes:  10 * 1024 * 1024,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	// A zero refresh interval re-reads the revision on every check
	revisions := cache.NewRevisionManager(pg.DB, "", 0, logger)
	if err := revisions.Start(ctx); err != nil {
		t.Fatalf("failed to start revision manager: %v", err)
	}

	collector := metrics.NewCollector()
	collector.SetCache(resultCache)
	checker := visibility.NewCheckerWithCache(conditionRepo, userRepo, manager, logger, resultCache, revisions, time.Minute)
	checker.SetRecorder(collector)

	// Create in-memory gRPC server with bufconn
	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer(grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(collector, nil, logger)))
	pb.RegisterConditionServiceServer(server, handlers.NewConditionHandler(conditionService, checker))

	go func() {
		if err := server.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	bufDialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}
	conn, err := grpc.NewClient(
		"passthrough://bufconn",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to create client connection: %v", err)
	}

	e := &E2ETestServer{
		Server:    server,
		Client:    client.New(conn),
		Conn:      conn,
		DB:        pg.DB,
		Listener:  listener,
		Collector: collector,
		revisions: revisions,
	}
	t.Cleanup(func() { e.Teardown(t) })
	return e
}

// Teardown cleans up the E2E test environment
func (e *E2ETestServer) Teardown(t *testing.T) {
	t.Helper()

	if e.Conn != nil {
		e.Conn.Close()
	}
	if e.Server != nil {
		e.Server.Stop()
	}
	if e.Listener != nil {
		e.Listener.Close()
	}
	if e.revisions != nil {
		e.revisions.Stop()
	}
	if e.DB != nil {
		cleanupDatabase(t, e.DB)
		e.DB.Close()
	}
}

// cleanupDatabase removes all data from test database
func cleanupDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Delete in correct order due to foreign key constraints.
	// Built-in roles are seeded by migrations and kept.
	statements := []string{
		"DELETE FROM conditions",
		"DELETE FROM user_roles",
		"DELETE FROM role_permissions",
		"DELETE FROM roles WHERE id NOT IN ('anonymous', 'authenticated')",
		"DELETE FROM permissions",
		"DELETE FROM modules",
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Logf("warning: failed to clean up (%s): %v", stmt, err)
		}
	}
}
