package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bcbs239/regtech/pkg/postgres"
)

// PostgresContainer is a throwaway PostgreSQL 16 instance with a ready pool.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	DSN       string
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts PostgreSQL and opens a pool through the same
// constructor the service uses. Call Cleanup when done.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	t.Helper()

	c, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("regtech_test"),
		tcpostgres.WithUsername("risk"),
		tcpostgres.WithPassword("risk"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	pc := &PostgresContainer{Container: c}

	pc.DSN, err = c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		pc.Cleanup(t)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pc.Pool, err = postgres.NewPool(ctx, postgres.Config{
		URL:             pc.DSN,
		MaxConns:        4,
		ApplicationName: "risk-calculation-tests",
	})
	if err != nil {
		pc.Cleanup(t)
		t.Fatalf("failed to open postgres pool: %v", err)
	}
	return pc
}

// Cleanup closes the pool and terminates the container.
func (pc *PostgresContainer) Cleanup(t *testing.T) {
	t.Helper()

	if pc.Pool != nil {
		pc.Pool.Close()
	}
	if pc.Container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pc.Container.Terminate(ctx); err != nil {
		t.Logf("warning: failed to terminate postgres container: %v", err)
	}
}

// RunMigrations applies a golang-migrate directory with the production migrator.
func (pc *PostgresContainer) RunMigrations(t *testing.T, migrationsDir string) {
	t.Helper()

	abs, err := filepath.Abs(migrationsDir)
	if err != nil {
		t.Fatalf("failed to resolve migrations directory %s: %v", migrationsDir, err)
	}
	if err := postgres.RunMigrations(pc.DSN, "file://"+filepath.ToSlash(abs), nil); err != nil {
		t.Fatalf("failed to apply migrations from %s: %v", abs, err)
	}
}

// Truncate empties the given tables so subtests can share one container.
func (pc *PostgresContainer) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	if len(tables) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmt := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := pc.Pool.Exec(ctx, stmt); err != nil {
		t.Fatalf("failed to truncate %v: %v", tables, err)
	}
}
