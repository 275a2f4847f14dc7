//go:build integration
// +build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"blog/internal/db"
)

func init() {
	storeFactories = append(storeFactories, struct {
		name string
		new  func(t *testing.T) Store
	}{"postgres", newPostgres})
}

// newPostgres starts a PostgreSQL container and returns a migrated store on it.
func newPostgres(t *testing.T) Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("blog"),
		postgres.WithUsername("blog"),
		postgres.WithPassword("blog"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.Open(db.Postgres, connStr)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, conn, db.Postgres))
	s := NewSQL(conn, db.Postgres)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresUniqueViolationIsEmailTaken(t *testing.T) {
	s := newPostgres(t).(*SQL)
	ctx := context.Background()
	mustUser(t, s, "A", "a@x.com")

	// Bypass the pre-check to hit the constraint itself.
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO users(`+userCols+`) VALUES(?,?,?,?,?,?,?)`),
		"dup", "A2", "a@x.com", nullAge(nil), "x", s.now(), s.now())
	require.Error(t, err)
	require.True(t, isUniqueViolation(err))
}
