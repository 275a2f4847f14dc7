package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open(Dialect("oracle"), "x")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := Open(SQLite, filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, conn, SQLite))
	require.NoError(t, Migrate(ctx, conn, SQLite))

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'posts', 'comments')`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestSQLitePragmas(t *testing.T) {
	conn, err := Open(SQLite, ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	var timeout int
	require.NoError(t, conn.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout))
	assert.Equal(t, 5000, timeout)

	var lowered string
	require.NoError(t, conn.QueryRow(`SELECT LOWER('ÉMILE')`).Scan(&lowered))
	assert.Equal(t, "émile", lowered)
}

func TestForeignKeysCascade(t *testing.T) {
	conn, err := Open(SQLite, ":memory:")
	require.NoError(t, err)
	defer conn.Close()
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, conn, SQLite))

	exec := func(q string, args ...interface{}) {
		t.Helper()
		_, err := conn.ExecContext(ctx, q, args...)
		require.NoError(t, err)
	}
	exec(`INSERT INTO users(id, name, email, password_hash, created_at, updated_at) VALUES('u', 'U', 'u@x.com', 'h', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	exec(`INSERT INTO posts(id, author_id, title, body, published, created_at, updated_at) VALUES('p', 'u', 't', 'b', 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	exec(`INSERT INTO comments(id, post_id, author_id, text, created_at, updated_at) VALUES('c', 'p', 'u', 'x', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)

	_, err = conn.ExecContext(ctx, `INSERT INTO posts(id, author_id, title, body, created_at, updated_at) VALUES('q', 'nobody', 't', 'b', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	assert.Error(t, err, "foreign keys must be enforced")

	exec(`DELETE FROM users WHERE id = 'u'`)
	var n int
	require.NoError(t, conn.QueryRow(`SELECT (SELECT COUNT(*) FROM posts) + (SELECT COUNT(*) FROM comments)`).Scan(&n))
	assert.Zero(t, n)
}
