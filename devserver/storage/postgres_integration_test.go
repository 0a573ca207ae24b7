//go:build integration

package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// postgresDSN returns DESK_DEVSERVER_POSTGRES_DSN when set, otherwise starts
// a throwaway postgres container.
func postgresDSN(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("DESK_DEVSERVER_POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "desk",
			"POSTGRES_PASSWORD": "desk",
			"POSTGRES_DB":       "desk",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://desk:desk@%s:%s/desk?sslmode=disable", host, port.Port())
}

func TestPostgresStore(t *testing.T) {
	db, err := OpenPostgres(postgresDSN(t))
	require.NoError(t, err)
	ctx := context.Background()
	for _, table := range []string{"users", "tasks", "comments", "attachments", "audit", "memos", "memo_acks", "memo_hidden"} {
		_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
	}
	require.NoError(t, Migrate(ctx, db, Postgres))
	st := New(db, Postgres)
	t.Cleanup(func() { _ = st.Close() })
	runSuite(t, st)
}
