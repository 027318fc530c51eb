package persistence_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-accounts/persistence"
)

func TestOpenSQLiteInMemory(t *testing.T) {
	ctx := context.Background()
	db, err := persistence.Open(ctx, persistence.Options{
		Driver: persistence.DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var one int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(ctx, &one))
	assert.Equal(t, 1, one)
	assert.Equal(t, dialect.SQLite, db.Dialect().Name())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := persistence.Open(context.Background(), persistence.Options{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
