// Package dbtest provides migrated temporary stores for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abdulachik/linkrunner/internal/db"
)

// NewTestStore returns a migrated store in a temp dir, closed on cleanup.
func NewTestStore(t testing.TB) *db.Store {
	t.Helper()

	ctx := context.Background()
	store, err := db.NewStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	require.NoError(t, store.Migrate(ctx))

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
