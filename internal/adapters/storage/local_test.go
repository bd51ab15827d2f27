// internal/adapters/storage/local_test.go
package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/salesflow-be/internal/adapters/storage"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/test/helpers"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := storage.NewLocalStorage(dir, helpers.TestLogger())
	require.NoError(t, err)

	loc, err := s.Upload(ctx, "imports/2024/a.csv", strings.NewReader("sku,quantity\nA,1\n"), "text/csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc, "file://"))

	data, err := s.Download(ctx, "imports/2024/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "sku,quantity\nA,1\n", string(data))

	require.NoError(t, s.Delete(ctx, "imports/2024/a.csv"))
	require.NoError(t, s.Delete(ctx, "imports/2024/a.csv"))

	_, err = s.Download(ctx, "imports/2024/a.csv")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir(), helpers.TestLogger())
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), "../../etc/passwd", strings.NewReader("x"), "")
	// Cleaned keys stay inside the base dir, so this lands at <base>/etc/passwd.
	require.NoError(t, err)

	_, err = s.Download(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLocalStorage_ListOlderThan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := storage.NewLocalStorage(dir, helpers.TestLogger())
	require.NoError(t, err)

	for _, key := range []string{"imports/old.csv", "imports/new.csv", "other/old.csv"} {
		_, err := s.Upload(ctx, key, strings.NewReader("x"), "")
		require.NoError(t, err)
	}
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "imports", "old.csv"), old, old))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "other", "old.csv"), old, old))

	keys, err := s.ListOlderThan(ctx, "imports", time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"imports/old.csv"}, keys)

	keys, err = s.ListOlderThan(ctx, "missing", time.Now())
	require.NoError(t, err)
	assert.Empty(t, keys)
}
