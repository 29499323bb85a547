package local

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/config"
)

func newTestAdapter(t *testing.T) *localAdapter {
	t.Helper()
	conn, err := NewLocalAdapter(storageConfig.StorageConfig{
		Type:    ProviderType,
		BaseDir: t.TempDir(),
	}, "test")
	require.NoError(t, err)
	return conn.(*localAdapter)
}

func TestLocalAdapter_UploadDownload(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	err := a.Upload(ctx, "", "out/part-00000.parquet", strings.NewReader("payload"), "application/octet-stream")
	require.NoError(t, err)

	r, err := a.Download(ctx, "", "out/part-00000.parquet")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = a.Download(ctx, "", "out/missing.parquet")
	assert.Error(t, err)
}

func TestLocalAdapter_ListObjects(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for _, name := range []string{
		"out/scenario=base/model_year=2030/part-00000.parquet",
		"out/scenario=base/model_year=2030/part-00001.parquet",
		"out/_SUCCESS",
		"registry/mapping.csv",
	} {
		require.NoError(t, a.Upload(ctx, "", name, strings.NewReader("x"), "text/plain"))
	}

	var seen []string
	err := a.ListObjects(ctx, "", "out/", func(objectName string) error {
		seen = append(seen, objectName)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(seen)
	assert.Equal(t, []string{
		"out/_SUCCESS",
		"out/scenario=base/model_year=2030/part-00000.parquet",
		"out/scenario=base/model_year=2030/part-00001.parquet",
	}, seen)

	// Listing a prefix that matches nothing calls fn zero times.
	count := 0
	err = a.ListObjects(ctx, "", "nowhere/", func(string) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLocalAdapter_Exists(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	ok, err := a.Exists(ctx, "", "out")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Upload(ctx, "", "out/part-00000.parquet", strings.NewReader("x"), "text/plain"))

	// Both the object and its parent directory now exist.
	ok, err = a.Exists(ctx, "", "out/part-00000.parquet")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.Exists(ctx, "", "out")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalAdapter_DeleteObject(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Upload(ctx, "", "out/file", strings.NewReader("x"), "text/plain"))
	require.NoError(t, a.DeleteObject(ctx, "", "out/file"))

	ok, err := a.Exists(ctx, "", "out/file")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent object is not an error.
	assert.NoError(t, a.DeleteObject(ctx, "", "out/file"))
}

func TestLocalAdapter_PathEscapeRejected(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.Download(context.Background(), "", "../outside")
	assert.Error(t, err)
}

func TestNewLocalAdapter_RequiresBaseDir(t *testing.T) {
	_, err := NewLocalAdapter(storageConfig.StorageConfig{Type: ProviderType}, "test")
	assert.Error(t, err)
}
