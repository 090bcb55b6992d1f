package local

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUploadAndGet(t *testing.T) {
	store, err := NewStore(t.TempDir(), "http://localhost:8080/")
	require.NoError(t, err)

	ctx := context.Background()
	imageData := []byte("fake png data")

	asset, err := store.Upload(ctx, "front.png", "image/png", bytes.NewReader(imageData))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(asset.URL, "http://localhost:8080/assets/front_"), asset.URL)
	assert.True(t, strings.HasSuffix(asset.PublicID, ".png"))
	assert.True(t, strings.HasSuffix(asset.URL, asset.PublicID))

	reader, mimeType, err := store.Get(ctx, asset.PublicID)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "image/png", mimeType)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestStoreUploadKeysAreUnique(t *testing.T) {
	store, err := NewStore(t.TempDir(), "http://localhost")
	require.NoError(t, err)
	ctx := context.Background()

	a, err := store.Upload(ctx, "front.jpg", "image/jpeg", bytes.NewReader([]byte{1}))
	require.NoError(t, err)
	b, err := store.Upload(ctx, "front.jpg", "image/jpeg", bytes.NewReader([]byte{2}))
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicID, b.PublicID)
}

func TestStoreDelete(t *testing.T) {
	store, err := NewStore(t.TempDir(), "http://localhost")
	require.NoError(t, err)
	ctx := context.Background()

	asset, err := store.Upload(ctx, "back.jpg", "image/jpeg", bytes.NewReader([]byte("test data")))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, asset.PublicID))

	_, _, err = store.Get(ctx, asset.PublicID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, asset.PublicID), ErrNotFound)
}

func TestStorePathTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir(), "http://localhost")
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = store.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, "../outside.jpg"))
}

func TestStoreUploadSanitisesName(t *testing.T) {
	store, err := NewStore(t.TempDir(), "http://localhost")
	require.NoError(t, err)

	asset, err := store.Upload(context.Background(), "../../evil.jpg", "image/jpeg", bytes.NewReader([]byte{1}))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(asset.PublicID, "evil_"))
}
