package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propfoto/propfoto/internal/enhance"
)

func TestFSBlobStore_PutGet(t *testing.T) {
	store, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "batch-1/img-1.jpg", []byte("payload")))

	data, err := store.Get(ctx, "batch-1/img-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	// Overwrite replaces the previous blob.
	require.NoError(t, store.Put(ctx, "batch-1/img-1.jpg", []byte("newer")))
	data, err = store.Get(ctx, "batch-1/img-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), data)
}

func TestFSBlobStore_CreatesIntermediateDirs(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSBlobStore(filepath.Join(root, "out"))
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "a/b/c.jpg", []byte("x")))
	_, err = os.Stat(filepath.Join(root, "out", "a", "b", "c.jpg"))
	assert.NoError(t, err)
}

func TestFSBlobStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	for _, key := range []string{"../outside.jpg", "a/../../outside.jpg", "/etc/passwd", "", "."} {
		assert.Error(t, store.Put(ctx, key, []byte("x")), "key %q must be refused", key)
		_, err := store.Get(ctx, key)
		assert.Error(t, err, "key %q must be refused", key)
	}
}

func TestFSBlobStore_NoTempFilesLeftBehind(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSBlobStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "img.jpg", []byte("x")))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "img.jpg", entries[0].Name())
}

func TestFSBlobStore_EmptyRoot(t *testing.T) {
	_, err := NewFSBlobStore("")
	assert.Error(t, err)
}

func TestFSBlobStore_GetMissing(t *testing.T) {
	store, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "never/written.jpg")
	assert.Error(t, err)
}

func TestMemoryBlobStore(t *testing.T) {
	store := NewMemoryBlobStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k1", []byte("v1")))
	require.NoError(t, store.Put(ctx, "k2", []byte("v2")))
	assert.Equal(t, 2, store.Len())

	data, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	_, err = store.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestMemoryBlobStore_CopiesData(t *testing.T) {
	store := NewMemoryBlobStore()
	ctx := context.Background()

	src := []byte("original")
	require.NoError(t, store.Put(ctx, "k", src))
	src[0] = 'X'

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data, "stored blob is independent of the caller's slice")
}

func TestMemoryMetadataStore(t *testing.T) {
	store := NewMemoryMetadataStore()
	ctx := context.Background()

	rec := ImageRecord{
		BatchID:    "b1",
		ImageID:    "i1",
		SourceName: "living_room.jpg",
		State:      enhance.StateAccepted,
		Width:      1920,
		Height:     1080,
		Attempts:   1,
		FinishedAt: time.Now(),
	}
	require.NoError(t, store.SaveImage(ctx, rec))
	require.NoError(t, store.SaveImage(ctx, ImageRecord{BatchID: "b1", ImageID: "i2", State: enhance.StateRejected}))
	require.NoError(t, store.SaveImage(ctx, ImageRecord{BatchID: "b2", ImageID: "i3"}))

	images := store.Images("b1")
	assert.Len(t, images, 2)
	assert.Len(t, store.Images("b2"), 1)
	assert.Empty(t, store.Images("unknown"))

	sum := BatchSummary{BatchID: "b1", Status: "completed", Total: 2, Accepted: 1, Rejected: 1}
	require.NoError(t, store.SaveBatch(ctx, sum))

	got, ok := store.Batch("b1")
	require.True(t, ok)
	assert.Equal(t, sum, got)

	_, ok = store.Batch("unknown")
	assert.False(t, ok)
}

func TestMemoryMetadataStore_SaveImageUpserts(t *testing.T) {
	store := NewMemoryMetadataStore()
	ctx := context.Background()

	require.NoError(t, store.SaveImage(ctx, ImageRecord{BatchID: "b", ImageID: "i", Attempts: 1}))
	require.NoError(t, store.SaveImage(ctx, ImageRecord{BatchID: "b", ImageID: "i", Attempts: 2}))

	images := store.Images("b")
	require.Len(t, images, 1)
	assert.Equal(t, 2, images[0].Attempts)
}

func TestLogNotifier(t *testing.T) {
	n := &LogNotifier{Logger: slog.Default()}
	err := n.BatchFinished(context.Background(), BatchSummary{BatchID: "b", Status: "completed"})
	assert.NoError(t, err)

	var nilLogger *LogNotifier = &LogNotifier{}
	assert.NoError(t, nilLogger.BatchFinished(context.Background(), BatchSummary{}))
}
