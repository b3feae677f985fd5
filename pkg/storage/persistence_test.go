package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

func ttlSeconds(n int64) *int64 { return &n }

func TestStorageEngine_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "data"+FileExtension)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	engine := NewStorageEngine()
	for _, id := range []string{"c", "a", "b"} {
		_, err := engine.Insert(ctx, "users", doc(map[string]any{
			"_id":       id,
			"email":     id + "@example.com",
			"createdAt": created,
		}))
		require.NoError(t, err)
	}
	_, err := engine.CreateIndex(ctx, "users", domain.IndexDefinition{
		Keys:   []domain.IndexKey{{Field: "email", Direction: domain.Ascending}},
		Unique: true,
	})
	require.NoError(t, err)
	_, err = engine.CreateIndex(ctx, "users", domain.IndexDefinition{
		Keys:               []domain.IndexKey{{Field: "createdAt", Direction: domain.Ascending}},
		ExpireAfterSeconds: ttlSeconds(3600),
	})
	require.NoError(t, err)
	require.NoError(t, engine.CreateCollection("empty"))

	require.NoError(t, engine.SaveToFile(file))

	loaded := NewStorageEngine()
	require.NoError(t, loaded.LoadFromFile(ctx, file))

	assert.Equal(t, []string{"empty", "users"}, loaded.ListCollections())
	assert.Equal(t, []string{"c", "a", "b"}, ids(t, loaded, "users"), "insertion order survives a reload")
	assert.Equal(t, indexNames(t, engine, "users"), indexNames(t, loaded, "users"))

	got, err := loaded.GetById(ctx, "users", "a")
	require.NoError(t, err)
	v, ok := got.Get("createdAt")
	require.True(t, ok)
	assert.Equal(t, domain.KindDate, v.Kind())
	assert.True(t, created.Equal(v.Time()))

	infos, err := loaded.ListIndexes("users")
	require.NoError(t, err)
	for _, info := range infos {
		assert.Equal(t, 3, info.Entries, "index %s is rebuilt", info.Name)
	}

	_, err = loaded.Insert(ctx, "users", doc(map[string]any{"email": "a@example.com"}))
	assert.ErrorIs(t, err, domain.ErrUniqueConstraintViolation, "unique index is enforced after reload")
}

func TestStorageEngine_LoadFromFile_FileNotExists(t *testing.T) {
	engine := NewStorageEngine()
	err := engine.LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "missing"+FileExtension))
	require.NoError(t, err)
	assert.Empty(t, engine.ListCollections())
}

func TestStorageEngine_LoadFromFile_InvalidFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad"+FileExtension)
	require.NoError(t, os.WriteFile(file, []byte("not a snapshot"), 0o644))

	engine := NewStorageEngine()
	err := engine.LoadFromFile(context.Background(), file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file header")
}

func TestStorageEngine_LoadFromFile_EmptyFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "empty"+FileExtension)
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	err := NewStorageEngine().LoadFromFile(context.Background(), file)
	assert.Error(t, err)
}

func TestStorageEngine_LoadFromFile_ReplacesCollections(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "data"+FileExtension)

	source := NewStorageEngine()
	_, err := source.Insert(ctx, "items", doc(map[string]any{"_id": "saved"}))
	require.NoError(t, err)
	require.NoError(t, source.SaveToFile(file))

	target := NewStorageEngine()
	_, err = target.Insert(ctx, "items", doc(map[string]any{"_id": "unsaved"}))
	require.NoError(t, err)
	_, err = target.Insert(ctx, "other", doc(map[string]any{"_id": "kept"}))
	require.NoError(t, err)

	require.NoError(t, target.LoadFromFile(ctx, file))
	assert.Equal(t, []string{"saved"}, ids(t, target, "items"))
	assert.Equal(t, []string{"kept"}, ids(t, target, "other"))
}

func TestStorageEngine_SaveToFile_Overwrites(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "nested", "data"+FileExtension)

	engine := NewStorageEngine()
	_, err := engine.Insert(ctx, "items", doc(map[string]any{"_id": "one"}))
	require.NoError(t, err)
	require.NoError(t, engine.SaveToFile(file))

	_, err = engine.Insert(ctx, "items", doc(map[string]any{"_id": "two"}))
	require.NoError(t, err)
	require.NoError(t, engine.SaveToFile(file))

	entries, err := os.ReadDir(filepath.Dir(file))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")

	loaded := NewStorageEngine()
	require.NoError(t, loaded.LoadFromFile(ctx, file))
	assert.Equal(t, []string{"one", "two"}, ids(t, loaded, "items"))
}

func TestStorageEngine_BackgroundSnapshots(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "data"+FileExtension)

	engine := NewStorageEngine(WithSnapshot(file, 10*time.Millisecond))
	_, err := engine.Insert(ctx, "items", doc(map[string]any{"_id": "one"}))
	require.NoError(t, err)

	engine.StartBackgroundWorkers()
	assert.Eventually(t, func() bool {
		_, err := os.Stat(file)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	engine.StopBackgroundWorkers()
	engine.StopBackgroundWorkers()
}

func TestStorageEngine_LoadFromFile_RetiresReplacedCollection(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "data"+FileExtension)

	source := NewStorageEngine()
	_, err := source.Insert(ctx, "items", doc(map[string]any{"_id": "saved"}))
	require.NoError(t, err)
	require.NoError(t, source.SaveToFile(file))

	target := NewStorageEngine()
	_, err = target.Insert(ctx, "items", doc(map[string]any{"_id": "unsaved"}))
	require.NoError(t, err)
	old, err := target.lookup("items")
	require.NoError(t, err)

	require.NoError(t, target.LoadFromFile(ctx, file))
	current, err := target.lookup("items")
	require.NoError(t, err)
	assert.NotSame(t, old, current)
	assert.True(t, old.dropped, "writers still holding the replaced collection must retry")

	err = target.withCollectionWriteLock("items", false, func(c *Collection) error {
		assert.Same(t, current, c)
		return nil
	})
	require.NoError(t, err)
}
