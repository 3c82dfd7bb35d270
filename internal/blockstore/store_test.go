package blockstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/memcore/internal/memerr"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "blocks"), filepath.Join(dir, "archive"), nil)
	require.NoError(t, err)
	return s
}

func TestWriteThenRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &Block{
		ID:              "KB-20260731-001",
		Title:           "example",
		Body:            "hello world",
		Tags:            []string{"go", "testing"},
		InformationType: Static,
		Extra:           map[string]interface{}{"source": "unit-test"},
	}
	require.NoError(t, s.Write(ctx, b))

	got, err := s.Read(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, b.Title, got.Title)
	require.Equal(t, b.Body, got.Body)
	require.ElementsMatch(t, b.Tags, got.Tags)
	require.NotEmpty(t, got.ContentHash)
	require.Equal(t, "unit-test", got.Extra["source"])
}

func TestContentHashChangesWithBody(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &Block{ID: "KB-20260731-002", Title: "t", Body: "v1", InformationType: Static}
	require.NoError(t, s.Write(ctx, b))
	first, err := s.Read(ctx, b.ID)
	require.NoError(t, err)

	b.Body = "v2"
	require.NoError(t, s.Write(ctx, b))
	second, err := s.Read(ctx, b.ID)
	require.NoError(t, err)

	require.NotEqual(t, first.ContentHash, second.ContentHash)
}

func TestReadMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Read(context.Background(), "does-not-exist")
	require.Error(t, err)
}

func TestWriteDefaultsLastAccessToCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &Block{ID: "KB-20260731-007", Title: "t", Body: "v", InformationType: Static}
	require.NoError(t, s.Write(ctx, b))

	got, err := s.Read(ctx, b.ID)
	require.NoError(t, err)
	require.False(t, got.LastAccess.IsZero())
	require.False(t, got.LastAccess.Before(got.CreatedAt))
}

func TestReadDetectsContentHashMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &Block{ID: "KB-20260731-008", Title: "t", Body: "original", InformationType: Static}
	require.NoError(t, s.Write(ctx, b))

	raw, err := os.ReadFile(s.path(b.ID))
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "original", "tampered body, hash now stale", 1)
	require.NoError(t, os.WriteFile(s.path(b.ID), []byte(tampered), 0600))

	_, err = s.Read(ctx, b.ID)
	require.Error(t, err)
	require.True(t, memerr.Is(err, memerr.Corruption))
}

func TestArchiveAndRestoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &Block{ID: "KB-20260731-003", Title: "t", Body: "v", InformationType: Dynamic}
	require.NoError(t, s.Write(ctx, b))

	require.NoError(t, s.MoveToArchive(ctx, b.ID))
	archived, err := s.Read(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, archived.Archived)

	require.NoError(t, s.RestoreFromArchive(ctx, b.ID))
	restored, err := s.Read(ctx, b.ID)
	require.NoError(t, err)
	require.False(t, restored.Archived)
}

func TestRecordAccessIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &Block{ID: "KB-20260731-004", Title: "t", Body: "v", InformationType: Static}
	require.NoError(t, s.Write(ctx, b))

	now := time.Now()
	require.NoError(t, s.RecordAccess(ctx, b.ID, now))
	require.NoError(t, s.RecordAccess(ctx, b.ID, now.Add(time.Second)))

	got, err := s.Read(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.AccessCount)
	require.WithinDuration(t, now.Add(time.Second), got.LastAccess, time.Second)
}

func TestListIncludesArchivedOnlyWhenRequested(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	active := &Block{ID: "KB-20260731-005", Title: "active", Body: "v", InformationType: Static}
	archived := &Block{ID: "KB-20260731-006", Title: "archived", Body: "v", InformationType: Static}
	require.NoError(t, s.Write(ctx, active))
	require.NoError(t, s.Write(ctx, archived))
	require.NoError(t, s.MoveToArchive(ctx, archived.ID))

	onlyActive, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	require.Equal(t, active.ID, onlyActive[0].ID)

	all, err := s.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
