package inflow

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu     sync.Mutex
	titles []string
	bodies []string
	nextID int
}

func (f *fakeRecorder) Record(_ context.Context, title, body string, _ []string, _ blockstore.InformationType, _ map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	f.nextID++
	return "KB-test-" + string(rune('0'+f.nextID)), nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.titles)
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(Config{}, &fakeRecorder{}, nil)
	assert.Error(t, err)
}

func TestWatcher_RecordsNewFile(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecorder{}

	w, err := New(Config{
		Dir:         dir,
		Extensions:  []string{".md"},
		SettleDelay: 10 * time.Millisecond,
	}, rec, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	require.Eventually(t, func() bool {
		return rec.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresUnmatchedExtension(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecorder{}

	w, err := New(Config{
		Dir:         dir,
		Extensions:  []string{".md"},
		SettleDelay: 10 * time.Millisecond,
	}, rec, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "note.bin")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0644))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}
