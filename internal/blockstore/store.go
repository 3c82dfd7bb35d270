package blockstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/memcore/internal/memerr"
	"github.com/fyrsmithlabs/memcore/internal/obslog"
	"go.uber.org/zap"
)

// Store is the authoritative file-based persistence layer for Blocks.
// Writes are atomic (temp file + fsync + rename, grounded on contextd's
// WAL writeEntrySecure pattern) and serialized per block id so concurrent
// callers never interleave a read with a partial write.
type Store struct {
	blockDir   string
	archiveDir string
	logger     *obslog.Logger

	mu    sync.Mutex            // guards locks map itself
	locks map[string]*sync.Mutex // per-block-id serialization
}

// New constructs a Store rooted at blockDir, with archived blocks moved to
// archiveDir on MoveToArchive. Both directories are created if missing.
func New(blockDir, archiveDir string, logger *obslog.Logger) (*Store, error) {
	if blockDir == "" {
		return nil, fmt.Errorf("blockstore: block_dir is required")
	}
	if logger == nil {
		logger = obslog.NewNop()
	}
	if err := os.MkdirAll(blockDir, 0700); err != nil {
		return nil, fmt.Errorf("blockstore: failed to create block dir: %w", err)
	}
	if archiveDir != "" {
		if err := os.MkdirAll(archiveDir, 0700); err != nil {
			return nil, fmt.Errorf("blockstore: failed to create archive dir: %w", err)
		}
	}
	return &Store{
		blockDir:   blockDir,
		archiveDir: archiveDir,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) path(id string) string {
	return filepath.Join(s.blockDir, id+".md")
}

func (s *Store) archivePath(id string) string {
	return filepath.Join(s.archiveDir, id+".md")
}

// Write persists a Block, computing its content hash and stamping
// UpdatedAt, then atomically installing the file (spec.md §4.1).
func (s *Store) Write(ctx context.Context, b *Block) error {
	if b == nil || b.ID == "" {
		return memerr.New("blockstore.Write", "", memerr.Invalid, fmt.Errorf("block id is required"))
	}
	l := s.lockFor(b.ID)
	l.Lock()
	defer l.Unlock()

	out := b.Clone()
	out.UpdatedAt = time.Now().UTC()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = out.UpdatedAt
	}
	if out.LastAccess.IsZero() {
		out.LastAccess = out.CreatedAt
	}
	out.ContentHash = ComputeContentHash(out)

	if err := s.writeSecure(s.path(out.ID), render(out)); err != nil {
		return memerr.New("blockstore.Write", b.ID, memerr.Internal, err)
	}

	s.logger.Debug(ctx, "block written", zap.String("block_id", out.ID), zap.String("content_hash", out.ContentHash))
	return nil
}

// writeSecure writes data to path atomically: a temp file with O_EXCL,
// fsync, then rename, so readers never observe a partial file.
func (s *Store) writeSecure(path string, data []byte) error {
	tmpPath := path + ".tmp." + randomSuffix()
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize file: %w", err)
	}
	return nil
}

func randomSuffix() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// Read loads a Block by id, checking the active directory then the
// archive directory.
func (s *Store) Read(ctx context.Context, id string) (*Block, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) && s.archiveDir != "" {
			data, err = os.ReadFile(s.archivePath(id))
		}
		if err != nil {
			if os.IsNotExist(err) {
				return nil, memerr.New("blockstore.Read", id, memerr.NotFound, err)
			}
			return nil, memerr.New("blockstore.Read", id, memerr.Internal, err)
		}
	}

	b, err := parseFile(data)
	if err != nil {
		return nil, memerr.New("blockstore.Read", id, memerr.Corruption, err)
	}
	if err := verifyContentHash(b); err != nil {
		return nil, memerr.New("blockstore.Read", id, memerr.Corruption, err)
	}
	return b, nil
}

// verifyContentHash recomputes a block's content hash and compares it
// against the value stored in its frontmatter, catching a body edited
// without updating content_hash (spec.md §7: Corruption is "content_hash
// mismatch or unparseable file"). A block with no stored hash predates
// hashing and is not checked.
func verifyContentHash(b *Block) error {
	if b.ContentHash == "" {
		return nil
	}
	if got := ComputeContentHash(b); got != b.ContentHash {
		return fmt.Errorf("content_hash mismatch: stored %q, computed %q", b.ContentHash, got)
	}
	return nil
}

// List returns every block in the active directory, sorted by id.
// includeArchived also walks the archive directory.
func (s *Store) List(ctx context.Context, includeArchived bool) ([]*Block, error) {
	blocks, err := s.listDir(ctx, s.blockDir)
	if err != nil {
		return nil, memerr.New("blockstore.List", "", memerr.Internal, err)
	}
	if includeArchived && s.archiveDir != "" {
		archived, err := s.listDir(ctx, s.archiveDir)
		if err != nil {
			return nil, memerr.New("blockstore.List", "", memerr.Internal, err)
		}
		blocks = append(blocks, archived...)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })
	return blocks, nil
}

func (s *Store) listDir(ctx context.Context, dir string) ([]*Block, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var blocks []*Block
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		b, err := parseFile(data)
		if err != nil {
			continue
		}
		if err := verifyContentHash(b); err != nil {
			s.logger.Warn(ctx, "blockstore: skipping corrupted block in listing", zap.String("block_id", b.ID), zap.Error(err))
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// MoveToArchive marks a block archived and atomically relocates its file
// from the active directory to the archive directory (spec.md §4.8).
func (s *Store) MoveToArchive(ctx context.Context, id string) error {
	if s.archiveDir == "" {
		return memerr.New("blockstore.MoveToArchive", id, memerr.Invalid, fmt.Errorf("archive_dir not configured"))
	}
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return memerr.New("blockstore.MoveToArchive", id, memerr.NotFound, err)
		}
		return memerr.New("blockstore.MoveToArchive", id, memerr.Internal, err)
	}
	b, err := parseFile(data)
	if err != nil {
		return memerr.New("blockstore.MoveToArchive", id, memerr.Corruption, err)
	}
	b.Archived = true
	b.UpdatedAt = time.Now().UTC()

	if err := s.writeSecure(s.archivePath(id), render(b)); err != nil {
		return memerr.New("blockstore.MoveToArchive", id, memerr.Internal, err)
	}
	if err := os.Remove(s.path(id)); err != nil {
		return memerr.New("blockstore.MoveToArchive", id, memerr.Internal, err)
	}
	s.logger.Info(ctx, "block archived", zap.String("block_id", id))
	return nil
}

// RestoreFromArchive is the inverse of MoveToArchive.
func (s *Store) RestoreFromArchive(ctx context.Context, id string) error {
	if s.archiveDir == "" {
		return memerr.New("blockstore.RestoreFromArchive", id, memerr.Invalid, fmt.Errorf("archive_dir not configured"))
	}
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.archivePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return memerr.New("blockstore.RestoreFromArchive", id, memerr.NotFound, err)
		}
		return memerr.New("blockstore.RestoreFromArchive", id, memerr.Internal, err)
	}
	b, err := parseFile(data)
	if err != nil {
		return memerr.New("blockstore.RestoreFromArchive", id, memerr.Corruption, err)
	}
	b.Archived = false
	b.UpdatedAt = time.Now().UTC()

	if err := s.writeSecure(s.path(id), render(b)); err != nil {
		return memerr.New("blockstore.RestoreFromArchive", id, memerr.Internal, err)
	}
	if err := os.Remove(s.archivePath(id)); err != nil {
		return memerr.New("blockstore.RestoreFromArchive", id, memerr.Internal, err)
	}
	s.logger.Info(ctx, "block restored", zap.String("block_id", id))
	return nil
}

// RecordAccess increments AccessCount and stamps LastAccess, rewritten
// atomically like any other update (spec.md §4.4's retrieval side effect).
func (s *Store) RecordAccess(ctx context.Context, id string, at time.Time) error {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	path := s.path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return memerr.New("blockstore.RecordAccess", id, memerr.NotFound, err)
		}
		return memerr.New("blockstore.RecordAccess", id, memerr.Internal, err)
	}
	b, err := parseFile(data)
	if err != nil {
		return memerr.New("blockstore.RecordAccess", id, memerr.Corruption, err)
	}
	b.AccessCount++
	b.LastAccess = at.UTC()

	if err := s.writeSecure(path, render(b)); err != nil {
		return memerr.New("blockstore.RecordAccess", id, memerr.Internal, err)
	}
	return nil
}
