// Package inflow watches a folder for new text files and records each one as
// a block, the way contextd's pkg/prefetch watches .git/HEAD for branch
// switches: an fsnotify.Watcher feeding a small event-handling goroutine. It
// is a CLI collaborator that sits outside the memcore engine — memcore never
// imports it, it only depends on memcore through the narrow Recorder
// interface.
package inflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/obslog"
	"github.com/fyrsmithlabs/memcore/internal/project"
	"go.uber.org/zap"
)

// Recorder is the subset of *memcore.MemoryCore the watcher needs. Accepting
// an interface instead of a concrete type keeps inflow from importing
// memcore's full dependency graph.
type Recorder interface {
	Record(ctx context.Context, title, body string, tags []string, infoType blockstore.InformationType, extra map[string]interface{}) (string, error)
}

// Config configures a Watcher.
type Config struct {
	// Dir is the folder to watch for new files.
	Dir string

	// Extensions restricts which files are recorded, e.g. []string{".md",
	// ".txt"}. Empty means accept every regular file.
	Extensions []string

	// Tags are attached to every recorded block in addition to "inflow".
	Tags []string

	// InformationType classifies recorded blocks (default: Ephemeral, since
	// dropped-in files are typically notes of the moment).
	InformationType blockstore.InformationType

	// SettleDelay is how long a file's mtime must be quiet before it is
	// read, so a writer still appending to the file isn't recorded mid-write.
	SettleDelay time.Duration
}

// Watcher watches Config.Dir and records new files via a Recorder.
type Watcher struct {
	cfg      Config
	recorder Recorder
	watcher  *fsnotify.Watcher
	logger   *obslog.Logger

	seen map[string]time.Time
	stop chan struct{}
}

// New creates a Watcher for cfg.Dir. Call Start to begin watching.
func New(cfg Config, recorder Recorder, logger *obslog.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("inflow: dir is required")
	}
	if cfg.InformationType == "" {
		cfg.InformationType = blockstore.Ephemeral
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = obslog.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("inflow: initializing filesystem watcher: %w", err)
	}

	return &Watcher{
		cfg:      cfg,
		recorder: recorder,
		watcher:  fsw,
		logger:   logger,
		seen:     make(map[string]time.Time),
		stop:     make(chan struct{}),
	}, nil
}

// Start begins watching Config.Dir in a background goroutine. Call Stop to
// release the underlying filesystem watcher.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("inflow: watching %s: %w", w.cfg.Dir, err)
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.handleCandidate(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "inflow: watcher error", zap.Error(err))
		}
	}
}

// handleCandidate records path once its extension matches and its mtime has
// been quiet for SettleDelay, so files are read only after the writer is
// done with them.
func (w *Watcher) handleCandidate(ctx context.Context, path string) {
	if !w.acceptExtension(path) {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	mtime := info.ModTime()
	if last, ok := w.seen[path]; ok && !mtime.After(last) {
		return
	}
	w.seen[path] = mtime

	go func() {
		time.Sleep(w.cfg.SettleDelay)
		if info, err := os.Stat(path); err != nil || info.ModTime().After(mtime) {
			return // file changed again during the settle window, wait for the next event
		}
		w.record(ctx, path)
	}()
}

func (w *Watcher) acceptExtension(path string) bool {
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range w.cfg.Extensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) record(ctx context.Context, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn(ctx, "inflow: reading candidate file failed", zap.String("path", path), zap.Error(err))
		return
	}

	title := filepath.Base(path)
	tags := append([]string{"inflow"}, w.cfg.Tags...)

	extra := map[string]interface{}{"inflow_path": path}
	if info, err := project.Detect(w.cfg.Dir); err == nil && (info.Branch != "" || info.Commit != "") {
		extra["git_branch"] = info.Branch
		extra["git_commit"] = info.Commit
	}

	id, err := w.recorder.Record(ctx, title, string(content), tags, w.cfg.InformationType, extra)
	if err != nil {
		w.logger.Warn(ctx, "inflow: record failed", zap.String("path", path), zap.Error(err))
		return
	}

	w.logger.Info(ctx, "inflow: recorded file", zap.String("path", path), zap.String("block_id", id))
}
