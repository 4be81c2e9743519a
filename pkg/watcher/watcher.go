// Package watcher turns file changes in a VitePress dist directory into
// annotation triggers.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/metadata"
	"github.com/fsnotify/fsnotify"
)

const (
	// triggerChannelBuffer is the size of the trigger channel.
	triggerChannelBuffer = 64

	DefaultDebounce     = 200 * time.Millisecond
	DefaultPollInterval = 500 * time.Millisecond
)

// pageChunkRe matches compiled page chunks such as "web_guide.md.CQv1mbBt.js"
// and their ".lean.js" variants.
var pageChunkRe = regexp.MustCompile(`(?i)\.md\.[\w-]+(\.lean)?\.js$`)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long changes are gathered before a trigger is sent.
	Debounce time.Duration
	// PollInterval is how often Ready checks for the dist directory.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Watcher watches a dist directory. It implements the session host: Ready
// waits for the directory, Triggers delivers batched changes.
type Watcher struct {
	dist     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	poll     time.Duration

	// Debouncing: collect changes before sending a trigger
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	// Hash-based change detection
	hashMu sync.RWMutex
	hashes map[string]string

	triggers chan models.Trigger
	started  atomic.Bool

	droppedTriggers atomic.Int64
}

// New creates a watcher for dist. Nothing is watched until Ready succeeds.
func New(dist string, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Watcher{
		dist:     filepath.Clean(dist),
		watcher:  fsw,
		logger:   opts.Logger,
		debounce: opts.Debounce,
		poll:     opts.PollInterval,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		triggers: make(chan models.Trigger, triggerChannelBuffer),
	}, nil
}

// Triggers returns the trigger channel. It is closed when the watch loop exits.
func (w *Watcher) Triggers() <-chan models.Trigger {
	return w.triggers
}

// Ready blocks until the dist directory exists, then starts watching it.
// The watch loop runs until ctx is cancelled or Close is called.
func (w *Watcher) Ready(ctx context.Context) error {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for !isDir(w.dist) {
		w.logger.Debug("Waiting for dist directory", "dist", w.dist)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if !w.started.CompareAndSwap(false, true) {
		return nil
	}

	if err := w.addWatchesRecursive(w.dist); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dist, err)
	}
	w.seedHashes()

	go w.processEvents(ctx)

	w.logger.Info("Dist watcher started", "dist", w.dist, "debounce", w.debounce)
	return nil
}

// Close stops the watcher.
// The trigger channel is closed by processEvents when it exits.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	if w.started.CompareAndSwap(false, true) {
		close(w.triggers)
	}
	return err
}

// Refresh re-hashes pages after they were written elsewhere, so the
// resulting file events are not reported as changes.
func (w *Watcher) Refresh(pages []string) {
	for _, rel := range pages {
		path := filepath.Join(w.dist, filepath.FromSlash(rel))
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		w.SetHash(rel, contentHash(content))
	}
}

// SetHash records the content hash for a dist-relative path.
func (w *Watcher) SetHash(rel, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[rel] = hash
}

// GetHash returns the recorded content hash for a dist-relative path.
func (w *Watcher) GetHash(rel string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[rel]
	return hash, ok
}

// DroppedTriggers returns the number of triggers dropped due to channel overflow.
func (w *Watcher) DroppedTriggers() int64 {
	return w.droppedTriggers.Load()
}

// seedHashes records the content of every watched file already on disk.
func (w *Watcher) seedHashes() {
	_ = filepath.Walk(w.dist, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, kind := w.classify(path)
		if kind == kindNone {
			return nil
		}
		if content, err := os.ReadFile(path); err == nil {
			w.SetHash(rel, contentHash(content))
		}
		return nil
	})
}

// addWatchesRecursive adds watches to all directories.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		if path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}
		return nil
	})
}

type fileKind int

const (
	kindNone fileKind = iota
	kindPage
	kindChunk
)

// classify maps a path to its dist-relative form and what it means for
// annotation: a rendered page or a compiled page chunk.
func (w *Watcher) classify(path string) (string, fileKind) {
	rel, err := filepath.Rel(w.dist, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", kindNone
	}
	rel = filepath.ToSlash(rel)

	if strings.HasPrefix(rel, metadata.AssetsDir+"/") {
		if pageChunkRe.MatchString(rel) {
			return rel, kindChunk
		}
		return rel, kindNone
	}
	if strings.EqualFold(filepath.Ext(rel), ".html") {
		return rel, kindPage
	}
	return rel, kindNone
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.triggers)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent records a single fsnotify event.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) && isDir(path) {
		w.handleNewDirectory(path)
		return
	}

	rel, kind := w.classify(path)
	if kind == kindNone {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Dist change detected", "path", rel, "op", event.Op.String())
}

// handleNewDirectory watches a newly created directory and picks up any
// pages written into it before the watch was in place.
func (w *Watcher) handleNewDirectory(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	if err := w.addWatchesRecursive(path); err != nil {
		w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
		return
	}

	_ = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if _, kind := w.classify(p); kind != kindNone {
			w.pendingMu.Lock()
			w.pending[p] = fsnotify.Create
			w.pendingMu.Unlock()
		}
		return nil
	})
}

// flushPending turns accumulated changes into at most one trigger. A changed
// page chunk means page data moved under existing pages, so every page is
// rescanned; otherwise only the changed pages are.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	var (
		pages        []string
		chunkChanged bool
	)
	for path, op := range toProcess {
		if ctx.Err() != nil {
			return
		}

		rel, kind := w.classify(path)

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			w.hashMu.Lock()
			delete(w.hashes, rel)
			w.hashMu.Unlock()
			if !fileExists(path) {
				continue
			}
		}

		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				w.logger.Warn("Failed to read file for hash check", "path", rel, "error", err)
			}
			continue
		}

		newHash := contentHash(content)
		if oldHash, ok := w.GetHash(rel); ok && oldHash == newHash {
			continue
		}
		w.SetHash(rel, newHash)

		switch kind {
		case kindChunk:
			chunkChanged = true
		case kindPage:
			pages = append(pages, rel)
		}
	}

	switch {
	case chunkChanged:
		w.send(models.Trigger{Kind: models.TriggerContentMutated})
	case len(pages) > 0:
		sort.Strings(pages)
		w.send(models.Trigger{Kind: models.TriggerNavigationChanged, Pages: pages})
	}
}

// send delivers a trigger without blocking the watch loop.
func (w *Watcher) send(trigger models.Trigger) {
	select {
	case w.triggers <- trigger:
		w.logger.Debug("Sent trigger", "kind", trigger.Kind, "pages", len(trigger.Pages))
	default:
		dropped := w.droppedTriggers.Add(1)
		w.logger.Warn("Trigger channel full, dropping trigger",
			"kind", trigger.Kind,
			"total_dropped", dropped)
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
