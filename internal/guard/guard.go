package guard

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/lockstep/internal/event"
	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/logging"
)

// DefaultDebounce coalesces the bursts of events many editors emit per save.
const DefaultDebounce = 50 * time.Millisecond

// LockLookup reports the lock held on a path. *monitor.Monitor satisfies it.
type LockLookup interface {
	CheckLock(path string) (filelock.FileLock, bool)
}

// Violation is a write to a file that no write or modify lock covered.
type Violation struct {
	Path       string             // Slash-separated path relative to the guard root
	DetectedAt time.Time          // When the write was observed
	Lock       *filelock.FileLock // Read lock held on the path at the time, if any
}

// Guard watches a directory tree and reports unguarded writes.
type Guard struct {
	watcher *fsnotify.Watcher
	root    string
	lookup  LockLookup

	ignorePatterns []string
	ignore         []glob.Glob
	debounce       time.Duration
	logger         *logging.Logger
	bus            *event.Bus

	violations  []Violation
	onViolation func(Violation)

	mu       sync.RWMutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// Option configures a Guard.
type Option func(*Guard)

// WithIgnore adds glob patterns, matched against slash-separated paths
// relative to the root, for files that are never reported.
func WithIgnore(patterns ...string) Option {
	return func(g *Guard) {
		g.ignorePatterns = append(g.ignorePatterns, patterns...)
	}
}

// WithDebounce sets how long events for one file are coalesced. Zero handles
// every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(g *Guard) {
		if d >= 0 {
			g.debounce = d
		}
	}
}

// WithLogger sets the guard's logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithBus publishes an event for every violation.
func WithBus(bus *event.Bus) Option {
	return func(g *Guard) {
		g.bus = bus
	}
}

// New creates a Guard for the tree at root. Locks are looked up through
// lookup using the same relative paths that callers lock.
func New(root string, lookup LockLookup, opts ...Option) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve guard root: %w", err)
	}

	g := &Guard{
		root:     abs,
		lookup:   lookup,
		debounce: DefaultDebounce,
		logger:   logging.NopLogger(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.WithComponent("guard")

	for _, pattern := range g.ignorePatterns {
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		g.ignore = append(g.ignore, compiled)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	g.watcher = watcher
	return g, nil
}

// Root returns the absolute directory being watched.
func (g *Guard) Root() string {
	return g.root
}

// OnViolation sets a callback invoked for every violation, from the guard's
// goroutine.
func (g *Guard) OnViolation(cb func(Violation)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onViolation = cb
}

// Start registers the tree with the watcher and begins processing events.
func (g *Guard) Start() error {
	g.startMu.Lock()
	defer g.startMu.Unlock()

	if g.started {
		return nil
	}
	if err := g.watchDirRecursive(g.root); err != nil {
		return err
	}
	g.started = true
	go g.watchLoop()

	g.logger.Info("guard started", "root", g.root, "ignore", g.ignorePatterns)
	return nil
}

// Stop stops the guard and releases the watcher. Safe to call more than once.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() {
		close(g.stopCh)
		_ = g.watcher.Close()

		g.startMu.Lock()
		started := g.started
		g.startMu.Unlock()
		if started {
			<-g.doneCh
		}
	})
}

// watchDirRecursive adds root and every non-ignored directory below it.
func (g *Guard) watchDirRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("guard root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("guard root %s is not a directory", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if !d.IsDir() {
			return nil
		}
		if path != g.root && g.ignored(g.relative(path)+"/") {
			return filepath.SkipDir
		}
		if err := g.watcher.Add(path); err != nil {
			g.logger.Debug("cannot watch directory", "dir", path, "error", err)
		}
		return nil
	})
}

// watchLoop processes filesystem events
func (g *Guard) watchLoop() {
	defer close(g.doneCh)

	debounceTimer := time.NewTimer(time.Hour)
	debounceTimer.Stop()

	pending := make(map[string]fsnotify.Event)

	for {
		select {
		case <-g.stopCh:
			debounceTimer.Stop()
			return

		case ev, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if g.debounce == 0 {
				g.handleEvent(ev)
				continue
			}
			pending[ev.Name] = ev
			debounceTimer.Reset(g.debounce)

		case <-debounceTimer.C:
			events := pending
			pending = make(map[string]fsnotify.Event)
			for _, ev := range events {
				g.handleEvent(ev)
			}

		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			g.logger.Warn("watcher error", "error", err)
		}
	}
}

// handleEvent checks one changed path against the lock table.
func (g *Guard) handleEvent(ev fsnotify.Event) {
	info, err := os.Stat(ev.Name)
	if err != nil {
		return // Removed before we got to it
	}
	if info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			_ = g.watchDirRecursive(ev.Name)
		}
		return
	}

	rel := g.relative(ev.Name)
	if rel == "" || g.ignored(rel) {
		return
	}

	lock, held := g.lookup.CheckLock(rel)
	if !held {
		lock, held = g.lookup.CheckLock(ev.Name)
	}
	if held && lock.Operation.Exclusive() {
		return
	}

	v := Violation{Path: rel, DetectedAt: time.Now()}
	if held {
		v.Lock = &lock
	}
	g.record(v)
}

func (g *Guard) record(v Violation) {
	g.mu.Lock()
	g.violations = append(g.violations, v)
	cb := g.onViolation
	g.mu.Unlock()

	holder := ""
	if v.Lock != nil {
		holder = v.Lock.Holder
	}
	g.logger.Warn("unguarded write", "path", v.Path, "read_holder", holder)

	if g.bus != nil {
		g.bus.Publish(event.NewUnguardedWriteEvent(v.Path, holder))
	}
	if cb != nil {
		cb(v)
	}
}

// relative returns path relative to the root with forward slashes, or "" if
// path lies outside the root.
func (g *Guard) relative(path string) string {
	rel, err := filepath.Rel(g.root, path)
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return ""
	}
	return rel
}

// ignored reports whether rel matches an ignore pattern. A "./" prefixed
// form is tried too so that "**/x" patterns also match at the root.
func (g *Guard) ignored(rel string) bool {
	for _, pattern := range g.ignore {
		if pattern.Match(rel) || pattern.Match("./"+rel) {
			return true
		}
	}
	return false
}

// Violations returns a copy of every violation seen so far.
func (g *Guard) Violations() []Violation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]Violation, len(g.violations))
	copy(result, g.violations)
	return result
}

// ClearViolations forgets every recorded violation.
func (g *Guard) ClearViolations() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.violations = nil
}
