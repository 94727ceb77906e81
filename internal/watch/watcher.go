// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when configuration files change.
//
// A Watcher follows two kinds of targets: individual files (the machine,
// general and model files of a composite configuration) and directory trees
// filtered by glob patterns (the setup files below the function path).
// Events within the debounce window are coalesced so the callback fires once
// with the full set of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period before the callback fires. Editors
// often write a temporary file and rename it over the original; both events
// land inside this window.
const defaultDebounce = 300 * time.Millisecond

var (
	// defaultPatterns select the files below a root when Config.Patterns is
	// empty.
	defaultPatterns = []string{"**/*.yaml", "**/*.yml"}

	// defaultIgnores are never reported, whatever the patterns say.
	defaultIgnores = []string{
		"**/.git/**",
		"**/*.swp",
		"**/*.swo",
		"**/*~",
		"**/.#*",
	}

	// ErrNothingToWatch is returned by New when Config names no files and no
	// roots.
	ErrNothingToWatch = errors.New("watch: nothing to watch")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Files are watched individually. Their parent directories are
		// registered with fsnotify so rename-on-save is seen.
		Files []string

		// Roots are directory trees watched recursively. Only files matching
		// Patterns trigger the callback.
		Roots []string

		// Patterns are doublestar globs evaluated relative to each root. An
		// empty slice selects YAML files.
		Patterns []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// OnChange receives the sorted absolute paths that changed. A nil
		// callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Stderr receives diagnostics. nil defaults to os.Stderr.
		Stderr io.Writer
	}

	// Watcher monitors configuration files and fires a debounced callback
	// when they change. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		files    map[string]struct{}
		roots    []string
		patterns []string
		stderr   io.Writer
		debounce time.Duration
		started  atomic.Bool
	}
)

// New creates a Watcher for cfg and registers every directory it needs with
// fsnotify. Files may not exist yet, but their directories must.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Files) == 0 && len(cfg.Roots) == 0 {
		return nil, ErrNothingToWatch
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	if err := validatePatterns(patterns); err != nil {
		return nil, err
	}

	files := make(map[string]struct{}, len(cfg.Files))
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", f, err)
		}
		files[abs] = struct{}{}
	}
	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", r, err)
		}
		roots = append(roots, abs)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		files:    files,
		roots:    roots,
		patterns: patterns,
		stderr:   stderr,
		debounce: debounce,
	}
	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			fmt.Fprintf(stderr, "watch: close after init failure: %v\n", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the watcher breaks. A second
// call returns an error immediately.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may run after cancellation via time.AfterFunc; the ctx check is
	// best-effort and OnChange receives ctx as well.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			// Retry later so the pending set is not dropped.
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				fmt.Fprintf(w.stderr, "watch: callback error: %v\n", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if closeErr := w.fsw.Close(); closeErr != nil {
			fmt.Fprintf(w.stderr, "watch: close fsnotify: %v\n", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.matches(evt.Name) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			fmt.Fprintf(w.stderr, "watch: fsnotify error: %v\n", err)
		}
	}
}

// Targets returns the watched files followed by the roots, as absolute
// paths.
func (w *Watcher) Targets() []string {
	return append(slices.Sorted(maps.Keys(w.files)), w.roots...)
}

// addDirectories registers the parent directory of every file and every
// non-ignored directory below each root.
func (w *Watcher) addDirectories() error {
	seen := make(map[string]struct{})
	add := func(dir string) error {
		if _, ok := seen[dir]; ok {
			return nil
		}
		seen[dir] = struct{}{}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", dir, err)
		}
		return nil
	}

	for _, f := range slices.Sorted(maps.Keys(w.files)) {
		if err := add(filepath.Dir(f)); err != nil {
			return err
		}
	}

	for _, root := range w.roots {
		walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, walkDirErr error) error {
			if walkDirErr != nil {
				if path == root {
					return walkDirErr
				}
				fmt.Fprintf(w.stderr, "watch: skipping inaccessible path %q: %v\n", path, walkDirErr)
				return nil //nolint:nilerr // inaccessible subtrees are skipped
			}
			if !d.IsDir() {
				return nil
			}
			if rel, err := filepath.Rel(root, path); err == nil && rel != "." && isIgnored(rel+"/") {
				return filepath.SkipDir
			}
			return add(path)
		})
		if walkErr != nil {
			return fmt.Errorf("watch: walk %q: %w", root, walkErr)
		}
	}
	return nil
}

// maybeAddDir registers directories created below a root after startup.
func (w *Watcher) maybeAddDir(path string) {
	if _, ok := w.rootOf(path); !ok {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if addErr := w.fsw.Add(path); addErr != nil {
		fmt.Fprintf(w.stderr, "watch: add new directory %q: %v\n", path, addErr)
	}
}

// matches reports whether path is a watched file or a non-ignored file below
// a root that matches one of the patterns.
func (w *Watcher) matches(path string) bool {
	if _, ok := w.files[path]; ok {
		return true
	}
	rel, ok := w.rootOf(path)
	if !ok || isIgnored(rel) {
		return false
	}
	for _, pat := range w.patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// rootOf returns path relative to the first root containing it, with forward
// slashes.
func (w *Watcher) rootOf(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range defaultIgnores {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}
	return nil
}
