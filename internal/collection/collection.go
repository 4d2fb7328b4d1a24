// Package collection opens a collection database and hands out editable
// copies of its notes, cards and review log. Changes are measured against
// the tables as they were loaded and written back in one step.
package collection

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/frame"
	"github.com/conorfennell/ankitab/internal/gitsource"
	"github.com/conorfennell/ankitab/internal/paths"
	"github.com/conorfennell/ankitab/internal/storage"
	"github.com/conorfennell/ankitab/internal/writeback"
)

// DefaultCacheSize bounds the search memo of the default Finder.
const DefaultCacheSize = 32

// Collection is an open database with lazily loaded tables.
type Collection struct {
	db        *storage.DB
	finder    *paths.Finder
	backupDir string
	gitBackup bool

	// originals are the tables as loaded and never handed out.
	originals map[domain.Table]*frame.Frame
	items     map[domain.Table]*frame.Frame

	now func() time.Time
	log *slog.Logger
}

// Option configures a Collection.
type Option func(*Collection)

// WithFinder sets the Finder used to resolve the database path.
func WithFinder(f *paths.Finder) Option {
	return func(c *Collection) { c.finder = f }
}

// WithBackupDir writes backups to dir instead of the database's backup folder.
func WithBackupDir(dir string) Option {
	return func(c *Collection) { c.backupDir = dir }
}

// WithGitBackup commits every backup to a git repository in the backup folder.
func WithGitBackup(enabled bool) Option {
	return func(c *Collection) { c.gitBackup = enabled }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collection) { c.log = l }
}

// Open resolves path and user to a database and opens it. An empty path
// searches the default locations, a directory is searched.
func Open(path, user string, opts ...Option) (*Collection, error) {
	c := &Collection{
		originals: make(map[domain.Table]*frame.Frame),
		items:     make(map[domain.Table]*frame.Frame),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.finder == nil {
		f, err := paths.NewFinder(DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		f.SetLogger(c.log)
		c.finder = f
	}

	resolved, err := c.finder.Resolve(path, user)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(resolved)
	if err != nil {
		return nil, err
	}
	db.SetLogger(c.log)
	c.db = db
	c.log.Debug("Collection opened", "path", resolved, "layout", db.Layout())
	return c, nil
}

// Close closes the database. Loaded tables stay usable but can no longer
// be compared with or written to the store.
func (c *Collection) Close() error {
	return c.db.Close()
}

// Path returns the database file.
func (c *Collection) Path() string { return c.db.Path() }

// DB returns the underlying store.
func (c *Collection) DB() *storage.DB { return c.db }

func (c *Collection) frameOptions() []frame.Option {
	return []frame.Option{frame.WithLogger(c.log), frame.WithClock(c.now)}
}

// Table returns the working copy of t, loading it on first use.
func (c *Collection) Table(t domain.Table) (*frame.Frame, error) {
	if f, ok := c.items[t]; ok {
		return f, nil
	}
	original, err := c.original(t)
	if err != nil {
		return nil, err
	}
	f := original.Clone()
	f.SetBaseline(original)
	c.items[t] = f
	return f, nil
}

func (c *Collection) original(t domain.Table) (*frame.Frame, error) {
	if f, ok := c.originals[t]; ok {
		return f, nil
	}
	f, err := frame.Load(t, c.db, c.frameOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", t, err)
	}
	c.originals[t] = f
	return f, nil
}

// Notes returns the working copy of the notes table.
func (c *Collection) Notes() (*frame.Frame, error) { return c.Table(domain.Notes) }

// Cards returns the working copy of the cards table.
func (c *Collection) Cards() (*frame.Frame, error) { return c.Table(domain.Cards) }

// Revs returns the working copy of the review log.
func (c *Collection) Revs() (*frame.Frame, error) { return c.Table(domain.Revs) }

// SetTable replaces the working copy of f's table. Its changes are measured
// against the table as loaded.
func (c *Collection) SetTable(f *frame.Frame) error {
	if f == nil {
		return fmt.Errorf("no frame given")
	}
	original, err := c.original(f.Table())
	if err != nil {
		return err
	}
	f.SetBaseline(original)
	c.items[f.Table()] = f
	return nil
}

// Empty returns a frame of t without rows, ready to be filled and set.
func (c *Collection) Empty(t domain.Table) (*frame.Frame, error) {
	return frame.Empty(t, c.db, c.frameOptions()...)
}

// Loaded returns the working copies in table order.
func (c *Collection) Loaded() []*frame.Frame {
	var out []*frame.Frame
	for _, t := range domain.Tables() {
		if f, ok := c.items[t]; ok {
			out = append(out, f)
		}
	}
	return out
}

// SummarizeChanges summarizes the pending changes of every loaded table.
func (c *Collection) SummarizeChanges() (map[domain.Table]frame.Summary, error) {
	out := make(map[domain.Table]frame.Summary, len(c.items))
	for _, f := range c.Loaded() {
		s, err := f.Summarize()
		if err != nil {
			return nil, fmt.Errorf("failed to summarize %s: %w", f.Table(), err)
		}
		out[f.Table()] = s
	}
	return out, nil
}

// Write backs up the database and writes the changed tables. p names the
// kinds of change that may be applied; pending changes of any other kind
// fail with domain.ErrLossyWrite before anything is touched. It returns the
// backup path, or "" if nothing was written. Afterwards every table is
// reloaded on next use.
func (c *Collection) Write(p writeback.Permissions) (string, error) {
	if !p.Any() {
		c.log.Warn("No modification permitted, set modify, add or delete")
		return "", nil
	}
	items, err := writeback.Plan(p, c.Loaded()...)
	if err != nil {
		c.log.Error("Preparing the write failed, nothing was written", "error", err)
		return "", err
	}
	if len(items) == 0 {
		c.log.Warn("Nothing seems to have been changed, nothing was written")
		return "", nil
	}

	coordinator := writeback.New(c.db, writeback.BackupFunc(c.Backup),
		writeback.WithClock(c.now), writeback.WithLogger(c.log))
	backup, err := coordinator.Write(items...)
	if err != nil {
		return backup, err
	}
	c.log.Warn("Anki may not notice the change on its next sync; use Tools > Check Database in Anki if searches misbehave")

	clear(c.items)
	clear(c.originals)
	return backup, nil
}

// Backup copies the database into the backup folder and returns the path of
// the copy. With git backups enabled the copy is also committed.
func (c *Collection) Backup(now time.Time) (string, error) {
	dest, err := paths.Backup(c.db.Path(), c.backupDir, now)
	if err != nil {
		return "", err
	}
	if !c.gitBackup {
		return dest, nil
	}
	archive, err := gitsource.Open(filepath.Dir(dest))
	if err != nil {
		return dest, err
	}
	archive.SetLogger(c.log)
	msg := fmt.Sprintf("Backup of %s", filepath.Base(c.db.Path()))
	if _, err := archive.Commit(dest, msg, now); err != nil {
		return dest, err
	}
	return dest, nil
}
