// Package writeback persists edited frames: it converts them to the wire
// format, takes one backup of the store and writes every table under its
// write mode.
package writeback

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/frame"
)

// Store persists raw rows.
type Store interface {
	WriteTable(t domain.Table, rows []domain.Row, mode domain.WriteMode) error
	UpdateIndices(t domain.Table) error
}

// Backuper copies the store before it is written and returns the copy's path.
type Backuper interface {
	Backup(now time.Time) (string, error)
}

// BackupFunc adapts a function to Backuper.
type BackupFunc func(now time.Time) (string, error)

func (f BackupFunc) Backup(now time.Time) (string, error) { return f(now) }

// Item is one table to persist.
type Item struct {
	Frame *frame.Frame
	Mode  domain.WriteMode
}

// Coordinator runs write-backs against one store.
type Coordinator struct {
	store  Store
	backup Backuper
	now    func() time.Time
	log    *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithClock replaces time.Now for backup names.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New returns a Coordinator writing to store and backing up through backup.
func New(store Store, backup Backuper, opts ...Option) *Coordinator {
	c := &Coordinator{store: store, backup: backup, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Write persists items in order and returns the path of the backup taken
// before the first table was written. The frames themselves are left
// untouched; conversion happens on copies. Nothing is written if any
// conversion fails.
func (c *Coordinator) Write(items ...Item) (string, error) {
	if len(items) == 0 {
		c.log.Warn("Nothing to write")
		return "", nil
	}

	prepared := make([][]domain.Row, len(items))
	for i, item := range items {
		if item.Frame == nil {
			return "", fmt.Errorf("item %d has no frame", i)
		}
		rows, err := rawRows(item.Frame)
		if err != nil {
			return "", fmt.Errorf("failed to prepare %s for writing, nothing was written: %w", item.Frame.Table(), err)
		}
		prepared[i] = rows
	}

	backup, err := c.backup.Backup(c.now())
	if err != nil {
		return "", fmt.Errorf("failed to back up before writing: %w", err)
	}
	c.log.Info("Backup created", "path", backup)

	for i, item := range items {
		t := item.Frame.Table()
		c.log.Debug("Writing table", "table", t, "mode", item.Mode, "rows", len(prepared[i]))
		if err := c.store.WriteTable(t, prepared[i], item.Mode); err != nil {
			c.log.Error("Write failed, the store may be inconsistent; restore it from the backup",
				"table", t, "backup", backup, "error", err)
			return backup, fmt.Errorf("failed to write %s: %w", t, err)
		}
		if t == domain.Notes || t == domain.Cards {
			if err := c.store.UpdateIndices(t); err != nil {
				return backup, err
			}
		}
	}
	return backup, nil
}

func rawRows(f *frame.Frame) ([]domain.Row, error) {
	c := f.Clone()
	if c.Format() != frame.FormatRaw {
		if err := c.Raw(); err != nil {
			return nil, err
		}
	}
	return c.Rows(), nil
}

// Permissions name the kinds of pending change a write may apply.
type Permissions struct {
	Modify bool
	Add    bool
	Delete bool
}

// ErrNoPermission is returned when no kind of change is permitted.
var ErrNoPermission = errors.New("no modification permitted, allow modify, add or delete")

// Any reports whether at least one kind of change is permitted.
func (p Permissions) Any() bool { return p.Modify || p.Add || p.Delete }

// Mode returns the write mode serving p: update for modify-only, append for
// add-only and replace otherwise.
func (p Permissions) Mode() domain.WriteMode {
	switch {
	case p.Modify && !p.Add && !p.Delete:
		return domain.Update
	case p.Add && !p.Modify && !p.Delete:
		return domain.Append
	}
	return domain.Replace
}

// Check refuses pending changes that p does not permit.
func (p Permissions) Check(t domain.Table, s frame.Summary) error {
	if !p.Delete && s.Deleted > 0 {
		return fmt.Errorf("%w: delete not permitted, but %d %s rows would be deleted", domain.ErrLossyWrite, s.Deleted, t)
	}
	if !p.Modify && s.Modified > 0 {
		return fmt.Errorf("%w: modify not permitted, but %d %s rows would be modified", domain.ErrLossyWrite, s.Modified, t)
	}
	if !p.Add && s.Added > 0 {
		return fmt.Errorf("%w: add not permitted, but %d %s rows would be added", domain.ErrLossyWrite, s.Added, t)
	}
	return nil
}

// Plan checks the pending changes of frames against p and returns the items
// to write. Unchanged frames are skipped.
func Plan(p Permissions, frames ...*frame.Frame) ([]Item, error) {
	if !p.Any() {
		return nil, ErrNoPermission
	}
	var items []Item
	for _, f := range frames {
		if f == nil {
			continue
		}
		s, err := f.Summarize()
		if err != nil {
			return nil, fmt.Errorf("failed to summarize changes of %s: %w", f.Table(), err)
		}
		if err := p.Check(f.Table(), s); err != nil {
			return nil, err
		}
		if !s.HasChanged {
			continue
		}
		items = append(items, Item{Frame: f, Mode: p.Mode()})
	}
	return items, nil
}
