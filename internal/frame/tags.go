package frame

import (
	"fmt"
	"slices"
	"sort"

	"github.com/conorfennell/ankitab/internal/schema"
)

const tagsColumn = "ntags"

// HasTag reports for every row whether it carries any of tags. Without tags
// it reports whether the row is tagged at all.
func (f *Frame) HasTag(tags ...string) (map[int64]bool, error) {
	return f.matchTags(func(have []string) bool {
		if len(tags) == 0 {
			return len(have) > 0
		}
		return slices.ContainsFunc(tags, func(t string) bool { return slices.Contains(have, t) })
	})
}

// HasTags reports for every row whether it carries all of tags.
func (f *Frame) HasTags(tags ...string) (map[int64]bool, error) {
	if len(tags) == 0 {
		return f.HasTag()
	}
	return f.matchTags(func(have []string) bool {
		for _, t := range tags {
			if !slices.Contains(have, t) {
				return false
			}
		}
		return true
	})
}

// AddTag appends the missing tags, sorted, to the rows with ids, or to all
// rows if ids is nil.
func (f *Frame) AddTag(ids []int64, tags ...string) error {
	add := uniqueSorted(tags)
	return f.editTags(ids, func(have []string) []string {
		out := slices.Clone(have)
		for _, t := range add {
			if !slices.Contains(have, t) {
				out = append(out, t)
			}
		}
		return out
	})
}

// RemoveTag removes tags from the rows with ids, or from all rows if ids is
// nil. Without tags every tag is removed.
func (f *Frame) RemoveTag(ids []int64, tags ...string) error {
	return f.editTags(ids, func(have []string) []string {
		if len(tags) == 0 {
			return []string{}
		}
		return slices.DeleteFunc(slices.Clone(have), func(t string) bool { return slices.Contains(tags, t) })
	})
}

// ListTags returns every tag in use, sorted.
func (f *Frame) ListTags() ([]string, error) {
	if err := f.checkTags(); err != nil {
		return nil, err
	}
	var all []string
	for _, r := range f.rows {
		have, err := tagsValue(r[tagsColumn])
		if err != nil {
			return nil, err
		}
		all = append(all, have...)
	}
	return uniqueSorted(all), nil
}

// ListDecks returns the deck names in use, sorted, without the empty name.
func (f *Frame) ListDecks() ([]string, error) {
	return f.listNames(schema.DeckColumn)
}

// ListModels returns the model names in use, sorted.
func (f *Frame) ListModels() ([]string, error) {
	return f.listNames(schema.ModelColumn)
}

func (f *Frame) listNames(column string) ([]string, error) {
	if err := f.checkConvenient(); err != nil {
		return nil, err
	}
	if err := f.requireColumns(column); err != nil {
		return nil, err
	}
	var names []string
	for _, r := range f.rows {
		name, err := schema.ToText(r[column])
		if err != nil {
			return nil, err
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return uniqueSorted(names), nil
}

func (f *Frame) checkTags() error {
	if err := f.checkConvenient(); err != nil {
		return err
	}
	return f.requireColumns(tagsColumn)
}

func (f *Frame) matchTags(match func(have []string) bool) (map[int64]bool, error) {
	if err := f.checkTags(); err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(f.order))
	for id, r := range f.rows {
		have, err := tagsValue(r[tagsColumn])
		if err != nil {
			return nil, fmt.Errorf("failed to read tags of row %d: %w", id, err)
		}
		out[id] = match(have)
	}
	return out, nil
}

func (f *Frame) editTags(ids []int64, edit func(have []string) []string) error {
	if err := f.checkTags(); err != nil {
		return err
	}
	if ids == nil {
		ids = f.order
	}
	for _, id := range ids {
		r, ok := f.rows[id]
		if !ok {
			return fmt.Errorf("%s has no row with id %d", f.table, id)
		}
		have, err := tagsValue(r[tagsColumn])
		if err != nil {
			return fmt.Errorf("failed to read tags of row %d: %w", id, err)
		}
		r[tagsColumn] = edit(have)
	}
	return nil
}

func uniqueSorted(in []string) []string {
	out := slices.Clone(in)
	sort.Strings(out)
	return slices.Compact(out)
}
