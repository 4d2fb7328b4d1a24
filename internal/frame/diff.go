package frame

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/conorfennell/ankitab/internal/domain"
)

var errNoBaseline = errors.New("no baseline to compare with")

type diffOptions struct {
	against *Frame
	unknown bool
	only    bool
}

// DiffOption configures change detection.
type DiffOption func(*diffOptions)

// Against compares with other instead of the stored table.
func Against(other *Frame) DiffOption {
	return func(o *diffOptions) { o.against = other }
}

// UnknownAs is reported by WasModified for rows missing from the baseline.
// The default is true.
func UnknownAs(v bool) DiffOption {
	return func(o *diffOptions) { o.unknown = v }
}

// OnlyChanged restricts ModifiedColumns to rows with at least one change.
// The default is true.
func OnlyChanged(v bool) DiffOption {
	return func(o *diffOptions) { o.only = v }
}

func newDiffOptions(opts []DiffOption) diffOptions {
	o := diffOptions{unknown: true, only: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ColumnDiff flags changed cells of the rows present in both frames.
type ColumnDiff struct {
	IDs     []int64
	Columns []string
	Changed [][]bool
}

// Cell reports whether column of row id differs.
func (d *ColumnDiff) Cell(id int64, column string) bool {
	i, ok := slices.BinarySearch(d.IDs, id)
	if !ok {
		return false
	}
	j := slices.Index(d.Columns, column)
	if j < 0 {
		return false
	}
	return d.Changed[i][j]
}

// ChangedColumns returns the differing columns of row id.
func (d *ColumnDiff) ChangedColumns(id int64) []string {
	i, ok := slices.BinarySearch(d.IDs, id)
	if !ok {
		return nil
	}
	var out []string
	for j, changed := range d.Changed[i] {
		if changed {
			out = append(out, d.Columns[j])
		}
	}
	return out
}

// Summary counts the changes of a frame.
type Summary struct {
	N          int
	Modified   int
	Added      int
	Deleted    int
	HasChanged bool
}

// WasModified reports for every row whether a column shared with the
// baseline differs. Rows the baseline does not know get the UnknownAs value.
func (f *Frame) WasModified(opts ...DiffOption) (map[int64]bool, error) {
	if err := f.checkStable(); err != nil {
		return nil, err
	}
	o := newDiffOptions(opts)
	base, err := f.resolveBaseline(o.against)
	if err != nil {
		return nil, err
	}
	return f.wasModified(base, o.unknown)
}

// ModifiedColumns compares the rows present in both frames cell by cell over
// the shared columns. Rows are sorted by id.
func (f *Frame) ModifiedColumns(opts ...DiffOption) (*ColumnDiff, error) {
	if err := f.checkStable(); err != nil {
		return nil, err
	}
	o := newDiffOptions(opts)
	base, err := f.resolveBaseline(o.against)
	if err != nil {
		return nil, err
	}
	cur, err := f.comparable()
	if err != nil {
		return nil, err
	}
	other, err := base.comparable()
	if err != nil {
		return nil, err
	}
	cols := sharedColumns(cur, other)
	diff := &ColumnDiff{Columns: cols}
	for _, id := range sortedIDs(cur) {
		br, ok := other.rows[id]
		if !ok {
			continue
		}
		r := cur.rows[id]
		flags := make([]bool, len(cols))
		changed := false
		for j, c := range cols {
			flags[j] = !equalValue(r[c], br[c])
			changed = changed || flags[j]
		}
		if o.only && !changed {
			continue
		}
		diff.IDs = append(diff.IDs, id)
		diff.Changed = append(diff.Changed, flags)
	}
	return diff, nil
}

// WasAdded reports for every row whether its id is missing from the baseline.
func (f *Frame) WasAdded(opts ...DiffOption) (map[int64]bool, error) {
	if err := f.checkStable(); err != nil {
		return nil, err
	}
	o := newDiffOptions(opts)
	base, err := f.resolveBaseline(o.against)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(f.order))
	for _, id := range f.order {
		out[id] = !base.Has(id)
	}
	return out, nil
}

// WasDeleted returns the sorted ids of baseline rows missing from the frame.
func (f *Frame) WasDeleted(opts ...DiffOption) ([]int64, error) {
	if err := f.checkStable(); err != nil {
		return nil, err
	}
	o := newDiffOptions(opts)
	base, err := f.resolveBaseline(o.against)
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, id := range base.order {
		if !f.Has(id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Summarize counts modified, added and deleted rows. Added rows are not
// counted as modified.
func (f *Frame) Summarize(opts ...DiffOption) (Summary, error) {
	o := newDiffOptions(opts)
	base, err := f.resolveBaseline(o.against)
	if err != nil {
		return Summary{}, err
	}
	with := Against(base)
	modified, err := f.WasModified(with, UnknownAs(false))
	if err != nil {
		return Summary{}, err
	}
	added, err := f.WasAdded(with)
	if err != nil {
		return Summary{}, err
	}
	deleted, err := f.WasDeleted(with)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{N: f.Len(), Modified: count(modified), Added: count(added), Deleted: len(deleted)}
	s.HasChanged = s.Modified > 0 || s.Added > 0 || s.Deleted > 0
	return s, nil
}

// resolveBaseline picks the explicit frame, then the fixed baseline, then a
// fresh load from the source in the format the frame is converting from.
func (f *Frame) resolveBaseline(against *Frame) (*Frame, error) {
	if against != nil {
		return against, nil
	}
	if f.baseline != nil {
		return f.baseline, nil
	}
	if f.src == nil {
		return nil, fmt.Errorf("%w: %s frame has no source", errNoBaseline, f.table)
	}
	target := f.format
	if target == FormatTransforming {
		target = f.from
	}
	opts := []Option{WithLogger(f.log), WithFieldsPrefix(f.fieldsPrefix)}
	if f.lookups != nil {
		opts = append(opts, WithLookups(f.lookups))
	}
	if target == FormatRaw {
		return LoadRaw(f.table, f.src, opts...)
	}
	return Load(f.table, f.src, opts...)
}

func (f *Frame) wasModified(base *Frame, unknown bool) (map[int64]bool, error) {
	out := make(map[int64]bool, len(f.order))
	if base == nil {
		for _, id := range f.order {
			out[id] = unknown
		}
		return out, nil
	}
	cur, err := f.comparable()
	if err != nil {
		return nil, err
	}
	other, err := base.comparable()
	if err != nil {
		return nil, err
	}
	cols := sharedColumns(cur, other)
	for _, id := range cur.order {
		br, ok := other.rows[id]
		if !ok {
			out[id] = unknown
			continue
		}
		r := cur.rows[id]
		out[id] = slices.ContainsFunc(cols, func(c string) bool { return !equalValue(r[c], br[c]) })
	}
	return out, nil
}

// comparable returns the frame itself, or a copy with fields in list form
// when the fields are split into columns.
func (f *Frame) comparable() (*Frame, error) {
	if f.table != domain.Notes || f.fields != FieldsColumns {
		return f, nil
	}
	c := f.Clone()
	if err := c.fieldsAsList(true); err != nil {
		return nil, err
	}
	return c, nil
}

func sharedColumns(a, b *Frame) []string {
	var out []string
	for _, c := range a.columns {
		if b.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

func sortedIDs(f *Frame) []int64 {
	ids := f.IDs()
	slices.Sort(ids)
	return ids
}

func equalValue(a, b any) bool {
	a, b = normalizeValue(a), normalizeValue(b)
	la, aList := a.([]string)
	lb, bList := b.([]string)
	switch {
	case aList && bList:
		return slices.Equal(la, lb)
	case aList && b == nil:
		return len(la) == 0
	case bList && a == nil:
		return len(lb) == 0
	case aList || bList:
		return false
	}
	return reflect.DeepEqual(a, b)
}

func count(m map[int64]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
