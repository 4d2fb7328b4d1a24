package frame

import (
	"fmt"
	"strings"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/schema"
)

// FieldsAsColumns replaces the field list of notes by one column per field,
// named by the field prefix and the model's field name. Models without a
// field of that name leave the column empty. A note without a model must have
// no fields, otherwise the frame is refused unchanged.
func (f *Frame) FieldsAsColumns(opts ...ConvertOption) error {
	var o convertOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := f.checkFields(o.force, FieldsList); err != nil {
		return err
	}
	if f.fields == FieldsColumns && !o.force {
		f.log.Warn("fields already split into columns, nothing to do")
		return nil
	}
	if err := f.requireColumns("nflds"); err != nil {
		return err
	}
	l, err := f.Lookups()
	if err != nil {
		return err
	}

	mids := make(map[int64]int64, len(f.order))
	for _, id := range f.order {
		r := f.rows[id]
		mid, err := modelOf(l, r)
		if err != nil {
			return fmt.Errorf("failed to resolve model of note %d: %w", id, err)
		}
		if mid == 0 {
			values, err := listValue(r["nflds"])
			if err != nil {
				return fmt.Errorf("failed to read fields of note %d: %w", id, err)
			}
			if len(values) > 0 {
				return fmt.Errorf("%w: note %d has fields but no model to name them", domain.ErrLookupNotFound, id)
			}
		}
		mids[id] = mid
	}

	f.fieldsFrom = FieldsList
	f.fields = FieldsTransforming
	for _, id := range f.order {
		r := f.rows[id]
		mid := mids[id]
		if mid == 0 {
			continue
		}
		names, err := l.Fields(mid)
		if err != nil {
			return err
		}
		values, err := listValue(r["nflds"])
		if err != nil {
			return fmt.Errorf("failed to read fields of note %d: %w", id, err)
		}
		if len(values) > len(names) {
			return fmt.Errorf("note %d has %d fields but its model declares %d", id, len(values), len(names))
		}
		for i, name := range names {
			col := f.fieldsPrefix + name
			if !f.HasColumn(col) {
				f.AddColumn(col, "")
			}
			v := ""
			if i < len(values) {
				v = values[i]
			}
			r[col] = v
		}
	}
	f.DropColumn("nflds")
	f.fields = FieldsColumns
	return nil
}

// FieldsAsList is the inverse of FieldsAsColumns.
func (f *Frame) FieldsAsList(opts ...ConvertOption) error {
	var o convertOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := f.checkFields(o.force, FieldsColumns); err != nil {
		return err
	}
	if f.fields == FieldsList && !o.force {
		f.log.Warn("fields already a list, nothing to do")
		return nil
	}
	return f.fieldsAsList(o.force)
}

func (f *Frame) fieldsAsList(force bool) error {
	if f.fields == FieldsTransforming && !force {
		return fmt.Errorf("%w: an earlier field conversion was interrupted", domain.ErrFormatState)
	}
	l, err := f.Lookups()
	if err != nil {
		return err
	}

	f.fieldsFrom = FieldsColumns
	f.fields = FieldsTransforming
	used := make(map[string]bool)
	lists := make(map[int64][]string, len(f.order))
	for _, id := range f.order {
		r := f.rows[id]
		mid, err := modelOf(l, r)
		if err != nil {
			return fmt.Errorf("failed to resolve model of note %d: %w", id, err)
		}
		if mid == 0 {
			lists[id] = []string{}
			continue
		}
		names, err := l.Fields(mid)
		if err != nil {
			return err
		}
		values := make([]string, 0, len(names))
		for _, name := range names {
			col := f.fieldsPrefix + name
			if !f.HasColumn(col) {
				return fmt.Errorf("%w: field column %s of note %d", domain.ErrColumnMissing, col, id)
			}
			v, err := schema.ToText(r[col])
			if err != nil {
				return fmt.Errorf("failed to read %s of note %d: %w", col, id, err)
			}
			values = append(values, v)
			used[col] = true
		}
		lists[id] = values
	}
	// Columns are dropped only after every note was read; models share them.
	for col := range used {
		f.DropColumn(col)
	}
	if !f.HasColumn("nflds") {
		f.columns = append(f.columns, "nflds")
	}
	for id, values := range lists {
		f.rows[id]["nflds"] = values
	}
	f.fields = FieldsList
	return nil
}

// checkFields validates the state before a field conversion starting at want.
func (f *Frame) checkFields(force bool, want FieldsFormat) error {
	if f.table != domain.Notes {
		return fmt.Errorf("%w: fields only exist in notes, not %s", domain.ErrInvalidTable, f.table)
	}
	if force {
		return nil
	}
	if err := f.checkConvenient(); err != nil {
		return err
	}
	switch f.fields {
	case want, FieldsList, FieldsColumns:
		return nil
	case FieldsTransforming:
		return fmt.Errorf("%w: an earlier field conversion was interrupted", domain.ErrFormatState)
	}
	return fmt.Errorf("%w: fields are %s", domain.ErrFormatState, f.fields)
}

// FieldColumns returns the columns holding field contents, in column order.
func (f *Frame) FieldColumns() []string {
	if f.fields != FieldsColumns {
		return nil
	}
	var out []string
	for _, c := range f.columns {
		if strings.HasPrefix(c, f.fieldsPrefix) {
			out = append(out, c)
		}
	}
	return out
}

// modelOf returns the model id of a note row, preferring an explicit mid.
func modelOf(l *domain.Lookups, r domain.Row) (int64, error) {
	if v, ok := r["mid"]; ok && v != nil {
		return schema.ToInt(v)
	}
	name, err := schema.ToText(r[schema.ModelColumn])
	if err != nil {
		return 0, err
	}
	return l.ModelID(name)
}
