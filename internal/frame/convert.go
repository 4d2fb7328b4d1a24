package frame

import (
	"errors"
	"fmt"
	"slices"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/knol"
	"github.com/conorfennell/ankitab/internal/schema"
)

// PendingUSN marks a row as waiting for synchronization.
const PendingUSN int64 = -1

type convertOptions struct {
	force bool
}

// ConvertOption configures Normalize and Raw.
type ConvertOption func(*convertOptions)

// WithForce attempts the conversion even if the frame is tagged
// transforming. A frame already in the target format is left alone.
func WithForce() ConvertOption {
	return func(o *convertOptions) { o.force = true }
}

// Normalize converts a raw frame to the convenient format in place. If a step
// fails the frame stays transforming and only a forced call may retry.
func (f *Frame) Normalize(opts ...ConvertOption) error {
	var o convertOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case f.format == FormatConvenient:
		f.log.Warn("frame already in convenient format, nothing to do", "table", f.table)
		return nil
	case f.format == FormatTransforming && !o.force:
		return f.checkStable()
	}

	f.from = FormatRaw
	f.format = FormatTransforming

	if err := f.castColumns(); err != nil {
		return err
	}
	f.renameColumns(f.desc.Convenient)
	if err := f.decodeValues(); err != nil {
		return err
	}
	if err := f.promoteIndex(); err != nil {
		return err
	}
	if err := f.deriveNames(); err != nil {
		return err
	}
	if f.table == domain.Notes {
		if err := f.splitNoteColumns(); err != nil {
			return err
		}
	}
	f.restrictColumns(f.desc.Defaults())

	f.format = FormatConvenient
	return nil
}

// Raw converts a convenient frame back to the wire format in place. Rows that
// differ from the baseline get a pending usn and, for cards and notes, a fresh
// modification time; notes with a blank guid receive one.
func (f *Frame) Raw(opts ...ConvertOption) error {
	var o convertOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case f.format == FormatRaw:
		f.log.Warn("frame already in raw format, nothing to do", "table", f.table)
		return nil
	case f.format == FormatTransforming && !o.force:
		return f.checkStable()
	}

	f.from = FormatConvenient
	f.format = FormatTransforming

	if err := f.maintain(); err != nil {
		return err
	}
	f.demoteIndex()
	if err := f.deriveIDs(); err != nil {
		return err
	}
	if f.table == domain.Notes {
		if err := f.joinNoteColumns(); err != nil {
			return err
		}
	}
	if err := f.encodeValues(); err != nil {
		return err
	}
	f.renameColumns(f.desc.Raw)
	if err := f.castColumns(); err != nil {
		return err
	}
	for col, v := range f.desc.Placeholders() {
		if !f.HasColumn(col) {
			f.columns = append(f.columns, col)
		}
		for _, r := range f.rows {
			r[col] = v
		}
	}
	wire := f.desc.WireColumns()
	if err := f.requireColumns(wire...); err != nil {
		return err
	}
	f.restrictColumns(wire)

	f.format = FormatRaw
	return nil
}

// ForceResume re-runs the conversion that left the frame transforming.
func (f *Frame) ForceResume() error {
	from, ok := f.TransformingFrom()
	if !ok {
		return fmt.Errorf("%w: %s frame is %s, nothing to resume", domain.ErrFormatState, f.table, f.format)
	}
	if from == FormatRaw {
		return f.Normalize(WithForce())
	}
	return f.Raw(WithForce())
}

// castColumns applies the declared kind to every wire column present.
func (f *Frame) castColumns() error {
	for _, c := range f.desc.Columns() {
		if !f.HasColumn(c.Raw) {
			continue
		}
		for _, id := range f.order {
			r := f.rows[id]
			v, err := schema.Cast(c.Kind, r[c.Raw])
			if err != nil {
				return fmt.Errorf("failed to cast %s.%s of row %d: %w", f.table, c.Raw, id, err)
			}
			r[c.Raw] = v
		}
	}
	return nil
}

func (f *Frame) renameColumns(rename func(string) string) {
	mapping := make(map[string]string, len(f.columns))
	for i, c := range f.columns {
		n := rename(c)
		if n == c {
			continue
		}
		mapping[c] = n
		f.columns[i] = n
	}
	if len(mapping) == 0 {
		return
	}
	for id, r := range f.rows {
		out := make(domain.Row, len(r))
		for k, v := range r {
			if n, ok := mapping[k]; ok {
				k = n
			}
			out[k] = v
		}
		f.rows[id] = out
	}
}

func (f *Frame) decodeValues() error {
	for _, col := range f.desc.ValueColumns() {
		if !f.HasColumn(col) {
			continue
		}
		for _, id := range f.order {
			r := f.rows[id]
			code, ok := r[col].(int64)
			if !ok {
				continue
			}
			label, err := f.desc.Decode(col, code)
			if err != nil {
				return fmt.Errorf("failed to decode row %d: %w", id, err)
			}
			r[col] = label
		}
	}
	return nil
}

func (f *Frame) encodeValues() error {
	for _, col := range f.desc.ValueColumns() {
		if !f.HasColumn(col) {
			continue
		}
		for _, id := range f.order {
			r := f.rows[id]
			label, ok := r[col].(string)
			if !ok {
				continue
			}
			code, err := f.desc.Encode(col, label)
			if err != nil {
				return fmt.Errorf("failed to encode row %d: %w", id, err)
			}
			r[col] = code
		}
	}
	return nil
}

// promoteIndex turns the renamed id column into the row key. Rows are already
// keyed by id, so the column only has to agree with the key before it goes.
func (f *Frame) promoteIndex() error {
	idx := f.desc.Index
	if !f.HasColumn(idx) {
		return nil
	}
	for _, id := range f.order {
		r := f.rows[id]
		if v, ok := r[idx].(int64); ok && v != id {
			return fmt.Errorf("%s row keyed %d carries id %d", f.table, id, v)
		}
		delete(r, idx)
	}
	f.columns = slices.DeleteFunc(f.columns, func(c string) bool { return c == idx })
	return nil
}

func (f *Frame) demoteIndex() {
	idx := f.desc.Index
	if f.HasColumn("id") {
		return
	}
	if !f.HasColumn(idx) {
		f.columns = append([]string{idx}, f.columns...)
	}
	for id, r := range f.rows {
		r[idx] = id
	}
}

// deriveNames adds the name columns resolved from id columns.
func (f *Frame) deriveNames() error {
	var pairs [][2]string
	var resolve func(*domain.Lookups, int64) (string, error)
	switch f.table {
	case domain.Cards:
		pairs = [][2]string{{"did", schema.DeckColumn}, {"codid", schema.OriginalDeckColumn}}
		resolve = (*domain.Lookups).DeckName
	case domain.Notes:
		pairs = [][2]string{{"mid", schema.ModelColumn}}
		resolve = (*domain.Lookups).ModelName
	default:
		return nil
	}
	l, err := f.Lookups()
	if err != nil {
		return err
	}
	for _, p := range pairs {
		idCol, nameCol := p[0], p[1]
		if !f.HasColumn(idCol) {
			// A forced retry may find the name already derived.
			if f.HasColumn(nameCol) {
				continue
			}
			return fmt.Errorf("%w: %s.%s", domain.ErrColumnMissing, f.table, idCol)
		}
		if !f.HasColumn(nameCol) {
			f.columns = append(f.columns, nameCol)
		}
		for _, id := range f.order {
			r := f.rows[id]
			ref, err := schema.ToInt(r[idCol])
			if err != nil {
				return fmt.Errorf("failed to read %s.%s of row %d: %w", f.table, idCol, id, err)
			}
			name, err := resolve(l, ref)
			if err != nil {
				return fmt.Errorf("failed to resolve %s of %s row %d: %w", idCol, f.table, id, err)
			}
			r[nameCol] = name
		}
	}
	return nil
}

// deriveIDs is the inverse of deriveNames.
func (f *Frame) deriveIDs() error {
	var pairs [][2]string
	var resolve func(*domain.Lookups, string) (int64, error)
	switch f.table {
	case domain.Cards:
		pairs = [][2]string{{schema.DeckColumn, "did"}, {schema.OriginalDeckColumn, "codid"}}
		resolve = (*domain.Lookups).DeckID
	case domain.Notes:
		pairs = [][2]string{{schema.ModelColumn, "mid"}}
		resolve = (*domain.Lookups).ModelID
	default:
		return nil
	}
	l, err := f.Lookups()
	if err != nil {
		return err
	}
	for _, p := range pairs {
		nameCol, idCol := p[0], p[1]
		if err := f.requireColumns(nameCol); err != nil {
			return err
		}
		if !f.HasColumn(idCol) {
			f.columns = append(f.columns, idCol)
		}
		for _, id := range f.order {
			r := f.rows[id]
			name, err := schema.ToText(r[nameCol])
			if err != nil {
				return fmt.Errorf("failed to read %s.%s of row %d: %w", f.table, nameCol, id, err)
			}
			ref, err := resolve(l, name)
			if err != nil {
				return fmt.Errorf("failed to resolve %s of %s row %d: %w", nameCol, f.table, id, err)
			}
			r[idCol] = ref
		}
	}
	return nil
}

func (f *Frame) splitNoteColumns() error {
	if f.HasColumn("ntags") {
		for _, r := range f.rows {
			if s, ok := r["ntags"].(string); ok {
				r["ntags"] = knol.SplitTags(s)
			}
		}
	}
	if f.HasColumn("nflds") {
		for _, r := range f.rows {
			if s, ok := r["nflds"].(string); ok {
				r["nflds"] = knol.SplitFields(s)
			}
		}
	}
	f.fields = FieldsList
	return nil
}

// joinNoteColumns recomputes the sort field and checksum and serializes
// fields and tags.
func (f *Frame) joinNoteColumns() error {
	if f.fields != FieldsList {
		if err := f.fieldsAsList(true); err != nil {
			return err
		}
		if f.fields != FieldsList {
			return fmt.Errorf("%w: note fields are %s, expected list", domain.ErrFormatState, f.fields)
		}
	}
	if err := f.requireColumns("nflds", "mid"); err != nil {
		return err
	}
	l, err := f.Lookups()
	if err != nil {
		return err
	}
	for _, col := range []string{"nsfld", "ncsum"} {
		if !f.HasColumn(col) {
			f.columns = append(f.columns, col)
		}
	}
	for _, id := range f.order {
		r := f.rows[id]
		fields, err := listValue(r["nflds"])
		if err != nil {
			return fmt.Errorf("failed to read fields of note %d: %w", id, err)
		}
		mid, _ := r["mid"].(int64)
		sort := ""
		if i := l.SortField(mid); i >= 0 && i < len(fields) {
			sort = fields[i]
		}
		first := ""
		if len(fields) > 0 {
			first = fields[0]
		}
		r["nsfld"] = sort
		r["ncsum"] = int64(knol.FieldChecksum(first))
		r["nflds"] = knol.JoinFields(fields)
	}
	f.fields = FieldsJoined
	if f.HasColumn("ntags") {
		for id, r := range f.rows {
			tags, err := tagsValue(r["ntags"])
			if err != nil {
				return fmt.Errorf("failed to read tags of note %d: %w", id, err)
			}
			r["ntags"] = knol.JoinTags(tags)
		}
	}
	return nil
}

// maintain updates usn, modification time and blank guids of changed rows.
func (f *Frame) maintain() error {
	base, err := f.resolveBaseline(nil)
	switch {
	case errors.Is(err, errNoBaseline):
		base = nil
	case err != nil:
		return err
	}
	modified, err := f.wasModified(base, true)
	if err != nil {
		return err
	}
	usn := f.desc.Convenient("usn")
	mod := f.desc.Convenient("mod")
	stamp := f.now().Unix()
	setMod := f.table != domain.Revs && f.HasColumn(mod)
	setUSN := f.HasColumn(usn)
	for id, changed := range modified {
		if !changed {
			continue
		}
		r := f.rows[id]
		if setUSN {
			r[usn] = PendingUSN
		}
		if setMod {
			r[mod] = stamp
		}
	}
	if f.table == domain.Notes && f.HasColumn("nguid") {
		for _, id := range f.order {
			r := f.rows[id]
			if g, _ := r["nguid"].(string); g == "" {
				r["nguid"] = f.guid()
			}
		}
	}
	return nil
}

// restrictColumns keeps exactly cols, in that order. Missing ones are skipped.
func (f *Frame) restrictColumns(cols []string) {
	keep := make([]string, 0, len(cols))
	for _, c := range cols {
		if f.HasColumn(c) {
			keep = append(keep, c)
		}
	}
	for _, r := range f.rows {
		for k := range r {
			if !slices.Contains(keep, k) {
				delete(r, k)
			}
		}
	}
	f.columns = keep
}

func listValue(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return x, nil
	case string:
		return []string{x}, nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", v)
}

func tagsValue(v any) ([]string, error) {
	if s, ok := v.(string); ok {
		return knol.SplitTags(s), nil
	}
	return listValue(v)
}
