// Package frame holds the editable record collection of one table together
// with the conversions between the store's wire format and the convenient
// format used for editing.
package frame

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/knol"
	"github.com/conorfennell/ankitab/internal/schema"
)

// DefaultFieldsPrefix is prepended to field names by FieldsAsColumns.
const DefaultFieldsPrefix = "nfld_"

// Format is the representation a Frame is currently in.
type Format int

const (
	FormatRaw Format = iota
	FormatConvenient
	// FormatTransforming marks an interrupted conversion.
	FormatTransforming
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatConvenient:
		return "convenient"
	case FormatTransforming:
		return "transforming"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// FieldsFormat is the representation of note fields.
type FieldsFormat int

const (
	// FieldsJoined is the 0x1f-joined string of the wire format.
	FieldsJoined FieldsFormat = iota
	FieldsList
	FieldsColumns
	FieldsTransforming
)

func (f FieldsFormat) String() string {
	switch f {
	case FieldsJoined:
		return "joined"
	case FieldsList:
		return "list"
	case FieldsColumns:
		return "columns"
	case FieldsTransforming:
		return "transforming"
	}
	return fmt.Sprintf("fields(%d)", int(f))
}

// Source supplies stored rows and lookup tables. ReadTable returns rows in
// raw format keyed by wire column names.
type Source interface {
	Lookups() (*domain.Lookups, error)
	ReadTable(t domain.Table) ([]domain.Row, error)
}

// Frame is an insertion-ordered set of rows keyed by a unique id.
//
// In raw format every row also carries the id under the "id" column. In
// convenient format the id is only the key and never an ordinary column.
type Frame struct {
	table domain.Table
	desc  *schema.Descriptor

	format     Format
	from       Format
	fields     FieldsFormat
	fieldsFrom FieldsFormat

	columns []string
	order   []int64
	rows    map[int64]domain.Row

	src      Source
	lookups  *domain.Lookups
	baseline *Frame

	fieldsPrefix string
	now          func() time.Time
	guid         func() string
	log          *slog.Logger
}

// Option configures a Frame.
type Option func(*Frame)

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(f *Frame) { f.log = l }
}

// WithClock replaces time.Now for modification timestamps and new ids.
func WithClock(now func() time.Time) Option {
	return func(f *Frame) { f.now = now }
}

// WithLookups sets the lookup tables. Without it they are read from the source.
func WithLookups(l *domain.Lookups) Option {
	return func(f *Frame) { f.lookups = l }
}

// WithFieldsPrefix changes the column prefix used by FieldsAsColumns.
func WithFieldsPrefix(prefix string) Option {
	return func(f *Frame) { f.fieldsPrefix = prefix }
}

// WithGUID replaces the generator for blank note guids.
func WithGUID(gen func() string) Option {
	return func(f *Frame) { f.guid = gen }
}

func newFrame(t domain.Table, src Source, opts []Option) (*Frame, error) {
	desc, err := schema.For(t)
	if err != nil {
		return nil, err
	}
	f := &Frame{
		table:        t,
		desc:         desc,
		rows:         make(map[int64]domain.Row),
		src:          src,
		fieldsPrefix: DefaultFieldsPrefix,
		now:          time.Now,
		guid:         knol.GUID,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// FromRows builds a raw frame from wire rows. Every row must carry a unique
// "id"; wire columns absent from a row read as NULL.
func FromRows(t domain.Table, src Source, rows []domain.Row, opts ...Option) (*Frame, error) {
	f, err := newFrame(t, src, opts)
	if err != nil {
		return nil, err
	}
	f.format = FormatRaw
	f.fields = FieldsJoined
	f.columns = f.desc.WireColumns()
	f.order = make([]int64, 0, len(rows))
	for _, r := range rows {
		v, ok := r["id"]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s row without id", domain.ErrColumnMissing, t)
		}
		id, err := schema.ToInt(v)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s id: %w", t, err)
		}
		if _, dup := f.rows[id]; dup {
			return nil, fmt.Errorf("duplicate %s id %d", t, id)
		}
		row := make(domain.Row, len(f.columns))
		for _, c := range f.columns {
			row[c] = r[c]
		}
		row["id"] = id
		f.rows[id] = row
		f.order = append(f.order, id)
	}
	return f, nil
}

// LoadRaw reads table t from src in raw format.
func LoadRaw(t domain.Table, src Source, opts ...Option) (*Frame, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTable, t)
	}
	if src == nil {
		return nil, fmt.Errorf("no source to load %s from", t)
	}
	rows, err := src.ReadTable(t)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t, err)
	}
	return FromRows(t, src, rows, opts...)
}

// Load reads table t from src and normalizes it.
func Load(t domain.Table, src Source, opts ...Option) (*Frame, error) {
	f, err := LoadRaw(t, src, opts...)
	if err != nil {
		return nil, err
	}
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	return f, nil
}

// Empty returns a convenient frame without rows but with every default column.
func Empty(t domain.Table, src Source, opts ...Option) (*Frame, error) {
	f, err := newFrame(t, src, opts)
	if err != nil {
		return nil, err
	}
	f.format = FormatConvenient
	f.fields = FieldsJoined
	if t == domain.Notes {
		f.fields = FieldsList
	}
	f.columns = f.desc.Defaults()
	return f, nil
}

// Table returns the table kind of the frame.
func (f *Frame) Table() domain.Table { return f.table }

// Format returns the current format.
func (f *Frame) Format() Format { return f.format }

// FieldsFormat returns the current representation of note fields.
func (f *Frame) FieldsFormat() FieldsFormat { return f.fields }

// TransformingFrom reports the format an interrupted conversion started from.
func (f *Frame) TransformingFrom() (Format, bool) {
	if f.format != FormatTransforming {
		return 0, false
	}
	return f.from, true
}

// Index returns the name of the id column.
func (f *Frame) Index() string {
	if f.format == FormatRaw {
		return "id"
	}
	return f.desc.Index
}

// Source returns the source the frame reads baselines and lookups from.
func (f *Frame) Source() Source { return f.src }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.order) }

// IDs returns the row ids in insertion order.
func (f *Frame) IDs() []int64 { return slices.Clone(f.order) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string { return slices.Clone(f.columns) }

// HasColumn reports whether name is a column of the frame.
func (f *Frame) HasColumn(name string) bool {
	return slices.Contains(f.columns, name)
}

// Has reports whether a row with id exists.
func (f *Frame) Has(id int64) bool {
	_, ok := f.rows[id]
	return ok
}

// Get returns a copy of the row with id.
func (f *Frame) Get(id int64) (domain.Row, bool) {
	r, ok := f.rows[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Value returns a single cell.
func (f *Frame) Value(id int64, column string) (any, bool) {
	r, ok := f.rows[id]
	if !ok {
		return nil, false
	}
	v, ok := r[column]
	return v, ok
}

// Rows returns copies of all rows in order.
func (f *Frame) Rows() []domain.Row {
	out := make([]domain.Row, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.rows[id].Clone())
	}
	return out
}

// Set changes a single cell.
func (f *Frame) Set(id int64, column string, value any) error {
	if err := f.checkStable(); err != nil {
		return err
	}
	r, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("%s has no row with id %d", f.table, id)
	}
	if !f.HasColumn(column) {
		return fmt.Errorf("%w: %s.%s", domain.ErrColumnMissing, f.table, column)
	}
	if f.format == FormatRaw && column == "id" {
		return fmt.Errorf("cannot change the id of %s row %d", f.table, id)
	}
	r[column] = normalizeValue(value)
	return nil
}

// Insert adds a row. Columns missing from row are left empty, unknown ones
// are ignored.
func (f *Frame) Insert(id int64, row domain.Row) error {
	if err := f.checkStable(); err != nil {
		return err
	}
	if _, dup := f.rows[id]; dup {
		return fmt.Errorf("%s already has a row with id %d", f.table, id)
	}
	r := make(domain.Row, len(f.columns))
	for _, c := range f.columns {
		r[c] = normalizeValue(row[c])
	}
	if f.format == FormatRaw {
		r["id"] = id
	}
	f.rows[id] = r
	f.order = append(f.order, id)
	return nil
}

// Delete removes the row with id and reports whether it existed.
func (f *Frame) Delete(id int64) bool {
	if _, ok := f.rows[id]; !ok {
		return false
	}
	delete(f.rows, id)
	f.order = slices.DeleteFunc(f.order, func(x int64) bool { return x == id })
	return true
}

// Filter keeps only the rows for which keep returns true.
func (f *Frame) Filter(keep func(id int64, r domain.Row) bool) {
	kept := f.order[:0]
	for _, id := range f.order {
		if keep(id, f.rows[id]) {
			kept = append(kept, id)
			continue
		}
		delete(f.rows, id)
	}
	f.order = kept
}

// Select returns the ids of rows matching pred in order.
func (f *Frame) Select(pred func(id int64, r domain.Row) bool) []int64 {
	var ids []int64
	for _, id := range f.order {
		if pred(id, f.rows[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

// AddColumn appends a column filled with value. Existing columns are kept.
func (f *Frame) AddColumn(name string, value any) {
	if f.HasColumn(name) {
		return
	}
	f.columns = append(f.columns, name)
	for _, r := range f.rows {
		r[name] = cloneValue(normalizeValue(value))
	}
}

// DropColumn removes a column and reports whether it existed.
func (f *Frame) DropColumn(name string) bool {
	i := slices.Index(f.columns, name)
	if i < 0 {
		return false
	}
	f.columns = slices.Delete(f.columns, i, i+1)
	for _, r := range f.rows {
		delete(r, name)
	}
	return true
}

// Clone returns a deep copy sharing the source and lookup tables.
func (f *Frame) Clone() *Frame {
	c := *f
	c.columns = slices.Clone(f.columns)
	c.order = slices.Clone(f.order)
	c.rows = make(map[int64]domain.Row, len(f.rows))
	for id, r := range f.rows {
		c.rows[id] = r.Clone()
	}
	return &c
}

// SetBaseline fixes the frame that changes are measured against. A nil
// baseline restores reloading from the source.
func (f *Frame) SetBaseline(b *Frame) { f.baseline = b }

// Baseline returns the baseline set with SetBaseline.
func (f *Frame) Baseline() *Frame { return f.baseline }

// Lookups returns the lookup tables, reading them from the source on first use.
func (f *Frame) Lookups() (*domain.Lookups, error) {
	if f.lookups != nil {
		return f.lookups, nil
	}
	if f.src == nil {
		return nil, fmt.Errorf("%w: %s frame has no lookup tables", domain.ErrLookupNotFound, f.table)
	}
	l, err := f.src.Lookups()
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup tables: %w", err)
	}
	f.lookups = l
	return l, nil
}

// ReloadLookups drops the cached lookup tables and reads them again from the
// source, so that decks or models stored since the frame was loaded resolve.
// It is allowed while the frame is transforming. Frames without a source keep
// the tables they were given.
func (f *Frame) ReloadLookups() error {
	if f.src == nil {
		return nil
	}
	f.lookups = nil
	_, err := f.Lookups()
	return err
}

func (f *Frame) checkStable() error {
	if f.format == FormatTransforming {
		return fmt.Errorf("%w: %s frame is transforming (from %s); use ForceResume", domain.ErrFormatState, f.table, f.from)
	}
	return nil
}

func (f *Frame) checkConvenient() error {
	if err := f.checkStable(); err != nil {
		return err
	}
	if f.format != FormatConvenient {
		return fmt.Errorf("%w: %s frame is %s, expected convenient", domain.ErrFormatState, f.table, f.format)
	}
	return nil
}

func (f *Frame) requireColumns(names ...string) error {
	for _, n := range names {
		if !f.HasColumn(n) {
			return fmt.Errorf("%w: %s.%s", domain.ErrColumnMissing, f.table, n)
		}
	}
	return nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case []byte:
		return string(x)
	}
	return v
}

func cloneValue(v any) any {
	if l, ok := v.([]string); ok {
		return slices.Clone(l)
	}
	return v
}
