package schema

import (
	"fmt"
	"slices"
	"sort"

	"github.com/conorfennell/ankitab/internal/domain"
)

// Kind is the declared value type of a wire column.
type Kind int

const (
	Int Kind = iota
	Text
)

// Column describes one wire column.
type Column struct {
	Raw  string // name in the database file
	Name string // convenient name
	Kind Kind
}

// Derived convenient columns that do not exist in the wire format.
const (
	DeckColumn         = "cdeck"
	OriginalDeckColumn = "codeck"
	ModelColumn        = "nmodel"
)

// Descriptor is the static description of one table.
type Descriptor struct {
	Table domain.Table
	// Index is the convenient name of the id column.
	Index string

	columns      []Column
	wire         []string
	kinds        map[string]Kind
	names        *BiMap[string, string]
	values       map[string]*BiMap[int64, string]
	defaults     []string
	placeholders map[string]any
}

type tableDef struct {
	index        string
	columns      []Column
	values       map[string]map[int64]string
	defaults     []string
	placeholders map[string]any
}

var scheduleTypes = map[int64]string{
	0: "learning",
	1: "review",
	2: "relearn",
	3: "cram",
}

var defs = map[domain.Table]tableDef{
	domain.Notes: {
		index: "nid",
		columns: []Column{
			{"id", "nid", Int},
			{"guid", "nguid", Text},
			{"mid", "mid", Int},
			{"mod", "nmod", Int},
			{"usn", "nusn", Int},
			{"tags", "ntags", Text},
			{"flds", "nflds", Text},
			{"sfld", "nsfld", Text},
			{"csum", "ncsum", Int},
			{"flags", "nflags", Int},
			{"data", "ndata", Text},
		},
		defaults:     []string{"nguid", ModelColumn, "nmod", "nusn", "ntags", "nflds"},
		placeholders: map[string]any{"flags": int64(0), "data": ""},
	},
	domain.Cards: {
		index: "cid",
		columns: []Column{
			{"id", "cid", Int},
			{"nid", "nid", Int},
			{"did", "did", Int},
			{"ord", "cord", Int},
			{"mod", "cmod", Int},
			{"usn", "cusn", Int},
			{"type", "ctype", Int},
			{"queue", "cqueue", Int},
			{"due", "cdue", Int},
			{"ivl", "civl", Int},
			{"factor", "cfactor", Int},
			{"reps", "creps", Int},
			{"lapses", "clapses", Int},
			{"left", "cleft", Int},
			{"odue", "codue", Int},
			{"odid", "codid", Int},
			{"flags", "cflags", Int},
			{"data", "cdata", Text},
		},
		values: map[string]map[int64]string{
			"cqueue": {
				-3: "sched buried",
				-2: "user buried",
				-1: "suspended",
				0:  "new",
				1:  "learning",
				2:  "due",
				3:  "in learning",
			},
			"ctype": scheduleTypes,
		},
		defaults: []string{
			"nid", DeckColumn, OriginalDeckColumn, "cord", "cmod", "cusn", "ctype", "cqueue",
			"cdue", "civl", "cfactor", "creps", "clapses", "cleft", "codue",
		},
		placeholders: map[string]any{"flags": int64(0), "data": ""},
	},
	domain.Revs: {
		index: "rid",
		columns: []Column{
			{"id", "rid", Int},
			{"cid", "cid", Int},
			{"usn", "rusn", Int},
			{"ease", "rease", Int},
			{"ivl", "rivl", Int},
			{"lastIvl", "rlastIvl", Int},
			{"factor", "rfactor", Int},
			{"time", "rtime", Int},
			{"type", "rtype", Int},
		},
		values: map[string]map[int64]string{
			"rtype": scheduleTypes,
		},
		defaults: []string{"cid", "rusn", "rease", "rivl", "rlastIvl", "rfactor", "rtime", "rtype"},
	},
}

var registry = mustBuild()

func mustBuild() map[domain.Table]*Descriptor {
	out := make(map[domain.Table]*Descriptor, len(defs))
	for t, def := range defs {
		d, err := newDescriptor(t, def)
		if err != nil {
			panic(fmt.Sprintf("schema: %v", err))
		}
		out[t] = d
	}
	return out
}

func newDescriptor(t domain.Table, def tableDef) (*Descriptor, error) {
	names := make(map[string]string, len(def.columns))
	wire := make([]string, 0, len(def.columns))
	kinds := make(map[string]Kind, len(def.columns))
	for _, c := range def.columns {
		if _, dup := names[c.Raw]; dup {
			return nil, fmt.Errorf("%w: table %s declares column %q twice", domain.ErrNotInvertible, t, c.Raw)
		}
		names[c.Raw] = c.Name
		wire = append(wire, c.Raw)
		kinds[c.Raw] = c.Kind
	}
	nameMap, err := NewBiMap(names)
	if err != nil {
		return nil, fmt.Errorf("table %s column names: %w", t, err)
	}

	values := make(map[string]*BiMap[int64, string], len(def.values))
	for col, m := range def.values {
		vm, err := NewBiMap(m)
		if err != nil {
			return nil, fmt.Errorf("table %s values of %s: %w", t, col, err)
		}
		values[col] = vm
	}

	defaults := slices.Clone(def.defaults)
	sort.Strings(defaults)
	defaults = slices.DeleteFunc(defaults, func(c string) bool { return c == def.index })

	return &Descriptor{
		Table:        t,
		Index:        def.index,
		columns:      def.columns,
		wire:         wire,
		kinds:        kinds,
		names:        nameMap,
		values:       values,
		defaults:     defaults,
		placeholders: def.placeholders,
	}, nil
}

// For returns the descriptor of table t.
func For(t domain.Table) (*Descriptor, error) {
	d, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTable, t)
	}
	return d, nil
}

// WireColumns returns the raw column names in wire order.
func (d *Descriptor) WireColumns() []string {
	return slices.Clone(d.wire)
}

// Columns returns the full column declarations in wire order.
func (d *Descriptor) Columns() []Column {
	return slices.Clone(d.columns)
}

// Kind returns the declared kind of a raw column.
func (d *Descriptor) Kind(raw string) (Kind, bool) {
	k, ok := d.kinds[raw]
	return k, ok
}

// Convenient translates a raw column name. Unknown names pass through.
func (d *Descriptor) Convenient(raw string) string {
	if name, ok := d.names.Get(raw); ok {
		return name
	}
	return raw
}

// Raw translates a convenient column name. Unknown names pass through.
func (d *Descriptor) Raw(name string) string {
	if raw, ok := d.names.Key(name); ok {
		return raw
	}
	return name
}

// Names returns the raw to convenient name mapping.
func (d *Descriptor) Names() *BiMap[string, string] {
	return d.names
}

// ValueColumns returns the convenient names of value-mapped columns, sorted.
func (d *Descriptor) ValueColumns() []string {
	out := make([]string, 0, len(d.values))
	for c := range d.values {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Decode maps a numeric code of column to its label.
func (d *Descriptor) Decode(column string, code int64) (string, error) {
	vm, ok := d.values[column]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s has no value map", domain.ErrLookupNotFound, d.Table, column)
	}
	label, ok := vm.Get(code)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s code %d", domain.ErrLookupNotFound, d.Table, column, code)
	}
	return label, nil
}

// Encode maps a label of column back to its numeric code.
func (d *Descriptor) Encode(column, label string) (int64, error) {
	vm, ok := d.values[column]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s has no value map", domain.ErrLookupNotFound, d.Table, column)
	}
	code, ok := vm.Key(label)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s label %q", domain.ErrLookupNotFound, d.Table, column, label)
	}
	return code, nil
}

// Labels returns the code to label map of column, or nil.
func (d *Descriptor) Labels(column string) map[int64]string {
	vm, ok := d.values[column]
	if !ok {
		return nil
	}
	return vm.Map()
}

// Defaults returns the default convenient columns without the index, sorted.
func (d *Descriptor) Defaults() []string {
	return slices.Clone(d.defaults)
}

// IsDefault reports whether name belongs to the default convenient set.
func (d *Descriptor) IsDefault(name string) bool {
	_, found := slices.BinarySearch(d.defaults, name)
	return found
}

// Placeholders returns the raw columns that carry no meaning in the
// convenient format together with the value written for them.
func (d *Descriptor) Placeholders() map[string]any {
	out := make(map[string]any, len(d.placeholders))
	for k, v := range d.placeholders {
		out[k] = v
	}
	return out
}
