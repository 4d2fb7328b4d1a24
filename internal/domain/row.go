package domain

import "slices"

// Row holds the values of one record keyed by column name.
// Values are int64, string, []string or nil.
type Row map[string]any

// Clone returns a copy of the row. List values are copied as well.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		if l, ok := v.([]string); ok {
			v = slices.Clone(l)
		}
		out[k] = v
	}
	return out
}
