package domain

import (
	"fmt"
	"strings"
)

// Table identifies one of the three record tables of a collection.
type Table int

const (
	Notes Table = iota
	Cards
	Revs
)

var tableNames = [...]string{"notes", "cards", "revs"}

// storeNames are the table names used inside the database file.
var storeNames = [...]string{"notes", "cards", "revlog"}

// Tables returns all tables in a stable order.
func Tables() []Table {
	return []Table{Notes, Cards, Revs}
}

// Valid reports whether t is one of the known tables.
func (t Table) Valid() bool {
	return t >= Notes && t <= Revs
}

func (t Table) String() string {
	if !t.Valid() {
		return fmt.Sprintf("table(%d)", int(t))
	}
	return tableNames[t]
}

// StoreName returns the name of the table inside the database file.
func (t Table) StoreName() string {
	if !t.Valid() {
		return ""
	}
	return storeNames[t]
}

// ParseTable accepts both our names and the names used in the database file.
func ParseTable(s string) (Table, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i := range tableNames {
		if name == tableNames[i] || name == strings.ToLower(storeNames[i]) {
			return Table(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTable, s)
}

// WriteMode selects how rows are reconciled with the stored table.
type WriteMode int

const (
	// Update overwrites stored rows with matching ids and inserts new ones.
	// Stored rows absent from the new set are kept.
	Update WriteMode = iota
	// Append only inserts ids not yet stored.
	Append
	// Replace makes the stored table equal to the new set.
	Replace
)

func (m WriteMode) String() string {
	switch m {
	case Update:
		return "update"
	case Append:
		return "append"
	case Replace:
		return "replace"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseWriteMode parses "update", "append" or "replace".
func ParseWriteMode(s string) (WriteMode, error) {
	switch strings.ToLower(s) {
	case "update":
		return Update, nil
	case "append":
		return Append, nil
	case "replace":
		return Replace, nil
	}
	return 0, fmt.Errorf("unknown write mode %q", s)
}
