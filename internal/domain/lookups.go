package domain

import "fmt"

// Lookups are the id tables maintained by the store. Id 0 stands for "none"
// and maps to the empty name in both directions.
type Lookups struct {
	DeckNames   map[int64]string
	ModelNames  map[int64]string
	ModelFields map[int64][]string
	SortFields  map[int64]int
	CardNotes   map[int64]int64
	CardDecks   map[int64]int64
	NoteModels  map[int64]int64
}

// DeckName returns the name of deck id.
func (l *Lookups) DeckName(id int64) (string, error) {
	if id == 0 {
		return "", nil
	}
	name, ok := l.DeckNames[id]
	if !ok {
		return "", fmt.Errorf("%w: deck id %d", ErrLookupNotFound, id)
	}
	return name, nil
}

// DeckID returns the id of the deck called name.
func (l *Lookups) DeckID(name string) (int64, error) {
	if name == "" {
		return 0, nil
	}
	id, ok := idOf(l.DeckNames, name)
	if !ok {
		return 0, fmt.Errorf("%w: deck %q", ErrLookupNotFound, name)
	}
	return id, nil
}

// ModelName returns the name of model id.
func (l *Lookups) ModelName(id int64) (string, error) {
	if id == 0 {
		return "", nil
	}
	name, ok := l.ModelNames[id]
	if !ok {
		return "", fmt.Errorf("%w: model id %d", ErrLookupNotFound, id)
	}
	return name, nil
}

// ModelID returns the id of the model called name.
func (l *Lookups) ModelID(name string) (int64, error) {
	if name == "" {
		return 0, nil
	}
	id, ok := idOf(l.ModelNames, name)
	if !ok {
		return 0, fmt.Errorf("%w: model %q", ErrLookupNotFound, name)
	}
	return id, nil
}

// Fields returns the field names of model id in field order.
func (l *Lookups) Fields(mid int64) ([]string, error) {
	fields, ok := l.ModelFields[mid]
	if !ok {
		return nil, fmt.Errorf("%w: fields of model id %d", ErrLookupNotFound, mid)
	}
	return fields, nil
}

// SortField returns the index of the sort field of model id.
func (l *Lookups) SortField(mid int64) int {
	return l.SortFields[mid]
}

// idOf finds the id carrying name. The map is scanned on every call so names
// added after the first lookup are found. Names are unique per collection;
// should two ids share one the lowest id wins.
func idOf(m map[int64]string, name string) (int64, bool) {
	var found int64
	ok := false
	for id, n := range m {
		if n == name && (!ok || id < found) {
			found, ok = id, true
		}
	}
	return found, ok
}
