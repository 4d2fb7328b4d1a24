package frame

import (
	"fmt"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/schema"
)

// The id accessors return one value per row, aligned with IDs.

// NoteIDs returns the note id of every row.
func (f *Frame) NoteIDs() ([]int64, error) {
	if err := f.checkConvenient(); err != nil {
		return nil, err
	}
	switch f.table {
	case domain.Notes:
		return f.IDs(), nil
	case domain.Cards:
		return f.intColumn("nid")
	}
	cids, err := f.intColumn("cid")
	if err != nil {
		return nil, err
	}
	l, err := f.Lookups()
	if err != nil {
		return nil, err
	}
	return mapIDs(cids, l.CardNotes, "note of card")
}

// CardIDs returns the card id of every row. Notes have no single card.
func (f *Frame) CardIDs() ([]int64, error) {
	if err := f.checkConvenient(); err != nil {
		return nil, err
	}
	switch f.table {
	case domain.Cards:
		return f.IDs(), nil
	case domain.Revs:
		return f.intColumn("cid")
	}
	return nil, fmt.Errorf("%w: a note may have several cards", domain.ErrInvalidTable)
}

// ModelIDs returns the model id of every row.
func (f *Frame) ModelIDs() ([]int64, error) {
	if err := f.checkConvenient(); err != nil {
		return nil, err
	}
	l, err := f.Lookups()
	if err != nil {
		return nil, err
	}
	if f.table == domain.Notes || f.HasColumn(schema.ModelColumn) {
		if err := f.requireColumns(schema.ModelColumn); err != nil {
			return nil, err
		}
		out := make([]int64, 0, len(f.order))
		for _, id := range f.order {
			name, err := schema.ToText(f.rows[id][schema.ModelColumn])
			if err != nil {
				return nil, err
			}
			mid, err := l.ModelID(name)
			if err != nil {
				return nil, err
			}
			out = append(out, mid)
		}
		return out, nil
	}
	nids, err := f.NoteIDs()
	if err != nil {
		return nil, err
	}
	return mapIDs(nids, l.NoteModels, "model of note")
}

// DeckIDs returns the deck id of every row. Notes may span several decks.
func (f *Frame) DeckIDs() ([]int64, error) {
	if err := f.checkConvenient(); err != nil {
		return nil, err
	}
	switch f.table {
	case domain.Cards:
		return f.deckColumn(schema.DeckColumn)
	case domain.Revs:
		cids, err := f.intColumn("cid")
		if err != nil {
			return nil, err
		}
		l, err := f.Lookups()
		if err != nil {
			return nil, err
		}
		return mapIDs(cids, l.CardDecks, "deck of card")
	}
	return nil, fmt.Errorf("%w: a note may belong to several decks", domain.ErrInvalidTable)
}

// OriginalDeckIDs returns the home deck id of cards in filtered decks, 0 otherwise.
func (f *Frame) OriginalDeckIDs() ([]int64, error) {
	if err := f.checkConvenient(); err != nil {
		return nil, err
	}
	if f.table != domain.Cards {
		return nil, fmt.Errorf("%w: original decks only exist for cards, not %s", domain.ErrInvalidTable, f.table)
	}
	return f.deckColumn(schema.OriginalDeckColumn)
}

func (f *Frame) deckColumn(column string) ([]int64, error) {
	if err := f.requireColumns(column); err != nil {
		return nil, err
	}
	l, err := f.Lookups()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(f.order))
	for _, id := range f.order {
		name, err := schema.ToText(f.rows[id][column])
		if err != nil {
			return nil, err
		}
		did, err := l.DeckID(name)
		if err != nil {
			return nil, err
		}
		out = append(out, did)
	}
	return out, nil
}

func (f *Frame) intColumn(column string) ([]int64, error) {
	if err := f.requireColumns(column); err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(f.order))
	for _, id := range f.order {
		v, err := schema.ToInt(f.rows[id][column])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s of row %d: %w", column, id, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func mapIDs(in []int64, m map[int64]int64, what string) ([]int64, error) {
	out := make([]int64, 0, len(in))
	for _, id := range in {
		v, ok := m[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s %d", domain.ErrLookupNotFound, what, id)
		}
		out = append(out, v)
	}
	return out, nil
}
