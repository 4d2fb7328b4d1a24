package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/parser"
)

// Lookups returns the id tables of the collection. The result is memoized
// until the next write through this handle.
func (db *DB) Lookups() (*domain.Lookups, error) {
	if db.lookups != nil {
		return db.lookups, nil
	}
	l := &domain.Lookups{
		DeckNames:   map[int64]string{},
		ModelNames:  map[int64]string{},
		ModelFields: map[int64][]string{},
		SortFields:  map[int64]int{},
		CardNotes:   map[int64]int64{},
		CardDecks:   map[int64]int64{},
		NoteModels:  map[int64]int64{},
	}
	var err error
	if db.layout == LayoutSplit {
		err = db.readSplitInfo(l)
	} else {
		err = db.readLegacyInfo(l)
	}
	if err != nil {
		return nil, err
	}
	if err := db.readRelations(l); err != nil {
		return nil, err
	}
	db.lookups = l
	return l, nil
}

func (db *DB) readLegacyInfo(l *domain.Lookups) error {
	models, decks, err := db.colDocuments()
	if err != nil {
		return err
	}
	ms, err := parser.ParseModels(strings.NewReader(models))
	if err != nil {
		return err
	}
	ds, err := parser.ParseDecks(strings.NewReader(decks))
	if err != nil {
		return err
	}
	for id, m := range ms {
		l.ModelNames[id] = m.Name
		l.ModelFields[id] = m.FieldNames()
		l.SortFields[id] = m.SortField
	}
	for id, d := range ds {
		l.DeckNames[id] = d.Name
	}
	return nil
}

// readSplitInfo reads the split tables. The sort field lives in a protobuf
// config blob there, so every model reports field 0.
func (db *DB) readSplitInfo(l *domain.Lookups) error {
	if err := db.scanPairs(`SELECT id, name FROM decks`, func(id int64, name string) {
		l.DeckNames[id] = name
	}); err != nil {
		return fmt.Errorf("failed to read decks: %w", err)
	}
	if err := db.scanPairs(`SELECT id, name FROM notetypes`, func(id int64, name string) {
		l.ModelNames[id] = name
		l.SortFields[id] = 0
	}); err != nil {
		return fmt.Errorf("failed to read note types: %w", err)
	}
	if err := db.scanPairs(`SELECT ntid, name FROM fields ORDER BY ntid, ord`, func(id int64, name string) {
		l.ModelFields[id] = append(l.ModelFields[id], name)
	}); err != nil {
		return fmt.Errorf("failed to read fields: %w", err)
	}
	return nil
}

func (db *DB) readRelations(l *domain.Lookups) error {
	rows, err := db.conn.Query(`SELECT id, nid, did FROM cards`)
	if err != nil {
		return fmt.Errorf("failed to read card relations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid, nid, did int64
		if err := rows.Scan(&cid, &nid, &did); err != nil {
			return fmt.Errorf("failed to scan card relation: %w", err)
		}
		l.CardNotes[cid] = nid
		l.CardDecks[cid] = did
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	notes, err := db.conn.Query(`SELECT id, mid FROM notes`)
	if err != nil {
		return fmt.Errorf("failed to read note relations: %w", err)
	}
	defer notes.Close()
	for notes.Next() {
		var nid, mid int64
		if err := notes.Scan(&nid, &mid); err != nil {
			return fmt.Errorf("failed to scan note relation: %w", err)
		}
		l.NoteModels[nid] = mid
	}
	return notes.Err()
}

func (db *DB) scanPairs(query string, fn func(id int64, name string)) error {
	rows, err := db.conn.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		fn(id, name)
	}
	return rows.Err()
}

func (db *DB) colDocuments() (models, decks string, err error) {
	err = db.conn.QueryRow(`SELECT models, decks FROM col LIMIT 1`).Scan(&models, &decks)
	if err != nil {
		return "", "", fmt.Errorf("failed to read collection row: %w", err)
	}
	return models, decks, nil
}

// AddDeck stores a deck.
func (db *DB) AddDeck(id int64, name string) error {
	defer func() { db.lookups = nil }()
	if db.layout == LayoutSplit {
		_, err := db.conn.Exec(`
			INSERT INTO decks (id, name, mtime_secs, usn, common, kind)
			VALUES (?, ?, ?, -1, x'', x'')
		`, id, name, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to insert deck %s: %w", name, err)
		}
		return nil
	}
	_, decks, err := db.colDocuments()
	if err != nil {
		return err
	}
	doc, err := parser.Insert(decks, id, parser.Deck{ID: id, Name: name})
	if err != nil {
		return err
	}
	if _, err := db.conn.Exec(`UPDATE col SET decks = ?`, doc); err != nil {
		return fmt.Errorf("failed to store deck %s: %w", name, err)
	}
	return nil
}

// AddModel stores a note type with its fields and templates.
func (db *DB) AddModel(m parser.Model) error {
	defer func() { db.lookups = nil }()
	if db.layout == LayoutLegacy {
		models, _, err := db.colDocuments()
		if err != nil {
			return err
		}
		doc, err := parser.Insert(models, m.ID, m)
		if err != nil {
			return err
		}
		if _, err := db.conn.Exec(`UPDATE col SET models = ?`, doc); err != nil {
			return fmt.Errorf("failed to store model %s: %w", m.Name, err)
		}
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	now := time.Now().Unix()
	if _, err := tx.Exec(`
		INSERT INTO notetypes (id, name, mtime_secs, usn, config) VALUES (?, ?, ?, -1, x'')
	`, m.ID, m.Name, now); err != nil {
		return fmt.Errorf("failed to insert note type %s: %w", m.Name, err)
	}
	for i, name := range m.FieldNames() {
		if _, err := tx.Exec(`
			INSERT INTO fields (ntid, ord, name, config) VALUES (?, ?, ?, x'')
		`, m.ID, i, name); err != nil {
			return fmt.Errorf("failed to insert field %s of %s: %w", name, m.Name, err)
		}
	}
	for _, tmpl := range m.Templates {
		if _, err := tx.Exec(`
			INSERT INTO templates (ntid, ord, name, mtime_secs, usn, config) VALUES (?, ?, ?, ?, -1, x'')
		`, m.ID, tmpl.Ord, tmpl.Name, now); err != nil {
			return fmt.Errorf("failed to insert template %s of %s: %w", tmpl.Name, m.Name, err)
		}
	}
	return tx.Commit()
}
