package storage

import (
	"errors"
	"maps"
	"path/filepath"
	"slices"
	"testing"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/parser"
)

var basic = parser.Model{
	ID:        10,
	Name:      "Basic",
	SortField: 1,
	Fields:    []parser.Field{{Name: "Front", Ord: 0}, {Name: "Back", Ord: 1}},
	Templates: []parser.Template{{Name: "Card 1", Ord: 0}},
}

func newTestDB(t *testing.T, layout Layout) *DB {
	t.Helper()
	db, err := Create(filepath.Join(t.TempDir(), "collection.anki2"), layout)
	if err != nil {
		t.Fatalf("Create() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.AddModel(basic); err != nil {
		t.Fatalf("AddModel() returned an unexpected error: %v", err)
	}
	if err := db.AddDeck(1500, "Spanish"); err != nil {
		t.Fatalf("AddDeck() returned an unexpected error: %v", err)
	}
	return db
}

func noteRow(id int64, tags string) domain.Row {
	return domain.Row{
		"id": id, "guid": "g" + string(rune('a'+id)), "mid": int64(10), "mod": int64(1000), "usn": int64(0),
		"tags": tags, "flds": "hola\x1fhello", "sfld": "hola", "csum": int64(1), "flags": int64(0), "data": "",
	}
}

func readTags(t *testing.T, db *DB) map[int64]string {
	t.Helper()
	rows, err := db.ReadTable(domain.Notes)
	if err != nil {
		t.Fatalf("ReadTable() returned an unexpected error: %v", err)
	}
	out := make(map[int64]string, len(rows))
	for _, r := range rows {
		out[r["id"].(int64)] = r["tags"].(string)
	}
	return out
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.anki2"))
	if !errors.Is(err, domain.ErrPathNotFound) {
		t.Errorf("Expected ErrPathNotFound, but got %v", err)
	}
}

func TestLayoutDetection(t *testing.T) {
	for _, layout := range []Layout{LayoutLegacy, LayoutSplit} {
		t.Run(layout.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "collection.anki2")
			db, err := Create(path, layout)
			if err != nil {
				t.Fatalf("Create() returned an unexpected error: %v", err)
			}
			db.Close()

			reopened, err := Open(path)
			if err != nil {
				t.Fatalf("Open() returned an unexpected error: %v", err)
			}
			defer reopened.Close()
			if reopened.Layout() != layout {
				t.Errorf("Expected layout %s, but got %s", layout, reopened.Layout())
			}
		})
	}
}

func TestLookups(t *testing.T) {
	testCases := []struct {
		layout       Layout
		expectedSort int
	}{
		{layout: LayoutLegacy, expectedSort: 1},
		{layout: LayoutSplit, expectedSort: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.layout.String(), func(t *testing.T) {
			db := newTestDB(t, tc.layout)
			if err := db.WriteTable(domain.Notes, []domain.Row{noteRow(1, "")}, domain.Update); err != nil {
				t.Fatalf("WriteTable() returned an unexpected error: %v", err)
			}
			card := domain.Row{"id": int64(100), "nid": int64(1), "did": int64(1500), "ord": 0, "mod": 0, "usn": 0,
				"type": 0, "queue": 0, "due": 1, "ivl": 0, "factor": 0, "reps": 0, "lapses": 0, "left": 0,
				"odue": 0, "odid": 0, "flags": 0, "data": ""}
			if err := db.WriteTable(domain.Cards, []domain.Row{card}, domain.Update); err != nil {
				t.Fatalf("WriteTable() returned an unexpected error: %v", err)
			}

			l, err := db.Lookups()
			if err != nil {
				t.Fatalf("Lookups() returned an unexpected error: %v", err)
			}
			if l.DeckNames[1] != "Default" || l.DeckNames[1500] != "Spanish" {
				t.Errorf("Expected decks Default and Spanish, but got %v", l.DeckNames)
			}
			if l.ModelNames[10] != "Basic" {
				t.Errorf("Expected model Basic, but got %v", l.ModelNames)
			}
			if !slices.Equal(l.ModelFields[10], []string{"Front", "Back"}) {
				t.Errorf("Expected fields [Front Back], but got %v", l.ModelFields[10])
			}
			if l.SortField(10) != tc.expectedSort {
				t.Errorf("Expected sort field %d, but got %d", tc.expectedSort, l.SortField(10))
			}
			if l.CardNotes[100] != 1 || l.CardDecks[100] != 1500 || l.NoteModels[1] != 10 {
				t.Errorf("Unexpected relations: %v %v %v", l.CardNotes, l.CardDecks, l.NoteModels)
			}
		})
	}
}

func TestWriteTableUpdate(t *testing.T) {
	db := newTestDB(t, LayoutLegacy)
	if err := db.WriteTable(domain.Notes, []domain.Row{noteRow(1, "a"), noteRow(2, "b")}, domain.Update); err != nil {
		t.Fatalf("WriteTable() returned an unexpected error: %v", err)
	}
	if err := db.WriteTable(domain.Notes, []domain.Row{noteRow(2, "changed"), noteRow(3, "c")}, domain.Update); err != nil {
		t.Fatalf("WriteTable() returned an unexpected error: %v", err)
	}

	expected := map[int64]string{1: "a", 2: "changed", 3: "c"}
	if got := readTags(t, db); !maps.Equal(got, expected) {
		t.Errorf("Expected %v, but got %v", expected, got)
	}
}

func TestWriteTableAppendKeepsStoredRows(t *testing.T) {
	db := newTestDB(t, LayoutLegacy)
	if err := db.WriteTable(domain.Notes, []domain.Row{noteRow(1, "original")}, domain.Update); err != nil {
		t.Fatalf("WriteTable() returned an unexpected error: %v", err)
	}
	if err := db.WriteTable(domain.Notes, []domain.Row{noteRow(1, "changed"), noteRow(2, "new")}, domain.Append); err != nil {
		t.Fatalf("WriteTable() returned an unexpected error: %v", err)
	}

	expected := map[int64]string{1: "original", 2: "new"}
	if got := readTags(t, db); !maps.Equal(got, expected) {
		t.Errorf("Expected %v, but got %v", expected, got)
	}
}

func TestWriteTableReplace(t *testing.T) {
	db := newTestDB(t, LayoutSplit)
	if err := db.WriteTable(domain.Notes, []domain.Row{noteRow(1, "a"), noteRow(2, "b")}, domain.Update); err != nil {
		t.Fatalf("WriteTable() returned an unexpected error: %v", err)
	}
	if err := db.WriteTable(domain.Notes, []domain.Row{noteRow(2, "x"), noteRow(4, "d")}, domain.Replace); err != nil {
		t.Fatalf("WriteTable() returned an unexpected error: %v", err)
	}
	expected := map[int64]string{2: "x", 4: "d"}
	if got := readTags(t, db); !maps.Equal(got, expected) {
		t.Errorf("Expected %v, but got %v", expected, got)
	}

	if err := db.WriteTable(domain.Notes, nil, domain.Replace); err != nil {
		t.Fatalf("WriteTable() returned an unexpected error: %v", err)
	}
	if got := readTags(t, db); len(got) != 0 {
		t.Errorf("Expected an empty table, but got %v", got)
	}
}

func TestWriteTableRejectsIncompleteRows(t *testing.T) {
	db := newTestDB(t, LayoutLegacy)
	row := noteRow(1, "")
	delete(row, "csum")
	err := db.WriteTable(domain.Notes, []domain.Row{row}, domain.Update)
	if !errors.Is(err, domain.ErrColumnMissing) {
		t.Errorf("Expected ErrColumnMissing, but got %v", err)
	}

	err = db.WriteTable(domain.Notes, []domain.Row{noteRow(1, ""), noteRow(1, "")}, domain.Update)
	if err == nil {
		t.Error("Expected an error for duplicate ids, but got none")
	}
}

func TestSortFieldReadsBackAsText(t *testing.T) {
	db := newTestDB(t, LayoutLegacy)
	row := noteRow(1, "")
	row["sfld"] = "hola"
	if err := db.WriteTable(domain.Notes, []domain.Row{row}, domain.Update); err != nil {
		t.Fatalf("WriteTable() returned an unexpected error: %v", err)
	}
	rows, err := db.ReadTable(domain.Notes)
	if err != nil {
		t.Fatalf("ReadTable() returned an unexpected error: %v", err)
	}
	if rows[0]["sfld"] != "hola" {
		t.Errorf("Expected sort field 'hola', but got %v", rows[0]["sfld"])
	}
}

func TestUpdateIndices(t *testing.T) {
	db := newTestDB(t, LayoutLegacy)
	for _, table := range domain.Tables() {
		if err := db.UpdateIndices(table); err != nil {
			t.Fatalf("UpdateIndices(%s) returned an unexpected error: %v", table, err)
		}
	}
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = 'ix_cards_sched'`).Scan(&n); err != nil {
		t.Fatalf("Failed to query indexes: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected index ix_cards_sched to exist, but found %d", n)
	}
}
