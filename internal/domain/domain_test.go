package domain

import (
	"errors"
	"testing"
)

func TestParseTable(t *testing.T) {
	testCases := []struct {
		in       string
		expected Table
		valid    bool
	}{
		{"notes", Notes, true},
		{"Cards", Cards, true},
		{" revs ", Revs, true},
		{"revlog", Revs, true},
		{"decks", 0, false},
		{"", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTable(tc.in)
			if !tc.valid {
				if !errors.Is(err, ErrInvalidTable) {
					t.Errorf("Expected ErrInvalidTable, but got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTable() returned an unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected %s, but got %s", tc.expected, got)
			}
		})
	}
}

func TestTableNames(t *testing.T) {
	if Revs.String() != "revs" || Revs.StoreName() != "revlog" {
		t.Errorf("Expected revs/revlog, but got %s/%s", Revs, Revs.StoreName())
	}
	if Table(7).Valid() || Table(7).StoreName() != "" {
		t.Error("Expected table 7 to be invalid")
	}
}

func TestParseWriteMode(t *testing.T) {
	for _, m := range []WriteMode{Update, Append, Replace} {
		got, err := ParseWriteMode(m.String())
		if err != nil || got != m {
			t.Errorf("Expected %s, but got %s (%v)", m, got, err)
		}
	}
	if _, err := ParseWriteMode("merge"); err == nil {
		t.Error("Expected an error for an unknown mode, but got nil")
	}
}

func TestLookups(t *testing.T) {
	l := &Lookups{
		DeckNames:  map[int64]string{1: "Default", 1500: "Spanish"},
		ModelNames: map[int64]string{10: "Basic"},
	}

	if name, err := l.DeckName(0); err != nil || name != "" {
		t.Errorf("Expected deck 0 to be the empty name, but got %q (%v)", name, err)
	}
	if id, err := l.DeckID(""); err != nil || id != 0 {
		t.Errorf("Expected the empty name to be deck 0, but got %d (%v)", id, err)
	}
	if id, err := l.DeckID("Spanish"); err != nil || id != 1500 {
		t.Errorf("Expected 1500, but got %d (%v)", id, err)
	}
	if name, err := l.ModelName(10); err != nil || name != "Basic" {
		t.Errorf("Expected 'Basic', but got %q (%v)", name, err)
	}
	if _, err := l.DeckName(7); !errors.Is(err, ErrLookupNotFound) {
		t.Errorf("Expected ErrLookupNotFound, but got %v", err)
	}
	if _, err := l.ModelID("Cloze"); !errors.Is(err, ErrLookupNotFound) {
		t.Errorf("Expected ErrLookupNotFound, but got %v", err)
	}
	if _, err := l.Fields(10); !errors.Is(err, ErrLookupNotFound) {
		t.Errorf("Expected ErrLookupNotFound for missing fields, but got %v", err)
	}
}

func TestLookupsSeeAddedNames(t *testing.T) {
	l := &Lookups{
		DeckNames:  map[int64]string{1: "Default"},
		ModelNames: map[int64]string{10: "Basic"},
	}
	if _, err := l.DeckID("French"); !errors.Is(err, ErrLookupNotFound) {
		t.Fatalf("Expected ErrLookupNotFound, but got %v", err)
	}
	if _, err := l.ModelID("Cloze"); !errors.Is(err, ErrLookupNotFound) {
		t.Fatalf("Expected ErrLookupNotFound, but got %v", err)
	}

	l.DeckNames[2000] = "French"
	l.ModelNames[20] = "Cloze"
	if id, err := l.DeckID("French"); err != nil || id != 2000 {
		t.Errorf("Expected deck 2000 after adding it, but got %d (%v)", id, err)
	}
	if id, err := l.ModelID("Cloze"); err != nil || id != 20 {
		t.Errorf("Expected model 20 after adding it, but got %d (%v)", id, err)
	}

	l.DeckNames[5] = "French"
	if id, _ := l.DeckID("French"); id != 5 {
		t.Errorf("Expected the lowest id to win a shared name, but got %d", id)
	}
}

func TestRowClone(t *testing.T) {
	r := Row{"tags": []string{"a"}, "empty": []string{}, "n": int64(1)}
	c := r.Clone()
	c["tags"].([]string)[0] = "b"
	if r["tags"].([]string)[0] != "a" {
		t.Error("Expected the clone to copy list values")
	}
	if c["empty"].([]string) == nil {
		t.Error("Expected an empty list to stay non-nil")
	}
}
