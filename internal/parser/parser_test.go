package parser

import (
	"slices"
	"strings"
	"testing"
)

func TestParseModels(t *testing.T) {
	input := `{
		"1342697561419": {
			"name": "Basic",
			"sortf": 1,
			"flds": [{"name": "Back", "ord": 1}, {"name": "Front", "ord": 0}],
			"tmpls": [{"name": "Card 1", "ord": 0}]
		}
	}`
	models, err := ParseModels(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseModels() returned an unexpected error: %v", err)
	}
	m, ok := models[1342697561419]
	if !ok {
		t.Fatalf("Expected model 1342697561419, but got %v", models)
	}
	if m.Name != "Basic" {
		t.Errorf("Expected name 'Basic', but got '%s'", m.Name)
	}
	if m.SortField != 1 {
		t.Errorf("Expected sort field 1, but got %d", m.SortField)
	}
	if names := m.FieldNames(); !slices.Equal(names, []string{"Front", "Back"}) {
		t.Errorf("Expected fields ordered by ord, but got %v", names)
	}
	if m.ID != 1342697561419 {
		t.Errorf("Expected id taken from the key, but got %d", m.ID)
	}
}

func TestParseDecks(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedDecks int
		expectError   bool
	}{
		{name: "Two decks", input: `{"1": {"name": "Default"}, "1500": {"name": "Spanish::Verbs"}}`, expectedDecks: 2},
		{name: "Empty object", input: `{}`, expectedDecks: 0},
		{name: "Empty input", input: ``, expectedDecks: 0},
		{name: "Non numeric key", input: `{"x": {"name": "Default"}}`, expectError: true},
		{name: "Malformed", input: `{"1": `, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decks, err := ParseDecks(strings.NewReader(tc.input))
			if tc.expectError {
				if err == nil {
					t.Fatal("Expected an error, but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecks() returned an unexpected error: %v", err)
			}
			if len(decks) != tc.expectedDecks {
				t.Errorf("Expected %d decks, but got %d", tc.expectedDecks, len(decks))
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	decks := map[int64]Deck{1: {ID: 1, Name: "Default"}, 20: {ID: 20, Name: "Filtered"}}
	doc, err := EncodeDecks(decks)
	if err != nil {
		t.Fatalf("EncodeDecks() returned an unexpected error: %v", err)
	}
	back, err := ParseDecks(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseDecks() returned an unexpected error: %v", err)
	}
	if back[20].Name != "Filtered" || len(back) != 2 {
		t.Errorf("Expected decks to survive a round trip, but got %v", back)
	}

	models := map[int64]Model{7: {ID: 7, Name: "Cloze", Fields: []Field{{Name: "Text"}}}}
	mdoc, err := EncodeModels(models)
	if err != nil {
		t.Fatalf("EncodeModels() returned an unexpected error: %v", err)
	}
	mback, err := ParseModels(strings.NewReader(mdoc))
	if err != nil {
		t.Fatalf("ParseModels() returned an unexpected error: %v", err)
	}
	if mback[7].Name != "Cloze" || len(mback[7].Fields) != 1 {
		t.Errorf("Expected models to survive a round trip, but got %v", mback)
	}
}

func TestInsertKeepsUnknownMembers(t *testing.T) {
	doc := `{"1": {"name": "Default", "conf": 1, "desc": "keep me"}}`
	out, err := Insert(doc, 20, Deck{ID: 20, Name: "Verbs"})
	if err != nil {
		t.Fatalf("Insert() returned an unexpected error: %v", err)
	}
	if !strings.Contains(out, `"desc":"keep me"`) {
		t.Errorf("Expected unknown members to survive, but got %s", out)
	}
	decks, err := ParseDecks(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseDecks() returned an unexpected error: %v", err)
	}
	if decks[20].Name != "Verbs" || decks[1].Name != "Default" {
		t.Errorf("Expected both decks, but got %v", decks)
	}

	if _, err := Insert("", 1, Deck{ID: 1, Name: "Default"}); err != nil {
		t.Errorf("Expected an empty document to be accepted, but got %v", err)
	}
	if _, err := Insert("[", 1, Deck{}); err == nil {
		t.Error("Expected an error for a malformed document, but got none")
	}
}
