// Package parser decodes and encodes the JSON documents stored in the single
// row of the legacy "col" table, where models (note types) and decks live.
package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Field is one field of a model.
type Field struct {
	Name string `json:"name"`
	Ord  int    `json:"ord"`
}

// Template is one card template of a model.
type Template struct {
	Name string `json:"name"`
	Ord  int    `json:"ord"`
}

// Model is a note type.
type Model struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	SortField int        `json:"sortf"`
	Fields    []Field    `json:"flds"`
	Templates []Template `json:"tmpls"`
}

// FieldNames returns the field names ordered by their ordinal.
func (m Model) FieldNames() []string {
	fields := append([]Field(nil), m.Fields...)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Ord < fields[j].Ord })
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Deck is a deck entry.
type Deck struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ParseModels reads the models document. Keys of the document are the model
// ids; they take precedence over an "id" member.
func ParseModels(r io.Reader) (map[int64]Model, error) {
	raw, err := decodeObject[Model](r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse models: %w", err)
	}
	models := make(map[int64]Model, len(raw))
	for id, m := range raw {
		m.ID = id
		models[id] = m
	}
	return models, nil
}

// ParseDecks reads the decks document.
func ParseDecks(r io.Reader) (map[int64]Deck, error) {
	raw, err := decodeObject[Deck](r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse decks: %w", err)
	}
	decks := make(map[int64]Deck, len(raw))
	for id, d := range raw {
		d.ID = id
		decks[id] = d
	}
	return decks, nil
}

// EncodeModels is the inverse of ParseModels.
func EncodeModels(models map[int64]Model) (string, error) {
	return encodeObject(models)
}

// EncodeDecks is the inverse of ParseDecks.
func EncodeDecks(decks map[int64]Deck) (string, error) {
	return encodeObject(decks)
}

// Insert adds entry under id to a models or decks document. Members of the
// other entries are kept verbatim, including those this package does not model.
func Insert(doc string, id int64, entry any) (string, error) {
	raw := map[string]json.RawMessage{}
	if strings.TrimSpace(doc) != "" {
		if err := json.Unmarshal([]byte(doc), &raw); err != nil {
			return "", fmt.Errorf("failed to parse document: %w", err)
		}
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode entry %d: %w", id, err)
	}
	raw[strconv.FormatInt(id, 10)] = b
	out, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeObject[T any](r io.Reader) (map[int64]T, error) {
	var doc map[string]T
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return map[int64]T{}, nil
		}
		return nil, err
	}
	out := make(map[int64]T, len(doc))
	for key, v := range doc {
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", key, err)
		}
		out[id] = v
	}
	return out, nil
}

func encodeObject[T any](m map[int64]T) (string, error) {
	doc := make(map[string]T, len(m))
	for id, v := range m {
		doc[strconv.FormatInt(id, 10)] = v
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
