package frame

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/ankitab/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Tags and guids are stored space separated, so they may not contain blanks.
	err := v.RegisterValidation("token", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.ContainsAny(s, " \t\r\n\x1f")
	})
	if err != nil {
		panic(fmt.Sprintf("frame: failed to register token validation: %v", err))
	}
	return v
}

// NewNote describes a note to add. Fields are given either in model order or
// by name; missing named fields stay empty.
type NewNote struct {
	Model  string            `validate:"required"`
	Fields []string          `validate:"required_without=Named"`
	Named  map[string]string `validate:"required_without=Fields,excluded_with=Fields"`
	Tags   []string          `validate:"dive,token"`
	ID     int64             `validate:"gte=0"`
	GUID   string            `validate:"omitempty,token"`
}

// NewCard describes a card to add for an existing note.
type NewCard struct {
	NoteID int64  `validate:"required,gt=0"`
	Deck   string `validate:"required"`
	Ord    int64  `validate:"gte=0"`
	// Queue and Type are labels; they default to "new" and "learning".
	Queue string
	Type  string
	// Due defaults to the note id, the position of new cards.
	Due int64
	ID  int64 `validate:"gte=0"`
}

// AddNote appends a note and returns its id. Unless given, the id is derived
// from the current time in milliseconds and the guid is generated.
func (f *Frame) AddNote(n NewNote) (int64, error) {
	if err := f.checkConvenient(); err != nil {
		return 0, err
	}
	if f.table != domain.Notes {
		return 0, fmt.Errorf("%w: notes can only be added to notes, not %s", domain.ErrInvalidTable, f.table)
	}
	if err := validate.Struct(n); err != nil {
		return 0, fmt.Errorf("invalid note: %w", err)
	}
	l, err := f.Lookups()
	if err != nil {
		return 0, err
	}
	mid, err := l.ModelID(n.Model)
	if err != nil {
		return 0, err
	}
	names, err := l.Fields(mid)
	if err != nil {
		return 0, err
	}
	values, err := orderFields(names, n)
	if err != nil {
		return 0, err
	}

	id := n.ID
	if id == 0 {
		id = f.nextID()
	}
	if f.Has(id) {
		return 0, fmt.Errorf("note id %d already present", id)
	}
	guid := n.GUID
	if guid == "" {
		guid = f.guid()
	}
	for _, r := range f.rows {
		if g, _ := r["nguid"].(string); g == guid {
			return 0, fmt.Errorf("note guid %q already present", guid)
		}
	}

	tags := slices.Clone(n.Tags)
	if tags == nil {
		tags = []string{}
	}
	row := domain.Row{
		"nmodel": n.Model,
		"ntags":  tags,
		"nguid":  guid,
		"nmod":   f.now().Unix(),
		"nusn":   PendingUSN,
	}
	switch f.fields {
	case FieldsList:
		row["nflds"] = values
	case FieldsColumns:
		for i, name := range names {
			col := f.fieldsPrefix + name
			if !f.HasColumn(col) {
				f.AddColumn(col, "")
			}
			row[col] = values[i]
		}
		for _, col := range f.FieldColumns() {
			if _, ok := row[col]; !ok {
				row[col] = ""
			}
		}
	default:
		return 0, fmt.Errorf("%w: fields are %s", domain.ErrFormatState, f.fields)
	}
	if err := f.Insert(id, row); err != nil {
		return 0, err
	}
	return id, nil
}

// AddCard appends a card and returns its id.
func (f *Frame) AddCard(c NewCard) (int64, error) {
	if err := f.checkConvenient(); err != nil {
		return 0, err
	}
	if f.table != domain.Cards {
		return 0, fmt.Errorf("%w: cards can only be added to cards, not %s", domain.ErrInvalidTable, f.table)
	}
	if err := validate.Struct(c); err != nil {
		return 0, fmt.Errorf("invalid card: %w", err)
	}
	l, err := f.Lookups()
	if err != nil {
		return 0, err
	}
	if _, ok := l.NoteModels[c.NoteID]; !ok {
		return 0, fmt.Errorf("%w: note %d is not stored yet", domain.ErrLookupNotFound, c.NoteID)
	}
	if _, err := l.DeckID(c.Deck); err != nil {
		return 0, err
	}
	queue, typ := c.Queue, c.Type
	if queue == "" {
		queue = "new"
	}
	if typ == "" {
		typ = "learning"
	}
	if _, err := f.desc.Encode("cqueue", queue); err != nil {
		return 0, err
	}
	if _, err := f.desc.Encode("ctype", typ); err != nil {
		return 0, err
	}
	due := c.Due
	if due == 0 {
		due = c.NoteID
	}

	id := c.ID
	if id == 0 {
		id = f.nextID()
	}
	if f.Has(id) {
		return 0, fmt.Errorf("card id %d already present", id)
	}
	row := domain.Row{
		"nid":     c.NoteID,
		"cdeck":   c.Deck,
		"codeck":  "",
		"cord":    c.Ord,
		"cmod":    f.now().Unix(),
		"cusn":    PendingUSN,
		"ctype":   typ,
		"cqueue":  queue,
		"cdue":    due,
		"civl":    int64(0),
		"cfactor": int64(0),
		"creps":   int64(0),
		"clapses": int64(0),
		"cleft":   int64(0),
		"codue":   int64(0),
	}
	if err := f.Insert(id, row); err != nil {
		return 0, err
	}
	return id, nil
}

// nextID returns the current time in milliseconds, skipping ids in use.
func (f *Frame) nextID() int64 {
	id := f.now().UnixMilli()
	for f.Has(id) {
		id++
	}
	return id
}

func orderFields(names []string, n NewNote) ([]string, error) {
	if n.Named == nil {
		if len(n.Fields) != len(names) {
			return nil, fmt.Errorf("model %s has %d fields, got %d", n.Model, len(names), len(n.Fields))
		}
		return slices.Clone(n.Fields), nil
	}
	var unknown []string
	for k := range n.Named {
		if !slices.Contains(names, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("unknown fields for model %s: %s", n.Model, strings.Join(unknown, ", "))
	}
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = n.Named[name]
	}
	return values, nil
}
