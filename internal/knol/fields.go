package knol

import "strings"

const (
	// TagSeparator joins the tags of a note.
	TagSeparator = " "
	// FieldSeparator joins the fields of a note.
	FieldSeparator = "\x1f"
)

// SplitTags splits a stored tag string on whitespace. Empty tokens are
// dropped and the result is never nil.
func SplitTags(s string) []string {
	tags := strings.Fields(s)
	if tags == nil {
		return []string{}
	}
	return tags
}

// JoinTags is the inverse of SplitTags.
func JoinTags(tags []string) string {
	return strings.Join(tags, TagSeparator)
}

// SplitFields splits a stored field string. A note always has at least one
// field, so the empty string yields one empty field.
func SplitFields(s string) []string {
	return strings.Split(s, FieldSeparator)
}

// JoinFields is the inverse of SplitFields.
func JoinFields(fields []string) string {
	return strings.Join(fields, FieldSeparator)
}
