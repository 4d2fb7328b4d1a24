// Package knol holds the values derived from note content: the field
// checksum used for duplicate detection, globally unique ids, and the
// encodings of tag and field lists.
package knol

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	reComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	reStyle   = regexp.MustCompile(`(?si)<style.*?>.*?</style>`)
	reScript  = regexp.MustCompile(`(?si)<script.*?>.*?</script>`)
	reTag     = regexp.MustCompile(`(?s)<.*?>`)
	reEntity  = regexp.MustCompile(`&#?\w+;`)
	reMedia   = regexp.MustCompile(`(?i)<img[^>]+src=["']?([^"'>]+)["']?[^>]*>`)
)

// StripHTML removes comments, style and script blocks and all tags, then
// decodes character entities.
func StripHTML(s string) string {
	s = reComment.ReplaceAllString(s, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reScript.ReplaceAllString(s, "")
	s = reTag.ReplaceAllString(s, "")
	return entitiesToText(s)
}

// StripHTMLMedia is StripHTML, but image tags are replaced by the file name
// they reference.
func StripHTMLMedia(s string) string {
	s = reMedia.ReplaceAllString(s, " ${1} ")
	return StripHTML(s)
}

// entitiesToText decodes entities. &nbsp; becomes a plain space. Character
// references decode when they name a valid code point and named entities
// when they belong to the HTML 4 set; anything else is left as it is.
func entitiesToText(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return reEntity.ReplaceAllStringFunc(s, decodeEntity)
}

func decodeEntity(ent string) string {
	body := ent[1 : len(ent)-1]
	if num, ok := strings.CutPrefix(body, "#"); ok {
		base := 10
		if hex, ok := strings.CutPrefix(num, "x"); ok {
			num, base = hex, 16
		}
		n, err := strconv.ParseUint(num, base, 32)
		if err != nil || !utf8.ValidRune(rune(n)) {
			return ent
		}
		return string(rune(n))
	}
	if r, ok := namedEntities[body]; ok {
		return string(r)
	}
	return ent
}

// FieldChecksum returns the 32 bit checksum of a field: the first 8 hex digits
// of the SHA-1 of the stripped text. It is applied to the first field of a note.
func FieldChecksum(field string) uint32 {
	sum := sha1.Sum([]byte(StripHTMLMedia(field)))
	n, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 32)
	return uint32(n)
}
