package knol

import (
	"strings"
	"testing"
)

func TestBase91(t *testing.T) {
	testCases := []struct {
		n        uint64
		expected string
	}{
		{0, ""},
		{1, "b"},
		{90, "~"},
		{91, "ba"},
		{12345678901234567890, "C<D~1=[N#b"},
		{1<<64 - 1, "Rj&Z5m[>Zp"},
	}
	for _, tc := range testCases {
		if got := Base91(tc.n); got != tc.expected {
			t.Errorf("Base91(%d): expected '%s', but got '%s'", tc.n, tc.expected, got)
		}
	}
}

func TestGUID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		g := GUID()
		if len(g) > 10 {
			t.Errorf("Expected at most 10 characters, but got '%s'", g)
		}
		if strings.ContainsAny(g, "\"'\\ ") {
			t.Errorf("GUID '%s' contains a forbidden character", g)
		}
		seen[g] = true
	}
	if len(seen) < 99 {
		t.Errorf("Expected GUIDs to be unique, but got only %d distinct values", len(seen))
	}
}
