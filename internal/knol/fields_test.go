package knol

import (
	"slices"
	"testing"
)

func TestSplitTags(t *testing.T) {
	testCases := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{"a", []string{"a"}},
		{" a  b ", []string{"a", "b"}},
		{"leech marked", []string{"leech", "marked"}},
		{"leech\tmarked", []string{"leech", "marked"}},
		{"\nleech\r\nmarked\n", []string{"leech", "marked"}},
		{" \t\n ", []string{}},
	}
	for _, tc := range testCases {
		got := SplitTags(tc.input)
		if got == nil || !slices.Equal(got, tc.expected) {
			t.Errorf("SplitTags(%q): expected %v, but got %v", tc.input, tc.expected, got)
		}
	}
	if JoinTags([]string{"leech", "marked"}) != "leech marked" {
		t.Error("Expected tags to be joined by a single space")
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	for _, stored := range []string{"", "front", "front\x1fback", "a\x1f\x1fc"} {
		fields := SplitFields(stored)
		if got := JoinFields(fields); got != stored {
			t.Errorf("Expected '%q' after round trip, but got '%q'", stored, got)
		}
	}
	if len(SplitFields("")) != 1 {
		t.Error("Expected the empty string to yield one empty field")
	}
}
