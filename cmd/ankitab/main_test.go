package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	rows := [][]string{
		{"notes", "1,204", "nid nguid nmodel"},
		{"revs", "0", "rid cid"},
	}
	if err := writeSummary(&buf, rows); err != nil {
		t.Fatalf("writeSummary() returned an unexpected error: %v", err)
	}
	got := buf.String()

	for _, header := range []string{"TABLE", "ROWS", "COLUMNS"} {
		if !strings.Contains(strings.ToUpper(got), header) {
			t.Errorf("Expected header %s in output, but got:\n%s", header, got)
		}
	}
	for _, row := range rows {
		for _, word := range strings.Fields(strings.Join(row, " ")) {
			if !strings.Contains(got, word) {
				t.Errorf("Expected '%s' in output, but got:\n%s", word, got)
			}
		}
	}
	if lines := strings.Count(got, "\n"); lines < len(rows)+1 {
		t.Errorf("Expected at least %d lines, but got %d:\n%s", len(rows)+1, lines, got)
	}
}
