package knol

import "testing"

func TestStripHTML(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "foo", "foo"},
		{"bold", "<b>foo</b>", "foo"},
		{"comment", "a<!-- hidden\n -->b", "ab"},
		{"style block", "<style type=\"text/css\">.x{}</style>text", "text"},
		{"script block", "<SCRIPT>alert(1)</SCRIPT>text", "text"},
		{"nbsp", "a&nbsp;b", "a b"},
		{"named entity", "&lt;tag&gt; &amp; more", "<tag> & more"},
		{"numeric entity", "&#65;&#x42;", "AB"},
		{"unknown entity", "&bogus;", "&bogus;"},
		{"amp", "fish &amp; chips", "fish & chips"},
		{"decimal reference", "&#65;", "A"},
		{"hex reference", "&#x41;&#x00e9;", "A\u00e9"},
		{"latin-1 entity", "caf&eacute; &copy;", "caf\u00e9 \u00a9"},
		{"greek entity", "&Omega;&lambda;", "\u03a9\u03bb"},
		{"apos is not html 4", "it&apos;s", "it&apos;s"},
		{"html5 entity", "a&NewLine;b", "a&NewLine;b"},
		{"beyond unicode", "&#1114112;", "&#1114112;"},
		{"hex beyond unicode", "&#x110000;", "&#x110000;"},
		{"surrogate", "&#xD800;", "&#xD800;"},
		{"huge reference", "&#99999999999999999999;", "&#99999999999999999999;"},
		{"upper case hex marker", "&#X41;", "&#X41;"},
		{"bad hex digits", "&#xZZ;", "&#xZZ;"},
		{"largest code point", "&#1114111;", "\U0010ffff"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := StripHTML(tc.input)
			if got != tc.expected {
				t.Errorf("Expected '%s', but got '%s'", tc.expected, got)
			}
		})
	}
}

func TestStripHTMLMedia(t *testing.T) {
	got := StripHTMLMedia(`before<img src="cat.jpg">after`)
	expected := "before cat.jpg after"
	if got != expected {
		t.Errorf("Expected '%s', but got '%s'", expected, got)
	}
}

func TestFieldChecksum(t *testing.T) {
	t.Run("known value", func(t *testing.T) {
		// First 8 hex digits of sha1("foo") are 0beec7b5.
		if got := FieldChecksum("foo"); got != 200198069 {
			t.Errorf("Expected checksum 200198069, but got %d", got)
		}
		// sha1("") starts with da39a3ee.
		if got := FieldChecksum(""); got != 3661210606 {
			t.Errorf("Expected checksum 3661210606, but got %d", got)
		}
	})

	t.Run("markup is ignored", func(t *testing.T) {
		if FieldChecksum("<b>foo</b>") != FieldChecksum("foo") {
			t.Error("Expected checksum of '<b>foo</b>' to equal checksum of 'foo'")
		}
	})

	t.Run("checksum is deterministic", func(t *testing.T) {
		a := FieldChecksum("Some <i>field</i> content")
		b := FieldChecksum("Some <i>field</i> content")
		if a != b {
			t.Error("Expected identical input to produce identical checksums")
		}
	})

	t.Run("media file names count", func(t *testing.T) {
		if FieldChecksum(`<img src="a.png">`) == FieldChecksum(`<img src="b.png">`) {
			t.Error("Expected different images to produce different checksums")
		}
	})
}
