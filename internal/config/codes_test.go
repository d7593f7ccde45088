package config

import (
	"path/filepath"
	"testing"
)

func TestReasonTable_Phrase(t *testing.T) {
	table := DefaultReasonTable()

	tests := []struct {
		lang     string
		code     int
		expected string
	}{
		{"en", 200, "200 OK"},
		{"en", 400, "400 Bad Request"},
		{"en", 406, "406 Not Acceptable"},
		{"en", 480, "480 Temporarily Unavailable"},
		{"en", 500, "500 Server Internal Error"},
		{"sk", 480, "480 Dočasne nedostupný"},
		{"sk", 505, "505 Version Not Supported"},
		{"xx", 200, "200 OK"},
		{"en", 299, "299"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := table.Phrase(tt.lang, tt.code); got != tt.expected {
				t.Errorf("Phrase(%s, %d) = %q, expected %q", tt.lang, tt.code, got, tt.expected)
			}
		})
	}
}

func TestReasonTable_HasLanguage(t *testing.T) {
	table := DefaultReasonTable()
	for _, lang := range []string{"en", "sk"} {
		if !table.HasLanguage(lang) {
			t.Errorf("Expected embedded table to carry %s", lang)
		}
	}
	if table.HasLanguage("") {
		t.Error("Empty language should not be present")
	}
}

func TestParseReasonTable_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"bad code":     "en:\n  OK: \"200 OK\"\n",
		"not a table":  "- 200\n- 400\n",
		"broken input": "en: {",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseReasonTable([]byte(doc)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadReasonTable_MissingFile(t *testing.T) {
	if _, err := LoadReasonTable(filepath.Join(t.TempDir(), "codes.yaml")); err == nil {
		t.Error("Expected error for missing codes file")
	}
}
