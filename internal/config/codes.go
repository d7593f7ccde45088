package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"braces.dev/errtrace"
	"gopkg.in/yaml.v3"
)

// FallbackLanguage is consulted when a code is missing from the requested language
const FallbackLanguage = "en"

//go:embed codes.yaml
var embeddedCodes []byte

// ReasonTable maps a language tag and a status code string to the full status text
// ("200" -> "200 OK"). It is read-only once loaded.
type ReasonTable struct {
	languages map[string]map[string]string
}

// DefaultReasonTable returns the table compiled into the binary
func DefaultReasonTable() *ReasonTable {
	table, err := ParseReasonTable(embeddedCodes)
	if err != nil {
		panic(fmt.Sprintf("embedded reason table is invalid: %v", err))
	}
	return table
}

// LoadReasonTable reads a reason table from a YAML (or JSON) file
func LoadReasonTable(filename string) (*ReasonTable, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("failed to read codes file %s: %w", filename, err))
	}
	table, err := ParseReasonTable(data)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("failed to parse codes file %s: %w", filename, err))
	}
	return table, nil
}

// ParseReasonTable decodes a language -> code -> text document
func ParseReasonTable(data []byte) (*ReasonTable, error) {
	var languages map[string]map[string]string
	if err := yaml.Unmarshal(data, &languages); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if len(languages) == 0 {
		return nil, errtrace.Errorf("reason table has no languages")
	}
	for lang, codes := range languages {
		for code := range codes {
			if _, err := strconv.Atoi(code); err != nil {
				return nil, errtrace.Errorf("language %s: invalid status code %q", lang, code)
			}
		}
	}
	return &ReasonTable{languages: languages}, nil
}

// HasLanguage reports whether the table carries lang
func (t *ReasonTable) HasLanguage(lang string) bool {
	_, ok := t.languages[lang]
	return ok
}

// Phrase returns the status text for code in lang.
// A missing entry falls back to the English table, then to the bare code.
func (t *ReasonTable) Phrase(lang string, code int) string {
	key := strconv.Itoa(code)
	if text, ok := t.languages[lang][key]; ok {
		return text
	}
	if text, ok := t.languages[FallbackLanguage][key]; ok {
		return text
	}
	return key
}

var _ PhraseLookup = (*ReasonTable)(nil)
