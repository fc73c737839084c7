package models

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// SanitizeLanguage turns a display name into a bar key: every whitespace run
// becomes one underscore and the result is lower-cased.
func SanitizeLanguage(name string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return lowerCaser.String(b.String())
}

// LanguageConfig maps a language code (as used in "<column> - <code>"
// headers) to its display name.
type LanguageConfig map[string]string

func LoadLanguageConfig(path string) (LanguageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read language config: %w", err)
	}
	cfg := LanguageConfig{}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse language config %s: %w", path, err)
	}
	return cfg, nil
}

// AvailableLanguages returns the display names of the languages that have a
// "<column> - <code>" header, in header order and without duplicates.
func (c LanguageConfig) AvailableLanguages(header []string) []string {
	seen := map[string]bool{}
	var langs []string
	for _, col := range header {
		parts := strings.SplitN(col, " - ", 2)
		if len(parts) != 2 {
			continue
		}
		name, ok := c[strings.TrimSpace(parts[1])]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		langs = append(langs, name)
	}
	return langs
}
