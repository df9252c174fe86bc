package reports

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizePeriod turns free text such as "October 2025" into the stored key form "october_2025".
func NormalizePeriod(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(raw)), func(r rune) bool {
		return unicode.IsSpace(r) || r == '_'
	})
	return strings.Join(fields, "_")
}

// PeriodFromFilename derives the period key from an upload's base name.
func PeriodFromFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return NormalizePeriod(strings.TrimSuffix(base, filepath.Ext(base)))
}

// PeriodLabel renders a period key for humans: underscores become spaces, words are title-cased.
func PeriodLabel(period string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(period, "_", " "))
}
