package analysis

import (
	"strings"
	"time"
)

const MaxContentRunes = 2000

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
}

// ParseDate tries the known source formats in order; nil means unparseable.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	// "2024-01-02T10:00:00.000Z" and friends
	if len(s) > 19 {
		if t, err := time.Parse("2006-01-02T15:04:05", s[:19]); err == nil {
			return &t
		}
	}
	return nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// CleanText collapses whitespace runs into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
