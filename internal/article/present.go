package article

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// PreviewLength is the number of characters kept by Preview.
	PreviewLength = 120
	// NoContentPlaceholder is shown instead of an empty body.
	NoContentPlaceholder = "No content available..."
	// WordsPerMinute is the assumed reading speed.
	WordsPerMinute = 200
)

// Preview shortens body for list display.
func Preview(body string) string {
	if body == "" {
		return NoContentPlaceholder
	}
	r := []rune(body)
	if len(r) > PreviewLength {
		return string(r[:PreviewLength]) + "..."
	}
	return body
}

// FormatDate renders t as a short numeric date (1/2/2006) in local time.
// The zero time renders as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("1/2/2006")
}

// FormatLongDate renders t as "January 2, 2006" in local time, or "" for the
// zero time.
func FormatLongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("January 2, 2006")
}

// FormatOptionalLongDate is FormatLongDate for an optional timestamp.
func FormatOptionalLongDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatLongDate(*t)
}

// WordCount counts whitespace-delimited tokens.
func WordCount(body string) int {
	return len(strings.Fields(body))
}

// ReadingMinutes is ceil(words/200), with a floor of one minute so an empty
// article still reads as "1 min read".
func ReadingMinutes(body string) int {
	m := int(math.Ceil(float64(WordCount(body)) / WordsPerMinute))
	if m < 1 {
		return 1
	}
	return m
}

// ReadingTime renders ReadingMinutes for display.
func ReadingTime(body string) string {
	m := ReadingMinutes(body)
	if m == 1 {
		return "1 min read"
	}
	return fmt.Sprintf("%d min read", m)
}
