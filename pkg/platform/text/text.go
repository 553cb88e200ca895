// Package text provides string manipulation utilities.
package text

import (
	"html"
	"strings"
)

// StripTags removes HTML markup and entities from rich-text values, trimming
// surrounding whitespace.
//
// Example:
//
//	StripTags("<p>huga &amp; huga</p>")
//	// Returns: "huga & huga"
func StripTags(raw string) string {
	var b strings.Builder
	inTag := false
	for _, r := range raw {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(html.UnescapeString(b.String()))
}

// SplitLines splits a newline-separated options blob into trimmed non-empty
// lines. CRLF input is normalized. Order is preserved.
func SplitLines(raw string) []string {
	if raw == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
