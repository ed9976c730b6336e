// Package textutil holds the text helpers shared by prompt building and
// harvesting: word-boundary-safe truncation and URL extraction.
package textutil

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://(?:www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b(?:[-a-zA-Z0-9()@:%_+.~#?&/=]*)`)

// ExtractURLs returns every URL found in text, in order of appearance.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Truncate cuts text to at most max characters without breaking the last
// word, appending an ellipsis when anything was removed.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// TruncateEdges keeps both the start and the end of an overlong text,
// trimming each part to a word boundary and joining them with an ellipsis.
func TruncateEdges(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	// Reserve three characters for the ellipsis between the halves.
	part := (max - 3) / 2

	head := string(runes[:part])
	if idx := strings.LastIndex(head, " "); idx > 0 {
		head = head[:idx]
	}

	tail := string(runes[len(runes)-part:])
	if idx := strings.Index(tail, " "); idx > 0 {
		tail = tail[idx:]
	}

	return head + "..." + tail
}
