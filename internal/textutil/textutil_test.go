package textutil

import (
	"strings"
	"testing"
)

func TestTruncateShortTextUntouched(t *testing.T) {
	if got := Truncate("hello world", 20); got != "hello world" {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}

func TestTruncateBreaksOnWordBoundary(t *testing.T) {
	got := Truncate("the quick brown fox jumps over the lazy dog", 15)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
	body := strings.TrimSuffix(got, "...")
	if strings.HasSuffix(body, " ") || len([]rune(body)) > 15 {
		t.Fatalf("expected clean word boundary within limit, got %q", got)
	}
	if body != "the quick brown" {
		t.Fatalf("expected cut after last full word, got %q", body)
	}
}

func TestTruncateEdgesKeepsBothEnds(t *testing.T) {
	text := "start of a very long customer feedback message that ends with something important"
	got := TruncateEdges(text, 40)
	if !strings.Contains(got, "...") {
		t.Fatalf("expected ellipsis separator, got %q", got)
	}
	if !strings.HasPrefix(got, "start") {
		t.Fatalf("expected head preserved, got %q", got)
	}
	if !strings.HasSuffix(got, "important") {
		t.Fatalf("expected tail preserved, got %q", got)
	}
}

func TestTruncateEdgesShortTextUntouched(t *testing.T) {
	if got := TruncateEdges("short", 40); got != "short" {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}

func TestExtractURLs(t *testing.T) {
	text := "see https://example.com/docs?q=1 and http://www.foo.io/page plus plain words"
	urls := ExtractURLs(text)
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d: %v", len(urls), urls)
	}
	if urls[0] != "https://example.com/docs?q=1" {
		t.Fatalf("unexpected first url %q", urls[0])
	}
	if urls[1] != "http://www.foo.io/page" {
		t.Fatalf("unexpected second url %q", urls[1])
	}
}

func TestExtractURLsNoMatches(t *testing.T) {
	if urls := ExtractURLs("no links here"); len(urls) != 0 {
		t.Fatalf("expected no urls, got %v", urls)
	}
}
