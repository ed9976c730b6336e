package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"discord-digest-bot/internal/domain"
)

func TestAppendBlocksTargetsNewestPage(t *testing.T) {
	var appendBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/databases/db-1/query":
			if r.Header.Get("Notion-Version") != apiVersion {
				t.Fatalf("missing api version header")
			}
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["page_size"].(float64) != 1 {
				t.Fatalf("expected page_size 1, got %v", body["page_size"])
			}
			_, _ = w.Write([]byte(`{"results":[{"id":"page-42"}]}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/blocks/page-42/children":
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &appendBody)
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient("secret", "db-1", time.Second)
	client.SetBaseURL(server.URL)
	client.now = func() time.Time { return time.Date(2025, 3, 28, 9, 30, 0, 0, time.UTC) }

	blocks := []domain.ContentBlock{
		{Type: domain.BlockHeading, Level: 2, Runs: []domain.InlineRun{{Type: domain.RunText, Text: "Sales"}}},
		{Type: domain.BlockBulleted, Runs: []domain.InlineRun{
			{Type: domain.RunText, Text: "see "},
			{Type: domain.RunLink, Text: "the post", URL: "https://example.com"},
		}},
	}
	if err := client.AppendBlocks(context.Background(), blocks); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	children := appendBody["children"].([]any)
	if len(children) != 3 {
		t.Fatalf("expected timestamp heading plus two blocks, got %d", len(children))
	}
	first := children[0].(map[string]any)
	if first["type"] != "heading_3" {
		t.Fatalf("expected heading_3 preamble, got %v", first["type"])
	}
	text := first["heading_3"].(map[string]any)["rich_text"].([]any)[0].(map[string]any)["text"].(map[string]any)["content"].(string)
	if text != "Generated on 2025-03-28 09:30" {
		t.Fatalf("unexpected preamble text: %q", text)
	}

	bullet := children[2].(map[string]any)
	if bullet["type"] != "bulleted_list_item" {
		t.Fatalf("unexpected block: %v", bullet)
	}
	runs := bullet["bulleted_list_item"].(map[string]any)["rich_text"].([]any)
	link := runs[1].(map[string]any)["text"].(map[string]any)["link"].(map[string]any)["url"].(string)
	if link != "https://example.com" {
		t.Fatalf("unexpected link url: %q", link)
	}
}

func TestAppendBlocksEmptyDatabase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	client := NewClient("secret", "db-1", time.Second)
	client.SetBaseURL(server.URL)
	if err := client.AppendBlocks(context.Background(), nil); err == nil {
		t.Fatal("expected an error for an empty database")
	}
}

func TestAppendBlocksWithoutCredentials(t *testing.T) {
	client := NewClient("", "", time.Second)
	if err := client.AppendBlocks(context.Background(), nil); err == nil {
		t.Fatal("expected an error without credentials")
	}
}
