// Package notion publishes compiled digests under the newest page of a
// Notion database.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/metrics"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

// Client implements domain.DocumentStore on the Notion REST API.
type Client struct {
	http       *http.Client
	baseURL    string
	token      string
	databaseID string
	now        func() time.Time
}

var _ domain.DocumentStore = (*Client)(nil)

// NewClient creates a Notion client for one database.
func NewClient(token, databaseID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		token:      token,
		databaseID: databaseID,
		now:        time.Now,
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// AppendBlocks appends the blocks to the most recently created page of the
// database, preceded by a generation timestamp heading.
func (c *Client) AppendBlocks(ctx context.Context, blocks []domain.ContentBlock) error {
	if c.token == "" || c.databaseID == "" {
		return fmt.Errorf("notion: credentials not configured")
	}

	pageID, err := c.latestPageID(ctx)
	if err != nil {
		return err
	}

	children := make([]map[string]any, 0, len(blocks)+1)
	children = append(children, headingBlock(3, fmt.Sprintf("Generated on %s", c.now().Format("2006-01-02 15:04"))))
	for _, block := range blocks {
		children = append(children, renderBlock(block))
	}

	body := map[string]any{"children": children}
	return c.do(ctx, "append_blocks", http.MethodPatch, "/blocks/"+pageID+"/children", body, nil)
}

// latestPageID queries the database sorted by creation time descending.
func (c *Client) latestPageID(ctx context.Context) (string, error) {
	body := map[string]any{
		"sorts":     []map[string]string{{"property": "Created time", "direction": "descending"}},
		"page_size": 1,
	}
	var resp struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := c.do(ctx, "query_database", http.MethodPost, "/databases/"+c.databaseID+"/query", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", fmt.Errorf("notion: database %s has no pages", c.databaseID)
	}
	return resp.Results[0].ID, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("notion: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notion: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("notion", operation, path, start, err)
	if err != nil {
		return fmt.Errorf("notion: do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notion: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notion: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("notion: decode response: %w", err)
		}
	}
	return nil
}

// renderBlock maps one compiled block to the Notion block object shape.
func renderBlock(block domain.ContentBlock) map[string]any {
	switch block.Type {
	case domain.BlockHeading:
		return headingBlock(block.Level, block.PlainText())
	case domain.BlockBulleted, domain.BlockNumbered, domain.BlockParagraph:
		key := string(block.Type)
		return map[string]any{
			"object": "block",
			"type":   key,
			key:      map[string]any{"rich_text": renderRuns(block.Runs)},
		}
	case domain.BlockCode:
		return map[string]any{
			"object": "block",
			"type":   "code",
			"code":   map[string]any{"rich_text": plainRichText(block.PlainText())},
		}
	default:
		return map[string]any{
			"object":    "block",
			"type":      "paragraph",
			"paragraph": map[string]any{"rich_text": renderRuns(block.Runs)},
		}
	}
}

func headingBlock(level int, text string) map[string]any {
	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}
	key := fmt.Sprintf("heading_%d", level)
	return map[string]any{
		"object": "block",
		"type":   key,
		key:      map[string]any{"rich_text": plainRichText(text)},
	}
}

func plainRichText(text string) []map[string]any {
	return []map[string]any{{
		"type": "text",
		"text": map[string]any{"content": text},
	}}
}

func renderRuns(runs []domain.InlineRun) []map[string]any {
	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		item := map[string]any{
			"type": "text",
			"text": map[string]any{"content": run.Text},
		}
		switch run.Type {
		case domain.RunLink:
			item["text"] = map[string]any{
				"content": run.Text,
				"link":    map[string]any{"url": run.URL},
			}
		case domain.RunBold:
			item["annotations"] = map[string]any{"bold": true}
		case domain.RunItalic:
			item["annotations"] = map[string]any{"italic": true}
		}
		out = append(out, item)
	}
	return out
}
