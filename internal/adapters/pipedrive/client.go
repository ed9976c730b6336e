// Package pipedrive reads deals, deal history and organizations from the
// Pipedrive REST API v1.
package pipedrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/metrics"
)

// memberCountFieldKey is the custom organization field holding the Discord
// member count.
const memberCountFieldKey = "45b5cafd52c526bbc3d81cb4387fb4107ea77035"

const (
	dealsPageLimit = 500
	orgsPageLimit  = 50
	flowCacheTTL   = 10 * time.Minute
)

// Client implements domain.DealSource. An optional cache short-circuits
// repeated flow lookups within one run.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	cache   domain.Cache
}

var _ domain.DealSource = (*Client)(nil)

// NewClient creates a CRM client for the given company domain.
func NewClient(companyDomain, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: fmt.Sprintf("https://%s.pipedrive.com/api/v1", companyDomain),
		apiKey:  apiKey,
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// SetCache attaches a flow lookup cache.
func (c *Client) SetCache(cache domain.Cache) {
	c.cache = cache
}

// ListDeals returns up to one page of deals, most recently updated first.
func (c *Client) ListDeals(ctx context.Context) ([]domain.Deal, error) {
	params := url.Values{
		"filter_id": {"0"},
		"start":     {"0"},
		"limit":     {strconv.Itoa(dealsPageLimit)},
		"sort":      {"update_time DESC"},
		"status":    {"all_not_deleted"},
	}
	return c.fetchDeals(ctx, "deals_list", params)
}

// ListWonDeals returns every won deal.
func (c *Client) ListWonDeals(ctx context.Context) ([]domain.Deal, error) {
	return c.fetchDeals(ctx, "won_deals_list", url.Values{"status": {"won"}})
}

func (c *Client) fetchDeals(ctx context.Context, operation string, params url.Values) ([]domain.Deal, error) {
	var payload struct {
		Success bool      `json:"success"`
		Data    []rawDeal `json:"data"`
		Error   string    `json:"error"`
	}
	if err := c.get(ctx, operation, "/deals", params, &payload); err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, fmt.Errorf("pipedrive: deals request failed: %s", payload.Error)
	}

	deals := make([]domain.Deal, 0, len(payload.Data))
	for _, raw := range payload.Data {
		deals = append(deals, raw.toDomain())
	}
	return deals, nil
}

// DealFlow returns the change history of one deal, newest first.
func (c *Client) DealFlow(ctx context.Context, dealID int64) ([]domain.FlowEntry, error) {
	cacheKey := fmt.Sprintf("pipedrive:flow:%d", dealID)
	if c.cache != nil {
		if data, err := c.cache.Get(cacheKey); err == nil {
			var cached []domain.FlowEntry
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var payload struct {
		Success bool           `json:"success"`
		Data    []rawFlowEntry `json:"data"`
		Error   string         `json:"error"`
	}
	path := fmt.Sprintf("/deals/%d/flow", dealID)
	if err := c.get(ctx, "deal_flow", path, url.Values{}, &payload); err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, fmt.Errorf("pipedrive: flow request failed: %s", payload.Error)
	}

	entries := make([]domain.FlowEntry, 0, len(payload.Data))
	for _, raw := range payload.Data {
		entries = append(entries, raw.toDomain())
	}

	if c.cache != nil {
		if data, err := json.Marshal(entries); err == nil {
			_ = c.cache.Set(cacheKey, data, flowCacheTTL)
		}
	}
	return entries, nil
}

// ListNewOrganizations returns organizations added inside the window with
// their member counts.
func (c *Client) ListNewOrganizations(ctx context.Context, window domain.Window) ([]domain.Organization, error) {
	params := url.Values{
		"start": {"0"},
		"limit": {strconv.Itoa(orgsPageLimit)},
		"sort":  {"add_time DESC"},
	}
	var payload struct {
		Success bool             `json:"success"`
		Data    []map[string]any `json:"data"`
		Error   string           `json:"error"`
	}
	if err := c.get(ctx, "organizations_list", "/organizations", params, &payload); err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, fmt.Errorf("pipedrive: organizations request failed: %s", payload.Error)
	}

	var orgs []domain.Organization
	for _, raw := range payload.Data {
		addTime := parseTime(stringField(raw, "add_time"))
		if addTime.IsZero() || addTime.Before(window.Start) {
			continue
		}
		name := stringField(raw, "name")
		if name == "" {
			name = "Unnamed organization"
		}
		orgs = append(orgs, domain.Organization{
			Name:        name,
			MemberCount: stringField(raw, memberCountFieldKey),
		})
	}
	return orgs, nil
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("pipedrive: api key is empty")
	}
	params.Set("api_token", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("pipedrive: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("pipedrive", operation, path, start, err)
	if err != nil {
		return fmt.Errorf("pipedrive: do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pipedrive: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("pipedrive: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("pipedrive: decode response: %w", err)
	}
	return nil
}

type rawDeal struct {
	ID         int64           `json:"id"`
	Title      string          `json:"title"`
	Value      float64         `json:"value"`
	Status     string          `json:"status"`
	UpdateTime string          `json:"update_time"`
	WonTime    string          `json:"won_time"`
	LostTime   string          `json:"lost_time"`
	LostReason string          `json:"lost_reason"`
	OrgID      json.RawMessage `json:"org_id"`
}

func (r rawDeal) toDomain() domain.Deal {
	deal := domain.Deal{
		ID:         r.ID,
		Title:      r.Title,
		Company:    orgName(r.OrgID),
		Value:      r.Value,
		Status:     domain.DealStatus(r.Status),
		UpdateTime: parseTime(r.UpdateTime),
		LostReason: r.LostReason,
	}
	if t := parseTime(r.WonTime); !t.IsZero() {
		deal.WonTime = &t
	}
	if t := parseTime(r.LostTime); !t.IsZero() {
		deal.LostTime = &t
	}
	return deal
}

// orgName extracts the company name. org_id arrives either as an object or,
// on sparse responses, as a bare numeric id.
func orgName(raw json.RawMessage) string {
	var org struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &org); err == nil && org.Name != "" {
		return org.Name
	}
	return "Unknown company"
}

type rawFlowEntry struct {
	Object     string `json:"object"`
	ObjectType string `json:"object_type"`
	ToValue    string `json:"to_value"`
	Timestamp  string `json:"timestamp"`
	Data       struct {
		OldValue json.RawMessage `json:"old_value"`
		NewValue json.RawMessage `json:"new_value"`
	} `json:"data"`
}

func (r rawFlowEntry) toDomain() domain.FlowEntry {
	return domain.FlowEntry{
		Object:     r.Object,
		ObjectType: r.ObjectType,
		ToValue:    r.ToValue,
		OldValue:   rawString(r.Data.OldValue),
		NewValue:   rawString(r.Data.NewValue),
		Timestamp:  parseTime(r.Timestamp),
	}
}

// rawString normalizes a JSON scalar to its string form: values arrive as
// strings or numbers depending on the changed field.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

// parseTime accepts the two timestamp shapes the API emits.
func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
