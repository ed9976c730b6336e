package harvest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"discord-digest-bot/internal/domain"
)

var testNow = time.Date(2025, 3, 28, 12, 0, 0, 0, time.UTC)

func testWindow() domain.Window {
	return domain.NewWindow(testNow, 7)
}

type stubSource struct {
	name    string
	created time.Time
	pages   [][]domain.SourceMessage
	err     error
	fetches int
	cursors []string
}

func (s *stubSource) ID() string            { return "src-" + s.name }
func (s *stubSource) Name() string          { return s.name }
func (s *stubSource) CreatedAt() time.Time  { return s.created }
func (s *stubSource) HistoryPage(_ context.Context, before string, _ int) ([]domain.SourceMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.cursors = append(s.cursors, before)
	if s.fetches >= len(s.pages) {
		s.fetches++
		return nil, nil
	}
	page := s.pages[s.fetches]
	s.fetches++
	return page, nil
}

type stubThread struct {
	stubSource
	parent    string
	origin    domain.SourceMessage
	hasOrigin bool
	originErr error
}

func (s *stubThread) ParentName() string { return s.parent }
func (s *stubThread) Origin(context.Context) (domain.SourceMessage, bool, error) {
	if s.originErr != nil {
		return domain.SourceMessage{}, false, s.originErr
	}
	return s.origin, s.hasOrigin, nil
}

func msg(id string, age time.Duration, author string, bot bool, content string) domain.SourceMessage {
	return domain.SourceMessage{
		ID:        id,
		Content:   content,
		Author:    author,
		Bot:       bot,
		CreatedAt: testNow.Add(-age),
	}
}

func TestHarvestChannelSortsAndFilters(t *testing.T) {
	src := &stubSource{name: "sales", pages: [][]domain.SourceMessage{{
		msg("3", 1*time.Hour, "ana", false, "newest https://github.com/org/repo and https://example.com/x"),
		msg("2", 2*time.Hour, "digest-bot", true, "bot noise"),
		msg("1", 3*time.Hour, "bob", false, "oldest"),
	}}}

	svc := NewService(zerolog.Nop())
	got := svc.HarvestChannel(context.Background(), src, testWindow())

	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("expected ascending timestamps, got %v then %v", got[0].ID, got[1].ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("timestamps not non-decreasing at %d", i)
		}
	}
	if len(got[1].URLs) != 1 || got[1].URLs[0] != "https://example.com/x" {
		t.Fatalf("expected code-host links dropped, got %v", got[1].URLs)
	}
	if got[0].ChannelName != "sales" || got[0].IsThread {
		t.Fatalf("unexpected channel metadata: %+v", got[0])
	}
}

func TestHarvestChannelStopsAtCutoffMidPage(t *testing.T) {
	svc := &Service{log: zerolog.Nop(), pageSize: 2}
	src := &stubSource{name: "ops", pages: [][]domain.SourceMessage{
		{
			msg("4", 1*time.Hour, "ana", false, "in window"),
			msg("3", 2*time.Hour, "bob", false, "in window"),
		},
		{
			msg("2", 10*24*time.Hour, "ana", false, "too old"),
			msg("1", 11*24*time.Hour, "bob", false, "older still"),
		},
	}}

	got, err := svc.harvest(context.Background(), src, testWindow(), "ops", "", "")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the old messages dropped, got %d", len(got))
	}
	if src.fetches != 2 {
		t.Fatalf("expected pagination to stop after the cutoff page, fetched %d", src.fetches)
	}
	if src.cursors[1] != "3" {
		t.Fatalf("expected before-cursor of oldest seen id, got %q", src.cursors[1])
	}
}

func TestHarvestChannelPageFetchBound(t *testing.T) {
	// 4 qualifying messages at page size 2 must finish within
	// ceil(4/2)+1 = 3 fetches.
	svc := &Service{log: zerolog.Nop(), pageSize: 2}
	src := &stubSource{name: "dev", pages: [][]domain.SourceMessage{
		{msg("4", 1*time.Hour, "a", false, "m4"), msg("3", 2*time.Hour, "a", false, "m3")},
		{msg("2", 3*time.Hour, "a", false, "m2"), msg("1", 4*time.Hour, "a", false, "m1")},
	}}

	got, err := svc.harvest(context.Background(), src, testWindow(), "dev", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}
	if src.fetches > 3 {
		t.Fatalf("expected at most 3 page fetches, got %d", src.fetches)
	}
}

func TestHarvestChannelSourceFaultDegradesToEmpty(t *testing.T) {
	src := &stubSource{name: "flaky", err: errors.New("read timeout")}
	svc := NewService(zerolog.Nop())
	if got := svc.HarvestChannel(context.Background(), src, testWindow()); got != nil {
		t.Fatalf("expected empty collection on source fault, got %v", got)
	}
}

func TestHarvestThreadPrependsOrigin(t *testing.T) {
	origin := msg("10", 30*24*time.Hour, "founder", false, "kicking this off https://github.com/org/x")
	thread := &stubThread{
		stubSource: stubSource{name: "launch-plan", pages: [][]domain.SourceMessage{{
			msg("12", 1*time.Hour, "ana", false, "later reply"),
			msg("11", 2*time.Hour, "bob", false, "first reply"),
			origin,
		}}},
		parent:    "product",
		origin:    origin,
		hasOrigin: true,
	}

	svc := NewService(zerolog.Nop())
	got := svc.HarvestThread(context.Background(), thread, testWindow())

	if len(got) != 3 {
		t.Fatalf("expected origin plus two replies, got %d", len(got))
	}
	first := got[0]
	if first.ID != "10" {
		t.Fatalf("expected origin at index 0, got %v", first.ID)
	}
	if first.Content != "[Thread Starter] kicking this off https://github.com/org/x" {
		t.Fatalf("expected thread starter marker, got %q", first.Content)
	}
	if first.ChannelName != "product" || first.ThreadName != "launch-plan" || !first.IsThread {
		t.Fatalf("unexpected origin metadata: %+v", first)
	}
	// The origin is harvested via its own fetch even though it predates the
	// window; it must not additionally appear via pagination.
	for _, m := range got[1:] {
		if m.ID == "10" {
			t.Fatal("origin message duplicated in paginated output")
		}
	}
}

func TestHarvestThreadBotOriginNotPrepended(t *testing.T) {
	origin := msg("10", 2*time.Hour, "webhook", true, "automated starter")
	thread := &stubThread{
		stubSource: stubSource{name: "ci-alerts", pages: [][]domain.SourceMessage{{
			msg("11", 1*time.Hour, "ana", false, "human reply"),
		}}},
		parent:    "dev",
		origin:    origin,
		hasOrigin: true,
	}

	svc := NewService(zerolog.Nop())
	got := svc.HarvestThread(context.Background(), thread, testWindow())
	if len(got) != 1 || got[0].ID != "11" {
		t.Fatalf("expected only the human reply, got %+v", got)
	}
}

func TestHarvestThreadHistoryFaultDropsOrigin(t *testing.T) {
	// A faulted history read drops the whole thread; the separately fetched
	// origin must not leak through as a one-message collection.
	thread := &stubThread{
		stubSource: stubSource{name: "broken", err: errors.New("read timeout")},
		parent:     "product",
		origin:     msg("10", 2*time.Hour, "founder", false, "starter"),
		hasOrigin:  true,
	}

	svc := NewService(zerolog.Nop())
	if got := svc.HarvestThread(context.Background(), thread, testWindow()); got != nil {
		t.Fatalf("expected empty collection on history fault, got %+v", got)
	}
}

func TestHarvestThreadOriginFetchFaultTolerated(t *testing.T) {
	thread := &stubThread{
		stubSource: stubSource{name: "orphan", pages: [][]domain.SourceMessage{{
			msg("11", 1*time.Hour, "ana", false, "still here"),
		}}},
		parent:    "general-2",
		originErr: errors.New("message deleted"),
	}

	svc := NewService(zerolog.Nop())
	got := svc.HarvestThread(context.Background(), thread, testWindow())
	if len(got) != 1 || got[0].ID != "11" {
		t.Fatalf("expected harvest to continue without origin, got %+v", got)
	}
}

func TestIsRecent(t *testing.T) {
	w := testWindow()
	if !IsRecent(testNow.Add(-24*time.Hour), w) {
		t.Fatal("expected yesterday to be recent")
	}
	if IsRecent(testNow.Add(-8*24*time.Hour), w) {
		t.Fatal("expected old source to be skipped")
	}
	if IsRecent(time.Time{}, w) {
		t.Fatal("expected zero creation time to be skipped")
	}
}
