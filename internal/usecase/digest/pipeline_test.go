package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/usecase/deals"
	"discord-digest-bot/internal/usecase/harvest"
)

type memorySnapshots struct {
	saved []domain.Snapshot
	err   error
}

func (s *memorySnapshots) Save(snapshot domain.Snapshot) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, snapshot)
	return "/tmp/snap.json", nil
}

func (s *memorySnapshots) Load(string) (domain.Snapshot, error) {
	return domain.Snapshot{}, errors.New("not implemented")
}

type recordingDocs struct {
	blocks []domain.ContentBlock
	err    error
}

func (d *recordingDocs) AppendBlocks(_ context.Context, blocks []domain.ContentBlock) error {
	if d.err != nil {
		return d.err
	}
	d.blocks = append(d.blocks, blocks...)
	return nil
}

func pipelineGuild() *fakeGuild {
	channel := &fakeChannel{
		id: "c1", name: "general",
		messages: []domain.SourceMessage{srcMsg("1", "ana", "shipped the importer", time.Hour)},
	}
	return &fakeGuild{name: "Acme HQ", channels: []domain.ChannelSource{channel}}
}

func TestPipelinePublishesCompiledSummary(t *testing.T) {
	store := &memorySnapshots{}
	docs := &recordingDocs{}
	svc := newTestService(&fakeOracle{}, &fakeOracle{reply: "## Update\n- shipped the importer"}, nil)

	pipeline := NewPipeline(zerolog.Nop(), svc, store, docs, 7)
	pipeline.now = func() time.Time { return testNow }

	result := pipeline.Execute(context.Background(), pipelineGuild())
	if result.MessageCount != 1 || !result.Published || result.SnapshotPath == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.saved) != 1 || store.saved[0].GuildName != "Acme HQ" {
		t.Fatalf("unexpected snapshot: %+v", store.saved)
	}
	if len(docs.blocks) != 2 {
		t.Fatalf("expected heading plus bullet, got %+v", docs.blocks)
	}
	if docs.blocks[0].Type != domain.BlockHeading || docs.blocks[1].Type != domain.BlockBulleted {
		t.Fatalf("unexpected block types: %+v", docs.blocks)
	}
}

type windowRecordingCRM struct {
	windows []domain.Window
}

func (c *windowRecordingCRM) ListDeals(context.Context) ([]domain.Deal, error)    { return nil, nil }
func (c *windowRecordingCRM) ListWonDeals(context.Context) ([]domain.Deal, error) { return nil, nil }
func (c *windowRecordingCRM) DealFlow(context.Context, int64) ([]domain.FlowEntry, error) {
	return nil, nil
}
func (c *windowRecordingCRM) ListNewOrganizations(_ context.Context, w domain.Window) ([]domain.Organization, error) {
	c.windows = append(c.windows, w)
	return nil, nil
}

func TestPipelineHarvestAndCRMShareOneWindow(t *testing.T) {
	crm := &windowRecordingCRM{}
	svc := NewService(
		zerolog.Nop(),
		harvest.NewService(zerolog.Nop()),
		deals.NewClassifier(crm, zerolog.Nop()),
		&fakeOracle{}, &fakeOracle{reply: "summary"},
		nil, 7,
	)

	channel := &fakeChannel{id: "c1", name: "general", messages: []domain.SourceMessage{
		srcMsg("2", "ana", "just inside", 7*24*time.Hour-time.Minute),
		srcMsg("1", "bob", "just outside", 7*24*time.Hour+time.Minute),
	}}
	guild := &fakeGuild{name: "Acme HQ", channels: []domain.ChannelSource{channel}}

	store := &memorySnapshots{}
	pipeline := NewPipeline(zerolog.Nop(), svc, store, nil, 7)
	pipeline.now = func() time.Time { return testNow }

	pipeline.Execute(context.Background(), guild)

	want := domain.NewWindow(testNow, 7)
	if len(crm.windows) != 1 || crm.windows[0] != want {
		t.Fatalf("classifier window mismatch: got %+v want %+v", crm.windows, want)
	}
	// The harvest cutoff must come from the same window: the message a
	// minute inside the start survives, the one a minute outside does not.
	if len(store.saved) != 1 || len(store.saved[0].Messages) != 1 || store.saved[0].Messages[0].ID != "2" {
		t.Fatalf("harvest window mismatch: %+v", store.saved)
	}
}

func TestPipelineSurvivesStoreFailures(t *testing.T) {
	store := &memorySnapshots{err: errors.New("disk full")}
	docs := &recordingDocs{err: errors.New("api down")}
	svc := newTestService(&fakeOracle{}, &fakeOracle{reply: "summary"}, nil)

	pipeline := NewPipeline(zerolog.Nop(), svc, store, docs, 7)
	pipeline.now = func() time.Time { return testNow }

	result := pipeline.Execute(context.Background(), pipelineGuild())
	if result.Summary != "summary" {
		t.Fatalf("summary must survive store failures, got %+v", result)
	}
	if result.Published || result.SnapshotPath != "" {
		t.Fatalf("failures must be reported: %+v", result)
	}
}

func TestPipelineWithoutOptionalStores(t *testing.T) {
	svc := newTestService(&fakeOracle{}, &fakeOracle{reply: "summary"}, nil)
	pipeline := NewPipeline(zerolog.Nop(), svc, nil, nil, 7)
	pipeline.now = func() time.Time { return testNow }

	result := pipeline.Execute(context.Background(), pipelineGuild())
	if result.Summary != "summary" || result.Published {
		t.Fatalf("unexpected result: %+v", result)
	}
}
