package digest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/metrics"
	"discord-digest-bot/internal/usecase/markdown"
)

// Pipeline runs one full digest: collect, snapshot, summarize, publish.
// Snapshot store and document store are optional; a nil store skips that
// stage.
type Pipeline struct {
	log      zerolog.Logger
	service  *Service
	store    domain.SnapshotStore
	docs     domain.DocumentStore
	lookback int
	now      func() time.Time
}

// Result reports what one pipeline run produced.
type Result struct {
	Summary      string
	MessageCount int
	SnapshotPath string
	Published    bool
}

// NewPipeline wires a pipeline.
func NewPipeline(log zerolog.Logger, service *Service, store domain.SnapshotStore, docs domain.DocumentStore, lookbackDays int) *Pipeline {
	return &Pipeline{
		log:      log,
		service:  service,
		store:    store,
		docs:     docs,
		lookback: lookbackDays,
		now:      time.Now,
	}
}

// Execute drains the guild and produces its summary. Snapshot and publish
// failures degrade: the summary always comes back.
func (p *Pipeline) Execute(ctx context.Context, guild domain.GuildSource) Result {
	now := p.now().UTC()
	// One window for the whole run: harvest and CRM cutoffs must agree.
	window := domain.NewWindow(now, p.lookback)

	messages, threadSummaries := p.service.CollectGuild(ctx, guild, window)

	var result Result
	result.MessageCount = len(messages)

	if p.store != nil {
		path, err := p.store.Save(domain.Snapshot{
			GuildName:       guild.Name(),
			Timestamp:       now,
			Messages:        messages,
			ThreadSummaries: threadSummaries,
		})
		if err != nil {
			p.log.Warn().Err(err).Str("guild", guild.Name()).Msg("digest: snapshot save failed")
		} else {
			result.SnapshotPath = path
			p.log.Info().Str("path", path).Msg("digest: snapshot saved")
		}
	}

	result.Summary = p.service.BuildSummary(ctx, guild.Name(), messages, threadSummaries, window)

	if p.docs != nil {
		blocks := markdown.Compile(result.Summary)
		if err := p.docs.AppendBlocks(ctx, blocks); err != nil {
			metrics.PublishErrors.Inc()
			p.log.Error().Err(err).Str("guild", guild.Name()).Msg("digest: publish failed")
		} else {
			result.Published = true
			p.log.Info().Str("guild", guild.Name()).Int("blocks", len(blocks)).Msg("digest: summary published")
		}
	}

	return result
}
