// Package digest aggregates harvested activity and CRM state into the
// payload for the summarization oracle and renders the resulting report.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/metrics"
	"discord-digest-bot/internal/usecase/deals"
	"discord-digest-bot/internal/usecase/harvest"
)

const (
	threadMaxTokens = 500
	guildMaxTokens  = 2500
	// Deterministic generation: the digest for a snapshot should not vary
	// between retries.
	oracleTemperature = 0
)

// Service drives one guild digest: sequential harvesting, thread
// summarization, classification and final summary generation.
type Service struct {
	log          zerolog.Logger
	harvester    *harvest.Service
	classifier   *deals.Classifier
	threadOracle domain.Completer
	guildOracle  domain.Completer
	ignore       map[string]struct{}
	lookbackDays int
}

// NewService wires the digest pipeline.
func NewService(log zerolog.Logger, harvester *harvest.Service, classifier *deals.Classifier, threadOracle, guildOracle domain.Completer, ignoreChannels []string, lookbackDays int) *Service {
	ignore := make(map[string]struct{}, len(ignoreChannels))
	for _, name := range ignoreChannels {
		ignore[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &Service{
		log:          log,
		harvester:    harvester,
		classifier:   classifier,
		threadOracle: threadOracle,
		guildOracle:  guildOracle,
		ignore:       ignore,
		lookbackDays: lookbackDays,
	}
}

// CollectGuild drains every channel and qualifying thread of the guild,
// fully and sequentially, returning the harvested messages and the
// per-thread summaries keyed "<channel> > <thread>".
func (s *Service) CollectGuild(ctx context.Context, guild domain.GuildSource, window domain.Window) ([]domain.Message, map[string]string) {
	var all []domain.Message
	threadSummaries := make(map[string]string)

	channels, err := guild.Channels(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("guild", guild.Name()).Msg("digest: channel listing failed")
		return all, threadSummaries
	}

	for _, channel := range channels {
		if s.isIgnored(channel.Name()) {
			s.log.Debug().Str("channel", channel.Name()).Msg("digest: channel ignored")
			continue
		}

		msgs := s.harvester.HarvestChannel(ctx, channel, window)
		if len(msgs) > 0 {
			s.log.Info().Str("channel", channel.Name()).Int("messages", len(msgs)).Msg("digest: channel harvested")
			all = append(all, msgs...)
		}

		threads, err := channel.Threads(ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("channel", channel.Name()).Msg("digest: thread listing failed")
			continue
		}
		for _, thread := range threads {
			// Cheap pre-fetch skip: the whole thread predates the window.
			if !harvest.IsRecent(thread.CreatedAt(), window) {
				continue
			}
			threadMsgs := s.harvester.HarvestThread(ctx, thread, window)
			if len(threadMsgs) == 0 {
				continue
			}
			key := fmt.Sprintf("%s > %s", thread.ParentName(), thread.Name())
			threadSummaries[key] = s.SummarizeThread(ctx, thread.Name(), threadMsgs)
		}
	}

	return all, threadSummaries
}

// SummarizeThread asks the thread oracle for a short summary. Oracle faults
// degrade to a visible error string.
func (s *Service) SummarizeThread(ctx context.Context, threadName string, messages []domain.Message) string {
	if len(messages) == 0 {
		return noThreadActivity
	}
	out, err := s.threadOracle.Complete(ctx, threadSystemPrompt(threadName, s.lookbackDays), threadPayload(messages), threadMaxTokens, oracleTemperature)
	if err != nil {
		s.log.Error().Err(err).Str("thread", threadName).Msg("digest: thread summary failed")
		return fmt.Sprintf("Error generating summary: %v", err)
	}
	return out
}

// BuildSummary combines messages, thread summaries and the CRM report into
// the guild summary. An empty message set yields the fixed no-activity text
// without any oracle call.
func (s *Service) BuildSummary(ctx context.Context, guildName string, messages []domain.Message, threadSummaries map[string]string, window domain.Window) string {
	if len(messages) == 0 {
		return noActivitySummary
	}

	start := time.Now()
	defer func() {
		metrics.SummaryBuildSeconds.Observe(time.Since(start).Seconds())
	}()

	report := s.classifier.Classify(ctx, window)
	mrr := s.classifier.TotalWonValue(ctx)

	payload := guildPayload(
		FormatActivityOverview(ChannelCounts(messages)),
		FormatThreadSummaries(threadSummaries),
		FormatDealsSection(report),
		FormatChannelSamples(SampleByChannel(messages)),
	)

	out, err := s.guildOracle.Complete(ctx, guildSystemPrompt(guildName, mrr), payload, guildMaxTokens, oracleTemperature)
	if err != nil {
		s.log.Error().Err(err).Str("guild", guildName).Msg("digest: guild summary failed")
		return fmt.Sprintf("# Error Generating Summary\n\nThere was an error generating the summary: %v", err)
	}
	return out
}

func (s *Service) isIgnored(channel string) bool {
	_, ok := s.ignore[strings.ToLower(channel)]
	return ok
}
