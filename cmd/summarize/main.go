// Command summarize regenerates a guild summary from a saved snapshot,
// without touching the Discord gateway. The result is written next to the
// snapshot and published to Notion when credentials are configured.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"discord-digest-bot/internal/adapters/notion"
	"discord-digest-bot/internal/adapters/pipedrive"
	"discord-digest-bot/internal/adapters/summarizer"
	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/config"
	applog "discord-digest-bot/internal/infra/log"
	"discord-digest-bot/internal/infra/metrics"
	"discord-digest-bot/internal/infra/openai"
	"discord-digest-bot/internal/infra/snapshot"
	"discord-digest-bot/internal/usecase/deals"
	"discord-digest-bot/internal/usecase/digest"
	"discord-digest-bot/internal/usecase/harvest"
	"discord-digest-bot/internal/usecase/markdown"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: summarize <snapshot.json>")
		os.Exit(2)
	}

	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	if cfg.OpenAI.APIKey == "" {
		logger.Fatal().Msg("summarize: OPENAI_API_KEY is required")
	}

	snap, err := snapshot.NewFileStore(cfg.SnapshotDir).Load(os.Args[1])
	if err != nil {
		logger.Fatal().Err(err).Msg("summarize: load snapshot")
	}

	var crm domain.DealSource
	if cfg.Pipedrive.APIKey != "" && cfg.Pipedrive.Domain != "" {
		crm = pipedrive.NewClient(cfg.Pipedrive.Domain, cfg.Pipedrive.APIKey, 15*time.Second)
	}

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, 120*time.Second)
	service := digest.NewService(
		logger,
		harvest.NewService(logger),
		deals.NewClassifier(crm, logger),
		summarizer.NewOpenAI(openaiClient, cfg.OpenAI.ThreadModel, 120*time.Second),
		summarizer.NewOpenAI(openaiClient, cfg.OpenAI.GuildModel, 180*time.Second),
		cfg.IgnoredChannels(),
		cfg.LookbackDays,
	)

	// Anchor the window at the harvest time so regeneration classifies the
	// same deals the original run saw.
	window := domain.NewWindow(snap.Timestamp, cfg.LookbackDays)
	summary := service.BuildSummary(context.Background(), snap.GuildName, snap.Messages, snap.ThreadSummaries, window)

	summaryPath := fmt.Sprintf("%s_summary_%s.md",
		strings.ReplaceAll(snap.GuildName, " ", "_"),
		time.Now().Format("20060102"))
	if err := os.WriteFile(summaryPath, []byte(summary), 0o644); err != nil {
		logger.Error().Err(err).Msg("summarize: write summary file")
	} else {
		logger.Info().Str("path", summaryPath).Msg("summarize: summary saved")
	}

	if cfg.Notion.Token != "" && cfg.Notion.DatabaseID != "" {
		docs := notion.NewClient(cfg.Notion.Token, cfg.Notion.DatabaseID, 15*time.Second)
		blocks := markdown.Compile(summary)
		if err := docs.AppendBlocks(context.Background(), blocks); err != nil {
			metrics.PublishErrors.Inc()
			logger.Error().Err(err).Msg("summarize: publish failed")
		} else {
			logger.Info().Int("blocks", len(blocks)).Msg("summarize: summary published")
		}
	} else {
		logger.Warn().Msg("summarize: Notion credentials not set, summary stays local")
	}

	fmt.Println(summary)
}
