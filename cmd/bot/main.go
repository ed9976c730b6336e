// Command bot runs one digest pass over a guild: harvest, snapshot,
// summarize, publish, then exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"discord-digest-bot/internal/adapters/discord"
	"discord-digest-bot/internal/adapters/notion"
	"discord-digest-bot/internal/adapters/pipedrive"
	"discord-digest-bot/internal/adapters/summarizer"
	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/cache"
	"discord-digest-bot/internal/infra/config"
	applog "discord-digest-bot/internal/infra/log"
	"discord-digest-bot/internal/infra/metrics"
	"discord-digest-bot/internal/infra/openai"
	"discord-digest-bot/internal/infra/snapshot"
	"discord-digest-bot/internal/usecase/deals"
	"discord-digest-bot/internal/usecase/digest"
	"discord-digest-bot/internal/usecase/harvest"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Discord.Token == "" {
		logger.Fatal().Msg("bot: DISCORD_TOKEN is required")
	}
	if cfg.OpenAI.APIKey == "" {
		logger.Fatal().Msg("bot: OPENAI_API_KEY is required")
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: discord session")
	}

	guildID := cfg.Discord.GuildID
	if guildID == "" {
		guilds, err := session.UserGuilds(1, "", "", false)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot: list guilds")
		}
		if len(guilds) == 0 {
			logger.Fatal().Msg("bot: the bot is not a member of any guild")
		}
		guildID = guilds[0].ID
	}

	guild, err := discord.NewGuild(session, guildID, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: resolve guild")
	}

	var crm domain.DealSource
	if cfg.Pipedrive.APIKey != "" && cfg.Pipedrive.Domain != "" {
		client := pipedrive.NewClient(cfg.Pipedrive.Domain, cfg.Pipedrive.APIKey, 15*time.Second)
		if cfg.RedisAddr != "" {
			client.SetCache(cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})))
		}
		crm = client
	} else {
		logger.Warn().Msg("bot: Pipedrive credentials not set, skipping deal retrieval")
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

	var docs domain.DocumentStore
	if cfg.Notion.Token != "" && cfg.Notion.DatabaseID != "" {
		docs = notion.NewClient(cfg.Notion.Token, cfg.Notion.DatabaseID, 15*time.Second)
	} else {
		logger.Warn().Msg("bot: Notion credentials not set, summary stays local")
	}

	pipeline := digest.NewPipeline(logger, service, snapshot.NewFileStore(cfg.SnapshotDir), docs, cfg.LookbackDays)

	logger.Info().Str("guild", guild.Name()).Int("lookback_days", cfg.LookbackDays).Msg("bot: digest run started")
	result := pipeline.Execute(ctx, guild)

	summaryPath := fmt.Sprintf("%s_summary_%s.md",
		strings.ReplaceAll(guild.Name(), " ", "_"),
		time.Now().Format("20060102"))
	if err := os.WriteFile(summaryPath, []byte(result.Summary), 0o644); err != nil {
		logger.Error().Err(err).Msg("bot: write summary file")
	} else {
		logger.Info().Str("path", summaryPath).Msg("bot: summary saved")
	}

	fmt.Println(result.Summary)
	logger.Info().
		Int("messages", result.MessageCount).
		Bool("published", result.Published).
		Str("snapshot", result.SnapshotPath).
		Msg("bot: digest run finished")
}
