// Command worker consumes digest jobs from the queue, runs the pipeline and
// records run history. It also serves /metrics and /healthz.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"discord-digest-bot/internal/adapters/discord"
	"discord-digest-bot/internal/adapters/notion"
	"discord-digest-bot/internal/adapters/pipedrive"
	"discord-digest-bot/internal/adapters/repo"
	"discord-digest-bot/internal/adapters/summarizer"
	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/cache"
	"discord-digest-bot/internal/infra/config"
	"discord-digest-bot/internal/infra/db"
	apphttp "discord-digest-bot/internal/infra/http"
	applog "discord-digest-bot/internal/infra/log"
	"discord-digest-bot/internal/infra/metrics"
	"discord-digest-bot/internal/infra/openai"
	"discord-digest-bot/internal/infra/queue"
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
		logger.Fatal().Msg("worker: DISCORD_TOKEN is required")
	}
	if cfg.OpenAI.APIKey == "" {
		logger.Fatal().Msg("worker: OPENAI_API_KEY is required")
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: discord session")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	digestQueue, err := buildQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: queue init failed")
	}

	var runs domain.RunRepo
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: postgres connect failed")
		}
		defer pool.Close()
		runs = repo.NewPostgres(pool)
	} else {
		logger.Warn().Msg("worker: PG_DSN not set, run history disabled")
	}

	var crm domain.DealSource
	if cfg.Pipedrive.APIKey != "" && cfg.Pipedrive.Domain != "" {
		client := pipedrive.NewClient(cfg.Pipedrive.Domain, cfg.Pipedrive.APIKey, 15*time.Second)
		if redisClient != nil {
			client.SetCache(cache.NewRedis(redisClient))
		}
		crm = client
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
	}

	pipeline := digest.NewPipeline(logger, service, snapshot.NewFileStore(cfg.SnapshotDir), docs, cfg.LookbackDays)

	server := apphttp.NewServer(logger.With().Str("component", "http").Logger())
	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("worker: http server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	w := &jobWorker{
		log:      logger,
		queue:    digestQueue,
		session:  session,
		pipeline: pipeline,
		runs:     runs,
	}

	logger.Info().Msg("worker: consuming digest jobs")
	w.Run(ctx)
	logger.Info().Msg("worker: stopped")
}

func buildQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.DigestQueue, error) {
	if cfg.AMQPURL != "" {
		return queue.NewAMQPDigestQueue(cfg.AMQPURL, cfg.Queues.Digest)
	}
	if redisClient == nil {
		return nil, errors.New("neither AMQP_URL nor REDIS_ADDR configured")
	}
	return queue.NewRedisDigestQueue(redisClient, cfg.Queues.Digest), nil
}

type jobWorker struct {
	log      zerolog.Logger
	queue    domain.DigestQueue
	session  *discordgo.Session
	pipeline *digest.Pipeline
	runs     domain.RunRepo
}

func (w *jobWorker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("worker: queue receive failed")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("guild", job.Guild).
			Str("cause", string(job.Cause)).
			Logger()

		err = w.handleJob(ctx, job, jobLog)
		metrics.IncDigestJob(string(job.Cause), err)
		if err != nil {
			jobLog.Error().Err(err).Msg("worker: job failed, requeueing")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("worker: requeue failed")
			}
			time.Sleep(time.Second)
			continue
		}
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("worker: ack failed")
		}
	}
}

func (w *jobWorker) handleJob(ctx context.Context, job domain.DigestJob, jobLog zerolog.Logger) error {
	if job.Guild == "" {
		jobLog.Error().Msg("worker: job without guild, dropping")
		return nil
	}
	if job.Date.IsZero() {
		job.Date = time.Now().UTC()
	}

	if w.runs != nil {
		published, err := w.runs.WasPublished(job.Guild, job.Date)
		if err != nil {
			return fmt.Errorf("check run history: %w", err)
		}
		if published {
			jobLog.Info().Msg("worker: digest already published for this date, skipping")
			return nil
		}
	}

	guild, err := discord.NewGuild(w.session, job.Guild, jobLog)
	if err != nil {
		return fmt.Errorf("resolve guild: %w", err)
	}

	result := w.pipeline.Execute(ctx, guild)
	jobLog.Info().
		Int("messages", result.MessageCount).
		Bool("published", result.Published).
		Msg("worker: digest built")

	if w.runs == nil {
		return nil
	}
	run, err := w.runs.SaveRun(domain.DigestRun{
		Guild:        job.Guild,
		Date:         job.Date,
		Summary:      result.Summary,
		MessageCount: result.MessageCount,
	})
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if result.Published {
		if err := w.runs.MarkPublished(run.ID); err != nil {
			return fmt.Errorf("mark run published: %w", err)
		}
	}
	return nil
}
