// Command scheduler enqueues one digest job per guild per day at the
// configured hour. Redis SETNX keeps concurrent schedulers from
// double-enqueueing.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/cache"
	"discord-digest-bot/internal/infra/config"
	applog "discord-digest-bot/internal/infra/log"
	"discord-digest-bot/internal/infra/metrics"
	"discord-digest-bot/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Discord.GuildID == "" {
		logger.Fatal().Msg("scheduler: DISCORD_GUILD_ID is required")
	}
	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("scheduler: REDIS_ADDR is required")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	once := cache.NewRedis(redisClient)

	digestQueue, err := buildQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: queue init failed")
	}

	location := time.UTC
	if loc, err := time.LoadLocation(cfg.TZ); err == nil {
		location = loc
	} else {
		logger.Warn().Err(err).Str("tz", cfg.TZ).Msg("scheduler: unknown timezone, using UTC")
	}

	logger.Info().Int("hour", cfg.Schedule.Hour).Str("tz", location.String()).Msg("scheduler: started")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: stopped")
			return
		case <-ticker.C:
			now := time.Now().In(location)
			if now.Hour() != cfg.Schedule.Hour {
				continue
			}
			enqueueOnce(ctx, logger, once, digestQueue, cfg.Discord.GuildID, now)
		}
	}
}

func buildQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.DigestQueue, error) {
	if cfg.AMQPURL != "" {
		return queue.NewAMQPDigestQueue(cfg.AMQPURL, cfg.Queues.Digest)
	}
	return queue.NewRedisDigestQueue(redisClient, cfg.Queues.Digest), nil
}

func enqueueOnce(ctx context.Context, logger zerolog.Logger, once domain.Cache, digestQueue domain.DigestQueue, guildID string, now time.Time) {
	date := now.Format("2006-01-02")
	key := "digest:scheduled:" + guildID + ":" + date

	err := once.Once(key, 24*time.Hour, func() error {
		job := domain.DigestJob{
			ID:          uuid.NewString(),
			Guild:       guildID,
			Date:        now.UTC().Truncate(24 * time.Hour),
			RequestedAt: now.UTC(),
			Cause:       domain.DigestCauseScheduled,
		}
		if err := digestQueue.Enqueue(ctx, job); err != nil {
			return err
		}
		logger.Info().Str("job_id", job.ID).Str("date", date).Msg("scheduler: digest job enqueued")
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Str("date", date).Msg("scheduler: enqueue failed")
	}
}
