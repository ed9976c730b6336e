package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig describes the configuration of every binary.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Discord struct {
		Token          string `envconfig:"DISCORD_TOKEN"`
		GuildID        string `envconfig:"DISCORD_GUILD_ID"`
		IgnoreChannels string `envconfig:"CHANNELS_TO_IGNORE" default:"general,support,wfh,random,shoutouts,engineering"`
	} `envconfig:""`

	OpenAI struct {
		APIKey      string `envconfig:"OPENAI_API_KEY"`
		BaseURL     string `envconfig:"OPENAI_BASE_URL"`
		GuildModel  string `envconfig:"OPENAI_GUILD_MODEL" default:"gpt-4o"`
		ThreadModel string `envconfig:"OPENAI_THREAD_MODEL" default:"gpt-4o-mini"`
	} `envconfig:""`

	Pipedrive struct {
		APIKey string `envconfig:"PIPEDRIVE_API_KEY"`
		Domain string `envconfig:"PIPEDRIVE_DOMAIN"`
	} `envconfig:""`

	Notion struct {
		Token      string `envconfig:"NOTION_TOKEN"`
		DatabaseID string `envconfig:"NOTION_DATABASE_ID"`
	} `envconfig:""`

	LookbackDays int    `envconfig:"DAYS_TO_LOOK_BACK" default:"7"`
	SnapshotDir  string `envconfig:"SNAPSHOT_DIR" default:"."`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	AMQPURL   string `envconfig:"AMQP_URL"`

	Queues struct {
		Digest string `envconfig:"DIGEST_QUEUE_KEY" default:"digest_jobs"`
	} `envconfig:""`

	Schedule struct {
		// Cron-less scheduling: one run per day at this hour, guild local time.
		Hour int `envconfig:"DIGEST_HOUR" default:"9"`
	} `envconfig:""`
}

// Load reads .env when present, then the process environment.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	return cfg
}

// IgnoredChannels splits the configured ignore list.
func (c AppConfig) IgnoredChannels() []string {
	parts := strings.Split(c.Discord.IgnoreChannels, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
