// Package discord adapts a discordgo session to the history source
// interfaces the harvester consumes.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/metrics"
)

const (
	archivedThreadsLimit      = 20
	archivedForumThreadsLimit = 100
)

// Guild implements domain.GuildSource over the Discord REST API.
type Guild struct {
	session *discordgo.Session
	id      string
	name    string
	log     zerolog.Logger
}

var _ domain.GuildSource = (*Guild)(nil)

// NewGuild resolves the guild and wraps it.
func NewGuild(session *discordgo.Session, guildID string, log zerolog.Logger) (*Guild, error) {
	start := time.Now()
	guild, err := session.Guild(guildID)
	metrics.ObserveNetworkRequest("discord", "guild", guildID, start, err)
	if err != nil {
		return nil, fmt.Errorf("discord: resolve guild %s: %w", guildID, err)
	}
	return &Guild{session: session, id: guild.ID, name: guild.Name, log: log}, nil
}

func (g *Guild) Name() string { return g.name }

// Channels lists the guild's text, voice and forum channels. Active threads
// are fetched once per guild and attached to their parents.
func (g *Guild) Channels(ctx context.Context) ([]domain.ChannelSource, error) {
	start := time.Now()
	raw, err := g.session.GuildChannels(g.id, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "guild_channels", g.id, start, err)
	if err != nil {
		return nil, fmt.Errorf("discord: list channels: %w", err)
	}

	activeByParent := make(map[string][]*discordgo.Channel)
	start = time.Now()
	active, err := g.session.GuildThreadsActive(g.id, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "guild_threads_active", g.id, start, err)
	if err != nil {
		g.log.Warn().Err(err).Str("guild", g.name).Msg("discord: active thread listing failed")
	} else {
		for _, thread := range active.Threads {
			activeByParent[thread.ParentID] = append(activeByParent[thread.ParentID], thread)
		}
	}

	var out []domain.ChannelSource
	for _, ch := range raw {
		switch ch.Type {
		case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildForum:
			out = append(out, &Channel{
				session: g.session,
				channel: ch,
				active:  activeByParent[ch.ID],
				log:     g.log,
			})
		}
	}
	return out, nil
}

// Channel implements domain.ChannelSource.
type Channel struct {
	session *discordgo.Session
	channel *discordgo.Channel
	active  []*discordgo.Channel
	log     zerolog.Logger
}

var _ domain.ChannelSource = (*Channel)(nil)

func (c *Channel) ID() string   { return c.channel.ID }
func (c *Channel) Name() string { return c.channel.Name }

func (c *Channel) CreatedAt() time.Time { return snowflakeTime(c.channel.ID) }

// HistoryPage fetches up to limit messages older than beforeID, newest first.
func (c *Channel) HistoryPage(ctx context.Context, beforeID string, limit int) ([]domain.SourceMessage, error) {
	return historyPage(ctx, c.session, c.channel.ID, beforeID, limit)
}

// Threads merges the guild's active threads under this channel with its
// recently archived ones. An archived listing failure degrades to the active
// set: voice channels reject the call.
func (c *Channel) Threads(ctx context.Context) ([]domain.ThreadSource, error) {
	seen := make(map[string]bool)
	var out []domain.ThreadSource
	for _, thread := range c.active {
		seen[thread.ID] = true
		out = append(out, &Thread{session: c.session, thread: thread, parentName: c.channel.Name})
	}

	limit := archivedThreadsLimit
	if c.channel.Type == discordgo.ChannelTypeGuildForum {
		limit = archivedForumThreadsLimit
	}
	start := time.Now()
	archived, err := c.session.ThreadsArchived(c.channel.ID, nil, limit, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "threads_archived", c.channel.ID, start, err)
	if err != nil {
		c.log.Debug().Err(err).Str("channel", c.channel.Name).Msg("discord: archived thread listing failed")
		return out, nil
	}
	for _, thread := range archived.Threads {
		if seen[thread.ID] {
			continue
		}
		out = append(out, &Thread{session: c.session, thread: thread, parentName: c.channel.Name})
	}
	return out, nil
}

// Thread implements domain.ThreadSource.
type Thread struct {
	session    *discordgo.Session
	thread     *discordgo.Channel
	parentName string
}

var _ domain.ThreadSource = (*Thread)(nil)

func (t *Thread) ID() string         { return t.thread.ID }
func (t *Thread) Name() string       { return t.thread.Name }
func (t *Thread) ParentName() string { return t.parentName }

func (t *Thread) CreatedAt() time.Time { return snowflakeTime(t.thread.ID) }

// HistoryPage fetches the thread's messages like a channel's.
func (t *Thread) HistoryPage(ctx context.Context, beforeID string, limit int) ([]domain.SourceMessage, error) {
	return historyPage(ctx, t.session, t.thread.ID, beforeID, limit)
}

// Origin fetches the parent channel message that started the thread. The
// message shares the thread's ID. A deleted starter is not an error.
func (t *Thread) Origin(ctx context.Context) (domain.SourceMessage, bool, error) {
	start := time.Now()
	msg, err := t.session.ChannelMessage(t.thread.ParentID, t.thread.ID, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "channel_message", t.thread.ParentID, start, err)
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return domain.SourceMessage{}, false, nil
		}
		return domain.SourceMessage{}, false, fmt.Errorf("discord: fetch thread starter: %w", err)
	}
	return convertMessage(msg), true, nil
}

func historyPage(ctx context.Context, session *discordgo.Session, channelID, beforeID string, limit int) ([]domain.SourceMessage, error) {
	start := time.Now()
	msgs, err := session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "channel_messages", channelID, start, err)
	if err != nil {
		return nil, fmt.Errorf("discord: fetch messages: %w", err)
	}
	out := make([]domain.SourceMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, convertMessage(msg))
	}
	return out, nil
}

func convertMessage(msg *discordgo.Message) domain.SourceMessage {
	out := domain.SourceMessage{
		ID:        msg.ID,
		Content:   msg.Content,
		CreatedAt: msg.Timestamp,
		Embeds:    len(msg.Embeds),
	}
	if msg.Author != nil {
		out.Author = msg.Author.Username
		out.Bot = msg.Author.Bot
	}
	for _, attachment := range msg.Attachments {
		out.Attachments = append(out.Attachments, attachment.URL)
	}
	return out
}

func snowflakeTime(id string) time.Time {
	t, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return time.Time{}
	}
	return t
}
