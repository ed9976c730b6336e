// Package harvest turns a source's reverse-chronological message feed into a
// bounded, deduplicated, chronologically ordered working set.
package harvest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/metrics"
	"discord-digest-bot/internal/textutil"
)

// threadStarterPrefix marks the synthesized origin message of a thread.
const threadStarterPrefix = "[Thread Starter] "

// defaultPageSize is the upstream history page limit.
const defaultPageSize = 100

// codeHostDomain marks URLs that are noise for summarization.
const codeHostDomain = "github.com"

// Service harvests message history.
type Service struct {
	log      zerolog.Logger
	pageSize int
}

// NewService creates a harvester.
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log, pageSize: defaultPageSize}
}

// decision is the explicit outcome of screening one raw message.
type decision int

const (
	decisionKeep decision = iota
	decisionSkipBot
	decisionSkipOrigin
	decisionStop
)

func screen(msg domain.SourceMessage, window domain.Window, originID string) decision {
	if msg.CreatedAt.Before(window.Start) {
		// Pages arrive newest first, so everything after this message is
		// older still: stop the whole pagination.
		return decisionStop
	}
	if msg.Bot {
		return decisionSkipBot
	}
	if originID != "" && msg.ID == originID {
		return decisionSkipOrigin
	}
	return decisionKeep
}

// IsRecent reports whether a source created inside the window qualifies for
// harvesting at all. Sources failing this are skipped before any fetch.
func IsRecent(createdAt time.Time, window domain.Window) bool {
	return !createdAt.IsZero() && createdAt.After(window.Start)
}

// HarvestChannel collects a channel's messages inside the window, sorted by
// ascending timestamp. Any source fault degrades to an empty result.
func (s *Service) HarvestChannel(ctx context.Context, src domain.HistorySource, window domain.Window) []domain.Message {
	msgs, err := s.harvest(ctx, src, window, src.Name(), "", "")
	if err != nil {
		return nil
	}
	return msgs
}

// HarvestThread collects a thread's messages inside the window and prepends
// the thread's origin message, when it exists and is not bot-authored, as
// index 0 regardless of its own timestamp. A history fault drops the whole
// thread, origin included.
func (s *Service) HarvestThread(ctx context.Context, src domain.ThreadSource, window domain.Window) []domain.Message {
	origin, ok, err := src.Origin(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("thread", src.Name()).Msg("harvest: origin message fetch failed")
		ok = false
	}

	originID := ""
	if ok {
		originID = origin.ID
	}

	msgs, err := s.harvest(ctx, src, window, src.ParentName(), src.Name(), originID)
	if err != nil {
		return nil
	}

	if ok && !origin.Bot {
		first := domain.Message{
			ID:          origin.ID,
			Content:     threadStarterPrefix + origin.Content,
			Author:      origin.Author,
			Timestamp:   origin.CreatedAt,
			Attachments: origin.Attachments,
			Embeds:      origin.Embeds,
			ChannelName: src.ParentName(),
			IsThread:    true,
			ThreadName:  src.Name(),
			URLs:        textutil.ExtractURLs(origin.Content),
		}
		msgs = append([]domain.Message{first}, msgs...)
	}

	return msgs
}

func (s *Service) harvest(ctx context.Context, src domain.HistorySource, window domain.Window, channelName, threadName, originID string) ([]domain.Message, error) {
	var msgs []domain.Message

	before := ""
	for {
		page, err := src.HistoryPage(ctx, before, s.pageSize)
		if err != nil {
			s.log.Warn().Err(err).Str("source", src.Name()).Msg("harvest: history read failed, source dropped")
			metrics.HarvestErrors.Inc()
			return nil, err
		}
		metrics.HarvestPagesTotal.Inc()
		if len(page) == 0 {
			break
		}
		before = page[len(page)-1].ID

		stopped := false
		for _, raw := range page {
			d := screen(raw, window, originID)
			if d == decisionStop {
				stopped = true
				break
			}
			if d != decisionKeep {
				continue
			}
			msgs = append(msgs, s.convert(raw, channelName, threadName))
		}

		if stopped || len(page) < s.pageSize {
			break
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})

	metrics.HarvestedMessagesTotal.Add(float64(len(msgs)))
	return msgs, nil
}

func (s *Service) convert(raw domain.SourceMessage, channelName, threadName string) domain.Message {
	urls := make([]string, 0)
	for _, u := range textutil.ExtractURLs(raw.Content) {
		if strings.Contains(strings.ToLower(u), codeHostDomain) {
			continue
		}
		urls = append(urls, u)
	}

	return domain.Message{
		ID:          raw.ID,
		Content:     raw.Content,
		Author:      raw.Author,
		Timestamp:   raw.CreatedAt,
		Attachments: raw.Attachments,
		Embeds:      raw.Embeds,
		ChannelName: channelName,
		IsThread:    threadName != "",
		ThreadName:  threadName,
		URLs:        urls,
	}
}
