package domain

import (
	"context"
	"time"
)

// HistorySource is anything with a paged, newest-first message feed:
// a text channel, a voice channel's chat, a thread or a forum post.
type HistorySource interface {
	ID() string
	Name() string
	CreatedAt() time.Time
	// HistoryPage returns up to limit messages older than beforeID,
	// newest first. Empty beforeID means "from the latest message".
	HistoryPage(ctx context.Context, beforeID string, limit int) ([]SourceMessage, error)
}

// ThreadSource is a history source that was started by an origin message.
type ThreadSource interface {
	HistorySource
	ParentName() string
	// Origin fetches the message that started the thread. ok is false when
	// the origin no longer exists.
	Origin(ctx context.Context) (msg SourceMessage, ok bool, err error)
}

// ChannelSource is a top-level history source that may carry threads.
type ChannelSource interface {
	HistorySource
	// Threads enumerates active plus recently archived threads.
	Threads(ctx context.Context) ([]ThreadSource, error)
}

// GuildSource enumerates the channels of one guild.
type GuildSource interface {
	Name() string
	Channels(ctx context.Context) ([]ChannelSource, error)
}

// DealSource exposes the CRM reads the classifier needs.
type DealSource interface {
	ListDeals(ctx context.Context) ([]Deal, error)
	ListWonDeals(ctx context.Context) ([]Deal, error)
	DealFlow(ctx context.Context, dealID int64) ([]FlowEntry, error)
	ListNewOrganizations(ctx context.Context, window Window) ([]Organization, error)
}

// Completer is the summarization oracle: a system instruction, a user
// payload, a token budget and a determinism knob in, generated text out.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// DocumentStore appends a compiled block list under the current target page.
type DocumentStore interface {
	AppendBlocks(ctx context.Context, blocks []ContentBlock) error
}

// SnapshotStore persists harvest snapshots.
type SnapshotStore interface {
	Save(snapshot Snapshot) (path string, err error)
	Load(path string) (Snapshot, error)
}

// RunRepo records digest runs and their publication state.
type RunRepo interface {
	WasPublished(guild string, date time.Time) (bool, error)
	SaveRun(run DigestRun) (DigestRun, error)
	MarkPublished(id int64) error
}

// Cache is a simple TTL store.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
