package domain

import "time"

// Window is the trailing lookback interval shared by every component of a
// single run. Harvester and classifier must be handed the same Window so
// their recency cutoffs agree.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds the [now-days, now] interval.
func NewWindow(now time.Time, days int) Window {
	return Window{Start: now.Add(-time.Duration(days) * 24 * time.Hour), End: now}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// SourceMessage is a raw platform message as the history source hands it out,
// before harvesting decides whether to keep it.
type SourceMessage struct {
	ID          string
	Content     string
	Author      string
	Bot         bool
	CreatedAt   time.Time
	Attachments []string
	Embeds      int
}

// Message is one harvested message. Field names follow the snapshot format.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	Timestamp   time.Time `json:"timestamp"`
	Attachments []string  `json:"attachments"`
	Embeds      int       `json:"embeds"`
	ChannelName string    `json:"channel_name"`
	IsThread    bool      `json:"is_thread"`
	ThreadName  string    `json:"thread_name,omitempty"`
	URLs        []string  `json:"urls"`
}

// Snapshot is the persisted result of one harvest pass over a guild.
type Snapshot struct {
	GuildName       string            `json:"guild_name"`
	Timestamp       time.Time         `json:"timestamp"`
	Messages        []Message         `json:"messages"`
	ThreadSummaries map[string]string `json:"thread_summaries"`
}

// DealStatus is the CRM deal status.
type DealStatus string

const (
	DealStatusOpen DealStatus = "open"
	DealStatusWon  DealStatus = "won"
	DealStatusLost DealStatus = "lost"
)

// Deal is a CRM deal record. Never mutated after construction.
type Deal struct {
	ID         int64
	Title      string
	Company    string
	Value      float64
	Status     DealStatus
	UpdateTime time.Time
	WonTime    *time.Time
	LostTime   *time.Time
	LostReason string
}

// FlowEntry is one entry of a deal's change history.
type FlowEntry struct {
	Object     string
	ObjectType string
	ToValue    string
	OldValue   string
	NewValue   string
	Timestamp  time.Time
}

// Organization is a CRM organization annotated with its member count
// custom field.
type Organization struct {
	Name        string
	MemberCount string
}

// DealEntry is one deal placed into an outcome category. Only the fields
// relevant to the category are set; OldValue/NewValue are filled for
// value-change upgrades and downgrades.
type DealEntry struct {
	DealID   int64
	Title    string
	Company  string
	Value    float64
	Reason   string
	OldValue float64
	NewValue float64
}

// DealReport partitions recent deals into outcome categories.
type DealReport struct {
	Converted        []DealEntry
	Churned          []DealEntry
	Lost             []DealEntry
	Upgrades         []DealEntry
	Downgrades       []DealEntry
	NewTrials        []DealEntry
	ToConvert        []DealEntry
	NewOrganizations []Organization
}

// Empty reports whether no category holds anything.
func (r DealReport) Empty() bool {
	return len(r.Converted) == 0 && len(r.Churned) == 0 && len(r.Lost) == 0 &&
		len(r.Upgrades) == 0 && len(r.Downgrades) == 0 && len(r.NewTrials) == 0 &&
		len(r.ToConvert) == 0 && len(r.NewOrganizations) == 0
}

// BlockType tags a compiled content block.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockBulleted  BlockType = "bulleted_list_item"
	BlockNumbered  BlockType = "numbered_list_item"
	BlockCode      BlockType = "code"
	BlockParagraph BlockType = "paragraph"
)

// RunType tags an inline run inside a block.
type RunType string

const (
	RunText   RunType = "text"
	RunLink   RunType = "link"
	RunBold   RunType = "bold"
	RunItalic RunType = "italic"
)

// InlineRun is a typed span of block text.
type InlineRun struct {
	Type RunType
	Text string
	URL  string
}

// ContentBlock is one typed block of a compiled document. Level is set for
// headings only (1..3).
type ContentBlock struct {
	Type  BlockType
	Level int
	Runs  []InlineRun
}

// PlainText concatenates the text of all runs.
func (b ContentBlock) PlainText() string {
	var out string
	for _, r := range b.Runs {
		out += r.Text
	}
	return out
}

// DigestRun is one recorded digest generation for a guild.
type DigestRun struct {
	ID           int64
	Guild        string
	Date         time.Time
	Summary      string
	MessageCount int
	CreatedAt    time.Time
	PublishedAt  *time.Time
}
