package digest

import (
	"fmt"
	"sort"
	"strings"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/textutil"
)

const samplesPerChannel = 30
const promptMessagesPerChannel = 20

// Per-channel truncation budgets for the oracle payload. Customer feedback
// keeps both ends of long messages, product channels get a larger budget.
const (
	truncateDefault  = 200
	truncateProduct  = 500
	truncateFeedback = 303
)

// ChannelCounts counts messages per channel, keyed "#chan" or
// "#chan (thread: name)".
func ChannelCounts(messages []domain.Message) map[string]int {
	counts := make(map[string]int)
	for _, msg := range messages {
		counts[channelKey(msg)]++
	}
	return counts
}

func channelKey(msg domain.Message) string {
	if msg.IsThread {
		return fmt.Sprintf("#%s (thread: %s)", msg.ChannelName, msg.ThreadName)
	}
	return "#" + msg.ChannelName
}

// ChannelSample is a bounded per-channel message sample in first-seen order.
type ChannelSample struct {
	Channel  string
	Messages []domain.Message
}

// SampleByChannel groups messages by channel, keeping at most
// samplesPerChannel per channel to stay inside the oracle context budget.
func SampleByChannel(messages []domain.Message) []ChannelSample {
	index := make(map[string]int)
	var samples []ChannelSample
	for _, msg := range messages {
		i, ok := index[msg.ChannelName]
		if !ok {
			i = len(samples)
			index[msg.ChannelName] = i
			samples = append(samples, ChannelSample{Channel: msg.ChannelName})
		}
		if len(samples[i].Messages) < samplesPerChannel {
			samples[i].Messages = append(samples[i].Messages, msg)
		}
	}
	return samples
}

// FormatActivityOverview renders per-channel message counts, busiest first.
func FormatActivityOverview(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	var b strings.Builder
	b.WriteString("## Channel Activity\n\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "- **%s**: %d messages\n", key, counts[key])
	}
	return b.String()
}

// FormatThreadSummaries renders the thread summary section.
func FormatThreadSummaries(summaries map[string]string) string {
	if len(summaries) == 0 {
		return ""
	}
	keys := make([]string, 0, len(summaries))
	for key := range summaries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("## Thread Summaries\n\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "### %s\n%s\n\n", key, summaries[key])
	}
	return b.String()
}

// FormatDealsSection renders the CRM report as the markdown the oracle is
// asked to fold into the Sales & Marketing section.
func FormatDealsSection(report domain.DealReport) string {
	if report.Empty() {
		return "## Recent Pipedrive Deals (Last 7 Days)\n\nNo deals updated in the last 7 days or Pipedrive API credentials not configured.\n"
	}

	sections := []struct {
		title string
		items []string
	}{
		{"Converted", convertedLines(report.Converted)},
		{"Churned", churnedLines(report.Churned)},
		{"Lost Deals", lostLines(report.Lost)},
		{"Upgrades", changeLines(report.Upgrades, "Upgrade")},
		{"Downgrades", changeLines(report.Downgrades, "Downgrade")},
		{"New Trials", companyLines(report.NewTrials)},
		{"To Convert", companyLines(report.ToConvert)},
		{"New Free Trials", organizationLines(report.NewOrganizations)},
	}

	var b strings.Builder
	b.WriteString("## Recent Pipedrive Deals (Last 7 Days)\n\n")
	for _, section := range sections {
		fmt.Fprintf(&b, "### %s\n", section.title)
		if len(section.items) == 0 {
			b.WriteString("- None\n")
		}
		for _, item := range section.items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func convertedLines(entries []domain.DealEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s +%g€/mo", e.Company, e.Value))
	}
	return lines
}

func churnedLines(entries []domain.DealEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s -%g€/mo (%s)", e.Company, e.Value, reasonOrDefault(e.Reason)))
	}
	return lines
}

func lostLines(entries []domain.DealEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s (%s)", e.Company, reasonOrDefault(e.Reason)))
	}
	return lines
}

// changeLines renders value-delta entries with the old and new amounts and
// title-pass entries with just the company and value.
func changeLines(entries []domain.DealEntry, label string) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.OldValue != 0 || e.NewValue != 0 {
			lines = append(lines, fmt.Sprintf("%s: %s %g€ → %g€ (%+g€)", label, e.Title, e.OldValue, e.NewValue, e.Value))
			continue
		}
		sign := "+"
		if label == "Downgrade" {
			sign = "-"
		}
		lines = append(lines, fmt.Sprintf("%s %s%g€/mo", e.Company, sign, e.Value))
	}
	return lines
}

func companyLines(entries []domain.DealEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Company)
	}
	return lines
}

func organizationLines(orgs []domain.Organization) []string {
	lines := make([]string, 0, len(orgs))
	for _, org := range orgs {
		count := org.MemberCount
		if count == "" {
			count = "?"
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", org.Name, count))
	}
	return lines
}

func reasonOrDefault(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "No reason provided"
	}
	return reason
}

// FormatChannelSamples renders the per-channel message samples with the
// channel-specific truncation budgets.
func FormatChannelSamples(samples []ChannelSample) string {
	var b strings.Builder
	b.WriteString("## Message Samples\n\n")
	for _, sample := range samples {
		fmt.Fprintf(&b, "### #%s\n", sample.Channel)
		limit := len(sample.Messages)
		if limit > promptMessagesPerChannel {
			limit = promptMessagesPerChannel
		}
		for _, msg := range sample.Messages[:limit] {
			content := truncateForChannel(msg.Content, sample.Channel)
			// Leading dashes inside a message would read as list items.
			content = strings.ReplaceAll(content, "- ", "* ")
			fmt.Fprintf(&b, "- %s: %s\n", msg.Author, content)
			if len(msg.URLs) > 0 {
				b.WriteString("  URLs:\n")
				for _, u := range msg.URLs {
					fmt.Fprintf(&b, "  - %s\n", u)
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncateForChannel(content, channel string) string {
	switch channel {
	case "customer-feedback":
		return textutil.TruncateEdges(content, truncateFeedback)
	case "product-updates", "product-fixes":
		return textutil.Truncate(content, truncateProduct)
	default:
		return textutil.Truncate(content, truncateDefault)
	}
}
