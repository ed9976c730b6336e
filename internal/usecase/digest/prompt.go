package digest

import (
	"fmt"
	"strings"

	"discord-digest-bot/internal/domain"
)

// noActivitySummary is returned without consulting the oracle when a guild
// had no messages inside the window.
const noActivitySummary = "# Discord Server Summary\n\nNo activity in this server during the specified period."

// noThreadActivity replaces a thread summary when the thread had no messages.
const noThreadActivity = "No activity in this thread during the specified period."

func threadSystemPrompt(threadName string, lookbackDays int) string {
	return fmt.Sprintf(`You are a helpful assistant summarizing Discord messages.
The following are messages from the past %d days in a Discord thread named %q.
Provide a concise but comprehensive summary of the thread discussion. Make it brief but capture key points.`, lookbackDays, threadName)
}

func threadPayload(messages []domain.Message) string {
	formatted := make([]string, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		if len(msg.Attachments) > 0 {
			content += fmt.Sprintf("\n[Shared %d attachment(s)]", len(msg.Attachments))
		}
		if msg.Embeds > 0 {
			content += fmt.Sprintf("\n[Shared %d embed(s)]", msg.Embeds)
		}
		formatted = append(formatted, fmt.Sprintf("%s (%s): %s", msg.Author, msg.Timestamp.Format("Mon Jan 2 15:04:05 2006"), content))
	}
	return strings.Join(formatted, "\n\n")
}

func guildSystemPrompt(guildName string, mrr int) string {
	return fmt.Sprintf(`You are a helpful assistant summarizing Discord server activity.

Your task is to create a comprehensive summary of all activity in the %q Discord server.

The summary must:
1. Be in Markdown format
2. Contain 10-50 bullet points total
3. Cover the most important discussions, announcements, and activities
4. Group them into sections Sales & Marketing, HR & Ops, and Product & Engineering
5. Prioritize information based on importance, not just recency
6. In each bullet point, link relevant pages when relevant
7. Include the Pipedrive deals data in the Sales & Marketing section
8. When referencing URLs from messages, use them to create hyperlinks in the bullet points

I'll provide you with:
- A sample of messages from each channel (including any URLs found in the messages)
- Summaries of thread discussions
- Recent Pipedrive deals data

Strictly fill in the following template. All sections that should be filled are marked with <>:
## **Sales & Marketing**
*Key achievements & learnings:*
- MRR: %d€
    - Converted: <list all converted customers with the deal value per month, e.g. Rings Protocol +190€/mo, Nova +640€/mo>
    - Churned: <list all churned customers from messages & Pipedrive with the deal value per month>
    - Lost deals: <list all lost deals from messages & Pipedrive>
    - Upgrades: <list all upgraded customers from messages & Pipedrive with the change in deal value per month>
    - Downgrades: <list all downgraded customers from Pipedrive with the change in deal value per month>
    - New free trials: <list all new free trials from Pipedrive with their member count in brackets>
- Social posts: <list all shared social posts with short 2 to 5 words description that are each hyperlinked and comma separated>
<list other relevant updates in bullet points>

*Next week:*
- Convert <list all companies to convert from Pipedrive>

## **HR & Ops**
*Key achievements & learnings:*
<list all relevant updates in bullet points but only include updates that are not about Sales/Marketing or Engineering>

*Next week:*

## **Product & Engineering**
*Key achievements & learnings:*
<for every message in #product-updates add a bullet point with 5 to 15 words describing the update depending on its complexity, don't include fixes or small issues>
- Fixes: <list all fixes in bullet points, also include fixes for specific customers>

*Next week:*

Focus on extracting key insights and important information rather than summarizing every message.`, guildName, mrr)
}

func guildPayload(overview, threadSummaries, dealsSection, channelSamples string) string {
	return fmt.Sprintf(`Here's the information about the Discord server:

%s

%s

%s

%s

Please create a comprehensive summary following the guidelines in my system message. The summary should be in Markdown format with 10-50 bullet points covering the key activities, discussions and developments in the server.
Combine info from messages and Pipedrive to create comprehensive updates on deals and customers. When adding links make sure to directly hyperlink the 2 to 4 relevant words of the bullet point and only link the url that's from that message.`,
		overview, threadSummaries, dealsSection, channelSamples)
}
