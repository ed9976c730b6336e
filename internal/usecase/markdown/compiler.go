// Package markdown compiles the oracle's markdown output into the ordered,
// typed block list the document store consumes. Only the subset of markdown
// the generated summaries actually use is recognised.
package markdown

import (
	"regexp"
	"strings"

	"discord-digest-bot/internal/domain"
)

var (
	linkPattern     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	boldPattern     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicPattern   = regexp.MustCompile(`\*([^*]+)\*`)
	headingMarks    = regexp.MustCompile(`^#+`)
	numberedPattern = regexp.MustCompile(`^(\d+)\.\s+(.+)$`)
)

// Compile splits markdown into lines and emits one typed block per
// non-blank line, preserving source order.
//
// Fenced code is line-oriented: the block holds only whatever trails the
// opening marker on the same line, so multi-line fence content is not
// collected.
func Compile(text string) []domain.ContentBlock {
	var blocks []domain.ContentBlock
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#"):
			level := len(headingMarks.FindString(line))
			if level > 3 {
				level = 3
			}
			content := strings.TrimSpace(strings.TrimLeft(line, "#"))
			// Headings render as plain styled text: markup is stripped,
			// not carried as rich runs.
			blocks = append(blocks, domain.ContentBlock{
				Type:  domain.BlockHeading,
				Level: level,
				Runs:  []domain.InlineRun{{Type: domain.RunText, Text: plainText(ParseInline(content))}},
			})
		case strings.HasPrefix(trimmed, "- "):
			blocks = append(blocks, domain.ContentBlock{Type: domain.BlockBulleted, Runs: ParseInline(trimmed[2:])})
		case numberedPattern.MatchString(trimmed):
			m := numberedPattern.FindStringSubmatch(trimmed)
			blocks = append(blocks, domain.ContentBlock{Type: domain.BlockNumbered, Runs: ParseInline(m[2])})
		case strings.HasPrefix(trimmed, "```"):
			blocks = append(blocks, domain.ContentBlock{
				Type: domain.BlockCode,
				Runs: []domain.InlineRun{{Type: domain.RunText, Text: trimmed[3:]}},
			})
		default:
			blocks = append(blocks, domain.ContentBlock{Type: domain.BlockParagraph, Runs: ParseInline(line)})
		}
	}
	return blocks
}

// ParseInline scans text left to right and splits it into typed runs for
// links, bold and italic spans, with plain runs for everything between.
// Runs are not re-scanned, so spans do not nest.
func ParseInline(text string) []domain.InlineRun {
	patterns := []struct {
		re  *regexp.Regexp
		typ domain.RunType
	}{
		// Order matters on position ties: the link delimiter is distinct,
		// but bold's ** is a prefix of italic's *, so bold must win when
		// both could match at the same offset.
		{linkPattern, domain.RunLink},
		{boldPattern, domain.RunBold},
		{italicPattern, domain.RunItalic},
	}

	var runs []domain.InlineRun
	pos := 0
	for pos < len(text) {
		rest := text[pos:]

		bestStart := -1
		var bestType domain.RunType
		var bestLoc []int
		for _, p := range patterns {
			loc := p.re.FindStringSubmatchIndex(rest)
			if loc == nil {
				continue
			}
			if bestStart == -1 || loc[0] < bestStart {
				bestStart = loc[0]
				bestType = p.typ
				bestLoc = loc
			}
		}

		if bestStart == -1 {
			runs = append(runs, domain.InlineRun{Type: domain.RunText, Text: rest})
			break
		}

		if bestStart > 0 {
			runs = append(runs, domain.InlineRun{Type: domain.RunText, Text: rest[:bestStart]})
		}

		switch bestType {
		case domain.RunLink:
			runs = append(runs, domain.InlineRun{
				Type: domain.RunLink,
				Text: rest[bestLoc[2]:bestLoc[3]],
				URL:  rest[bestLoc[4]:bestLoc[5]],
			})
		default:
			runs = append(runs, domain.InlineRun{Type: bestType, Text: rest[bestLoc[2]:bestLoc[3]]})
		}

		pos += bestLoc[1]
	}

	if len(runs) == 0 {
		return []domain.InlineRun{{Type: domain.RunText, Text: text}}
	}
	return runs
}

func plainText(runs []domain.InlineRun) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}
