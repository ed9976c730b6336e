package markdown

import (
	"testing"

	"discord-digest-bot/internal/domain"
)

func TestCompileMixedDocument(t *testing.T) {
	input := "# Title\n\n## **Sales & Marketing**\n- first item\n2. second item\n```code here\nplain line"
	blocks := Compile(input)
	if len(blocks) != 6 {
		t.Fatalf("expected 6 blocks, got %d", len(blocks))
	}

	if blocks[0].Type != domain.BlockHeading || blocks[0].Level != 1 {
		t.Fatalf("expected h1 first, got %+v", blocks[0])
	}
	if blocks[1].Type != domain.BlockHeading || blocks[1].Level != 2 {
		t.Fatalf("expected h2 second, got %+v", blocks[1])
	}
	if blocks[1].PlainText() != "Sales & Marketing" {
		t.Fatalf("expected heading markup stripped, got %q", blocks[1].PlainText())
	}
	if blocks[2].Type != domain.BlockBulleted || blocks[2].PlainText() != "first item" {
		t.Fatalf("unexpected bullet block %+v", blocks[2])
	}
	if blocks[3].Type != domain.BlockNumbered || blocks[3].PlainText() != "second item" {
		t.Fatalf("unexpected numbered block %+v", blocks[3])
	}
	if blocks[4].Type != domain.BlockCode || blocks[4].PlainText() != "code here" {
		t.Fatalf("unexpected code block %+v", blocks[4])
	}
	if blocks[5].Type != domain.BlockParagraph {
		t.Fatalf("expected trailing paragraph, got %+v", blocks[5])
	}
}

func TestCompileBlankLinesProduceNoBlocks(t *testing.T) {
	if blocks := Compile("\n\n   \n"); len(blocks) != 0 {
		t.Fatalf("expected no blocks, got %d", len(blocks))
	}
}

func TestCompileHeadingLevelClamped(t *testing.T) {
	blocks := Compile("##### deep heading")
	if len(blocks) != 1 || blocks[0].Level != 3 {
		t.Fatalf("expected heading clamped to level 3, got %+v", blocks)
	}
}

func TestCompileCodeFenceIsSingleLine(t *testing.T) {
	// The compiler is line-oriented: a fence opener only captures the text
	// trailing it, following lines become ordinary blocks.
	blocks := Compile("```go\nfmt.Println(1)\n```")
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if blocks[0].Type != domain.BlockCode || blocks[0].PlainText() != "go" {
		t.Fatalf("unexpected opener block %+v", blocks[0])
	}
	if blocks[1].Type != domain.BlockParagraph {
		t.Fatalf("expected interior line as paragraph, got %+v", blocks[1])
	}
	if blocks[2].Type != domain.BlockCode || blocks[2].PlainText() != "" {
		t.Fatalf("unexpected closer block %+v", blocks[2])
	}
}

func TestParseInlineScenario(t *testing.T) {
	runs := ParseInline("**Bold** and *italic* and [link](http://x)")
	want := []domain.InlineRun{
		{Type: domain.RunBold, Text: "Bold"},
		{Type: domain.RunText, Text: " and "},
		{Type: domain.RunItalic, Text: "italic"},
		{Type: domain.RunText, Text: " and "},
		{Type: domain.RunLink, Text: "link", URL: "http://x"},
	}
	if len(runs) != len(want) {
		t.Fatalf("expected %d runs, got %d: %+v", len(want), len(runs), runs)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Fatalf("run %d mismatch: got %+v want %+v", i, runs[i], want[i])
		}
	}
}

func TestParseInlineBoldNotMistakenForItalic(t *testing.T) {
	runs := ParseInline("**only bold**")
	if len(runs) != 1 || runs[0].Type != domain.RunBold || runs[0].Text != "only bold" {
		t.Fatalf("expected single bold run, got %+v", runs)
	}
}

func TestParseInlineNoMarkup(t *testing.T) {
	runs := ParseInline("just words")
	if len(runs) != 1 || runs[0].Type != domain.RunText || runs[0].Text != "just words" {
		t.Fatalf("expected single plain run, got %+v", runs)
	}
}

func TestParseInlineRoundTrip(t *testing.T) {
	input := "start **bold** middle [go docs](https://go.dev) *end*"
	blocks := Compile(input)
	if len(blocks) != 1 || blocks[0].Type != domain.BlockParagraph {
		t.Fatalf("expected one paragraph, got %+v", blocks)
	}
	if got := blocks[0].PlainText(); got != "start bold middle go docs end" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}
