package summarizer

import (
	"context"
	"errors"
	"testing"

	openai "discord-digest-bot/internal/infra/openai"
)

type stubChat struct {
	lastReq openai.ChatCompletionRequest
	resp    openai.ChatCompletionResponse
	err     error
}

func (s *stubChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastReq = req
	return s.resp, s.err
}

func TestCompletePassesParameters(t *testing.T) {
	stub := &stubChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: "  summary text\n"}}},
	}}
	completer := NewOpenAI(stub, "gpt-4o", 0)

	got, err := completer.Complete(context.Background(), "system prompt", "user payload", 2500, 0)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if got != "summary text" {
		t.Fatalf("expected trimmed content, got %q", got)
	}
	if stub.lastReq.Model != "gpt-4o" || stub.lastReq.MaxTokens != 2500 || stub.lastReq.Temperature != 0 {
		t.Fatalf("unexpected request: %+v", stub.lastReq)
	}
	if len(stub.lastReq.Messages) != 2 || stub.lastReq.Messages[0].Role != openai.RoleSystem || stub.lastReq.Messages[1].Role != openai.RoleUser {
		t.Fatalf("unexpected messages: %+v", stub.lastReq.Messages)
	}
}

func TestCompleteErrors(t *testing.T) {
	stub := &stubChat{err: errors.New("rate limited")}
	if _, err := NewOpenAI(stub, "", 0).Complete(context.Background(), "s", "u", 100, 0); err == nil {
		t.Fatal("expected transport error to propagate")
	}

	stub = &stubChat{}
	if _, err := NewOpenAI(stub, "", 0).Complete(context.Background(), "s", "u", 100, 0); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
