package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/surveyforge/surveyforge/llm"
)

func TestNewDefaultsModelName(t *testing.T) {
	m := New("key", "")
	if m.modelName == "" {
		t.Fatal("expected default model name")
	}
}

func TestChatReturnsOnFirstSuccess(t *testing.T) {
	mock := &mockClient{response: "hi"}
	m := &Model{client: mock, maxRetries: 3, retryDelay: time.Millisecond}

	out, err := m.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "hi" {
		t.Errorf("got %q", out.Text)
	}
	if mock.callCount != 1 {
		t.Errorf("expected exactly 1 call, got %d", mock.callCount)
	}
}

func TestChatRetriesTransientErrorsThenSucceeds(t *testing.T) {
	mock := &mockClient{response: "recovered", failTimes: 2, transientErr: errors.New("connection reset")}
	m := &Model{client: mock, maxRetries: 3, retryDelay: time.Millisecond}

	out, err := m.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if mock.callCount != 3 {
		t.Fatalf("expected 3 calls (2 failures + success), got %d", mock.callCount)
	}
	if out.Text != mock.response {
		t.Errorf("got %q", out.Text)
	}
}

func TestChatDoesNotRetryNonTransientErrors(t *testing.T) {
	mock := &mockClient{permanentErr: errors.New("invalid request: bad schema")}
	m := &Model{client: mock, maxRetries: 3, retryDelay: time.Millisecond}

	_, err := m.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if mock.callCount != 1 {
		t.Fatalf("expected exactly 1 call for a non-transient error, got %d", mock.callCount)
	}
}

func TestChatRespectsCancelledContext(t *testing.T) {
	m := &Model{client: &mockClient{response: "x"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: "x"}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseToolInputDecodesJSON(t *testing.T) {
	got := parseToolInput(`{"query":"widgets","limit":5}`)
	if got["query"] != "widgets" {
		t.Fatalf("expected decoded query field, got %v", got)
	}
}

func TestParseToolInputFallsBackOnInvalidJSON(t *testing.T) {
	got := parseToolInput("not json")
	if got["_raw"] != "not json" {
		t.Fatalf("expected raw fallback, got %v", got)
	}
}

func TestDefaultClientRejectsEmptyAPIKey(t *testing.T) {
	m := New("", "gpt-4o")
	_, err := m.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "x"}}, nil)
	if err == nil {
		t.Fatal("expected an error for an empty API key")
	}
}

type mockClient struct {
	response     string
	callCount    int
	failTimes    int
	transientErr error
	permanentErr error
}

func (m *mockClient) createChatCompletion(_ context.Context, _ []llm.Message, _ []llm.ToolSpec) (llm.ChatOut, error) {
	m.callCount++
	if m.permanentErr != nil {
		return llm.ChatOut{}, m.permanentErr
	}
	if m.callCount <= m.failTimes {
		return llm.ChatOut{}, m.transientErr
	}
	return llm.ChatOut{Text: m.response}, nil
}
