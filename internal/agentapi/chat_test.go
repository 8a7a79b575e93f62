package agentapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/waabox/builddeck/internal/domain"
)

func TestChat_AssemblesDeltasUntilDone(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/chat", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"Hello"}}]}`+"\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":", world"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"ignored"}}]}`+"\n\n")
	})
	c := newTestClient(t, r)

	var fragments []string
	reply, err := c.Chat(context.Background(), "user-1", "agent-1",
		[]domain.ChatMessage{{Role: "user", Content: "hi"}},
		func(s string) { fragments = append(fragments, s) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Hello, world" {
		t.Errorf("expected 'Hello, world', got '%s'", reply)
	}
	if len(fragments) != 2 {
		t.Errorf("expected 2 fragments, got %v", fragments)
	}
}

func TestChat_RejectsEmptyConversation(t *testing.T) {
	c := newTestClient(t, chi.NewRouter())
	if _, err := c.Chat(context.Background(), "user-1", "agent-1", nil, nil); err == nil {
		t.Error("expected error for empty conversation")
	}
}
