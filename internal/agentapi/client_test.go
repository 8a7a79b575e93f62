package agentapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/waabox/builddeck/internal/agentapi"
	"github.com/waabox/builddeck/internal/domain"
)

func newTestClient(t *testing.T, r chi.Router) *agentapi.Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c := agentapi.NewClient(srv.URL, 5*time.Second)
	c.SetPollInterval(time.Millisecond)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestStartBuild_SendsOwnerAndReturnsID(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/builds", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-User-Id") != "user-1" {
			t.Errorf("expected owner header 'user-1', got '%s'", req.Header.Get("X-User-Id"))
		}
		if req.URL.Query().Get("user_id") != "user-1" {
			t.Errorf("expected owner query 'user-1', got '%s'", req.URL.Query().Get("user_id"))
		}
		if req.Header.Get("X-Request-Id") == "" {
			t.Error("expected a request id header")
		}
		var body map[string]string
		json.NewDecoder(req.Body).Decode(&body)
		if body["agent_id"] != "agent-7" || body["prompt"] != "ERC-20 with burn" {
			t.Errorf("unexpected body: %v", body)
		}
		writeJSON(w, http.StatusOK, map[string]string{"build_id": "b-100"})
	})
	c := newTestClient(t, r)

	id, err := c.StartBuild(context.Background(), "user-1", "agent-7", "ERC-20 with burn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "b-100" {
		t.Errorf("expected build id 'b-100', got '%s'", id)
	}
}

func TestStartBuild_RejectsEmptyInputWithoutRequest(t *testing.T) {
	var calls int32
	r := chi.NewRouter()
	r.Post("/api/v1/builds", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	c := newTestClient(t, r)

	if _, err := c.StartBuild(context.Background(), "user-1", "agent-7", "   "); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty prompt, got %v", err)
	}
	if _, err := c.StartBuild(context.Background(), "user-1", "", "prompt"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for missing agent, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no requests, got %d", calls)
	}
}

func TestStartBuild_429IsDistinguished(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/builds", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"detail": "You already have a build running"})
	})
	c := newTestClient(t, r)

	_, err := c.StartBuild(context.Background(), "user-1", "agent-7", "prompt")
	if !errors.Is(err, domain.ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *domain.APIError, got %T", err)
	}
	if apiErr.Message != "You already have a build running" {
		t.Errorf("expected server message verbatim, got '%s'", apiErr.Message)
	}
}

func TestErrors_PropagateServerMessage(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error field", 400, `{"error":"agent not found"}`, "agent not found"},
		{"message field", 500, `{"message":"worker crashed"}`, "worker crashed"},
		{"plain text", 502, "bad gateway from tunnel", "bad gateway from tunnel"},
		{"empty body", 503, "", "Service Unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get("/api/v1/builds/{id}", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})
			c := newTestClient(t, r)

			_, err := c.GetBuild(context.Background(), "user-1", "b-1")
			var apiErr *domain.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *domain.APIError, got %v", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, apiErr.StatusCode)
			}
			if apiErr.Message != tc.want {
				t.Errorf("expected message '%s', got '%s'", tc.want, apiErr.Message)
			}
		})
	}
}

func TestUnauthorized_WrapsSentinel(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/workspace/usage", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown user"})
	})
	c := newTestClient(t, r)

	_, err := c.GetWorkspaceUsage(context.Background(), "user-1")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func statusSequenceRouter(t *testing.T, statuses []string, calls *int32) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/v1/builds/{id}", func(w http.ResponseWriter, req *http.Request) {
		n := int(atomic.AddInt32(calls, 1)) - 1
		if n >= len(statuses) {
			t.Errorf("unexpected poll #%d after terminal status", n+1)
			n = len(statuses) - 1
		}
		events := make([]map[string]string, 0, n+1)
		for i := 0; i <= n; i++ {
			events = append(events, map[string]string{
				"time":    time.Now().UTC().Format(time.RFC3339),
				"message": fmt.Sprintf("step %d: %s", i, statuses[i]),
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"build_id": chi.URLParam(req, "id"),
			"status":   statuses[n],
			"events":   events,
		})
	})
	return r
}

func TestWaitForBuild_UpdatesPerSnapshotAndStopsAtTerminal(t *testing.T) {
	var calls int32
	statuses := []string{"queued", "running", "running", "completed"}
	c := newTestClient(t, statusSequenceRouter(t, statuses, &calls))

	var seen []domain.BuildStatus
	var events []string
	final, err := c.WaitForBuild(context.Background(), "user-1", "b-1", func(b domain.Build, fresh []domain.BuildEvent) {
		seen = append(seen, b.Status)
		for _, e := range fresh {
			events = append(events, e.Message)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", final.Status)
	}
	want := []domain.BuildStatus{domain.StatusQueued, domain.StatusRunning, domain.StatusRunning, domain.StatusCompleted}
	if len(seen) != len(want) {
		t.Fatalf("expected %d updates, got %d: %v", len(want), len(seen), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("update %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
	if len(events) != 4 {
		t.Errorf("expected each event delivered once (4), got %d: %v", len(events), events)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("expected exactly 4 polls, got %d", got)
	}
}

func TestWaitForBuild_StopsWhenContextCancelled(t *testing.T) {
	var calls int32
	r := chi.NewRouter()
	r.Get("/api/v1/builds/{id}", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusOK, map[string]string{"build_id": "b-1", "status": "running"})
	})
	c := newTestClient(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	final, err := c.WaitForBuild(ctx, "user-1", "b-1", func(b domain.Build, _ []domain.BuildEvent) {
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if final.Status != domain.StatusRunning {
		t.Errorf("expected last snapshot running, got %s", final.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected polling to stop after cancel, got %d polls", got)
	}
}

func TestWaitForBuild_Surfaces429(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/builds/{id}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "slow down"})
	})
	c := newTestClient(t, r)

	_, err := c.WaitForBuild(context.Background(), "user-1", "b-1", nil)
	if !errors.Is(err, domain.ErrTooManyRequests) {
		t.Errorf("expected ErrTooManyRequests, got %v", err)
	}
}

func TestGetBuildArtifacts_MapsFields(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/builds/{id}/artifacts", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"artifacts": []map[string]interface{}{
				{"title": "Token", "artifact_type": "solidity", "version": 2, "entry_relative_path": "contracts/Token.sol"},
				{"title": "Audit", "artifact_type": "markdown", "version": 1, "entry_relative_path": "audit-report.md"},
			},
		})
	})
	c := newTestClient(t, r)

	artifacts, err := c.GetBuildArtifacts(context.Background(), "user-1", "b-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}
	if artifacts[0].RelativePath != "contracts/Token.sol" || artifacts[0].Version != 2 || artifacts[0].Type != "solidity" {
		t.Errorf("unexpected first artifact: %+v", artifacts[0])
	}
}

func TestGetBuildFile_RawAndWrapped(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/builds/{id}/file", func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Query().Get("path") {
		case "contracts/Token.sol":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprint(w, "pragma solidity ^0.8.20;")
		case "audit-report.md":
			writeJSON(w, http.StatusOK, map[string]string{"content": "## Reentrancy\nSeverity: critical"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such file"})
		}
	})
	c := newTestClient(t, r)

	raw, err := c.GetBuildFile(context.Background(), "user-1", "b-1", "contracts/Token.sol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != "pragma solidity ^0.8.20;" {
		t.Errorf("unexpected raw content: %q", raw)
	}
	wrapped, err := c.GetBuildFile(context.Background(), "user-1", "b-1", "audit-report.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wrapped != "## Reentrancy\nSeverity: critical" {
		t.Errorf("unexpected wrapped content: %q", wrapped)
	}
	if _, err := c.GetBuildFile(context.Background(), "user-1", "b-1", "missing.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPublishBuild_ReturnsResult(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/builds/{id}/publish", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]string
		json.NewDecoder(req.Body).Decode(&body)
		if body["title"] != "Burnable Token" || body["category"] != "defi" {
			t.Errorf("unexpected body: %v", body)
		}
		writeJSON(w, http.StatusOK, map[string]string{"app_id": "app-1", "url": "https://store/app-1"})
	})
	c := newTestClient(t, r)

	res, err := c.PublishBuild(context.Background(), "user-1", "b-1", "Burnable Token", "desc", "defi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AppID != "app-1" || res.URL != "https://store/app-1" {
		t.Errorf("unexpected publish result: %+v", res)
	}
}

func TestGetStoreApps_SendsFilters(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/store/apps", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if q.Get("limit") != "5" || q.Get("category") != "nft" || q.Get("search") != "dragon" {
			t.Errorf("unexpected query: %v", q)
		}
		if q.Get("user_id") != "user-1" || req.Header.Get("X-User-Id") != "user-1" {
			t.Errorf("expected owner identity on store listing, got query %v header '%s'", q, req.Header.Get("X-User-Id"))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"apps": []map[string]interface{}{{"id": "app-1", "title": "Dragons", "likes": 3}},
		})
	})
	r.Post("/api/v1/store/apps/{id}/like", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"likes": 4})
	})
	c := newTestClient(t, r)

	apps, err := c.GetStoreApps(context.Background(), "user-1", 5, "nft", "dragon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) != 1 || apps[0].Likes != 3 {
		t.Fatalf("unexpected apps: %+v", apps)
	}
	likes, err := c.LikeApp(context.Background(), "user-1", "app-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if likes != 4 {
		t.Errorf("expected 4 likes, got %d", likes)
	}
}
