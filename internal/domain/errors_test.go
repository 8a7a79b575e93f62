// internal/domain/errors_test.go
package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/waabox/builddeck/internal/domain"
)

func TestErrTooManyRequests_CanBeDetectedThroughAPIError(t *testing.T) {
	err := fmt.Errorf("start build: %w", domain.NewAPIError(429, "you already have a build running", domain.ErrTooManyRequests))
	if !errors.Is(err, domain.ErrTooManyRequests) {
		t.Error("expected errors.Is to detect ErrTooManyRequests in wrapped APIError")
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		t.Error("did not expect ErrUnauthorized to match")
	}
}

func TestUserMessage_PrefersServerMessage(t *testing.T) {
	err := fmt.Errorf("publish: %w", domain.NewAPIError(400, "title is required", nil))
	if got := domain.UserMessage(err, "Something went wrong"); got != "title is required" {
		t.Errorf("expected server message, got '%s'", got)
	}
}

func TestUserMessage_FallsBackWhenServerSentNothing(t *testing.T) {
	err := domain.NewAPIError(500, "", nil)
	if got := domain.UserMessage(err, "Something went wrong"); got != "Something went wrong" {
		t.Errorf("expected fallback message, got '%s'", got)
	}
}

func TestBuildStatus_TerminalStates(t *testing.T) {
	terminal := []domain.BuildStatus{
		domain.StatusCompleted, domain.StatusFailed,
		domain.StatusFailedResourceLimit, domain.StatusCancelled,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []domain.BuildStatus{domain.StatusQueued, domain.StatusRunning, domain.StatusNeedsInput} {
		if s.IsTerminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
	if domain.StatusCompleted.IsFailure() {
		t.Error("completed must not be a failure")
	}
}
