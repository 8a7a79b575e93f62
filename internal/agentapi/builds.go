package agentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/waabox/builddeck/internal/domain"
)

// StartBuild asks the service to start a build for agentID and returns its ID.
// Empty agent or prompt is rejected before any request is made.
func (c *Client) StartBuild(ctx context.Context, ownerID, agentID, prompt string) (domain.BuildID, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(agentID) == "" {
		return "", fmt.Errorf("%w: no agent selected", domain.ErrInvalidRequest)
	}
	body := map[string]string{
		"user_id":  ownerID,
		"agent_id": agentID,
		"prompt":   prompt,
	}
	var result struct {
		BuildID string `json:"build_id"`
	}
	if err := c.postJSON(ctx, "/api/v1/builds", ownerQuery(ownerID), ownerID, body, &result); err != nil {
		return "", fmt.Errorf("start build: %w", err)
	}
	if result.BuildID == "" {
		return "", fmt.Errorf("start build: response carried no build_id")
	}
	return domain.BuildID(result.BuildID), nil
}

// GetBuild returns a single status snapshot of the build.
func (c *Client) GetBuild(ctx context.Context, ownerID string, id domain.BuildID) (domain.Build, error) {
	var raw buildStatus
	path := "/api/v1/builds/" + url.PathEscape(string(id))
	if err := c.getJSON(ctx, path, ownerQuery(ownerID), ownerID, &raw); err != nil {
		return domain.Build{}, fmt.Errorf("get build %s: %w", id, err)
	}
	b := raw.toBuild()
	if b.ID == "" {
		b.ID = id
	}
	return b, nil
}

// GetBuildArtifacts lists the files produced by a completed build.
func (c *Client) GetBuildArtifacts(ctx context.Context, ownerID string, id domain.BuildID) ([]domain.Artifact, error) {
	var result struct {
		Artifacts []artifact `json:"artifacts"`
	}
	path := "/api/v1/builds/" + url.PathEscape(string(id)) + "/artifacts"
	if err := c.getJSON(ctx, path, ownerQuery(ownerID), ownerID, &result); err != nil {
		return nil, fmt.Errorf("get artifacts for %s: %w", id, err)
	}
	artifacts := make([]domain.Artifact, len(result.Artifacts))
	for i, a := range result.Artifacts {
		artifacts[i] = a.toArtifact()
	}
	return artifacts, nil
}

// GetBuildFile returns the raw content of one artifact file.
func (c *Client) GetBuildFile(ctx context.Context, ownerID string, id domain.BuildID, relativePath string) (string, error) {
	q := ownerQuery(ownerID)
	q.Set("path", relativePath)
	path := "/api/v1/builds/" + url.PathEscape(string(id)) + "/file"
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(path, q), ownerID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain, application/json")
	resp, err := c.do(c.client, req)
	if err != nil {
		return "", fmt.Errorf("get file %s: %w", relativePath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading file %s: %w", relativePath, err)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var wrapped struct {
			Content *string `json:"content"`
		}
		if json.Unmarshal(data, &wrapped) == nil && wrapped.Content != nil {
			return *wrapped.Content, nil
		}
	}
	return string(data), nil
}

// PublishBuild lists a completed build in the app store.
func (c *Client) PublishBuild(ctx context.Context, ownerID string, id domain.BuildID, title, description, category string) (domain.PublishResult, error) {
	if strings.TrimSpace(title) == "" {
		return domain.PublishResult{}, fmt.Errorf("%w: title is empty", domain.ErrInvalidRequest)
	}
	body := map[string]string{
		"user_id":     ownerID,
		"title":       title,
		"description": description,
		"category":    category,
	}
	var result struct {
		AppID string `json:"app_id"`
		URL   string `json:"url"`
	}
	path := "/api/v1/builds/" + url.PathEscape(string(id)) + "/publish"
	if err := c.postJSON(ctx, path, ownerQuery(ownerID), ownerID, body, &result); err != nil {
		return domain.PublishResult{}, fmt.Errorf("publish build %s: %w", id, err)
	}
	return domain.PublishResult{AppID: result.AppID, URL: result.URL}, nil
}

// buildStatus is the raw API response shape for a build status snapshot.
type buildStatus struct {
	BuildID   string       `json:"build_id"`
	UserID    string       `json:"user_id"`
	AgentID   string       `json:"agent_id"`
	Status    string       `json:"status"`
	Error     string       `json:"error"`
	Events    []buildEvent `json:"events"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
}

type buildEvent struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

func (s buildStatus) toBuild() domain.Build {
	created, _ := time.Parse(time.RFC3339, s.CreatedAt)
	updated, _ := time.Parse(time.RFC3339, s.UpdatedAt)
	events := make([]domain.BuildEvent, 0, len(s.Events))
	for _, e := range s.Events {
		ts, _ := time.Parse(time.RFC3339, e.Time)
		events = append(events, domain.BuildEvent{Time: ts, Message: e.Message})
	}
	return domain.Build{
		ID:        domain.BuildID(s.BuildID),
		UserID:    s.UserID,
		AgentID:   s.AgentID,
		Status:    mapStatus(s.Status),
		Error:     s.Error,
		Events:    events,
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

// artifact is the raw API response shape for one artifact.
type artifact struct {
	Title             string `json:"title"`
	ArtifactType      string `json:"artifact_type"`
	Version           int    `json:"version"`
	EntryRelativePath string `json:"entry_relative_path"`
}

func (a artifact) toArtifact() domain.Artifact {
	return domain.Artifact{
		Title:        a.Title,
		Type:         a.ArtifactType,
		Version:      a.Version,
		RelativePath: a.EntryRelativePath,
	}
}

// mapStatus normalises the service's status string. Unknown values are
// treated as still running so the poller keeps waiting for a known terminal state.
func mapStatus(status string) domain.BuildStatus {
	switch s := domain.BuildStatus(strings.ToLower(strings.TrimSpace(status))); s {
	case domain.StatusQueued, domain.StatusRunning, domain.StatusNeedsInput,
		domain.StatusCompleted, domain.StatusFailed,
		domain.StatusFailedResourceLimit, domain.StatusCancelled:
		return s
	case "pending":
		return domain.StatusQueued
	case "succeeded", "success":
		return domain.StatusCompleted
	case "canceled":
		return domain.StatusCancelled
	}
	return domain.StatusRunning
}
