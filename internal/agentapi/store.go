package agentapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/waabox/builddeck/internal/domain"
)

// GetStoreApps lists published apps as seen by ownerID. category and search
// are optional filters.
func (c *Client) GetStoreApps(ctx context.Context, ownerID string, limit int, category, search string) ([]domain.StoreApp, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if category != "" {
		q.Set("category", category)
	}
	if search != "" {
		q.Set("search", search)
	}
	var result struct {
		Apps []storeApp `json:"apps"`
	}
	if err := c.getJSON(ctx, "/api/v1/store/apps", q, ownerID, &result); err != nil {
		return nil, fmt.Errorf("list store apps: %w", err)
	}
	apps := make([]domain.StoreApp, len(result.Apps))
	for i, a := range result.Apps {
		apps[i] = a.toStoreApp()
	}
	return apps, nil
}

// LikeApp likes an app on behalf of ownerID and returns the server's like count.
func (c *Client) LikeApp(ctx context.Context, ownerID, appID string) (int, error) {
	var result struct {
		Likes int `json:"likes"`
	}
	path := "/api/v1/store/apps/" + url.PathEscape(appID) + "/like"
	if err := c.postJSON(ctx, path, ownerQuery(ownerID), ownerID, map[string]string{"user_id": ownerID}, &result); err != nil {
		return 0, fmt.Errorf("like app %s: %w", appID, err)
	}
	return result.Likes, nil
}

// InstallApp installs an app into the owner's workspace.
func (c *Client) InstallApp(ctx context.Context, ownerID, appID string) (domain.InstallResult, error) {
	var result struct {
		AppID       string `json:"app_id"`
		WorkspaceID string `json:"workspace_id"`
		Installs    int    `json:"installs"`
	}
	path := "/api/v1/store/apps/" + url.PathEscape(appID) + "/install"
	if err := c.postJSON(ctx, path, ownerQuery(ownerID), ownerID, map[string]string{"user_id": ownerID}, &result); err != nil {
		return domain.InstallResult{}, fmt.Errorf("install app %s: %w", appID, err)
	}
	if result.AppID == "" {
		result.AppID = appID
	}
	return domain.InstallResult{AppID: result.AppID, WorkspaceID: result.WorkspaceID, Installs: result.Installs}, nil
}

// GetWorkspaceUsage reports the owner's build quota consumption.
func (c *Client) GetWorkspaceUsage(ctx context.Context, ownerID string) (domain.WorkspaceUsage, error) {
	var result struct {
		BuildsUsed    int    `json:"builds_used"`
		BuildsLimit   int    `json:"builds_limit"`
		StorageBytes  int64  `json:"storage_bytes"`
		StorageLimit  int64  `json:"storage_limit"`
		ActiveBuildID string `json:"active_build_id"`
	}
	if err := c.getJSON(ctx, "/api/v1/workspace/usage", ownerQuery(ownerID), ownerID, &result); err != nil {
		return domain.WorkspaceUsage{}, fmt.Errorf("get workspace usage: %w", err)
	}
	return domain.WorkspaceUsage{
		BuildsUsed:    result.BuildsUsed,
		BuildsLimit:   result.BuildsLimit,
		StorageBytes:  result.StorageBytes,
		StorageLimit:  result.StorageLimit,
		ActiveBuildID: domain.BuildID(result.ActiveBuildID),
	}, nil
}

// storeApp is the raw API response shape for a store listing.
type storeApp struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Author      string `json:"author"`
	Likes       int    `json:"likes"`
	Installs    int    `json:"installs"`
	CreatedAt   string `json:"created_at"`
}

func (a storeApp) toStoreApp() domain.StoreApp {
	created, _ := time.Parse(time.RFC3339, a.CreatedAt)
	return domain.StoreApp{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Category:    a.Category,
		Author:      a.Author,
		Likes:       a.Likes,
		Installs:    a.Installs,
		CreatedAt:   created,
	}
}
