package domain

import "time"

// StoreApp is a published build listed in the agent app store.
type StoreApp struct {
	ID          string
	Title       string
	Description string
	Category    string
	Author      string
	Likes       int
	Installs    int
	CreatedAt   time.Time
}

// PublishResult is returned after a build is published to the store.
type PublishResult struct {
	AppID string
	URL   string
}

// InstallResult is returned after an app is installed into the owner's workspace.
type InstallResult struct {
	AppID       string
	WorkspaceID string
	Installs    int
}

// WorkspaceUsage reports how much of the owner's build quota has been consumed.
type WorkspaceUsage struct {
	BuildsUsed    int
	BuildsLimit   int
	StorageBytes  int64
	StorageLimit  int64
	ActiveBuildID BuildID
}

// ChatMessage is one turn of a conversation with an agent.
type ChatMessage struct {
	Role    string
	Content string
}
