package domain

import "context"

// UpdateFunc receives every status snapshot observed while waiting on a build,
// together with the events that were not part of any earlier snapshot.
type UpdateFunc func(build Build, newEvents []BuildEvent)

// BuildService is the port the workflow and the TUI depend on.
// The domain does not know how the agent service is reached.
type BuildService interface {
	StartBuild(ctx context.Context, ownerID, agentID, prompt string) (BuildID, error)
	GetBuild(ctx context.Context, ownerID string, id BuildID) (Build, error)
	WaitForBuild(ctx context.Context, ownerID string, id BuildID, onUpdate UpdateFunc) (Build, error)
	GetBuildArtifacts(ctx context.Context, ownerID string, id BuildID) ([]Artifact, error)
	GetBuildFile(ctx context.Context, ownerID string, id BuildID, relativePath string) (string, error)
	PublishBuild(ctx context.Context, ownerID string, id BuildID, title, description, category string) (PublishResult, error)
}

// StoreService covers the app store and workspace calls.
type StoreService interface {
	GetStoreApps(ctx context.Context, ownerID string, limit int, category, search string) ([]StoreApp, error)
	LikeApp(ctx context.Context, ownerID, appID string) (int, error)
	InstallApp(ctx context.Context, ownerID, appID string) (InstallResult, error)
	GetWorkspaceUsage(ctx context.Context, ownerID string) (WorkspaceUsage, error)
}

// ChatService streams a reply from an agent. onDelta receives each content fragment.
type ChatService interface {
	Chat(ctx context.Context, ownerID, agentID string, messages []ChatMessage, onDelta func(string)) (string, error)
}
