// Package workflow drives one build at a time from submission to browsable output.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/waabox/builddeck/internal/audit"
	"github.com/waabox/builddeck/internal/domain"
	"github.com/waabox/builddeck/internal/filetree"
	"github.com/waabox/builddeck/internal/store"
)

// EventKind identifies a workflow notification.
type EventKind int

const (
	// EventStarted is sent once the service accepted a new build.
	EventStarted EventKind = iota
	// EventResumed is sent when the workflow attaches to a build that was already running.
	EventResumed
	// EventProgress carries a status snapshot and its new build events.
	EventProgress
	// EventArtifacts is sent when the artifact list of a completed build is known.
	EventArtifacts
	// EventFinished is sent once per submission with the final outcome.
	EventFinished
)

// Event is delivered to the caller's callback while a build is followed.
type Event struct {
	Kind      EventKind
	BuildID   domain.BuildID
	Build     domain.Build
	NewEvents []domain.BuildEvent
	Artifacts []domain.Artifact
}

// Outcome is what a followed build produced.
type Outcome struct {
	Build      domain.Build
	Prompt     string
	Resumed    bool
	Artifacts  []domain.Artifact
	Tree       []*filetree.Node
	Conflicts  []filetree.Conflict
	Files      *FileCache
	FileErrors map[string]error
	Findings   []audit.Finding
}

// usageReporter is implemented by services that can name the owner's running build.
type usageReporter interface {
	GetWorkspaceUsage(ctx context.Context, ownerID string) (domain.WorkspaceUsage, error)
}

// Options configures a Workflow.
type Options struct {
	OwnerID          string
	AgentID          string
	FetchConcurrency int
	Logger           zerolog.Logger
	Now              func() time.Time
}

// Workflow allows a single build in flight per client. It remembers the
// last build it followed until that build reaches a terminal status, so a
// 429 on submission can resume waiting on it.
type Workflow struct {
	svc     domain.BuildService
	history *store.History
	opts    Options
	log     zerolog.Logger

	mu      sync.Mutex
	busy    bool
	active  domain.BuildID
	tracked domain.BuildID
	cancel  context.CancelFunc
}

// New creates a Workflow. history may be nil to disable persistence.
func New(svc domain.BuildService, history *store.History, opts Options) *Workflow {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 1
	}
	return &Workflow{
		svc:     svc,
		history: history,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "workflow").Logger(),
	}
}

// SetAgent changes the agent used for new submissions.
func (w *Workflow) SetAgent(agentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opts.AgentID = agentID
}

// Agent returns the agent used for new submissions.
func (w *Workflow) Agent() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opts.AgentID
}

// OwnerID returns the identity builds are submitted for.
func (w *Workflow) OwnerID() string {
	return w.opts.OwnerID
}

// ActiveBuildID returns the build currently being followed, if any.
func (w *Workflow) ActiveBuildID() domain.BuildID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Busy reports whether a submission is in progress. New submissions are
// rejected while it is true.
func (w *Workflow) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Track makes id the build a later 429 resumes on, without following it.
func (w *Workflow) Track(id domain.BuildID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracked = id
}

// Cancel stops polling and file fetches of the current submission.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *Workflow) acquire(ctx context.Context) (context.Context, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return nil, domain.ErrBuildInFlight
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.busy = true
	w.cancel = cancel
	return runCtx, nil
}

func (w *Workflow) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	w.busy = false
	w.active = ""
	w.cancel = nil
}

// Submit starts a build for prompt and follows it to a terminal status.
// onEvent may be nil.
//
// A 429 from the service means the owner already has a build running: Submit
// then follows that build instead, found from the tracked build, the
// workspace usage or, failing both, the local history. It only returns the
// server's error when none of them names one.
func (w *Workflow) Submit(ctx context.Context, prompt string, onEvent func(Event)) (Outcome, error) {
	prompt = strings.TrimSpace(prompt)
	agentID := w.Agent()
	if prompt == "" {
		return Outcome{}, fmt.Errorf("%w: prompt is empty", domain.ErrInvalidRequest)
	}
	if agentID == "" {
		return Outcome{}, fmt.Errorf("%w: no agent selected", domain.ErrInvalidRequest)
	}

	runCtx, err := w.acquire(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer w.release()

	id, err := w.svc.StartBuild(runCtx, w.opts.OwnerID, agentID, prompt)
	resumed := false
	if err != nil {
		if !errors.Is(err, domain.ErrTooManyRequests) {
			return Outcome{}, err
		}
		existing, ok := w.findInFlight(runCtx)
		if !ok {
			return Outcome{}, err
		}
		w.log.Info().Str("build_id", string(existing)).Msg("build already running, waiting on it")
		id = existing
		resumed = true
		// The new prompt was never submitted; keep the one the build ran with.
		prompt = ""
	}
	return w.follow(runCtx, id, prompt, resumed, onEvent)
}

// Resume follows an existing build to a terminal status.
func (w *Workflow) Resume(ctx context.Context, id domain.BuildID, onEvent func(Event)) (Outcome, error) {
	if id == "" {
		return Outcome{}, fmt.Errorf("%w: no build id", domain.ErrInvalidRequest)
	}
	runCtx, err := w.acquire(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer w.release()
	return w.follow(runCtx, id, w.promptFor(id), true, onEvent)
}

func (w *Workflow) findInFlight(ctx context.Context) (domain.BuildID, bool) {
	w.mu.Lock()
	tracked := w.tracked
	w.mu.Unlock()
	if tracked != "" {
		return tracked, true
	}
	if usage, ok := w.svc.(usageReporter); ok {
		u, err := usage.GetWorkspaceUsage(ctx, w.opts.OwnerID)
		if err != nil {
			w.log.Warn().Err(err).Msg("looking up active build")
		} else if u.ActiveBuildID != "" {
			return u.ActiveBuildID, true
		}
	}
	// Local history only fills in when the server cannot name the build.
	if w.history != nil {
		rec, ok, err := w.history.LatestInFlight(w.opts.OwnerID)
		if err != nil {
			w.log.Warn().Err(err).Msg("reading history")
		}
		if ok {
			return rec.ID, true
		}
	}
	return "", false
}

func (w *Workflow) promptFor(id domain.BuildID) string {
	if w.history == nil {
		return ""
	}
	records, err := w.history.Load()
	if err != nil {
		return ""
	}
	for _, r := range records {
		if r.ID == id {
			return r.Prompt
		}
	}
	return ""
}

func (w *Workflow) follow(ctx context.Context, id domain.BuildID, prompt string, resumed bool, onEvent func(Event)) (Outcome, error) {
	emit := func(e Event) {
		if onEvent != nil {
			e.BuildID = id
			onEvent(e)
		}
	}

	w.mu.Lock()
	w.active = id
	w.tracked = id
	w.mu.Unlock()

	if prompt == "" {
		prompt = w.promptFor(id)
	}
	out := Outcome{Prompt: prompt, Resumed: resumed, Build: domain.Build{ID: id, Status: domain.StatusQueued}}
	w.record(out)

	if resumed {
		emit(Event{Kind: EventResumed})
	} else {
		emit(Event{Kind: EventStarted})
	}

	final, err := w.svc.WaitForBuild(ctx, w.opts.OwnerID, id, func(b domain.Build, fresh []domain.BuildEvent) {
		emit(Event{Kind: EventProgress, Build: b, NewEvents: fresh})
	})
	if final.ID != "" {
		out.Build = final
	}
	if err != nil {
		w.record(out)
		return out, err
	}

	w.mu.Lock()
	w.tracked = ""
	w.mu.Unlock()

	if final.Status == domain.StatusCompleted {
		err = w.collect(ctx, &out, emit)
	}
	w.record(out)
	emit(Event{Kind: EventFinished, Build: out.Build})
	return out, err
}

// collect fetches the artifacts of a completed build and every file's content.
func (w *Workflow) collect(ctx context.Context, out *Outcome, emit func(Event)) error {
	id := out.Build.ID
	artifacts, err := w.svc.GetBuildArtifacts(ctx, w.opts.OwnerID, id)
	if err != nil {
		return err
	}
	out.Artifacts = artifacts
	out.Tree, out.Conflicts = filetree.Build(artifacts)
	for _, c := range out.Conflicts {
		w.log.Warn().Str("build_id", string(id)).Str("path", c.Path).Str("reason", c.Reason).Msg("artifact dropped from file tree")
	}
	emit(Event{Kind: EventArtifacts, Build: out.Build, Artifacts: artifacts})

	out.Files = NewFileCache(w.svc, w.opts.OwnerID, id)
	paths := filetree.Leaves(out.Tree)
	out.FileErrors = out.Files.Prefetch(ctx, paths, w.opts.FetchConcurrency)
	for p, ferr := range out.FileErrors {
		w.log.Warn().Err(ferr).Str("build_id", string(id)).Str("path", p).Msg("prefetching artifact file")
	}
	out.Findings = Findings(out.Files, paths)
	return nil
}

// Findings parses every cached audit report among paths.
func Findings(files *FileCache, paths []string) []audit.Finding {
	var findings []audit.Finding
	for _, p := range paths {
		if !audit.IsReport(p) {
			continue
		}
		if content, ok := files.Peek(p); ok {
			findings = append(findings, audit.ParseReport(content)...)
		}
	}
	return findings
}

func (w *Workflow) record(out Outcome) {
	if w.history == nil || out.Build.ID == "" {
		return
	}
	_, err := w.history.Record(store.HistoryRecord{
		ID:          out.Build.ID,
		Prompt:      out.Prompt,
		Status:      out.Build.Status,
		Time:        w.opts.Now(),
		OwnerUserID: w.opts.OwnerID,
	})
	if err != nil {
		w.log.Warn().Err(err).Str("build_id", string(out.Build.ID)).Msg("saving build history")
	}
}
