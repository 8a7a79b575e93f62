package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/waabox/builddeck/internal/domain"
	"github.com/waabox/builddeck/internal/store"
	"github.com/waabox/builddeck/internal/workflow"
)

// BuildEventMsg carries one workflow notification of the running build.
// It is exported so that tests can inject it directly into AppModel.Update.
type BuildEventMsg struct {
	Event workflow.Event
}

// BuildFinishedMsg is sent once the workflow returns.
type BuildFinishedMsg struct {
	Outcome workflow.Outcome
	Err     error
}

// FileLoadedMsg is sent when a file's content has been fetched for the viewer.
type FileLoadedMsg struct {
	Path    string
	Content string
	Err     error
}

// HistoryLoadedMsg is sent when the local build history has been read.
type HistoryLoadedMsg struct {
	Records []store.HistoryRecord
	Err     error
}

// StoreLoadedMsg is sent when the store listing has been fetched.
type StoreLoadedMsg struct {
	Apps []domain.StoreApp
	Err  error
}

// LikeResultMsg is sent when the server answered a like.
type LikeResultMsg struct {
	AppID string
	Likes int
	Err   error
}

// InstallResultMsg is sent when the server answered an install.
type InstallResultMsg struct {
	AppID  string
	Result domain.InstallResult
	Err    error
}

// UsageLoadedMsg is sent when workspace usage has been fetched.
type UsageLoadedMsg struct {
	Usage domain.WorkspaceUsage
	Err   error
}

// ChatDeltaMsg carries one streamed fragment of the assistant's reply.
type ChatDeltaMsg struct {
	Text string
}

// ChatDoneMsg is sent when the chat stream ends.
type ChatDoneMsg struct {
	Reply string
	Err   error
}

// tickMsg is sent by the usage refresh ticker.
type tickMsg struct{}

// tab is a top-level panel of the application.
type tab int

const (
	tabBuild tab = iota
	tabFiles
	tabFindings
	tabHistory
	tabStore
	tabChat
)

var tabNames = []string{"Build", "Files", "Findings", "History", "Store", "Chat"}

const (
	usageRefresh  = 30 * time.Second
	maxEventLines = 500
)

// Deps are the collaborators of the TUI.
type Deps struct {
	Workflow   *workflow.Workflow
	Store      domain.StoreService
	Chat       domain.ChatService
	History    *store.History
	StoreLimit int
	Logger     zerolog.Logger
}

// buildRun connects a workflow goroutine to the Bubbletea loop.
type buildRun struct {
	events chan workflow.Event
	done   chan BuildFinishedMsg
}

// chatRun connects a streaming chat goroutine to the Bubbletea loop.
type chatRun struct {
	deltas chan string
	done   chan ChatDoneMsg
	cancel context.CancelFunc
}

// AppModel is the root Bubbletea model for builddeck.
type AppModel struct {
	deps   Deps
	tab    tab
	width  int
	height int
	// Status line
	notice    string
	noticeErr bool
	// Build tab
	prompt   InputModel
	building bool
	run      *buildRun
	buildID  domain.BuildID
	status   domain.BuildStatus
	events   []string
	// Output of the last completed build
	outcome  workflow.Outcome
	tree     FileTreeModel
	findings FindingListModel
	// File viewer state
	viewing     bool
	fileLoading bool
	filePath    string
	fileContent string
	fileOffset  int
	// History and store
	history     HistoryListModel
	storeList   StoreListModel
	storeLoaded bool
	usage       domain.WorkspaceUsage
	hasUsage    bool
	// Chat tab
	chatInput InputModel
	chatLog   []domain.ChatMessage
	chatting  bool
	chatReply string
	chat      *chatRun
}

// NewAppModel creates the root application model.
func NewAppModel(deps Deps) AppModel {
	if deps.StoreLimit <= 0 {
		deps.StoreLimit = 20
	}
	return AppModel{
		deps:      deps,
		prompt:    NewInputModel("Describe the contract to build"),
		chatInput: NewInputModel("Ask the agent"),
		tree:      NewFileTreeModel(nil),
		findings:  NewFindingListModel(nil),
		history:   NewHistoryListModel(nil),
		storeList: NewStoreListModel(nil),
	}
}

// Init loads history and usage and starts the usage ticker.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadHistory(), m.loadUsage(), tickEvery(usageRefresh))
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m AppModel) loadHistory() tea.Cmd {
	history := m.deps.History
	return func() tea.Msg {
		if history == nil {
			return HistoryLoadedMsg{}
		}
		records, err := history.Load()
		return HistoryLoadedMsg{Records: records, Err: err}
	}
}

func (m AppModel) loadUsage() tea.Cmd {
	svc, owner := m.deps.Store, m.ownerID()
	if svc == nil {
		return nil
	}
	return func() tea.Msg {
		usage, err := svc.GetWorkspaceUsage(context.Background(), owner)
		return UsageLoadedMsg{Usage: usage, Err: err}
	}
}

func (m AppModel) loadStore() tea.Cmd {
	svc, owner, limit := m.deps.Store, m.ownerID(), m.deps.StoreLimit
	return func() tea.Msg {
		apps, err := svc.GetStoreApps(context.Background(), owner, limit, "", "")
		return StoreLoadedMsg{Apps: apps, Err: err}
	}
}

func (m AppModel) likeApp(appID string) tea.Cmd {
	svc, owner := m.deps.Store, m.ownerID()
	return func() tea.Msg {
		likes, err := svc.LikeApp(context.Background(), owner, appID)
		return LikeResultMsg{AppID: appID, Likes: likes, Err: err}
	}
}

func (m AppModel) installApp(appID string) tea.Cmd {
	svc, owner := m.deps.Store, m.ownerID()
	return func() tea.Msg {
		res, err := svc.InstallApp(context.Background(), owner, appID)
		return InstallResultMsg{AppID: appID, Result: res, Err: err}
	}
}

func (m AppModel) loadFile(path string) tea.Cmd {
	files := m.outcome.Files
	return func() tea.Msg {
		content, err := files.Get(context.Background(), path)
		return FileLoadedMsg{Path: path, Content: content, Err: err}
	}
}

func (m AppModel) ownerID() string {
	if m.deps.Workflow == nil {
		return ""
	}
	return m.deps.Workflow.OwnerID()
}

// startRun runs fn on its own goroutine and relays its events into the loop.
func (m AppModel) startRun(fn func(ctx context.Context, onEvent func(workflow.Event)) (workflow.Outcome, error)) (AppModel, tea.Cmd) {
	run := &buildRun{
		events: make(chan workflow.Event, 64),
		done:   make(chan BuildFinishedMsg, 1),
	}
	go func() {
		out, err := fn(context.Background(), func(e workflow.Event) { run.events <- e })
		close(run.events)
		run.done <- BuildFinishedMsg{Outcome: out, Err: err}
	}()
	m.run = run
	m.building = true
	m.buildID = ""
	m.events = nil
	m.status = domain.StatusQueued
	m.setNotice("Submitting build...", false)
	return m, listenBuild(run)
}

func listenBuild(run *buildRun) tea.Cmd {
	return func() tea.Msg {
		if e, ok := <-run.events; ok {
			return BuildEventMsg{Event: e}
		}
		return <-run.done
	}
}

func (m AppModel) submit() (AppModel, tea.Cmd) {
	if m.building {
		m.setNotice(domain.ErrBuildInFlight.Error(), true)
		return m, nil
	}
	prompt := strings.TrimSpace(m.prompt.Value())
	if prompt == "" {
		return m, nil
	}
	wf := m.deps.Workflow
	m.prompt = m.prompt.Reset()
	return m.startRun(func(ctx context.Context, onEvent func(workflow.Event)) (workflow.Outcome, error) {
		return wf.Submit(ctx, prompt, onEvent)
	})
}

func (m AppModel) resume(id domain.BuildID) (AppModel, tea.Cmd) {
	if m.building {
		m.setNotice(domain.ErrBuildInFlight.Error(), true)
		return m, nil
	}
	wf := m.deps.Workflow
	m.tab = tabBuild
	return m.startRun(func(ctx context.Context, onEvent func(workflow.Event)) (workflow.Outcome, error) {
		return wf.Resume(ctx, id, onEvent)
	})
}

func (m AppModel) sendChat() (AppModel, tea.Cmd) {
	if m.chatting || m.deps.Chat == nil {
		return m, nil
	}
	text := strings.TrimSpace(m.chatInput.Value())
	if text == "" {
		return m, nil
	}
	m.chatInput = m.chatInput.Reset()
	m.chatLog = append(append([]domain.ChatMessage(nil), m.chatLog...), domain.ChatMessage{Role: "user", Content: text})
	m.chatting = true
	m.chatReply = ""

	svc, owner, agent := m.deps.Chat, m.ownerID(), ""
	if m.deps.Workflow != nil {
		agent = m.deps.Workflow.Agent()
	}
	history := m.chatLog
	ctx, cancel := context.WithCancel(context.Background())
	run := &chatRun{deltas: make(chan string, 64), done: make(chan ChatDoneMsg, 1), cancel: cancel}
	go func() {
		defer cancel()
		reply, err := svc.Chat(ctx, owner, agent, history, func(d string) { run.deltas <- d })
		close(run.deltas)
		run.done <- ChatDoneMsg{Reply: reply, Err: err}
	}()
	m.chat = run
	return m, listenChat(run)
}

func listenChat(run *chatRun) tea.Cmd {
	return func() tea.Msg {
		if d, ok := <-run.deltas; ok {
			return ChatDeltaMsg{Text: d}
		}
		return <-run.done
	}
}

func (m *AppModel) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m *AppModel) appendEvent(line string) {
	m.events = append(m.events, line)
	if len(m.events) > maxEventLines {
		m.events = m.events[len(m.events)-maxEventLines:]
	}
}

func (m AppModel) cancelBuild() {
	if m.building && m.deps.Workflow != nil {
		m.deps.Workflow.Cancel()
	}
}

// stop cancels everything still running on behalf of the model before it quits.
func (m AppModel) stop() {
	m.cancelBuild()
	if m.chat != nil {
		m.chat.cancel()
	}
}

// Update handles all incoming messages and key events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(m.loadUsage(), tickEvery(usageRefresh))

	case BuildEventMsg:
		m.applyEvent(msg.Event)
		if m.run != nil {
			return m, listenBuild(m.run)
		}

	case BuildFinishedMsg:
		m.finishBuild(msg)
		return m, tea.Batch(m.loadHistory(), m.loadUsage())

	case FileLoadedMsg:
		m.fileLoading = false
		if msg.Err != nil {
			m.setNotice(fmt.Sprintf("Could not load %s: %s", msg.Path, domain.UserMessage(msg.Err, "")), true)
			return m, nil
		}
		m.openViewer(msg.Path, msg.Content)

	case HistoryLoadedMsg:
		if msg.Err != nil {
			m.deps.Logger.Warn().Err(msg.Err).Msg("loading history")
			return m, nil
		}
		m.history = NewHistoryListModel(msg.Records)

	case StoreLoadedMsg:
		if msg.Err != nil {
			m.setNotice(domain.UserMessage(msg.Err, "Could not load the store"), true)
			return m, nil
		}
		m.storeLoaded = true
		m.storeList = NewStoreListModel(msg.Apps)

	case LikeResultMsg:
		if msg.Err != nil {
			m.storeList = m.storeList.RollbackLike(msg.AppID)
			m.setNotice(domain.UserMessage(msg.Err, "Like failed"), true)
			return m, nil
		}
		m.storeList = m.storeList.ConfirmLike(msg.AppID, msg.Likes)

	case InstallResultMsg:
		if msg.Err != nil {
			m.setNotice(domain.UserMessage(msg.Err, "Install failed"), true)
			return m, nil
		}
		m.storeList = m.storeList.Installed(msg.AppID, msg.Result.Installs)
		m.setNotice(fmt.Sprintf("Installed %s into workspace %s", msg.AppID, msg.Result.WorkspaceID), false)

	case UsageLoadedMsg:
		if msg.Err != nil {
			m.deps.Logger.Debug().Err(msg.Err).Msg("loading workspace usage")
			return m, nil
		}
		m.usage = msg.Usage
		m.hasUsage = true

	case ChatDeltaMsg:
		m.chatReply += msg.Text
		if m.chat != nil {
			return m, listenChat(m.chat)
		}

	case ChatDoneMsg:
		m.chatting = false
		m.chat = nil
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.setNotice(domain.UserMessage(msg.Err, "Chat failed"), true)
		}
		reply := msg.Reply
		if reply == "" {
			reply = m.chatReply
		}
		if reply != "" {
			m.chatLog = append(append([]domain.ChatMessage(nil), m.chatLog...), domain.ChatMessage{Role: "assistant", Content: reply})
		}
		m.chatReply = ""

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stop()
			return m, tea.Quit
		}
		if m.viewing {
			return m.updateViewer(msg)
		}
		switch msg.String() {
		case "tab":
			return m.switchTab((m.tab + 1) % tab(len(tabNames)))
		case "shift+tab":
			return m.switchTab((m.tab + tab(len(tabNames)) - 1) % tab(len(tabNames)))
		}
		switch m.tab {
		case tabBuild:
			return m.updateBuild(msg)
		case tabFiles:
			return m.updateFiles(msg)
		case tabFindings:
			return m.updateFindings(msg)
		case tabHistory:
			return m.updateHistory(msg)
		case tabStore:
			return m.updateStore(msg)
		case tabChat:
			return m.updateChat(msg)
		}
	}
	return m, nil
}

func (m *AppModel) applyEvent(e workflow.Event) {
	m.buildID = e.BuildID
	switch e.Kind {
	case workflow.EventStarted:
		m.appendEvent(fmt.Sprintf("Build %s started", e.BuildID))
		m.setNotice("Build running", false)
	case workflow.EventResumed:
		m.appendEvent(fmt.Sprintf("Waiting on running build %s", e.BuildID))
		m.setNotice("A build is already running, following it", false)
	case workflow.EventProgress:
		if e.Build.Status != "" && e.Build.Status != m.status {
			m.status = e.Build.Status
			m.appendEvent(fmt.Sprintf("status: %s", e.Build.Status))
		}
		for _, ev := range e.NewEvents {
			stamp := ""
			if !ev.Time.IsZero() {
				stamp = ev.Time.Local().Format("15:04:05") + " "
			}
			m.appendEvent(stamp + ev.Message)
		}
	case workflow.EventArtifacts:
		m.appendEvent(fmt.Sprintf("%d artifacts, fetching files", len(e.Artifacts)))
	case workflow.EventFinished:
		m.status = e.Build.Status
	}
}

func (m *AppModel) finishBuild(msg BuildFinishedMsg) {
	m.building = false
	m.run = nil
	out := msg.Outcome
	if out.Build.Status != "" {
		m.status = out.Build.Status
	}
	if msg.Err != nil {
		if errors.Is(msg.Err, context.Canceled) {
			m.setNotice("Stopped following the build", false)
			return
		}
		m.deps.Logger.Warn().Err(msg.Err).Str("build_id", string(out.Build.ID)).Msg("build failed")
		m.setNotice(domain.UserMessage(msg.Err, "Build failed"), true)
		return
	}
	switch out.Build.Status {
	case domain.StatusCompleted:
		m.outcome = out
		m.tree = NewFileTreeModel(out.Tree)
		m.findings = NewFindingListModel(out.Findings)
		text := fmt.Sprintf("Build completed: %d files", len(out.Artifacts))
		if n := len(out.FileErrors); n > 0 {
			text += fmt.Sprintf(", %d failed to load", n)
		}
		m.setNotice(text, false)
	case domain.StatusFailedResourceLimit:
		m.setNotice(firstNonEmpty(out.Build.Error, "Build exceeded its resource limit"), true)
	case domain.StatusCancelled:
		m.setNotice("Build was cancelled", true)
	default:
		m.setNotice(firstNonEmpty(out.Build.Error, "Build failed"), true)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (m AppModel) switchTab(t tab) (tea.Model, tea.Cmd) {
	m.tab = t
	if t == tabStore && !m.storeLoaded && m.deps.Store != nil {
		return m, m.loadStore()
	}
	if t == tabHistory {
		return m, m.loadHistory()
	}
	return m, nil
}

func (m AppModel) updateBuild(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyRunes:
		m.prompt = m.prompt.Insert(msg.Runes)
	case tea.KeySpace:
		m.prompt = m.prompt.Insert([]rune{' '})
	case tea.KeyBackspace:
		m.prompt = m.prompt.Backspace()
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyEsc:
		if m.building {
			m.cancelBuild()
			m.setNotice("Cancelling...", false)
		}
	}
	return m, nil
}

func (m AppModel) updateFiles(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.tree = m.tree.MoveDown()
	case "up":
		m.tree = m.tree.MoveUp()
	case "enter":
		n, ok := m.tree.Selected()
		if !ok {
			return m, nil
		}
		if n.IsFolder() {
			m.tree = m.tree.Toggle()
			return m, nil
		}
		if m.outcome.Files == nil || m.fileLoading {
			return m, nil
		}
		if content, cached := m.outcome.Files.Peek(n.Path); cached {
			m.openViewer(n.Path, content)
			return m, nil
		}
		m.fileLoading = true
		return m, m.loadFile(n.Path)
	case "q":
		m.stop()
		return m, tea.Quit
	}
	return m, nil
}

func (m AppModel) updateFindings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.findings = m.findings.MoveDown()
	case "up":
		m.findings = m.findings.MoveUp()
	case "q":
		m.stop()
		return m, tea.Quit
	}
	return m, nil
}

func (m AppModel) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.history = m.history.MoveDown()
	case "up":
		m.history = m.history.MoveUp()
	case "enter":
		if rec, ok := m.history.Selected(); ok {
			return m.resume(rec.ID)
		}
	case "r":
		return m, m.loadHistory()
	case "q":
		m.stop()
		return m, tea.Quit
	}
	return m, nil
}

func (m AppModel) updateStore(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.storeList = m.storeList.MoveDown()
	case "up":
		m.storeList = m.storeList.MoveUp()
	case "l":
		if app, ok := m.storeList.Selected(); ok {
			m.storeList = m.storeList.Like(app.ID)
			return m, m.likeApp(app.ID)
		}
	case "i":
		if app, ok := m.storeList.Selected(); ok {
			m.setNotice(fmt.Sprintf("Installing %s...", app.Title), false)
			return m, m.installApp(app.ID)
		}
	case "r":
		if m.deps.Store != nil {
			return m, m.loadStore()
		}
	case "q":
		m.stop()
		return m, tea.Quit
	}
	return m, nil
}

func (m AppModel) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyRunes:
		m.chatInput = m.chatInput.Insert(msg.Runes)
	case tea.KeySpace:
		m.chatInput = m.chatInput.Insert([]rune{' '})
	case tea.KeyBackspace:
		m.chatInput = m.chatInput.Backspace()
	case tea.KeyEnter:
		return m.sendChat()
	}
	return m, nil
}

func (m *AppModel) openViewer(path, content string) {
	m.viewing = true
	m.filePath = path
	m.fileContent = content
	m.fileOffset = 0
}

func (m AppModel) updateViewer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	maxOffset := strings.Count(m.fileContent, "\n")
	switch msg.String() {
	case "down":
		if m.fileOffset < maxOffset {
			m.fileOffset++
		}
	case "up":
		if m.fileOffset > 0 {
			m.fileOffset--
		}
	case "pgup":
		m.fileOffset -= m.visibleLines()
		if m.fileOffset < 0 {
			m.fileOffset = 0
		}
	case "pgdown":
		m.fileOffset += m.visibleLines()
		if m.fileOffset > maxOffset {
			m.fileOffset = maxOffset
		}
	case "g":
		m.fileOffset = 0
	case "G":
		m.fileOffset = maxOffset
	case "esc", "q":
		m.viewing = false
		m.fileContent = ""
		m.fileOffset = 0
	}
	return m, nil
}

// visibleLines returns the number of body lines that fit the terminal.
func (m AppModel) visibleLines() int {
	lines := m.height - 6
	if lines < 10 {
		return 10
	}
	return lines
}

// View renders the full TUI.
func (m AppModel) View() string {
	if m.fileLoading {
		return "Loading file...\n"
	}
	if m.viewing {
		return m.renderViewer()
	}

	var body, footer string
	switch m.tab {
	case tabBuild:
		body = m.renderBuild()
		footer = " enter: submit   esc: stop following   tab: next panel   ctrl+c: quit\n"
	case tabFiles:
		body = m.tree.View(m.outcome.FileErrors)
		footer = " ↑/↓: navigate   enter: open/toggle   tab: next panel   q: quit\n"
	case tabFindings:
		body = m.findings.View()
		footer = " ↑/↓: navigate   tab: next panel   q: quit\n"
	case tabHistory:
		body = m.history.View()
		footer = " ↑/↓: navigate   enter: open build   r: reload   tab: next panel   q: quit\n"
	case tabStore:
		body = m.storeList.View()
		footer = " ↑/↓: navigate   l: like   i: install   r: reload   tab: next panel   q: quit\n"
	case tabChat:
		body = m.renderChat()
		footer = " enter: send   tab: next panel   ctrl+c: quit\n"
	}
	return m.renderHeader() + separator + body + "\n" + separator + m.renderNotice() + footer
}

func (m AppModel) renderHeader() string {
	var tabs []string
	for i, name := range tabNames {
		if tab(i) == m.tab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, dimStyle.Render(name))
		}
	}
	agent := ""
	if m.deps.Workflow != nil {
		agent = m.deps.Workflow.Agent()
	}
	header := fmt.Sprintf(" %s | agent %s", titleStyle.Render("builddeck"), firstNonEmpty(agent, "-"))
	if m.hasUsage {
		header += fmt.Sprintf(" | builds %d/%d", m.usage.BuildsUsed, m.usage.BuildsLimit)
	}
	return header + "\n " + strings.Join(tabs, "  ") + "\n"
}

func (m AppModel) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeErr {
		return " " + errorStyle.Render(m.notice) + "\n"
	}
	return " " + m.notice + "\n"
}

func (m AppModel) renderBuild() string {
	var sb strings.Builder
	sb.WriteString(m.prompt.View(!m.building) + "\n\n")
	if m.buildID != "" {
		sb.WriteString(fmt.Sprintf(" %s %s  %s\n", statusIcon(m.status), m.buildID, m.status))
	}
	lines := m.events
	if limit := m.visibleLines() - 4; len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	for _, l := range lines {
		sb.WriteString(" " + l + "\n")
	}
	return sb.String()
}

func (m AppModel) renderChat() string {
	var sb strings.Builder
	for _, msg := range m.chatLog {
		who := titleStyle.Render("you")
		if msg.Role == "assistant" {
			who = okStyle.Render("agent")
		}
		sb.WriteString(fmt.Sprintf(" %s: %s\n", who, msg.Content))
	}
	if m.chatting {
		sb.WriteString(fmt.Sprintf(" %s: %s…\n", okStyle.Render("agent"), m.chatReply))
	}
	sb.WriteString("\n" + m.chatInput.View(!m.chatting) + "\n")
	return sb.String()
}

func (m AppModel) renderViewer() string {
	header := fmt.Sprintf(" builddeck  %s  [file] %s\n", m.buildID, m.filePath)
	footer := " ↑/↓: scroll   PgUp/PgDn: page   g/G: top/bottom   esc: back\n"

	lines := strings.Split(m.fileContent, "\n")
	start := m.fileOffset
	if start >= len(lines) {
		start = len(lines) - 1
	}
	if start < 0 {
		start = 0
	}
	end := start + m.visibleLines()
	if end > len(lines) {
		end = len(lines)
	}
	return header + separator + strings.Join(lines[start:end], "\n") + "\n" + separator + footer
}

// Run starts the Bubbletea program and blocks until it exits.
func Run(deps Deps) error {
	p := tea.NewProgram(NewAppModel(deps), tea.WithAltScreen())
	final, err := p.Run()
	if m, ok := final.(AppModel); ok {
		m.stop()
	}
	if deps.Workflow != nil {
		deps.Workflow.Cancel()
	}
	return err
}
