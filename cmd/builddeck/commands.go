package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/waabox/builddeck/internal/audit"
	"github.com/waabox/builddeck/internal/config"
	"github.com/waabox/builddeck/internal/domain"
	"github.com/waabox/builddeck/internal/filetree"
	"github.com/waabox/builddeck/internal/store"
	"github.com/waabox/builddeck/internal/workflow"
)

func newBuildCommand(a *app) *cobra.Command {
	var resume string

	cmd := &cobra.Command{
		Use:   "build [prompt]",
		Short: "Submit a build and follow it until it finishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.newWorkflow()
			if err != nil {
				return err
			}
			onEvent := func(e workflow.Event) { a.printEvent(e) }

			var out workflow.Outcome
			if resume != "" {
				out, err = wf.Resume(cmd.Context(), domain.BuildID(resume), onEvent)
			} else {
				if len(args) == 0 {
					return fmt.Errorf("%w: a prompt is required", domain.ErrInvalidRequest)
				}
				out, err = wf.Submit(cmd.Context(), strings.Join(args, " "), onEvent)
			}
			if err != nil {
				return err
			}
			return a.printOutcome(out)
		},
	}

	cmd.Flags().StringVar(&resume, "resume", "", "Follow an existing build instead of submitting a new one")
	return cmd
}

func (a *app) printEvent(e workflow.Event) {
	switch e.Kind {
	case workflow.EventStarted:
		fmt.Fprintf(a.out, "build %s submitted\n", e.BuildID)
	case workflow.EventResumed:
		fmt.Fprintf(a.out, "a build is already running, waiting on %s\n", e.BuildID)
	case workflow.EventProgress:
		for _, ev := range e.NewEvents {
			fmt.Fprintf(a.out, "  %s %s\n", formatTime(ev.Time), ev.Message)
		}
	case workflow.EventArtifacts:
		fmt.Fprintf(a.out, "%d artifacts, fetching files\n", len(e.Artifacts))
	}
}

func (a *app) printOutcome(out workflow.Outcome) error {
	b := out.Build
	fmt.Fprintf(a.out, "build %s %s\n", b.ID, b.Status)
	switch {
	case b.Status == domain.StatusCompleted:
	case b.Status == domain.StatusFailedResourceLimit:
		return fmt.Errorf("build %s exceeded its resource limit%s", b.ID, suffix(b.Error))
	case b.Status.IsFailure():
		return fmt.Errorf("build %s %s%s", b.ID, b.Status, suffix(b.Error))
	default:
		return nil
	}

	printTree(a, out.Tree)
	for path, err := range out.FileErrors {
		fmt.Fprintf(a.errOut, "could not fetch %s: %s\n", path, domain.UserMessage(err, ""))
	}
	if len(out.Findings) > 0 {
		printFindings(a, out.Findings)
	}
	return nil
}

func suffix(msg string) string {
	if msg == "" {
		return ""
	}
	return ": " + msg
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Local().Format("15:04:05")
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <build-id>",
		Short: "Show a build's status and events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			b, err := a.client.GetBuild(cmd.Context(), owner, domain.BuildID(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "build %s %s\n", b.ID, b.Status)
			if b.Error != "" {
				fmt.Fprintf(a.out, "error: %s\n", b.Error)
			}
			for _, ev := range b.Events {
				fmt.Fprintf(a.out, "  %s %s\n", formatTime(ev.Time), ev.Message)
			}
			return nil
		},
	}
}

func newFilesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "files <build-id>",
		Short: "List a completed build's files as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			artifacts, err := a.client.GetBuildArtifacts(cmd.Context(), owner, domain.BuildID(args[0]))
			if err != nil {
				return err
			}
			roots, conflicts := filetree.Build(artifacts)
			for _, c := range conflicts {
				a.log.Warn().Str("path", c.Path).Str("reason", c.Reason).Msg("artifact dropped from file tree")
			}
			printTree(a, roots)
			return nil
		},
	}
}

func printTree(a *app, roots []*filetree.Node) {
	for _, r := range filetree.Visible(roots, allExpanded(roots)) {
		name := r.Node.Name
		if r.Node.IsFolder() {
			name += "/"
		}
		fmt.Fprintf(a.out, "%s%s\n", strings.Repeat("  ", r.Depth), name)
	}
}

func allExpanded(roots []*filetree.Node) map[string]bool {
	expanded := make(map[string]bool)
	for _, p := range filetree.Folders(roots) {
		expanded[p] = true
	}
	return expanded
}

func newCatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <build-id> <path>",
		Short: "Print one file of a build",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			content, err := a.client.GetBuildFile(cmd.Context(), owner, domain.BuildID(args[0]), args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, content)
			if !strings.HasSuffix(content, "\n") {
				fmt.Fprintln(a.out)
			}
			return nil
		},
	}
}

func newAuditCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <build-id> [path]",
		Short: "Show the findings of a build's audit reports",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			id := domain.BuildID(args[0])
			var paths []string
			if len(args) == 2 {
				paths = []string{args[1]}
			} else {
				artifacts, err := a.client.GetBuildArtifacts(cmd.Context(), owner, id)
				if err != nil {
					return err
				}
				for _, art := range artifacts {
					if audit.IsReport(art.RelativePath) {
						paths = append(paths, art.RelativePath)
					}
				}
			}
			if len(paths) == 0 {
				fmt.Fprintln(a.out, "no audit report in this build")
				return nil
			}

			files := workflow.NewFileCache(a.client, owner, id)
			for path, err := range files.Prefetch(cmd.Context(), paths, a.cfg.FetchConcurrencyOrDefault()) {
				fmt.Fprintf(a.errOut, "could not fetch %s: %s\n", path, domain.UserMessage(err, ""))
			}
			printFindings(a, workflow.Findings(files, paths))
			return nil
		},
	}
}

func printFindings(a *app, findings []audit.Finding) {
	summary := audit.Summarize(findings)
	var counts []string
	for _, sev := range audit.Severities {
		counts = append(counts, fmt.Sprintf("%s %d", sev, summary[sev]))
	}
	fmt.Fprintf(a.out, "findings: %s\n", strings.Join(counts, ", "))
	for _, f := range findings {
		line := ""
		if f.Line > 0 {
			line = fmt.Sprintf(" (line %d)", f.Line)
		}
		fmt.Fprintf(a.out, "  [%s] %s%s\n", f.Severity, f.Title, line)
		if f.Recommendation != "" {
			fmt.Fprintf(a.out, "      recommendation: %s\n", f.Recommendation)
		}
	}
}

func newPublishCommand(a *app) *cobra.Command {
	var title, description, category string

	cmd := &cobra.Command{
		Use:   "publish <build-id>",
		Short: "Publish a completed build to the app store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			res, err := a.client.PublishBuild(cmd.Context(), owner, domain.BuildID(args[0]), title, description, category)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "published as %s\n", res.AppID)
			if res.URL != "" {
				fmt.Fprintln(a.out, res.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Store listing title")
	cmd.Flags().StringVar(&description, "description", "", "Store listing description")
	cmd.Flags().StringVar(&category, "category", "", "Store category")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recent builds remembered on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.history.Load()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(a.out, "no builds yet")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(a.out, "%-24s %-22s %s  %s\n", r.ID, r.Status, r.Time.Local().Format("2006-01-02 15:04"), r.Prompt)
			}
			return nil
		},
	}
}

func newStoreCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Browse and use the app store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newStoreListCommand(a))
	cmd.AddCommand(newStoreLikeCommand(a))
	cmd.AddCommand(newStoreInstallCommand(a))
	return cmd
}

func newStoreListCommand(a *app) *cobra.Command {
	var (
		limit    int
		category string
		search   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published apps",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = a.cfg.StoreLimitOrDefault()
			}
			apps, err := a.client.GetStoreApps(cmd.Context(), owner, limit, category, search)
			if err != nil {
				return err
			}
			for _, item := range apps {
				fmt.Fprintf(a.out, "%-24s %-30s %-12s ♥ %-5d ⤓ %d\n", item.ID, item.Title, item.Category, item.Likes, item.Installs)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of apps to list")
	cmd.Flags().StringVar(&category, "category", "", "Only list apps in this category")
	cmd.Flags().StringVar(&search, "search", "", "Only list apps matching this text")
	return cmd
}

func newStoreLikeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "like <app-id>",
		Short: "Like an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			likes, err := a.client.LikeApp(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s now has %d likes\n", args[0], likes)
			return nil
		},
	}
}

func newStoreInstallCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install <app-id>",
		Short: "Install an app into your workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			res, err := a.client.InstallApp(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "installed %s into workspace %s (%d installs)\n", res.AppID, res.WorkspaceID, res.Installs)
			return nil
		},
	}
}

func newUsageCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show workspace build and storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			u, err := a.client.GetWorkspaceUsage(cmd.Context(), owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "builds:  %d / %d\n", u.BuildsUsed, u.BuildsLimit)
			fmt.Fprintf(a.out, "storage: %d / %d bytes\n", u.StorageBytes, u.StorageLimit)
			if u.ActiveBuildID != "" {
				fmt.Fprintf(a.out, "running: %s\n", u.ActiveBuildID)
			}
			return nil
		},
	}
}

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the selected agent a question and stream its answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerID()
			if err != nil {
				return err
			}
			agent := a.agentID()
			if agent == "" {
				return fmt.Errorf("%w: no agent selected", domain.ErrInvalidRequest)
			}
			msgs := []domain.ChatMessage{{Role: "user", Content: strings.Join(args, " ")}}
			_, err = a.client.Chat(cmd.Context(), owner, agent, msgs, func(delta string) {
				fmt.Fprint(a.out, delta)
			})
			fmt.Fprintln(a.out)
			return err
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change where and as whom builds run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "config file:    %s\n", a.configPath)
			fmt.Fprintf(a.out, "state file:     %s\n", a.kv.Path())
			fmt.Fprintf(a.out, "api base:       %s\n", a.baseURL())
			fmt.Fprintf(a.out, "default tunnel: %t\n", a.prefs.UseDefaultTunnel)
			fmt.Fprintf(a.out, "owner:          %s\n", a.cfg.API.OwnerID)
			fmt.Fprintf(a.out, "agent:          %s\n", a.agentID())
			fmt.Fprintf(a.out, "poll interval:  %s\n", a.cfg.PollIntervalOrDefault())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-base <url>",
		Short: "Use a custom API host instead of the default tunnel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := strings.TrimSpace(args[0])
			if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
				return fmt.Errorf("%w: base URL must start with http:// or https://", domain.ErrInvalidRequest)
			}
			p := a.prefs
			p.APIBase = base
			p.UseDefaultTunnel = false
			return a.savePrefs(p)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use-default",
		Short: "Go back to the default tunnel host",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.prefs
			p.UseDefaultTunnel = true
			return a.savePrefs(p)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "agent <agent-id>",
		Short: "Select the agent builds run with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.prefs
			p.SelectedAgent = strings.TrimSpace(args[0])
			return a.savePrefs(p)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "owner <user-id>",
		Short: "Save the user id builds are submitted for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := strings.TrimSpace(args[0])
			if owner == "" {
				return errors.New("owner id cannot be empty")
			}
			if err := config.Update(a.configPath, func(c *config.Config) { c.API.OwnerID = owner }); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "owner saved to %s\n", a.configPath)
			return nil
		},
	})
	return cmd
}

func (a *app) savePrefs(p store.Preferences) error {
	if err := store.SavePreferences(a.kv, p); err != nil {
		return err
	}
	a.prefs = p
	fmt.Fprintf(a.out, "api base: %s\nagent:    %s\n", a.baseURL(), a.agentID())
	return nil
}
