package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/waabox/builddeck/internal/agentapi"
	"github.com/waabox/builddeck/internal/config"
	"github.com/waabox/builddeck/internal/domain"
	"github.com/waabox/builddeck/internal/logging"
	"github.com/waabox/builddeck/internal/store"
	"github.com/waabox/builddeck/internal/telemetry"
	"github.com/waabox/builddeck/internal/tui"
	"github.com/waabox/builddeck/internal/workflow"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	a := &app{out: os.Stdout, errOut: os.Stderr}
	err := newRootCommand(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", domain.UserMessage(err, ""))
		os.Exit(1)
	}
}

// app holds what every command needs, loaded once before the command runs.
type app struct {
	configPath string
	agentFlag  string

	cfg     config.Config
	kv      *store.FileKV
	prefs   store.Preferences
	history *store.History
	client  *agentapi.Client
	log     zerolog.Logger

	out      io.Writer
	errOut   io.Writer
	shutdown telemetry.ShutdownFunc
	closers  []io.Closer
}

func (a *app) setup() error {
	if a.configPath == "" {
		a.configPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadFrom(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.log = logging.Console(a.errOut, level)

	a.shutdown, err = telemetry.InitTracer("builddeck", version, cfg.Telemetry.TraceFile)
	if err != nil {
		a.log.Warn().Err(err).Msg("tracing disabled")
	}

	a.kv, err = store.OpenFileKV(cfg.StatePathOrDefault())
	if err != nil {
		return err
	}
	a.prefs, err = store.LoadPreferences(a.kv)
	if err != nil {
		return err
	}
	a.history = store.NewHistory(a.kv)

	a.client = agentapi.NewClient(a.baseURL(), cfg.TimeoutOrDefault())
	a.client.SetPollInterval(cfg.PollIntervalOrDefault())
	a.client.SetLogger(a.log)
	return nil
}

// useLogFile sends logs to the configured file; the TUI owns the terminal.
func (a *app) useLogFile() {
	level, _ := logging.ParseLevel(a.cfg.Log.Level)
	l, closer, err := logging.File(a.cfg.LogFileOrDefault(), level)
	if err != nil {
		a.log = zerolog.Nop()
	} else {
		a.log = l
		a.closers = append(a.closers, closer)
	}
	a.client.SetLogger(a.log)
}

func (a *app) close() {
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			a.log.Error().Err(err).Msg("flushing traces")
		}
	}
	for _, c := range a.closers {
		c.Close()
	}
}

// baseURL resolves the API host: BUILDDECK_API_BASE or api.base_url first,
// then the saved preference.
func (a *app) baseURL() string {
	if a.cfg.API.BaseURL != "" {
		return strings.TrimRight(a.cfg.API.BaseURL, "/")
	}
	return a.prefs.BaseURL(a.cfg.DefaultBaseURLOrDefault())
}

// agentID resolves the agent: --agent first, then config, then the saved selection.
func (a *app) agentID() string {
	switch {
	case a.agentFlag != "":
		return a.agentFlag
	case a.cfg.Build.AgentID != "":
		return a.cfg.Build.AgentID
	default:
		return a.prefs.SelectedAgent
	}
}

func (a *app) ownerID() (string, error) {
	if a.cfg.API.OwnerID == "" {
		return "", fmt.Errorf("%w: no owner id, set BUILDDECK_OWNER_ID or run 'builddeck config owner <id>'", domain.ErrInvalidRequest)
	}
	return a.cfg.API.OwnerID, nil
}

func (a *app) newWorkflow() (*workflow.Workflow, error) {
	owner, err := a.ownerID()
	if err != nil {
		return nil, err
	}
	return workflow.New(a.client, a.history, workflow.Options{
		OwnerID:          owner,
		AgentID:          a.agentID(),
		FetchConcurrency: a.cfg.FetchConcurrencyOrDefault(),
		Logger:           a.log,
	}), nil
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "builddeck",
		Short:         "Submit smart-contract builds to an agent service and browse their output",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return cmd.Help()
			}
			return a.runTUI()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config.toml (default ~/.config/builddeck/config.toml)")
	cmd.PersistentFlags().StringVar(&a.agentFlag, "agent", "", "Agent to build with, overriding the saved selection")

	cmd.AddCommand(newBuildCommand(a))
	cmd.AddCommand(newStatusCommand(a))
	cmd.AddCommand(newFilesCommand(a))
	cmd.AddCommand(newCatCommand(a))
	cmd.AddCommand(newAuditCommand(a))
	cmd.AddCommand(newPublishCommand(a))
	cmd.AddCommand(newHistoryCommand(a))
	cmd.AddCommand(newStoreCommand(a))
	cmd.AddCommand(newUsageCommand(a))
	cmd.AddCommand(newChatCommand(a))
	cmd.AddCommand(newConfigCommand(a))
	return cmd
}

func (a *app) runTUI() error {
	wf, err := a.newWorkflow()
	if err != nil {
		return err
	}
	a.useLogFile()
	a.log.Info().Str("base_url", a.client.BaseURL()).Str("agent", wf.Agent()).Msg("starting tui")
	return tui.Run(tui.Deps{
		Workflow:   wf,
		Store:      a.client,
		Chat:       a.client,
		History:    a.history,
		StoreLimit: a.cfg.StoreLimitOrDefault(),
		Logger:     a.log,
	})
}
