package main

import (
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/docsage/docsage/agent"
	"github.com/docsage/docsage/approval"
	"github.com/docsage/docsage/doctools"
	"github.com/docsage/docsage/llm"
	"github.com/docsage/docsage/mutate"
	"github.com/docsage/docsage/store"
	"github.com/docsage/docsage/workspace"
)

// envConfig holds settings read from the environment; flags override them.
type envConfig struct {
	WorkspaceRoot string `env:"DOCUMENT_WORKSPACE_ROOT"`
	AutoApprove   bool   `env:"DOCUMENT_EDIT_AUTO_APPROVE"`
	Model         string `env:"DOCSAGE_MODEL"`
	DBPath        string `env:"DOCSAGE_DB_PATH"`
}

type options struct {
	workspaceRoot string
	mcpRoot       string
	sessionID     string
	dbPath        string
	model         string
	autoApprove   bool
	noApproval    bool
	showToolCalls bool
	showReasoning bool
	instructions  string
}

func newRootCmd() *cobra.Command {
	var opts options
	var noToolCalls, noReasoning bool

	cmd := &cobra.Command{
		Use:   "docsage",
		Short: "Conversational agent for analyzing and editing PDF, DOCX, and XLSX files",
		Long: `docsage starts an interactive session with a document analysis agent.
The agent reads and edits documents inside a workspace directory; every
edit is shown as a diff and applied only after you approve it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.showToolCalls = !noToolCalls
			opts.showReasoning = !noReasoning
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.workspaceRoot, "workspace-root", "", "directory the agent may read and write (default: current directory)")
	cmd.Flags().StringVar(&opts.sessionID, "session-id", "", "resume a previous session by id")
	cmd.Flags().StringVar(&opts.dbPath, "db-path", "", "SQLite file for session history (default: docsage.db)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model to use (default: gpt-4o)")
	cmd.Flags().BoolVar(&opts.autoApprove, "auto-approve", false, "show each proposed edit and apply it without prompting")
	cmd.Flags().BoolVar(&opts.noApproval, "no-approval", false, "apply edits directly, with no diff preview or prompts")
	cmd.Flags().BoolVar(&noToolCalls, "no-tool-calls", false, "hide tool call activity")
	cmd.Flags().BoolVar(&noReasoning, "no-reasoning", false, "hide model reasoning summaries")
	cmd.Flags().StringVar(&opts.instructions, "instructions", "", "extra instructions appended to the system prompt")

	// Earlier releases exposed the workspace through an MCP filesystem
	// server; the flags remain accepted so existing invocations keep
	// working.
	var noMCP bool
	cmd.Flags().BoolVar(&noMCP, "no-mcp-filesystem", false, "no effect; the built-in document tools are always used")
	cmd.Flags().StringVar(&opts.mcpRoot, "mcp-filesystem-root", "", "alias for --workspace-root")
	_ = cmd.Flags().MarkDeprecated("no-mcp-filesystem", "the built-in document tools are always used")
	_ = cmd.Flags().MarkDeprecated("mcp-filesystem-root", "use --workspace-root")

	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	root, err := resolveWorkspaceRoot(opts, cfg)
	if err != nil {
		return err
	}
	guard, err := workspace.NewGuard(root)
	if err != nil {
		return err
	}

	model := opts.model
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		model = "gpt-4o"
	}

	dbPath := opts.dbPath
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		dbPath = "docsage.db"
	}

	// One line source serves both REPL input and approval prompts: a single
	// goroutine owns stdin, so a line typed after an abandoned prompt goes
	// to whoever reads next instead of being swallowed.
	input := approval.NewLineSource(os.Stdin)

	gate, tracker := buildGate(opts, cfg, input, os.Stdout)
	pipeline := &mutate.Pipeline{Guard: guard, Gate: gate}

	registry := agent.NewToolRegistry()
	doctools.NewToolset(guard, pipeline).Register(registry)

	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	client := llm.NewClientFromEnv(model)
	defer client.Close()

	sessionCfg := agent.DefaultSessionConfig()
	sessionCfg.Model = model
	sessionCfg.UserInstructions = opts.instructions

	session, err := agent.NewSession(cmd.Context(), client, registry, st, opts.sessionID, &sessionCfg)
	if err != nil {
		return err
	}

	repl := &repl{
		session: session,
		newSession: func() (*agent.Session, error) {
			return agent.NewSession(cmd.Context(), client, registry, st, "", &sessionCfg)
		},
		guard:         guard,
		tracker:       tracker,
		in:            input,
		out:           os.Stdout,
		showToolCalls: opts.showToolCalls,
		showReasoning: opts.showReasoning,
	}
	// clear swaps repl.session, so close whichever session is current.
	defer func() { repl.session.Close() }()
	return repl.run(cmd.Context())
}

// resolveWorkspaceRoot picks the workspace root: flag, its deprecated
// alias, environment, then the current directory.
func resolveWorkspaceRoot(opts options, cfg envConfig) (string, error) {
	root := opts.workspaceRoot
	if root == "" {
		root = opts.mcpRoot
	}
	if root == "" {
		root = cfg.WorkspaceRoot
	}
	if root == "" {
		return os.Getwd()
	}
	return root, nil
}

// buildGate picks the approval gate: interactive by default. no-approval
// disables the gate entirely (direct writes, no preview); auto-approve
// still shows each diff but applies without prompting.
func buildGate(opts options, cfg envConfig, input *approval.LineSource, out io.Writer) (approval.Gate, *approval.Tracker) {
	switch {
	case opts.noApproval:
		return approval.AutoGate{Approve: true}, nil
	case opts.autoApprove || cfg.AutoApprove:
		return approval.AutoGate{Approve: true, Out: out}, nil
	default:
		tracker := approval.NewTracker()
		return &approval.TerminalGate{Lines: input, Out: out, Tracker: tracker}, tracker
	}
}
