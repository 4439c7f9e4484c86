package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/nota-scribe/internal/vault"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/llm"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/logging"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/notetype"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/pidfile"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/status"
)

// Prompter defines the interface for reading user input
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// StdinPrompter reads from stdin
type StdinPrompter struct {
	reader *bufio.Reader
}

// NewStdinPrompter creates a prompter that reads from stdin
func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{reader: bufio.NewReader(os.Stdin)}
}

// Prompt displays a prompt and reads user input
func (p *StdinPrompter) Prompt(prompt string) (string, error) {
	fmt.Print(prompt)
	input, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReaderPrompter reads from a provided reader (for testing)
type ReaderPrompter struct {
	reader *bufio.Reader
}

// NewReaderPrompter creates a prompter that reads from the provided reader
func NewReaderPrompter(r io.Reader) *ReaderPrompter {
	return &ReaderPrompter{reader: bufio.NewReader(r)}
}

// Prompt reads input from the reader
func (p *ReaderPrompter) Prompt(prompt string) (string, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// NewVoiceCmd creates the voice command group
func NewVoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Manage the voice note service",
		Long:  "Commands for configuring and running the service that turns voice recordings into notes",
	}

	cmd.AddCommand(NewVoiceConfigCmd(nil))
	cmd.AddCommand(newVoiceStartCmd())
	cmd.AddCommand(newVoiceStopCmd())
	cmd.AddCommand(newVoiceStatusCmd())
	cmd.AddCommand(newVoiceTypesCmd())
	cmd.AddCommand(newVoiceProcessCmd())

	return cmd
}

// NewVoiceConfigCmd creates the config subcommand
func NewVoiceConfigCmd(prompter Prompter) *cobra.Command {
	var advanced bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure the voice service",
		Long:  "Interactive configuration for the voice service. Use --advanced to set tuning options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use provided prompter or create stdin prompter
			p := prompter
			if p == nil {
				p = NewStdinPrompter()
			}

			return runVoiceConfig(cmd, p, advanced)
		},
	}

	cmd.Flags().BoolVar(&advanced, "advanced", false, "prompt for stabilization, size, retry and model settings")
	return cmd
}

func runVoiceConfig(cmd *cobra.Command, prompter Prompter, advanced bool) error {
	// Find vault root first
	vaultRoot, err := vault.FindVaultRoot()
	if err != nil {
		return fmt.Errorf("not in a vault: %w", err)
	}

	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Voice Service Configuration")
	fmt.Fprintln(out, "===========================")
	fmt.Fprintln(out, "")

	cfg := voice.DefaultConfig()

	cfg.APIURL, err = promptRequired(prompter, "Transcription API URL [required]: ")
	if err != nil {
		return err
	}

	if cfg.InboxDir, err = promptDefault(prompter, "Inbox folder", cfg.InboxDir); err != nil {
		return err
	}
	if cfg.GraphDir, err = promptDefault(prompter, "Logseq graph folder", cfg.GraphDir); err != nil {
		return err
	}
	if cfg.ArchiveDir, err = promptDefault(prompter, "Audio archive location", cfg.ArchiveDir); err != nil {
		return err
	}

	baseURL, err := prompter.Prompt("LLM base URL [optional, Enter for OpenAI]: ")
	if err != nil {
		return err
	}
	cfg.LLM.BaseURL = baseURL

	if advanced {
		if err := promptAdvanced(prompter, cfg); err != nil {
			return err
		}
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Save to vault
	if err := cfg.SaveToVault(vaultRoot); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "Configuration saved to %s\n", voice.ConfigPath(vaultRoot))
	if cfg.LLM.APIKey == "" && os.Getenv(voice.EnvOpenAIKey) == "" {
		fmt.Fprintf(out, "Set %s (or NOTA_LLM_API_KEY) before starting the service\n", voice.EnvOpenAIKey)
	}

	return nil
}

func promptAdvanced(prompter Prompter, cfg *voice.Config) error {
	var err error
	if cfg.LLM.Model, err = promptDefault(prompter, "LLM model", llm.DefaultModel); err != nil {
		return err
	}
	if cfg.Language, err = promptDefault(prompter, "Transcription language", cfg.Language); err != nil {
		return err
	}

	ints := []struct {
		label string
		dest  *int
	}{
		{"Stabilization interval (ms)", &cfg.StabilizationIntervalMs},
		{"Stabilization checks", &cfg.StabilizationChecks},
		{"Max file size (MB)", &cfg.MaxFileSizeMB},
		{"Transcription retries", &cfg.RetryCount},
		{"Concurrent LLM calls", &cfg.LLM.MaxConcurrency},
	}
	for _, f := range ints {
		if err := promptInt(prompter, f.label, f.dest); err != nil {
			return err
		}
	}

	timestamps, err := promptDefault(prompter, "Timestamped transcripts (y/n)", "n")
	if err != nil {
		return err
	}
	cfg.Timestamps = strings.HasPrefix(strings.ToLower(timestamps), "y")

	metricsAddr, err := prompter.Prompt("Metrics listen address [optional, e.g. :9091]: ")
	if err != nil {
		return err
	}
	cfg.MetricsAddr = metricsAddr
	return nil
}

// promptRequired prompts for a required field, returning an error if empty
func promptRequired(prompter Prompter, prompt string) (string, error) {
	value, err := prompter.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("value is required")
	}
	return value, nil
}

// promptDefault prompts for an optional field, returning def when empty
func promptDefault(prompter Prompter, label, def string) (string, error) {
	value, err := prompter.Prompt(fmt.Sprintf("%s [default: %s]: ", label, def))
	if err != nil {
		return "", err
	}
	if value == "" {
		return def, nil
	}
	return value, nil
}

func promptInt(prompter Prompter, label string, dest *int) error {
	value, err := promptDefault(prompter, label, strconv.Itoa(*dest))
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", label, value)
	}
	*dest = n
	return nil
}

// envDaemonChild marks the detached child started by --daemon.
const envDaemonChild = "NOTA_VOICE_DAEMON"

// newVoiceStartCmd creates the voice start command
func newVoiceStartCmd() *cobra.Command {
	var daemon bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the voice service",
		Long: `Start the voice service.

The service watches every inbox folder (one per note type) for recordings,
transcribes them with a whisper-asr-webservice instance, summarizes the
transcript into a note page and links it from today's journal. Configuration
is read from .nota/voice.json in the current vault.

In the foreground the service runs until interrupted with Ctrl+C or SIGTERM.
With --daemon it detaches and is stopped with 'nota voice stop'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, root, err := voice.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			pid := pidfile.New(root)
			if daemon && os.Getenv(envDaemonChild) == "" {
				return spawnDaemon(cmd, pid)
			}

			if err := pid.Acquire(os.Getpid()); err != nil {
				return err
			}
			defer pid.Remove()

			logger, err := logging.New(logging.Config{
				LogDir: cfg.LogDir,
				Prefix: "voice",
				Stderr: os.Getenv(envDaemonChild) == "",
			})
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}

			svc, err := voice.NewService(cfg, voice.WithLogger(logger))
			if err != nil {
				logger.Close()
				return fmt.Errorf("create service: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Starting voice service...")
			fmt.Fprintf(out, "Inboxes: %s\n", cfg.InboxDir)
			fmt.Fprintf(out, "Graph:   %s\n", cfg.GraphDir)
			fmt.Fprintln(out, "Press Ctrl+C to stop")
			fmt.Fprintln(out)

			return svc.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&daemon, "daemon", false, "run the service in the background")
	return cmd
}

// spawnDaemon re-executes the binary detached from the terminal and waits
// until the child has written its PID file.
func spawnDaemon(cmd *cobra.Command, pid *pidfile.File) error {
	if running, other, _ := pid.IsRunning(); running {
		return fmt.Errorf("%w (PID %d)", pidfile.ErrAlreadyRunning, other)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	child := exec.Command(exe, "voice", "start")
	child.Env = append(os.Environ(), envDaemonChild+"=1")
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	childPID := child.Process.Pid
	if err := child.Process.Release(); err != nil {
		return err
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if running, recorded, _ := pid.IsRunning(); running && recorded == childPID {
			fmt.Fprintf(cmd.OutOrStdout(), "Voice service started (PID %d)\n", childPID)
			return nil
		}
		if !pidfile.Alive(childPID) {
			return errors.New("voice service exited during startup (see logs)")
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("voice service (PID %d) did not report ready", childPID)
}

// stopTimeout is the maximum time to wait for graceful shutdown before sending SIGKILL
const stopTimeout = 10 * time.Second

// ErrNotRunning indicates the voice service is not running
var ErrNotRunning = errors.New("voice service is not running")

// ErrStaleProcess indicates the PID file exists but the process is not running
var ErrStaleProcess = errors.New("stale PID file (process not running)")

// newVoiceStopCmd creates the voice stop command
func newVoiceStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the voice service",
		Long: `Stop the voice service.

Reads the PID from .nota/voice.pid in the current vault and sends SIGTERM for
graceful shutdown. Recordings being processed are finished first. If the
process doesn't exit within 10 seconds, SIGKILL is sent to force termination.
The PID file is removed after the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := vault.FindVaultRoot()
			if err != nil {
				return fmt.Errorf("not in a vault: %w", err)
			}
			return runVoiceStop(cmd, pidfile.New(root))
		},
	}
}

// runVoiceStop stops the voice service
func runVoiceStop(cmd *cobra.Command, pid *pidfile.File) error {
	out := cmd.OutOrStdout()

	running, n, err := pid.IsRunning()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	if n == 0 {
		return ErrNotRunning
	}
	if !running {
		// Process doesn't exist - clean up stale PID file
		if err := pid.Remove(); err != nil {
			fmt.Fprintf(out, "Warning: failed to remove stale PID file: %v\n", err)
		}
		return ErrStaleProcess
	}

	process, err := os.FindProcess(n)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Fprintf(out, "Stopping voice service (PID %d)...\n", n)

	// Send SIGTERM for graceful shutdown
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM: %w", err)
	}

	if !waitForExit(n, stopTimeout) {
		// Process didn't exit gracefully, send SIGKILL
		fmt.Fprintln(out, "Process did not exit gracefully, sending SIGKILL...")
		if err := process.Signal(syscall.SIGKILL); err != nil {
			// Process may have exited between check and kill
			if !errors.Is(err, os.ErrProcessDone) {
				return fmt.Errorf("send SIGKILL: %w", err)
			}
		}
		waitForExit(n, 2*time.Second)
	}

	if err := pid.Remove(); err != nil {
		fmt.Fprintf(out, "Warning: failed to remove PID file: %v\n", err)
	}

	fmt.Fprintln(out, "Voice service stopped")
	return nil
}

// waitForExit polls until the process exits or timeout is reached
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !pidfile.Alive(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// newVoiceStatusCmd creates the voice status command
func newVoiceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show voice service status",
		Long:  "Show whether the voice service is running and summarize today's activity from its log.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault.Find()
			if err != nil {
				return fmt.Errorf("not in a vault: %w", err)
			}
			return runVoiceStatus(cmd, v, time.Now())
		},
	}
}

func runVoiceStatus(cmd *cobra.Command, v *vault.Vault, day time.Time) error {
	out := cmd.OutOrStdout()
	root := v.Root

	fmt.Fprintf(out, "Vault:     %s (%s)\n", v.Metadata.Name, root)

	pid := pidfile.New(root)
	running, n, err := pid.IsRunning()
	switch {
	case err != nil:
		fmt.Fprintf(out, "Service:   unknown (%v)\n", err)
	case running:
		fmt.Fprintf(out, "Service:   running (PID %d)\n", n)
	case n != 0:
		fmt.Fprintf(out, "Service:   not running (stale PID file %s)\n", pid.Path())
	default:
		fmt.Fprintln(out, "Service:   not running")
	}

	cfg, err := voice.LoadFromVault(root)
	if err != nil {
		if errors.Is(err, voice.ErrNotConfigured) {
			fmt.Fprintln(out, "Config:    not configured (run 'nota voice config')")
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "Config:    %s\n", voice.ConfigPath(root))
	fmt.Fprintf(out, "Inboxes:   %s\n", cfg.InboxDir)

	stats, err := status.ParseDay(cfg.LogDir, "voice", day)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	fmt.Fprintf(out, "Today:     %d processed (%d fallback), %d failed, %d errors\n",
		stats.FilesProcessed, stats.Fallbacks, stats.Failed, stats.Errors)
	if types := stats.Types(); len(types) > 0 {
		parts := make([]string, 0, len(types))
		for _, t := range types {
			parts = append(parts, fmt.Sprintf("%s=%d", t, stats.ByType[t]))
		}
		fmt.Fprintf(out, "By type:   %s\n", strings.Join(parts, " "))
	}
	if last := stats.LastProcessed; last != nil {
		fmt.Fprintf(out, "Last:      %s %s -> [[%s]]\n",
			status.FormatTimestamp(last.Timestamp), status.BaseName(last.Path), last.Page)
	}
	return nil
}

// newVoiceTypesCmd creates the voice types command
func newVoiceTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List configured note types",
		Long:  "List the note types found in the vault. Each type has an inbox folder of the same name.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault.Find()
			if err != nil {
				return fmt.Errorf("not in a vault: %w", err)
			}

			dir := v.TypesDir()
			if cfg, err := voice.LoadFromVault(v.Root); err == nil {
				dir = cfg.TypesDir
			}

			resolver := notetype.NewResolver(dir)
			out := cmd.OutOrStdout()
			names := resolver.ListAvailable()
			if len(names) == 0 {
				fmt.Fprintf(out, "No note types in %s (run 'nota init')\n", dir)
				return nil
			}
			for _, name := range names {
				tc, err := resolver.Load(name)
				if err != nil {
					fmt.Fprintf(out, "%-12s invalid: %v\n", name, err)
					continue
				}
				fmt.Fprintf(out, "%-12s #%s, %d stages, %d dictionary terms\n", name, tc.Tag, len(tc.Stages), tc.Domains.Len())
			}
			return nil
		},
	}
}

// newVoiceProcessCmd creates the voice process command
func newVoiceProcessCmd() *cobra.Command {
	var (
		noteType string
		dryRun   bool
		keep     bool
	)

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Process a single recording",
		Long: `Process a single recording without running the watcher.

The note type defaults to the name of the folder holding the file. With
--dry-run the note is printed instead of written and the recording is left in
place. With --keep the note is written but the recording is not archived.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := voice.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if noteType == "" {
				noteType = filepath.Base(filepath.Dir(path))
			}

			svc, err := voice.NewService(cfg)
			if err != nil {
				return fmt.Errorf("create service: %w", err)
			}
			defer svc.Logger().Close()

			job := voice.Job{Path: path, Type: noteType, Keep: keep}
			return runVoiceProcess(cmd.Context(), cmd.OutOrStdout(), svc, job, dryRun)
		},
	}

	cmd.Flags().StringVarP(&noteType, "type", "t", "", "note type (default: parent folder name)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the note instead of writing it")
	cmd.Flags().BoolVar(&keep, "keep", false, "do not archive the recording")
	return cmd
}

func runVoiceProcess(ctx context.Context, out io.Writer, svc *voice.Service, job voice.Job, dryRun bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if dryRun {
		d, err := svc.Prepare(ctx, job)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Page: %s\n\n", d.PageName)
		fmt.Fprint(out, d.Content())
		return nil
	}

	res, err := svc.Process(ctx, job)
	if err != nil {
		if res != nil && res.ArchivedTo != "" {
			fmt.Fprintf(out, "Recording moved to %s\n", res.ArchivedTo)
		}
		return err
	}

	fmt.Fprintf(out, "Wrote %s\n", res.PagePath)
	if res.Fallback {
		fmt.Fprintln(out, "Summary unavailable, wrote raw transcript only")
	}
	if res.Journaled {
		fmt.Fprintf(out, "Linked [[%s]] from today's journal\n", res.PageName)
	}
	if res.ArchivedTo != "" {
		fmt.Fprintf(out, "Archived to %s\n", res.ArchivedTo)
	}
	return nil
}
