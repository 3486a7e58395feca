package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fleetcli/internal/config"
	"fleetcli/internal/connect"
	"fleetcli/internal/device"
	"fleetcli/internal/dispatch"
	"fleetcli/internal/logging"
	"fleetcli/internal/progress"
	"fleetcli/internal/report"
	"fleetcli/internal/session"
	"fleetcli/internal/stats"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Build-time variables (set via -ldflags)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	// Global configuration
	cfg *config.Config

	// CLI flags
	inventoryFile  string
	site           string
	ports          string
	concurrency    int
	connectTimeout time.Duration
	cmdTimeout     time.Duration
	exportPath     string
	oneShot        string
	noProbe        bool
	quiet          bool
	logLevel       string
	logFormat      string
	showProgress   bool
	showStats      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetcli [flags]",
	Short: "Run operational commands across a fleet of network devices in parallel",
	Long: `fleetcli dispatches CLI commands to many network devices at once over
NETCONF or SSH, collects the per-device results, and renders them as a
single report.

Devices are loaded from an inventory file (CSV or YAML) and can be
narrowed with a site substring filter. Each device is tried on an
ordered list of candidate ports (NETCONF 830 first, then SSH 22 by
default). Show commands run as read-only queries; anything else is
treated as configuration and committed.

Examples:
  # Interactive session against all devices in the inventory
  fleetcli --inventory devices.csv

  # One-shot query against devices whose name contains "nyc"
  fleetcli --inventory devices.csv --site nyc --command "show version"

  # Filter query output and export the report as JSON
  fleetcli --command "show interfaces terse | grep up" --export report.json

  # Push a configuration change with a smaller worker pool
  fleetcli --command "set system ntp server 10.0.0.1" --concurrency 4`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration from all sources
		configManager := config.NewManager()
		loadedCfg, err := configManager.Load()
		if err != nil {
			return &SetupError{Message: fmt.Sprintf("failed to load configuration: %v", err)}
		}
		cfg = loadedCfg

		// Override config with CLI flags if provided
		if err := overrideConfigWithFlags(cmd); err != nil {
			return err
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(os.Stdout)
	},
}

func init() {
	// Add version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fleetcli %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
			fmt.Printf("Built: %s\n", buildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	// Add all CLI flags
	rootCmd.Flags().StringVar(&inventoryFile, "inventory", "devices.csv", "Path to device inventory file (.csv or .yaml)")
	rootCmd.Flags().StringVar(&site, "site", "", "Only include devices whose name contains this substring")
	rootCmd.Flags().StringVar(&ports, "ports", "830,22", "Ordered comma-separated candidate ports per device")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 10, "Maximum concurrent device sessions")
	rootCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 30*time.Second, "Per-attempt session open timeout")
	rootCmd.Flags().DurationVar(&cmdTimeout, "cmd-timeout", 60*time.Second, "Per-command timeout")
	rootCmd.Flags().StringVar(&exportPath, "export", "", "Export report to file (.json, .txt, or .csv)")
	rootCmd.Flags().StringVar(&oneShot, "command", "", "Run a single command and exit instead of the interactive prompt")
	rootCmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip TCP reachability probe before opening sessions")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress non-error output")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, error)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format (json, text)")
	rootCmd.Flags().BoolVar(&showProgress, "progress", false, "Show progress bar while commands run")
	rootCmd.Flags().BoolVar(&showStats, "stats", false, "Show per-run statistics summary")
}

func overrideConfigWithFlags(cmd *cobra.Command) error {
	// Override configuration with CLI flags if they were explicitly set
	if cmd.Flags().Changed("inventory") {
		cfg.Inventory = inventoryFile
	}
	if cmd.Flags().Changed("site") {
		cfg.Site = site
	}
	if cmd.Flags().Changed("ports") {
		cfg.Ports = ports
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if cmd.Flags().Changed("connect-timeout") {
		cfg.ConnectTimeout = connectTimeout
	}
	if cmd.Flags().Changed("cmd-timeout") {
		cfg.CmdTimeout = cmdTimeout
	}
	if cmd.Flags().Changed("export") {
		cfg.Export = exportPath
	}
	if cmd.Flags().Changed("command") {
		cfg.Command = oneShot
	}
	if cmd.Flags().Changed("no-probe") {
		cfg.Probe = !noProbe
	}
	if cmd.Flags().Changed("quiet") {
		cfg.Quiet = quiet
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("progress") {
		cfg.ShowProgress = showProgress
	}
	if cmd.Flags().Changed("stats") {
		cfg.ShowStats = showStats
	}

	// Validate the final configuration
	configManager := config.NewManager()
	if err := configManager.Validate(cfg); err != nil {
		return &SetupError{Message: fmt.Sprintf("configuration validation failed: %v", err)}
	}

	return nil
}

func run(writer io.Writer) error {
	logger := logging.NewLoggerFromConfig(cfg.LogLevel, cfg.LogFormat, cfg.Quiet)
	if logger == nil {
		return &SetupError{Message: "failed to initialize logger"}
	}

	devices, err := loadAndFilterDevices(logger)
	if err != nil {
		return err
	}

	creds, err := promptCredentials(writer)
	if err != nil {
		return &SetupError{Message: fmt.Sprintf("failed to read credentials: %v", err)}
	}

	candidatePorts, err := cfg.CandidatePorts()
	if err != nil {
		return &SetupError{Message: err.Error()}
	}

	opener := session.NewOpener()
	opener.ConnectTimeout = cfg.ConnectTimeout

	strategy := connect.NewStrategy(opener, logger)
	strategy.Ports = candidatePorts
	strategy.Probe = cfg.Probe

	engine := dispatch.NewEngine(strategy, logger)
	engine.SetConfig(dispatch.Config{
		Concurrency: cfg.Concurrency,
		CmdTimeout:  cfg.CmdTimeout,
	})

	// One-shot mode runs a single command and exits
	if cfg.Command != "" {
		return runOnce(engine, devices, cfg.Command, creds, logger, writer)
	}

	return runInteractive(engine, devices, creds, logger, os.Stdin, writer)
}

// loadAndFilterDevices loads the inventory and applies the site filter
func loadAndFilterDevices(logger *logging.Logger) ([]device.Device, error) {
	devices, err := device.LoadInventory(cfg.Inventory)
	if err != nil {
		logger.LogInventoryError(cfg.Inventory, err)
		return nil, &SetupError{Message: fmt.Sprintf("failed to load inventory: %v", err)}
	}

	if cfg.Site != "" {
		original := len(devices)
		devices = device.FilterBySite(devices, cfg.Site)
		logger.Info("Applied site filter",
			"site", cfg.Site,
			"original_count", original,
			"filtered_count", len(devices))
	}

	if len(devices) == 0 {
		return nil, &SetupError{Message: fmt.Sprintf("no devices match site filter %q", cfg.Site)}
	}

	logger.LogInventoryLoad(cfg.Inventory, len(devices))
	return devices, nil
}

// promptCredentials asks for the fleet username and password on the
// terminal. The password is read without echo.
func promptCredentials(writer io.Writer) (session.Credentials, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Fprint(writer, "Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return session.Credentials{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return session.Credentials{}, fmt.Errorf("username cannot be empty")
	}

	fmt.Fprint(writer, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(writer)
	if err != nil {
		return session.Credentials{}, err
	}

	return session.Credentials{
		Username: username,
		Password: string(password),
	}, nil
}

// runOnce dispatches a single command across the fleet
func runOnce(engine *dispatch.Engine, devices []device.Device, command string, creds session.Credentials, logger *logging.Logger, writer io.Writer) error {
	ctx, cancel := signalContext(logger)
	defer cancel()

	run, err := dispatchAndRender(ctx, engine, devices, command, creds, logger, writer)
	if err != nil {
		return err
	}

	if run.ErrorCount() > 0 {
		return &ExecutionError{
			Message: fmt.Sprintf("%d/%d devices failed", run.ErrorCount(), run.Len()),
		}
	}

	return nil
}

// runInteractive reads commands from input until "exit" or EOF. The exit
// token terminates the loop without dispatching anything. A SIGINT cancels
// the in-flight dispatch but returns to the prompt.
func runInteractive(engine *dispatch.Engine, devices []device.Device, creds session.Credentials, logger *logging.Logger, input io.Reader, writer io.Writer) error {
	reader := bufio.NewReader(input)
	var hadFailures bool

	for {
		fmt.Fprint(writer, "\nCommand (or 'exit'): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(writer)
				break
			}
			return &SetupError{Message: fmt.Sprintf("failed to read command: %v", err)}
		}

		command := strings.TrimSpace(line)
		if command == "" {
			continue
		}
		if strings.EqualFold(command, "exit") {
			break
		}

		ctx, cancel := signalContext(logger)
		run, err := dispatchAndRender(ctx, engine, devices, command, creds, logger, writer)
		cancel()
		if err != nil {
			// Rejected input (empty command, duplicates) is reported
			// but does not end the session.
			fmt.Fprintf(writer, "Error: %v\n", err)
			hadFailures = true
			continue
		}

		if run.ErrorCount() > 0 {
			hadFailures = true
		}
	}

	if hadFailures {
		return &ExecutionError{Message: "one or more commands had device failures"}
	}

	return nil
}

// dispatchAndRender runs one command across the fleet and writes the
// resulting report, export file, and optional stats summary.
func dispatchAndRender(ctx context.Context, engine *dispatch.Engine, devices []device.Device, command string, creds session.Credentials, logger *logging.Logger, writer io.Writer) (*report.Run, error) {
	var reporters progress.Multi
	var progressTracker *progress.Tracker
	var statsTracker *stats.Tracker

	// The live bar is display chrome; quiet mode suppresses it like any
	// other non-error output.
	if cfg.ShowProgress && !logger.IsQuiet() {
		progressTracker = progress.NewTracker(len(devices), writer, true)
		reporters = append(reporters, progressTracker)
	}
	if cfg.ShowStats {
		statsTracker = stats.NewTracker(len(devices))
		reporters = append(reporters, statsTracker)
	}
	engine.SetReporter(reporters)

	run, err := engine.Dispatch(ctx, devices, command, creds)
	if err != nil {
		return nil, err
	}

	if progressTracker != nil {
		progressTracker.Finish()
	}

	if statsTracker != nil {
		for _, outcome := range run.Outcomes() {
			statsTracker.Observe(outcome)
		}
	}

	if err := run.Render(writer); err != nil {
		logger.Error("Failed to render report", "error", err)
	}

	if cfg.Export != "" {
		if err := run.Export(cfg.Export); err != nil {
			// Export failures do not invalidate the completed run
			logger.LogExportError(cfg.Export, err)
		} else {
			logger.Info("Report exported", "destination", cfg.Export)
		}
	}

	if statsTracker != nil {
		statsTracker.WriteSummary(writer)
	}

	return run, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM
func signalContext(logger *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal, canceling dispatch", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// ExecutionError represents a failed device run (exit code 1)
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// SetupError represents an error during setup/configuration (exit code 2)
type SetupError struct {
	Message string
}

func (e *SetupError) Error() string {
	return e.Message
}

// getExitCode determines the appropriate exit code based on error type
// Returns:
//   - 0: Success (all devices succeeded)
//   - 1: Execution failure (one or more devices failed)
//   - 2: Setup error (invalid arguments, configuration issues, etc.)
func getExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch err.(type) {
	case *SetupError:
		return 2
	case *ExecutionError:
		return 1
	default:
		// Unknown errors are treated as setup errors for safety
		return 2
	}
}
