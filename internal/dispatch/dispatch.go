// Package dispatch implements the concurrent fan-out engine: one bounded
// unit of work per device, failure isolation at the unit boundary, and an
// outcome for every device no matter what goes wrong inside its unit.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleetcli/internal/command"
	"fleetcli/internal/connect"
	"fleetcli/internal/device"
	"fleetcli/internal/errors"
	"fleetcli/internal/logging"
	"fleetcli/internal/progress"
	"fleetcli/internal/report"
	"fleetcli/internal/session"
)

// Config holds tunables for the engine
type Config struct {
	Concurrency int           // Maximum concurrent device units (0 for the default)
	CmdTimeout  time.Duration // Per-command timeout passed to the session layer
}

// DefaultConcurrency bounds concurrent units so large fleets don't exhaust
// local sockets or the auth backend. A tunable, not a correctness requirement.
const DefaultConcurrency = 10

// Engine fans one classified command out to all devices in the active set.
// It is independent of how results are displayed: outcomes go to a
// report.Run, progress events to an optional Reporter.
type Engine struct {
	config   Config
	strategy *connect.Strategy
	reporter progress.Reporter
	logger   *logging.Logger
	mu       sync.RWMutex
}

// NewEngine creates an engine with default configuration
func NewEngine(strategy *connect.Strategy, logger *logging.Logger) *Engine {
	return &Engine{
		config: Config{
			Concurrency: DefaultConcurrency,
		},
		strategy: strategy,
		logger:   logger,
	}
}

// SetConfig updates the engine configuration
func (e *Engine) SetConfig(config Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = config
}

// SetReporter installs a progress reporter. A nil reporter disables events.
func (e *Engine) SetReporter(reporter progress.Reporter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reporter = reporter
}

// Dispatch runs one command against every device and blocks until all units
// have finished. It returns exactly one outcome per device: success,
// all-ports-exhausted failure, or converted unexpected fault. The engine
// imposes no overall deadline; a hung device delays only the run's
// completion, never other devices.
func (e *Engine) Dispatch(ctx context.Context, devices []device.Device, raw string, creds session.Credentials) (*report.Run, error) {
	e.mu.RLock()
	config := e.config
	e.mu.RUnlock()

	// Classification does not depend on device identity, so classify once
	cmd := command.Classify(raw)
	if cmd.Base == "" {
		return nil, errors.NewSetupError("empty command is invalid", nil)
	}

	if err := device.CheckDuplicates(devices); err != nil {
		return nil, errors.NewSetupError(err.Error(), err)
	}

	concurrency := calculateConcurrency(config.Concurrency, len(devices))

	if e.logger != nil {
		e.logger.LogDispatchStart(len(devices), concurrency, cmd.Mutating)
	}
	start := time.Now()

	run := report.NewRun(devices)
	jobs := make(chan device.Device)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dev := range jobs {
				run.Add(e.runUnit(ctx, dev, cmd, creds, config))
			}
		}()
	}

	for _, dev := range devices {
		jobs <- dev
	}
	close(jobs)
	wg.Wait()

	if e.logger != nil {
		e.logger.LogDispatchComplete(len(devices), run.SuccessCount(), run.ErrorCount(), time.Since(start))
	}

	return run, nil
}

// runUnit executes one device's unit of work. Every failure mode (exhausted
// ports, session errors, context cancellation, panics) is converted to an
// error outcome here; nothing propagates to the engine or the caller. The
// Finished event fires exactly once, after the outcome is final and the
// session handle has been released.
func (e *Engine) runUnit(ctx context.Context, dev device.Device, cmd command.Command, creds session.Credentials, config Config) (outcome report.Outcome) {
	start := time.Now()

	e.emit(progress.Event{Device: dev.Name, Kind: progress.Started})

	outcome = report.Outcome{Device: dev, Status: report.StatusError}
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = report.StatusError
			outcome.Err = fmt.Errorf("unexpected failure: %v", r)
			outcome.Output = fmt.Sprintf("Error: %v", outcome.Err)
		}
		outcome.Duration = time.Since(start)
		e.emit(progress.Event{
			Device:  dev.Name,
			Kind:    progress.Finished,
			Success: outcome.Status == report.StatusSuccess,
		})
	}()

	if err := ctx.Err(); err != nil {
		outcome.Err = err
		outcome.Output = fmt.Sprintf("Error: dispatch canceled: %v", err)
		return outcome
	}

	sess, port, failure := e.strategy.Connect(ctx, dev, creds)
	if failure != nil {
		outcome.Err = failure
		outcome.Output = fmt.Sprintf("Connection error: %v", failure)
		return outcome
	}
	// Release runs before the deferred Finished emit above
	defer sess.Close()
	outcome.Port = port

	cmdCtx := ctx
	if config.CmdTimeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, config.CmdTimeout)
		defer cancel()
	}

	if cmd.Mutating {
		if err := sess.CommitConfig(cmdCtx, cmd.Base); err != nil {
			outcome.Err = err
			outcome.Output = fmt.Sprintf("Error: %v", err)
			return outcome
		}
		outcome.Status = report.StatusSuccess
		outcome.Output = "Configuration committed successfully"
		return outcome
	}

	output, err := sess.RunQuery(cmdCtx, cmd.Base)
	if err != nil {
		outcome.Err = err
		outcome.Output = fmt.Sprintf("Error: %v", err)
		return outcome
	}

	outcome.Status = report.StatusSuccess
	outcome.Output = command.ApplyFilter(output, cmd.Filter)
	return outcome
}

func (e *Engine) emit(event progress.Event) {
	e.mu.RLock()
	reporter := e.reporter
	e.mu.RUnlock()

	if reporter != nil {
		reporter.Handle(event)
	}
}

// calculateConcurrency resolves the worker bound against the device count
func calculateConcurrency(configured, deviceCount int) int {
	if configured <= 0 {
		configured = DefaultConcurrency
	}
	if deviceCount > 0 && configured > deviceCount {
		return deviceCount
	}
	if deviceCount == 0 {
		return 1
	}
	return configured
}
