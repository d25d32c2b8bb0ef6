// Package analyzer runs the external report analyzer as a child process.
//
// One call to Runner.Run launches exactly one process, supervises it under
// the caller's context combined with an internal timeout, drains stdout and
// stderr concurrently, and turns the exit into either an AnalyticsResult or
// an *Error. The process is always reaped before Run returns.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
	"ledger/internal/log"
)

// Request describes one report run.
type Request struct {
	DBPath string
	From   time.Time
	To     time.Time
	// Timeout overrides the runner's timeout when positive.
	Timeout time.Duration
}

// Config holds the runner settings.
type Config struct {
	BaseDir     string        // working directory and root for relative paths
	EntryPoint  string        // script or executable, relative to BaseDir
	Interpreter string        // empty: ResolveInterpreter(BaseDir)
	Timeout     time.Duration // default DefaultTimeout
	DrainGrace  time.Duration // default DefaultDrainGrace
}

// State is the lifecycle position of a run.
type State int

const (
	StateNotStarted State = iota
	StateLaunching
	StateRunning
	StateKilledByTimeout
	StateKilledByCancellation
	StateExitedClean
	StateExitedNonZero
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateKilledByTimeout:
		return "killed_by_timeout"
	case StateKilledByCancellation:
		return "killed_by_cancellation"
	case StateExitedClean:
		return "exited_clean"
	case StateExitedNonZero:
		return "exited_non_zero"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// errDeadline is the cause attached to the internal timeout so it can be told
// apart from a deadline on the caller's context.
var errDeadline = errors.New("analyzer deadline exceeded")

type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Runner launches the analyzer. It holds no per-call state and may be used
// from several goroutines.
type Runner struct {
	cfg     Config
	logger  *log.Logger
	command commandFunc
}

// NewRunner fills defaults into cfg and returns a runner.
func NewRunner(cfg Config, logger *log.Logger) *Runner {
	if cfg.BaseDir == "" {
		cfg.BaseDir = DefaultBaseDir()
	}
	if cfg.EntryPoint == "" {
		cfg.EntryPoint = DefaultEntryPoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DrainGrace <= 0 {
		cfg.DrainGrace = DefaultDrainGrace
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Runner{
		cfg:     cfg,
		logger:  logger.WithComponent(log.ComponentAnalyzer),
		command: exec.CommandContext,
	}
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// EntryPoint returns the absolute or base-relative path of the analyzer.
func (r *Runner) EntryPoint() string {
	return EntryPointPath(r.cfg.BaseDir, r.cfg.EntryPoint)
}

// CommandLine returns the executable and its arguments for req.
func (r *Runner) CommandLine(req Request) (string, []string) {
	entry := r.EntryPoint()
	args := BuildArgs(entry, req.DBPath, req.From, req.To)
	if !isScript(entry) {
		return entry, args[1:]
	}
	interp := r.cfg.Interpreter
	if interp == "" {
		interp = ResolveInterpreter(r.cfg.BaseDir)
	}
	return interp, args
}

// Run executes the analyzer for req and blocks until the child has exited.
//
// When ctx is cancelled the child is killed and the returned error wraps the
// context's cause; it is never an *Error. Every other failure is an *Error.
func (r *Runner) Run(ctx context.Context, req Request) (*core.AnalyticsResult, error) {
	start := time.Now()
	fields := log.NewFields().WithRange(req.From, req.To)
	fields[log.FieldDBPath] = req.DBPath

	entry := r.EntryPoint()
	if info, err := os.Stat(entry); err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", entry)
		}
		r.logger.WarnContext(ctx, "Analyzer entry point missing", append(fields.ToSlice(), log.FieldExecutable, entry)...)
		return nil, &Error{Kind: KindNotFound, Msg: fmt.Sprintf("analyzer entry point not found: %s", entry), Err: err}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}

	runCtx, cancel := context.WithTimeoutCause(ctx, timeout, errDeadline)
	defer cancel()

	name, args := r.CommandLine(req)
	state := StateLaunching
	cmd := r.command(runCtx, name, args...)
	cmd.Dir = r.cfg.BaseDir
	cmd.Cancel = func() error {
		err := cmd.Process.Kill()
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			r.logger.DebugContext(ctx, "Failed to kill analyzer", log.FieldPID, cmd.Process.Pid, log.FieldError, err)
		}
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("analyzer stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("analyzer stderr pipe: %w", err)
	}

	r.logger.DebugContext(ctx, "Launching analyzer", append(fields.ToSlice(),
		log.FieldExecutable, name, log.FieldState, state)...)

	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("analyzer run cancelled: %w", context.Cause(ctx))
		}
		r.logger.WarnContext(ctx, "Failed to start analyzer", append(fields.ToSlice(),
			log.FieldExecutable, name, log.FieldError, err)...)
		return nil, &Error{Kind: KindNotFound, Msg: fmt.Sprintf("start analyzer %s: %v", name, err), Err: err}
	}
	state = StateRunning
	pid := cmd.Process.Pid

	var outBuf, errBuf bytes.Buffer
	var drains errgroup.Group
	drains.Go(func() error { return drain(&outBuf, stdout) })
	drains.Go(func() error { return drain(&errBuf, stderr) })

	drained := make(chan struct{})
	go r.watchDrains(ctx, runCtx, drained, stdout, stderr)

	drainErr := drains.Wait()
	close(drained)
	waitErr := cmd.Wait()

	diag := strings.TrimSpace(strings.ToValidUTF8(errBuf.String(), "\uFFFD"))
	elapsed := time.Since(start)
	fields = fields.WithDuration(elapsed)
	fields[log.FieldPID] = pid
	if drainErr != nil {
		r.logger.DebugContext(ctx, "Analyzer output drain interrupted", append(fields.ToSlice(), log.FieldError, drainErr)...)
	}

	// The caller's own signal takes precedence over everything else.
	if ctx.Err() != nil {
		state = StateKilledByCancellation
		r.logger.InfoContext(ctx, "Analyzer run cancelled", append(fields.ToSlice(), log.FieldState, state)...)
		return nil, fmt.Errorf("analyzer run cancelled: %w", context.Cause(ctx))
	}

	if waitErr != nil && errors.Is(context.Cause(runCtx), errDeadline) {
		state = StateKilledByTimeout
		r.logger.WarnContext(ctx, "Analyzer timed out", append(fields.ToSlice(), log.FieldState, state)...)
		return nil, &Error{
			Kind:   KindTimeout,
			Stderr: diag,
			Msg:    withStderr(fmt.Sprintf("analyzer exceeded %s", timeout), diag),
			Err:    waitErr,
		}
	}

	if waitErr != nil {
		state = StateExitedNonZero
		code := cmd.ProcessState.ExitCode()
		r.logger.WarnContext(ctx, "Analyzer failed", append(fields.ToSlice(),
			log.FieldState, state, log.FieldExitCode, code)...)
		return nil, &Error{
			Kind:     KindNonZeroExit,
			ExitCode: code,
			Stderr:   diag,
			Msg:      withStderr(fmt.Sprintf("analyzer exited with code %d", code), diag),
			Err:      waitErr,
		}
	}

	state = StateExitedClean
	res, err := ParseResult(outBuf.String())
	if err != nil {
		r.logger.WarnContext(ctx, "Analyzer output rejected", append(fields.ToSlice(),
			log.FieldState, state, log.FieldErrorKind, KindOf(err), log.FieldError, err)...)
		return nil, err
	}

	r.logger.InfoContext(ctx, "Analyzer finished", append(fields.ToSlice(),
		log.FieldState, state, log.FieldTotal, res.Total)...)
	return res, nil
}

// watchDrains stops the output drains when they can no longer finish on their
// own: immediately on caller cancellation, and after DrainGrace once the
// internal timeout fired, in case a descendant of the child still holds the
// pipes open.
func (r *Runner) watchDrains(ctx, runCtx context.Context, drained <-chan struct{}, pipes ...io.Closer) {
	select {
	case <-drained:
		return
	case <-runCtx.Done():
	}

	if ctx.Err() == nil {
		grace := time.NewTimer(r.cfg.DrainGrace)
		defer grace.Stop()
		select {
		case <-drained:
			return
		case <-ctx.Done():
		case <-grace.C:
		}
	}

	for _, p := range pipes {
		_ = p.Close()
	}
}

func drain(dst *bytes.Buffer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
