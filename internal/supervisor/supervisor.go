// Package supervisor owns the lifecycle of one agent CLI invocation: launch
// with a constrained tool allowlist, stream combined output to a durable log
// sink, enforce inactivity and hard timeouts, and return a single result no
// matter how the process ends.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prdloop/prdloop/internal/capability"
)

// Model selects the agent tier for one invocation.
type Model string

const (
	ModelOpus   Model = "opus"
	ModelSonnet Model = "sonnet"
	ModelHaiku  Model = "haiku"
)

// ParseModel validates a model name from config or flags.
func ParseModel(s string) (Model, error) {
	switch Model(s) {
	case ModelOpus, ModelSonnet, ModelHaiku:
		return Model(s), nil
	}
	return "", fmt.Errorf("unknown model %q (want opus, sonnet, or haiku)", s)
}

// Timeout reasons reported in Result.TimeoutReason.
const (
	TimeoutInactivity = "inactivity"
	TimeoutHardLimit  = "hard_limit"
)

const (
	// DefaultBinary is the agent CLI looked up on PATH when the config
	// does not name one.
	DefaultBinary = "claude"

	// DefaultInactivityTimeout applies when the config leaves the window
	// unset.
	DefaultInactivityTimeout = 15 * time.Minute

	// hardLimitFactor scales the inactivity window into the absolute
	// ceiling on total run time. A chatty agent can defeat the inactivity
	// clock forever; this one it cannot.
	hardLimitFactor = 4

	// termGracePeriod is how long a SIGTERM'd process group gets before
	// the unconditional SIGKILL.
	termGracePeriod = 5 * time.Second
)

// Config is the immutable per-invocation configuration. Each Execute call
// receives its own copy; nothing persists between invocations.
type Config struct {
	Binary            string
	Model             Model
	AllowedTools      []string
	WorkDir           string
	InactivityTimeout time.Duration
	SkipPermissions   bool
	Env               map[string]string
}

// Result is the outcome of one invocation. Exactly one is produced per
// Execute call that launches successfully, timeout and cancellation
// included.
type Result struct {
	Success       bool
	ExitCode      int // -1 when the process was killed by a signal
	TimedOut      bool
	TimeoutReason string // TimeoutInactivity or TimeoutHardLimit, empty otherwise
	Cancelled     bool
	RawOutput     string
	Duration      time.Duration
}

// LaunchError means the agent process could not be started at all. It is
// surfaced immediately and never retried.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch agent %q: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Supervisor runs agent invocations. It holds no per-invocation state, so
// one Supervisor may serve concurrent Execute calls.
type Supervisor struct {
	logger *slog.Logger
}

// New creates a supervisor that reports through the given logger.
func New(logger *slog.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Execute launches the agent with the prompt on stdin and blocks until it
// exits, times out, or ctx is cancelled. Every output chunk is written to
// sink before it is buffered in memory, so the log survives even if the
// supervisor itself dies mid-run.
//
// Timeouts and cancellation are reported through the Result, not as errors.
// The returned error is non-nil only when the invocation could not be
// attempted: an invalid capability pattern or a launch failure.
func (s *Supervisor) Execute(ctx context.Context, prompt string, cfg Config, sink io.Writer) (*Result, error) {
	allowed, err := capability.Normalize(cfg.AllowedTools)
	if err != nil {
		return nil, err
	}

	binary := cfg.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	model := cfg.Model
	if model == "" {
		model = ModelSonnet
	}
	inactivity := cfg.InactivityTimeout
	if inactivity <= 0 {
		inactivity = DefaultInactivityTimeout
	}
	if sink == nil {
		sink = io.Discard
	}

	args := []string{"-p", "--model", string(model)}
	if len(allowed) > 0 {
		args = append(args, "--allowedTools")
		args = append(args, allowed...)
	}
	if cfg.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = cfg.WorkDir
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	// New process group so timeouts can kill the agent and every child it
	// spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Single pipe for stdout and stderr so arrival order is preserved.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Binary: binary, Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &LaunchError{Binary: binary, Err: err}
	}
	// The child holds its own copy of the write end.
	pw.Close()

	pid := cmd.Process.Pid
	s.logger.Info("agent started",
		"binary", binary,
		"model", string(model),
		"pid", pid,
		"inactivity_timeout", inactivity,
		"allowed_tools", len(allowed))

	var accum bytes.Buffer
	activityCh := make(chan struct{}, 1)
	readerDone := make(chan struct{})

	// Reader is the only writer to the sink and the accumulator. Durability
	// first: the sink write happens before the in-memory append.
	go func() {
		defer close(readerDone)
		defer pr.Close()
		buf := make([]byte, 32*1024)
		for {
			n, rerr := pr.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				if _, werr := sink.Write(chunk); werr != nil {
					s.logger.Warn("log sink write failed, output retained in memory only",
						"pid", pid, "error", werr)
				}
				accum.Write(chunk)
				select {
				case activityCh <- struct{}{}:
				default:
				}
			}
			if rerr != nil {
				return
			}
		}
	}()

	exited := make(chan struct{})
	waitCh := make(chan error, 1)
	go func() {
		werr := cmd.Wait()
		close(exited)
		waitCh <- werr
	}()

	var termOnce sync.Once
	terminate := func(why string) {
		termOnce.Do(func() {
			s.logger.Warn("terminating agent process group", "pid", pid, "why", why)
			if kerr := syscall.Kill(-pid, syscall.SIGTERM); kerr != nil {
				s.logger.Warn("SIGTERM failed, escalating to SIGKILL", "pid", pid, "error", kerr)
				syscall.Kill(-pid, syscall.SIGKILL)
				return
			}
			go func() {
				select {
				case <-exited:
				case <-time.After(termGracePeriod):
					s.logger.Warn("agent ignored SIGTERM, sending SIGKILL", "pid", pid)
					syscall.Kill(-pid, syscall.SIGKILL)
				}
			}()
		})
	}

	inactTimer := time.NewTimer(inactivity)
	defer inactTimer.Stop()
	hardTimer := time.NewTimer(hardLimitFactor * inactivity)
	defer hardTimer.Stop()

	var (
		timedOut  bool
		reason    string
		cancelled bool
		waitErr   error
	)

	done := ctx.Done()
	activity := activityCh
	inactC := inactTimer.C
	hardC := hardTimer.C

waitLoop:
	for {
		select {
		case <-done:
			cancelled = true
			terminate("cancelled")
			done, activity, inactC, hardC = nil, nil, nil, nil

		case <-activity:
			if !inactTimer.Stop() {
				select {
				case <-inactTimer.C:
				default:
				}
			}
			inactTimer.Reset(inactivity)

		case <-inactC:
			timedOut = true
			reason = TimeoutInactivity
			terminate("inactivity timeout")
			done, activity, inactC, hardC = nil, nil, nil, nil

		case <-hardC:
			timedOut = true
			reason = TimeoutHardLimit
			terminate("hard limit")
			done, activity, inactC, hardC = nil, nil, nil, nil

		case waitErr = <-waitCh:
			break waitLoop
		}
	}

	// Process-group kill closes the pipe's write ends, so the reader always
	// reaches EOF.
	<-readerDone

	res := &Result{
		ExitCode:      exitCode(waitErr),
		TimedOut:      timedOut,
		TimeoutReason: reason,
		Cancelled:     cancelled,
		RawOutput:     accum.String(),
		Duration:      time.Since(start),
	}
	res.Success = waitErr == nil && !timedOut && !cancelled

	s.logger.Info("agent exited",
		"pid", pid,
		"exit_code", res.ExitCode,
		"success", res.Success,
		"timed_out", res.TimedOut,
		"timeout_reason", res.TimeoutReason,
		"cancelled", res.Cancelled,
		"duration", res.Duration.Round(time.Millisecond),
		"output_bytes", len(res.RawOutput))

	return res, nil
}

func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
