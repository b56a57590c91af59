package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/eddiedunn/moltest/internal/api"
	"github.com/eddiedunn/moltest/internal/scheduler"
	"github.com/eddiedunn/moltest/pkg/logging"
)

const logSubsystem = "Runner"

// DefaultGracePeriod is how long an interrupted process group has between
// SIGTERM and SIGKILL.
const DefaultGracePeriod = 10 * time.Second

// Options configures a Launcher.
type Options struct {
	// Command is the argv template; see ExpandCommand.
	Command []string

	// RolesPath is exported as ANSIBLE_ROLES_PATH when set.
	RolesPath string

	Mode CaptureMode

	// Output receives buffered and streamed process output. Defaults to os.Stdout.
	Output io.Writer

	// TailLines bounds the output kept on each outcome. Defaults to DefaultTailLines.
	TailLines int

	// GracePeriod defaults to DefaultGracePeriod.
	GracePeriod time.Duration
}

// Launcher starts one external process per run.
type Launcher struct {
	command   []string
	rolesPath string
	mode      CaptureMode
	out       *syncWriter
	tailLines int
	grace     time.Duration
}

// NewLauncher creates a launcher. An empty command falls back to the
// molecule default.
func NewLauncher(opts Options) *Launcher {
	command := opts.Command
	if len(command) == 0 {
		command = []string{"molecule", "test", "-s", PlaceholderScenario}
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Launcher{
		command:   append([]string(nil), command...),
		rolesPath: opts.RolesPath,
		mode:      opts.Mode,
		out:       &syncWriter{w: out},
		tailLines: opts.TailLines,
		grace:     grace,
	}
}

// Start launches the process for run in its execution directory. The
// process is interrupted only when ctx is cancelled.
func (l *Launcher) Start(ctx context.Context, run api.Run) (scheduler.Process, error) {
	argv := ExpandCommand(l.command, run)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = run.Scenario.Directory
	cmd.Env = l.environ(cmd.Environ())
	configureProcAttr(cmd)

	p := &process{
		runID:   run.ID,
		cmd:     cmd,
		capture: newCapture(run.ID, l.mode, l.out, l.tailLines),
	}

	cmd.Cancel = func() error {
		logging.Debug(logSubsystem, "Interrupting %s (pid %d)", run.ID, cmd.Process.Pid)
		p.armKill(l.grace)
		return terminateProcessGroup(cmd)
	}
	cmd.WaitDelay = l.grace + time.Second

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	p.pipe = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return nil, &LaunchError{RunID: run.ID, Err: err}
	}
	go p.capture.consume(pr)

	logging.Debug(logSubsystem, "Started %s: %s (dir %s, pid %d)", run.ID, strings.Join(argv, " "), cmd.Dir, cmd.Process.Pid)
	return p, nil
}

// environ extends base, which carries PWD for the run's directory.
func (l *Launcher) environ(base []string) []string {
	env := base
	if l.rolesPath != "" {
		env = append(env, "ANSIBLE_ROLES_PATH="+l.rolesPath)
	}
	return env
}

type process struct {
	runID   string
	cmd     *exec.Cmd
	pipe    *io.PipeWriter
	capture *capture

	mu        sync.Mutex
	killTimer *time.Timer
}

func (p *process) armKill(grace time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killTimer != nil {
		return
	}
	p.killTimer = time.AfterFunc(grace, func() {
		logging.Warn(logSubsystem, "Killing %s after %s grace period", p.runID, grace)
		_ = killProcessGroup(p.cmd)
	})
}

// Wait blocks until the process exits. An exit status, zero or not, is
// returned with a nil error; the error is set only when the process ended
// without one, for example when it was killed by a signal.
func (p *process) Wait() (int, error) {
	err := p.cmd.Wait()
	_ = p.pipe.Close()
	p.capture.finish()

	p.mu.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
	}
	p.mu.Unlock()

	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Output returns the tail of the combined output. It blocks until the
// output has been fully consumed.
func (p *process) Output() string {
	return p.capture.output()
}
