package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/eddiedunn/moltest/internal/api"
	"github.com/eddiedunn/moltest/pkg/logging"
)

// maxHookOutput caps the hook output quoted in an error.
const maxHookOutput = 512

// hookWaitDelay bounds how long a killed hook's descendants may keep its
// output pipes open.
const hookWaitDelay = time.Second

// Event is the JSON document an ExecHook receives on stdin.
type Event struct {
	Event    string          `json:"event"`
	Context  *api.RunContext `json:"context,omitempty"`
	RunID    string          `json:"scenario_id,omitempty"`
	Status   api.Status      `json:"status,omitempty"`
	Outcomes []EventOutcome  `json:"outcomes,omitempty"`
}

// EventOutcome is the after_run view of one outcome.
type EventOutcome struct {
	ID       string     `json:"id"`
	Status   api.Status `json:"status"`
	Duration float64    `json:"duration"`
	ExitCode *int       `json:"exit_code"`
}

// ExecHook runs an external program for every lifecycle event. The program
// gets the event name as its last argument, the Event as JSON on stdin and
// MOLTEST_EVENT in its environment. A nonzero exit or a timeout is a hook
// failure.
type ExecHook struct {
	name    string
	command []string
	timeout time.Duration
}

// NewExecHook creates a hook running command. A zero timeout means no limit.
func NewExecHook(name string, command []string, timeout time.Duration) *ExecHook {
	return &ExecHook{name: name, command: append([]string(nil), command...), timeout: timeout}
}

func (h *ExecHook) BeforeRun(rc api.RunContext) error {
	return h.fire(Event{Event: HookBeforeRun, Context: &rc})
}

func (h *ExecHook) BeforeScenario(runID string) error {
	return h.fire(Event{Event: HookBeforeScenario, RunID: runID})
}

func (h *ExecHook) AfterScenario(runID string, status api.Status) error {
	return h.fire(Event{Event: HookAfterScenario, RunID: runID, Status: status})
}

func (h *ExecHook) AfterRun(outcomes []api.Outcome) error {
	ev := Event{Event: HookAfterRun, Outcomes: make([]EventOutcome, len(outcomes))}
	for i, o := range outcomes {
		ev.Outcomes[i] = EventOutcome{ID: o.ID, Status: o.Status, Duration: o.Duration.Seconds(), ExitCode: o.ExitCode}
	}
	return h.fire(ev)
}

func (h *ExecHook) fire(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), h.command[1:]...), ev.Event)
	cmd := exec.CommandContext(ctx, h.command[0], args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(os.Environ(), "MOLTEST_EVENT="+ev.Event)
	cmd.WaitDelay = hookWaitDelay

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		logging.Debug(logSubsystem, "[%s] %s", h.name, strings.TrimSpace(string(out)))
	}
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s", h.timeout)
	}

	msg := strings.TrimSpace(string(out))
	if len(msg) > maxHookOutput {
		msg = msg[len(msg)-maxHookOutput:]
	}
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}
