package plan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/denlabs/den/internal/catalog"
)

// PromptTimeout bounds how long a repair question waits for an answer.
// Silence counts as a refusal.
const PromptTimeout = 30 * time.Second

// Prompter answers one yes/no repair question. Implementations must honor
// context cancellation: a pending question never stalls shutdown.
type Prompter interface {
	Confirm(ctx context.Context, label, path, reason string) (bool, error)
}

// Unresolved records an artifact that stays corrupted because its repair was
// declined or timed out. Surfaced in the final report, never silently dropped.
type Unresolved struct {
	Spec   catalog.Spec
	Reason string
}

// Negotiate resolves every confirmation-requiring step of the plan. In
// interactive mode each one is put to the prompter; a refusal or timeout
// demotes the step to Skip. In non-interactive mode (no terminal, and neither
// --force nor --yes) every such step is demoted. The returned plan is what
// the executor receives; the error is non-nil only for prompt transport
// failures or cancellation.
func Negotiate(ctx context.Context, p Plan, prompter Prompter, interactive bool) (Plan, []Unresolved, error) {
	var unresolved []Unresolved

	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)

	for i := range steps {
		if !steps[i].RequiresConfirmation {
			continue
		}

		if !interactive {
			steps[i] = demote(steps[i])
			unresolved = append(unresolved, Unresolved{Spec: steps[i].Spec, Reason: steps[i].Reason})
			continue
		}

		ok, err := prompter.Confirm(ctx, steps[i].Spec.Label, steps[i].Spec.Path, steps[i].Reason)
		if err != nil {
			return Plan{}, nil, err
		}
		if !ok {
			steps[i] = demote(steps[i])
			unresolved = append(unresolved, Unresolved{Spec: steps[i].Spec, Reason: steps[i].Reason})
			continue
		}
		steps[i].RequiresConfirmation = false
	}

	return Plan{Steps: steps}, unresolved, nil
}

func demote(step Step) Step {
	step.Action = ActionSkip
	step.RequiresConfirmation = false
	return step
}

// TerminalPrompter asks repair questions on a terminal with a bounded wait.
type TerminalPrompter struct {
	In      io.Reader
	Out     io.Writer
	Err     io.Writer
	Timeout time.Duration

	reader *bufio.Reader
	lines  chan promptLine
}

type promptLine struct {
	text string
	err  error
}

// Confirm presents the artifact and its corruption reason, then waits for a
// y/n answer, the timeout, or cancellation. Empty input defaults to yes;
// EOF, timeout, and cancellation count as no (cancellation also returns the
// context error so the caller can abort the run).
func (t *TerminalPrompter) Confirm(ctx context.Context, label, path, reason string) (bool, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = PromptTimeout
	}

	if t.lines == nil {
		// One reader goroutine feeds all questions. It stays blocked on the
		// terminal between questions, which is fine: the process owns stdin
		// for its whole lifetime.
		t.reader = bufio.NewReader(t.In)
		t.lines = make(chan promptLine)
		go func() {
			for {
				text, err := t.reader.ReadString('\n')
				t.lines <- promptLine{text: text, err: err}
				if err != nil {
					return
				}
			}
		}()
	}

	fmt.Fprintf(t.Err, "[warn] %s: %s appears corrupted (%s).\n", label, path, reason)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		fmt.Fprintf(t.Out, "Overwrite %s at %s? [Y/n] ", label, path)

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			fmt.Fprintf(t.Err, "No input received within %s. Leaving artifact unchanged.\n", timeout)
			return false, nil
		case line := <-t.lines:
			if line.err != nil {
				fmt.Fprintln(t.Err, "No input received. Leaving artifact unchanged.")
				return false, nil
			}
			switch strings.ToLower(strings.TrimSpace(line.text)) {
			case "", "y", "yes":
				return true, nil
			case "n", "no":
				return false, nil
			default:
				fmt.Fprintln(t.Err, "Please answer Y or n.")
			}
		}
	}
}
