// Package plan turns validation results into an ordered reconciliation plan
// and negotiates consent for the steps that need it.
package plan

import (
	"github.com/denlabs/den/internal/catalog"
	"github.com/denlabs/den/internal/validate"
)

// Action is what the executor will do for one artifact.
type Action int

const (
	ActionSkip Action = iota
	ActionCreate
	ActionRepair
	ActionRecreate
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionRepair:
		return "repair"
	case ActionRecreate:
		return "recreate"
	default:
		return "skip"
	}
}

// Step is one proposed action for one artifact. A plan holds at most one
// step per artifact, in catalog order.
type Step struct {
	Spec   catalog.Spec
	Action Action

	// RequiresConfirmation marks repairs that need explicit consent before
	// the executor may overwrite an existing (corrupted) artifact.
	RequiresConfirmation bool

	// Reason carries the corruption diagnostic for repair steps.
	Reason string
}

// Plan is the ordered reconciliation plan for one run. Computed fresh from a
// single scan snapshot, consumed once, never persisted.
type Plan struct {
	Steps []Step
}

// Diff computes the plan from validation states. Rules:
//   - Missing  -> Create (never needs confirmation)
//   - Corrupted-> Repair; confirmation required unless autoConfirm
//   - Valid    -> Skip, except under force where database artifacts are
//     unconditionally rebuilt from scratch
func Diff(states []validate.State, force, autoConfirm bool) Plan {
	steps := make([]Step, 0, len(states))

	for _, state := range states {
		step := Step{Spec: state.Spec, Reason: state.Reason}

		switch state.Status {
		case validate.StatusMissing:
			step.Action = ActionCreate
		case validate.StatusCorrupted:
			step.Action = ActionRepair
			step.RequiresConfirmation = !force && !autoConfirm
		case validate.StatusValid:
			if force && state.Spec.Kind == catalog.KindDatabase {
				step.Action = ActionRecreate
			} else {
				step.Action = ActionSkip
			}
		default:
			step.Action = ActionSkip
		}

		steps = append(steps, step)
	}

	return Plan{Steps: steps}
}

// Trivial reports whether the plan changes nothing. Check mode turns a
// non-trivial plan into a validation failure.
func (p Plan) Trivial() bool {
	for _, step := range p.Steps {
		if step.Action != ActionSkip {
			return false
		}
	}
	return true
}

// Mutations counts the steps that would touch disk.
func (p Plan) Mutations() int {
	n := 0
	for _, step := range p.Steps {
		if step.Action != ActionSkip {
			n++
		}
	}
	return n
}
