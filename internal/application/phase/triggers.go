package phase

import (
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// TriggerInput is the evaluation context for the SUBMISSION -> VOTING
// triggers: ideaGoal met, participantGoal met, or submissionEndsAt
// elapsed.
type TriggerInput struct {
	IdeaCount        int
	IdeaGoal         *int
	MemberCount      int
	ParticipantGoal  *int
	SubmissionEndsAt *time.Time
	Now              time.Time
}

// triggerEnv is the flattened, expr-friendly view of TriggerInput; expr
// cannot dereference pointers cleanly, so nils are normalized to
// sentinel "goal not set" values here on every Evaluate call, before the
// compiled program runs.
type triggerEnv struct {
	IdeaCount       int
	IdeaGoal        int
	HasIdeaGoal     bool
	MemberCount     int
	ParticipantGoal int
	HasParticipantGoal bool
	SubmissionEnded bool
}

const triggerExpr = `(HasIdeaGoal && IdeaCount >= IdeaGoal) || (HasParticipantGoal && MemberCount >= ParticipantGoal) || SubmissionEnded`

// TriggerEvaluator compiles the submission-trigger predicate once and
// reuses the cached program across deliberations, avoiding a
// recompile on every evaluation against many inputs.
type TriggerEvaluator struct {
	program *vm.Program
}

func NewTriggerEvaluator() *TriggerEvaluator {
	program, err := expr.Compile(triggerExpr, expr.Env(triggerEnv{}))
	if err != nil {
		// The expression is a fixed constant authored in this package;
		// a compile failure here is a programming error, not a runtime one.
		panic("phase: trigger expression failed to compile: " + err.Error())
	}
	return &TriggerEvaluator{program: program}
}

// Evaluate reports whether any SUBMISSION -> VOTING trigger holds.
func (t *TriggerEvaluator) Evaluate(in TriggerInput) (bool, error) {
	env := triggerEnv{
		IdeaCount:   in.IdeaCount,
		MemberCount: in.MemberCount,
	}
	if in.IdeaGoal != nil {
		env.HasIdeaGoal = true
		env.IdeaGoal = *in.IdeaGoal
	}
	if in.ParticipantGoal != nil {
		env.HasParticipantGoal = true
		env.ParticipantGoal = *in.ParticipantGoal
	}
	if in.SubmissionEndsAt != nil && !in.Now.Before(*in.SubmissionEndsAt) {
		env.SubmissionEnded = true
	}

	out, err := expr.Run(t.program, env)
	if err != nil {
		return false, err
	}
	fired, _ := out.(bool)
	return fired, nil
}
