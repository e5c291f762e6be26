package updaterequest

import (
	"fmt"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

// transitions lists the phases reachable from each phase. The empty phase
// is a request whose status has not been initialized yet.
var transitions = map[headwindv1alpha1.UpdatePhase][]headwindv1alpha1.UpdatePhase{
	"": {
		headwindv1alpha1.PhasePending,
		headwindv1alpha1.PhaseApproved,
	},
	headwindv1alpha1.PhasePending: {
		headwindv1alpha1.PhaseApproved,
		headwindv1alpha1.PhaseRejected,
		headwindv1alpha1.PhaseFailed,
	},
	headwindv1alpha1.PhaseApproved: {
		headwindv1alpha1.PhaseCompleted,
		headwindv1alpha1.PhaseFailed,
	},
}

// CanTransition reports whether a request in phase from may move to phase to.
func CanTransition(from, to headwindv1alpha1.UpdatePhase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// InitialPhase is the phase a new request starts in.
func InitialPhase(requireApproval bool) headwindv1alpha1.UpdatePhase {
	if requireApproval {
		return headwindv1alpha1.PhasePending
	}
	return headwindv1alpha1.PhaseApproved
}

// StateConflictError is returned for a transition the state machine does
// not allow.
type StateConflictError struct {
	Name string
	From headwindv1alpha1.UpdatePhase
	To   headwindv1alpha1.UpdatePhase
}

func (e *StateConflictError) Error() string {
	from := e.From
	if from == "" {
		from = "<unset>"
	}
	return fmt.Sprintf("update request %s cannot move from %s to %s", e.Name, from, e.To)
}
