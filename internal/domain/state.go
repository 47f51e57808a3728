package domain

// AssignmentState is the lifecycle state of a section assignment. Assignments
// are never hard-deleted, so removal moves them to StateInactive.
type AssignmentState uint8

const (
	// StateAbsent means no assignment row exists for the section cycle.
	StateAbsent AssignmentState = iota

	// StateActive means the section cycle is assigned to the evaluation.
	StateActive

	// StateInactive means the assignment was removed and kept for history.
	StateInactive
)

// String returns the string representation of an AssignmentState.
func (s AssignmentState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// StateOf maps the persisted active flag onto an AssignmentState.
func StateOf(active bool) AssignmentState {
	if active {
		return StateActive
	}
	return StateInactive
}

// Action is the store operation needed to move an assignment towards the
// selected section set.
type Action uint8

const (
	// ActionNoOp leaves the assignment untouched.
	ActionNoOp Action = iota

	// ActionCreate inserts a new active assignment.
	ActionCreate

	// ActionReactivate updates an existing assignment to active with the
	// current section id.
	ActionReactivate

	// ActionDeactivate updates an active assignment to inactive.
	ActionDeactivate
)

// String returns the string representation of an Action.
func (a Action) String() string {
	switch a {
	case ActionNoOp:
		return "noop"
	case ActionCreate:
		return "create"
	case ActionReactivate:
		return "reactivate"
	case ActionDeactivate:
		return "deactivate"
	default:
		return "unknown"
	}
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Decide is the assignment transition table.
//
//	state     selected  sectionChanged  action
//	absent    yes       -               create
//	absent    no        -               noop
//	inactive  yes       -               reactivate
//	inactive  no        -               noop
//	active    yes       yes             reactivate
//	active    yes       no              noop
//	active    no        -               deactivate
func Decide(state AssignmentState, selected, sectionChanged bool) Action {
	switch state {
	case StateAbsent:
		if selected {
			return ActionCreate
		}
	case StateInactive:
		if selected {
			return ActionReactivate
		}
	case StateActive:
		if !selected {
			return ActionDeactivate
		}
		if sectionChanged {
			return ActionReactivate
		}
	}
	return ActionNoOp
}

// Apply returns the state reached after performing a on an assignment in s.
func (a Action) Apply(s AssignmentState) AssignmentState {
	switch a {
	case ActionCreate, ActionReactivate:
		return StateActive
	case ActionDeactivate:
		return StateInactive
	default:
		return s
	}
}
