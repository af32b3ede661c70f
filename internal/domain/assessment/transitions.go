package assessment

var transitions = map[Status][]Status{
	StatusDraft:      {StatusInProgress, StatusSubmitted},
	StatusInProgress: {StatusSubmitted},
	StatusSubmitted:  {StatusScored},
	StatusScored:     {StatusArchived},
	StatusArchived:   nil,
}

// CanTransition reports whether an assessment of type t may move from one
// status to another. DRAFT -> SUBMITTED is only legal for single-shot types.
func CanTransition(t Type, from, to Status) bool {
	if from == StatusDraft && to == StatusSubmitted && !t.AllowsSingleShot() {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
