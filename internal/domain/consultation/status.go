package consultation

import "errors"

var (
	// ErrStaleConsultation is returned when an operation targets a
	// consultation that reached a terminal state (or disappeared) after the
	// caller resolved it. The caller must re-resolve, not retry blindly.
	ErrStaleConsultation = errors.New("consultation is closed or no longer exists")

	// ErrInvalidTransition is returned for status edges outside the table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrActiveExists is returned when starting a consultation for a patient
	// who already has a non-terminal one.
	ErrActiveExists = errors.New("patient already has an active consultation")
)

// transitions lists the legal lifecycle edges. Imaging may land before or
// after an explicit "send to X-ray" step, so xray-done is reachable from
// both in-progress and waiting-xray. Nothing moves backward out of
// xray-done, and terminal states have no outgoing edges.
var transitions = map[Status][]Status{
	StatusInProgress:  {StatusWaitingXray, StatusXrayDone, StatusCompleted, StatusCancelled},
	StatusWaitingXray: {StatusXrayDone, StatusCompleted, StatusCancelled},
	StatusXrayDone:    {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from → to is a legal edge. Same-state is
// allowed for xray-done so a second assignment to the same consultation is
// a no-op transition rather than an error.
func CanTransition(from, to Status) bool {
	if from == StatusXrayDone && to == StatusXrayDone {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
