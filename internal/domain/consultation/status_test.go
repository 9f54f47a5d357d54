package consultation

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusInProgress, StatusWaitingXray, true},
		{StatusInProgress, StatusXrayDone, true},
		{StatusWaitingXray, StatusXrayDone, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusWaitingXray, StatusCompleted, true},
		{StatusXrayDone, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusWaitingXray, StatusCancelled, true},
		{StatusXrayDone, StatusCancelled, true},

		// Re-assignment to an already-imaged consultation is a no-op edge.
		{StatusXrayDone, StatusXrayDone, true},

		// No backward edges.
		{StatusXrayDone, StatusInProgress, false},
		{StatusXrayDone, StatusWaitingXray, false},
		{StatusWaitingXray, StatusInProgress, false},

		// Terminal states never transition.
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusXrayDone, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusInProgress, false},
		{StatusCancelled, StatusCompleted, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusInProgress, StatusWaitingXray, StatusXrayDone} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
