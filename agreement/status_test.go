package agreement

import "testing"

func TestValidTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusDraft, StatusActive},
		{StatusDraft, StatusTerminated},
		{StatusActive, StatusCompleted},
		{StatusActive, StatusTerminated},
		{StatusActive, StatusDisputed},
		{StatusDisputed, StatusActive},
		{StatusDisputed, StatusTerminated},
	}
	for _, tc := range allowed {
		if !ValidTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be valid", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusDraft, StatusCompleted},
		{StatusDraft, StatusDisputed},
		{StatusActive, StatusDraft},
		{StatusCompleted, StatusActive},
		{StatusCompleted, StatusTerminated},
		{StatusTerminated, StatusActive},
		{StatusDisputed, StatusCompleted},
		{StatusActive, StatusActive},
	}
	for _, tc := range denied {
		if ValidTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be invalid", tc.from, tc.to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []Status{StatusDraft, StatusActive, StatusCompleted, StatusTerminated, StatusDisputed}
	for _, terminal := range []Status{StatusCompleted, StatusTerminated} {
		for _, to := range all {
			if ValidTransition(terminal, to) {
				t.Errorf("terminal state %s should not transition to %s", terminal, to)
			}
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusActive, StatusCompleted, StatusTerminated, StatusDisputed} {
		if !ValidStatus(s) {
			t.Errorf("expected %s to be a known status", s)
		}
	}
	if ValidStatus("pending") {
		t.Error("pending is not part of the lifecycle")
	}
}
