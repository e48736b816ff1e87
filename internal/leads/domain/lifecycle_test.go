package domain

import (
	"testing"
	"time"
)

func stamp() *time.Time {
	t := time.Now()
	return &t
}

func TestDeriveStatePriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		ts   Timestamps
		want State
	}{
		{"no timestamps", Timestamps{}, StateNew},
		{"viewed only", Timestamps{ViewedAt: stamp()}, StateViewed},
		{"contacted beats viewed", Timestamps{ViewedAt: stamp(), LastContactedAt: stamp()}, StateContacted},
		{"contacted without viewed", Timestamps{LastContactedAt: stamp()}, StateContacted},
		{"escalated beats contacted", Timestamps{LastContactedAt: stamp(), EscalatedAt: stamp()}, StateEscalated},
		{"resolved beats everything", Timestamps{ViewedAt: stamp(), LastContactedAt: stamp(), EscalatedAt: stamp(), ResolvedAt: stamp()}, StateResolved},
	}
	for _, tc := range cases {
		if got := DeriveState(tc.ts); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestCanProviderTransitionForwardOneStepOnly(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StateNew, StateViewed},
		{StateViewed, StateContacted},
		{StateContacted, StateResolved},
		{StateContacted, StateContacted}, // repeat contact
	}
	for _, tc := range allowed {
		if !CanProviderTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be allowed for provider", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to State }{
		{StateNew, StateContacted},  // skips viewed
		{StateNew, StateResolved},   // skips two steps
		{StateViewed, StateNew},     // backwards
		{StateContacted, StateViewed},
		{StateResolved, StateContacted}, // resolved is terminal
		{StateResolved, StateResolved},
		{StateNew, StateEscalated}, // escalated never provider-reachable
		{StateViewed, StateEscalated},
		{StateContacted, StateEscalated},
		{StateEscalated, StateResolved}, // nor leavable by provider
	}
	for _, tc := range denied {
		if CanProviderTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be denied for provider", tc.from, tc.to)
		}
	}
}

func TestCanAdminTransitionOnlyResolvedIsTerminal(t *testing.T) {
	for _, from := range []State{StateNew, StateViewed, StateContacted, StateEscalated} {
		if !CanAdminTransition(from, StateResolved) {
			t.Fatalf("expected admin %s -> resolved to be allowed", from)
		}
		if !CanAdminTransition(from, StateEscalated) {
			t.Fatalf("expected admin %s -> escalated to be allowed", from)
		}
	}
	if CanAdminTransition(StateResolved, StateEscalated) {
		t.Fatal("expected resolved to accept no further transitions, even for admin")
	}
}

func TestIsValidResolution(t *testing.T) {
	for _, status := range []string{ResolutionWon, ResolutionLost, ResolutionClosed, ResolutionSpam} {
		if !IsValidResolution(status) {
			t.Fatalf("expected %q to be valid", status)
		}
	}
	for _, status := range []string{"", "open", "WON"} {
		if IsValidResolution(status) {
			t.Fatalf("expected %q to be invalid", status)
		}
	}
}

func TestFormatDeclineReason(t *testing.T) {
	if got := FormatDeclineReason("too_far", ""); got != "too_far" {
		t.Fatalf("expected bare reason, got %q", got)
	}
	if got := FormatDeclineReason(" too_far ", " outside service area "); got != "too_far — outside service area" {
		t.Fatalf("unexpected formatted reason %q", got)
	}
}
