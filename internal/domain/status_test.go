package domain

import (
	"reflect"
	"testing"
)

func TestCanTransition_Table(t *testing.T) {
	cases := []struct {
		from, to Status
		role     Role
		want     bool
	}{
		{StatusPending, StatusViewed, RoleMP, true},
		{StatusPending, StatusViewed, RoleLocalDeputy, true},
		{StatusPending, StatusInCabinet, RoleMP, true},
		{StatusPending, StatusInCabinet, RoleLocalDeputy, false},
		{StatusPending, StatusProcessing, RoleLocalDeputy, true},
		{StatusPending, StatusProcessing, RoleMP, false},
		{StatusViewed, StatusForwarded, RoleMP, true},
		{StatusInCabinet, StatusPending, RoleMP, true},
		{StatusInCabinet, StatusPending, RoleLocalDeputy, false},
		{StatusProcessing, StatusResolved, RoleLocalDeputy, true},
		{StatusForwarded, StatusProcessing, RoleLocalDeputy, true},
		{StatusReplied, StatusResolved, RoleLocalDeputy, true},
		{StatusReplied, StatusResolved, RoleMP, false},
		// replied never goes back to pending, for anyone
		{StatusReplied, StatusPending, RoleMP, false},
		{StatusReplied, StatusPending, RoleAdmin, false},
		{StatusOutOfScope, StatusPending, RoleAdmin, false},
		{StatusResolved, StatusReplied, RoleLocalDeputy, false},
		// admins take any edge in the table
		{StatusPending, StatusInCabinet, RoleAdmin, true},
		{StatusProcessing, StatusResolved, RoleAdmin, true},
		// citizens take none
		{StatusPending, StatusViewed, RoleCitizen, false},
		// unknown states
		{Status("bogus"), StatusViewed, RoleAdmin, false},
		{StatusPending, Status("bogus"), RoleAdmin, false},
		// self transitions are not edges
		{StatusPending, StatusPending, RoleMP, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to, tc.role); got != tc.want {
			t.Fatalf("CanTransition(%s -> %s, %s) = %v; want %v", tc.from, tc.to, tc.role, got, tc.want)
		}
	}
}

func TestStatus_Predicates(t *testing.T) {
	for _, s := range allStatuses {
		if !s.Valid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	if Status("closed").Valid() {
		t.Fatalf("unknown status reported valid")
	}
	for _, s := range []Status{StatusReplied, StatusResolved, StatusOutOfScope} {
		if !s.IsClosed() {
			t.Fatalf("%q should be closed", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusViewed, StatusForwarded, StatusInCabinet, StatusProcessing} {
		if s.IsClosed() {
			t.Fatalf("%q should be open", s)
		}
	}
	if !StatusResolved.IsTerminal() || !StatusOutOfScope.IsTerminal() {
		t.Fatalf("resolved and out_of_scope must be terminal")
	}
	if StatusReplied.IsTerminal() {
		t.Fatalf("replied still moves to resolved")
	}
}

func TestNextStatuses(t *testing.T) {
	got := NextStatuses(StatusReplied, RoleLocalDeputy)
	if !reflect.DeepEqual(got, []Status{StatusResolved}) {
		t.Fatalf("NextStatuses(replied, deputy) = %v", got)
	}
	if got := NextStatuses(StatusReplied, RoleMP); len(got) != 0 {
		t.Fatalf("MP should have no moves out of replied, got %v", got)
	}
	want := []Status{StatusViewed, StatusInCabinet, StatusForwarded, StatusReplied, StatusOutOfScope}
	if got := NextStatuses(StatusPending, RoleMP); !reflect.DeepEqual(got, want) {
		t.Fatalf("NextStatuses(pending, mp) = %v; want %v", got, want)
	}
	if got := NextStatuses(StatusPending, RoleCitizen); got != nil {
		t.Fatalf("citizen should have no moves, got %v", got)
	}
}

func TestCanAdminOverride(t *testing.T) {
	for _, from := range allStatuses {
		want := !from.IsTerminal()
		if got := CanAdminOverride(from, StatusResolved); got != want {
			t.Fatalf("CanAdminOverride(%s, resolved) = %v; want %v", from, got, want)
		}
		for _, to := range allStatuses {
			if to != StatusResolved && CanAdminOverride(from, to) {
				t.Fatalf("only resolved may be forced, got %s -> %s", from, to)
			}
		}
	}
}
