package domain

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusPending    Status = "pending"
	StatusViewed     Status = "viewed"
	StatusReplied    Status = "replied"
	StatusForwarded  Status = "forwarded"
	StatusOutOfScope Status = "out_of_scope"
	StatusInCabinet  Status = "in_cabinet"
	StatusProcessing Status = "processing"
	StatusResolved   Status = "resolved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsClosed reports whether s counts as handled for the overdue flag and the
// response rate.
func (s Status) IsClosed() bool {
	return s == StatusReplied || s == StatusResolved || s == StatusOutOfScope
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// transitions is the allowed-transition table. The value lists the official
// roles allowed to take the edge; a nil slice means any official. Admins may
// take every edge in the table.
var transitions = map[Status]map[Status][]Role{
	StatusPending: {
		StatusViewed:     nil,
		StatusReplied:    nil,
		StatusForwarded:  nil,
		StatusOutOfScope: nil,
		StatusInCabinet:  {RoleMP},
		StatusProcessing: {RoleLocalDeputy},
	},
	StatusViewed: {
		StatusReplied:    nil,
		StatusForwarded:  nil,
		StatusOutOfScope: nil,
		StatusInCabinet:  {RoleMP},
		StatusProcessing: {RoleLocalDeputy},
	},
	StatusInCabinet: {
		StatusPending:    {RoleMP},
		StatusViewed:     {RoleMP},
		StatusReplied:    {RoleMP},
		StatusForwarded:  {RoleMP},
		StatusOutOfScope: {RoleMP},
	},
	StatusProcessing: {
		StatusReplied:    {RoleLocalDeputy},
		StatusResolved:   {RoleLocalDeputy},
		StatusOutOfScope: {RoleLocalDeputy},
	},
	StatusForwarded: {
		StatusViewed:     nil,
		StatusProcessing: {RoleLocalDeputy},
		StatusReplied:    nil,
		StatusOutOfScope: nil,
	},
	StatusReplied: {
		StatusResolved: {RoleLocalDeputy},
	},
	StatusOutOfScope: {},
	StatusResolved:   {},
}

// CanTransition reports whether an actor with role may move a complaint from
// one status to another. Citizens never transition status.
func CanTransition(from, to Status, role Role) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	roles, ok := next[to]
	if !ok {
		return false
	}
	switch role {
	case RoleAdmin:
		return true
	case RoleMP, RoleLocalDeputy:
		if roles == nil {
			return true
		}
		for _, r := range roles {
			if r == role {
				return true
			}
		}
	}
	return false
}

// CanAdminOverride reports whether an admin edit may set to outside the
// table. The only such edge is closing any non-terminal complaint as
// resolved.
func CanAdminOverride(from, to Status) bool {
	return to == StatusResolved && from != to && !from.IsTerminal()
}

// NextStatuses returns the statuses reachable from s for role.
func NextStatuses(s Status, role Role) []Status {
	var out []Status
	for _, to := range allStatuses {
		if CanTransition(s, to, role) {
			out = append(out, to)
		}
	}
	return out
}

// allStatuses fixes an iteration order for NextStatuses.
var allStatuses = []Status{
	StatusPending, StatusViewed, StatusInCabinet, StatusProcessing,
	StatusForwarded, StatusReplied, StatusResolved, StatusOutOfScope,
}
