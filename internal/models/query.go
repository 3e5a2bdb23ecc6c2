package models

import (
	"fmt"
	"strings"
	"time"
)

// Role selects whose bookings a history query covers.
type Role uint8

const (
	RoleBooker Role = iota
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleBooker:
		return "booker"
	case RoleOwner:
		return "owner"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// State is a temporal or status view over a user's bookings.
type State uint8

const (
	StateAll State = iota
	StateCurrent
	StatePast
	StateFuture
	StateWaiting
	StateRejected
)

var stateNames = [...]string{
	StateAll:      "ALL",
	StateCurrent:  "CURRENT",
	StatePast:     "PAST",
	StateFuture:   "FUTURE",
	StateWaiting:  "WAITING",
	StateRejected: "REJECTED",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// ParseState maps a state token to a State. The boolean is false for unknown tokens.
func ParseState(token string) (State, bool) {
	upper := strings.ToUpper(token)
	for i, n := range stateNames {
		if n == upper {
			return State(i), true
		}
	}
	return 0, false
}

// Page addresses a slice of a sorted result set. From is a page multiplier:
// the page index is From/Size, so From=15, Size=10 selects rows 10..19.
type Page struct {
	From int `json:"from"`
	Size int `json:"size"`
}

func (p Page) Index() int {
	return p.From / p.Size
}

func (p Page) Offset() int {
	return p.Index() * p.Size
}

// Filter is the role-scoped predicate of a history query. The SQL form is
// built by the store; paging is applied after the predicate.
type Filter struct {
	Role    Role
	ActorID int64
	State   State
	Now     time.Time
	Page    Page
}
