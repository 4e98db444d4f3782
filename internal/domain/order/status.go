package order

import (
	"github.com/go-faster/errors"

	"github.com/xenking/kart-orders/internal/domain/auth"
)

// Status is the fulfillment state of an order. Integer codes only exist at
// the storage and wire boundaries; see Code and StatusFromCode.
type Status uint8

// Order statuses.
const (
	StatusPending Status = iota
	StatusApproved
	StatusInCourier
	StatusCompleted
	StatusCancelled
)

// ErrUnknownStatus is returned when decoding an unknown status code or name.
var ErrUnknownStatus = errors.New("unknown order status")

var statusNames = [...]string{
	StatusPending:   "PENDING",
	StatusApproved:  "APPROVED",
	StatusInCourier: "IN_COURIER",
	StatusCompleted: "COMPLETED",
	StatusCancelled: "CANCELLED",
}

// statusCodes is the persisted and exported numeric mapping. It must never
// change.
var statusCodes = [...]int{
	StatusPending:   0,
	StatusApproved:  1,
	StatusInCourier: 2,
	StatusCompleted: 3,
	StatusCancelled: -1,
}

// transitions is the legal state graph.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusInCourier, StatusCancelled},
	StatusInCourier: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

func (s Status) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// Code returns the wire/storage integer for s.
func (s Status) Code() int {
	return statusCodes[s]
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Next returns the statuses reachable from s in one transition.
func (s Status) Next() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether s → target is an edge of the legal graph.
func (s Status) CanTransitionTo(target Status) bool {
	for _, n := range transitions[s] {
		if n == target {
			return true
		}
	}
	return false
}

// StatusFromCode decodes a wire/storage integer.
func StatusFromCode(code int) (Status, error) {
	for s, c := range statusCodes {
		if c == code {
			return Status(s), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownStatus, "code %d", code)
}

// ParseStatus decodes a status name such as "IN_COURIER".
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return Status(s), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownStatus, "name %q", name)
}

// permitted reports whether role may take the from → to edge. The edge itself
// must already be legal.
func permitted(from, to Status, role auth.Role) bool {
	switch role {
	case auth.RoleOperator:
		return true
	case auth.RoleCustomer:
		return from == StatusPending && to == StatusCancelled
	default:
		return false
	}
}
