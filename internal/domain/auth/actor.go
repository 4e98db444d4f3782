// Package auth identifies who is acting on an order: a customer tracking their
// own orders or an operator working the fulfillment console.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Role is the kind of actor performing a request.
type Role string

const (
	// RoleCustomer places orders and may cancel them while pending.
	RoleCustomer Role = "customer"
	// RoleOperator advances orders through fulfillment.
	RoleOperator Role = "operator"
)

// ErrUnknownRole is returned when parsing an unsupported role.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleOperator:
		return Role(s), nil
	default:
		return "", ErrUnknownRole
	}
}

// Actor is the authenticated principal of a request.
type Actor struct {
	ID   string
	Role Role
}

// IsOperator reports whether the actor works the operator console.
func (a Actor) IsOperator() bool { return a.Role == RoleOperator }

type actorKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor stored by WithActor.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
