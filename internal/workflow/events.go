package workflow

import (
	"context"
	"time"
)

// TransitionKind names a completed workflow transition.
type TransitionKind string

// Transition kinds, also used as event types on the bus.
const (
	TransitionApplied  TransitionKind = "membership.application.submitted"
	TransitionApproved TransitionKind = "membership.application.approved"
	TransitionDeclined TransitionKind = "membership.application.declined"
	TransitionCreated  TransitionKind = "membership.organization.created"
)

// Transition describes a transition after it has been persisted.
type Transition struct {
	Kind                   TransitionKind
	OrganizationID         string
	OrganizationName       string
	UserID                 string
	Username               string
	PreviousOrganizationID string
	Comment                string
	At                     time.Time
}

// Publisher announces completed transitions to other services.
type Publisher interface {
	Publish(ctx context.Context, t Transition) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Transition) error { return nil }

type actorKey struct{}

// WithActor stores the verified actor on the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor.Valid()
}
