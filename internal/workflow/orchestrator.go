package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/paycheck/paycheck-backend/database"
	"github.com/paycheck/paycheck-backend/model"
	"github.com/paycheck/paycheck-backend/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EntityStore is the persistence the workflow needs. Saves with an empty
// revision insert; saves with a revision replace only if it is still current
// and fail with database.ErrConflict otherwise.
type EntityStore interface {
	FindOrganizationByID(ctx context.Context, id string) (*model.Organization, error)
	FindOrganizationByName(ctx context.Context, name string) (*model.Organization, error)
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	SaveOrganization(ctx context.Context, org *model.Organization) (*model.Organization, error)
	SaveUser(ctx context.Context, user *model.User) (*model.User, error)
}

// Orchestrator loads documents, runs an engine decision and persists the
// outcome. Every save is conditional on the revision that was read, so a
// concurrent change makes the save fail instead of being overwritten; the
// whole operation is then rolled back and re-run.
type Orchestrator struct {
	store      EntityStore
	logger     *zap.Logger
	publisher  Publisher
	retries    uint64
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithPublisher sets where completed transitions are announced.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithConflictRetries bounds how many times an operation is re-run after
// losing a revision race.
func WithConflictRetries(n uint64) Option {
	return func(o *Orchestrator) { o.retries = n }
}

// WithBackOff sets the wait policy between conflict retries.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(o *Orchestrator) { o.newBackOff = fn }
}

// New returns an orchestrator over store.
func New(store EntityStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		logger:    zap.NewNop(),
		publisher: nopPublisher{},
		retries:   3,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 20 * time.Millisecond
			bo.MaxInterval = 500 * time.Millisecond
			return bo
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apply files an application from the acting user to the organization.
func (o *Orchestrator) Apply(ctx context.Context, orgID string, applicant Actor, comment string) Result {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		o.logger.Info("Organization ID not found in apply request")
		return observe("apply", inputError("organization id is required"))
	}
	if !applicant.Valid() {
		o.logger.Info("Applicant not found in apply request", zap.String("organization_id", orgID))
		return observe("apply", inputError("applicant is required"))
	}

	return observe("apply", o.retry(ctx, "apply", func(ctx context.Context) Result {
		org, err := o.store.FindOrganizationByID(ctx, orgID)
		if err != nil {
			return o.lookupFailed(err, "organization", orgID)
		}

		m, err := Apply(org, applicant, comment)
		switch {
		case errors.Is(err, ErrAlreadyApplied):
			return Result{Status: StatusAlreadyApplied, Err: err}
		case errors.Is(err, ErrAlreadyMember):
			return Result{Status: StatusAlreadyMember, Err: err}
		}

		if res, failed := o.commit(ctx, "apply", []write{o.orgWrite(org, m.Organization)}); failed {
			return res
		}

		o.publish(ctx, Transition{
			Kind:             TransitionApplied,
			OrganizationID:   org.Key,
			OrganizationName: org.Name,
			UserID:           applicant.UserID,
			Username:         applicant.Username,
			Comment:          comment,
		})
		return Result{Status: StatusApplied, RedirectTarget: m.RedirectTarget, OrganizationID: org.Key}
	}))
}

// Approve admits userID into the organization, moving them out of the
// organization they currently belong to.
func (o *Orchestrator) Approve(ctx context.Context, actor Actor, orgID, userID string) Result {
	orgID, userID = strings.TrimSpace(orgID), strings.TrimSpace(userID)
	if orgID == "" {
		o.logger.Info("Organization ID not found in approve request")
		return observe("approve", inputError("organization id is required"))
	}
	if userID == "" {
		o.logger.Info("User ID not found in approve request", zap.String("organization_id", orgID))
		return observe("approve", inputError("user id is required"))
	}

	return observe("approve", o.retry(ctx, "approve", func(ctx context.Context) Result {
		var org *model.Organization
		var user *model.User

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			found, err := o.store.FindOrganizationByID(gctx, orgID)
			if err != nil {
				return lookupError{kind: "organization", id: orgID, err: err}
			}
			org = found
			return nil
		})
		g.Go(func() error {
			found, err := o.store.FindUserByID(gctx, userID)
			if err != nil {
				return lookupError{kind: "user", id: userID, err: err}
			}
			user = found
			return nil
		})
		if err := g.Wait(); err != nil {
			var le lookupError
			if errors.As(err, &le) {
				return o.lookupFailed(le.err, le.kind, le.id)
			}
			return o.lookupFailed(err, "document", orgID)
		}

		previous, res, ok := o.previousOrganization(ctx, org, user)
		if !ok {
			return res
		}

		m, err := Approve(org, actor, user, previous)
		switch {
		case errors.Is(err, ErrNotOwner):
			return Result{Status: StatusForbidden, Err: err}
		case errors.Is(err, ErrAlreadyMember):
			return Result{Status: StatusAlreadyMember, Err: err}
		}

		writes := []write{
			o.orgWrite(org, m.Organization),
			o.userWrite(user, m.User),
		}
		if m.PreviousOrganization != nil {
			writes = append(writes, o.orgWrite(previous, m.PreviousOrganization))
		}
		if res, failed := o.commit(ctx, "approve", writes); failed {
			return res
		}

		t := Transition{
			Kind:             TransitionApproved,
			OrganizationID:   org.Key,
			OrganizationName: org.Name,
			UserID:           user.Key,
			Username:         user.Username,
		}
		if previous != nil {
			t.PreviousOrganizationID = previous.Key
		}
		o.publish(ctx, t)

		return Result{Status: StatusApproved, RedirectTarget: m.RedirectTarget, OrganizationID: org.Key}
	}))
}

// Decline removes the pending application from userID. The user document is
// not read or changed.
func (o *Orchestrator) Decline(ctx context.Context, actor Actor, orgID, userID string) Result {
	orgID, userID = strings.TrimSpace(orgID), strings.TrimSpace(userID)
	if orgID == "" {
		o.logger.Info("Organization ID not found in decline request")
		return observe("decline", inputError("organization id is required"))
	}
	if userID == "" {
		o.logger.Info("User ID not found in decline request", zap.String("organization_id", orgID))
		return observe("decline", inputError("user id is required"))
	}

	return observe("decline", o.retry(ctx, "decline", func(ctx context.Context) Result {
		org, err := o.store.FindOrganizationByID(ctx, orgID)
		if err != nil {
			return o.lookupFailed(err, "organization", orgID)
		}

		m, err := Decline(org, actor, userID)
		if errors.Is(err, ErrNotOwner) {
			return Result{Status: StatusForbidden, Err: err}
		}

		if len(m.Organization.Applications) != len(org.Applications) {
			if res, failed := o.commit(ctx, "decline", []write{o.orgWrite(org, m.Organization)}); failed {
				return res
			}
			o.publish(ctx, Transition{
				Kind:             TransitionDeclined,
				OrganizationID:   org.Key,
				OrganizationName: org.Name,
				UserID:           userID,
			})
		}

		return Result{Status: StatusDeclined, RedirectTarget: m.RedirectTarget, OrganizationID: org.Key}
	}))
}

// CreateOrganization stores a new organization owned by the actor and points
// the actor's user document at it.
func (o *Orchestrator) CreateOrganization(ctx context.Context, actor Actor, input NewOrganizationInput) Result {
	return observe("create", o.createOrganization(ctx, actor, input))
}

func (o *Orchestrator) createOrganization(ctx context.Context, actor Actor, input NewOrganizationInput) Result {
	if !actor.Valid() {
		return inputError("owner is required")
	}
	org, err := Create(input, actor)
	if err != nil {
		return inputError("organization name is required")
	}

	owner, err := o.store.FindUserByID(ctx, actor.UserID)
	if err != nil {
		return o.lookupFailed(err, "user", actor.UserID)
	}

	if _, err := o.store.FindOrganizationByName(ctx, org.Name); err == nil {
		return Result{Status: StatusAlreadyExists, Err: fmt.Errorf("organization %q already exists", org.Name)}
	} else if !errors.Is(err, database.ErrNotFound) {
		return o.storeFailed("create", err)
	}

	created, err := o.store.SaveOrganization(ctx, org)
	if errors.Is(err, database.ErrConflict) {
		return Result{Status: StatusAlreadyExists, Err: err}
	}
	if err != nil {
		return o.storeFailed("create", err)
	}

	res := o.retry(ctx, "create", func(ctx context.Context) Result {
		user, err := o.store.FindUserByID(ctx, owner.Key)
		if err != nil {
			return o.lookupFailed(err, "user", owner.Key)
		}

		var previous *model.Organization
		if user.Organization != nil && !user.BelongsTo(created.Key) {
			previous, err = o.findReferenced(ctx, user.Organization)
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return o.storeFailed("create", err)
			}
		}

		writes := []write{o.userWrite(user, AssignOwner(created, user))}
		if previous != nil && previous.HasUnassigned(user.Key) {
			pruned := previous.Clone()
			pruned.RemoveUnassigned(user.Key)
			writes = append(writes, o.orgWrite(previous, pruned))
		}
		if res, failed := o.commit(ctx, "create", writes); failed {
			return res
		}
		return Result{Status: StatusCreated}
	})

	if !res.Succeeded() {
		err := &PartialWriteError{Applied: []string{"organization " + created.Key}, Err: res.Err}
		o.logger.Error("Organization created but owner was not updated",
			zap.String("organization_id", created.Key),
			zap.String("user_id", actor.UserID),
			zap.Error(err))
		return Result{Status: StatusFailed, OrganizationID: created.Key, Err: err}
	}

	o.publish(ctx, Transition{
		Kind:             TransitionCreated,
		OrganizationID:   created.Key,
		OrganizationName: created.Name,
		UserID:           actor.UserID,
		Username:         actor.Username,
	})

	return Result{
		Status:         StatusCreated,
		OrganizationID: created.Key,
		RedirectTarget: OrganizationPath(created.Key),
	}
}

// State reports where userID stands with the organization.
func (o *Orchestrator) State(ctx context.Context, orgID, userID string) Result {
	orgID, userID = strings.TrimSpace(orgID), strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return observe("state", inputError("organization id and user id are required"))
	}

	org, err := o.store.FindOrganizationByID(ctx, orgID)
	if err != nil {
		return observe("state", o.lookupFailed(err, "organization", orgID))
	}
	return observe("state", Result{Status: StatusOK, State: StateOf(org, userID), OrganizationID: org.Key})
}

// Applications lists the pending applications of the organization. Only its
// owners may see them.
func (o *Orchestrator) Applications(ctx context.Context, actor Actor, orgID string) Result {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return observe("applications", inputError("organization id is required"))
	}
	if !actor.Valid() {
		return observe("applications", inputError("actor is required"))
	}

	org, err := o.store.FindOrganizationByID(ctx, orgID)
	if err != nil {
		return observe("applications", o.lookupFailed(err, "organization", orgID))
	}

	apps, err := PendingApplications(org, actor)
	if err != nil {
		return observe("applications", Result{Status: StatusForbidden, Err: err})
	}
	return observe("applications", Result{Status: StatusOK, OrganizationID: org.Key, Applications: apps})
}

// previousOrganization loads the organization the user currently references
// when it is not org itself. ok is false when the lookup ended the operation.
func (o *Orchestrator) previousOrganization(ctx context.Context, org *model.Organization, user *model.User) (*model.Organization, Result, bool) {
	ref := user.Organization
	if ref == nil || ref.OrganizationID == org.Key {
		return nil, Result{}, true
	}
	if ref.OrganizationID == "" && util.NormalizeOrgName(ref.Name) == util.NormalizeOrgName(org.Name) {
		return nil, Result{}, true
	}

	previous, err := o.findReferenced(ctx, ref)
	if err != nil {
		return nil, o.lookupFailed(err, "previous organization", ref.OrganizationID+ref.Name), false
	}
	if previous.Key == org.Key {
		return nil, Result{}, true
	}
	return previous, Result{}, true
}

func (o *Orchestrator) findReferenced(ctx context.Context, ref *model.OrganizationRef) (*model.Organization, error) {
	if ref.OrganizationID != "" {
		return o.store.FindOrganizationByID(ctx, ref.OrganizationID)
	}
	return o.store.FindOrganizationByName(ctx, ref.Name)
}

type lookupError struct {
	kind string
	id   string
	err  error
}

func (e lookupError) Error() string {
	return fmt.Sprintf("find %s %s: %v", e.kind, e.id, e.err)
}

func (e lookupError) Unwrap() error {
	return e.err
}

func (o *Orchestrator) lookupFailed(err error, kind, id string) Result {
	if errors.Is(err, database.ErrNotFound) {
		o.logger.Info(kind+" not found", zap.String("id", id))
		return Result{Status: StatusNotFound, Err: fmt.Errorf("%s %s: %w", kind, id, err)}
	}
	return o.storeFailed("find "+kind, err)
}

func (o *Orchestrator) storeFailed(op string, err error) Result {
	o.logger.Error("Store failure", zap.String("op", op), zap.Error(err))
	return Result{Status: StatusFailed, Err: fmt.Errorf("%s: %w", op, err)}
}

func inputError(msg string) Result {
	return Result{Status: StatusInputError, Err: fmt.Errorf("%w: %s", ErrInvalidInput, msg)}
}

func (o *Orchestrator) publish(ctx context.Context, t Transition) {
	t.At = o.now()
	if err := o.publisher.Publish(ctx, t); err != nil {
		o.logger.Warn("Failed to publish transition",
			zap.String("kind", string(t.Kind)),
			zap.String("organization_id", t.OrganizationID),
			zap.String("user_id", t.UserID),
			zap.Error(err))
	}
}

// retry runs attempt until it returns a result that is not a lost revision
// race, or the retry budget is spent.
func (o *Orchestrator) retry(ctx context.Context, op string, attempt func(context.Context) Result) Result {
	var res Result
	tries := 0

	policy := backoff.WithContext(backoff.WithMaxRetries(o.newBackOff(), o.retries), ctx)
	_ = backoff.RetryNotify(func() error {
		tries++
		res = attempt(ctx)
		if res.retryable {
			return res.Err
		}
		return nil
	}, policy, func(err error, wait time.Duration) {
		conflictRetryCounter.WithLabelValues(op).Inc()
		o.logger.Info("Revision conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", tries),
			zap.Duration("wait", wait),
			zap.Error(err))
	})

	if res.retryable {
		o.logger.Warn("Giving up after repeated revision conflicts", zap.String("op", op), zap.Int("attempts", tries))
		res.retryable = false
	}
	return res
}
