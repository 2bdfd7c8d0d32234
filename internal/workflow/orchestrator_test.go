package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff"
	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/paycheck/paycheck-backend/database"
	"github.com/paycheck/paycheck-backend/model"
)

// hookStore wraps a MemoryStore and lets tests inject failures or
// interleave other work before a call reaches the store.
type hookStore struct {
	*database.MemoryStore

	finds    atomic.Int32
	findOrg  func(id string) error
	saveOrg  func(org *model.Organization) error
	saveUser func(user *model.User) error
}

func (h *hookStore) FindOrganizationByID(ctx context.Context, id string) (*model.Organization, error) {
	h.finds.Add(1)
	if h.findOrg != nil {
		if err := h.findOrg(id); err != nil {
			return nil, err
		}
	}
	return h.MemoryStore.FindOrganizationByID(ctx, id)
}

func (h *hookStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	h.finds.Add(1)
	return h.MemoryStore.FindUserByID(ctx, id)
}

func (h *hookStore) SaveOrganization(ctx context.Context, org *model.Organization) (*model.Organization, error) {
	if h.saveOrg != nil {
		if err := h.saveOrg(org); err != nil {
			return nil, err
		}
	}
	return h.MemoryStore.SaveOrganization(ctx, org)
}

func (h *hookStore) SaveUser(ctx context.Context, user *model.User) (*model.User, error) {
	if h.saveUser != nil {
		if err := h.saveUser(user); err != nil {
			return nil, err
		}
	}
	return h.MemoryStore.SaveUser(ctx, user)
}

type recordingPublisher struct {
	mu          sync.Mutex
	transitions []Transition
	err         error
}

func (r *recordingPublisher) Publish(_ context.Context, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
	return r.err
}

func (r *recordingPublisher) kinds() []TransitionKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []TransitionKind
	for _, t := range r.transitions {
		kinds = append(kinds, t.Kind)
	}
	return kinds
}

// seedStore returns a store holding two organizations:
//
//	acme   owned by olive, no members
//	globex owned by gina, bob is an unassigned member
//
// and alice, who belongs nowhere.
func seedStore(t *testing.T) *hookStore {
	t.Helper()
	ctx := context.Background()
	mem := database.NewMemoryStore()

	orgs := []*model.Organization{
		{
			Key:    "acme",
			Name:   "Acme",
			Owners: []model.Owner{{Username: "olive", OwnerID: "u-olive"}},
		},
		{
			Key:        "globex",
			Name:       "Globex",
			Owners:     []model.Owner{{Username: "gina", OwnerID: "u-gina"}},
			Unassigned: []model.UnassignedMember{{Username: "bob", UnassignedID: "u-bob"}},
		},
	}
	for _, org := range orgs {
		if _, err := mem.SaveOrganization(ctx, org); err != nil {
			t.Fatal(err)
		}
	}

	users := []*model.User{
		{Key: "u-olive", Username: "olive", Organization: &model.OrganizationRef{Name: "Acme", OrganizationID: "acme"}},
		{Key: "u-gina", Username: "gina", Organization: &model.OrganizationRef{Name: "Globex", OrganizationID: "globex"}},
		{Key: "u-bob", Username: "bob", Organization: &model.OrganizationRef{Name: "Globex", OrganizationID: "globex"}},
		{Key: "u-alice", Username: "alice"},
	}
	for _, user := range users {
		if _, err := mem.SaveUser(ctx, user); err != nil {
			t.Fatal(err)
		}
	}

	return &hookStore{MemoryStore: mem}
}

func newTestOrchestrator(store EntityStore, pub Publisher, retries uint64) *Orchestrator {
	return New(store,
		WithPublisher(pub),
		WithConflictRetries(retries),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func mustOrg(t *testing.T, store EntityStore, id string) *model.Organization {
	t.Helper()
	org, err := store.FindOrganizationByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return org
}

func mustUser(t *testing.T, store EntityStore, id string) *model.User {
	t.Helper()
	user, err := store.FindUserByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return user
}

func TestApplyApproveRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	pub := &recordingPublisher{}
	o := newTestOrchestrator(store, pub, 3)

	res := o.Apply(ctx, "acme", alice, "hi")
	is.Equal(res.Status, StatusApplied)
	is.Equal(mustOrg(t, store, "acme").Applications, []model.Application{{Username: "alice", UserID: "u-alice", Comment: "hi"}})

	res = o.Approve(ctx, olive, "acme", "u-alice")
	is.Equal(res.Status, StatusApproved)
	is.Equal(res.RedirectTarget, "/organizations/acme/employees")

	org := mustOrg(t, store, "acme")
	is.Equal(len(org.Applications), 0)
	is.Equal(org.Unassigned, []model.UnassignedMember{{Username: "alice", UnassignedID: "u-alice"}})
	is.Equal(mustUser(t, store, "u-alice").Organization, &model.OrganizationRef{Name: "Acme", OrganizationID: "acme"})

	before := mustOrg(t, store, "acme")
	res = o.Approve(ctx, olive, "acme", "u-alice")
	is.Equal(res.Status, StatusAlreadyMember)
	is.Equal(mustOrg(t, store, "acme").Rev, before.Rev)

	is.Equal(pub.kinds(), []TransitionKind{TransitionApplied, TransitionApproved})
}

func TestApplyTwiceKeepsOneApplication(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	is.Equal(o.Apply(ctx, "acme", alice, "first").Status, StatusApplied)
	res := o.Apply(ctx, "acme", alice, "second")
	is.Equal(res.Status, StatusAlreadyApplied)
	is.True(errors.Is(res.Err, ErrAlreadyApplied))

	apps := mustOrg(t, store, "acme").Applications
	is.Equal(len(apps), 1)
	is.Equal(apps[0].Comment, "first")
}

func TestInputErrorsDoNotTouchStore(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	is.Equal(o.Apply(ctx, "", alice, "").Status, StatusInputError)
	is.Equal(o.Apply(ctx, "acme", Actor{}, "").Status, StatusInputError)
	is.Equal(o.Approve(ctx, olive, "acme", " ").Status, StatusInputError)
	is.Equal(o.Approve(ctx, olive, "", "u-alice").Status, StatusInputError)
	is.Equal(o.Decline(ctx, olive, "acme", "").Status, StatusInputError)
	is.Equal(o.State(ctx, "acme", "").Status, StatusInputError)

	res := o.Apply(ctx, "", alice, "")
	is.True(errors.Is(res.Err, ErrInvalidInput))
	is.Equal(store.finds.Load(), int32(0))
}

func TestNotFound(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	is.Equal(o.Apply(ctx, "initech", alice, "").Status, StatusNotFound)
	is.Equal(o.Approve(ctx, olive, "initech", "u-alice").Status, StatusNotFound)
	is.Equal(o.Approve(ctx, olive, "acme", "u-nobody").Status, StatusNotFound)
	is.Equal(o.Decline(ctx, olive, "initech", "u-alice").Status, StatusNotFound)
	is.Equal(o.State(ctx, "initech", "u-alice").Status, StatusNotFound)
}

func TestApproveWithDanglingPreviousOrganization(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	stale := mustUser(t, store, "u-alice")
	stale.Organization = &model.OrganizationRef{Name: "Defunct", OrganizationID: "defunct"}
	_, err := store.MemoryStore.SaveUser(ctx, stale)
	is.NoErr(err)

	before := mustOrg(t, store, "acme")
	res := o.Approve(ctx, olive, "acme", "u-alice")
	is.Equal(res.Status, StatusNotFound)
	is.Equal(mustOrg(t, store, "acme").Rev, before.Rev)
}

func TestApproveTransfersFromPreviousOrganization(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	pub := &recordingPublisher{}
	o := newTestOrchestrator(store, pub, 3)

	is.Equal(o.Apply(ctx, "acme", Actor{UserID: "u-bob", Username: "bob"}, "moving on").Status, StatusApplied)
	is.Equal(o.Approve(ctx, olive, "acme", "u-bob").Status, StatusApproved)

	is.Equal(mustUser(t, store, "u-bob").Organization.OrganizationID, "acme")
	is.True(mustOrg(t, store, "acme").HasUnassigned("u-bob"))
	// bob must no longer be listed by the organization he left
	is.Equal(len(mustOrg(t, store, "globex").Unassigned), 0)

	is.Equal(pub.transitions[1].PreviousOrganizationID, "globex")
}

func TestApproveLocatesPreviousOrganizationByName(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	bob := mustUser(t, store, "u-bob")
	bob.Organization = &model.OrganizationRef{Name: "Globex"}
	_, err := store.MemoryStore.SaveUser(ctx, bob)
	is.NoErr(err)

	is.Equal(o.Approve(ctx, olive, "acme", "u-bob").Status, StatusApproved)
	is.Equal(len(mustOrg(t, store, "globex").Unassigned), 0)
}

func TestApproveForbiddenForNonOwner(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	is.Equal(o.Apply(ctx, "acme", alice, "").Status, StatusApplied)
	res := o.Approve(ctx, Actor{UserID: "u-gina", Username: "gina"}, "acme", "u-alice")
	is.Equal(res.Status, StatusForbidden)
	is.Equal(len(mustOrg(t, store, "acme").Unassigned), 0)
	is.Equal(mustUser(t, store, "u-alice").Organization, nil)
}

func TestDecline(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	pub := &recordingPublisher{}
	o := newTestOrchestrator(store, pub, 3)

	is.Equal(o.Apply(ctx, "acme", alice, "").Status, StatusApplied)
	userBefore := mustUser(t, store, "u-alice")

	res := o.Decline(ctx, olive, "acme", "u-alice")
	is.Equal(res.Status, StatusDeclined)
	is.Equal(res.RedirectTarget, "/organizations/acme/employees")

	org := mustOrg(t, store, "acme")
	is.Equal(len(org.Applications), 0)
	is.Equal(len(org.Unassigned), 0)
	is.Equal(mustUser(t, store, "u-alice").Rev, userBefore.Rev)

	// declining again is a no-op
	res = o.Decline(ctx, olive, "acme", "u-alice")
	is.Equal(res.Status, StatusDeclined)
	is.Equal(mustOrg(t, store, "acme").Rev, org.Rev)

	is.Equal(pub.kinds(), []TransitionKind{TransitionApplied, TransitionDeclined})

	is.Equal(o.Decline(ctx, alice, "acme", "u-alice").Status, StatusForbidden)
}

func TestApproveRollsBackWhenUserWriteFails(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	pub := &recordingPublisher{}
	o := newTestOrchestrator(store, pub, 3)

	is.Equal(o.Apply(ctx, "acme", alice, "").Status, StatusApplied)

	store.saveUser = func(*model.User) error { return errors.New("disk full") }
	res := o.Approve(ctx, olive, "acme", "u-alice")
	is.Equal(res.Status, StatusFailed)

	var partial *PartialWriteError
	is.True(!errors.As(res.Err, &partial))

	org := mustOrg(t, store, "acme")
	is.Equal(len(org.Unassigned), 0)
	is.True(org.HasApplication("u-alice"))
	is.Equal(mustUser(t, store, "u-alice").Organization, nil)
	is.Equal(pub.kinds(), []TransitionKind{TransitionApplied})
}

func TestApproveReportsPartialWrite(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	is.Equal(o.Apply(ctx, "acme", alice, "").Status, StatusApplied)

	var orgSaves atomic.Int32
	store.saveUser = func(*model.User) error { return errors.New("disk full") }
	store.saveOrg = func(*model.Organization) error {
		if orgSaves.Add(1) > 1 {
			return errors.New("connection reset")
		}
		return nil
	}

	res := o.Approve(ctx, olive, "acme", "u-alice")
	is.Equal(res.Status, StatusFailed)

	var partial *PartialWriteError
	is.True(errors.As(res.Err, &partial))
	is.Equal(partial.Applied, []string{"organization acme"})

	store.saveOrg, store.saveUser = nil, nil
	is.True(mustOrg(t, store, "acme").HasUnassigned("u-alice"))
	is.Equal(mustUser(t, store, "u-alice").Organization, nil)
}

func TestConcurrentApproveDoesNotDuplicateMember(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	is.Equal(o.Apply(ctx, "acme", alice, "").Status, StatusApplied)

	// A second approval completes between our reads and our writes.
	rival := newTestOrchestrator(store.MemoryStore, nil, 0)
	var once sync.Once
	var rivalStatus Status
	race := func() {
		once.Do(func() {
			rivalStatus = rival.Approve(ctx, olive, "acme", "u-alice").Status
		})
	}
	store.saveOrg = func(*model.Organization) error { race(); return nil }
	store.saveUser = func(*model.User) error { race(); return nil }

	res := o.Approve(ctx, olive, "acme", "u-alice")
	is.Equal(rivalStatus, StatusApproved)
	is.Equal(res.Status, StatusAlreadyMember)
	is.Equal(mustOrg(t, store, "acme").Unassigned, []model.UnassignedMember{{Username: "alice", UnassignedID: "u-alice"}})
}

func TestConflictRetriesAreBounded(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 2)

	var saves atomic.Int32
	store.saveOrg = func(org *model.Organization) error {
		saves.Add(1)
		return fmt.Errorf("replace organization %s: %w", org.Key, database.ErrConflict)
	}

	res := o.Apply(ctx, "acme", alice, "")
	is.Equal(res.Status, StatusFailed)
	is.True(errors.Is(res.Err, database.ErrConflict))
	is.Equal(saves.Load(), int32(3))
}

func TestLookupFailureIsStoreFailure(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	outage := errors.New("connection refused")
	store.findOrg = func(string) error { return outage }

	res := o.Approve(ctx, olive, "acme", "u-alice")
	is.Equal(res.Status, StatusFailed)
	is.True(errors.Is(res.Err, outage))

	res = o.Apply(ctx, "acme", alice, "")
	is.Equal(res.Status, StatusFailed)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, &recordingPublisher{err: errors.New("broker down")}, 3)

	is.Equal(o.Apply(ctx, "acme", alice, "").Status, StatusApplied)
	is.True(mustOrg(t, store, "acme").HasApplication("u-alice"))
}

func TestCreateOrganization(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	pub := &recordingPublisher{}
	o := newTestOrchestrator(store, pub, 3)

	res := o.CreateOrganization(ctx, alice, NewOrganizationInput{Name: "Initech"})
	is.Equal(res.Status, StatusCreated)
	is.True(res.OrganizationID != "")
	is.Equal(res.RedirectTarget, "/organizations/"+res.OrganizationID)

	org := mustOrg(t, store, res.OrganizationID)
	is.Equal(org.Owners, []model.Owner{{Username: "alice", OwnerID: "u-alice"}})
	is.Equal(mustUser(t, store, "u-alice").Organization, &model.OrganizationRef{Name: "Initech", OrganizationID: res.OrganizationID})

	is.Equal(o.CreateOrganization(ctx, olive, NewOrganizationInput{Name: "initech"}).Status, StatusAlreadyExists)
	is.Equal(o.CreateOrganization(ctx, olive, NewOrganizationInput{Name: " "}).Status, StatusInputError)
	is.Equal(o.CreateOrganization(ctx, Actor{UserID: "u-ghost", Username: "ghost"}, NewOrganizationInput{Name: "Hooli"}).Status, StatusNotFound)

	is.Equal(pub.kinds(), []TransitionKind{TransitionCreated})
}

func TestCreateOrganizationLeavesPreviousOrganization(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	res := o.CreateOrganization(ctx, Actor{UserID: "u-bob", Username: "bob"}, NewOrganizationInput{Name: "Bobco"})
	is.Equal(res.Status, StatusCreated)
	is.Equal(len(mustOrg(t, store, "globex").Unassigned), 0)
	is.Equal(mustUser(t, store, "u-bob").Organization.OrganizationID, res.OrganizationID)
}

func TestState(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	is.Equal(o.State(ctx, "acme", "u-alice").State, StateNone)
	o.Apply(ctx, "acme", alice, "")
	is.Equal(o.State(ctx, "acme", "u-alice").State, StatePending)
	o.Approve(ctx, olive, "acme", "u-alice")

	res := o.State(ctx, "acme", "u-alice")
	is.Equal(res.Status, StatusOK)
	is.Equal(res.State, StateMember)
}

func TestApplications(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	res := o.Applications(ctx, olive, "acme")
	is.Equal(res.Status, StatusOK)
	is.Equal(res.Applications, []model.Application{})

	o.Apply(ctx, "acme", alice, "hi")
	o.Apply(ctx, "acme", Actor{UserID: "u-bob", Username: "bob"}, "")

	res = o.Applications(ctx, olive, "acme")
	is.Equal(res.Status, StatusOK)
	is.Equal(res.OrganizationID, "acme")
	is.Equal(res.Applications, []model.Application{
		{Username: "alice", UserID: "u-alice", Comment: "hi"},
		{Username: "bob", UserID: "u-bob"},
	})

	o.Decline(ctx, olive, "acme", "u-bob")
	is.Equal(len(o.Applications(ctx, olive, "acme").Applications), 1)

	is.Equal(o.Applications(ctx, alice, "acme").Status, StatusForbidden)
	is.Equal(o.Applications(ctx, Actor{}, "acme").Status, StatusInputError)
	is.Equal(o.Applications(ctx, olive, " ").Status, StatusInputError)
	is.Equal(o.Applications(ctx, olive, "initech").Status, StatusNotFound)
}

func TestOwnerMayApproveWithoutApplication(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 3)

	res := o.Approve(ctx, olive, "acme", "u-bob")
	is.Equal(res.Status, StatusApproved)
	is.True(mustOrg(t, store, "acme").HasUnassigned("u-bob"))
	is.True(!mustOrg(t, store, "globex").HasUnassigned("u-bob"))
}

func TestOperationsAreCounted(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := seedStore(t)
	o := newTestOrchestrator(store, nil, 1)

	applied := operationsCounter.WithLabelValues("apply", string(StatusApplied))
	dup := operationsCounter.WithLabelValues("apply", string(StatusAlreadyApplied))
	retries := conflictRetryCounter.WithLabelValues("decline")
	beforeApplied, beforeDup, beforeRetries := testutil.ToFloat64(applied), testutil.ToFloat64(dup), testutil.ToFloat64(retries)

	o.Apply(ctx, "acme", alice, "")
	o.Apply(ctx, "acme", alice, "")

	store.saveOrg = func(*model.Organization) error { return database.ErrConflict }
	is.Equal(o.Decline(ctx, olive, "acme", "u-alice").Status, StatusFailed)

	is.Equal(testutil.ToFloat64(applied)-beforeApplied, 1.0)
	is.Equal(testutil.ToFloat64(dup)-beforeDup, 1.0)
	is.Equal(testutil.ToFloat64(retries)-beforeRetries, 1.0)
}
