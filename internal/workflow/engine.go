// Package workflow implements the organization application workflow: users
// apply to join an organization, owners approve or decline them, and an
// approval moves the user out of their previous organization.
//
// The engine functions in this file are pure. They take loaded documents and
// return the documents to persist, never touching the store and never
// modifying their arguments. The Orchestrator wraps them with store reads,
// writes and failure handling.
package workflow

import (
	"errors"
	"strings"

	"github.com/paycheck/paycheck-backend/model"
	"github.com/paycheck/paycheck-backend/util"
)

// Business rule rejections. These are expected outcomes, not failures.
var (
	ErrAlreadyApplied = errors.New("user has already applied to this organization")
	ErrAlreadyMember  = errors.New("user is already a member of this organization")
	ErrNotOwner       = errors.New("actor is not an owner of this organization")
	ErrInvalidInput   = errors.New("invalid input")
)

// Actor is the verified identity a request is made on behalf of.
type Actor struct {
	UserID   string
	Username string
}

// Valid reports whether the actor carries an identity.
func (a Actor) Valid() bool {
	return a.UserID != "" && a.Username != ""
}

// IsZero reports whether no identity was given at all. Only the zero actor
// bypasses ownership checks; a half-filled one is checked like any other.
func (a Actor) IsZero() bool {
	return a.UserID == "" && a.Username == ""
}

// State is the position of one user in one organization's application
// lifecycle.
type State string

// Membership states.
const (
	StateNone    State = "NONE"
	StatePending State = "PENDING"
	StateMember  State = "MEMBER"
)

// Mutation is the set of documents a decision requires the caller to persist.
// Nil fields are left untouched.
type Mutation struct {
	Organization         *model.Organization
	User                 *model.User
	PreviousOrganization *model.Organization
	RedirectTarget       string
}

// EmployeesPath is where an owner lands after approving or declining.
func EmployeesPath(orgID string) string {
	return "/organizations/" + orgID + "/employees"
}

// OrganizationPath is the details page of an organization.
func OrganizationPath(orgID string) string {
	return "/organizations/" + orgID
}

// Apply files a pending application from the applicant.
func Apply(org *model.Organization, applicant Actor, comment string) (Mutation, error) {
	if org.HasApplication(applicant.UserID) {
		return Mutation{}, ErrAlreadyApplied
	}
	if org.HasUnassigned(applicant.UserID) {
		return Mutation{}, ErrAlreadyMember
	}

	next := org.Clone()
	next.Applications = append(next.Applications, model.Application{
		Username: applicant.Username,
		UserID:   applicant.UserID,
		Comment:  strings.TrimSpace(comment),
	})

	return Mutation{Organization: next, RedirectTarget: OrganizationPath(org.Key)}, nil
}

// Approve admits the user into org as an unassigned member. previous is the
// organization the user currently references, or nil. A zero actor skips the
// ownership check; callers use that for trusted system commands.
//
// A pending application is not required: an owner may admit any user, which
// also takes them out of the organization they belonged to before.
func Approve(org *model.Organization, actor Actor, user *model.User, previous *model.Organization) (Mutation, error) {
	if !actor.IsZero() && !org.IsOwner(actor.UserID) {
		return Mutation{}, ErrNotOwner
	}
	if org.HasUnassigned(user.Key) {
		return Mutation{}, ErrAlreadyMember
	}

	next := org.Clone()
	next.Unassigned = append(next.Unassigned, model.UnassignedMember{
		Username:     user.Username,
		UnassignedID: user.Key,
	})
	next.RemoveApplications(user.Key)

	nextUser := user.Clone()
	nextUser.Organization = org.Ref()

	m := Mutation{
		Organization:   next,
		User:           nextUser,
		RedirectTarget: EmployeesPath(org.Key),
	}

	if previous != nil && previous.Key != org.Key {
		prev := previous.Clone()
		prev.RemoveUnassigned(user.Key)
		m.PreviousOrganization = prev
	}

	return m, nil
}

// Decline drops every pending application from userID. Declining an absent
// application succeeds without changes.
func Decline(org *model.Organization, actor Actor, userID string) (Mutation, error) {
	if !actor.IsZero() && !org.IsOwner(actor.UserID) {
		return Mutation{}, ErrNotOwner
	}

	next := org.Clone()
	next.RemoveApplications(userID)

	return Mutation{Organization: next, RedirectTarget: EmployeesPath(org.Key)}, nil
}

// PendingApplications returns a copy of the applications waiting on an
// owner's decision.
func PendingApplications(org *model.Organization, actor Actor) ([]model.Application, error) {
	if !org.IsOwner(actor.UserID) {
		return nil, ErrNotOwner
	}
	return org.Clone().Applications, nil
}

// NewOrganizationInput carries the fields a user supplies when creating an
// organization.
type NewOrganizationInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create builds a new organization owned by the actor. The owner's user
// document is pointed at the organization once it has been stored, see
// AssignOwner.
func Create(input NewOrganizationInput, owner Actor) (*model.Organization, error) {
	name := util.DisplayOrgName(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	return model.NewOrganization(name, strings.TrimSpace(input.Description), model.Owner{
		Username: owner.Username,
		OwnerID:  owner.UserID,
	}), nil
}

// AssignOwner points the owner's user document at a stored organization.
func AssignOwner(org *model.Organization, owner *model.User) *model.User {
	next := owner.Clone()
	next.Organization = org.Ref()
	return next
}

// StateOf reports where userID stands with org.
func StateOf(org *model.Organization, userID string) State {
	switch {
	case org.HasUnassigned(userID):
		return StateMember
	case org.HasApplication(userID):
		return StatePending
	default:
		return StateNone
	}
}
