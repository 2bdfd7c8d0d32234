// Package model defines the documents stored for organization membership.
package model

import "time"

// Owner is a user with administrative rights over an organization.
type Owner struct {
	Username string `json:"username" yaml:"username"`
	OwnerID  string `json:"owner_id" yaml:"owner_id"`
}

// UnassignedMember is an approved member not yet placed in a team or role.
type UnassignedMember struct {
	Username     string `json:"username" yaml:"username"`
	UnassignedID string `json:"unassigned_id" yaml:"unassigned_id"`
}

// Application is a pending request from a user to join an organization.
type Application struct {
	Username string `json:"username" yaml:"username"`
	UserID   string `json:"user_id" yaml:"user_id"`
	Comment  string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Organization represents an organization in the system
type Organization struct {
	Key          string             `json:"_key,omitempty" yaml:"key"`
	Rev          string             `json:"_rev,omitempty" yaml:"-"`
	Name         string             `json:"name" yaml:"name"`
	NameKey      string             `json:"name_key,omitempty" yaml:"-"`
	Description  string             `json:"description,omitempty" yaml:"description,omitempty"`
	Owners       []Owner            `json:"owners" yaml:"owners"`
	Unassigned   []UnassignedMember `json:"unassigned" yaml:"unassigned"`
	Applications []Application      `json:"applications" yaml:"applications"`
	CreatedAt    time.Time          `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time          `json:"updated_at" yaml:"-"`
}

// NewOrganization creates an organization owned by a single user
func NewOrganization(name, description string, owner Owner) *Organization {
	now := time.Now().UTC()
	return &Organization{
		Name:         name,
		Description:  description,
		Owners:       []Owner{owner},
		Unassigned:   []UnassignedMember{},
		Applications: []Application{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Ref returns the back-reference a member user stores for this organization.
func (o *Organization) Ref() *OrganizationRef {
	return &OrganizationRef{Name: o.Name, OrganizationID: o.Key}
}

// IsOwner checks if the user id belongs to one of the owners
func (o *Organization) IsOwner(userID string) bool {
	for _, owner := range o.Owners {
		if owner.OwnerID == userID {
			return true
		}
	}
	return false
}

// HasApplication reports whether the user has a pending application.
func (o *Organization) HasApplication(userID string) bool {
	for _, a := range o.Applications {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// HasUnassigned reports whether the user is an unassigned member.
func (o *Organization) HasUnassigned(userID string) bool {
	for _, u := range o.Unassigned {
		if u.UnassignedID == userID {
			return true
		}
	}
	return false
}

// RemoveApplications drops every application filed by the user and returns
// how many were removed.
func (o *Organization) RemoveApplications(userID string) int {
	kept := o.Applications[:0]
	for _, a := range o.Applications {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	removed := len(o.Applications) - len(kept)
	o.Applications = kept
	return removed
}

// RemoveUnassigned drops every unassigned entry for the user and returns how
// many were removed.
func (o *Organization) RemoveUnassigned(userID string) int {
	kept := o.Unassigned[:0]
	for _, u := range o.Unassigned {
		if u.UnassignedID != userID {
			kept = append(kept, u)
		}
	}
	removed := len(o.Unassigned) - len(kept)
	o.Unassigned = kept
	return removed
}

// Clone returns a deep copy so callers can modify lists without touching the
// original document.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	c := *o
	c.Owners = append([]Owner{}, o.Owners...)
	c.Unassigned = append([]UnassignedMember{}, o.Unassigned...)
	c.Applications = append([]Application{}, o.Applications...)
	return &c
}
