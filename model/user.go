// Package model provides data models for the membership workflow.
package model

// OrganizationRef is the back-reference a user keeps to its current organization.
type OrganizationRef struct {
	Name           string `json:"name" yaml:"name"`
	OrganizationID string `json:"organization_id" yaml:"organization_id"`
}

// User represents a user in the system
type User struct {
	Key          string           `json:"_key,omitempty" yaml:"key"`
	Rev          string           `json:"_rev,omitempty" yaml:"-"`
	Username     string           `json:"username" yaml:"username"`
	Organization *OrganizationRef `json:"organization,omitempty" yaml:"organization,omitempty"`
}

// BelongsTo returns true if the user references the organization
func (u *User) BelongsTo(orgID string) bool {
	return u.Organization != nil && u.Organization.OrganizationID == orgID
}

// Clone returns a copy that does not share the organization reference.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Organization != nil {
		ref := *u.Organization
		c.Organization = &ref
	}
	return &c
}
