// Package membership defines the GraphQL surface of the membership workflow.
package membership

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/paycheck/paycheck-backend/internal/workflow"
	"github.com/paycheck/paycheck-backend/model"
)

// MembershipService is the workflow the resolvers drive.
type MembershipService interface {
	Apply(ctx context.Context, orgID string, applicant workflow.Actor, comment string) workflow.Result
	Approve(ctx context.Context, actor workflow.Actor, orgID, userID string) workflow.Result
	Decline(ctx context.Context, actor workflow.Actor, orgID, userID string) workflow.Result
	CreateOrganization(ctx context.Context, actor workflow.Actor, input workflow.NewOrganizationInput) workflow.Result
	State(ctx context.Context, orgID, userID string) workflow.Result
	Applications(ctx context.Context, actor workflow.Actor, orgID string) workflow.Result
}

// Payload is what every membership field resolves to.
type Payload struct {
	Status         string              `json:"status"`
	RedirectURL    string              `json:"redirect_url,omitempty"`
	OrganizationID string              `json:"organization_id,omitempty"`
	State          string              `json:"state,omitempty"`
	Applications   []model.Application `json:"applications,omitempty"`
}

func payloadOf(res workflow.Result) Payload {
	return Payload{
		Status:         string(res.Status),
		RedirectURL:    res.RedirectTarget,
		OrganizationID: res.OrganizationID,
		State:          string(res.State),
		Applications:   res.Applications,
	}
}

// StatusEnum lists the workflow outcomes.
var StatusEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "MembershipStatus",
	Values: graphql.EnumValueConfigMap{
		"APPLIED":         &graphql.EnumValueConfig{Value: string(workflow.StatusApplied)},
		"ALREADY_APPLIED": &graphql.EnumValueConfig{Value: string(workflow.StatusAlreadyApplied)},
		"APPROVED":        &graphql.EnumValueConfig{Value: string(workflow.StatusApproved)},
		"ALREADY_MEMBER":  &graphql.EnumValueConfig{Value: string(workflow.StatusAlreadyMember)},
		"DECLINED":        &graphql.EnumValueConfig{Value: string(workflow.StatusDeclined)},
		"CREATED":         &graphql.EnumValueConfig{Value: string(workflow.StatusCreated)},
		"ALREADY_EXISTS":  &graphql.EnumValueConfig{Value: string(workflow.StatusAlreadyExists)},
		"OK":              &graphql.EnumValueConfig{Value: string(workflow.StatusOK)},
		"NOT_FOUND":       &graphql.EnumValueConfig{Value: string(workflow.StatusNotFound)},
		"INPUT_ERROR":     &graphql.EnumValueConfig{Value: string(workflow.StatusInputError)},
		"FORBIDDEN":       &graphql.EnumValueConfig{Value: string(workflow.StatusForbidden)},
		"FAILED":          &graphql.EnumValueConfig{Value: string(workflow.StatusFailed)},
	},
})

// StateEnum lists the membership states.
var StateEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "MembershipState",
	Values: graphql.EnumValueConfigMap{
		"NONE":    &graphql.EnumValueConfig{Value: string(workflow.StateNone)},
		"PENDING": &graphql.EnumValueConfig{Value: string(workflow.StatePending)},
		"MEMBER":  &graphql.EnumValueConfig{Value: string(workflow.StateMember)},
	},
})

// ApplicationType is a pending application as seen by an owner.
var ApplicationType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Application",
	Fields: graphql.Fields{
		"username": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"user_id":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"comment":  &graphql.Field{Type: graphql.String},
	},
})

// PayloadType represents the outcome of a membership operation
var PayloadType = graphql.NewObject(graphql.ObjectConfig{
	Name: "MembershipPayload",
	Fields: graphql.Fields{
		"status":          &graphql.Field{Type: graphql.NewNonNull(StatusEnum)},
		"redirect_url":    &graphql.Field{Type: graphql.String},
		"organization_id": &graphql.Field{Type: graphql.String},
		"state":           &graphql.Field{Type: StateEnum},
		"applications":    &graphql.Field{Type: graphql.NewList(ApplicationType)},
	},
})
