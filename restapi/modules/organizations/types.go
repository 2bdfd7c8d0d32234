// Package organizations provides the REST handlers of the membership workflow.
package organizations

import (
	"context"

	"github.com/paycheck/paycheck-backend/internal/workflow"
	"github.com/paycheck/paycheck-backend/model"
)

// MembershipService is the workflow the handlers drive.
type MembershipService interface {
	Apply(ctx context.Context, orgID string, applicant workflow.Actor, comment string) workflow.Result
	Approve(ctx context.Context, actor workflow.Actor, orgID, userID string) workflow.Result
	Decline(ctx context.Context, actor workflow.Actor, orgID, userID string) workflow.Result
	CreateOrganization(ctx context.Context, actor workflow.Actor, input workflow.NewOrganizationInput) workflow.Result
	State(ctx context.Context, orgID, userID string) workflow.Result
	Applications(ctx context.Context, actor workflow.Actor, orgID string) workflow.Result
}

// ApplyRequest is the body of an application.
type ApplyRequest struct {
	Comment string `json:"comment"`
}

// Response is returned by every membership endpoint.
type Response struct {
	Status         workflow.Status     `json:"status"`
	Message        string              `json:"message"`
	RedirectURL    string              `json:"redirect_url,omitempty"`
	OrganizationID string              `json:"organization_id,omitempty"`
	State          workflow.State      `json:"state,omitempty"`
	Applications   []model.Application `json:"applications,omitempty"`
}
