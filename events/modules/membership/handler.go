package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paycheck/paycheck-backend/internal/workflow"
	"go.uber.org/zap"
)

// MembershipService defines the workflow operations a command can trigger.
type MembershipService interface {
	Apply(ctx context.Context, orgID string, applicant workflow.Actor, comment string) workflow.Result
	Approve(ctx context.Context, actor workflow.Actor, orgID, userID string) workflow.Result
	Decline(ctx context.Context, actor workflow.Actor, orgID, userID string) workflow.Result
}

// HandleMembershipCommand processes one message from the commands topic.
// Business rejections such as ALREADY_MEMBER are logged and acknowledged;
// only malformed messages and store failures return an error.
func HandleMembershipCommand(ctx context.Context, msg []byte, service MembershipService, logger *zap.Logger) (workflow.Result, error) {
	var cmd MembershipCommand
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return workflow.Result{}, fmt.Errorf("failed to unmarshal MembershipCommand: %w", err)
	}

	if cmd.OrganizationID == "" || cmd.UserID == "" {
		return workflow.Result{}, fmt.Errorf("invalid command: missing organization_id or user_id")
	}

	actor := workflow.Actor{UserID: cmd.ActorID, Username: cmd.ActorUsername}
	if !actor.IsZero() && !actor.Valid() {
		return workflow.Result{}, fmt.Errorf("invalid command: actor_id and actor_username must be set together")
	}

	var res workflow.Result
	switch strings.ToLower(strings.TrimSpace(cmd.Command)) {
	case CommandApply:
		res = service.Apply(ctx, cmd.OrganizationID, workflow.Actor{UserID: cmd.UserID, Username: cmd.Username}, cmd.Comment)
	case CommandApprove:
		res = service.Approve(ctx, actor, cmd.OrganizationID, cmd.UserID)
	case CommandDecline:
		res = service.Decline(ctx, actor, cmd.OrganizationID, cmd.UserID)
	default:
		return workflow.Result{}, fmt.Errorf("invalid command: unknown command %q", cmd.Command)
	}

	fields := []zap.Field{
		zap.String("command", cmd.Command),
		zap.String("organization_id", cmd.OrganizationID),
		zap.String("user_id", cmd.UserID),
		zap.String("status", string(res.Status)),
	}

	if res.Status == workflow.StatusFailed {
		return res, fmt.Errorf("%s command failed: %w", cmd.Command, res.Err)
	}
	if !res.Succeeded() {
		logger.Info("Membership command rejected", append(fields, zap.Error(res.Err))...)
		return res, nil
	}

	logger.Info("Processed membership command", fields...)
	return res, nil
}
