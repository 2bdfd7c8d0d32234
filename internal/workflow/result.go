package workflow

import (
	"fmt"
	"strings"

	"github.com/paycheck/paycheck-backend/model"
)

// Status is the outcome of a workflow operation as reported to callers.
type Status string

// Operation outcomes.
const (
	StatusApplied        Status = "APPLIED"
	StatusAlreadyApplied Status = "ALREADY_APPLIED"
	StatusApproved       Status = "APPROVED"
	StatusAlreadyMember  Status = "ALREADY_MEMBER"
	StatusDeclined       Status = "DECLINED"
	StatusCreated        Status = "CREATED"
	StatusAlreadyExists  Status = "ALREADY_EXISTS"
	StatusOK             Status = "OK"
	StatusNotFound       Status = "NOT_FOUND"
	StatusInputError     Status = "INPUT_ERROR"
	StatusForbidden      Status = "FORBIDDEN"
	StatusFailed         Status = "FAILED"
)

// Result is what every orchestrator operation returns. Err is set for every
// status that is not a success and is meant for logs, not for end users.
type Result struct {
	Status         Status
	RedirectTarget string
	OrganizationID string
	State          State
	Applications   []model.Application
	Err            error

	retryable bool
}

// Succeeded reports whether the operation changed or confirmed state as asked.
func (r Result) Succeeded() bool {
	switch r.Status {
	case StatusApplied, StatusApproved, StatusDeclined, StatusCreated, StatusOK:
		return true
	}
	return false
}

// PartialWriteError reports a multi-document write where some documents were
// saved, a later write failed, and rolling the saved ones back failed too.
// Applied names the documents that remain in their new state.
type PartialWriteError struct {
	Applied []string
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write, left applied [%s]: %v", strings.Join(e.Applied, ", "), e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
