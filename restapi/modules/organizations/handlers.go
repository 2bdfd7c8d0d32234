package organizations

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paycheck/paycheck-backend/internal/workflow"
	"github.com/paycheck/paycheck-backend/restapi/modules/auth"
)

var messages = map[workflow.Status]string{
	workflow.StatusApplied:        "Application submitted",
	workflow.StatusAlreadyApplied: "You have already applied to this organization",
	workflow.StatusApproved:       "Application approved",
	workflow.StatusAlreadyMember:  "User is already a member of this organization",
	workflow.StatusDeclined:       "Application declined",
	workflow.StatusCreated:        "Organization created",
	workflow.StatusAlreadyExists:  "An organization with this name already exists",
	workflow.StatusOK:             "OK",
	workflow.StatusNotFound:       "Organization or user not found",
	workflow.StatusInputError:     "Invalid request",
	workflow.StatusForbidden:      "Only organization owners can do this",
	workflow.StatusFailed:         "Something went wrong, please try again",
}

// HTTPStatus maps a workflow status onto a response code. Business
// rejections are not HTTP errors.
func HTTPStatus(s workflow.Status) int {
	switch s {
	case workflow.StatusApplied, workflow.StatusCreated:
		return fiber.StatusCreated
	case workflow.StatusInputError:
		return fiber.StatusBadRequest
	case workflow.StatusForbidden:
		return fiber.StatusForbidden
	case workflow.StatusNotFound:
		return fiber.StatusNotFound
	case workflow.StatusFailed:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusOK
	}
}

func respond(c *fiber.Ctx, res workflow.Result) error {
	return c.Status(HTTPStatus(res.Status)).JSON(Response{
		Status:         res.Status,
		Message:        messages[res.Status],
		RedirectURL:    res.RedirectTarget,
		OrganizationID: res.OrganizationID,
		State:          res.State,
		Applications:   res.Applications,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Authentication required",
	})
}

// CreateOrganization creates an organization owned by the caller.
func CreateOrganization(svc MembershipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := auth.ActorFrom(c)
		if !ok {
			return unauthorized(c)
		}

		var req workflow.NewOrganizationInput
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		return respond(c, svc.CreateOrganization(c.UserContext(), owner, req))
	}
}

// Apply files an application from the caller.
func Apply(svc MembershipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		applicant, ok := auth.ActorFrom(c)
		if !ok {
			return unauthorized(c)
		}

		var req ApplyRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid request body",
				})
			}
		}

		return respond(c, svc.Apply(c.UserContext(), c.Params("organizationId"), applicant, req.Comment))
	}
}

// Approve admits the applicant; the caller must own the organization.
func Approve(svc MembershipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := auth.ActorFrom(c)
		if !ok {
			return unauthorized(c)
		}
		return respond(c, svc.Approve(c.UserContext(), owner, c.Params("organizationId"), c.Params("userId")))
	}
}

// Decline drops the application; the caller must own the organization.
func Decline(svc MembershipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := auth.ActorFrom(c)
		if !ok {
			return unauthorized(c)
		}
		return respond(c, svc.Decline(c.UserContext(), owner, c.Params("organizationId"), c.Params("userId")))
	}
}

// State reports the membership state of a user.
func State(svc MembershipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return respond(c, svc.State(c.UserContext(), c.Params("organizationId"), c.Params("userId")))
	}
}

// ListApplications returns the pending applications; the caller must own the
// organization.
func ListApplications(svc MembershipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := auth.ActorFrom(c)
		if !ok {
			return unauthorized(c)
		}
		return respond(c, svc.Applications(c.UserContext(), owner, c.Params("organizationId")))
	}
}
