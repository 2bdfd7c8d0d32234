// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/paycheck/paycheck-backend/restapi/modules/auth"
	"github.com/paycheck/paycheck-backend/restapi/modules/organizations"
	"go.uber.org/zap"
)

// SetupRoutes configures all REST API routes and the GraphQL endpoint.
// CORS and request logging are handled globally in internal/api/fiber.go.
func SetupRoutes(app *fiber.App, svc organizations.MembershipService, schema graphql.Schema, logger *zap.Logger) {
	// API Group /api/v1
	api := app.Group("/api/v1")

	// GraphQL Route - mutations check for an actor themselves
	api.Post("/graphql", auth.OptionalAuth, GraphQLHandler(schema))

	// Auth Routes
	authGroup := api.Group("/auth")
	authGroup.Get("/me", auth.RequireAuth, auth.Me())
	authGroup.Post("/logout", auth.Logout())
	authGroup.Post("/refresh", auth.RefreshToken())

	// Organization membership workflow
	orgs := api.Group("/organizations", auth.RequireAuth)
	orgs.Post("/", organizations.CreateOrganization(svc))
	orgs.Get("/:organizationId/applications", organizations.ListApplications(svc))
	orgs.Post("/:organizationId/applications", organizations.Apply(svc))
	orgs.Post("/:organizationId/applications/:userId/approve", organizations.Approve(svc))
	orgs.Post("/:organizationId/applications/:userId/decline", organizations.Decline(svc))
	orgs.Get("/:organizationId/applications/:userId/state", organizations.State(svc))

	logger.Info("API routes initialized successfully")
}
