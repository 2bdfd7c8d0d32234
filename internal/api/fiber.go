// Package api builds the HTTP application.
package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/paycheck/paycheck-backend/graphql"
	"github.com/paycheck/paycheck-backend/internal/workflow"
	"github.com/paycheck/paycheck-backend/restapi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewFiberApp creates and configures a Fiber app with REST and GraphQL routes
func NewFiberApp(orch *workflow.Orchestrator, log *zap.Logger) (*fiber.App, error) {
	schema, err := graphql.CreateSchema(orch)
	if err != nil {
		return nil, fmt.Errorf("create GraphQL schema: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:     "paycheck-backend API v1.0",
		BodyLimit:   1024 * 1024, // 1MB
		ReadTimeout: 60 * time.Second,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000,http://localhost:4000,http://127.0.0.1:3000,http://127.0.0.1:4000",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
		AllowMethods:     "GET, POST, HEAD, OPTIONS",
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("graphql_op", "-")
		return c.Next()
	})
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} op=${locals:graphql_op} ${latency}\n",
	}))

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	restapi.SetupRoutes(app, orch, schema, log)

	return app, nil
}
