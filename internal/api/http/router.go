package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/referral-service/internal/api/http/handlers"
	"github.com/spec-kit/referral-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Users     *handlers.UsersHandler
	Referrals *handlers.ReferralsHandler
	Identity  *auth.IdentityMiddleware
}

// RegisterRoutes wires HTTP routes. The identity middleware attaches the
// caller when a valid bearer token is present; no route rejects on a
// missing identity in current scope.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.Identity.Handle)

	api.Post("/auth/login", cfg.Users.Login)
	api.Post("/users/signup", cfg.Users.Signup)
	api.Post("/users/profile", cfg.Users.CompleteProfile)
	api.Get("/users/:userId/referrals", cfg.Users.ListReferrals)
	api.Get("/referrals/report", cfg.Referrals.Report)
}
