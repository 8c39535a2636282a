package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coursetrack-api/internal/config"
	"github.com/noah-isme/coursetrack-api/internal/handler"
	"github.com/noah-isme/coursetrack-api/internal/middleware"
	"github.com/noah-isme/coursetrack-api/internal/observability"
)

// Dependencies groups router dependencies for registration. Nil handlers are skipped.
type Dependencies struct {
	CourseHandler   *handler.CourseHandler
	ProgressHandler *handler.ProgressHandler
	BatchHandler    *handler.BatchHandler
	UserHandler     *handler.UserHandler
	AuthHandler     *handler.AuthHandler
	OverviewHandler *handler.OverviewHandler
	ActivityHandler *handler.ActivityHandler
	UploadHandler   *handler.UploadHandler
	SyncHandler     *handler.SyncHandler
	HealthProbes    map[string]handler.HealthProbe
	// JWTMiddleware authenticates protected groups; tests swap in a stub.
	JWTMiddleware fiber.Handler
	// OptionalJWTMiddleware identifies the caller on public routes when a token is sent.
	OptionalJWTMiddleware fiber.Handler
	// DisableRateLimit turns off the login and upload limiters.
	DisableRateLimit bool
	// RateLimitStorage shares limiter counters across instances; nil keeps them in memory.
	RateLimitStorage fiber.Storage
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	optionalJWT := deps.OptionalJWTMiddleware
	if optionalJWT == nil {
		optionalJWT = middleware.JWTOptional(cfg.JWTSecret)
	}
	limit := func(identifier string, max int, window time.Duration) []fiber.Handler {
		if deps.DisableRateLimit {
			return nil
		}
		return []fiber.Handler{middleware.RateLimit(identifier, max, window, deps.RateLimitStorage)}
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", limit("login", 10, time.Minute)...)
		deps.AuthHandler.Register(auth)
	}

	if deps.UserHandler != nil {
		// registered ahead of the protected group so /register answers before JWT runs
		deps.UserHandler.RegisterPublic(api.Group("/users", optionalJWT))
		deps.UserHandler.Register(api.Group("/users", jwtMiddleware))
		deps.UserHandler.RegisterApprovals(api.Group("/newusers", jwtMiddleware))
	}

	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(api.Group("/courses", jwtMiddleware))
	}

	if deps.ProgressHandler != nil || deps.BatchHandler != nil {
		progress := api.Group("/progress", jwtMiddleware)
		// batch routes first: /batch/view/:batchId must not be read as /:studentId/:courseId
		if deps.BatchHandler != nil {
			deps.BatchHandler.Register(progress)
		}
		if deps.ProgressHandler != nil {
			deps.ProgressHandler.Register(progress)
		}
	}

	if deps.OverviewHandler != nil || deps.ActivityHandler != nil {
		overview := api.Group("/overview", jwtMiddleware)
		if deps.ActivityHandler != nil {
			deps.ActivityHandler.Register(overview.Group("/activity"))
		}
		if deps.OverviewHandler != nil {
			deps.OverviewHandler.Register(overview)
		}
	}

	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(api.Group("/upload", jwtMiddleware), limit("upload", 20, time.Minute)...)
	}

	if deps.SyncHandler != nil {
		deps.SyncHandler.Register(api.Group("/sync", jwtMiddleware))
	}
}
