// Package http holds the pieces main.go assembles into the API server: the
// module contract and the dependency bundle handed to the router.
package http

import (
	"context"

	"lead_scoring_backend/internal/events"
	"lead_scoring_backend/platform/config"
	"lead_scoring_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker is pinged by the readiness probe.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Module is a bounded context that mounts its own routes.
type Module interface {
	Name() string
	RegisterRoutes(groups *RouteGroups)
}

// RouteGroups are the /api/v1 groups a module can mount on. Protected
// requires a valid access token and Admin additionally the admin role.
type RouteGroups struct {
	V1        *gin.RouterGroup
	Protected *gin.RouterGroup
	Admin     *gin.RouterGroup
}

// App is everything the router needs to serve requests.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}
