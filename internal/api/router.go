package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/notifystream/internal/app"
	"github.com/charlesng35/notifystream/internal/handlers"
	"github.com/charlesng35/notifystream/internal/middleware"
	"github.com/charlesng35/notifystream/internal/monitoring"
	"github.com/charlesng35/notifystream/internal/notifications"
	"github.com/charlesng35/notifystream/internal/realtime"
)

// Dependencies carries the services the HTTP surface is built on.
type Dependencies struct {
	Config        *app.Config
	Verifier      middleware.TokenVerifier
	Users         middleware.UserRegistrar
	Notifications *notifications.Service
	Realtime      *realtime.Server
	Health        *monitoring.HealthManager
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("token verifier must be provided")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user registrar must be provided")
	}
	if deps.Realtime == nil {
		return nil, fmt.Errorf("realtime server must be provided")
	}

	notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.GET("/health", handlers.Health(deps.Health))

	if prom := deps.Config.Monitoring.Prometheus; prom.Enabled {
		endpoint := strings.TrimSpace(prom.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// The gate authenticates websocket upgrades itself so browsers can pass the
	// token as a query parameter.
	registerRealtimeRoutes(r, handlers.NewRealtimeHandler(deps.Realtime))

	api := r.Group("/api")
	api.Use(middleware.SecurityHeaders())
	api.Use(middleware.Auth(deps.Verifier))
	api.Use(middleware.RegisterIdentity(deps.Users))
	registerNotificationRoutes(api, notificationHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
