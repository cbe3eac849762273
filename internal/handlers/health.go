package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notifystream/internal/monitoring"
)

// Health evaluates the registered readiness probes.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	if manager == nil {
		manager = monitoring.NewHealthManager()
	}

	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))

		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checks":     report.Checks,
			"checked_at": time.Now().UTC(),
		})
	}
}
