package checks

import (
	"context"
	"fmt"

	"github.com/charlesng35/notifystream/internal/monitoring"
)

// RealtimeObserver exposes the broadcaster state surfaced in health reports.
type RealtimeObserver interface {
	ActiveUsers() []string
	SubscriberCount(userID string) int
}

// Realtime reports how many users and sessions this instance is serving.
func Realtime(observer RealtimeObserver) monitoring.Check {
	return monitoring.NewCheck("realtime", func(ctx context.Context) monitoring.ProbeResult {
		if observer == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "broadcaster unavailable"}
		}

		users := observer.ActiveUsers()
		sessions := 0
		for _, userID := range users {
			sessions += observer.SubscriberCount(userID)
		}

		return monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d users, %d sessions", len(users), sessions),
		}
	})
}
