package app

import (
	"strings"

	"github.com/charlesng35/notifystream/internal/notifications"
	"github.com/charlesng35/notifystream/internal/realtime"
)

// PublisherConfig returns the fixed publisher settings.
func (c NotificationConfig) PublisherConfig() notifications.PublisherConfig {
	return notifications.PublisherConfig{Enhanced: c.Enhanced}
}

// RedisOptions returns the options for the Redis broadcast backend.
func (c NotificationConfig) RedisOptions() realtime.RedisOptions {
	prefix := strings.TrimSpace(c.ChannelPrefix)
	if prefix == "" {
		prefix = realtime.DefaultChannelPrefix
	}
	return realtime.RedisOptions{
		ChannelPrefix: prefix,
		BufferSize:    c.BufferSize,
	}
}
