package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/notifystream/internal/realtime"
	"github.com/charlesng35/notifystream/pkg/errors"
	"github.com/charlesng35/notifystream/pkg/logger"
	"github.com/charlesng35/notifystream/pkg/response"
)

// RealtimeHandler upgrades authenticated requests into notification sessions.
type RealtimeHandler struct {
	server *realtime.Server
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(server *realtime.Server) *RealtimeHandler {
	return &RealtimeHandler{server: server}
}

// Stream authenticates the caller before the upgrade so rejected credentials
// get a plain 401, then runs the session until the connection closes.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.server == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	session, err := h.server.Admit(c.Request)
	if err != nil {
		response.Error(c, translateError(err))
		return
	}

	if err := session.Run(c.Writer, c.Request); err != nil {
		logger.WithModule("realtime").Debug("session ended with error",
			zap.String("session_id", session.ID()),
			zap.Error(err),
		)
	}
}
