package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notifystream/internal/middleware"
	"github.com/charlesng35/notifystream/internal/notifications"
	"github.com/charlesng35/notifystream/pkg/errors"
	"github.com/charlesng35/notifystream/pkg/response"
)

// NotificationHandler exposes the recipient action surface and the fan-out entry point.
type NotificationHandler struct {
	service *notifications.Service
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *notifications.Service) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service must be provided")
	}
	return &NotificationHandler{service: service}, nil
}

type actionRequest struct {
	Action string   `json:"action"`
	UIDs   []string `json:"uids" validate:"max=1000"`
}

type createRequest struct {
	Message    string         `json:"message" validate:"required"`
	Method     string         `json:"method"`
	Model      string         `json:"model"`
	Instance   map[string]any `json:"instance"`
	Before     map[string]any `json:"before"`
	Recipients []string       `json:"recipients" validate:"max=10000"`
	CustomInfo any            `json:"custom_info"`
}

// Apply runs a recipient action for the caller and returns the resulting counts.
func (h *NotificationHandler) Apply(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req actionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	counts, err := h.service.Apply(requestContext(c), userID, notifications.Action(req.Action), req.UIDs)
	if err != nil {
		response.Error(c, translateError(err))
		return
	}

	response.Success(c, http.StatusOK, counts)
}

// Counts returns the caller's current counts.
func (h *NotificationHandler) Counts(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	counts, err := h.service.Counts(requestContext(c), userID)
	if err != nil {
		response.Error(c, translateError(err))
		return
	}

	response.Success(c, http.StatusOK, counts)
}

// Create fans a notification out to the requested recipients on behalf of the caller.
func (h *NotificationHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req createRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Create(requestContext(c), notifications.CreateInput{
		ActorID:    userID,
		Message:    req.Message,
		Instance:   optionalObject(req.Instance),
		Before:     optionalObject(req.Before),
		Method:     req.Method,
		Recipients: req.Recipients,
		CustomInfo: req.CustomInfo,
		Model:      req.Model,
	})
	if err != nil {
		response.Error(c, translateError(err))
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// optionalObject keeps absent JSON objects as untyped nil.
func optionalObject(value map[string]any) any {
	if value == nil {
		return nil
	}
	return value
}
