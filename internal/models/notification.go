package models

import (
	"strings"

	"gorm.io/datatypes"
)

// NotificationStatus marks whether a notification is visible to its recipient.
type NotificationStatus string

const (
	NotificationActive  NotificationStatus = "ACTIVE"
	NotificationRemoved NotificationStatus = "REMOVED"
)

// Method is the request verb of the event that produced a notification.
type Method string

const (
	MethodGet       Method = "GET"
	MethodPost      Method = "POST"
	MethodPut       Method = "PUT"
	MethodDelete    Method = "DELETE"
	MethodPatch     Method = "PATCH"
	MethodUndefined Method = "UNDEFINED"
)

// ParseMethod normalises a method string. Unknown values report false.
func ParseMethod(value string) (Method, bool) {
	m := Method(strings.ToUpper(strings.TrimSpace(value)))
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodUndefined:
		return m, true
	case "":
		return MethodUndefined, true
	default:
		return m, false
	}
}

// IsUpdate reports whether the method mutates an existing instance.
func (m Method) IsUpdate() bool {
	return m == MethodPut || m == MethodPatch
}

// FieldChange records the before and after value of a changed field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// NotificationPayload is the snapshot of the triggering event stored with each record.
type NotificationPayload struct {
	Message     string                 `json:"message"`
	Model       string                 `json:"model"`
	Instance    map[string]any         `json:"instance"`
	Method      Method                 `json:"method"`
	ChangedData map[string]FieldChange `json:"changed_data"`
}

// Notification is one delivery record owned by a single recipient.
type Notification struct {
	BaseModel

	UID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"uid"`

	RecipientID string `gorm:"type:varchar(64);index:idx_notifications_recipient_status;not null" json:"recipient_id"`
	Recipient   *User  `gorm:"foreignKey:RecipientID" json:"-"`

	Payload    datatypes.JSONType[NotificationPayload] `json:"payload"`
	IsRead     bool                                    `gorm:"default:false;index" json:"is_read"`
	CustomInfo datatypes.JSON                          `json:"custom_info,omitempty"`

	CreatedByID string `gorm:"type:varchar(64);index" json:"created_by_id"`
	CreatedBy   *User  `gorm:"foreignKey:CreatedByID" json:"-"`

	Status NotificationStatus `gorm:"type:varchar(16);index:idx_notifications_recipient_status;not null;default:'ACTIVE'" json:"status"`
}
