package notifications

import "strings"

// Action is a recipient-side mutation of notification state.
type Action string

const (
	ActionMarkAsRead    Action = "MARK_AS_READ"
	ActionMarkAsRemoved Action = "MARK_AS_REMOVED"
	ActionMarkAllAsRead Action = "MARK_ALL_AS_READ"
	ActionRemovedAll    Action = "REMOVED_ALL"
	ActionUndefined     Action = "UNDEFINED"
)

// ParseAction normalises an action name. Empty input is UNDEFINED.
func ParseAction(value string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(value)))
	switch a {
	case ActionMarkAsRead, ActionMarkAsRemoved, ActionMarkAllAsRead, ActionRemovedAll, ActionUndefined:
		return a, true
	case "":
		return ActionUndefined, true
	default:
		return a, false
	}
}

// requiresUIDs reports whether the action targets explicit records.
func (a Action) requiresUIDs() bool {
	return a == ActionMarkAsRead || a == ActionMarkAsRemoved
}
