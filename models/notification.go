package models

type NotificationVariant string

const (
	NotificationSuccess NotificationVariant = "success"
	NotificationError   NotificationVariant = "error"
	NotificationInfo    NotificationVariant = "info"
	NotificationWarning NotificationVariant = "warning"
)

// Notification is a transient message shown to the user after an action.
type Notification struct {
	Variant NotificationVariant `json:"variant"`
	Message string              `json:"message"`
}
