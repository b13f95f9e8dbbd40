package scheduler

import (
	"time"

	"schedcal/internal/model"
)

// NotificationType names an outbound controller notification.
type NotificationType string

const (
	EventCreate NotificationType = "eventcreate"
	EventDelete NotificationType = "eventdelete"
	EventChange NotificationType = "eventchange"
)

// Notification is sent after a create, delete or change has been applied.
type Notification struct {
	Type NotificationType `json:"type"`
	Name string           `json:"name"`

	// Event, From and To are set for eventcreate. From and To are RFC 3339.
	Event *model.EventSpec `json:"event,omitempty"`
	From  string           `json:"from,omitempty"`
	To    string           `json:"to,omitempty"`

	// DraftValues and RecurrenceDates are set for eventchange.
	DraftValues     map[string]any `json:"draftValues,omitempty"`
	RecurrenceDates []time.Time    `json:"recurrenceDates,omitempty"`
}

type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
