package domain

import (
	"strings"
	"time"
)

// NotificationSettings gates which reconcile events produce outbound alerts.
// Read-only input to a run; the engine never mutates it.
type NotificationSettings struct {
	TenantID         string
	Enabled          bool
	WebhookURL       string
	NotifyOnSuccess  bool
	NotifyOnFailure  bool
	NotifyOnAppError bool
	UpdatedAt        time.Time
}

// Configured reports whether the engine may run and deliver alerts.
func (s NotificationSettings) Configured() bool {
	return s.Enabled && strings.TrimSpace(s.WebhookURL) != ""
}

// Allows reports whether the policy enables the given event kind.
func (s NotificationSettings) Allows(kind EventKind) bool {
	switch kind {
	case EventDeploySuccess:
		return s.NotifyOnSuccess
	case EventDeployFailure:
		return s.NotifyOnFailure
	case EventAppError:
		return s.NotifyOnAppError
	}
	return false
}
