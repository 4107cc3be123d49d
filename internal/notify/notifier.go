package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

// Dispatcher delivers reconcile events to the configured webhook channel.
// Delivery is best-effort: failures are logged and never undo the state
// mutations that produced the event.
type Dispatcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher with the given delivery timeout.
func NewDispatcher(timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "notify"),
	}
}

// Dispatch checks the policy flag for the event kind and, when enabled,
// posts a formatted message to the channel. A disabled kind is dropped
// silently. Returns true only when a notification actually went out.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.Event, settings domain.NotificationSettings) bool {
	if !settings.Allows(event.Kind) {
		return false
	}

	payload, err := json.Marshal(map[string]string{"content": FormatMessage(event)})
	if err != nil {
		d.logger.Warn("notification encode failed", "event", event.ID, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		d.logger.Warn("notification request failed", "event", event.ID, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("notification delivery failed", "event", event.ID, "error", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		d.logger.Warn("notification rejected by channel", "event", event.ID, "status", resp.Status)
		return false
	}

	d.logger.Info("notification sent", "event", event.ID, "kind", event.Kind, "unit", event.UnitName)
	return true
}

// FormatMessage renders one human-readable line for the channel.
func FormatMessage(event domain.Event) string {
	var b strings.Builder
	switch event.Kind {
	case domain.EventDeploySuccess:
		b.WriteString("Deployment succeeded: ")
	case domain.EventDeployFailure:
		b.WriteString("Deployment failed: ")
	case domain.EventAppError:
		b.WriteString("Application in error state: ")
	}

	fmt.Fprintf(&b, "%s (%s) on %s", event.UnitName, event.Project, event.ServerName)

	if dep := event.Deployment; dep != nil {
		if elapsed, ok := dep.Duration(); ok {
			fmt.Fprintf(&b, " in %s", formatDuration(elapsed))
		}
		if event.Kind == domain.EventDeployFailure && dep.ErrorMessage != "" {
			fmt.Fprintf(&b, ": %s", dep.ErrorMessage)
		}
	}
	if event.Unit.Repository != "" {
		fmt.Fprintf(&b, " [%s", event.Unit.Repository)
		if event.Unit.Branch != "" {
			fmt.Fprintf(&b, "@%s", event.Unit.Branch)
		}
		b.WriteString("]")
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	if d%time.Millisecond == 0 {
		return fmt.Sprintf("%dms", int(d/time.Millisecond))
	}
	return d.String()
}
