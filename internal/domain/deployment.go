package domain

import "time"

// Deployment status values. Only done and error are terminal.
const (
	DeployStatusQueued  = "queued"
	DeployStatusRunning = "running"
	DeployStatusDone    = "done"
	DeployStatusError   = "error"
)

// DeploymentRecord captures one historical deploy attempt of a unit.
// The (server id, deployment id) pair is the stable identity across polls;
// only the status is expected to change between polls.
type DeploymentRecord struct {
	ID           string
	Title        string
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Duration reports the elapsed build time when both bounds are known.
func (d DeploymentRecord) Duration() (time.Duration, bool) {
	if d.StartedAt == nil || d.FinishedAt == nil {
		return 0, false
	}
	return d.FinishedAt.Sub(*d.StartedAt), true
}
