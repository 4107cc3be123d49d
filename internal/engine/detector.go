package engine

import (
	"time"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

// Detector classifies fetched deployments against the recorded state.
type Detector struct {
	// LookBack excludes deployments created before now-LookBack; control
	// planes replay old history on every call and it must not re-trigger.
	LookBack time.Duration
}

// Inspect decides whether one deployment warrants an event and updates the
// recorded status. First-seen identities are recorded silently so a fresh or
// restarted engine never replays the whole look-back window as alerts. Only
// transitions into a terminal status produce an event.
func (d Detector) Inspect(state *domain.ReconcileState, unit domain.TrackableUnit, dep domain.DeploymentRecord, now time.Time) (domain.EventKind, bool) {
	if now.Sub(dep.CreatedAt) > d.LookBack {
		return "", false
	}

	previous, seen := state.LastStatus(unit.ServerID, dep.ID)
	state.SetStatus(unit.ServerID, dep.ID, dep.Status)

	if !seen || previous == dep.Status {
		return "", false
	}

	switch dep.Status {
	case domain.DeployStatusDone:
		return domain.EventDeploySuccess, true
	case domain.DeployStatusError:
		return domain.EventDeployFailure, true
	}
	return "", false
}
