package engine

import (
	"time"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

// Scanner flags units whose application status is the error state,
// independent of any deployment transition. It rate-limits to at most one
// alert per unit per cool-down window.
type Scanner struct {
	CoolDown time.Duration
}

// Inspect reports whether the unit's error state warrants a fresh alert and
// stamps the notification time when it does.
func (s Scanner) Inspect(state *domain.ReconcileState, unit domain.TrackableUnit, now time.Time) bool {
	if unit.AppStatus != domain.AppStatusError {
		return false
	}
	if last, ok := state.LastNotified(unit.Key()); ok && now.Sub(last) < s.CoolDown {
		return false
	}
	state.MarkNotified(unit.Key(), now)
	return true
}
