package engine

import (
	"testing"
	"time"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

func TestScannerIgnoresHealthyUnits(t *testing.T) {
	state := domain.NewReconcileState()
	scanner := Scanner{CoolDown: 30 * time.Minute}
	unit := domain.TrackableUnit{ServerID: "srv-1", UnitID: "app-1", AppStatus: domain.AppStatusRunning}

	if scanner.Inspect(state, unit, time.Now()) {
		t.Fatalf("healthy unit must not alert")
	}
}

func TestScannerCoolDownEnforcement(t *testing.T) {
	now := time.Now()
	state := domain.NewReconcileState()
	scanner := Scanner{CoolDown: 30 * time.Minute}
	unit := domain.TrackableUnit{ServerID: "srv-1", UnitID: "app-1", AppStatus: domain.AppStatusError}

	alerts := 0
	for i := 0; i < 5; i++ {
		if scanner.Inspect(state, unit, now.Add(time.Duration(i)*time.Minute)) {
			alerts++
		}
	}
	if alerts != 1 {
		t.Fatalf("expected exactly one alert within cool-down, got %d", alerts)
	}

	if !scanner.Inspect(state, unit, now.Add(31*time.Minute)) {
		t.Fatalf("expected a second alert after the cool-down elapsed")
	}
}

func TestScannerStampsNotificationTime(t *testing.T) {
	now := time.Now()
	state := domain.NewReconcileState()
	scanner := Scanner{CoolDown: 30 * time.Minute}
	unit := domain.TrackableUnit{ServerID: "srv-1", UnitID: "app-1", AppStatus: domain.AppStatusError}

	scanner.Inspect(state, unit, now)
	at, ok := state.LastNotified(unit.Key())
	if !ok || !at.Equal(now) {
		t.Fatalf("notification time not stamped: %v ok=%v", at, ok)
	}
}
