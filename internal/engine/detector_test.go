package engine

import (
	"testing"
	"time"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

var detectorUnit = domain.TrackableUnit{ServerID: "srv-1", UnitID: "app-1", Name: "api", Kind: domain.UnitKindApplication}

func deployment(id, status string, createdAt time.Time) domain.DeploymentRecord {
	return domain.DeploymentRecord{ID: id, Status: status, CreatedAt: createdAt}
}

func TestDetectorFirstSeenRecordsWithoutEvent(t *testing.T) {
	now := time.Now()
	state := domain.NewReconcileState()
	detector := Detector{LookBack: time.Hour}

	_, emit := detector.Inspect(state, detectorUnit, deployment("d1", domain.DeployStatusError, now.Add(-time.Minute)), now)
	if emit {
		t.Fatalf("first-seen deployment must not emit")
	}
	if status, ok := state.LastStatus("srv-1", "d1"); !ok || status != domain.DeployStatusError {
		t.Fatalf("first-seen status not recorded: %q ok=%v", status, ok)
	}
	if len(state.Deployments) != 1 {
		t.Fatalf("expected exactly one new entry, got %d", len(state.Deployments))
	}
}

func TestDetectorNoChangeIsSilent(t *testing.T) {
	now := time.Now()
	state := domain.NewReconcileState()
	detector := Detector{LookBack: time.Hour}
	dep := deployment("d1", domain.DeployStatusRunning, now.Add(-time.Minute))

	detector.Inspect(state, detectorUnit, dep, now)
	if _, emit := detector.Inspect(state, detectorUnit, dep, now); emit {
		t.Fatalf("unchanged status must not emit")
	}
}

func TestDetectorSuccessTransition(t *testing.T) {
	now := time.Now()
	state := domain.NewReconcileState()
	detector := Detector{LookBack: time.Hour}

	detector.Inspect(state, detectorUnit, deployment("d1", domain.DeployStatusRunning, now.Add(-time.Minute)), now)
	kind, emit := detector.Inspect(state, detectorUnit, deployment("d1", domain.DeployStatusDone, now.Add(-time.Minute)), now)
	if !emit || kind != domain.EventDeploySuccess {
		t.Fatalf("expected success event, got %q emit=%v", kind, emit)
	}
}

func TestDetectorFailureTransition(t *testing.T) {
	now := time.Now()
	state := domain.NewReconcileState()
	detector := Detector{LookBack: time.Hour}

	detector.Inspect(state, detectorUnit, deployment("d1", domain.DeployStatusRunning, now.Add(-time.Minute)), now)
	kind, emit := detector.Inspect(state, detectorUnit, deployment("d1", domain.DeployStatusError, now.Add(-time.Minute)), now)
	if !emit || kind != domain.EventDeployFailure {
		t.Fatalf("expected failure event, got %q emit=%v", kind, emit)
	}
}

func TestDetectorNonTerminalTransitionIsSilent(t *testing.T) {
	now := time.Now()
	state := domain.NewReconcileState()
	detector := Detector{LookBack: time.Hour}

	detector.Inspect(state, detectorUnit, deployment("d1", domain.DeployStatusQueued, now.Add(-time.Minute)), now)
	_, emit := detector.Inspect(state, detectorUnit, deployment("d1", domain.DeployStatusRunning, now.Add(-time.Minute)), now)
	if emit {
		t.Fatalf("queued to running must not emit")
	}
	if status, _ := state.LastStatus("srv-1", "d1"); status != domain.DeployStatusRunning {
		t.Fatalf("status must still be written back, got %q", status)
	}
}

func TestDetectorLookBackExclusion(t *testing.T) {
	now := time.Now()
	state := domain.NewReconcileState()
	state.SetStatus("srv-1", "d1", domain.DeployStatusRunning)
	detector := Detector{LookBack: time.Hour}

	_, emit := detector.Inspect(state, detectorUnit, deployment("d1", domain.DeployStatusDone, now.Add(-2*time.Hour)), now)
	if emit {
		t.Fatalf("deployment older than look-back must never emit")
	}
	if status, _ := state.LastStatus("srv-1", "d1"); status != domain.DeployStatusRunning {
		t.Fatalf("look-back excluded deployment must not touch state, got %q", status)
	}
}
