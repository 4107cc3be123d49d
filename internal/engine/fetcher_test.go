package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

type countingLister struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
	fail     bool
}

func (l *countingLister) ListDeployments(ctx context.Context, unit domain.TrackableUnit) ([]domain.DeploymentRecord, error) {
	current := atomic.AddInt32(&l.inFlight, 1)
	defer atomic.AddInt32(&l.inFlight, -1)
	l.mu.Lock()
	if current > l.peak {
		l.peak = current
	}
	l.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	if l.fail {
		return nil, errors.New("server unreachable")
	}
	return []domain.DeploymentRecord{{ID: unit.UnitID + "-dep", Status: domain.DeployStatusDone}}, nil
}

func fetcherLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestFetchDeploymentsBoundsConcurrency(t *testing.T) {
	lister := &countingLister{}
	units := make([]domain.TrackableUnit, 40)
	for i := range units {
		units[i] = domain.TrackableUnit{ServerID: "srv-1", UnitID: string(rune('a' + i%26))}
	}
	clients := map[string]DeploymentLister{"srv-1": lister}

	results := fetchDeployments(context.Background(), units, clients, 4, fetcherLogger())

	if len(results) != len(units) {
		t.Fatalf("expected %d results, got %d", len(units), len(results))
	}
	if lister.peak > 4 {
		t.Fatalf("concurrency cap exceeded: peak %d", lister.peak)
	}
}

func TestFetchDeploymentsIsolatesFailingServer(t *testing.T) {
	healthy := &countingLister{}
	broken := &countingLister{fail: true}
	clients := map[string]DeploymentLister{"good": healthy, "bad": broken}
	units := []domain.TrackableUnit{
		{ServerID: "bad", UnitID: "u1"},
		{ServerID: "good", UnitID: "u2"},
		{ServerID: "bad", UnitID: "u3"},
		{ServerID: "good", UnitID: "u4"},
	}

	results := fetchDeployments(context.Background(), units, clients, 2, fetcherLogger())

	fetched := 0
	for _, res := range results {
		if res.unit.ServerID == "good" && len(res.deployments) != 1 {
			t.Fatalf("healthy unit %s got no data", res.unit.UnitID)
		}
		if res.unit.ServerID == "bad" && len(res.deployments) != 0 {
			t.Fatalf("failing unit %s unexpectedly got data", res.unit.UnitID)
		}
		fetched += len(res.deployments)
	}
	if fetched != 2 {
		t.Fatalf("expected 2 fetched deployments, got %d", fetched)
	}
}

func TestFetchDeploymentsSkipsUnknownServer(t *testing.T) {
	units := []domain.TrackableUnit{{ServerID: "ghost", UnitID: "u1"}}
	results := fetchDeployments(context.Background(), units, map[string]DeploymentLister{}, 2, fetcherLogger())
	if len(results) != 1 || len(results[0].deployments) != 0 {
		t.Fatalf("unexpected results for unknown server: %+v", results)
	}
}
