package engine

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

// DeploymentLister is the slice of the control-plane client the fetcher needs.
type DeploymentLister interface {
	ListDeployments(ctx context.Context, unit domain.TrackableUnit) ([]domain.DeploymentRecord, error)
}

// unitFetch pairs a unit with the deployments fetched for it this run.
type unitFetch struct {
	unit        domain.TrackableUnit
	deployments []domain.DeploymentRecord
}

// fetchDeployments retrieves recent deployments for every unit with at most
// limit requests in flight. A unit whose fetch fails degrades to an empty
// result and never affects its siblings; the pool always drains fully.
func fetchDeployments(ctx context.Context, units []domain.TrackableUnit, clients map[string]DeploymentLister, limit int, logger *slog.Logger) []unitFetch {
	if limit <= 0 {
		limit = 1
	}
	results := make([]unitFetch, len(units))

	var group errgroup.Group
	group.SetLimit(limit)
	for i, unit := range units {
		i, unit := i, unit
		group.Go(func() error {
			results[i].unit = unit
			client, ok := clients[unit.ServerID]
			if !ok {
				return nil
			}
			deployments, err := client.ListDeployments(ctx, unit)
			if err != nil {
				logger.Warn("deployment fetch failed", "server", unit.ServerName, "unit", unit.Name, "error", err)
				return nil
			}
			results[i].deployments = deployments
			return nil
		})
	}
	_ = group.Wait()
	return results
}
