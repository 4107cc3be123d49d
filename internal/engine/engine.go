package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/controlplane"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/repository"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/pkg/config"
)

const (
	defaultLookBack    = time.Hour
	defaultCoolDown    = 30 * time.Minute
	defaultNotifiedTTL = 24 * time.Hour
	defaultMaxTracked  = 500
	defaultFetchLimit  = 15
)

// ControlPlaneClient is the surface of one server's API the engine consumes.
type ControlPlaneClient interface {
	ListProjects(ctx context.Context) ([]controlplane.Project, error)
	ListDeployments(ctx context.Context, unit domain.TrackableUnit) ([]domain.DeploymentRecord, error)
	ListDomains(ctx context.Context, applicationID string) ([]controlplane.Domain, error)
}

// ClientFactory builds a client for one control plane.
type ClientFactory func(server domain.Server) ControlPlaneClient

// Notifier delivers one event when the policy allows it, reporting whether a
// notification actually went out.
type Notifier interface {
	Dispatch(ctx context.Context, event domain.Event, settings domain.NotificationSettings) bool
}

// DomainPurger evicts one host from the edge cache.
type DomainPurger interface {
	Configured() bool
	PurgeHost(ctx context.Context, host string) (zone string, err error)
}

// EventSink receives emitted events for live streaming.
type EventSink interface {
	Broadcast(serverID string, payload []byte)
}

// Engine runs the poll-compare-notify-persist cycle across all control planes.
type Engine struct {
	servers  repository.ServerRepository
	settings repository.SettingsRepository
	states   repository.StateRepository
	clients  ClientFactory
	notifier Notifier
	purger   DomainPurger
	sink     EventSink
	logger   *slog.Logger

	tenantID    string
	lookBack    time.Duration
	coolDown    time.Duration
	notifiedTTL time.Duration
	maxTracked  int
	fetchLimit  int
	interval    time.Duration

	now func() time.Time
}

// New constructs an Engine, filling unset tunables with their defaults.
func New(servers repository.ServerRepository, settings repository.SettingsRepository, states repository.StateRepository, clients ClientFactory, notifier Notifier, purger DomainPurger, sink EventSink, logger *slog.Logger, cfg config.EngineConfig) *Engine {
	lookBack := cfg.LookBack
	if lookBack <= 0 {
		lookBack = defaultLookBack
	}
	coolDown := cfg.CoolDown
	if coolDown <= 0 {
		coolDown = defaultCoolDown
	}
	notifiedTTL := cfg.NotifiedTTL
	if notifiedTTL <= 0 {
		notifiedTTL = defaultNotifiedTTL
	}
	maxTracked := cfg.MaxTrackedDeployments
	if maxTracked <= 0 {
		maxTracked = defaultMaxTracked
	}
	fetchLimit := cfg.FetchConcurrency
	if fetchLimit <= 0 {
		fetchLimit = defaultFetchLimit
	}

	initMetrics()

	return &Engine{
		servers:     servers,
		settings:    settings,
		states:      states,
		clients:     clients,
		notifier:    notifier,
		purger:      purger,
		sink:        sink,
		logger:      logger.With("component", "engine"),
		tenantID:    cfg.TenantID,
		lookBack:    lookBack,
		coolDown:    coolDown,
		notifiedTTL: notifiedTTL,
		maxTracked:  maxTracked,
		fetchLimit:  fetchLimit,
		interval:    cfg.ReconcileInterval,
		now:         time.Now,
	}
}

// Loop runs periodic reconciliations until the context is cancelled. It is a
// no-op when no interval is configured (external scheduler only).
func (e *Engine) Loop(ctx context.Context) {
	if e.interval <= 0 {
		return
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("reconcile loop started", "interval", e.interval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("reconcile loop stopped")
			return
		case <-ticker.C:
			if _, err := e.Run(ctx); err != nil {
				e.logger.Error("scheduled reconcile failed", "error", err)
			}
		}
	}
}

// Run executes one full reconciliation cycle. An error return means the run
// could not execute at all (settings or state unreachable, state malformed);
// every remote failure inside the cycle degrades to empty data instead.
func (e *Engine) Run(ctx context.Context) (domain.RunSummary, error) {
	started := e.now()
	summary := domain.RunSummary{RunID: uuid.NewString()}
	log := e.logger.With("run_id", summary.RunID)

	settings, err := e.settings.GetNotificationSettings(ctx, e.tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			summary.Message = "deployment monitoring is not configured"
			recordRun("disabled", e.now().Sub(started))
			return summary, nil
		}
		recordRun("error", e.now().Sub(started))
		return summary, fmt.Errorf("load notification settings: %w", err)
	}
	if !settings.Enabled {
		summary.Message = "deployment monitoring is disabled"
		recordRun("disabled", e.now().Sub(started))
		return summary, nil
	}
	if !settings.Configured() {
		summary.Message = "notification channel is not configured"
		recordRun("disabled", e.now().Sub(started))
		return summary, nil
	}

	servers, err := e.servers.ListServers(ctx)
	if err != nil {
		recordRun("error", e.now().Sub(started))
		return summary, fmt.Errorf("list servers: %w", err)
	}
	summary.Stats.ServersChecked = len(servers)
	if len(servers) == 0 {
		summary.Success = true
		summary.Message = "no servers to reconcile"
		recordRun("ok", e.now().Sub(started))
		return summary, nil
	}

	state, err := e.states.LoadState(ctx, e.tenantID)
	if err != nil {
		recordRun("error", e.now().Sub(started))
		return summary, fmt.Errorf("load state: %w", err)
	}

	clients, units := e.discoverUnits(ctx, servers, log)
	listers := make(map[string]DeploymentLister, len(clients))
	for id, client := range clients {
		listers[id] = client
	}
	fetches := fetchDeployments(ctx, units, listers, e.fetchLimit, log)

	detector := Detector{LookBack: e.lookBack}
	scanner := Scanner{CoolDown: e.coolDown}
	now := e.now()

	for _, fetch := range fetches {
		for _, dep := range fetch.deployments {
			summary.Stats.DeploymentsChecked++
			deploymentsChecked.Inc()
			kind, ok := detector.Inspect(state, fetch.unit, dep, now)
			if !ok {
				continue
			}
			record := dep
			event := domain.NewEvent(uuid.NewString(), kind, fetch.unit, &record, now)
			e.emit(ctx, log, event, *settings, &summary.Stats)
			if kind == domain.EventDeploySuccess && fetch.unit.Kind == domain.UnitKindApplication {
				e.purgeUnitDomains(ctx, log, clients[fetch.unit.ServerID], fetch.unit, &summary.Stats)
			}
		}
	}

	for _, unit := range units {
		if unit.AppStatus == domain.AppStatusError {
			summary.Stats.AppsInError++
		}
		if scanner.Inspect(state, unit, now) {
			event := domain.NewEvent(uuid.NewString(), domain.EventAppError, unit, nil, now)
			e.emit(ctx, log, event, *settings, &summary.Stats)
		}
	}

	state.Evict(now, e.notifiedTTL, e.maxTracked)

	summary.Success = true
	summary.Message = "reconcile completed"
	if err := e.states.SaveState(ctx, e.tenantID, state); err != nil {
		// Updates are lost for this run; the next run re-derives from the
		// last persisted snapshot, which at worst re-notifies a transition.
		log.Error("state persistence failed", "error", err)
		summary.Message = "reconcile completed, state persistence failed"
	}

	recordRun("ok", e.now().Sub(started))
	log.Info("reconcile completed",
		"servers", summary.Stats.ServersChecked,
		"deployments", summary.Stats.DeploymentsChecked,
		"apps_in_error", summary.Stats.AppsInError,
		"notifications", summary.Stats.NotificationsSent,
		"purges", summary.Stats.CachesPurged,
		"duration_ms", e.now().Sub(started).Milliseconds(),
	)
	return summary, nil
}

// discoverUnits lists and flattens every server's topology, one outstanding
// request per server. An unreachable server contributes no units and never
// aborts the others.
func (e *Engine) discoverUnits(ctx context.Context, servers []domain.Server, log *slog.Logger) (map[string]ControlPlaneClient, []domain.TrackableUnit) {
	clients := make(map[string]ControlPlaneClient, len(servers))
	flattened := make([][]domain.TrackableUnit, len(servers))

	var group errgroup.Group
	for i, server := range servers {
		i, server := i, server
		client := e.clients(server)
		clients[server.ID] = client
		group.Go(func() error {
			projects, err := client.ListProjects(ctx)
			if err != nil {
				log.Warn("topology listing failed", "server", server.Name, "error", err)
				return nil
			}
			flattened[i] = controlplane.Flatten(server, projects)
			return nil
		})
	}
	_ = group.Wait()

	units := make([]domain.TrackableUnit, 0)
	for _, batch := range flattened {
		units = append(units, batch...)
	}
	return clients, units
}

// emit delivers one event to the notification channel and the live feed.
func (e *Engine) emit(ctx context.Context, log *slog.Logger, event domain.Event, settings domain.NotificationSettings, stats *domain.RunStats) {
	if e.notifier != nil && e.notifier.Dispatch(ctx, event, settings) {
		stats.NotificationsSent++
		notificationsTotal.WithLabelValues(string(event.Kind)).Inc()
	}
	if e.sink != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Warn("event encode failed", "event", event.ID, "error", err)
			return
		}
		e.sink.Broadcast(event.ServerID, payload)
	}
}

// purgeUnitDomains resolves the unit's public hosts and purges each one
// independently; one host's failure never blocks the others.
func (e *Engine) purgeUnitDomains(ctx context.Context, log *slog.Logger, client ControlPlaneClient, unit domain.TrackableUnit, stats *domain.RunStats) {
	if e.purger == nil || !e.purger.Configured() {
		return
	}
	if client == nil {
		return
	}
	domains, err := client.ListDomains(ctx, unit.UnitID)
	if err != nil {
		log.Warn("domain listing failed", "server", unit.ServerName, "unit", unit.Name, "error", err)
		return
	}
	for _, d := range domains {
		zone, err := e.purger.PurgeHost(ctx, d.Host)
		if err != nil {
			log.Warn("cache purge failed", "host", d.Host, "error", err)
			continue
		}
		stats.CachesPurged++
		purgesTotal.Inc()
		log.Info("cache purged", "host", d.Host, "zone", zone)
	}
}
