package repository

import (
	"context"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

// ServerRepository lists the control planes the engine polls.
type ServerRepository interface {
	ListServers(ctx context.Context) ([]domain.Server, error)
}

// SettingsRepository reads the tenant's notification policy.
type SettingsRepository interface {
	GetNotificationSettings(ctx context.Context, tenantID string) (*domain.NotificationSettings, error)
}

// StateRepository persists the reconcile state as one opaque snapshot per
// tenant. LoadState returns an empty state when none was saved yet; SaveState
// replaces the whole snapshot atomically.
type StateRepository interface {
	LoadState(ctx context.Context, tenantID string) (*domain.ReconcileState, error)
	SaveState(ctx context.Context, tenantID string, state *domain.ReconcileState) error
}
