package domain

import "time"

// EventKind classifies a detected change worth reporting.
type EventKind string

const (
	EventDeploySuccess EventKind = "deploy_success"
	EventDeployFailure EventKind = "deploy_failure"
	EventAppError      EventKind = "app_error"
)

// Event describes one detected transition or error condition.
type Event struct {
	ID         string            `json:"id"`
	Kind       EventKind         `json:"kind"`
	ServerID   string            `json:"serverId"`
	ServerName string            `json:"serverName"`
	Unit       TrackableUnit     `json:"-"`
	UnitName   string            `json:"unitName"`
	Project    string            `json:"project"`
	Deployment *DeploymentRecord `json:"-"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewEvent builds an event for a unit, copying the display fields that the
// live feed serializes.
func NewEvent(id string, kind EventKind, unit TrackableUnit, dep *DeploymentRecord, at time.Time) Event {
	return Event{
		ID:         id,
		Kind:       kind,
		ServerID:   unit.ServerID,
		ServerName: unit.ServerName,
		Unit:       unit,
		UnitName:   unit.Name,
		Project:    unit.ProjectName,
		Deployment: dep,
		OccurredAt: at,
	}
}
