package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeploymentStatusEntry records the last observed status for one deployment
// identity. Entries keep their insertion order so eviction can drop the
// oldest-inserted first without per-entry timestamps.
type DeploymentStatusEntry struct {
	ServerID     string `json:"serverId"`
	DeploymentID string `json:"deploymentId"`
	Status       string `json:"status"`
}

// ReconcileState is the only durable artifact of the engine: last observed
// deployment statuses plus last app-error notification times, scoped to one
// tenant. It is loaded at run start, mutated in memory, and written back as
// a whole snapshot at run end.
type ReconcileState struct {
	Deployments []DeploymentStatusEntry `json:"deployments"`
	NotifiedAt  map[string]time.Time    `json:"notifiedAt"`

	index map[string]int
}

// NewReconcileState returns an empty state.
func NewReconcileState() *ReconcileState {
	return &ReconcileState{
		Deployments: make([]DeploymentStatusEntry, 0),
		NotifiedAt:  make(map[string]time.Time),
	}
}

// ParseReconcileState decodes a persisted snapshot. An empty blob yields an
// empty state; a malformed one is a hard error because guessing here would
// break first-seen suppression.
func ParseReconcileState(payload []byte) (*ReconcileState, error) {
	if len(payload) == 0 {
		return NewReconcileState(), nil
	}
	var state ReconcileState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode reconcile state: %w", err)
	}
	if state.Deployments == nil {
		state.Deployments = make([]DeploymentStatusEntry, 0)
	}
	if state.NotifiedAt == nil {
		state.NotifiedAt = make(map[string]time.Time)
	}
	return &state, nil
}

// Encode serializes the state for persistence.
func (s *ReconcileState) Encode() ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode reconcile state: %w", err)
	}
	return payload, nil
}

func deploymentKey(serverID, deploymentID string) string {
	return serverID + "/" + deploymentID
}

func (s *ReconcileState) ensureIndex() {
	if s.index != nil {
		return
	}
	s.index = make(map[string]int, len(s.Deployments))
	for i, entry := range s.Deployments {
		s.index[deploymentKey(entry.ServerID, entry.DeploymentID)] = i
	}
}

// LastStatus returns the recorded status for a deployment identity.
func (s *ReconcileState) LastStatus(serverID, deploymentID string) (string, bool) {
	s.ensureIndex()
	i, ok := s.index[deploymentKey(serverID, deploymentID)]
	if !ok {
		return "", false
	}
	return s.Deployments[i].Status, true
}

// SetStatus records the current status for a deployment identity, appending
// a new entry on first sight and updating in place afterwards.
func (s *ReconcileState) SetStatus(serverID, deploymentID, status string) {
	s.ensureIndex()
	key := deploymentKey(serverID, deploymentID)
	if i, ok := s.index[key]; ok {
		s.Deployments[i].Status = status
		return
	}
	s.Deployments = append(s.Deployments, DeploymentStatusEntry{
		ServerID:     serverID,
		DeploymentID: deploymentID,
		Status:       status,
	})
	s.index[key] = len(s.Deployments) - 1
}

// LastNotified returns when an app-error alert was last sent for a unit.
func (s *ReconcileState) LastNotified(unitKey string) (time.Time, bool) {
	at, ok := s.NotifiedAt[unitKey]
	return at, ok
}

// MarkNotified stamps the last app-error alert time for a unit.
func (s *ReconcileState) MarkNotified(unitKey string, at time.Time) {
	s.NotifiedAt[unitKey] = at
}

// Evict applies both retention rules: notification stamps older than
// notifiedTTL are dropped, and the deployment list is capped at maxEntries
// by discarding the oldest-inserted entries first.
func (s *ReconcileState) Evict(now time.Time, notifiedTTL time.Duration, maxEntries int) {
	if notifiedTTL > 0 {
		cutoff := now.Add(-notifiedTTL)
		for key, at := range s.NotifiedAt {
			if at.Before(cutoff) {
				delete(s.NotifiedAt, key)
			}
		}
	}
	if maxEntries > 0 && len(s.Deployments) > maxEntries {
		s.Deployments = s.Deployments[len(s.Deployments)-maxEntries:]
		s.index = nil
	}
}
