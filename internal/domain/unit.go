package domain

// UnitKind discriminates single applications from multi-container groups.
type UnitKind string

const (
	UnitKindApplication UnitKind = "application"
	UnitKindGroup       UnitKind = "group"
)

// Application-level status values reported by control planes.
const (
	AppStatusRunning = "running"
	AppStatusError   = "error"
	AppStatusIdle    = "idle"
	AppStatusDone    = "done"
)

// TrackableUnit is the flattened representation of one deployable thing on
// one server. Units are derived fresh every run and never persisted; durable
// state references them only through Key().
type TrackableUnit struct {
	ServerID      string
	ServerName    string
	ServerBaseURL string
	UnitID        string
	Name          string
	Kind          UnitKind
	ProjectName   string
	AppStatus     string
	Repository    string
	Owner         string
	Branch        string
}

// Key returns the identity used for cool-down bookkeeping.
func (u TrackableUnit) Key() string {
	return u.ServerID + "/" + u.UnitID
}
