package domain

// RunStats counts the work performed by one reconciliation run.
type RunStats struct {
	DeploymentsChecked int `json:"deploymentsChecked"`
	AppsInError        int `json:"appsInError"`
	NotificationsSent  int `json:"notificationsSent"`
	CachesPurged       int `json:"cachesPurged"`
	ServersChecked     int `json:"serversChecked"`
}

// RunSummary is the JSON result of one run. Success false means the engine
// is disabled or misconfigured, which is a no-op rather than an error.
type RunSummary struct {
	RunID   string   `json:"runId"`
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Stats   RunStats `json:"stats"`
}
