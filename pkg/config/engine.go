package config

import "time"

// EngineConfig holds runtime configuration for the deployment watcher.
type EngineConfig struct {
	Environment           string
	Addr                  string
	DatabaseURL           string
	MigrationsDir         string
	TenantID              string
	EngineToken           string
	EventFeedEnabled      bool
	ControlPlaneTimeout   time.Duration
	FetchConcurrency      int
	LookBack              time.Duration
	CoolDown              time.Duration
	NotifiedTTL           time.Duration
	MaxTrackedDeployments int
	ReconcileInterval     time.Duration
	NotifyTimeout         time.Duration
	CachePurgeURL         string
	CachePurgeToken       string
	CachePurgeTimeout     time.Duration
	StateRedisAddr        string
	StateRedisPassword    string
	StateRedisDB          int
}

// LoadEngineConfig constructs an EngineConfig from environment variables.
func LoadEngineConfig() EngineConfig {
	return EngineConfig{
		Environment:           GetString("APP_ENV", "development"),
		Addr:                  GetString("ENGINE_ADDR", ":4600"),
		DatabaseURL:           GetString("DATABASE_URL", "postgres://deploywatch:deploywatch@db:5432/deploywatch?sslmode=disable"),
		MigrationsDir:         GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		TenantID:              GetString("TENANT_ID", "default"),
		EngineToken:           GetString("ENGINE_AUTH_TOKEN", ""),
		EventFeedEnabled:      GetBool("EVENT_FEED_ENABLED", true),
		ControlPlaneTimeout:   time.Duration(GetInt("CONTROL_PLANE_TIMEOUT_SECONDS", 10)) * time.Second,
		FetchConcurrency:      GetInt("FETCH_CONCURRENCY", 15),
		LookBack:              time.Duration(GetInt("DEPLOYMENT_LOOKBACK_MINUTES", 60)) * time.Minute,
		CoolDown:              time.Duration(GetInt("APP_ERROR_COOLDOWN_MINUTES", 30)) * time.Minute,
		NotifiedTTL:           time.Duration(GetInt("NOTIFIED_RETENTION_HOURS", 24)) * time.Hour,
		MaxTrackedDeployments: GetInt("MAX_TRACKED_DEPLOYMENTS", 500),
		ReconcileInterval:     time.Duration(GetInt("RECONCILE_INTERVAL_SECONDS", 0)) * time.Second,
		NotifyTimeout:         time.Duration(GetInt("NOTIFY_TIMEOUT_SECONDS", 10)) * time.Second,
		CachePurgeURL:         GetString("CACHE_PURGE_URL", ""),
		CachePurgeToken:       GetString("CACHE_PURGE_TOKEN", ""),
		CachePurgeTimeout:     time.Duration(GetInt("CACHE_PURGE_TIMEOUT_SECONDS", 10)) * time.Second,
		StateRedisAddr:        GetString("STATE_REDIS_ADDR", ""),
		StateRedisPassword:    GetString("STATE_REDIS_PASSWORD", ""),
		StateRedisDB:          GetInt("STATE_REDIS_DB", 0),
	}
}
