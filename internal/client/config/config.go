package config

import "time"

// Config holds runtime settings for the readkeeper client.
//
// Units: all intervals are time.Duration values.
type Config struct {
	// ServerEndpointAddr is host:port of the annotation service.
	ServerEndpointAddr string
	// OnlineCheckInterval is how often the client checks server reachability.
	OnlineCheckInterval time.Duration
	// CallTimeout bounds a single remote call.
	CallTimeout time.Duration

	DatabasePath string
	CacheDir     string
	AccessToken  string

	// SyncInterval is the period of the background pass over pending highlights.
	SyncInterval time.Duration
	// SyncParallelism bounds concurrent remote calls during a sync pass.
	SyncParallelism int
	// ProgressInterval is the minimum spacing of reading-progress pushes.
	ProgressInterval time.Duration

	// MetricsAddr serves Prometheus metrics when non-empty.
	MetricsAddr string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.CallTimeout = 10 * time.Second
	c.DatabasePath = "readkeeper.db"
	c.CacheDir = "cache"
	c.SyncInterval = 30 * time.Second
	c.SyncParallelism = 4
	c.ProgressInterval = 2 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
