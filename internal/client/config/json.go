package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/readkeeper/internal/flagx"
	"github.com/dmitrijs2005/readkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer and
// zero values mark keys absent from the file.
type JsonConfig struct {
	ServerEndpointAddr  string          `json:"server_endpoint_addr"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	CallTimeout         *timex.Duration `json:"call_timeout"`
	DatabasePath        string          `json:"database_path"`
	CacheDir            string          `json:"cache_dir"`
	AccessToken         string          `json:"access_token"`
	SyncInterval        *timex.Duration `json:"sync_interval"`
	SyncParallelism     int             `json:"sync_parallelism"`
	ProgressInterval    *timex.Duration `json:"progress_interval"`
	MetricsAddr         string          `json:"metrics_addr"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.CacheDir, jc.CacheDir)
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)

	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.CallTimeout != nil {
		cfg.CallTimeout = jc.CallTimeout.Duration
	}
	if jc.SyncInterval != nil {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.ProgressInterval != nil {
		cfg.ProgressInterval = jc.ProgressInterval.Duration
	}
	if jc.SyncParallelism > 0 {
		cfg.SyncParallelism = jc.SyncParallelism
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
