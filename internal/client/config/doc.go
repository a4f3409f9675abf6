// Package config loads runtime configuration for the readkeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the annotation service
//	-i int      online status check interval (seconds)
//	-d string   path of the local database
//	-cache string  directory for downloaded document content
//	-t string   access token
//	-s int      background sync interval (seconds)
//	-w int      sync parallelism
//	-p int      progress push interval (milliseconds)
//	-m string   metrics listen address
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds. Absent keys keep their defaults:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "call_timeout": "10s",
//	  "database_path": "readkeeper.db",
//	  "cache_dir": "cache",
//	  "access_token": "",
//	  "sync_interval": "30s",
//	  "sync_parallelism": 4,
//	  "progress_interval": "2s",
//	  "metrics_addr": ":9102"
//	}
package config
