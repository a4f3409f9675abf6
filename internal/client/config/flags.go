package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-d", "-cache", "-t", "-s", "-w", "-p", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.CacheDir, "cache", cfg.CacheDir, "document content cache directory")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.IntVar(&cfg.SyncParallelism, "w", cfg.SyncParallelism, "sync parallelism")
	progressInterval := fs.Int("p", int(cfg.ProgressInterval.Milliseconds()), "progress push interval (in milliseconds)")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	cfg.ProgressInterval = time.Duration(*progressInterval) * time.Millisecond
}
