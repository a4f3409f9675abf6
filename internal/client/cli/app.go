package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/client"
	"github.com/dmitrijs2005/readkeeper/internal/client/config"
	"github.com/dmitrijs2005/readkeeper/internal/client/content"
	"github.com/dmitrijs2005/readkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/readkeeper/internal/client/reconcile"
	"github.com/dmitrijs2005/readkeeper/internal/client/session"
	"github.com/dmitrijs2005/readkeeper/internal/client/store"
	"github.com/dmitrijs2005/readkeeper/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// tokenSetter is implemented by remotes that carry an access token.
type tokenSetter interface {
	SetAccessToken(token string)
}

type App struct {
	config  *config.Config
	store   *store.Store
	remote  client.Remote
	engine  *reconcile.Engine
	content *content.Downloader
	logger  logging.Logger

	modeMu sync.RWMutex
	Mode   Mode

	sessionMu sync.Mutex
	session   *session.Session

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local store and connects the remote client.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	st, err := store.Open(ctx, c.DatabasePath, logger)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	opts := []client.Option{client.WithCallTimeout(c.CallTimeout)}
	if c.AccessToken != "" {
		opts = append(opts, client.WithAccessToken(c.AccessToken))
	}
	remote, err := client.NewGRPCClient(c.ServerEndpointAddr, opts)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return newApp(c, st, remote, logger, bufio.NewReader(os.Stdin), os.Stdout), nil
}

func newApp(c *config.Config, st *store.Store, remote client.Remote, logger logging.Logger, in *bufio.Reader, out io.Writer) *App {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &App{
		config:  c,
		store:   st,
		remote:  remote,
		engine:  reconcile.New(st, remote, logger, reconcile.WithSyncParallelism(c.SyncParallelism)),
		content: content.NewDownloader(remote, st, c.CacheDir, http.DefaultClient, logger),
		logger:  logger.With("module", "cli"),
		Mode:    ModeDisabled,
		reader:  in,
		out:     out,
	}
}

func (a *App) setMode(mode Mode) {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) mode() Mode {
	a.modeMu.RLock()
	defer a.modeMu.RUnlock()
	return a.Mode
}

func (a *App) isOnline() bool {
	return a.mode() == ModeOnline
}

// Run starts the background loops and the REPL, and tears everything down
// when the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	go a.StartSyncLoop(ctx, a.config.SyncInterval)

	if a.config.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, a.config.MetricsAddr); err != nil {
				a.logger.Error(ctx, "metrics server stopped", "error", err)
			}
		}()
	}

	fmt.Fprintln(a.out, "Welcome to readkeeper (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// Close ends the open session, waits briefly for in-flight calls and
// releases the store and the connection.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = a.CloseDocument(ctx, nil)
	if err := a.engine.Close(ctx); err != nil {
		a.logger.Warn(ctx, "in-flight calls still running at exit", "error", err)
	}
	_ = a.remote.Close()
	_ = a.store.Close()
}

func (a *App) getStatus() string {
	s := string(a.mode())
	if sess := a.currentSession(); sess != nil {
		s = fmt.Sprintf("%s %s", s, sess.Document().Title)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.remote.Ping(ctx)
	cancel()

	if err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// StartOnlineStatusWatcher pings the service every interval and flips the
// mode between online and offline.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// StartSyncLoop pushes pending highlights every interval while online.
func (a *App) StartSyncLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !a.isOnline() {
				continue
			}
			if err := a.engine.SyncPending(ctx); err != nil {
				a.logger.Warn(ctx, "background sync incomplete", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) currentSession() *session.Session {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	return a.session
}
