// Package server wires the reference annotation service: PostgreSQL storage
// with migrations, the annotation service, and the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/readkeeper/internal/logging"
	"github.com/dmitrijs2005/readkeeper/internal/server/auth"
	"github.com/dmitrijs2005/readkeeper/internal/server/config"
	"github.com/dmitrijs2005/readkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/readkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/readkeeper/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	annotations *services.AnnotationService
}

// NewApp opens the database, applies migrations and builds the service.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		annotations: services.NewAnnotationService(db, rm, c),
	}, nil
}

// IssueToken signs an access token for userID with the configured secret.
// There is no account management; operators hand tokens to readers directly.
func IssueToken(c *config.Config, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("empty user id")
	}
	return auth.GenerateToken(userID, []byte(c.SecretKey), c.AccessTokenValidityDuration)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.annotations, app.config.SecretKey)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
