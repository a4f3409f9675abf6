package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/readkeeper/internal/client/migrations"

	_ "modernc.org/sqlite"
)

const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// OpenDB opens the SQLite database at path and applies migrations.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
