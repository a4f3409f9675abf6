package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/readkeeper/internal/dbx"
	"github.com/dmitrijs2005/readkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/readkeeper/internal/server/repositories/highlights"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Documents(db dbx.DBTX) documents.Repository
	Highlights(db dbx.DBTX) highlights.Repository
}
