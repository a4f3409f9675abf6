// Package highlights provides the SQLite persistence layer for highlights and
// their association with documents.
//
// A SQLiteRepository operates on a dbx.DBTX, so callers decide whether a
// group of calls runs inside a transaction. Timestamps are stored as Unix
// milliseconds.
//
//	repo := highlights.NewSQLiteRepository(tx)
//	_ = repo.Upsert(ctx, h)
//	list, _ := repo.ListByDocument(ctx, docID, false)
package highlights
