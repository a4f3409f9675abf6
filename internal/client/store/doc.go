// Package store is the Annotation Store: the durable local repository of
// documents, highlights and their relationships, and the single source of
// truth the presentation layer renders from.
//
// Every write runs in one SQLite transaction under the store's write lock, so
// a call is applied completely or not at all. Reads take the read lock and
// never wait on remote activity; nothing in this package talks to the network.
//
// Multi-step read-modify-write sequences go through Update:
//
//	err := st.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
//	    h, err := tx.Highlight(ctx, id)
//	    if err != nil {
//	        return err
//	    }
//	    h.Note = note
//	    return tx.UpsertHighlights(ctx, *h)
//	})
//
// Committed writes are announced to watchers (see Watch) by document id.
package store
