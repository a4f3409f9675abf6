// Package cli provides the interactive readkeeper command-line client.
//
// It wires configuration, the local annotation store, the remote client and
// the reconcile engine into a REPL that works online and offline. Typical
// flow: open a document, draw highlights, edit notes, report the reading
// position, and let the background sync loop push whatever is still pending.
//
// Key features:
//   - Library: list local documents, save new ones, open / close
//   - Highlights: draw, list, edit notes, delete
//   - Progress: report the reader position for the open document
//   - Sync, refetch and offline content download
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, StartSyncLoop and runREPL for details.
package cli
