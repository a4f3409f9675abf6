// Package documents provides the SQLite persistence layer for documents,
// their labels and reading progress.
package documents
