package models

import "time"

// Document is a saved article or file as known locally.
type Document struct {
	// ID is the server-side identifier of the document.
	ID string

	// Title is the display title.
	Title string

	// ContentRef references the raw content in remote storage.
	ContentRef string

	// LocalPath is the cached copy on disk; empty until downloaded.
	LocalPath string

	// ProgressPercent is the reading progress in [0, 100].
	ProgressPercent float64

	// ProgressAnchor is the page/offset index the reader last stopped at.
	ProgressAnchor int

	// Labels attached to the document.
	Labels []Label

	UpdatedAt time.Time
}

// Label is a user tag shared between documents.
type Label struct {
	ID    string
	Name  string
	Color string
}
