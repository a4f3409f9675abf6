// Package models holds the rows persisted by the annotation service.
package models

import "time"

type Label struct {
	ID    string
	Name  string
	Color string
}

// Document is owned by exactly one user; ids are chosen by the client and are
// unique per user.
type Document struct {
	ID              string
	UserID          string
	Title           string
	ContentRef      string
	ProgressPercent float64
	ProgressAnchor  int
	Labels          []Label
	UpdatedAt       time.Time
}

// Highlight is a stored annotation. Note is nil when the highlight has no note;
// merged highlights start without one.
type Highlight struct {
	ID              string
	UserID          string
	DocumentID      string
	ShortID         string
	Quote           string
	Prefix          string
	Suffix          string
	Patch           string
	Note            *string
	PositionPercent *float64
	PositionAnchor  *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
