package wire

import "time"

type Label struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color,omitempty"`
}

type Document struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	ContentRef      string    `json:"contentRef,omitempty"`
	ProgressPercent float64   `json:"progressPercent"`
	ProgressAnchor  int       `json:"progressAnchor"`
	Labels          []Label   `json:"labels,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Highlight struct {
	ID          string    `json:"id"`
	ShortID     string    `json:"shortId"`
	DocumentID  string    `json:"documentId"`
	Quote       string    `json:"quote"`
	Prefix      string    `json:"prefix,omitempty"`
	Suffix      string    `json:"suffix,omitempty"`
	Patch       string    `json:"patch"`
	Note        *string   `json:"note,omitempty"`
	CreatedByMe bool      `json:"createdByMe"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type SaveDocumentRequest struct {
	ID         string  `json:"id" validate:"required,max=128"`
	Title      string  `json:"title" validate:"required,max=512"`
	ContentRef string  `json:"contentRef,omitempty" validate:"max=1024"`
	Labels     []Label `json:"labels,omitempty" validate:"dive"`
}

type SaveDocumentResponse struct {
	Document Document `json:"document"`
}

type FetchDocumentRequest struct {
	DocumentID string `json:"documentId" validate:"required"`
}

type FetchDocumentResponse struct {
	Document   Document    `json:"document"`
	Highlights []Highlight `json:"highlights"`
}

type CreateHighlightRequest struct {
	ID                           string   `json:"id" validate:"required,uuid"`
	ShortID                      string   `json:"shortId" validate:"required,max=32"`
	DocumentID                   string   `json:"documentId" validate:"required"`
	Quote                        string   `json:"quote" validate:"required"`
	Prefix                       string   `json:"prefix,omitempty"`
	Suffix                       string   `json:"suffix,omitempty"`
	Patch                        string   `json:"patch" validate:"required"`
	Note                         *string  `json:"note,omitempty"`
	HighlightPositionPercent     *float64 `json:"highlightPositionPercent,omitempty" validate:"omitempty,min=0,max=100"`
	HighlightPositionAnchorIndex *int     `json:"highlightPositionAnchorIndex,omitempty" validate:"omitempty,min=0"`
}

type MergeHighlightsRequest struct {
	ID         string   `json:"id" validate:"required,uuid"`
	ShortID    string   `json:"shortId" validate:"required,max=32"`
	DocumentID string   `json:"documentId" validate:"required"`
	Quote      string   `json:"quote" validate:"required"`
	Prefix     string   `json:"prefix,omitempty"`
	Suffix     string   `json:"suffix,omitempty"`
	Patch      string   `json:"patch" validate:"required"`
	OverlapIDs []string `json:"overlapHighlightIdList" validate:"required,min=1,dive,required"`
}

type UpdateHighlightRequest struct {
	ID   string  `json:"id" validate:"required"`
	Note *string `json:"note,omitempty"`
}

// HighlightResponse answers create, merge and update calls.
type HighlightResponse struct {
	Highlight Highlight `json:"highlight"`
}

type DeleteHighlightsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type DeleteHighlightsResponse struct {
	Deleted int `json:"deleted"`
}

type UpdateReadingProgressRequest struct {
	DocumentID  string  `json:"documentId" validate:"required"`
	Percent     float64 `json:"readingProgressPercent" validate:"min=0,max=100"`
	AnchorIndex int     `json:"readingProgressAnchorIndex" validate:"min=0"`
	Force       bool    `json:"force"`
}

type UpdateReadingProgressResponse struct {
	Percent     float64 `json:"readingProgressPercent"`
	AnchorIndex int     `json:"readingProgressAnchorIndex"`
}

type ContentURLRequest struct {
	DocumentID string `json:"documentId" validate:"required"`
}

type ContentURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
