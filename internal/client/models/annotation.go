package models

// AnnotationKind is decided once when an annotation is ingested from the
// renderer.
type AnnotationKind int

const (
	KindOther AnnotationKind = iota
	KindHighlight
)

// CustomPayload is the metadata readkeeper attaches to every annotation it
// hands to the renderer.
type CustomPayload struct {
	ID         string
	ShortID    string
	Quote      string
	DocumentID string

	// EditedNote is set when the note was edited in the current session.
	EditedNote *string
}

// RenderedAnnotation is an annotation instance as reported by the renderer.
type RenderedAnnotation struct {
	Kind    AnnotationKind
	Patch   string
	Payload *CustomPayload
}

// highlightSubtypes are the renderer annotation subtypes treated as highlights.
var highlightSubtypes = map[string]struct{}{
	"highlight": {},
	"Highlight": {},
	"underline": {},
	"Underline": {},
}

// NewRenderedAnnotation classifies a renderer annotation by its subtype.
func NewRenderedAnnotation(subtype, patch string, payload *CustomPayload) RenderedAnnotation {
	kind := KindOther
	if _, ok := highlightSubtypes[subtype]; ok {
		kind = KindHighlight
	}
	return RenderedAnnotation{Kind: kind, Patch: patch, Payload: payload}
}

// PayloadFor builds the custom payload attached to a rendered highlight.
func PayloadFor(h Highlight) *CustomPayload {
	return &CustomPayload{
		ID:         h.ID,
		ShortID:    h.ShortID,
		Quote:      h.Quote,
		DocumentID: h.DocumentID,
	}
}
