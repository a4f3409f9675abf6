package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrGeometryDecode is returned when a patch payload cannot be turned into a
// usable geometry.
var ErrGeometryDecode = errors.New("geometry decode failure")

// Rect is an axis-aligned region on a single page.
type Rect struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// Intersects reports whether r and o share a region of positive area on the
// same page. Rects that only touch along an edge, and empty rects, do not
// intersect anything.
func (r Rect) Intersects(o Rect) bool {
	if r.Page != o.Page || r.empty() || o.empty() {
		return false
	}
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

func (r Rect) empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Geometry is the ordered set of rectangles covered by an annotation.
type Geometry struct {
	Rects []Rect `json:"rects"`
}

// Intersects reports whether any rectangle of g intersects any rectangle of o.
func (g Geometry) Intersects(o Geometry) bool {
	for _, a := range g.Rects {
		for _, b := range o.Rects {
			if a.Intersects(b) {
				return true
			}
		}
	}
	return false
}

// EncodePatch serializes g into the patch format stored on highlights.
func EncodePatch(g Geometry) (string, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("encode patch: %w", err)
	}
	return string(b), nil
}

// DecodePatch parses a patch payload. Empty payloads, malformed JSON and
// geometries without rectangles or with negative sizes fail with
// ErrGeometryDecode.
func DecodePatch(patch string) (Geometry, error) {
	if patch == "" {
		return Geometry{}, fmt.Errorf("%w: empty patch", ErrGeometryDecode)
	}

	var g Geometry
	if err := json.Unmarshal([]byte(patch), &g); err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", ErrGeometryDecode, err)
	}
	if len(g.Rects) == 0 {
		return Geometry{}, fmt.Errorf("%w: no rects", ErrGeometryDecode)
	}
	for i, r := range g.Rects {
		if r.Width < 0 || r.Height < 0 {
			return Geometry{}, fmt.Errorf("%w: rect %d has negative size", ErrGeometryDecode, i)
		}
	}
	return g, nil
}
