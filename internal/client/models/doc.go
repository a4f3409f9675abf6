// Package models defines the client-side data model of readkeeper: documents,
// highlights with their sync status, highlight geometry and the annotations
// reported by the document renderer.
package models
