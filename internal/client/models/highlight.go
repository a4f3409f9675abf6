package models

import "time"

// SyncStatus records how far a highlight's latest local mutation has
// progressed towards the remote source of truth.
type SyncStatus string

const (
	StatusLocalOnly          SyncStatus = "local_only"
	StatusPendingCreate      SyncStatus = "pending_create"
	StatusPendingMerge       SyncStatus = "pending_merge"
	StatusPendingUpdate      SyncStatus = "pending_update"
	StatusPendingDelete      SyncStatus = "pending_delete"
	StatusSynced             SyncStatus = "synced"
	StatusConflictUnresolved SyncStatus = "conflict_unresolved"
)

// Valid reports whether s is one of the known statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusLocalOnly, StatusPendingCreate, StatusPendingMerge, StatusPendingUpdate,
		StatusPendingDelete, StatusSynced, StatusConflictUnresolved:
		return true
	}
	return false
}

// Highlight is a user annotation over a span of document content.
type Highlight struct {
	// ID is assigned locally at creation and never reassigned unless the
	// server answers with a different canonical id.
	ID string

	// ShortID is a compact code used for human-scale correlation.
	ShortID string

	DocumentID string

	Quote  string
	Prefix string
	Suffix string

	// Patch is the serialized geometry payload (see EncodePatch).
	Patch string

	// Note is the optional user annotation text; empty means no note.
	Note string

	CreatedByMe bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// MarkedForDeletion hides the highlight from rendering while a delete or
	// a merge that absorbs it is outstanding.
	MarkedForDeletion bool

	Status SyncStatus

	// PriorStatus is the status to restore when a pending delete fails.
	PriorStatus SyncStatus

	// MergeTarget is the id of the pending merged highlight absorbing this one.
	MergeTarget string
}

// Visible reports whether the highlight should be rendered.
func (h Highlight) Visible() bool {
	return !h.MarkedForDeletion
}

// KnownRemotely reports whether the server has (or is about to have) a copy
// of this highlight, i.e. it was created remotely at least once.
func (h Highlight) KnownRemotely() bool {
	status := h.Status
	if status == StatusPendingDelete {
		status = h.PriorStatus
	}
	switch status {
	case StatusSynced, StatusPendingUpdate:
		return true
	}
	return false
}

// MayExistRemotely widens KnownRemotely to a pending delete whose create or
// merge was in flight when the client stopped: the outcome of that call is
// unknown, so the remote may hold a copy.
func (h Highlight) MayExistRemotely() bool {
	if h.KnownRemotely() {
		return true
	}
	return h.Status == StatusPendingDelete && outcomeUnknown(h.PriorStatus)
}

func outcomeUnknown(s SyncStatus) bool {
	return s == StatusPendingCreate || s == StatusPendingMerge
}
