// Package syncstate implements the per-highlight synchronization state
// machine.
//
//	LocalOnly ──create──▶ PendingCreate ──ok──▶ Synced ──edit──▶ PendingUpdate
//	    │  ▲                   │                  │                  │
//	    │  └──network failure──┘                  └──delete──▶ PendingDelete
//	    └──overlap──▶ PendingMerge ──ok──▶ Synced
//
// Validation failures land in ConflictUnresolved, which only a full resync
// leaves. Apply mutates a highlight row in place; persisting it is the
// caller's business.
package syncstate

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
)

// ErrInvalidTransition is returned for events the current status does not accept.
var ErrInvalidTransition = errors.New("invalid sync state transition")

type Event int

const (
	// EventDispatchCreate: a create call is about to be issued.
	EventDispatchCreate Event = iota
	// EventDispatchMerge: a merge call is about to be issued.
	EventDispatchMerge
	// EventEdit: the note was changed locally.
	EventEdit
	// EventRequestDelete: the user deleted the highlight.
	EventRequestDelete
	// EventSucceeded: the outstanding call succeeded.
	EventSucceeded
	// EventNetworkFailed: the outstanding call failed with a retryable error.
	EventNetworkFailed
	// EventValidationFailed: the remote rejected the call.
	EventValidationFailed
	// EventGone: the remote no longer knows the highlight.
	EventGone
	// EventResynced: the row was replaced by a full refetch.
	EventResynced
)

func (e Event) String() string {
	switch e {
	case EventDispatchCreate:
		return "dispatch_create"
	case EventDispatchMerge:
		return "dispatch_merge"
	case EventEdit:
		return "edit"
	case EventRequestDelete:
		return "request_delete"
	case EventSucceeded:
		return "succeeded"
	case EventNetworkFailed:
		return "network_failed"
	case EventValidationFailed:
		return "validation_failed"
	case EventGone:
		return "gone"
	case EventResynced:
		return "resynced"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Apply advances h by ev. It reports remove=true when the row must be
// hard-deleted from the store.
func Apply(h *models.Highlight, ev Event) (remove bool, err error) {
	from := h.Status

	if ev == EventResynced {
		h.Status = models.StatusSynced
		h.PriorStatus = ""
		h.MarkedForDeletion = false
		h.MergeTarget = ""
		return false, nil
	}

	switch from {
	case models.StatusLocalOnly:
		switch ev {
		case EventDispatchCreate:
			h.Status = models.StatusPendingCreate
			return false, nil
		case EventDispatchMerge:
			h.Status = models.StatusPendingMerge
			return false, nil
		case EventEdit:
			return false, nil
		case EventRequestDelete:
			hide(h)
			return false, nil
		}

	case models.StatusPendingCreate, models.StatusPendingMerge:
		switch ev {
		case EventSucceeded:
			h.Status = models.StatusSynced
			return false, nil
		case EventNetworkFailed:
			h.Status = models.StatusLocalOnly
			return false, nil
		case EventValidationFailed:
			h.Status = models.StatusConflictUnresolved
			return false, nil
		case EventEdit:
			return false, nil
		case EventRequestDelete:
			hide(h)
			return false, nil
		}

	case models.StatusSynced:
		switch ev {
		case EventEdit:
			h.Status = models.StatusPendingUpdate
			return false, nil
		case EventSucceeded:
			return false, nil
		case EventRequestDelete:
			hide(h)
			return false, nil
		case EventGone:
			return true, nil
		}

	case models.StatusPendingUpdate:
		switch ev {
		case EventEdit, EventNetworkFailed:
			return false, nil
		case EventSucceeded:
			h.Status = models.StatusSynced
			return false, nil
		case EventValidationFailed:
			h.Status = models.StatusConflictUnresolved
			return false, nil
		case EventGone:
			return true, nil
		case EventRequestDelete:
			hide(h)
			return false, nil
		}

	case models.StatusPendingDelete:
		switch ev {
		case EventSucceeded, EventGone:
			return true, nil
		case EventNetworkFailed, EventValidationFailed:
			switch h.PriorStatus {
			case "":
				h.Status = models.StatusSynced
			case models.StatusPendingCreate, models.StatusPendingMerge:
				// The create or merge never reported back; resend it.
				h.Status = models.StatusLocalOnly
			default:
				h.Status = h.PriorStatus
			}
			h.PriorStatus = ""
			h.MarkedForDeletion = false
			return false, nil
		}

	case models.StatusConflictUnresolved:
		if ev == EventEdit {
			return false, nil
		}
	}

	return false, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
}

func hide(h *models.Highlight) {
	h.PriorStatus = h.Status
	h.Status = models.StatusPendingDelete
	h.MarkedForDeletion = true
}
