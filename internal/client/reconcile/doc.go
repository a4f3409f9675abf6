// Package reconcile is the Reconciliation Engine: it turns local annotation
// intents (draw, edit note, delete, report progress) into remote calls and
// applies the authoritative results back to the Annotation Store.
//
// Local state is written first and synchronously, so the presentation layer
// sees every change immediately. The remote call then runs in the background
// and is returned as a *task.Task that resolves to the highlight's final id.
// Calls are serialized per highlight id; different highlights proceed
// concurrently. Dispatched calls are detached from the caller's context and
// keep running (and still apply their results) after a document session ends.
//
// Failures follow the sync state machine in internal/client/syncstate:
// network failures leave work pending for the next SyncPending pass,
// validation failures park the highlight in ConflictUnresolved until Refetch,
// and not-found answers drop the local copy.
package reconcile
