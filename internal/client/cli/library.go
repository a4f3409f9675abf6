package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/reconcile"
	"github.com/dmitrijs2005/readkeeper/internal/client/session"
)

var (
	errNoDocument = errors.New("no document open, use 'open <id>'")
	errOffline    = errors.New("service unreachable, try again when online")
)

func (a *App) hasOpenDocument() bool {
	return a.currentSession() != nil
}

func (a *App) requireSession() (*session.Session, error) {
	s := a.currentSession()
	if s == nil {
		return nil, errNoDocument
	}
	return s, nil
}

// List prints the local library.
func (a *App) List(ctx context.Context, _ []string) error {
	docs, err := a.store.Documents(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(a.out, "No documents yet")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintln(a.out, formatDocument(d))
	}
	return nil
}

// Save registers a new document with the service and keeps a local copy of
// its metadata: save <title> [content ref].
func (a *App) Save(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: save <title> [content ref]")
	}
	if !a.isOnline() {
		return errOffline
	}

	d := models.Document{Title: args[0]}
	if len(args) > 1 {
		d.ContentRef = args[1]
	}
	saved, err := a.remote.SaveDocument(ctx, d)
	if err != nil {
		return err
	}
	if err := a.store.UpsertDocument(ctx, saved); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s\n", saved.ID)
	return nil
}

// Open makes a document the active one. When online its highlights are
// refetched first; a failed refetch falls back to the local copy.
func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: open <document id>")
	}
	id := args[0]

	if a.isOnline() {
		if err := a.engine.Refetch(ctx, id); err != nil {
			a.logger.Warn(ctx, "refetch on open failed, using local copy", "document_id", id, "error", err)
		}
	}

	if err := a.CloseDocument(ctx, nil); err != nil {
		a.logger.Warn(ctx, "closing previous document", "error", err)
	}

	s, err := session.Open(ctx, a.engine, a.store, id, a.config.ProgressInterval, a.logger)
	if err != nil {
		return err
	}

	a.sessionMu.Lock()
	a.session = s
	a.sessionMu.Unlock()
	go a.printNotices(s)

	d := s.Document()
	fmt.Fprintf(a.out, "Opened %q (%.0f%%)\n", d.Title, d.ProgressPercent)
	if at, err := a.store.Metadata().GetTime(ctx, reconcile.RefetchKey(id)); err == nil && !at.IsZero() {
		fmt.Fprintf(a.out, "Last refreshed %s\n", at.Local().Format(time.DateTime))
	}
	return a.Highlights(ctx, nil)
}

// CloseDocument closes the active document, if any.
func (a *App) CloseDocument(ctx context.Context, _ []string) error {
	a.sessionMu.Lock()
	s := a.session
	a.session = nil
	a.sessionMu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close(ctx)
}

func (a *App) printNotices(s *session.Session) {
	for n := range s.Notices() {
		fmt.Fprintf(a.out, "\n! %s\n", n)
	}
}

func formatDocument(d models.Document) string {
	var labels []string
	for _, l := range d.Labels {
		labels = append(labels, l.Name)
	}
	cached := ""
	if d.LocalPath != "" {
		cached = " [offline]"
	}
	s := fmt.Sprintf("%s  %-30s %5.1f%%%s", d.ID, d.Title, d.ProgressPercent, cached)
	if len(labels) > 0 {
		s += "  #" + strings.Join(labels, " #")
	}
	return s
}
