package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/session"
	"github.com/dmitrijs2005/readkeeper/internal/client/store"
	"github.com/dmitrijs2005/readkeeper/internal/task"
)

// Highlight draws a one-rectangle highlight: hl <page> <x> <y> <w> <h>.
func (a *App) Highlight(ctx context.Context, args []string) error {
	s, err := a.requireSession()
	if err != nil {
		return err
	}
	rect, err := parseRect(args)
	if err != nil {
		return err
	}
	patch, err := models.EncodePatch(models.Geometry{Rects: []models.Rect{rect}})
	if err != nil {
		return err
	}

	quote, err := GetSimpleText(a.reader, "Quoted text", a.out)
	if err != nil {
		return err
	}
	note, err := GetMultiline(a.reader, "Note (optional)", a.out)
	if err != nil {
		return err
	}

	h, t, err := s.OnNewAnnotation(ctx, patch, quote, note)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Highlight %s added\n", h.ShortID)
	a.report(ctx, "highlight "+h.ShortID, t)
	return nil
}

// Highlights lists the visible highlights of the open document.
func (a *App) Highlights(ctx context.Context, _ []string) error {
	s, err := a.requireSession()
	if err != nil {
		return err
	}
	hs, err := s.Highlights(ctx)
	if err != nil {
		return err
	}
	if len(hs) == 0 {
		fmt.Fprintln(a.out, "No highlights")
		return nil
	}
	for _, h := range hs {
		fmt.Fprintf(a.out, "%-8s %-16s %q\n", h.ShortID, h.Status, h.Quote)
		if h.Note != "" {
			fmt.Fprintf(a.out, "         note: %s\n", h.Note)
		}
	}
	return nil
}

// Note edits the note of a highlight: note <id|short id>.
func (a *App) Note(ctx context.Context, args []string) error {
	s, h, err := a.resolveHighlight(ctx, args)
	if err != nil {
		return err
	}

	existing, _ := s.OnNoteRequested(ctx, models.NewRenderedAnnotation("highlight", h.Patch, models.PayloadFor(*h)))
	if existing != "" {
		fmt.Fprintf(a.out, "Current note:\n%s\n", existing)
	}
	note, err := GetMultiline(a.reader, "New note", a.out)
	if err != nil {
		return err
	}

	t, err := s.UpdateNote(ctx, h.ID, note)
	if err != nil {
		return err
	}
	a.report(ctx, "note on "+h.ShortID, t)
	return nil
}

// Delete removes a highlight: delete <id|short id>.
func (a *App) Delete(ctx context.Context, args []string) error {
	s, h, err := a.resolveHighlight(ctx, args)
	if err != nil {
		return err
	}
	t, err := s.DeleteHighlight(ctx, h.ID)
	if err != nil {
		return err
	}
	a.report(ctx, "delete of "+h.ShortID, t)
	return nil
}

// Position reports the reader position: pos <index> <total>.
func (a *App) Position(ctx context.Context, args []string) error {
	s, err := a.requireSession()
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return errors.New("usage: pos <index> <total>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	total, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("total: %w", err)
	}
	fmt.Fprintf(a.out, "Progress %.1f%%\n", s.OnPositionChanged(index, total))
	return nil
}

func (a *App) resolveHighlight(ctx context.Context, args []string) (*session.Session, *models.Highlight, error) {
	s, err := a.requireSession()
	if err != nil {
		return nil, nil, err
	}
	if len(args) != 1 {
		return nil, nil, errors.New("usage: <command> <highlight id or short id>")
	}

	h, err := a.store.Highlight(ctx, args[0])
	if store.IsNotFound(err) {
		h, err = a.store.FindByShortID(ctx, s.Document().ID, args[0])
	}
	if err != nil {
		return nil, nil, fmt.Errorf("highlight %s: %w", args[0], err)
	}
	return s, h, nil
}

// report prints the outcome of a background call once it finishes.
func (a *App) report(ctx context.Context, what string, t *task.Task[string]) {
	go func() {
		if _, err := t.Wait(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(a.out, "\n%s not synced yet: %v\n", what, err)
		}
	}()
}

func parseRect(args []string) (models.Rect, error) {
	if len(args) != 5 {
		return models.Rect{}, errors.New("usage: hl <page> <x> <y> <w> <h>")
	}
	page, err := strconv.Atoi(args[0])
	if err != nil {
		return models.Rect{}, fmt.Errorf("page: %w", err)
	}
	var v [4]float64
	for i, s := range args[1:] {
		if v[i], err = strconv.ParseFloat(s, 64); err != nil {
			return models.Rect{}, fmt.Errorf("coordinate %d: %w", i+1, err)
		}
	}
	return models.Rect{Page: page, X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}
