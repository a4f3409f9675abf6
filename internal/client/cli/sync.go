package cli

import (
	"context"
	"fmt"
)

// Sync pushes every pending highlight now.
func (a *App) Sync(ctx context.Context, _ []string) error {
	if !a.isOnline() {
		return errOffline
	}
	if err := a.engine.SyncPending(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Sync complete")
	return nil
}

// Refetch replaces the open document's highlights with the remote copy.
func (a *App) Refetch(ctx context.Context, _ []string) error {
	s, err := a.requireSession()
	if err != nil {
		return err
	}
	if !a.isOnline() {
		return errOffline
	}
	if err := a.engine.Refetch(ctx, s.Document().ID); err != nil {
		return err
	}
	return a.Highlights(ctx, nil)
}

// Download caches the open document's content for offline reading.
func (a *App) Download(ctx context.Context, _ []string) error {
	s, err := a.requireSession()
	if err != nil {
		return err
	}
	if !a.isOnline() {
		return errOffline
	}
	path, err := a.content.Download(ctx, s.Document().ID).Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved to %s\n", path)
	return nil
}

// Token asks for an access token and uses it for subsequent calls.
func (a *App) Token(ctx context.Context, _ []string) error {
	ts, ok := a.remote.(tokenSetter)
	if !ok {
		return fmt.Errorf("remote does not take access tokens")
	}
	token, err := GetSecret("Access token", a.out)
	if err != nil {
		return err
	}
	ts.SetAccessToken(token)
	a.checkOnline(ctx)
	return nil
}
