// Package content keeps a local copy of document content for offline reading.
package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/readkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/readkeeper/internal/client/store"
	"github.com/dmitrijs2005/readkeeper/internal/filex"
	"github.com/dmitrijs2005/readkeeper/internal/logging"
	"github.com/dmitrijs2005/readkeeper/internal/netx"
	"github.com/dmitrijs2005/readkeeper/internal/task"
)

// URLSource resolves a short-lived download URL for a document.
type URLSource interface {
	ContentURL(ctx context.Context, documentID string) (string, error)
}

type Downloader struct {
	urls     URLSource
	store    *store.Store
	cacheDir string
	http     *http.Client
	logger   logging.Logger

	// inflight collapses concurrent downloads of one document.
	inflight singleflight.Group
}

func NewDownloader(urls URLSource, st *store.Store, cacheDir string, hc *http.Client, logger logging.Logger) *Downloader {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Downloader{
		urls:     urls,
		store:    st,
		cacheDir: cacheDir,
		http:     hc,
		logger:   logger.With("module", "content"),
	}
}

// Download fetches the content of documentID into the cache directory and
// resolves to the local path. The path is recorded in the store only after
// the file is complete. A document already cached resolves at once;
// concurrent requests for one document share a single download.
func (d *Downloader) Download(ctx context.Context, documentID string) *task.Task[string] {
	if doc, err := d.store.Get(ctx, documentID); err != nil {
		return task.Done("", err)
	} else if doc.LocalPath != "" {
		if _, err := os.Stat(doc.LocalPath); err == nil {
			return task.Done(doc.LocalPath, nil)
		}
	}

	ctx = context.WithoutCancel(ctx)
	ch := d.inflight.DoChan(documentID, func() (any, error) {
		path, err := d.fetch(ctx, documentID)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			d.logger.Warn(ctx, "content download failed", "document_id", documentID, "error", err)
		}
		metrics.ContentDownloads.WithLabelValues(outcome).Inc()
		return path, err
	})
	return task.Go(func() (string, error) {
		res := <-ch
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	})
}

func (d *Downloader) fetch(ctx context.Context, documentID string) (string, error) {
	url, err := d.urls.ContentURL(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("content url: %w", err)
	}

	dir, err := filex.EnsureDir(d.cacheDir)
	if err != nil {
		return "", err
	}

	var path string
	err = netx.DownloadPresigned(ctx, d.http, url, func(body io.Reader) error {
		var err error
		path, err = filex.WriteFileAtomic(dir, fileName(documentID), body)
		return err
	})
	if err != nil {
		return "", err
	}

	if err := d.store.SetDocumentLocalPath(ctx, documentID, path); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	d.logger.Info(ctx, "content cached", "document_id", documentID, "path", path)
	return path, nil
}

func fileName(documentID string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(documentID) + ".content"
}
