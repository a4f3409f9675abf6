package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/readkeeper/internal/client/client"
	"github.com/dmitrijs2005/readkeeper/internal/client/client/clienttest"
	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/store"
	"github.com/dmitrijs2005/readkeeper/internal/common"
)

func setup(t *testing.T, handler http.HandlerFunc) (*Downloader, *store.Store, *clienttest.Remote, string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "client.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.UpsertDocument(ctx, &models.Document{ID: "doc1", Title: "Doc"}))

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	remote := clienttest.NewRemote()
	remote.SetContentURL(ts.URL + "/bucket/doc1?X-Amz-Signature=x")

	cache := filepath.Join(t.TempDir(), "cache")
	return NewDownloader(remote, st, cache, ts.Client(), nil), st, remote, cache
}

func waitPath(t *testing.T, d *Downloader, id string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.Download(ctx, id).Wait(ctx)
}

func TestDownload_StoresPathAfterCompletion(t *testing.T) {
	var hits atomic.Int32
	d, st, _, cache := setup(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("%PDF-1.7 body"))
	})

	path, err := waitPath(t, d, "doc1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "doc1.content"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(b))

	doc, err := st.Get(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, path, doc.LocalPath)

	// Cached copies are not downloaded again.
	again, err := waitPath(t, d, "doc1")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownload_FailureLeavesStoreUntouched(t *testing.T) {
	d, st, _, cache := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := waitPath(t, d, "doc1")
	require.Error(t, err)

	doc, err := st.Get(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Empty(t, doc.LocalPath)

	entries, _ := os.ReadDir(cache)
	assert.Empty(t, entries)
}

func TestDownload_URLFailure(t *testing.T) {
	d, _, remote, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {})
	remote.FailNext(clienttest.OpContentURL, client.ErrNetwork)

	_, err := waitPath(t, d, "doc1")
	require.ErrorIs(t, err, client.ErrNetwork)
}

func TestDownload_UnknownDocument(t *testing.T) {
	d, _, _, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := waitPath(t, d, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDownload_ConcurrentRequestsShareDownload(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	d, _, _, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte("x"))
	})

	ctx := context.Background()
	t1 := d.Download(ctx, "doc1")
	t2 := d.Download(ctx, "doc1")
	require.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	close(release)

	p1, err := t1.Wait(ctx)
	require.NoError(t, err)
	p2, err := t2.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a_b.content", fileName("a/b"))
	assert.Equal(t, "__x.content", fileName("../x"))
}
