// Package netx holds HTTP helpers for presigned object storage URLs.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DownloadPresigned GETs url and hands the response body to consume. Non-200
// answers fail with the status and the first part of the body.
func DownloadPresigned(ctx context.Context, hc *http.Client, url string, consume func(body io.Reader) error) error {
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}
	return consume(resp.Body)
}
