// Package fetch downloads binary artifacts over HTTP with progress reporting
// and verifies them by streaming SHA-256.
package fetch

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gentij/stem-splitter-core/progress"
)

const (
	connectTimeout = 10 * time.Second
	readTimeout    = time.Hour
	chunkSize      = 64 * 1024
)

// NewClient returns the HTTP client used for manifest and artifact fetches:
// ~10 s to connect, up to an hour to drain a large model download.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: readTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			TLSHandshakeTimeout: connectTimeout,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}

// Download streams url into dest. The body is written to dest+".part" in
// 64 KiB chunks with a progress event after each, then the part file is
// atomically renamed over dest, replacing any stale copy. The part file is
// removed on every failure path.
func Download(client *http.Client, url, dest string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("fetch: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch: get %s: unexpected status %d", url, resp.StatusCode)
	}

	var total uint64
	if resp.ContentLength > 0 {
		total = uint64(resp.ContentLength)
	}
	progress.EmitDownload(0, total)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("fetch: create dir: %w", err)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("fetch: create %s: %w", tmp, err)
	}

	var downloaded uint64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				f.Close()
				os.Remove(tmp)
				return fmt.Errorf("fetch: write %s: %w", tmp, writeErr)
			}
			downloaded += uint64(n)
			progress.EmitDownload(downloaded, total)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("fetch: read body: %w", readErr)
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fetch: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("fetch: close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("fetch: rename %s: %w", tmp, err)
	}

	if total < downloaded {
		total = downloaded
	}
	progress.EmitDownload(total, total)
	return nil
}
