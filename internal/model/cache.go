package model

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gentij/stem-splitter-core/internal/fetch"
	"github.com/gentij/stem-splitter-core/internal/paths"
)

// ChecksumError reports a post-download hash disagreement. The on-disk file
// is left in place for inspection, but no handle is returned.
type ChecksumError struct {
	Path string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("model: checksum mismatch for %s", e.Path)
}

// Handle is a verified local model: the parsed manifest plus the absolute
// path of the artifact on disk.
type Handle struct {
	Manifest  Manifest
	LocalPath string
}

// ensureMu serializes concurrent EnsureModel calls so two callers converge
// on a single verified file instead of racing the same .part path.
var ensureMu sync.Mutex

// EnsureModel resolves modelName (or the explicit manifest URL override) to a
// manifest, then idempotently materializes its primary artifact under the
// per-user cache: a cache hit verifies the existing bytes and performs no
// model GET; a miss downloads, verifies, and installs atomically.
func EnsureModel(client *http.Client, modelName, manifestURLOverride string, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	manifestURL := manifestURLOverride
	if manifestURL == "" {
		resolved, err := ResolveManifestURL(modelName)
		if err != nil {
			return nil, err
		}
		manifestURL = resolved
	}

	manifest, err := fetchManifest(client, manifestURL)
	if err != nil {
		return nil, err
	}
	artifact, err := manifest.PrimaryArtifact()
	if err != nil {
		return nil, err
	}

	cacheDir, err := paths.ModelsCacheDir()
	if err != nil {
		return nil, err
	}

	ensureMu.Lock()
	defer ensureMu.Unlock()

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("model: create cache dir: %w", err)
	}

	localPath := filepath.Join(cacheDir, cacheFileName(manifest.Name, artifact))

	ok, err := fetch.VerifySHA256(localPath, artifact.SHA256)
	if err == nil && ok {
		return &Handle{Manifest: *manifest, LocalPath: localPath}, nil
	}

	if err := fetch.Download(client, artifact.URL, localPath); err != nil {
		return nil, err
	}

	ok, err = fetch.VerifySHA256(localPath, artifact.SHA256)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ChecksumError{Path: localPath}
	}

	if artifact.SizeBytes > 0 {
		if info, statErr := os.Stat(localPath); statErr == nil && uint64(info.Size()) != artifact.SizeBytes {
			logger.Warn("model size differs from manifest",
				"path", localPath,
				"expected", artifact.SizeBytes,
				"actual", info.Size())
		}
	}

	return &Handle{Manifest: *manifest, LocalPath: localPath}, nil
}

func fetchManifest(client *http.Client, url string) (*Manifest, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("model: fetch manifest %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("model: fetch manifest %s: unexpected status %d", url, resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// cacheFileName builds "<name>-<sha256[:8]>.<ext>", content-identified by the
// hash prefix so bit-different models cannot collide.
func cacheFileName(name string, a Artifact) string {
	ext := ""
	if i := strings.LastIndex(a.File, "."); i >= 0 && i < len(a.File)-1 {
		ext = a.File[i:]
	}
	return name + "-" + a.SHA256[:8] + ext
}
