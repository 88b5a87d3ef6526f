// Package paths resolves the per-user on-disk locations used by the model
// cache.
package paths

import (
	"errors"
	"path/filepath"

	"github.com/adrg/xdg"
)

// ErrCacheDirUnavailable indicates no per-user cache root could be resolved.
var ErrCacheDirUnavailable = errors.New("paths: cache dir not available")

const appDirName = "stem-splitter-core"

// ModelsCacheDir returns the directory where verified model artifacts are
// stored: <cache_root>/stem-splitter-core/models. The cache root honors
// XDG_CACHE_HOME. The directory is not created here.
func ModelsCacheDir() (string, error) {
	root := xdg.CacheHome
	if root == "" {
		return "", ErrCacheDirUnavailable
	}
	return filepath.Join(root, appDirName, "models"), nil
}
