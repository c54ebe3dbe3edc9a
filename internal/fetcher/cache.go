package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/atomicfile"
)

const (
	webDir         = "web"
	submissionsDir = "submissions"
)

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// cachePath returns the cache file for name under kind, or "" when the
// cache is disabled.
func (c *Client) cachePath(kind, name string) string {
	if c.opts.CacheDir == "" {
		return ""
	}
	return filepath.Join(c.opts.CacheDir, kind, name)
}

func readCache(path string) ([]byte, bool) {
	if path == "" {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// writeCache stores data at path via temp file and rename. Failures are
// logged; the caller already holds the data.
func (c *Client) writeCache(path string, data []byte) {
	if path == "" {
		return
	}
	if err := atomicfile.Write(path, data); err != nil {
		c.log.Warn("cache write failed", zap.String("path", path), zap.Error(err))
	}
}
