package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-index/internal/logging"
	"media-index/internal/mediatool"
	"media-index/internal/metrics"

	_ "image/png"

	"github.com/disintegration/imaging"
)

const (
	thumbExt    = ".jpg"
	publicBase  = "/thumbnails/"
	thumbWidth  = 200
	thumbHeight = 200
	jpegQuality = 80
)

// frameOffsets is the extraction ladder: try a frame at 5s, then fall back
// to earlier timestamps for short videos.
var frameOffsets = []float64{5, 2, 1}

// Generator produces content-addressed video thumbnails. Output names derive
// solely from the file's content hash, so identical content shares one asset
// and regeneration for an unchanged file is an existence check.
type Generator struct {
	cacheDir string
	tool     mediatool.Tool
	mu       sync.Mutex
}

// New returns a Generator writing JPEG thumbnails to cacheDir.
func New(cacheDir string, tool mediatool.Tool) *Generator {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logging.Warn("Failed to create thumbnail cache dir %s: %v", cacheDir, err)
	}
	logging.Debug("Thumbnail generator: cache dir %s", cacheDir)
	return &Generator{
		cacheDir: cacheDir,
		tool:     tool,
	}
}

// Dir returns the cache directory thumbnails are written to.
func (g *Generator) Dir() string {
	return g.cacheDir
}

// CachePath returns the on-disk location of the asset for hash.
func (g *Generator) CachePath(hash string) string {
	return filepath.Join(g.cacheDir, hash+thumbExt)
}

// PublicPath returns the URL path the static file layer serves for hash.
func PublicPath(hash string) string {
	return publicBase + hash + thumbExt
}

// Generate produces a thumbnail for the video at path, addressed by its
// content hash. Returns the public URL path, or "" when no frame could be
// extracted (short or undecodable video). Errors are reserved for
// infrastructure failures: undecodable frame bytes, encode or write
// problems.
func (g *Generator) Generate(ctx context.Context, path, hash string) (string, error) {
	if hash == "" {
		return "", fmt.Errorf("empty hash for %s", path)
	}

	cachePath := g.CachePath(hash)
	publicPath := PublicPath(hash)

	if _, err := os.Stat(cachePath); err == nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("exists").Inc()
		return publicPath, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Another goroutine may have generated it while we waited on the lock.
	if _, err := os.Stat(cachePath); err == nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("exists").Inc()
		return publicPath, nil
	}

	start := time.Now()

	frame, err := g.extractWithRetry(ctx, path)
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("absent").Inc()
		logging.Debug("No thumbnail for %s: %v", path, err)
		return "", nil
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to decode extracted frame for %s: %w", path, err)
	}

	thumb := imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to encode thumbnail for %s: %w", path, err)
	}

	if err := os.WriteFile(cachePath, buf.Bytes(), 0644); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to write thumbnail %s: %w", cachePath, err)
	}

	metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
	metrics.ThumbnailGenerationsTotal.WithLabelValues("generated").Inc()
	logging.Debug("Thumbnail generated: %s -> %s", path, cachePath)

	return publicPath, nil
}

// extractWithRetry walks the offset ladder until a frame comes back.
func (g *Generator) extractWithRetry(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for i, offset := range frameOffsets {
		if i > 0 {
			metrics.ThumbnailExtractionRetries.Inc()
		}
		frame, err := g.tool.ExtractFrame(ctx, path, offset)
		if err == nil {
			return frame, nil
		}
		lastErr = err
		logging.Debug("Frame extraction at %.0fs failed for %s: %v", offset, path, err)
	}
	return nil, lastErr
}

// RemoveOrphans deletes cached assets whose hash is not present in keep.
// Non-thumbnail files in the cache dir are left alone. Returns the number
// of assets removed.
func (g *Generator) RemoveOrphans(keep map[string]struct{}) (int, error) {
	entries, err := os.ReadDir(g.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read thumbnail cache dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		hash, ok := strings.CutSuffix(entry.Name(), thumbExt)
		if !ok {
			continue
		}
		if _, ok := keep[hash]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(g.cacheDir, entry.Name())); err != nil {
			logging.Warn("Failed to remove orphaned thumbnail %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logging.Debug("Removed %d orphaned thumbnails from %s", removed, g.cacheDir)
	}
	return removed, nil
}
