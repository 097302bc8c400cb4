package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/store"

	"github.com/gorilla/mux"
)

// Browse lists a media directory. Files still being indexed in the
// background appear as placeholders with an empty hash; the response's
// pending count tells the caller whether a follow-up request will see more.
func (h *Handlers) Browse(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	rel := r.URL.Query().Get("path")
	field := mediatypes.SortField(r.URL.Query().Get("sort"))
	order := mediatypes.SortOrder(r.URL.Query().Get("order"))
	if field == "" {
		field = mediatypes.SortByName
	}
	if order == "" {
		order = mediatypes.SortAsc
	}

	dir := filepath.Join(h.mediaDir, rel)
	if !isSubPath(h.mediaDir, dir) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	listing, err := h.index.Browse(r.Context(), dir, field, order)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Directory not found", http.StatusNotFound)
			return
		}
		logging.Error("Browse %q failed: %v", rel, err)
		http.Error(w, "Failed to list directory", http.StatusInternalServerError)
		return
	}

	logging.Debug("Browse %q completed in %v: %d dirs, %d files, %d pending",
		rel, time.Since(start), len(listing.Directories), len(listing.Files), listing.Pending)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listing)
}

// Resolve returns the full, up-to-date record for a single file, computing
// hash, duration, and thumbnail inline when the cached record is stale.
func (h *Handlers) Resolve(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]

	fullPath := filepath.Join(h.mediaDir, rel)
	if !isSubPath(h.mediaDir, fullPath) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	rec, err := h.index.Resolve(r.Context(), fullPath)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		logging.Error("Resolve %q failed: %v", rel, err)
		http.Error(w, "Failed to resolve file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rec)
}

// ServeMedia serves a file from the media directory. http.ServeFile handles
// range requests, so video seeking works without any extra plumbing.
func (h *Handlers) ServeMedia(w http.ResponseWriter, r *http.Request) {
	filePath := mux.Vars(r)["path"]

	fullPath := filepath.Join(h.mediaDir, filePath)

	// Security check
	absPath, err := filepath.Abs(fullPath)
	if err != nil || !isSubPath(h.mediaDir, absPath) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	http.ServeFile(w, r, fullPath)
}

// ServeThumbnail serves one content-addressed thumbnail. Names are flat
// hash-derived filenames, so anything with a separator is rejected outright.
func (h *Handlers) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if name == "" || strings.ContainsAny(name, "/\\") {
		http.Error(w, "Invalid thumbnail name", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.thumbDir, name)
	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		http.Error(w, "Thumbnail not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Thumbnail stat %q failed: %v", name, err)
		http.Error(w, "Failed to read thumbnail", http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		http.Error(w, "Invalid thumbnail name", http.StatusBadRequest)
		return
	}

	// Content-addressed names change when content changes, so long caching
	// is safe.
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, fullPath)
}
