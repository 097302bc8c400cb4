package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"media-index/internal/downloads"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/store"

	"github.com/gorilla/mux"
)

// StoreDownload admits content into the download cache under its source
// URL. The request body is the content; callers that fetched it remain
// responsible for what they fetched.
func (h *Handlers) StoreDownload(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}

	entry, err := h.downloads.Store(r.Context(), url, r.Body)
	if err != nil {
		if errors.Is(err, downloads.ErrTooLarge) {
			writeJSONError(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		logging.Error("StoreDownload %s failed: %v", url, err)
		http.Error(w, "Failed to store download", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, entry)
}

// GetDownloadFile serves cached content by source URL and refreshes its
// recency, which is what keeps actively watched files out of the eviction
// path. ServeContent gives us range requests for free.
func (h *Handlers) GetDownloadFile(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}

	f, entry, err := h.downloads.Open(r.Context(), url)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Download not cached", http.StatusNotFound)
			return
		}
		logging.Error("GetDownloadFile %s failed: %v", url, err)
		http.Error(w, "Failed to open download", http.StatusInternalServerError)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logging.Warn("Failed to close download file: %v", closeErr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		logging.Error("GetDownloadFile stat %s failed: %v", url, err)
		http.Error(w, "Failed to read download", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(filepath.Ext(entry.Filename)))
	http.ServeContent(w, r, entry.Filename, info.ModTime(), f)
}

// ServeDownload serves one cached file by its public name. Names are flat
// digest-derived filenames; anything with a separator is rejected, and
// dotfiles are in-flight spools that never leave the cache directory.
func (h *Handlers) ServeDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if name == "" || strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		http.Error(w, "Invalid download name", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.downloads.Dir(), name)
	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		http.Error(w, "Download not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Download stat %q failed: %v", name, err)
		http.Error(w, "Failed to read download", http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		http.Error(w, "Invalid download name", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(filepath.Ext(name)))
	http.ServeFile(w, r, fullPath)
}

// GetDownloadStats reports ledger counts, disk usage, and the configured
// caps.
func (h *Handlers) GetDownloadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.downloads.Stats(r.Context())
	if err != nil {
		logging.Error("GetDownloadStats failed: %v", err)
		http.Error(w, "Failed to get download stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats)
}

// VerifyDownloads reconciles the ledger against the files on disk in both
// directions and reports what it fixed.
func (h *Handlers) VerifyDownloads(w http.ResponseWriter, r *http.Request) {
	result, err := h.downloads.Verify(r.Context())
	if err != nil {
		logging.Error("VerifyDownloads failed: %v", err)
		http.Error(w, "Failed to verify downloads", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// InvalidateDownloads drops one cached download when a url parameter is
// given, otherwise every entry that has not passed verification.
func (h *Handlers) InvalidateDownloads(w http.ResponseWriter, r *http.Request) {
	if url := r.URL.Query().Get("url"); url != "" {
		if err := h.downloads.Invalidate(r.Context(), url); err != nil {
			logging.Error("InvalidateDownloads %s failed: %v", url, err)
			http.Error(w, "Failed to invalidate download", http.StatusInternalServerError)
			return
		}
		writeJSONStatus(w, "ok")
		return
	}

	dropped, err := h.downloads.InvalidateUnverified(r.Context())
	if err != nil {
		logging.Error("InvalidateDownloads failed: %v", err)
		http.Error(w, "Failed to invalidate downloads", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int{"invalidated": dropped})
}

// ClearDownloads empties the download cache, files and ledger both.
func (h *Handlers) ClearDownloads(w http.ResponseWriter, r *http.Request) {
	result, err := h.downloads.Clear(r.Context())
	if err != nil {
		logging.Error("ClearDownloads failed: %v", err)
		http.Error(w, "Failed to clear downloads", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}
