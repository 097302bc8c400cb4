package handlers

import (
	"net/http"
	"time"

	"media-index/internal/logging"
)

// StatsResponse is the library statistics summary.
type StatsResponse struct {
	VideoFiles     int   `json:"videoFiles"`
	ImageFiles     int   `json:"imageFiles"`
	OtherFiles     int   `json:"otherFiles"`
	Directories    int   `json:"directories"`
	HistoryEntries int   `json:"historyEntries"`
	Playlists      int   `json:"playlists"`
	PlaylistItems  int   `json:"playlistItems"`
	DownloadFiles  int   `json:"downloadFiles"`
	DownloadBytes  int64 `json:"downloadBytes"`
}

// GetStats returns library statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.store.GetStats()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, StatsResponse{
		VideoFiles:     stats.VideoFiles,
		ImageFiles:     stats.ImageFiles,
		OtherFiles:     stats.OtherFiles,
		Directories:    stats.Directories,
		HistoryEntries: stats.HistoryEntries,
		Playlists:      stats.Playlists,
		PlaylistItems:  stats.PlaylistItems,
		DownloadFiles:  stats.DownloadFiles,
		DownloadBytes:  stats.DownloadBytes,
	})
}

// TriggerSweep runs a sweep now: records whose file vanished are dropped,
// then orphaned thumbnails are removed. Runs synchronously; a library big
// enough to make that painful should lean on the periodic sweep instead.
func (h *Handlers) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	result, err := h.index.Sweep(r.Context())
	if err != nil {
		logging.Error("Sweep failed: %v", err)
		http.Error(w, "Sweep failed", http.StatusInternalServerError)
		return
	}

	logging.Info("Sweep completed in %v: %d records, %d thumbnails removed",
		time.Since(start), result.RecordsRemoved, result.ThumbnailsRemoved)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// PurgeResponseCache drops expired response-cache rows.
func (h *Handlers) PurgeResponseCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.PurgeExpiredResponses(r.Context())
	if err != nil {
		logging.Error("PurgeResponseCache failed: %v", err)
		http.Error(w, "Failed to purge response cache", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int64{"purged": removed})
}

// ClearResponseCache drops every response-cache row, expired or not.
func (h *Handlers) ClearResponseCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.ClearResponses(r.Context())
	if err != nil {
		logging.Error("ClearResponseCache failed: %v", err)
		http.Error(w, "Failed to clear response cache", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int64{"cleared": removed})
}
