package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"media-index/internal/logging"
	"media-index/internal/store"

	"github.com/gorilla/mux"
)

// PlaylistRequest carries playlist create/update fields. Pointers
// distinguish "not sent" from "set to empty" on update.
type PlaylistRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// PlaylistItemRequest carries item add/remove/move fields.
type PlaylistItemRequest struct {
	MediaURL      string `json:"mediaUrl"`
	ThumbnailPath string `json:"thumbnailPath,omitempty"`
	NewIndex      *int   `json:"newIndex,omitempty"`
}

// PlaylistDetail is a playlist together with its ordered items.
type PlaylistDetail struct {
	*store.Playlist
	Items []store.PlaylistItem `json:"items"`
}

func playlistID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ListPlaylists returns all playlists with their item counts.
func (h *Handlers) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.store.ListPlaylists(r.Context())
	if err != nil {
		logging.Error("ListPlaylists failed: %v", err)
		http.Error(w, "Failed to get playlists", http.StatusInternalServerError)
		return
	}

	if playlists == nil {
		playlists = []store.Playlist{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, playlists)
}

// CreatePlaylist creates an empty playlist. A taken name is the caller's
// mistake, not ours, so it comes back as a conflict.
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req PlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == nil || *req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	description := ""
	if req.Description != nil {
		description = *req.Description
	}

	pl, err := h.store.CreatePlaylist(r.Context(), *req.Name, description)
	if err != nil {
		if errors.Is(err, store.ErrNameTaken) {
			writeJSONError(w, "Playlist name already taken", http.StatusConflict)
			return
		}
		logging.Error("CreatePlaylist %q failed: %v", *req.Name, err)
		http.Error(w, "Failed to create playlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, pl)
}

// GetPlaylist returns one playlist and its items in order.
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := playlistID(r)
	if err != nil {
		http.Error(w, "Invalid playlist ID", http.StatusBadRequest)
		return
	}

	pl, err := h.store.GetPlaylist(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Playlist not found", http.StatusNotFound)
			return
		}
		logging.Error("GetPlaylist %d failed: %v", id, err)
		http.Error(w, "Failed to get playlist", http.StatusInternalServerError)
		return
	}

	items, err := h.store.ListPlaylistItems(r.Context(), id)
	if err != nil {
		logging.Error("ListPlaylistItems %d failed: %v", id, err)
		http.Error(w, "Failed to get playlist items", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []store.PlaylistItem{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, PlaylistDetail{Playlist: pl, Items: items})
}

// UpdatePlaylist renames or re-describes a playlist. Omitted fields stay
// unchanged.
func (h *Handlers) UpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := playlistID(r)
	if err != nil {
		http.Error(w, "Invalid playlist ID", http.StatusBadRequest)
		return
	}

	var req PlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == nil && req.Description == nil {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}
	if req.Name != nil && *req.Name == "" {
		http.Error(w, "Name cannot be empty", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdatePlaylist(r.Context(), id, req.Name, req.Description); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "Playlist not found", http.StatusNotFound)
		case errors.Is(err, store.ErrNameTaken):
			writeJSONError(w, "Playlist name already taken", http.StatusConflict)
		default:
			logging.Error("UpdatePlaylist %d failed: %v", id, err)
			http.Error(w, "Failed to update playlist", http.StatusInternalServerError)
		}
		return
	}

	writeJSONStatus(w, "ok")
}

// DeletePlaylist removes a playlist; its items go with it via the ownership
// cascade.
func (h *Handlers) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := playlistID(r)
	if err != nil {
		http.Error(w, "Invalid playlist ID", http.StatusBadRequest)
		return
	}

	if err := h.store.DeletePlaylist(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Playlist not found", http.StatusNotFound)
			return
		}
		logging.Error("DeletePlaylist %d failed: %v", id, err)
		http.Error(w, "Failed to delete playlist", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "ok")
}

// AddPlaylistItem appends a media URL to the playlist. Adding a URL that is
// already present returns the existing item unchanged.
func (h *Handlers) AddPlaylistItem(w http.ResponseWriter, r *http.Request) {
	id, err := playlistID(r)
	if err != nil {
		http.Error(w, "Invalid playlist ID", http.StatusBadRequest)
		return
	}

	var req PlaylistItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MediaURL == "" {
		http.Error(w, "Media URL is required", http.StatusBadRequest)
		return
	}

	item, err := h.store.AddPlaylistItem(r.Context(), id, req.MediaURL, req.ThumbnailPath)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Playlist not found", http.StatusNotFound)
			return
		}
		logging.Error("AddPlaylistItem %d failed: %v", id, err)
		http.Error(w, "Failed to add playlist item", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, item)
}

// RemovePlaylistItem removes a media URL from the playlist and closes the
// ordering gap it leaves.
func (h *Handlers) RemovePlaylistItem(w http.ResponseWriter, r *http.Request) {
	id, err := playlistID(r)
	if err != nil {
		http.Error(w, "Invalid playlist ID", http.StatusBadRequest)
		return
	}

	var req PlaylistItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MediaURL == "" {
		http.Error(w, "Media URL is required", http.StatusBadRequest)
		return
	}

	if err := h.store.RemovePlaylistItem(r.Context(), id, req.MediaURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Playlist item not found", http.StatusNotFound)
			return
		}
		logging.Error("RemovePlaylistItem %d failed: %v", id, err)
		http.Error(w, "Failed to remove playlist item", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "ok")
}

// MovePlaylistItem moves a media URL to a new position, shifting the items
// in between.
func (h *Handlers) MovePlaylistItem(w http.ResponseWriter, r *http.Request) {
	id, err := playlistID(r)
	if err != nil {
		http.Error(w, "Invalid playlist ID", http.StatusBadRequest)
		return
	}

	var req PlaylistItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MediaURL == "" {
		http.Error(w, "Media URL is required", http.StatusBadRequest)
		return
	}
	if req.NewIndex == nil || *req.NewIndex < 0 {
		http.Error(w, "New index is required", http.StatusBadRequest)
		return
	}

	if err := h.store.MovePlaylistItem(r.Context(), id, req.MediaURL, *req.NewIndex); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Playlist item not found", http.StatusNotFound)
			return
		}
		logging.Error("MovePlaylistItem %d failed: %v", id, err)
		http.Error(w, "Failed to move playlist item", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "ok")
}
