package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"media-index/internal/logging"
	"media-index/internal/store"

	"github.com/gorilla/mux"
)

const defaultHistoryLimit = 20

// HistoryRequest is the wire form of a history event. Type selects the
// variant; the remaining fields are read per type.
type HistoryRequest struct {
	Type     store.HistoryType `json:"type"`
	Path     string            `json:"path,omitempty"`
	ID       string            `json:"id,omitempty"`
	Platform string            `json:"platform,omitempty"`
	Service  string            `json:"service,omitempty"`
	Username string            `json:"username,omitempty"`
	Tags     string            `json:"tags,omitempty"`
	Order    string            `json:"order,omitempty"`
	URL      string            `json:"url,omitempty"`
}

func (req *HistoryRequest) event() (store.HistoryEvent, error) {
	switch req.Type {
	case store.HistoryDirectory:
		if req.Path == "" {
			return nil, fmt.Errorf("path is required for %s history", req.Type)
		}
		return store.DirectoryVisit{Path: req.Path}, nil
	case store.HistoryUser:
		if req.ID == "" {
			return nil, fmt.Errorf("id is required for %s history", req.Type)
		}
		return store.UserVisit{ID: req.ID, Platform: req.Platform, Service: req.Service}, nil
	case store.HistoryRedgifs:
		if req.Username == "" && req.Tags == "" {
			return nil, fmt.Errorf("username or tags is required for %s history", req.Type)
		}
		return store.RedgifsSearch{Username: req.Username, Tags: req.Tags, Order: req.Order}, nil
	case store.HistoryBunkr:
		if req.URL == "" {
			return nil, fmt.Errorf("url is required for %s history", req.Type)
		}
		return store.AlbumVisit{URL: req.URL}, nil
	default:
		return nil, fmt.Errorf("unknown history type %q", req.Type)
	}
}

// RecordHistory upserts one usage event. Repeat events bump the use count
// and recency of the existing row instead of creating a new one.
func (h *Handlers) RecordHistory(w http.ResponseWriter, r *http.Request) {
	var req HistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	event, err := req.event()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.RecordHistory(r.Context(), event); err != nil {
		logging.Error("RecordHistory failed: %v", err)
		http.Error(w, "Failed to record history", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "ok")
}

// GetHistory returns the most recently used entries of one type, optionally
// narrowed by platform and service.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	typ := store.HistoryType(r.URL.Query().Get("type"))
	if typ == "" {
		http.Error(w, "Type is required", http.StatusBadRequest)
		return
	}

	limit := defaultHistoryLimit
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}

	entries, err := h.store.RecentHistory(r.Context(), typ, limit,
		r.URL.Query().Get("platform"), r.URL.Query().Get("service"))
	if err != nil {
		logging.Error("GetHistory %s failed: %v", typ, err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []store.HistoryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entries)
}

// DeleteHistory removes a single entry by ID.
func (h *Handlers) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid history ID", http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteHistory(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "History entry not found", http.StatusNotFound)
			return
		}
		logging.Error("DeleteHistory %d failed: %v", id, err)
		http.Error(w, "Failed to delete history", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "ok")
}

// ClearHistory wipes every entry of the given type, or all types when the
// type parameter is empty.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	typ := store.HistoryType(r.URL.Query().Get("type"))

	removed, err := h.store.ClearHistory(r.Context(), typ)
	if err != nil {
		logging.Error("ClearHistory %s failed: %v", typ, err)
		http.Error(w, "Failed to clear history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int64{"cleared": removed})
}
