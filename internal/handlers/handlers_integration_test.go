package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-index/internal/downloads"
	"media-index/internal/index"
	"media-index/internal/startup"
	"media-index/internal/store"
	"media-index/internal/thumbs"

	"github.com/gorilla/mux"
)

const stubStreamHash = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

// stubTool satisfies the media tool interface without shelling out.
type stubTool struct{}

func (stubTool) ComputeStreamHash(_ context.Context, _ string) (string, error) {
	return stubStreamHash, nil
}

func (stubTool) ProbeDuration(_ context.Context, _ string) (float64, error) {
	return 7.5, nil
}

func (stubTool) ExtractFrame(_ context.Context, _ string, _ float64) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setupTestHandlers creates a handler set backed by a real store, index, and
// download manager in a temp directory. The download caps are tiny so cache
// limit paths are cheap to exercise.
func setupTestHandlers(t *testing.T) (h *Handlers, cleanup func()) {
	t.Helper()

	tmpDir := t.TempDir()
	mediaDir := filepath.Join(tmpDir, "media")
	cacheDir := filepath.Join(tmpDir, "cache")
	thumbDir := filepath.Join(cacheDir, "thumbnails")
	downloadDir := filepath.Join(cacheDir, "downloads")

	for _, dir := range []string{mediaDir, thumbDir, downloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	st, err := store.New(context.Background(), filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	gen := thumbs.New(thumbDir, stubTool{})
	ix := index.New(st, stubTool{}, gen, nil, index.Config{
		Workers:   2,
		QueueSize: 32,
		CacheSize: 128,
		CacheTTL:  time.Minute,
	})
	ix.Start()

	dl, err := downloads.New(downloadDir, st, downloads.Config{
		MaxCacheBytes: 1 << 20,
		MaxFileBytes:  2048,
	})
	if err != nil {
		t.Fatalf("Failed to create download manager: %v", err)
	}

	config := &startup.Config{
		MediaDir:     mediaDir,
		CacheDir:     cacheDir,
		ThumbnailDir: thumbDir,
		DownloadDir:  downloadDir,
	}

	h = New(st, ix, dl, config)

	cleanup = func() {
		ix.Stop()
		if err := st.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	}

	return h, cleanup
}

func writeMediaFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

// =============================================================================
// Browse and Resolve
// =============================================================================

func TestBrowseEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	writeMediaFile(t, h.mediaDir, "beach.mp4", "video-bytes")
	writeMediaFile(t, h.mediaDir, "alps.jpg", "img")
	if err := os.MkdirAll(filepath.Join(h.mediaDir, "trips"), 0o755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/browse?path=", http.NoBody)
	w := httptest.NewRecorder()
	h.Browse(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %q", ct)
	}

	var listing index.Listing
	if err := json.NewDecoder(w.Body).Decode(&listing); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}

	if len(listing.Files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(listing.Files))
	}
	// Default sort is name ascending
	if listing.Files[0].Filename != "alps.jpg" || listing.Files[1].Filename != "beach.mp4" {
		t.Errorf("Unexpected order: %s, %s", listing.Files[0].Filename, listing.Files[1].Filename)
	}
	if listing.Pending != 2 {
		t.Errorf("Expected 2 pending placeholders on first scan, got %d", listing.Pending)
	}
	if len(listing.Directories) != 1 || listing.Directories[0] != "trips" {
		t.Errorf("Expected directories [trips], got %v", listing.Directories)
	}
}

func TestBrowseSortParameters(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	writeMediaFile(t, h.mediaDir, "small.mp4", "x")
	writeMediaFile(t, h.mediaDir, "large.mp4", strings.Repeat("x", 64))

	req := httptest.NewRequest(http.MethodGet, "/api/browse?path=&sort=size&order=desc", http.NoBody)
	w := httptest.NewRecorder()
	h.Browse(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var listing index.Listing
	if err := json.NewDecoder(w.Body).Decode(&listing); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	if len(listing.Files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(listing.Files))
	}
	if listing.Files[0].Filename != "large.mp4" {
		t.Errorf("Expected size-descending order, got %s first", listing.Files[0].Filename)
	}
}

func TestBrowseRejectsTraversal(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/browse?path=../outside", http.NoBody)
	w := httptest.NewRecorder()
	h.Browse(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestBrowseMissingDirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/browse?path=nope", http.NoBody)
	w := httptest.NewRecorder()
	h.Browse(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestResolveEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	writeMediaFile(t, h.mediaDir, "clip.mp4", "video-bytes")

	req := httptest.NewRequest(http.MethodGet, "/api/resolve/clip.mp4", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"path": "clip.mp4"})
	w := httptest.NewRecorder()
	h.Resolve(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var rec store.FileRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("Failed to decode record: %v", err)
	}

	if rec.Hash != stubStreamHash {
		t.Errorf("Expected stream hash, got %q", rec.Hash)
	}
	if rec.Duration == nil || *rec.Duration != 7.5 {
		t.Errorf("Expected duration 7.5, got %v", rec.Duration)
	}
	if rec.Kind != "video" {
		t.Errorf("Expected kind video, got %q", rec.Kind)
	}
	if rec.ThumbnailPath != "/thumbnails/"+stubStreamHash+".jpg" {
		t.Errorf("Unexpected thumbnail path %q", rec.ThumbnailPath)
	}
}

func TestResolveNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/resolve/nope.mp4", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"path": "nope.mp4"})
	w := httptest.NewRecorder()
	h.Resolve(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/resolve/x", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"path": "../../etc/passwd"})
	w := httptest.NewRecorder()
	h.Resolve(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

// =============================================================================
// File serving
// =============================================================================

func TestServeMediaEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	content := "0123456789abcdef"
	writeMediaFile(t, h.mediaDir, "clip.mp4", content)

	req := httptest.NewRequest(http.MethodGet, "/media/clip.mp4", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"path": "clip.mp4"})
	w := httptest.NewRecorder()
	h.ServeMedia(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != content {
		t.Errorf("Body mismatch: got %q", w.Body.String())
	}
}

func TestServeMediaRangeRequest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	content := "0123456789abcdef"
	writeMediaFile(t, h.mediaDir, "clip.mp4", content)

	req := httptest.NewRequest(http.MethodGet, "/media/clip.mp4", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"path": "clip.mp4"})
	req.Header.Set("Range", "bytes=0-4")
	w := httptest.NewRecorder()
	h.ServeMedia(w, req)

	if w.Code != http.StatusPartialContent {
		t.Fatalf("Expected status 206, got %d", w.Code)
	}
	if w.Body.String() != "01234" {
		t.Errorf("Expected first 5 bytes, got %q", w.Body.String())
	}
	if cr := w.Header().Get("Content-Range"); cr != fmt.Sprintf("bytes 0-4/%d", len(content)) {
		t.Errorf("Unexpected Content-Range %q", cr)
	}
}

func TestServeMediaRejectsTraversal(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/media/x", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"path": "../../../etc/passwd"})
	w := httptest.NewRecorder()
	h.ServeMedia(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServeThumbnailEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	thumbPath := filepath.Join(h.thumbDir, "cafe01.jpg")
	if err := os.WriteFile(thumbPath, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("Failed to write thumbnail: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/thumbnails/cafe01.jpg", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"name": "cafe01.jpg"})
	w := httptest.NewRecorder()
	h.ServeThumbnail(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("Expected long-lived Cache-Control, got %q", cc)
	}
	if w.Body.String() != "jpeg-bytes" {
		t.Errorf("Body mismatch: got %q", w.Body.String())
	}
}

func TestServeThumbnailNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/thumbnails/missing.jpg", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"name": "missing.jpg"})
	w := httptest.NewRecorder()
	h.ServeThumbnail(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServeThumbnailRejectsSeparators(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/thumbnails/x", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"name": "../cafe01.jpg"})
	w := httptest.NewRecorder()
	h.ServeThumbnail(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

// =============================================================================
// History
// =============================================================================

func TestHistoryEndpointFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	// Record the same directory twice and one user visit
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/history",
			jsonBody(t, HistoryRequest{Type: store.HistoryDirectory, Path: "/videos"}))
		w := httptest.NewRecorder()
		h.RecordHistory(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("RecordHistory attempt %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/history",
		jsonBody(t, HistoryRequest{Type: store.HistoryUser, ID: "alice", Platform: "kemono", Service: "patreon"}))
	w := httptest.NewRecorder()
	h.RecordHistory(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("RecordHistory user: expected 200, got %d", w.Code)
	}

	// Repeat directory visits collapse into one row with a bumped count
	req = httptest.NewRequest(http.MethodGet, "/api/history?type=directory", http.NoBody)
	w = httptest.NewRecorder()
	h.GetHistory(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GetHistory: expected 200, got %d", w.Code)
	}

	var entries []store.HistoryEntry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 directory entry, got %d", len(entries))
	}
	if entries[0].Value != "/videos" || entries[0].UseCount != 2 {
		t.Errorf("Unexpected entry: value=%q count=%d", entries[0].Value, entries[0].UseCount)
	}

	// Platform filter
	req = httptest.NewRequest(http.MethodGet, "/api/history?type=user&platform=kemono", http.NoBody)
	w = httptest.NewRecorder()
	h.GetHistory(w, req)
	var users []store.HistoryEntry
	if err := json.NewDecoder(w.Body).Decode(&users); err != nil {
		t.Fatalf("Failed to decode user history: %v", err)
	}
	if len(users) != 1 || users[0].Value != "alice" {
		t.Fatalf("Expected alice via platform filter, got %v", users)
	}

	// Delete the directory entry by ID
	req = httptest.NewRequest(http.MethodDelete, "/api/history/1", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprintf("%d", entries[0].ID)})
	w = httptest.NewRecorder()
	h.DeleteHistory(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("DeleteHistory: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/history?type=directory", http.NoBody)
	w = httptest.NewRecorder()
	h.GetHistory(w, req)
	var after []store.HistoryEntry
	if err := json.NewDecoder(w.Body).Decode(&after); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(after) != 0 {
		t.Errorf("Expected empty directory history after delete, got %d", len(after))
	}

	// Clear the remaining user history
	req = httptest.NewRequest(http.MethodDelete, "/api/history?type=user", http.NoBody)
	w = httptest.NewRecorder()
	h.ClearHistory(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("ClearHistory: expected 200, got %d", w.Code)
	}
	var cleared map[string]int64
	if err := json.NewDecoder(w.Body).Decode(&cleared); err != nil {
		t.Fatalf("Failed to decode clear result: %v", err)
	}
	if cleared["cleared"] != 1 {
		t.Errorf("Expected 1 cleared, got %d", cleared["cleared"])
	}
}

func TestHistoryTagsSearchKey(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/history",
		jsonBody(t, HistoryRequest{Type: store.HistoryRedgifs, Tags: "sunset", Order: "top"}))
	w := httptest.NewRecorder()
	h.RecordHistory(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("RecordHistory: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/history?type=redgifs", http.NoBody)
	w = httptest.NewRecorder()
	h.GetHistory(w, req)

	var entries []store.HistoryEntry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	// Tags searches key on a tags: prefix with the sort order in the
	// platform column
	if entries[0].Value != "tags:sunset" || entries[0].Platform != "top" {
		t.Errorf("Unexpected mapping: value=%q platform=%q", entries[0].Value, entries[0].Platform)
	}
}

func TestHistoryValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	tests := []struct {
		name string
		body string
	}{
		{"Unknown type", `{"type":"telepathy","path":"/x"}`},
		{"Directory without path", `{"type":"directory"}`},
		{"User without id", `{"type":"user","platform":"kemono"}`},
		{"Redgifs without username or tags", `{"type":"redgifs","order":"top"}`},
		{"Bunkr without url", `{"type":"bunkr"}`},
		{"Malformed JSON", `{"type":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/history", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.RecordHistory(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}

	// Missing type on the list side
	req := httptest.NewRequest(http.MethodGet, "/api/history", http.NoBody)
	w := httptest.NewRecorder()
	h.GetHistory(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for missing type, got %d", w.Code)
	}

	// Bad delete ID
	req = httptest.NewRequest(http.MethodDelete, "/api/history/abc", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"id": "abc"})
	w = httptest.NewRecorder()
	h.DeleteHistory(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad ID, got %d", w.Code)
	}

	// Unknown delete ID
	req = httptest.NewRequest(http.MethodDelete, "/api/history/999", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"id": "999"})
	w = httptest.NewRecorder()
	h.DeleteHistory(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown ID, got %d", w.Code)
	}
}

// =============================================================================
// Playlists
// =============================================================================

func TestPlaylistEndpointFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	name := "road trip"
	desc := "long drives"

	// Create
	req := httptest.NewRequest(http.MethodPost, "/api/playlists",
		jsonBody(t, PlaylistRequest{Name: &name, Description: &desc}))
	w := httptest.NewRecorder()
	h.CreatePlaylist(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("CreatePlaylist: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var pl store.Playlist
	if err := json.NewDecoder(w.Body).Decode(&pl); err != nil {
		t.Fatalf("Failed to decode playlist: %v", err)
	}
	if pl.ID == 0 || pl.Name != name {
		t.Fatalf("Unexpected playlist: %+v", pl)
	}
	idVar := map[string]string{"id": fmt.Sprintf("%d", pl.ID)}

	// Duplicate name conflicts
	req = httptest.NewRequest(http.MethodPost, "/api/playlists",
		jsonBody(t, PlaylistRequest{Name: &name}))
	w = httptest.NewRecorder()
	h.CreatePlaylist(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Duplicate create: expected 409, got %d", w.Code)
	}

	// Add three items
	urls := []string{"https://v.example.com/1.mp4", "https://v.example.com/2.mp4", "https://v.example.com/3.mp4"}
	for i, u := range urls {
		req = httptest.NewRequest(http.MethodPost, "/api/playlist/1/items",
			jsonBody(t, PlaylistItemRequest{MediaURL: u}))
		req = mux.SetURLVars(req, idVar)
		w = httptest.NewRecorder()
		h.AddPlaylistItem(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("AddPlaylistItem %d: expected 200, got %d", i, w.Code)
		}
		var item store.PlaylistItem
		if err := json.NewDecoder(w.Body).Decode(&item); err != nil {
			t.Fatalf("Failed to decode item: %v", err)
		}
		if item.OrderIndex != i {
			t.Errorf("Expected order index %d, got %d", i, item.OrderIndex)
		}
	}

	// Re-adding an existing URL is a no-op returning the original position
	req = httptest.NewRequest(http.MethodPost, "/api/playlist/1/items",
		jsonBody(t, PlaylistItemRequest{MediaURL: urls[0]}))
	req = mux.SetURLVars(req, idVar)
	w = httptest.NewRecorder()
	h.AddPlaylistItem(w, req)
	var dup store.PlaylistItem
	if err := json.NewDecoder(w.Body).Decode(&dup); err != nil {
		t.Fatalf("Failed to decode duplicate item: %v", err)
	}
	if dup.OrderIndex != 0 {
		t.Errorf("Expected idempotent add to keep index 0, got %d", dup.OrderIndex)
	}

	// Move the last item to the front
	newIndex := 0
	req = httptest.NewRequest(http.MethodPut, "/api/playlist/1/items",
		jsonBody(t, PlaylistItemRequest{MediaURL: urls[2], NewIndex: &newIndex}))
	req = mux.SetURLVars(req, idVar)
	w = httptest.NewRecorder()
	h.MovePlaylistItem(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("MovePlaylistItem: expected 200, got %d", w.Code)
	}

	// Remove the original first item
	req = httptest.NewRequest(http.MethodDelete, "/api/playlist/1/items",
		jsonBody(t, PlaylistItemRequest{MediaURL: urls[0]}))
	req = mux.SetURLVars(req, idVar)
	w = httptest.NewRecorder()
	h.RemovePlaylistItem(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("RemovePlaylistItem: expected 200, got %d", w.Code)
	}

	// Detail view reflects the final order with contiguous indexes
	req = httptest.NewRequest(http.MethodGet, "/api/playlist/1", http.NoBody)
	req = mux.SetURLVars(req, idVar)
	w = httptest.NewRecorder()
	h.GetPlaylist(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GetPlaylist: expected 200, got %d", w.Code)
	}
	var detail PlaylistDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("Failed to decode detail: %v", err)
	}
	if detail.ItemCount != 2 || len(detail.Items) != 2 {
		t.Fatalf("Expected 2 items, got count=%d len=%d", detail.ItemCount, len(detail.Items))
	}
	wantOrder := []string{urls[2], urls[1]}
	for i, item := range detail.Items {
		if item.MediaURL != wantOrder[i] || item.OrderIndex != i {
			t.Errorf("Item %d: got url=%q index=%d", i, item.MediaURL, item.OrderIndex)
		}
	}

	// Rename keeps the description
	newName := "coast trip"
	req = httptest.NewRequest(http.MethodPut, "/api/playlist/1",
		jsonBody(t, PlaylistRequest{Name: &newName}))
	req = mux.SetURLVars(req, idVar)
	w = httptest.NewRecorder()
	h.UpdatePlaylist(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("UpdatePlaylist: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/playlist/1", http.NoBody)
	req = mux.SetURLVars(req, idVar)
	w = httptest.NewRecorder()
	h.GetPlaylist(w, req)
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("Failed to decode detail: %v", err)
	}
	if detail.Name != newName || detail.Description != desc {
		t.Errorf("Expected rename to keep description: name=%q desc=%q", detail.Name, detail.Description)
	}

	// Delete, then the playlist is gone
	req = httptest.NewRequest(http.MethodDelete, "/api/playlist/1", http.NoBody)
	req = mux.SetURLVars(req, idVar)
	w = httptest.NewRecorder()
	h.DeletePlaylist(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("DeletePlaylist: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/playlist/1", http.NoBody)
	req = mux.SetURLVars(req, idVar)
	w = httptest.NewRecorder()
	h.GetPlaylist(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}

	// Empty list marshals as [] rather than null
	req = httptest.NewRequest(http.MethodGet, "/api/playlists", http.NoBody)
	w = httptest.NewRecorder()
	h.ListPlaylists(w, req)
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("Expected [], got %q", body)
	}
}

func TestPlaylistValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	// Create without a name
	req := httptest.NewRequest(http.MethodPost, "/api/playlists", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.CreatePlaylist(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Nameless create: expected 400, got %d", w.Code)
	}

	// Non-numeric ID
	req = httptest.NewRequest(http.MethodGet, "/api/playlist/abc", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"id": "abc"})
	w = httptest.NewRecorder()
	h.GetPlaylist(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Bad ID: expected 400, got %d", w.Code)
	}

	// Unknown playlist
	unknown := map[string]string{"id": "999"}
	req = httptest.NewRequest(http.MethodGet, "/api/playlist/999", http.NoBody)
	req = mux.SetURLVars(req, unknown)
	w = httptest.NewRecorder()
	h.GetPlaylist(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Unknown get: expected 404, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/playlist/999/items",
		jsonBody(t, PlaylistItemRequest{MediaURL: "https://v/1.mp4"}))
	req = mux.SetURLVars(req, unknown)
	w = httptest.NewRecorder()
	h.AddPlaylistItem(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Unknown add: expected 404, got %d", w.Code)
	}

	// Item requests need a URL
	req = httptest.NewRequest(http.MethodPost, "/api/playlist/999/items", strings.NewReader(`{}`))
	req = mux.SetURLVars(req, unknown)
	w = httptest.NewRecorder()
	h.AddPlaylistItem(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("URL-less add: expected 400, got %d", w.Code)
	}

	// Move needs an index
	req = httptest.NewRequest(http.MethodPut, "/api/playlist/999/items",
		jsonBody(t, PlaylistItemRequest{MediaURL: "https://v/1.mp4"}))
	req = mux.SetURLVars(req, unknown)
	w = httptest.NewRecorder()
	h.MovePlaylistItem(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Index-less move: expected 400, got %d", w.Code)
	}

	// Update with nothing to change
	req = httptest.NewRequest(http.MethodPut, "/api/playlist/999", strings.NewReader(`{}`))
	req = mux.SetURLVars(req, unknown)
	w = httptest.NewRecorder()
	h.UpdatePlaylist(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Empty update: expected 400, got %d", w.Code)
	}
}

// =============================================================================
// Downloads
// =============================================================================

func TestDownloadEndpointFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	srcURL := "https://cdn.example.com/v/clip.mp4"
	content := "cached-video-bytes"

	// Admit
	req := httptest.NewRequest(http.MethodPost, "/api/downloads?url="+srcURL, strings.NewReader(content))
	w := httptest.NewRecorder()
	h.StoreDownload(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("StoreDownload: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var entry store.DownloadEntry
	if err := json.NewDecoder(w.Body).Decode(&entry); err != nil {
		t.Fatalf("Failed to decode entry: %v", err)
	}
	if entry.Filename != downloads.CacheFilename(srcURL) {
		t.Errorf("Unexpected filename %q", entry.Filename)
	}
	if entry.SizeBytes != int64(len(content)) {
		t.Errorf("Expected size %d, got %d", len(content), entry.SizeBytes)
	}

	// Serve back
	req = httptest.NewRequest(http.MethodGet, "/api/downloads/file?url="+srcURL, http.NoBody)
	w = httptest.NewRecorder()
	h.GetDownloadFile(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GetDownloadFile: expected 200, got %d", w.Code)
	}
	if w.Body.String() != content {
		t.Errorf("Body mismatch: got %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Expected video/mp4, got %q", ct)
	}

	// Stats before verification
	req = httptest.NewRequest(http.MethodGet, "/api/downloads/stats", http.NoBody)
	w = httptest.NewRecorder()
	h.GetDownloadStats(w, req)
	var stats downloads.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Files != 1 || stats.UnverifiedFiles != 1 {
		t.Errorf("Expected 1 unverified file, got %+v", stats)
	}

	// Verify marks it good
	req = httptest.NewRequest(http.MethodPost, "/api/downloads/verify", http.NoBody)
	w = httptest.NewRecorder()
	h.VerifyDownloads(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("VerifyDownloads: expected 200, got %d", w.Code)
	}
	var verify downloads.VerifyResult
	if err := json.NewDecoder(w.Body).Decode(&verify); err != nil {
		t.Fatalf("Failed to decode verify result: %v", err)
	}
	if verify.Verified != 1 {
		t.Errorf("Expected 1 verified, got %+v", verify)
	}

	// Nothing unverified left to invalidate
	req = httptest.NewRequest(http.MethodPost, "/api/downloads/invalidate", http.NoBody)
	w = httptest.NewRecorder()
	h.InvalidateDownloads(w, req)
	var inv map[string]int
	if err := json.NewDecoder(w.Body).Decode(&inv); err != nil {
		t.Fatalf("Failed to decode invalidate result: %v", err)
	}
	if inv["invalidated"] != 0 {
		t.Errorf("Expected 0 invalidated, got %d", inv["invalidated"])
	}

	// Targeted invalidation drops the entry
	req = httptest.NewRequest(http.MethodPost, "/api/downloads/invalidate?url="+srcURL, http.NoBody)
	w = httptest.NewRecorder()
	h.InvalidateDownloads(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Targeted invalidate: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/downloads/file?url="+srcURL, http.NoBody)
	w = httptest.NewRecorder()
	h.GetDownloadFile(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after invalidation, got %d", w.Code)
	}
}

func TestServeDownloadEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	srcURL := "https://cdn.example.com/v/clip.mp4"
	content := "cached-video-bytes"
	if _, err := h.downloads.Store(context.Background(), srcURL, strings.NewReader(content)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	name := downloads.CacheFilename(srcURL)

	req := httptest.NewRequest(http.MethodGet, "/downloads/"+name, http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"name": name})
	w := httptest.NewRecorder()
	h.ServeDownload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != content {
		t.Errorf("Body mismatch: got %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Expected video/mp4, got %q", ct)
	}

	// Spool files and traversal names never leave the cache directory
	for _, bad := range []string{".spool-123", "../" + name, ""} {
		req = httptest.NewRequest(http.MethodGet, "/downloads/x", http.NoBody)
		req = mux.SetURLVars(req, map[string]string{"name": bad})
		w = httptest.NewRecorder()
		h.ServeDownload(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Name %q: expected 400, got %d", bad, w.Code)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/downloads/0000.mp4", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"name": "0000.mp4"})
	w = httptest.NewRecorder()
	h.ServeDownload(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown name, got %d", w.Code)
	}
}

func TestClearDownloadsEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		url := fmt.Sprintf("https://cdn.example.com/v/%d.mp4", i)
		req := httptest.NewRequest(http.MethodPost, "/api/downloads?url="+url, strings.NewReader("xxxx"))
		w := httptest.NewRecorder()
		h.StoreDownload(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("StoreDownload %d: expected 201, got %d", i, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/downloads/clear", http.NoBody)
	w := httptest.NewRecorder()
	h.ClearDownloads(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("ClearDownloads: expected 200, got %d", w.Code)
	}
	var result downloads.ClearResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode clear result: %v", err)
	}
	if result.FilesDeleted != 3 || result.RowsCleared != 3 {
		t.Errorf("Expected 3 files and rows cleared, got %+v", result)
	}
}

func TestStoreDownloadValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	// Missing URL
	req := httptest.NewRequest(http.MethodPost, "/api/downloads", strings.NewReader("data"))
	w := httptest.NewRecorder()
	h.StoreDownload(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without url, got %d", w.Code)
	}

	// Oversized content (cap is 2048 in the test config)
	req = httptest.NewRequest(http.MethodPost, "/api/downloads?url=https://cdn.example.com/big.mp4",
		strings.NewReader(strings.Repeat("x", 4096)))
	w = httptest.NewRecorder()
	h.StoreDownload(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413 for oversized content, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if !strings.Contains(body["error"], "exceeds") {
		t.Errorf("Expected size limit error, got %q", body["error"])
	}
}

// =============================================================================
// Sweep, stats, response cache
// =============================================================================

func TestSweepEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	path := writeMediaFile(t, h.mediaDir, "doomed.mp4", "video-bytes")

	req := httptest.NewRequest(http.MethodGet, "/api/resolve/doomed.mp4", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"path": "doomed.mp4"})
	w := httptest.NewRecorder()
	h.Resolve(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Resolve: expected 200, got %d", w.Code)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove media file: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/sweep", http.NoBody)
	w = httptest.NewRecorder()
	h.TriggerSweep(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("TriggerSweep: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result index.SweepResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode sweep result: %v", err)
	}
	if result.RecordsRemoved != 1 {
		t.Errorf("Expected 1 record removed, got %d", result.RecordsRemoved)
	}
	if result.ThumbnailsRemoved != 1 {
		t.Errorf("Expected 1 orphaned thumbnail removed, got %d", result.ThumbnailsRemoved)
	}
}

func TestStatsEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	writeMediaFile(t, h.mediaDir, "clip.mp4", "video-bytes")
	writeMediaFile(t, h.mediaDir, "pic.jpg", "image-bytes")
	for _, name := range []string{"clip.mp4", "pic.jpg"} {
		req := httptest.NewRequest(http.MethodGet, "/api/resolve/"+name, http.NoBody)
		req = mux.SetURLVars(req, map[string]string{"path": name})
		w := httptest.NewRecorder()
		h.Resolve(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Resolve %s: expected 200, got %d", name, w.Code)
		}
	}

	if err := h.store.RecordHistory(context.Background(), store.DirectoryVisit{Path: "/videos"}); err != nil {
		t.Fatalf("RecordHistory failed: %v", err)
	}
	pl, err := h.store.CreatePlaylist(context.Background(), "stats", "")
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}
	if _, err := h.store.AddPlaylistItem(context.Background(), pl.ID, "https://v/1.mp4", ""); err != nil {
		t.Fatalf("AddPlaylistItem failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", http.NoBody)
	w := httptest.NewRecorder()
	h.GetStats(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GetStats: expected 200, got %d", w.Code)
	}

	var stats StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.VideoFiles != 1 || stats.ImageFiles != 1 {
		t.Errorf("Expected 1 video and 1 image, got %+v", stats)
	}
	if stats.Directories != 1 {
		t.Errorf("Expected 1 directory, got %d", stats.Directories)
	}
	if stats.HistoryEntries != 1 || stats.Playlists != 1 || stats.PlaylistItems != 1 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
}

func TestResponseCacheEndpoints(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	ctx := context.Background()
	if err := h.store.SetResponse(ctx, "trending:day", []byte(`{"items":[]}`), time.Millisecond); err != nil {
		t.Fatalf("SetResponse failed: %v", err)
	}
	if err := h.store.SetResponse(ctx, "user:alice", []byte(`{"posts":[]}`), time.Minute); err != nil {
		t.Fatalf("SetResponse failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/api/cache/purge", http.NoBody)
	w := httptest.NewRecorder()
	h.PurgeResponseCache(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("PurgeResponseCache: expected 200, got %d", w.Code)
	}
	var purge map[string]int64
	if err := json.NewDecoder(w.Body).Decode(&purge); err != nil {
		t.Fatalf("Failed to decode purge result: %v", err)
	}
	if purge["purged"] != 1 {
		t.Errorf("Expected 1 purged, got %d", purge["purged"])
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/cache", http.NoBody)
	w = httptest.NewRecorder()
	h.ClearResponseCache(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("ClearResponseCache: expected 200, got %d", w.Code)
	}
	var clear map[string]int64
	if err := json.NewDecoder(w.Body).Decode(&clear); err != nil {
		t.Fatalf("Failed to decode clear result: %v", err)
	}
	if clear["cleared"] != 1 {
		t.Errorf("Expected 1 cleared, got %d", clear["cleared"])
	}
}

// =============================================================================
// Health and version
// =============================================================================

func TestHealthCheckEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	w := httptest.NewRecorder()
	h.HealthCheck(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var health HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if health.Status != statusHealthy || !health.Ready {
		t.Errorf("Expected healthy and ready, got %+v", health)
	}
	if health.Version == "" || health.GoVersion == "" || health.NumCPU == 0 {
		t.Errorf("Expected populated system info, got %+v", health)
	}
}

func TestHealthCheckDegraded(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	// Closing the database makes the only hard dependency unreachable
	if err := h.store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	w := httptest.NewRecorder()
	h.HealthCheck(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}

	var health HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if health.Status != statusDegraded || health.Ready {
		t.Errorf("Expected degraded and not ready, got %+v", health)
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	w = httptest.NewRecorder()
	h.ReadinessCheck(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected readiness 503, got %d", w.Code)
	}
}

func TestLivenessCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/livez", http.NoBody)
	w := httptest.NewRecorder()
	h.LivenessCheck(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "alive") {
		t.Errorf("Expected alive body, got %q", w.Body.String())
	}

	// HEAD requests get headers only
	req = httptest.NewRequest(http.MethodHead, "/livez", http.NoBody)
	w = httptest.NewRecorder()
	h.LivenessCheck(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected empty HEAD body, got %q", w.Body.String())
	}
}

func TestVersionEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h, cleanup := setupTestHandlers(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/version", http.NoBody)
	w := httptest.NewRecorder()
	h.GetVersion(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Expected no-cache, got %q", cc)
	}

	var info startup.BuildInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode build info: %v", err)
	}
	if info.Version != "dev" {
		t.Errorf("Expected dev version, got %q", info.Version)
	}
	if info.OS == "" || info.Arch == "" {
		t.Errorf("Expected populated OS/Arch, got %+v", info)
	}
}
