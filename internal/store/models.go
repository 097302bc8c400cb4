package store

import (
	"errors"
	"time"
)

// Sentinel errors surfaced to callers. Compare with errors.Is.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNameTaken indicates a playlist name collision on create or rename.
	ErrNameTaken = errors.New("playlist name already taken")
)

// FileRecord is one row per indexed media file. Path is the identity key;
// Hash stays empty while a background worker is still computing it.
type FileRecord struct {
	ID            int64     `json:"id"`
	Path          string    `json:"path"`
	Hash          string    `json:"hash,omitempty"`
	Size          int64     `json:"size"`
	MTimeNanos    int64     `json:"mtime"`
	Duration      *float64  `json:"duration,omitempty"`
	Directory     string    `json:"directory"`
	Filename      string    `json:"filename"`
	Kind          string    `json:"kind"`
	ThumbnailPath string    `json:"thumbnailPath,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ModTime returns the record's modification time.
func (f *FileRecord) ModTime() time.Time {
	return time.Unix(0, f.MTimeNanos)
}

// HistoryType discriminates history rows.
type HistoryType string

const (
	HistoryDirectory HistoryType = "directory"
	HistoryUser      HistoryType = "user"
	HistoryRedgifs   HistoryType = "redgifs"
	HistoryBunkr     HistoryType = "bunkr"
)

// HistoryEntry is one row per distinct (type, value, platform, service).
// LastUsed and UseCount are maintained by upsert.
type HistoryEntry struct {
	ID       int64       `json:"id"`
	Type     HistoryType `json:"type"`
	Value    string      `json:"value"`
	Platform string      `json:"platform,omitempty"`
	Service  string      `json:"service,omitempty"`
	LastUsed time.Time   `json:"lastUsed"`
	UseCount int64       `json:"useCount"`
}

// HistoryEvent is implemented by the typed visit events. Each variant maps
// to the (type, value, platform, service) columns in exactly one place.
type HistoryEvent interface {
	historyRow() (typ HistoryType, value, platform, service string)
}

// DirectoryVisit records browsing into a local media directory.
type DirectoryVisit struct {
	Path string
}

func (v DirectoryVisit) historyRow() (HistoryType, string, string, string) {
	return HistoryDirectory, v.Path, "", ""
}

// UserVisit records viewing a remote user's feed.
type UserVisit struct {
	ID       string
	Platform string
	Service  string
}

func (v UserVisit) historyRow() (HistoryType, string, string, string) {
	return HistoryUser, v.ID, v.Platform, v.Service
}

// RedgifsSearch records a redgifs search, either by username or by tags.
// The sort order rides in the platform column so distinct orderings count
// separately.
type RedgifsSearch struct {
	Username string
	Tags     string
	Order    string
}

func (v RedgifsSearch) historyRow() (HistoryType, string, string, string) {
	value := v.Username
	if value == "" {
		value = "tags:" + v.Tags
	}
	return HistoryRedgifs, value, v.Order, ""
}

// AlbumVisit records opening a bunkr album.
type AlbumVisit struct {
	URL string
}

func (v AlbumVisit) historyRow() (HistoryType, string, string, string) {
	return HistoryBunkr, v.URL, "", ""
}

// Playlist is an ordered, named list of media URLs.
type Playlist struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ItemCount   int       `json:"itemCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PlaylistItem is one entry in a playlist. Within a playlist the OrderIndex
// values are always exactly {0..N-1}.
type PlaylistItem struct {
	ID            int64     `json:"id"`
	PlaylistID    int64     `json:"playlistId"`
	MediaURL      string    `json:"mediaUrl"`
	OrderIndex    int       `json:"orderIndex"`
	AddedAt       time.Time `json:"addedAt"`
	ThumbnailPath string    `json:"thumbnailPath,omitempty"`
}

// DownloadEntry is one row in the download cache ledger. The file itself
// lives on disk under the cache directory.
type DownloadEntry struct {
	URL          string    `json:"url"`
	Filename     string    `json:"filename"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
	Verified     bool      `json:"verified"`
}

// DownloadStats summarizes the download cache ledger.
type DownloadStats struct {
	Files         int64 `json:"files"`
	TotalBytes    int64 `json:"totalBytes"`
	VerifiedFiles int64 `json:"verifiedFiles"`
}
