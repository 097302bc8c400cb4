// Package store provides SQLite persistence for the media index.
//
// It handles storage and retrieval of:
//   - Indexed file records (path, content hash, duration, thumbnail)
//   - Browse and search history with recency ordering
//   - Playlists and their ordered items
//   - The upstream API response cache
//   - The download cache ledger
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package store
