// Package handlers provides HTTP request handlers for the media index API.
//
// It includes handlers for:
//   - Directory browsing and single-file resolution
//   - Media, thumbnail, and cached-download serving
//   - Usage history and playlist management
//   - Download cache administration
//   - Sweep, response cache, and library stats administration
//   - Health checks and version info
//
// Handlers stay thin: they parse parameters, call into the index, store, or
// download manager, and encode the result.
package handlers
