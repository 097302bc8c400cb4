// Package mediatypes provides shared type definitions and utilities for media
// file handling across the media index service.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains primitive types,
// constants, and pure utility functions with no external dependencies beyond
// the standard library.
//
// # File Types
//
// The package defines a FileType enum for categorizing entries:
//
//	mediatypes.FileTypeFolder // Directories
//	mediatypes.FileTypeImage  // Supported image formats (jpg, png, gif, etc.)
//	mediatypes.FileTypeVideo  // Supported video formats (mp4, mkv, avi, etc.)
//	mediatypes.FileTypeOther  // Unrecognized or unsupported files
//
// # Extension Detection
//
// Use GetFileType to determine the type of a file based on its extension:
//
//	fileType := mediatypes.GetFileType(mediatypes.Ext(filename))
//
// IsVideoPath answers the question most callers in the indexing path actually
// ask: whether a path is eligible for stream hashing, duration probing, and
// thumbnail extraction.
//
// # MIME Types
//
// Use GetMimeType to get the appropriate MIME type for HTTP responses:
//
//	mimeType := mediatypes.GetMimeType(mediatypes.Ext(filename))
//
// # Sorting
//
// SortField and SortOrder provide consistent listing sort vocabulary across
// the application.
package mediatypes
