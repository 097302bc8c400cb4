// Package thumbs generates content-addressed video thumbnails.
//
// Assets are named by the file's content hash, so files with identical
// content share one thumbnail and regeneration for an unchanged file is a
// pure existence check. Frame extraction walks a fixed offset ladder (5s,
// 2s, 1s) so short videos still get a frame; when the ladder is exhausted
// the file simply has no thumbnail, which is not an error.
package thumbs
