// Package mediatool invokes the external media toolchain behind a narrow
// capability interface.
//
// It provides:
//   - Video stream hashing (decoded first stream, container-independent)
//   - Single-frame extraction for thumbnails
//   - Duration probing
//   - BLAKE2b whole-file digests as the non-video and fallback fingerprint
//
// The concrete implementation shells out to ffmpeg and ffprobe and requires
// them to be installed and available in the system PATH; tests and callers
// that need isolation work against the Tool interface.
package mediatool
