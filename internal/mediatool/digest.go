package mediatool

import (
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"media-index/internal/filesystem"
)

// WholeFileDigest hashes the entire file with BLAKE2b-256. It is the
// fingerprint for non-video files and the fallback when stream hashing
// fails.
func WholeFileDigest(path string) (string, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read %s for hashing: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
