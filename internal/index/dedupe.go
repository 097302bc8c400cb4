package index

import "media-index/internal/store"

// Dedupe drops records whose content hash already appeared earlier in the
// list, preserving input order. Records with an empty hash are still
// awaiting background hashing and pass through unfiltered: collapsing them
// on the placeholder value would merge unrelated files.
func Dedupe(records []store.FileRecord) []store.FileRecord {
	out := make([]store.FileRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if rec.Hash == "" {
			out = append(out, rec)
			continue
		}
		if _, dup := seen[rec.Hash]; dup {
			continue
		}
		seen[rec.Hash] = struct{}{}
		out = append(out, rec)
	}

	return out
}
