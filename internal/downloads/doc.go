// Package downloads manages the on-disk cache of remote media files.
//
// Cached content lives as flat files under a cache directory, named by a
// truncated MD5 of the source URL, with a ledger row per file in the store.
// Admission enforces a per-file size limit and a total capacity cap; when
// the cap would be exceeded the least recently accessed entries are evicted
// first. Consumers mark entries verified once the content has actually been
// served successfully, and maintenance operations reconcile the ledger with
// the directory in both directions.
package downloads
