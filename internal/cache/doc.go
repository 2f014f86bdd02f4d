// Package cache owns the on-disk side of a conditional download: it resolves
// local file paths, reports their size and modification time, and writes new
// bodies atomically (temp file + rename) before stamping the file's access and
// modification times. The modification time is the only freshness record; no
// side metadata is stored. The fetcher compares it with the remote
// Last-Modified header and the mirror server publishes it back as one.
package cache
