// Package fetch keeps a local file in step with a remote resource.
//
// EnsureFresh issues a HEAD request, compares the server's Last-Modified
// with the local file's mtime and downloads only when the remote copy is
// strictly newer (or when either side lacks a timestamp). A completed
// download is stamped with the server's Last-Modified so the file's own
// mtime is the only persisted freshness marker.
//
// Network and parse failures are classified into distinguished errors and
// raised through the diag Reporter; everything else is returned wrapped.
package fetch
