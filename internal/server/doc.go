// Package server hosts the Fiber cache mirror: a read-only HTTP view of the
// cache directory that answers HEAD and GET with Last-Modified taken from
// each file's mtime, so another hapifetch instance can point at it and
// perform the same conditional fetch it would against the origin server.
package server
