// Package cache provides an LRU cache for downloaded object ranges.
//
// Readers fetch buffer-aligned chunks, so repeated or concurrent reads of the
// same object hit the same keys. Memory is accounted against an optional
// resource.Controller; when the controller refuses, the chunk is simply not
// cached.
//
// Writes, deletes and copies invalidate every chunk of the affected path.
package cache
