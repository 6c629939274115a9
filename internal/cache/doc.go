// Package cache defines the disk-backed store responsible for translating the
// monitored resource into StoragePath/<generation>/<path> files. The store
// exposes read/write primitives with safe semantics (temp file + rename) and
// whole-generation enumeration/removal so that activation can purge superseded
// cache generations. The agent depends on this package to replay cached
// responses or write through fresh network bodies without duplicating
// filesystem logic.
package cache
