// Package storage persists the last observed snapshot and subscriber
// sessions.
//
// Two drivers are supported:
//   - "file": JSON files in a data directory (snapshot optionally zstd
//     compressed, sessions in the {"sessions":[{"id","data"}]} layout)
//   - "sqlite": a single SQLite database (build with -tags sqlite)
//
// Writers replace files atomically, so readers never observe a partial write.
package storage
