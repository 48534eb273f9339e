// Package ingest scans directory trees and records content digests for every
// file in the corpus store.
//
// Hashing runs through the bounded executor, so large trees are digested with
// a fixed number of concurrent workers while results stream back as they
// complete. Ingestion is a best-effort bulk operation: unreadable files are
// reported per-item in the returned stats, not raised.
package ingest
