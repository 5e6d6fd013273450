// Package snapshot captures and restores point-in-time copies of the
// sharded graph.
//
// A snapshot is a single binary object: a fixed header carrying the
// covered mutation sequence number, followed by a CRC32-checksummed and
// optionally compressed payload holding every shard's adjacency record.
// The Manager writes snapshots as immutable versioned objects and keeps
// a mutable CURRENT pointer on the latest one, so restores never race a
// half-written upload.
//
// Stores ship for memory, the local filesystem, S3 (with an optional
// DynamoDB-backed CURRENT pointer for concurrent writers), and
// MinIO-compatible object storage.
package snapshot
