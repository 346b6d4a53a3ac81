// Package blobstore stores index snapshots as named, immutable blobs.
//
// [BlobStore] is the interface for reading and writing blobs. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - [LocalStore]: local directory, mmap reads, atomic rename on write
//   - [MemoryStore]: in-process map, used by tests and mem:// locations
//   - s3.Store and s3.DDBCommitStore: Amazon S3, optionally with DynamoDB commits
//   - minio.Store: any S3-compatible endpoint through minio-go
//
// The location subpackage resolves a URI such as "s3://bucket/prefix" to one
// of these stores.
//
// # Thread Safety
//
// Stores are safe for concurrent use. A single Blob or WritableBlob must not
// be used from several goroutines without external synchronization.
package blobstore
