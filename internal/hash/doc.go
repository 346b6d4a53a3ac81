// Package hash provides the checksums and key hashes used by snapshots and write lanes.
//
// Checksums use CRC32-Castagnoli, which is hardware accelerated on x86 (SSE4.2)
// and ARM and is what S3 accepts for upload integrity checks.
//
// Lane selection uses 64-bit FNV-1a: it is stable across processes, so a key
// lands in the same lane in every partition.
package hash
