// Package mmap maps local snapshot files read-only into memory.
//
// Local blob reads go through a Mapping so restoring a large snapshot does not
// copy it through kernel buffers first.
//
// # Thread Safety
//
// A Mapping is safe for concurrent reads. Close is idempotent; callers must not
// touch the slice returned by Bytes after Close.
package mmap
