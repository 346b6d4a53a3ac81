// Package fs abstracts the few filesystem operations the local blob store needs.
//
// [LocalFS] delegates to the os package. [FaultyFS] wraps another FileSystem and
// injects write, sync, close, or rename failures for tests that exercise
// snapshot persistence error paths.
//
// Operations take no context.Context: local syscalls are short and cannot be
// interrupted. Remote stores expose context-aware APIs through blobstore.
package fs
