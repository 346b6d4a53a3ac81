// Package compress frames a byte stream into independently compressed blocks.
//
// Block format (little-endian):
//
//	[type u8][uncompressed size u32][stored size u32][payload]
//
// A stored size of zero means the payload is kept uncompressed because
// compression did not save at least 10%. The reader is self-describing: it
// does not need to know the writer's Type.
package compress
