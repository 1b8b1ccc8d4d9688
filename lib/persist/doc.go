// Package persist stores collections on disk, one file per collection.
//
// Layout:
//
//	<root>/LOCK                     exclusive process lock (gofrs/flock)
//	<root>/collections/<name>.bson  whole-collection encoding
//
// A file is always replaced as a whole: the new contents are written to a
// temporary file in the same directory, synced and renamed over the old file.
// A reader therefore sees either the previous or the next version, never a mix.
//
// Files are written uncompressed by default, which keeps them readable as plain
// BSON. With compression enabled the payload is framed as
//
//	"DDBZ" | type (1 byte) | xxh3 checksum of payload (8 bytes, little endian) | payload
//
// Readers accept both forms independent of the configured compression.
package persist
