package tilekernel

import (
	"bytes"
	"encoding/binary"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// Stream is the minimal contract TileStore's fetch path needs from a byte
// source: a VFS file handle for an on-disk/object-store fragment, or an
// in-memory buffer for a just-written tile still staged before commit.
// Keeping both behind one interface lets the write path exercise the same
// decode helpers the read path uses, without caring which backs it.
type Stream interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
}

// OpenStream wraps a VFS file handle, optionally slurping it fully into
// memory first when inMem is set (useful for small metadata/index files
// that are cheaper to decode from a bytes.Reader than to Seek repeatedly
// against a remote object store).
func OpenStream(fh *tiledb.VFSfh, size uint64, inMem bool) (Stream, error) {
	if !inMem {
		return fh, nil
	}
	buffer := make([]byte, size)
	if err := binary.Read(fh, binary.BigEndian, &buffer); err != nil {
		return nil, Fail(KindIO, "reading stream into memory", err)
	}
	return bytes.NewReader(buffer), nil
}
