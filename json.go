package tilekernel

import (
	"encoding/json"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// json.go persists the engine's own JSON-encoded sidecar blobs (array
// schema descriptors, fragment metadata summaries, vacuum logs) through
// the VFS collaborator, the same write-then-read pattern the teacher's
// metadata writer used for arbitrary data.

// WriteMetadataJSON serialises data as indented JSON to fileURI through
// vfs, overwriting any existing file there.
func WriteMetadataJSON(vfs *tiledb.VFS, fileURI string, data any) (int, error) {
	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return 0, Fail(KindFormat, "marshalling metadata json", err)
	}

	stream, err := vfs.Open(fileURI, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, Fail(KindIO, "opening "+fileURI+" for write", err)
	}
	defer stream.Close()

	n, err := stream.Write(jsn)
	if err != nil {
		return 0, Fail(KindIO, "writing "+fileURI, err)
	}
	return n, nil
}

// ReadMetadataJSON reads and unmarshals the JSON blob at fileURI into out.
func ReadMetadataJSON(ctx *tiledb.Context, vfs *tiledb.VFS, fileURI string, out any) error {
	size, err := vfs.FileSize(fileURI)
	if err != nil {
		return Fail(KindIO, "statting "+fileURI, err)
	}

	stream, err := vfs.Open(fileURI, tiledb.TILEDB_VFS_READ)
	if err != nil {
		return Fail(KindIO, "opening "+fileURI+" for read", err)
	}
	defer stream.Close()

	buf := make([]byte, size)
	if size > 0 {
		if _, err := stream.Read(buf); err != nil {
			return Fail(KindIO, "reading "+fileURI, err)
		}
	}

	if err := json.Unmarshal(buf, out); err != nil {
		return Fail(KindFormat, "unmarshalling "+fileURI, err)
	}
	return nil
}

// JSONDumps constructs a compact JSON string of data, used for the small
// commit-marker and log bodies (e.g. a fragment's `__commit` contents).
func JSONDumps(data any) (string, error) {
	jsn, err := json.Marshal(data)
	if err != nil {
		return "", Fail(KindFormat, "marshalling json", err)
	}
	return string(jsn), nil
}
