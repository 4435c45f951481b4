package tilekernel

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// FragInfo is one entry in a fragment directory listing: just enough to
// order, filter, and vacuum fragments without opening their metadata
// blobs.
type FragInfo struct {
	URI     string
	TsStart time.Time
	TsEnd   time.Time
}

// parseFragmentName decodes the `__<uuid>_<t0>_<t1>_<fmt>` directory
// naming convention into its timestamp range. t0/t1 are Unix nanoseconds.
func parseFragmentName(name string) (tsStart, tsEnd time.Time, ok bool) {
	trimmed := strings.TrimPrefix(name, "__")
	parts := strings.Split(trimmed, "_")
	if len(parts) < 4 {
		return time.Time{}, time.Time{}, false
	}
	// uuid itself may contain hyphens but not underscores, so the last
	// three underscore-separated fields are always t0, t1, fmt.
	n := len(parts)
	t0, err1 := strconv.ParseInt(parts[n-3], 10, 64)
	t1, err2 := strconv.ParseInt(parts[n-2], 10, 64)
	if err1 != nil || err2 != nil {
		return time.Time{}, time.Time{}, false
	}
	return time.Unix(0, t0), time.Unix(0, t1), true
}

// FragmentDirectory is the collaborator over an array's `__fragments/`,
// `__commits/`, and `__fragment_meta/` subdirectories. It uses the VFS
// capability (ls/read/write/remove_dir/is_bucket) exactly as the out-of-
// scope storage-backend contract describes it — TileDB-Go's VFS type is
// that capability, not a stand-in for it.
type FragmentDirectory struct {
	ArrayURI string
	ctx      *tiledb.Context
	vfs      *tiledb.VFS
}

func OpenFragmentDirectory(ctx *tiledb.Context, vfs *tiledb.VFS, arrayURI string) *FragmentDirectory {
	return &FragmentDirectory{ArrayURI: arrayURI, ctx: ctx, vfs: vfs}
}

// List enumerates every committed fragment directory under
// `<array_uri>/__fragments/`. A fragment without a `__commit` marker is a
// partial write from a cancelled or crashed writer and is skipped.
func (fd *FragmentDirectory) List() ([]FragInfo, error) {
	root := filepath.Join(fd.ArrayURI, "__fragments")
	dirs, _, err := fd.vfs.List(root)
	if err != nil {
		return nil, Fail(KindIO, "listing fragment directory", err)
	}

	out := make([]FragInfo, 0, len(dirs))
	for _, d := range dirs {
		base := filepath.Base(d)
		tsStart, tsEnd, ok := parseFragmentName(base)
		if !ok {
			continue
		}

		committed, err := fd.vfs.IsFile(filepath.Join(d, "__commit"))
		if err != nil || !committed {
			continue
		}

		out = append(out, FragInfo{URI: d, TsStart: tsStart, TsEnd: tsEnd})
	}
	return out, nil
}

// ToVacuum reads every `__commits/*.vac` log and returns the union of
// input fragment URIs those consolidations superseded — i.e. the
// fragments a vacuum pass is free to delete.
func (fd *FragmentDirectory) ToVacuum() ([]string, error) {
	root := filepath.Join(fd.ArrayURI, "__commits")
	_, files, err := fd.vfs.List(root)
	if err != nil {
		// no commits directory yet means nothing to vacuum
		return nil, nil
	}

	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, f := range files {
		if filepath.Ext(f) != ".vac" {
			continue
		}
		uris, err := fd.readVacLog(f)
		if err != nil {
			return nil, err
		}
		for _, u := range uris {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out, nil
}

func (fd *FragmentDirectory) readVacLog(uri string) ([]string, error) {
	fh, err := fd.vfs.Open(uri, tiledb.TILEDB_VFS_READ)
	if err != nil {
		return nil, Fail(KindIO, "opening vacuum log "+uri, err)
	}
	defer fh.Close()

	size, err := fd.vfs.FileSize(uri)
	if err != nil {
		return nil, Fail(KindIO, "statting vacuum log "+uri, err)
	}

	buf := make([]byte, size)
	if _, err := fh.Read(buf); err != nil {
		return nil, Fail(KindIO, "reading vacuum log "+uri, err)
	}

	lines := strings.Split(strings.TrimSpace(string(buf)), "\n")
	uris := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			uris = append(uris, l)
		}
	}
	return uris, nil
}

// TimestampRangeFilter narrows a listing to fragments whose [TsStart,
// TsEnd] falls fully inside [tLo, tHi].
func (fd *FragmentDirectory) TimestampRangeFilter(all []FragInfo, tLo, tHi time.Time) []FragInfo {
	out := make([]FragInfo, 0, len(all))
	for _, f := range all {
		if !f.TsStart.Before(tLo) && !f.TsEnd.After(tHi) {
			out = append(out, f)
		}
	}
	return out
}

// ConsolidatedMetadata reports whether a consolidated metadata cache
// exists under `__fragment_meta/`, letting the planner skip per-fragment
// metadata opens when a single merged index is available.
func (fd *FragmentDirectory) ConsolidatedMetadata() (bool, error) {
	root := filepath.Join(fd.ArrayURI, "__fragment_meta")
	_, files, err := fd.vfs.List(root)
	if err != nil {
		return false, nil
	}
	return len(files) > 0, nil
}

// RemoveConsolidatedFragmentURIs collapses frags by deleting entries
// whose timestamp range is strictly contained in a later-listed entry's
// range; ties on TsEnd keep the one with the widest TsStart. Idempotent
// and order-preserving: a second pass over the result is a no-op, and
// surviving entries keep their original relative order.
func RemoveConsolidatedFragmentURIs(frags []FragInfo) []FragInfo {
	keep := make([]bool, len(frags))
	for i := range frags {
		keep[i] = true
	}

	contains := func(outer, inner FragInfo) bool {
		return !outer.TsStart.After(inner.TsStart) && !outer.TsEnd.Before(inner.TsEnd) &&
			(outer.TsStart.Before(inner.TsStart) || outer.TsEnd.After(inner.TsEnd))
	}

	for i := range frags {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(frags); j++ {
			if !keep[j] {
				continue
			}
			switch {
			case contains(frags[j], frags[i]):
				keep[i] = false
			case contains(frags[i], frags[j]):
				keep[j] = false
			case frags[i].TsEnd.Equal(frags[j].TsEnd) && frags[i].TsStart.Equal(frags[j].TsStart):
				// exact duplicate entries: keep the earlier-listed one
				keep[j] = false
			}
		}
	}

	out := make([]FragInfo, 0, len(frags))
	for i, f := range frags {
		if keep[i] {
			out = append(out, f)
		}
	}
	return out
}
