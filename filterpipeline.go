package tilekernel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	stgpsr "github.com/yuin/stagparser"
)

// filterpipeline.go is the engine's side of the "opaque FilterList applied
// to tile byte buffers" collaborator: tile codec and encryption-at-rest
// are out of scope, but the TileStore still has to turn bytes on disk
// into bytes in memory and back. tiledb.FilterList/tiledb.Filter are
// reused as the configuration description (exactly the stable contract
// the storage layer expects), while the byte-level Apply/Unapply below
// supplies the actual codec for the filters this engine exercises.

var ErrAddFilters = errors.New("error adding filter to filter list")
var ErrCreateFilter = errors.New("error creating filter")

// ZstdFilter initialises the Zstandard compression filter and sets the
// compression level.
func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, errors.Join(ErrCreateFilter, err)
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, errors.Join(ErrCreateFilter, err)
	}
	return filt, nil
}

// GzipFilter initialises the deflate compression filter and sets the
// compression level.
func GzipFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_GZIP)
	if err != nil {
		return nil, errors.Join(ErrCreateFilter, err)
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, errors.Join(ErrCreateFilter, err)
	}
	return filt, nil
}

// BitWidthReductionFilter initialises the bit-width-reduction filter and
// sets the window size.
func BitWidthReductionFilter(ctx *tiledb.Context, window int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BIT_WIDTH_REDUCTION)
	if err != nil {
		return nil, errors.Join(ErrCreateFilter, err)
	}
	if err := filt.SetOption(tiledb.TILEDB_BIT_WIDTH_MAX_WINDOW, window); err != nil {
		filt.Free()
		return nil, errors.Join(ErrCreateFilter, err)
	}
	return filt, nil
}

// PositiveDeltaFilter and the shuffle filters need no options.
func PositiveDeltaFilter(ctx *tiledb.Context) (*tiledb.Filter, error) {
	return tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_POSITIVE_DELTA)
}

func ByteShuffleFilter(ctx *tiledb.Context) (*tiledb.Filter, error) {
	return tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BYTESHUFFLE)
}

func BitShuffleFilter(ctx *tiledb.Context) (*tiledb.Filter, error) {
	return tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BITSHUFFLE)
}

// AddFilters sequentially appends filters to a pipeline list.
func AddFilters(list *tiledb.FilterList, filters ...*tiledb.Filter) error {
	for _, f := range filters {
		if err := list.AddFilter(f); err != nil {
			return errors.Join(ErrAddFilters, err)
		}
	}
	return nil
}

// AttachFilters sets the same pipeline list on a batch of attributes.
func AttachFilters(list *tiledb.FilterList, attrs ...*tiledb.Attribute) error {
	for _, a := range attrs {
		if err := a.SetFilterList(list); err != nil {
			return errors.Join(ErrAddFilters, err)
		}
	}
	return nil
}

// BuildFilterList turns a field's `filters:"zstd(level=16),bysh"` tag
// definitions into a tiledb.FilterList, in declaration order. This is the
// filterFor callback AttributesFromStruct expects.
func BuildFilterList(defs []stgpsr.Definition, ctx *tiledb.Context) (*tiledb.FilterList, error) {
	list, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateFilter, err)
	}

	for _, def := range defs {
		var (
			filt *tiledb.Filter
			ferr error
		)
		switch def.Name() {
		case "zstd":
			level, _ := def.Attribute("level")
			filt, ferr = ZstdFilter(ctx, int32(level.(int64)))
		case "gzip":
			level, _ := def.Attribute("level")
			filt, ferr = GzipFilter(ctx, int32(level.(int64)))
		case "bitw":
			win, _ := def.Attribute("window")
			filt, ferr = BitWidthReductionFilter(ctx, int32(win.(int64)))
		case "delta":
			filt, ferr = PositiveDeltaFilter(ctx)
		case "bysh":
			filt, ferr = ByteShuffleFilter(ctx)
		case "bish":
			filt, ferr = BitShuffleFilter(ctx)
		default:
			continue
		}
		if ferr != nil {
			return nil, ferr
		}
		if err := list.AddFilter(filt); err != nil {
			filt.Free()
			return nil, errors.Join(ErrAddFilters, err)
		}
		filt.Free()
	}

	return list, nil
}

// --- byte-level codec ----------------------------------------------------
//
// FilterKind names the subset of the pipeline the TileStore can actually
// execute against raw tile bytes. Encryption-at-rest and object-store
// transport stay pure collaborators (no codec lives in this package); the
// kinds below are the ones a written fragment's tiles are plausibly
// filtered with end to end.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterZstd
	FilterGzip
	FilterPositiveDelta
	FilterByteShuffle
)

// Pipeline is an ordered list of codecs applied when persisting a tile and
// un-applied, in reverse, when fetching it.
type Pipeline struct {
	Kinds []FilterKind
	Level int // shared by zstd/gzip entries
}

// Apply runs the pipeline forward: compress/transform on the write path.
func (p Pipeline) Apply(data []byte) ([]byte, error) {
	out := data
	for _, k := range p.Kinds {
		var err error
		out, err = applyOne(k, out, p.Level)
		if err != nil {
			return nil, Fail(KindCodec, "filter pipeline apply", err)
		}
	}
	return out, nil
}

// Unapply runs the pipeline in reverse: decompress/untransform on the
// read path, the way TileStore.fetch's decode step requires.
func (p Pipeline) Unapply(data []byte, decodedLen int) ([]byte, error) {
	out := data
	for i := len(p.Kinds) - 1; i >= 0; i-- {
		var err error
		out, err = unapplyOne(p.Kinds[i], out, decodedLen)
		if err != nil {
			return nil, Fail(KindCodec, "filter pipeline unapply", err)
		}
	}
	return out, nil
}

func applyOne(k FilterKind, data []byte, level int) ([]byte, error) {
	switch k {
	case FilterZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case FilterGzip:
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, level)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}
		if err := fw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FilterPositiveDelta:
		return positiveDeltaEncode(data), nil
	case FilterByteShuffle:
		return byteShuffle(data), nil
	default:
		return data, nil
	}
}

func unapplyOne(k FilterKind, data []byte, decodedLen int) ([]byte, error) {
	switch k {
	case FilterZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case FilterGzip:
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, err
		}
		return out, nil
	case FilterPositiveDelta:
		return positiveDeltaDecode(data), nil
	case FilterByteShuffle:
		return byteUnshuffle(data), nil
	default:
		return data, nil
	}
}

// positiveDeltaEncode/Decode operate over uint64 words, matching the
// ascending-integer dimension data the pipeline is normally attached to
// (e.g. monotonically increasing coordinate or tile-id columns).
func positiveDeltaEncode(data []byte) []byte {
	n := len(data) / 8
	out := make([]byte, len(data))
	var prev uint64
	for i := 0; i < n; i++ {
		v := binary.LittleEndian.Uint64(data[i*8:])
		binary.LittleEndian.PutUint64(out[i*8:], v-prev)
		prev = v
	}
	return out
}

func positiveDeltaDecode(data []byte) []byte {
	n := len(data) / 8
	out := make([]byte, len(data))
	var acc uint64
	for i := 0; i < n; i++ {
		d := binary.LittleEndian.Uint64(data[i*8:])
		acc += d
		binary.LittleEndian.PutUint64(out[i*8:], acc)
	}
	return out
}

// byteShuffle/byteUnshuffle regroup an 8-byte-word buffer so each output
// byte plane is contiguous, improving downstream entropy coding.
func byteShuffle(data []byte) []byte {
	const w = 8
	n := len(data) / w
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for b := 0; b < w; b++ {
			out[b*n+i] = data[i*w+b]
		}
	}
	return out
}

func byteUnshuffle(data []byte) []byte {
	const w = 8
	n := len(data) / w
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for b := 0; b < w; b++ {
			out[i*w+b] = data[b*n+i]
		}
	}
	return out
}
