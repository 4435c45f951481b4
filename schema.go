package tilekernel

import (
	"errors"
	"reflect"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"
)

// Layout is one of the three total orders the engine understands for cell
// or tile ordering. Hilbert is only legal as a cell order on sparse arrays
//, never as a tile order.
type Layout int

const (
	RowMajor Layout = iota
	ColumnMajor
	Hilbert
	UnorderedLayout
	GlobalOrderLayout
)

func (l Layout) String() string {
	switch l {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	case Hilbert:
		return "hilbert"
	case UnorderedLayout:
		return "unordered"
	case GlobalOrderLayout:
		return "global-order"
	default:
		return "unknown"
	}
}

// ArrayType distinguishes dense (every cell exists, fill-backed) from
// sparse (cells are explicit, coordinate-carrying) arrays.
type ArrayType int

const (
	Dense ArrayType = iota
	Sparse
)

// VarNum marks an attribute's cell_val_num as variable-length, mirroring
// tiledb.TILEDB_VAR_NUM so schema blobs stay consistent with the FilterList
// collaborator types reused from tiledb.go.
const VarNum = ^uint32(0)

// Dimension is a named, typed axis of the domain. Domain bounds and the
// tile extent are absent (zero Coord) for string dimensions,.
type Dimension struct {
	Name   string
	Dtype  Datatype
	Lo     Coord
	Hi     Coord
	Extent Coord
}

func (d Dimension) IsString() bool { return d.Dtype == StringAscii }

// NumTiles returns how many tiles this dimension is divided into, the last
// one possibly clipped against Hi (the last tile along a dimension may extend past hi and is clipped on read).
func (d Dimension) NumTiles() uint64 {
	if d.IsString() {
		return 0
	}
	span := d.Hi.I - d.Lo.I + 1
	ext := d.Extent.I
	return uint64((span + ext - 1) / ext)
}

// Domain is the ordered sequence of dimensions making up a coordinate
// tuple. Hilbert cell ordering caps the domain at 16 dimensions.
type Domain struct {
	Dimensions []Dimension
}

func (dm *Domain) AddDimension(d Dimension) error {
	if !d.IsString() {
		if d.Lo.Compare(d.Hi) > 0 {
			return Fail(KindInternal, "dimension lo > hi: "+d.Name, nil)
		}
		if !IsFloat(d.Dtype) && d.Extent.I <= 0 {
			return Fail(KindInternal, "dimension extent must be >= 1: "+d.Name, nil)
		}
	}
	dm.Dimensions = append(dm.Dimensions, d)
	return nil
}

func (dm *Domain) Dimension(name string) (*Dimension, bool) {
	for i := range dm.Dimensions {
		if dm.Dimensions[i].Name == name {
			return &dm.Dimensions[i], true
		}
	}
	return nil, false
}

func (dm *Domain) Rank() int { return len(dm.Dimensions) }

// Attribute is a named, typed value stored per cell. Nullable attributes
// carry a parallel 1-byte validity buffer.
type Attribute struct {
	Name       string
	Dtype      Datatype
	CellValNum uint32
	Nullable   bool
	Filters    *tiledb.FilterList
}

func (a Attribute) IsVar() bool { return a.CellValNum == VarNum }

func (a Attribute) CellSize() uint64 {
	if a.IsVar() {
		return 0
	}
	return uint64(a.CellValNum) * TypeSize(a.Dtype)
}

// ArraySchema is the immutable description of an array: its domain,
// attributes, and the cell/tile order and capacity governing tile layout.
// Schemas are written once and never mutated thereafter;
// every read/write path treats *ArraySchema as read-only.
type ArraySchema struct {
	ArrayType           ArrayType
	Domain              Domain
	Attributes          []Attribute
	CellOrder           Layout
	TileOrder           Layout
	Capacity            uint64 // sparse arrays: max cells per tile
	AllowsDups          bool
	OffsetsBitsize      uint8 // 32 or 64
	OffsetsElements     bool  // true: elements mode, false: bytes mode
	OffsetsExtraElement bool
}

func NewArraySchema(atype ArrayType) *ArraySchema {
	return &ArraySchema{
		ArrayType:      atype,
		CellOrder:      RowMajor,
		TileOrder:      RowMajor,
		Capacity:       10000,
		OffsetsBitsize: 64,
	}
}

func (s *ArraySchema) AddAttribute(a Attribute) {
	s.Attributes = append(s.Attributes, a)
}

func (s *ArraySchema) Attribute(name string) (*Attribute, error) {
	for i := range s.Attributes {
		if s.Attributes[i].Name == name {
			return &s.Attributes[i], nil
		}
	}
	return nil, Fail(KindUnknownName, "attribute not found: "+name, nil)
}

// Type returns the scalar type of attr. UnknownName on a missing name,.
func (s *ArraySchema) Type(attr string) (Datatype, error) {
	a, err := s.Attribute(attr)
	if err != nil {
		return 0, err
	}
	return a.Dtype, nil
}

// CellSize returns the fixed byte width of one cell of attr; zero for
// variable-length attributes (see VarSize).
func (s *ArraySchema) CellSize(attr string) (uint64, error) {
	a, err := s.Attribute(attr)
	if err != nil {
		return 0, err
	}
	return a.CellSize(), nil
}

func (s *ArraySchema) VarSize(attr string) (bool, error) {
	a, err := s.Attribute(attr)
	if err != nil {
		return false, err
	}
	return a.IsVar(), nil
}

// CoordsSize is the byte width of one fixed-size coordinate tuple
// (dimensions with a string dtype contribute 0 and are serialised as
// var-length coord tiles instead).
func (s *ArraySchema) CoordsSize() uint64 {
	var total uint64
	for _, d := range s.Domain.Dimensions {
		if d.IsString() {
			continue
		}
		total += TypeSize(d.Dtype)
	}
	return total
}

// Check validates the cross-field invariants that can't
// be enforced incrementally while the schema is being assembled.
func (s *ArraySchema) Check() error {
	if len(s.Domain.Dimensions) == 0 {
		return Fail(KindInternal, "domain must have at least one dimension", nil)
	}
	if s.CellOrder == Hilbert {
		if s.ArrayType != Sparse {
			return Fail(KindInvalidLayout, "hilbert cell order is only legal for sparse arrays", nil)
		}
		if len(s.Domain.Dimensions) > 16 {
			return Fail(KindInternal, "hilbert domain exceeds 16 dimensions", nil)
		}
	}
	if s.TileOrder == Hilbert {
		return Fail(KindInvalidLayout, "hilbert is not a legal tile order", nil)
	}
	if len(s.Attributes) == 0 {
		return Fail(KindInternal, "schema has no attributes", nil)
	}
	if s.OffsetsBitsize != 32 && s.OffsetsBitsize != 64 {
		return Fail(KindInternal, "sm.var_offsets.bitsize must be 32 or 64", nil)
	}
	return nil
}

// --- struct-tag attribute builder, adapted from the original tiledb.go
// CreateAttr/schemaAttrs pair: a struct's exported fields become schema
// attributes, driven by `tiledb:"dtype=...,ftype=attr|dim"` and
// `filters:"..."` tags. Kept for callers that prefer declaring a record
// type once instead of building Attributes by hand field-by-field.

var ErrCreateAttribute = errors.New("error creating attribute from struct tag")

// dtypeFromTag maps the tag's dtype string to a Datatype.
func dtypeFromTag(name string) (Datatype, bool) {
	switch name {
	case "int8":
		return Int8, true
	case "uint8":
		return Uint8, true
	case "int16":
		return Int16, true
	case "uint16":
		return Uint16, true
	case "int32":
		return Int32, true
	case "uint32":
		return Uint32, true
	case "int64":
		return Int64, true
	case "uint64":
		return Uint64, true
	case "float32":
		return Float32, true
	case "float64":
		return Float64, true
	case "string":
		return StringAscii, true
	}
	return 0, false
}

// AttributesFromStruct walks the exported fields of t (a pointer to a
// struct) and appends one Attribute per field tagged `ftype=attr`; fields
// tagged `ftype=dim` are assumed to already be represented as Dimensions
// and are skipped. filterFor builds the FilterList for a field from its
// `filters` tag entries (see BuildFilterList in filterpipeline.go).
func AttributesFromStruct(t any, ctx *tiledb.Context, filterFor func(defs []stgpsr.Definition, ctx *tiledb.Context) (*tiledb.FilterList, error)) ([]Attribute, error) {
	values := reflect.ValueOf(t).Elem()
	types := values.Type()

	filtDefs, _ := stgpsr.ParseStruct(t, "filters")
	tdbDefs, _ := stgpsr.ParseStruct(t, "tiledb")

	attrs := make([]Attribute, 0, values.NumField())

	for i := 0; i < values.NumField(); i++ {
		field := types.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name

		fieldTdb := map[string]stgpsr.Definition{}
		for _, v := range tdbDefs[name] {
			fieldTdb[v.Name()] = v
		}

		def, ok := fieldTdb["ftype"]
		if !ok {
			return nil, errors.Join(ErrCreateAttribute, errors.New("ftype tag not found on "+name))
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			continue
		}

		dtDef, ok := fieldTdb["dtype"]
		if !ok {
			return nil, errors.Join(ErrCreateAttribute, errors.New("dtype tag not found on "+name))
		}
		dtStr, _ := dtDef.Attribute("dtype")
		dtype, ok := dtypeFromTag(dtStr.(string))
		if !ok {
			return nil, errors.Join(ErrCreateAttribute, errors.New("unsupported dtype on "+name))
		}

		cellValNum := uint32(1)
		if _, isVar := fieldTdb["var"]; isVar {
			cellValNum = VarNum
		}

		var filters *tiledb.FilterList
		var err error
		if filterFor != nil {
			filters, err = filterFor(filtDefs[name], ctx)
			if err != nil {
				return nil, errors.Join(ErrCreateAttribute, err)
			}
		}

		attrs = append(attrs, Attribute{
			Name:       name,
			Dtype:      dtype,
			CellValNum: cellValNum,
			Filters:    filters,
		})
	}

	return attrs, nil
}
