// Package mdtable parses the `#~` tables stream: the header describing
// which of the 38 ECMA-335 metadata tables are present and how many rows
// each has, and the row-oriented byte body that follows it.
package mdtable

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/opcode9/clrmeta/pkg/clrmeta/bio"
	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// ErrBadImageFormat signals a structurally invalid tables-stream header:
// an impossible row-count encoding or a table body that runs past the
// stream's declared length.
var ErrBadImageFormat = errors.New("mdtable: bad image format")

// Row is the raw byte span of one table row, ready for column reads via
// a Layout's ResolvedColumn offsets.
type Row []byte

// table holds a resolved table's metadata: its row count, computed
// layout, and the byte offset where its body begins within the stream.
type table struct {
	layout    Layout
	rowCount  uint32
	baseOffset int
}

// Stream is the parsed `#~` tables stream: per-table row counts, column
// layouts, and direct row access.
type Stream struct {
	data       []byte
	heapSizes  HeapSizes
	majorVer   uint8
	minorVer   uint8
	valid      uint64
	sorted     uint64
	rowCounts  [64]uint32
	tables     map[token.TableIndex]*table
}

// ParseStream decodes the tables-stream header (reserved u32,
// major/minor version, heap-sizes, reserved, valid/sorted bitmasks, and
// the per-present-table row-count array) and resolves every table's
// column layout and base offset (§4.C).
func ParseStream(data []byte) (*Stream, error) {
	r := bio.NewReader(data)

	if _, err := r.ReadU32(); err != nil { // reserved
		return nil, errors.Wrap(ErrBadImageFormat, "truncated tables stream header")
	}
	majorVer, err := r.ReadU8()
	if err != nil {
		return nil, errors.Wrap(ErrBadImageFormat, "truncated tables stream version")
	}
	minorVer, err := r.ReadU8()
	if err != nil {
		return nil, errors.Wrap(ErrBadImageFormat, "truncated tables stream version")
	}
	heapSizesRaw, err := r.ReadU8()
	if err != nil {
		return nil, errors.Wrap(ErrBadImageFormat, "truncated heap-sizes byte")
	}
	if _, err := r.ReadU8(); err != nil { // reserved
		return nil, errors.Wrap(ErrBadImageFormat, "truncated tables stream header")
	}
	valid, err := r.ReadU64()
	if err != nil {
		return nil, errors.Wrap(ErrBadImageFormat, "truncated valid bitmask")
	}
	sorted, err := r.ReadU64()
	if err != nil {
		return nil, errors.Wrap(ErrBadImageFormat, "truncated sorted bitmask")
	}

	s := &Stream{
		data:      data,
		heapSizes: HeapSizes(heapSizesRaw),
		majorVer:  majorVer,
		minorVer:  minorVer,
		valid:     valid,
		sorted:    sorted,
		tables:    make(map[token.TableIndex]*table),
	}

	for _, t := range AllTableIndices {
		if valid&(uint64(1)<<uint(t)) == 0 {
			continue
		}
		count, err := r.ReadU32()
		if err != nil {
			return nil, errors.Wrapf(ErrBadImageFormat, "truncated row count for table %s", t)
		}
		s.rowCounts[t] = count
	}

	rowCountFn := func(t token.TableIndex) uint32 { return s.rowCounts[t] }

	offset := r.Position()
	for _, t := range AllTableIndices {
		if valid&(uint64(1)<<uint(t)) == 0 {
			continue
		}
		layout := ComputeLayout(t, s.heapSizes, rowCountFn)
		count := s.rowCounts[t]
		byteLen := layout.RowSize * int(count)
		if offset+byteLen > len(data) {
			return nil, errors.Wrapf(ErrBadImageFormat, "table %s body (offset %d, %d bytes) runs past end of tables stream (%d bytes)", t, offset, byteLen, len(data))
		}
		s.tables[t] = &table{layout: layout, rowCount: count, baseOffset: offset}
		offset += byteLen
	}

	return s, nil
}

// HeapSizes reports the tables stream's heap-size flag byte.
func (s *Stream) HeapSizes() HeapSizes { return s.heapSizes }

// IsSorted reports whether the header's sorted bitmask marks t as sorted
// by its first column. Cross-checked against SortedTables: a header
// claiming a table outside that set is sorted is treated as unsorted,
// since FindRange's binary search is only valid for tables ECMA-335
// actually orders by a parent pointer.
func (s *Stream) IsSorted(t token.TableIndex) bool {
	return SortedTables[t] && s.sorted&(uint64(1)<<uint(t)) != 0
}

// RowCount returns the number of rows in table t, or 0 if the table is
// not present (its `valid` bit is clear).
func (s *Stream) RowCount(t token.TableIndex) uint32 {
	return s.rowCounts[t]
}

// Layout returns the resolved column layout for table t.
func (s *Stream) Layout(t token.TableIndex) Layout {
	if tb, ok := s.tables[t]; ok {
		return tb.layout
	}
	return Layout{Table: t}
}

// RowAt returns the raw byte span of row rid (1-based) of table t, or
// nil if rid is 0 or out of range (§4.C).
func (s *Stream) RowAt(t token.TableIndex, rid uint32) Row {
	if rid == 0 {
		return nil
	}
	tb, ok := s.tables[t]
	if !ok || rid > tb.rowCount {
		return nil
	}
	start := tb.baseOffset + int(rid-1)*tb.layout.RowSize
	return Row(s.data[start : start+tb.layout.RowSize])
}

// columnValue reads the raw unsigned value of column col within row,
// using its resolved offset and width.
func columnValue(row Row, col ResolvedColumn) uint32 {
	b := row[col.Offset : col.Offset+col.Width]
	switch col.Width {
	case 2:
		return uint32(b[0]) | uint32(b[1])<<8
	case 4:
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	default:
		return uint32(b[0])
	}
}

// Column returns the raw value of the named column in row, read at the
// width ComputeLayout resolved for it. Panics if the table has no column
// by that name — a programmer error, not a data error, since schema.go
// is fixed per table.
func (s *Stream) Column(t token.TableIndex, row Row, name string) uint32 {
	layout := s.Layout(t)
	for _, col := range layout.Columns {
		if col.Name == name {
			return columnValue(row, col)
		}
	}
	panic("mdtable: table " + t.String() + " has no column " + name)
}

// CodedIndexAt decodes the named coded-index column of row into a token.
func (s *Stream) CodedIndexAt(t token.TableIndex, row Row, name string) (token.Token, error) {
	layout := s.Layout(t)
	for _, col := range layout.Columns {
		if col.Name == name {
			return col.Coded.Decode(columnValue(row, col))
		}
	}
	panic("mdtable: table " + t.String() + " has no coded-index column " + name)
}

// FindRange performs the lookup described in spec.md §4.C for a sorted
// parent-pointer table: the contiguous [lo, hi) rid range whose column
// column equals key, using binary search when the header marks t sorted
// and a linear scan otherwise. Ties break to the lowest rid.
func (s *Stream) FindRange(t token.TableIndex, column string, key uint32) (lo, hi uint32) {
	count := s.RowCount(t)
	if count == 0 {
		return 0, 0
	}

	at := func(rid uint32) uint32 {
		return s.Column(t, s.RowAt(t, rid), column)
	}

	if s.IsSorted(t) {
		start := uint32(sort.Search(int(count), func(i int) bool {
			return at(uint32(i+1)) >= key
		})) + 1
		if start > count || at(start) != key {
			return 0, 0
		}
		end := uint32(sort.Search(int(count), func(i int) bool {
			return at(uint32(i+1)) > key
		})) + 1
		return start, end
	}

	lo, hi = 0, 0
	for rid := uint32(1); rid <= count; rid++ {
		if at(rid) == key {
			if lo == 0 {
				lo = rid
			}
			hi = rid + 1
		}
	}
	return lo, hi
}

// ParentRange computes the child-rid range owned by parent row parentRid
// of a list-pointer column (MethodList, FieldList, ParamList, EventList,
// PropertyList): [start, next) where next is the following parent's list
// start, or childTable's row count + 1 for the last parent (§4.C).
func (s *Stream) ParentRange(parentTable token.TableIndex, parentRid uint32, listColumn string, childTable token.TableIndex) (lo, hi uint32) {
	row := s.RowAt(parentTable, parentRid)
	if row == nil {
		return 0, 0
	}
	start := s.Column(parentTable, row, listColumn)

	parentCount := s.RowCount(parentTable)
	var end uint32
	if parentRid >= parentCount {
		end = s.RowCount(childTable) + 1
	} else {
		nextRow := s.RowAt(parentTable, parentRid+1)
		end = s.Column(parentTable, nextRow, listColumn)
	}
	return start, end
}

// ParentOf finds the largest parent rid in parentTable whose listColumn
// value is <= childRid, i.e. the parent that owns childRid in its
// contiguous list range (§4.C's reverse child→parent lookup).
func (s *Stream) ParentOf(parentTable token.TableIndex, listColumn string, childRid uint32) uint32 {
	count := s.RowCount(parentTable)
	if count == 0 {
		return 0
	}
	at := func(rid uint32) uint32 {
		return s.Column(parentTable, s.RowAt(parentTable, rid), listColumn)
	}
	idx := sort.Search(int(count), func(i int) bool {
		return at(uint32(i+1)) > childRid
	})
	if idx == 0 {
		return 0
	}
	return uint32(idx)
}
