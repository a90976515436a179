package mdtable

import "github.com/opcode9/clrmeta/pkg/clrmeta/token"

// HeapSizes is the tables-stream header's heap-size flag byte (§4.C):
// bit 0 selects 4-byte #Strings indices, bit 1 selects 4-byte #GUID
// indices, bit 2 selects 4-byte #Blob indices.
type HeapSizes uint8

const (
	WideStrings HeapSizes = 1 << 0
	WideGUID    HeapSizes = 1 << 1
	WideBlob    HeapSizes = 1 << 2
)

// ResolvedColumn is a Column with its runtime byte width and offset
// within the row computed.
type ResolvedColumn struct {
	Column
	Offset int
	Width  int
}

// Layout is a table's fully resolved row shape: each column's offset and
// width, and the total row size.
type Layout struct {
	Table   token.TableIndex
	Columns []ResolvedColumn
	RowSize int
}

// ComputeLayout resolves a table's column widths from its schema, the
// heap-size flags, and a row-count lookup for simple/coded index width
// decisions (§4.C's coded-index-width and simple-index-width rules).
func ComputeLayout(t token.TableIndex, heapSizes HeapSizes, rowCount token.RowCountFunc) Layout {
	schema := Schema(t)
	layout := Layout{Table: t, Columns: make([]ResolvedColumn, 0, len(schema))}

	offset := 0
	for _, col := range schema {
		width := columnWidth(col, heapSizes, rowCount)
		layout.Columns = append(layout.Columns, ResolvedColumn{Column: col, Offset: offset, Width: width})
		offset += width
	}
	layout.RowSize = offset
	return layout
}

func columnWidth(col Column, heapSizes HeapSizes, rowCount token.RowCountFunc) int {
	switch col.Kind {
	case KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindStringsIndex:
		if heapSizes&WideStrings != 0 {
			return 4
		}
		return 2
	case KindGuidIndex:
		if heapSizes&WideGUID != 0 {
			return 4
		}
		return 2
	case KindBlobIndex:
		if heapSizes&WideBlob != 0 {
			return 4
		}
		return 2
	case KindSimpleIndex:
		if rowCount(col.Table) > 0xFFFF {
			return 4
		}
		return 2
	case KindCodedIndex:
		return col.Coded.Width(rowCount)
	default:
		return 0
	}
}
