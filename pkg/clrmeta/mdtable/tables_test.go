package mdtable

import (
	"encoding/binary"
	"testing"

	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

func le16b(v uint32) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func le32b(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le64b(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func concatBytes(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// buildTablesStream assembles a #~ stream with a TypeDef table (3 rows,
// each with a MethodList start) and a MethodDef table (6 rows, content
// unused), for exercising ParentRange/ParentOf's reverse list-range
// lookups (§4.C).
func buildTablesStream(t *testing.T) []byte {
	t.Helper()

	typeDefRow := func(methodList uint32) []byte {
		return concatBytes(le32b(0), le16b(0), le16b(0), le16b(0), le16b(1), le16b(methodList))
	}
	typeDefRows := concatBytes(typeDefRow(1), typeDefRow(3), typeDefRow(6))

	methodDefRow := concatBytes(le32b(0), le16b(0), le16b(0), le16b(0), le16b(0), le16b(0))
	var methodDefRows []byte
	for i := 0; i < 6; i++ {
		methodDefRows = append(methodDefRows, methodDefRow...)
	}

	var valid uint64
	valid |= 1 << uint(token.TypeDef)
	valid |= 1 << uint(token.MethodDef)

	header := concatBytes(
		le32b(0),
		[]byte{2, 0, 0, 0},
		le64b(valid),
		le64b(0),
	)
	rowCounts := concatBytes(le32b(3), le32b(6)) // TypeDef, MethodDef (ascending table index order)
	return concatBytes(header, rowCounts, typeDefRows, methodDefRows)
}

func TestParseStream_RowAtAndColumn(t *testing.T) {
	data := buildTablesStream(t)
	s, err := ParseStream(data)
	if err != nil {
		t.Fatalf("ParseStream: %v", err)
	}

	if got := s.RowCount(token.TypeDef); got != 3 {
		t.Fatalf("RowCount(TypeDef) = %d, want 3", got)
	}
	if got := s.RowCount(token.MethodDef); got != 6 {
		t.Fatalf("RowCount(MethodDef) = %d, want 6", got)
	}
	if got := s.RowCount(token.Assembly); got != 0 {
		t.Errorf("RowCount(Assembly) = %d, want 0 (not present in `valid`)", got)
	}

	row2 := s.RowAt(token.TypeDef, 2)
	if row2 == nil {
		t.Fatal("RowAt(TypeDef, 2) = nil")
	}
	if got := s.Column(token.TypeDef, row2, "MethodList"); got != 3 {
		t.Errorf("TypeDef row 2's MethodList = %d, want 3", got)
	}

	if s.RowAt(token.TypeDef, 0) != nil {
		t.Error("RowAt(_, 0) must be nil: rid 0 is reserved for null")
	}
	if s.RowAt(token.TypeDef, 4) != nil {
		t.Error("RowAt(_, 4) must be nil: out of range for a 3-row table")
	}
}

func TestStream_ParentRange(t *testing.T) {
	data := buildTablesStream(t)
	s, err := ParseStream(data)
	if err != nil {
		t.Fatalf("ParseStream: %v", err)
	}

	tests := []struct {
		parentRid uint32
		wantLo    uint32
		wantHi    uint32
	}{
		{1, 1, 3},
		{2, 3, 6},
		{3, 6, 7}, // last parent: range runs through MethodDef's row count + 1
	}
	for _, tc := range tests {
		lo, hi := s.ParentRange(token.TypeDef, tc.parentRid, "MethodList", token.MethodDef)
		if lo != tc.wantLo || hi != tc.wantHi {
			t.Errorf("ParentRange(TypeDef, %d) = [%d, %d), want [%d, %d)", tc.parentRid, lo, hi, tc.wantLo, tc.wantHi)
		}
	}
}

func TestStream_ParentOf(t *testing.T) {
	data := buildTablesStream(t)
	s, err := ParseStream(data)
	if err != nil {
		t.Fatalf("ParseStream: %v", err)
	}

	tests := []struct {
		childRid uint32
		want     uint32
	}{
		{1, 1}, // method 1 belongs to TypeDef row 1 ([1,3))
		{2, 1},
		{3, 2}, // method 3 belongs to TypeDef row 2 ([3,6))
		{5, 2},
		{6, 3}, // method 6 belongs to TypeDef row 3 ([6,7))
	}
	for _, tc := range tests {
		if got := s.ParentOf(token.TypeDef, "MethodList", tc.childRid); got != tc.want {
			t.Errorf("ParentOf(TypeDef, MethodList, %d) = %d, want %d", tc.childRid, got, tc.want)
		}
	}
}

func TestParseStream_Truncated(t *testing.T) {
	if _, err := ParseStream([]byte{0x00, 0x01}); err == nil {
		t.Error("expected an error parsing a truncated tables stream")
	}
}
