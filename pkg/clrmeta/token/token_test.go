package token

import "testing"

func TestNewAndAccessors(t *testing.T) {
	tok := New(TypeDef, 0x2A)
	if tok.Table() != TypeDef {
		t.Errorf("Table() = %v, want TypeDef", tok.Table())
	}
	if tok.RID() != 0x2A {
		t.Errorf("RID() = 0x%x, want 0x2A", tok.RID())
	}
	if tok.IsNull() {
		t.Error("IsNull() = true for a non-zero rid")
	}
}

func TestNullToken(t *testing.T) {
	if !Null.IsNull() {
		t.Error("Null.IsNull() = false")
	}
	zero := New(MethodDef, 0)
	if !zero.IsNull() {
		t.Error("a token with rid 0 must be null regardless of table")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok := New(AssemblyRef, 0x00FFFFFF)
	raw := tok.ToU32()
	got := FromU32(raw)
	if got != tok {
		t.Errorf("FromU32(ToU32(tok)) = %v, want %v", got, tok)
	}
}

func TestTokenString(t *testing.T) {
	tok := New(TypeDef, 1)
	if got, want := tok.String(), "TypeDef[0x000001]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestCodedIndexKind_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		kind CodedIndexKind
		tok  Token
	}{
		{"TypeDefOrRef/TypeDef", TypeDefOrRef, New(TypeDef, 5)},
		{"TypeDefOrRef/TypeRef", TypeDefOrRef, New(TypeRef, 7)},
		{"TypeDefOrRef/TypeSpec", TypeDefOrRef, New(TypeSpec, 1)},
		{"ResolutionScope/AssemblyRef", ResolutionScope, New(AssemblyRef, 3)},
		{"TypeOrMethodDef/MethodDef", TypeOrMethodDef, New(MethodDef, 2)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := tc.kind.Encode(tc.tok)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := tc.kind.Decode(raw)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tc.tok {
				t.Errorf("Decode(Encode(tok)) = %v, want %v", got, tc.tok)
			}
		})
	}
}

func TestCodedIndexKind_Decode_InvalidTag(t *testing.T) {
	// TypeOrMethodDef has TagBits=1, so tag can only be 0 or 1; a raw value
	// with tag 1 but only two candidates is valid, so force an invalid tag
	// via a kind with fewer candidates than its tag space allows.
	k := CodedIndexKind{Name: "Test", TagBits: 2, Candidates: []TableIndex{TypeDef}}
	if _, err := k.Decode(0x3); err == nil {
		t.Error("expected ErrInvalidCodedIndex for a tag with no candidate table")
	}
}

func TestCodedIndexKind_Width(t *testing.T) {
	tests := []struct {
		name      string
		kind      CodedIndexKind
		rowCounts map[TableIndex]uint32
		want      int
	}{
		{
			name:      "TypeDefOrRef narrow",
			kind:      TypeDefOrRef,
			rowCounts: map[TableIndex]uint32{TypeDef: 100, TypeRef: 50, TypeSpec: 0},
			want:      2,
		},
		{
			name:      "TypeDefOrRef wide: TypeDef at the 2^14 boundary",
			kind:      TypeDefOrRef,
			rowCounts: map[TableIndex]uint32{TypeDef: 16384, TypeRef: 0, TypeSpec: 0},
			want:      4,
		},
		{
			name:      "TypeDefOrRef narrow: TypeDef one below the boundary",
			kind:      TypeDefOrRef,
			rowCounts: map[TableIndex]uint32{TypeDef: 16383, TypeRef: 0, TypeSpec: 0},
			want:      2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fn := func(t TableIndex) uint32 { return tc.rowCounts[t] }
			if got := tc.kind.Width(fn); got != tc.want {
				t.Errorf("Width() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestTableIndex_String(t *testing.T) {
	if got, want := TypeDef.String(), "TypeDef"; got != want {
		t.Errorf("TypeDef.String() = %q, want %q", got, want)
	}
	if got := TableIndex(0x7F).String(); got != "Table(0x7F)" {
		t.Errorf("unknown table String() = %q, want Table(0x7F)", got)
	}
}
