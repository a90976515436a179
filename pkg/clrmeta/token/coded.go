package token

import "github.com/pkg/errors"

// ErrInvalidCodedIndex signals a coded index whose tag selects a
// candidate table outside the kind's table list (§7).
var ErrInvalidCodedIndex = errors.New("token: invalid coded index")

// CodedIndexKind describes one of the coded-index reference schemes in
// ECMA-335 §II.24.2.6: a fixed tag-bit count and an ordered candidate
// table list. The tag is the low TagBits bits of the encoded value; it
// selects Candidates[tag].
type CodedIndexKind struct {
	Name       string
	TagBits    uint
	Candidates []TableIndex
}

// The thirteen coded-index kinds named in spec.md §4.D, with exactly the
// candidate ordering ECMA-335 defines — implementers must reproduce this
// ordering exactly, since the tag is a positional index into it.
var (
	TypeDefOrRef = CodedIndexKind{
		Name: "TypeDefOrRef", TagBits: 2,
		Candidates: []TableIndex{TypeDef, TypeRef, TypeSpec},
	}
	HasConstant = CodedIndexKind{
		Name: "HasConstant", TagBits: 2,
		Candidates: []TableIndex{Field, Param, Property},
	}
	HasCustomAttribute = CodedIndexKind{
		Name: "HasCustomAttribute", TagBits: 5,
		Candidates: []TableIndex{
			MethodDef, Field, TypeRef, TypeDef, Param, InterfaceImpl, MemberRef,
			Module, DeclSecurity, Property, Event, StandAloneSig, ModuleRef,
			TypeSpec, Assembly, AssemblyRef, File, ExportedType, ManifestResource,
			GenericParam, GenericParamConstraint, MethodSpec,
		},
	}
	HasFieldMarshal = CodedIndexKind{
		Name: "HasFieldMarshal", TagBits: 1,
		Candidates: []TableIndex{Field, Param},
	}
	HasDeclSecurity = CodedIndexKind{
		Name: "HasDeclSecurity", TagBits: 2,
		Candidates: []TableIndex{TypeDef, MethodDef, Assembly},
	}
	MemberRefParent = CodedIndexKind{
		Name: "MemberRefParent", TagBits: 3,
		Candidates: []TableIndex{TypeDef, TypeRef, ModuleRef, MethodDef, TypeSpec},
	}
	HasSemantics = CodedIndexKind{
		Name: "HasSemantics", TagBits: 1,
		Candidates: []TableIndex{Event, Property},
	}
	MethodDefOrRef = CodedIndexKind{
		Name: "MethodDefOrRef", TagBits: 1,
		Candidates: []TableIndex{MethodDef, MemberRef},
	}
	MemberForwarded = CodedIndexKind{
		Name: "MemberForwarded", TagBits: 1,
		Candidates: []TableIndex{Field, MethodDef},
	}
	Implementation = CodedIndexKind{
		Name: "Implementation", TagBits: 2,
		Candidates: []TableIndex{File, AssemblyRef, ExportedType},
	}
	CustomAttributeType = CodedIndexKind{
		Name: "CustomAttributeType", TagBits: 3,
		Candidates: []TableIndex{TypeRef, TypeRef, MethodDef, MemberRef, TypeRef},
	}
	ResolutionScope = CodedIndexKind{
		Name: "ResolutionScope", TagBits: 2,
		Candidates: []TableIndex{Module, ModuleRef, AssemblyRef, TypeRef},
	}
	TypeOrMethodDef = CodedIndexKind{
		Name: "TypeOrMethodDef", TagBits: 1,
		Candidates: []TableIndex{TypeDef, MethodDef},
	}
)

// AllCodedIndexKinds lists every kind, for table-layout computation.
var AllCodedIndexKinds = []CodedIndexKind{
	TypeDefOrRef, HasConstant, HasCustomAttribute, HasFieldMarshal,
	HasDeclSecurity, MemberRefParent, HasSemantics, MethodDefOrRef,
	MemberForwarded, Implementation, CustomAttributeType, ResolutionScope,
	TypeOrMethodDef,
}

// RowCountFunc reports the current row count of a table, used to decide
// a coded index's on-disk byte width.
type RowCountFunc func(TableIndex) uint32

// Width returns 2 or 4: the byte width of this coded index kind given a
// table's row counts (ECMA-335 §II.24.2.6). A 2-byte coded index has
// 16 bits total, TagBits of which select the table, leaving 16-TagBits
// bits for the row id; 4 bytes are needed as soon as some candidate
// table's row count no longer fits in that many bits, i.e. rowCount >=
// 2^(16-TagBits) — not strictly greater, since a row count exactly equal
// to the limit already overflows the available bits (row id 0 is
// reserved for "null", so valid rids run 1..rowCount inclusive).
func (k CodedIndexKind) Width(rowCount RowCountFunc) int {
	limit := uint32(1) << (16 - k.TagBits)
	for _, table := range k.Candidates {
		if rowCount(table) >= limit {
			return 4
		}
	}
	return 2
}

// Decode splits a raw coded-index value into a metadata token: the low
// TagBits bits select the candidate table, the remainder is the row id.
func (k CodedIndexKind) Decode(raw uint32) (Token, error) {
	tagMask := uint32(1)<<k.TagBits - 1
	tag := raw & tagMask
	rid := raw >> k.TagBits
	if int(tag) >= len(k.Candidates) {
		return Null, errors.Wrapf(ErrInvalidCodedIndex, "%s: tag %d has no candidate table (raw=0x%x)", k.Name, tag, raw)
	}
	return New(k.Candidates[tag], rid), nil
}

// Encode packs a token into this kind's coded-index representation. It
// returns an error if the token's table is not among the kind's
// candidates.
func (k CodedIndexKind) Encode(t Token) (uint32, error) {
	for tag, table := range k.Candidates {
		if table == t.Table() {
			return (t.RID() << k.TagBits) | uint32(tag), nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidCodedIndex, "%s: table %s is not a candidate", k.Name, t.Table())
}
