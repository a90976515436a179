// Package token implements metadata tokens and coded indices: the two
// ways ECMA-335 metadata refers to a row of another (or the same) table.
package token

// TableIndex identifies one of the 38 metadata tables by its ECMA-335
// table number.
type TableIndex uint8

// The 38 metadata tables, numbered per ECMA-335 §II.22, plus the
// legacy/deprecated indices the `valid` header bitmask can still name.
const (
	Module                 TableIndex = 0x00
	TypeRef                TableIndex = 0x01
	TypeDef                TableIndex = 0x02
	FieldPtr               TableIndex = 0x03
	Field                  TableIndex = 0x04
	MethodPtr              TableIndex = 0x05
	MethodDef              TableIndex = 0x06
	ParamPtr               TableIndex = 0x07
	Param                  TableIndex = 0x08
	InterfaceImpl          TableIndex = 0x09
	MemberRef              TableIndex = 0x0A
	Constant               TableIndex = 0x0B
	CustomAttribute        TableIndex = 0x0C
	FieldMarshal           TableIndex = 0x0D
	DeclSecurity           TableIndex = 0x0E
	ClassLayout            TableIndex = 0x0F
	FieldLayout            TableIndex = 0x10
	StandAloneSig          TableIndex = 0x11
	EventMap               TableIndex = 0x12
	EventPtr               TableIndex = 0x13
	Event                  TableIndex = 0x14
	PropertyMap            TableIndex = 0x15
	PropertyPtr            TableIndex = 0x16
	Property               TableIndex = 0x17
	MethodSemantics        TableIndex = 0x18
	MethodImpl             TableIndex = 0x19
	ModuleRef              TableIndex = 0x1A
	TypeSpec               TableIndex = 0x1B
	ImplMap                TableIndex = 0x1C
	FieldRVA               TableIndex = 0x1D
	ENCLog                 TableIndex = 0x1E
	ENCMap                 TableIndex = 0x1F
	Assembly               TableIndex = 0x20
	AssemblyProcessor      TableIndex = 0x21
	AssemblyOS             TableIndex = 0x22
	AssemblyRef            TableIndex = 0x23
	AssemblyRefProcessor   TableIndex = 0x24
	AssemblyRefOS          TableIndex = 0x25
	File                   TableIndex = 0x26
	ExportedType           TableIndex = 0x27
	ManifestResource       TableIndex = 0x28
	NestedClass            TableIndex = 0x29
	GenericParam           TableIndex = 0x2A
	MethodSpec             TableIndex = 0x2B
	GenericParamConstraint TableIndex = 0x2C
)

// tableNames maps a table index to its ECMA-335 name for diagnostics.
var tableNames = map[TableIndex]string{
	Module: "Module", TypeRef: "TypeRef", TypeDef: "TypeDef",
	FieldPtr: "FieldPtr", Field: "Field", MethodPtr: "MethodPtr",
	MethodDef: "MethodDef", ParamPtr: "ParamPtr", Param: "Param",
	InterfaceImpl: "InterfaceImpl", MemberRef: "MemberRef",
	Constant: "Constant", CustomAttribute: "CustomAttribute",
	FieldMarshal: "FieldMarshal", DeclSecurity: "DeclSecurity",
	ClassLayout: "ClassLayout", FieldLayout: "FieldLayout",
	StandAloneSig: "StandAloneSig", EventMap: "EventMap",
	EventPtr: "EventPtr", Event: "Event", PropertyMap: "PropertyMap",
	PropertyPtr: "PropertyPtr", Property: "Property",
	MethodSemantics: "MethodSemantics", MethodImpl: "MethodImpl",
	ModuleRef: "ModuleRef", TypeSpec: "TypeSpec", ImplMap: "ImplMap",
	FieldRVA: "FieldRVA", ENCLog: "ENCLog", ENCMap: "ENCMap",
	Assembly: "Assembly", AssemblyProcessor: "AssemblyProcessor",
	AssemblyOS: "AssemblyOS", AssemblyRef: "AssemblyRef",
	AssemblyRefProcessor: "AssemblyRefProcessor", AssemblyRefOS: "AssemblyRefOS",
	File: "File", ExportedType: "ExportedType",
	ManifestResource: "ManifestResource", NestedClass: "NestedClass",
	GenericParam: "GenericParam", MethodSpec: "MethodSpec",
	GenericParamConstraint: "GenericParamConstraint",
}

// String returns the table's ECMA-335 name, or a numeric fallback.
func (t TableIndex) String() string {
	if name, ok := tableNames[t]; ok {
		return name
	}
	return "Table(0x" + hexByte(uint8(t)) + ")"
}

func hexByte(b uint8) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0xF]})
}

// Token is a 32-bit metadata token: an 8-bit table tag packed with a
// 24-bit row id. A zero row id means "no reference" (§3).
type Token uint32

// Null is the token representing "no reference".
const Null Token = 0

// New packs a table index and row id into a Token.
func New(table TableIndex, rid uint32) Token {
	return Token(uint32(table)<<24 | (rid & 0x00FFFFFF))
}

// FromU32 reinterprets a raw 32-bit value as a Token.
func FromU32(raw uint32) Token { return Token(raw) }

// ToU32 returns the raw 32-bit encoding of the token.
func (t Token) ToU32() uint32 { return uint32(t) }

// Table returns the token's table tag.
func (t Token) Table() TableIndex { return TableIndex(uint32(t) >> 24) }

// RID returns the token's 1-based row id, or 0 if null.
func (t Token) RID() uint32 { return uint32(t) & 0x00FFFFFF }

// IsNull reports whether the token's row id is zero (§3).
func (t Token) IsNull() bool { return t.RID() == 0 }

// String renders the token as "Table[0x000001]" for diagnostics.
func (t Token) String() string {
	return t.Table().String() + "[0x" + hex6(t.RID()) + "]"
}

func hex6(v uint32) string {
	const digits = "0123456789ABCDEF"
	out := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		out[i] = digits[v&0xF]
		v >>= 4
	}
	return string(out)
}
