package metadata

import (
	"encoding/binary"
	"testing"

	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// --- synthetic metadata root builder ---
//
// Builds the smallest possible CLI metadata root blob exercising the
// scenarios named in spec.md §8: a Module row, an Assembly row, and a
// TypeDef table with one nested type. Every heap index used here is
// narrow (2 bytes) and every coded-index/simple-index column is also
// narrow, since every row count involved is tiny — this keeps the
// row layout arithmetic in sync with mdtable's width rules without
// needing to special-case wide indices.

type stringHeapBuilder struct{ buf []byte }

func newStringHeapBuilder() *stringHeapBuilder {
	return &stringHeapBuilder{buf: []byte{0}}
}

func (b *stringHeapBuilder) add(s string) uint32 {
	off := uint32(len(b.buf))
	b.buf = append(b.buf, []byte(s)...)
	b.buf = append(b.buf, 0)
	return off
}

func le16(v uint32) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func alignedStreamName(name string) []byte {
	b := append([]byte(name), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// buildTestImage assembles a metadata root with a Module table (1
// row), an Assembly table (1 row), a TypeDef table (3 rows: two
// top-level, one nested under the second), and a NestedClass table
// pairing (3 -> 2), matching spec.md §8 scenarios 1-3.
func buildTestImage(t *testing.T) []byte {
	t.Helper()

	strs := newStringHeapBuilder()
	moduleName := strs.add("HelloWorld.dll")
	asmName := strs.add("HelloWorld")
	type1Name := strs.add("Type1")
	type2Name := strs.add("Type2")
	type3Name := strs.add("Type3")
	nsName := strs.add("NS")

	var rows []byte

	// Module row (Generation, Name, Mvid, EncId, EncBaseId).
	moduleRow := concat(le16(0), le16(moduleName), le16(0), le16(0), le16(0))

	// TypeDef rows (Flags, Name, Namespace, Extends, FieldList, MethodList).
	typeDef1 := concat(le32(0x00000001), le16(type1Name), le16(nsName), le16(0), le16(1), le16(1))
	typeDef2 := concat(le32(0x00000001), le16(type2Name), le16(nsName), le16(0), le16(1), le16(1))
	typeDef3 := concat(le32(0x00000002), le16(type3Name), le16(0), le16(0), le16(1), le16(1))

	// Assembly row (HashAlgId, Major, Minor, Build, Revision, Flags,
	// PublicKey, Name, Culture).
	assemblyRow := concat(le32(0x8004), le16(1), le16(0), le16(0), le16(0), le32(0), le16(0), le16(asmName), le16(0))

	// NestedClass row: rid 3 (Type3) nested under rid 2 (Type2).
	nestedClassRow := concat(le16(3), le16(2))

	rows = concat(moduleRow, typeDef1, typeDef2, typeDef3, assemblyRow, nestedClassRow)
	_ = rows

	var valid uint64
	valid |= 1 << uint(token.Module)
	valid |= 1 << uint(token.TypeDef)
	valid |= 1 << uint(token.Assembly)
	valid |= 1 << uint(token.NestedClass)

	tablesHeader := concat(
		le32(0),           // reserved
		[]byte{2, 0},      // major, minor version
		[]byte{0},         // heap sizes: all narrow
		[]byte{0},         // reserved
		le64(valid),
		le64(0), // sorted
	)

	rowCounts := concat(le32(1), le32(3), le32(1), le32(1)) // Module, TypeDef, Assembly, NestedClass

	tablesBody := concat(moduleRow, typeDef1, typeDef2, typeDef3, assemblyRow, nestedClassRow)

	tablesStream := concat(tablesHeader, rowCounts, tablesBody)
	stringsStream := strs.buf

	const headerFixed = 4 + 2 + 2 + 4 + 4 + 8 + 2 + 2 // sig,major,minor,reserved,verLen,verBytes(8),flags,numStreams
	tablesNameBytes := alignedStreamName("#~")
	stringsNameBytes := alignedStreamName("#Strings")
	streamHeaderLen := (4 + 4 + len(tablesNameBytes)) + (4 + 4 + len(stringsNameBytes))
	dataStart := headerFixed + streamHeaderLen

	tablesOffset := uint32(dataStart)
	stringsOffset := tablesOffset + uint32(len(tablesStream))

	root := concat(
		le32(0x424A5342),
		[]byte{1, 0, 1, 0}, // major=1, minor=1 (little-endian u16 pairs)
		le32(0),            // reserved
		le32(8),
		[]byte("clrtest\x00"),
		le16(0), // flags
		le16(2), // numStreams

		le32(tablesOffset), le32(uint32(len(tablesStream))), tablesNameBytes,
		le32(stringsOffset), le32(uint32(len(stringsStream))), stringsNameBytes,

		tablesStream,
		stringsStream,
	)

	return root
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func TestLoad_HelloWorldReadName(t *testing.T) {
	blob := buildTestImage(t)
	module, assembly, err := load(blob)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if assembly == nil {
		t.Fatal("expected a non-nil assembly")
	}
	if got := assembly.Name(); got != "HelloWorld" {
		t.Errorf("assembly.Name() = %q, want HelloWorld", got)
	}
	want := Version{Major: 1, Minor: 0, Build: 0, Revision: 0}
	if got := assembly.AssemblyVersion(); got != want {
		t.Errorf("assembly.AssemblyVersion() = %+v, want %+v", got, want)
	}
	if got := module.Name(); got != "HelloWorld.dll" {
		t.Errorf("module.Name() = %q, want HelloWorld.dll", got)
	}
}

func TestLoad_SingleModule(t *testing.T) {
	blob := buildTestImage(t)
	_, assembly, err := load(blob)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n := assembly.Modules().Len(); n != 1 {
		t.Fatalf("assembly.Modules().Len() = %d, want 1", n)
	}
	manifest := assembly.ManifestModule()
	if manifest != assembly.Modules().At(0) {
		t.Error("ManifestModule() != Modules().At(0)")
	}
	if manifest.Assembly() != assembly {
		t.Error("module.Assembly() does not point back to the owning assembly")
	}
}

func TestLoad_TopLevelVsNested(t *testing.T) {
	blob := buildTestImage(t)
	module, _, err := load(blob)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	top := module.TopLevelTypes().Items()
	if len(top) != 2 {
		t.Fatalf("len(TopLevelTypes()) = %d, want 2", len(top))
	}
	if top[0].Name() != "Type1" || top[1].Name() != "Type2" {
		t.Errorf("top-level names = %q, %q; want Type1, Type2", top[0].Name(), top[1].Name())
	}

	type2 := top[1]
	nested := type2.NestedTypes().Items()
	if len(nested) != 1 {
		t.Fatalf("len(Type2.NestedTypes()) = %d, want 1", len(nested))
	}
	if nested[0].Name() != "Type3" {
		t.Errorf("nested[0].Name() = %q, want Type3", nested[0].Name())
	}
	if nested[0].DeclaringType() != type2 {
		t.Error("Type3.DeclaringType() != Type2")
	}
	if nested[0].DeclaringType() == nil {
		t.Fatal("nested type unexpectedly has nil DeclaringType")
	}
	for _, top := range top {
		if top.DeclaringType() != nil {
			t.Errorf("top-level type %s has non-nil DeclaringType", top.Name())
		}
	}
}

func TestLoad_FullName(t *testing.T) {
	blob := buildTestImage(t)
	module, _, err := load(blob)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	type2 := module.TopLevelTypes().At(1)
	if got := type2.FullName(); got != "NS.Type2" {
		t.Errorf("Type2.FullName() = %q, want NS.Type2", got)
	}

	type3 := type2.NestedTypes().At(0)
	if got := type3.FullName(); got != "NS.Type2/Type3" {
		t.Errorf("Type3.FullName() = %q, want NS.Type2/Type3", got)
	}

	type2.SetName("Renamed")
	if got := type2.FullName(); got != "NS.Renamed" {
		t.Errorf("after rename, Type2.FullName() = %q, want NS.Renamed", got)
	}
	if got := type3.FullName(); got != "NS.Renamed/Type3" {
		t.Errorf("after owner rename, Type3.FullName() = %q, want NS.Renamed/Type3", got)
	}
}

func TestLoad_LookupMemberIdentity(t *testing.T) {
	blob := buildTestImage(t)
	module, _, err := load(blob)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tok := module.TopLevelTypes().At(0).Token()
	first, err := module.LookupMember(tok)
	if err != nil {
		t.Fatalf("LookupMember: %v", err)
	}
	second, err := module.LookupMember(tok)
	if err != nil {
		t.Fatalf("LookupMember: %v", err)
	}
	if first != second {
		t.Error("two LookupMember calls for the same token returned different pointers")
	}
}

func TestModuleDefinition_LookupMember_NotSerialized(t *testing.T) {
	m := NewModuleDefinition(token.New(token.Module, 1))
	if _, err := m.LookupMember(token.New(token.TypeDef, 1)); err != ErrNotSerialized {
		t.Errorf("LookupMember on unbacked module = %v, want ErrNotSerialized", err)
	}
}

func TestTypeDefinition_FullNameInvalidatesThroughNestingLevels(t *testing.T) {
	outer := NewTypeDefinition(token.New(token.TypeDef, 1))
	outer.SetNamespace("NS")
	outer.SetName("Outer")

	middle := NewTypeDefinition(token.New(token.TypeDef, 2))
	middle.SetName("Middle")
	if err := outer.NestedTypes().Add(middle); err != nil {
		t.Fatalf("outer.NestedTypes().Add(middle): %v", err)
	}

	inner := NewTypeDefinition(token.New(token.TypeDef, 3))
	inner.SetName("Inner")
	if err := middle.NestedTypes().Add(inner); err != nil {
		t.Fatalf("middle.NestedTypes().Add(inner): %v", err)
	}

	if got, want := inner.FullName(), "NS.Outer/Middle/Inner"; got != want {
		t.Fatalf("inner.FullName() = %q, want %q", got, want)
	}

	// Renaming the grandparent must invalidate both descendants' cached
	// FullName, not just its immediate child's.
	outer.SetName("Renamed")
	if got, want := middle.FullName(), "NS.Renamed/Middle"; got != want {
		t.Errorf("after grandparent rename, middle.FullName() = %q, want %q", got, want)
	}
	if got, want := inner.FullName(), "NS.Renamed/Middle/Inner"; got != want {
		t.Errorf("after grandparent rename, inner.FullName() = %q, want %q", got, want)
	}
}
