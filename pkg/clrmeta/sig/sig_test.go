package sig

import (
	"testing"

	"github.com/opcode9/clrmeta/pkg/clrmeta/bio"
)

func TestMethodSignatureFromReader_SimpleStatic(t *testing.T) {
	// void Foo(int32): default calling convention, 1 param.
	data := []byte{0x00, 0x01, 0x01, 0x08}
	ms, err := MethodSignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("MethodSignatureFromReader: %v", err)
	}
	if ms.HasThis {
		t.Error("HasThis = true, want false")
	}
	if len(ms.Params) != 1 {
		t.Fatalf("len(Params) = %d, want 1", len(ms.Params))
	}
	if got, want := ms.String(), "void (int)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMethodSignatureFromReader_InstanceWithClassParam(t *testing.T) {
	// string Foo(int32, SomeType): HASTHIS, 2 params, second is a CLASS
	// referencing TypeDef rid 5.
	data := []byte{0x20, 0x02, 0x0E, 0x08, 0x12, 0x14}
	ms, err := MethodSignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("MethodSignatureFromReader: %v", err)
	}
	if !ms.HasThis {
		t.Error("HasThis = false, want true")
	}
	if got, want := ms.String(), "string (int, TypeDef[0x000005])"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMethodSignatureFromReader_Sentinel(t *testing.T) {
	// void Foo(int32, ..., int32): VARARG calling convention, sentinel
	// before the second parameter.
	data := []byte{0x05, 0x02, 0x01, 0x08, 0x41, 0x08}
	ms, err := MethodSignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("MethodSignatureFromReader: %v", err)
	}
	if ms.SentinelIndex != 1 {
		t.Fatalf("SentinelIndex = %d, want 1", ms.SentinelIndex)
	}
	if got, want := ms.String(), "void (int, ..., int)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTypeSignatureFromReader_SZArray(t *testing.T) {
	data := []byte{0x1D, 0x08} // int32[]
	ts, err := TypeSignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("TypeSignatureFromReader: %v", err)
	}
	if ts.ElementType != ElementTypeSZArray {
		t.Fatalf("ElementType = %v, want SZArray", ts.ElementType)
	}
	if got, want := ts.String(), "int[]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTypeSignatureFromReader_GenericInst(t *testing.T) {
	// A generic instantiation of TypeDef rid 1 over (int32, string).
	data := []byte{
		0x15,       // GENERICINST
		0x12, 0x04, // CLASS, TypeDefOrRefOrSpec(tag=0,rid=1)
		0x02, // arg count = 2
		0x08, // int32
		0x0E, // string
	}
	ts, err := TypeSignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("TypeSignatureFromReader: %v", err)
	}
	if len(ts.GenericArgs) != 2 {
		t.Fatalf("len(GenericArgs) = %d, want 2", len(ts.GenericArgs))
	}
	if got, want := ts.String(), "TypeDef[0x000001]<int, string>"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTypeSignatureFromReader_CustomModifiers(t *testing.T) {
	data := []byte{
		0x1F, 0x04, // CMOD_REQD, TypeDefOrRefOrSpec(tag=0,rid=1)
		0x08, // int32
	}
	ts, err := TypeSignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("TypeSignatureFromReader: %v", err)
	}
	if len(ts.Modifiers) != 1 || !ts.Modifiers[0].Required {
		t.Fatalf("Modifiers = %v, want one required modifier", ts.Modifiers)
	}
	if got, want := ts.String(), "modreq(TypeDef[0x000001]) int"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFieldSignatureFromReader(t *testing.T) {
	data := []byte{0x06, 0x08} // int32 field
	fs, err := FieldSignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("FieldSignatureFromReader: %v", err)
	}
	if got, want := fs.String(), "int"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFieldSignatureFromReader_BadLeadByte(t *testing.T) {
	data := []byte{0x00, 0x08}
	if _, err := FieldSignatureFromReader(bio.NewReader(data)); err == nil {
		t.Error("expected an error for a field signature with a bad leading byte")
	}
}

func TestPropertySignatureFromReader_NonIndexer(t *testing.T) {
	data := []byte{0x08, 0x00, 0x02} // bool property, no params
	ps, err := PropertySignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("PropertySignatureFromReader: %v", err)
	}
	if ps.HasThis {
		t.Error("HasThis = true, want false")
	}
	if got, want := ps.String(), "bool"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPropertySignatureFromReader_Indexer(t *testing.T) {
	data := []byte{0x28, 0x01, 0x0E, 0x08} // string this[int], instance property
	ps, err := PropertySignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("PropertySignatureFromReader: %v", err)
	}
	if !ps.HasThis {
		t.Error("HasThis = false, want true")
	}
	if got, want := ps.String(), "string this[int]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestLocalVarSignatureFromReader(t *testing.T) {
	data := []byte{0x07, 0x02, 0x1C, 0x10, 0x0E} // object, ref string
	lv, err := LocalVarSignatureFromReader(bio.NewReader(data))
	if err != nil {
		t.Fatalf("LocalVarSignatureFromReader: %v", err)
	}
	if len(lv.Locals) != 2 {
		t.Fatalf("len(Locals) = %d, want 2", len(lv.Locals))
	}
	if lv.Locals[1].ByRef != true {
		t.Errorf("Locals[1].ByRef = %v, want true", lv.Locals[1].ByRef)
	}
	if got, want := lv.String(), "(object, ref string)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
