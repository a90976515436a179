package resolve

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/opcode9/clrmeta/pkg/clrmeta/metadata"
	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// --- synthetic PE + metadata builder ---
//
// probeSearchDirectories hands a hit straight to
// metadata.AssemblyFromFile, which requires a real PE image, not a bare
// metadata root blob. buildTestAssembly wraps the smallest possible CLI
// metadata root (one Module row, one Assembly row) in the minimum
// MS-DOS/PE/COFF/CLR-header scaffolding peimage.Open needs to locate it.

func rle16(v uint32) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func rle32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func rconcat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func rAlignedStreamName(name string) []byte {
	b := append([]byte(name), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// buildMetadataBlob assembles a minimal metadata root with a Module
// table (1 row) and an Assembly table (1 row) named assemblyName.
func buildMetadataBlob(assemblyName string) []byte {
	stringsHeap := []byte{0}
	addString := func(s string) uint32 {
		off := uint32(len(stringsHeap))
		stringsHeap = append(stringsHeap, []byte(s)...)
		stringsHeap = append(stringsHeap, 0)
		return off
	}
	moduleNameOff := addString(assemblyName + ".dll")
	asmNameOff := addString(assemblyName)

	moduleRow := rconcat(rle16(0), rle16(moduleNameOff), rle16(0), rle16(0), rle16(0))
	assemblyRow := rconcat(rle32(0x8004), rle16(1), rle16(0), rle16(0), rle16(0), rle32(0), rle16(0), rle16(asmNameOff), rle16(0))

	var valid uint64
	valid |= 1 << uint(token.Module)
	valid |= 1 << uint(token.Assembly)

	tablesHeader := rconcat(
		rle32(0),
		[]byte{2, 0, 0, 0},
		leU64(valid),
		leU64(0),
	)
	rowCounts := rconcat(rle32(1), rle32(1)) // Module, Assembly
	tablesStream := rconcat(tablesHeader, rowCounts, moduleRow, assemblyRow)

	const headerFixed = 4 + 2 + 2 + 4 + 4 + 8 + 2 + 2
	tablesName := rAlignedStreamName("#~")
	stringsName := rAlignedStreamName("#Strings")
	streamHeaderLen := (4 + 4 + len(tablesName)) + (4 + 4 + len(stringsName))
	dataStart := headerFixed + streamHeaderLen

	tablesOffset := uint32(dataStart)
	stringsOffset := tablesOffset + uint32(len(tablesStream))

	return rconcat(
		rle32(0x424A5342),
		[]byte{1, 0, 1, 0},
		rle32(0),
		rle32(8),
		[]byte("clrtest\x00"),
		rle16(0),
		rle16(2),

		rle32(tablesOffset), rle32(uint32(len(tablesStream))), tablesName,
		rle32(stringsOffset), rle32(uint32(len(stringsHeap))), stringsName,

		tablesStream,
		stringsHeap,
	)
}

func leU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// buildTestAssembly wraps a metadata root for assemblyName in a minimal
// PE32 image with one section and a CLR runtime header pointing at it.
func buildTestAssembly(assemblyName string) []byte {
	metadataBlob := buildMetadataBlob(assemblyName)

	const (
		dosHeaderSize        = 64
		peOffset             = dosHeaderSize
		sizeOfOptionalHeader = 224 // standard PE32 optional header + 16 data dirs
		comHeaderDirIndex    = 14
		sectionVA            = 0x2000
		clrHeaderSize        = 72
	)

	coffOffset := peOffset + 4
	optOffset := coffOffset + 20
	dataDirOffset := optOffset + 96
	sectionTableOffset := optOffset + sizeOfOptionalHeader
	rawDataOffset := sectionTableOffset + 40 // one section header

	clrRVA := uint32(sectionVA)
	metadataRVA := clrRVA + clrHeaderSize
	metadataSize := uint32(len(metadataBlob))
	dataSize := clrHeaderSize + int(metadataSize)

	dos := make([]byte, dosHeaderSize)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3C:], uint32(peOffset))

	coff := rconcat(
		[]byte("PE\x00\x00"),
		rle16(0x014c), // Machine: I386, unused by peimage
		rle16(1),      // NumberOfSections
		rle32(0),      // TimeDateStamp
		rle32(0),      // PointerToSymbolTable
		rle32(0),      // NumberOfSymbols
		rle16(sizeOfOptionalHeader),
		rle16(0), // Characteristics
	)

	optional := make([]byte, sizeOfOptionalHeader)
	binary.LittleEndian.PutUint16(optional[0:], 0x10b) // PE32 magic

	dirEntryOffset := (dataDirOffset - optOffset) + comHeaderDirIndex*8
	binary.LittleEndian.PutUint32(optional[dirEntryOffset:], clrRVA)
	binary.LittleEndian.PutUint32(optional[dirEntryOffset+4:], uint32(clrHeaderSize))

	section := make([]byte, 40)
	copy(section[0:8], ".cli\x00\x00\x00\x00")
	binary.LittleEndian.PutUint32(section[8:], uint32(dataSize))    // VirtualSize
	binary.LittleEndian.PutUint32(section[12:], uint32(sectionVA))  // VirtualAddress
	binary.LittleEndian.PutUint32(section[16:], uint32(dataSize))   // SizeOfRawData
	binary.LittleEndian.PutUint32(section[20:], uint32(rawDataOffset)) // PointerToRawData

	clrHeader := make([]byte, clrHeaderSize)
	binary.LittleEndian.PutUint32(clrHeader[8:], metadataRVA)
	binary.LittleEndian.PutUint32(clrHeader[12:], metadataSize)

	return rconcat(dos, coff, optional, section, clrHeader, metadataBlob)
}

func TestResolve_CacheIdentityAcrossRepeatCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Foo.dll")
	if err := os.WriteFile(path, buildTestAssembly("Foo"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := NewResolver(dir)
	desc := metadata.AssemblyDescriptor{Name: "Foo"}

	first, err := r.Resolve(desc)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first == nil {
		t.Fatal("Resolve() = nil, want a resolved assembly")
	}
	if got := first.Name(); got != "Foo" {
		t.Errorf("resolved assembly Name() = %q, want Foo", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	second, err := r.Resolve(desc)
	if err != nil {
		t.Fatalf("Resolve (cached) error = %v, want nil even after the file was deleted", err)
	}
	if first != second {
		t.Error("two Resolve() calls for an equal descriptor returned different pointers")
	}
}

func TestResolve_UncachedMissReturnsNilNil(t *testing.T) {
	r := NewResolver(t.TempDir())
	def, err := r.Resolve(metadata.AssemblyDescriptor{Name: "DoesNotExist"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if def != nil {
		t.Errorf("Resolve() = %v, want nil for an assembly present in no search directory", def)
	}
}

func TestProbeSearchDirectories_FallsBackToSubfolder(t *testing.T) {
	dir := t.TempDir()
	// Only the D/name/name.dll form exists; the flat D/name.dll form
	// does not. probeSearchDirectories must fall through to it.
	sub := filepath.Join(dir, "Foo")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "Foo.dll"), buildTestAssembly("Foo"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := NewResolver(dir)
	def, err := r.Resolve(metadata.AssemblyDescriptor{Name: "Foo"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if def == nil {
		t.Fatal("Resolve() = nil, want the assembly found in the name/name.dll subfolder form")
	}
}

func TestProbeSearchDirectories_DirectoryOrderIsRespected(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	// Only dirB has the file; dirA is probed first and must miss
	// cleanly rather than short-circuiting the whole search.
	if err := os.WriteFile(filepath.Join(dirB, "Foo.dll"), buildTestAssembly("Foo"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := NewResolver(dirA, dirB)
	def, err := r.Resolve(metadata.AssemblyDescriptor{Name: "Foo"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if def == nil {
		t.Fatal("Resolve() = nil, want the assembly found in the second search directory")
	}
}

func TestProbeSearchDirectories_CultureSubfolder(t *testing.T) {
	dir := t.TempDir()
	cultureDir := filepath.Join(dir, "en-US")
	if err := os.MkdirAll(cultureDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cultureDir, "Foo.dll"), buildTestAssembly("Foo"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := NewResolver(dir)
	def, err := r.Resolve(metadata.AssemblyDescriptor{Name: "Foo", Culture: "en-US"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if def == nil {
		t.Fatal("Resolve() = nil, want the assembly found under its culture subfolder")
	}
}
