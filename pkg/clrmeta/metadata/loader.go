package metadata

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/opcode9/clrmeta/pkg/clrmeta/heaps"
	"github.com/opcode9/clrmeta/pkg/clrmeta/mdtable"
	"github.com/opcode9/clrmeta/pkg/clrmeta/peimage"
	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// ErrBadImageFormat signals a structurally invalid metadata directory:
// a missing required stream, an unparseable tables stream, or a module
// with no Assembly table row where one was required (§7).
var ErrBadImageFormat = errors.New("metadata: bad image format")

const (
	tablesStreamName  = "#~"
	stringsStreamName = "#Strings"
	blobStreamName    = "#Blob"
	guidStreamName    = "#GUID"
)

// PEImage is the external capability named in spec.md §6: access to a
// loaded PE image's CLI metadata root blob. peimage.Image satisfies this
// interface structurally; callers with a richer PE loader can supply
// their own implementation and bypass this module's walker entirely.
type PEImage interface {
	MetadataBlob() ([]byte, error)
}

// load decodes a metadata root blob into a ModuleDefinition (row 1 of
// the Module table) and, if present, the AssemblyDefinition owning it
// (row 1 of the Assembly table) — the control flow named in spec.md
// §2's "Control flow on load".
func load(metadataBlob []byte) (*ModuleDefinition, *AssemblyDefinition, error) {
	root, err := heaps.ParseRoot(metadataBlob)
	if err != nil {
		return nil, nil, errors.Wrap(err, "metadata: parsing metadata root")
	}

	tablesBytes, ok := root[tablesStreamName]
	if !ok {
		return nil, nil, errors.Wrap(ErrBadImageFormat, "metadata root has no #~ tables stream")
	}
	tables, err := mdtable.ParseStream(tablesBytes)
	if err != nil {
		return nil, nil, errors.Wrap(err, "metadata: parsing tables stream")
	}

	stringsHeap := heaps.NewStringsStream(root[stringsStreamName])
	blobs := heaps.NewBlobStream(root[blobStreamName])
	guids := heaps.NewGuidStream(root[guidStreamName])

	module, err := newSerializedModule(tables, stringsHeap, blobs, guids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "metadata: building module")
	}

	var assembly *AssemblyDefinition
	if tables.RowCount(token.Assembly) >= 1 {
		row := tables.RowAt(token.Assembly, 1)
		assembly = newSerializedAssembly(module, row)
		if err := assembly.modules.Add(module); err != nil {
			return nil, nil, errors.Wrap(err, "metadata: attaching manifest module")
		}
	}

	return module, assembly, nil
}

// AssemblyFromBytes loads an assembly from a raw PE image's bytes
// (§6's AssemblyDefinition::from_bytes). Returns ErrBadImageFormat if
// the image's manifest module has no Assembly table row.
func AssemblyFromBytes(data []byte) (*AssemblyDefinition, error) {
	img, err := peimage.Open(data)
	if err != nil {
		return nil, errors.Wrap(err, "metadata: opening PE image")
	}
	return AssemblyFromImage(img)
}

// AssemblyFromFile loads an assembly from a file path (§6's
// AssemblyDefinition::from_file).
func AssemblyFromFile(path string) (*AssemblyDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "metadata: reading %s", path)
	}
	return AssemblyFromBytes(data)
}

// AssemblyFromReader loads an assembly by reading r to completion
// (§6's AssemblyDefinition::from_reader).
func AssemblyFromReader(r io.Reader) (*AssemblyDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "metadata: reading image bytes")
	}
	return AssemblyFromBytes(data)
}

// AssemblyFromImage loads an assembly from an already-opened PEImage
// (§6's AssemblyDefinition::from_image).
func AssemblyFromImage(img PEImage) (*AssemblyDefinition, error) {
	blob, err := img.MetadataBlob()
	if err != nil {
		return nil, errors.Wrap(err, "metadata: locating metadata root")
	}
	_, assembly, err := load(blob)
	if err != nil {
		return nil, err
	}
	if assembly == nil {
		return nil, errors.Wrap(ErrBadImageFormat, "module has no Assembly table row")
	}
	return assembly, nil
}

// ModuleFromBytes loads a standalone module from a raw PE image's
// bytes (§6's ModuleDefinition::from_bytes). Unlike AssemblyFromBytes,
// this succeeds even for a netmodule with no Assembly table row.
func ModuleFromBytes(data []byte) (*ModuleDefinition, error) {
	img, err := peimage.Open(data)
	if err != nil {
		return nil, errors.Wrap(err, "metadata: opening PE image")
	}
	return ModuleFromImage(img)
}

// ModuleFromFile loads a standalone module from a file path (§6's
// ModuleDefinition::from_file).
func ModuleFromFile(path string) (*ModuleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "metadata: reading %s", path)
	}
	return ModuleFromBytes(data)
}

// ModuleFromReader loads a standalone module by reading r to
// completion (§6's ModuleDefinition::from_reader).
func ModuleFromReader(r io.Reader) (*ModuleDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "metadata: reading image bytes")
	}
	return ModuleFromBytes(data)
}

// ModuleFromImage loads a standalone module from an already-opened
// PEImage (§6's ModuleDefinition::from_image).
func ModuleFromImage(img PEImage) (*ModuleDefinition, error) {
	blob, err := img.MetadataBlob()
	if err != nil {
		return nil, errors.Wrap(err, "metadata: locating metadata root")
	}
	module, _, err := load(blob)
	if err != nil {
		return nil, err
	}
	return module, nil
}
