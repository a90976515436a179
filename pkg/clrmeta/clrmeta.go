// Package clrmeta is a facade over pkg/clrmeta/metadata: it opens a
// .NET assembly and exposes its structure as the JSON-friendly DTOs in
// types.go, the way the teacher's pkg/pdb.PDB facade wraps its MSF/DBI/
// TPI internals behind Info/Functions/Variables/Types.
package clrmeta

import (
	"io"

	"github.com/opcode9/clrmeta/pkg/clrmeta/metadata"
)

// Assembly is an opened .NET assembly: the manifest module plus its
// owning AssemblyDefinition.
type Assembly struct {
	def *metadata.AssemblyDefinition
}

// Open loads an assembly from a file path (wraps
// metadata.AssemblyFromFile).
func Open(path string) (*Assembly, error) {
	def, err := metadata.AssemblyFromFile(path)
	if err != nil {
		return nil, err
	}
	return &Assembly{def: def}, nil
}

// FromBytes loads an assembly from raw PE image bytes.
func FromBytes(data []byte) (*Assembly, error) {
	def, err := metadata.AssemblyFromBytes(data)
	if err != nil {
		return nil, err
	}
	return &Assembly{def: def}, nil
}

// FromReader loads an assembly by reading r to completion.
func FromReader(r io.Reader) (*Assembly, error) {
	def, err := metadata.AssemblyFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Assembly{def: def}, nil
}

// Definition exposes the underlying AssemblyDefinition for callers that
// need the full lazy object model (navigation, resolution) rather than
// the flattened DTOs below.
func (a *Assembly) Definition() *metadata.AssemblyDefinition { return a.def }

// Info returns the assembly's summary information.
func (a *Assembly) Info() *AssemblyInfo {
	return &AssemblyInfo{
		Name:          a.def.Name(),
		Version:       a.def.AssemblyVersion().String(),
		Culture:       a.def.Culture(),
		HashAlgorithm: hashAlgorithmName(a.def.HashAlgorithm()),
		PublicKey:     len(a.def.PublicKey()) > 0,
		ModuleCount:   a.def.Modules().Len(),
	}
}

// Modules returns summary information for every module the assembly
// owns.
func (a *Assembly) Modules() []ModuleInfo {
	modules := a.def.Modules().Items()
	out := make([]ModuleInfo, len(modules))
	for i, m := range modules {
		out[i] = ModuleInfo{
			Name:              m.Name(),
			MVID:              m.MVID().String(),
			EncID:             encIDString(m),
			Generation:        m.Generation(),
			TopLevelTypeCount: m.TopLevelTypes().Len(),
			AssemblyRefCount:  m.AssemblyReferences().Len(),
		}
	}
	return out
}

// Types returns the manifest module's top-level type tree.
func (a *Assembly) Types() []TypeInfo {
	manifest := a.def.ManifestModule()
	if manifest == nil {
		return nil
	}
	return typeInfoList(manifest.TopLevelTypes().Items())
}

// Methods returns every method in the manifest module, across every
// type in its top-level type tree.
func (a *Assembly) Methods() []MethodInfo {
	manifest := a.def.ManifestModule()
	if manifest == nil {
		return nil
	}
	methods := manifest.AllMethods()
	out := make([]MethodInfo, len(methods))
	for i, md := range methods {
		info := MethodInfo{
			Token:      md.Token().String(),
			Name:       md.Name(),
			IsStatic:   md.IsStatic(),
			IsAbstract: md.IsAbstract(),
			IsVirtual:  md.IsVirtual(),
		}
		if sig := md.Signature(); sig != nil {
			info.Signature = sig.String()
		}
		if dt := md.DeclaringType(); dt != nil {
			info.DeclaringType = dt.FullName()
		}
		out[i] = info
	}
	return out
}

// AssemblyReferences returns the manifest module's referenced
// assemblies.
func (a *Assembly) AssemblyReferences() []AssemblyReferenceInfo {
	manifest := a.def.ManifestModule()
	if manifest == nil {
		return nil
	}
	refs := manifest.AssemblyReferences().Items()
	out := make([]AssemblyReferenceInfo, len(refs))
	for i, r := range refs {
		out[i] = AssemblyReferenceInfo{
			Name:    r.Name(),
			Version: r.AssemblyVersion().String(),
			Culture: r.Culture(),
		}
	}
	return out
}

func typeInfoList(types []*metadata.TypeDefinition) []TypeInfo {
	out := make([]TypeInfo, len(types))
	for i, t := range types {
		out[i] = TypeInfo{
			Token:       t.Token().String(),
			FullName:    t.FullName(),
			Namespace:   t.Namespace(),
			Name:        t.Name(),
			IsInterface: t.IsInterface(),
			IsAbstract:  t.IsAbstract(),
			IsSealed:    t.IsSealed(),
			NestedTypes: typeInfoList(t.NestedTypes().Items()),
		}
		if bt := t.BaseType(); !bt.IsNull() {
			out[i].BaseType = bt.String()
		}
	}
	return out
}

func encIDString(m *metadata.ModuleDefinition) string {
	id := m.EncID()
	if id.String() == "00000000-0000-0000-0000-000000000000" {
		return ""
	}
	return id.String()
}

func hashAlgorithmName(a metadata.AssemblyHashAlgorithm) string {
	switch a {
	case metadata.AssemblyHashAlgorithmNone:
		return "None"
	case metadata.AssemblyHashAlgorithmMD5:
		return "MD5"
	case metadata.AssemblyHashAlgorithmSHA1:
		return "SHA1"
	default:
		return "Unknown"
	}
}
