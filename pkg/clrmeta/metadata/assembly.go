package metadata

import (
	"fmt"

	"github.com/opcode9/clrmeta/pkg/clrmeta/lazy"
	"github.com/opcode9/clrmeta/pkg/clrmeta/mdtable"
	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// Version is an assembly's four-part version number (§3).
type Version struct {
	Major    uint16
	Minor    uint16
	Build    uint16
	Revision uint16
}

// String renders "major.minor.build.revision".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// AssemblyAttributes is the Assembly/AssemblyRef table's Flags column
// (ECMA-335 §II.23.1.2).
type AssemblyAttributes uint32

const (
	AssemblyAttributesPublicKey          AssemblyAttributes = 0x0001
	AssemblyAttributesRetargetable       AssemblyAttributes = 0x0100
	AssemblyAttributesWindowsRuntime     AssemblyAttributes = 0x0200
	AssemblyAttributesDisableJITcompileOptimizer AssemblyAttributes = 0x4000
	AssemblyAttributesEnableJITcompileTracking   AssemblyAttributes = 0x8000
)

// AssemblyHashAlgorithm is the Assembly table's HashAlgId column.
type AssemblyHashAlgorithm uint32

const (
	AssemblyHashAlgorithmNone   AssemblyHashAlgorithm = 0x0000
	AssemblyHashAlgorithmMD5    AssemblyHashAlgorithm = 0x8003
	AssemblyHashAlgorithmSHA1   AssemblyHashAlgorithm = 0x8004
)

// AssemblyDescriptor is an unresolved reference to an assembly: name,
// version, culture, and public-key-token (§3's "Descriptor", §4.H). Both
// AssemblyDefinition and AssemblyReference can produce one.
type AssemblyDescriptor struct {
	Name            string
	Version         Version
	Culture         string
	PublicKeyToken  []byte
}

// assemblyBacking sources an AssemblyDefinition's lazy fields from the
// Assembly table row 1 of the manifest module's tables stream.
type assemblyBacking struct {
	module *ModuleDefinition
	row    mdtable.Row
}

// AssemblyDefinition is the root member of an assembly (§3): a named,
// versioned unit of deployment that owns an ordered list of modules.
type AssemblyDefinition struct {
	memberBase

	name          lazy.Cell[string]
	version       lazy.Cell[Version]
	culture       lazy.Cell[string]
	publicKey     lazy.Cell[[]byte]
	hashAlgorithm lazy.Cell[AssemblyHashAlgorithm]
	attributes    lazy.Cell[AssemblyAttributes]

	modules *lazy.OwnedCollection[*AssemblyDefinition, *ModuleDefinition]

	backing *assemblyBacking
}

// NewAssemblyDefinition creates a hand-built, unbacked assembly with the
// given token (token.Null for a purely user-constructed instance).
func NewAssemblyDefinition(tok token.Token) *AssemblyDefinition {
	a := &AssemblyDefinition{memberBase: memberBase{tok: tok}}
	a.modules = lazy.NewOwnedCollection[*AssemblyDefinition, *ModuleDefinition](a)
	return a
}

// newSerializedAssembly builds an AssemblyDefinition backed by Assembly
// table row 1 of the given manifest module.
func newSerializedAssembly(module *ModuleDefinition, row mdtable.Row) *AssemblyDefinition {
	a := NewAssemblyDefinition(token.New(token.Assembly, 1))
	a.backing = &assemblyBacking{module: module, row: row}
	return a
}

// Name is the assembly's simple name, e.g. "System.Private.CoreLib".
func (a *AssemblyDefinition) Name() string {
	return a.name.Get(func() string {
		if a.backing == nil {
			return ""
		}
		idx := a.backing.module.backing.tables.Column(token.Assembly, a.backing.row, "Name")
		if s := a.backing.module.backing.strings.GetString(idx); s != nil {
			return *s
		}
		return ""
	})
}

// SetName overrides the assembly's name.
func (a *AssemblyDefinition) SetName(v string) { a.name.Set(v) }

// AssemblyVersion returns the assembly's four-part version.
func (a *AssemblyDefinition) AssemblyVersion() Version {
	return a.version.Get(func() Version {
		if a.backing == nil {
			return Version{}
		}
		t := token.Assembly
		row := a.backing.row
		tbl := a.backing.module.backing.tables
		return Version{
			Major:    uint16(tbl.Column(t, row, "MajorVersion")),
			Minor:    uint16(tbl.Column(t, row, "MinorVersion")),
			Build:    uint16(tbl.Column(t, row, "BuildNumber")),
			Revision: uint16(tbl.Column(t, row, "RevisionNumber")),
		}
	})
}

// SetVersion overrides the assembly's version.
func (a *AssemblyDefinition) SetVersion(v Version) { a.version.Set(v) }

// Culture is the assembly's culture name, or "" for culture-neutral.
func (a *AssemblyDefinition) Culture() string {
	return a.culture.Get(func() string {
		if a.backing == nil {
			return ""
		}
		idx := a.backing.module.backing.tables.Column(token.Assembly, a.backing.row, "Culture")
		if s := a.backing.module.backing.strings.GetString(idx); s != nil {
			return *s
		}
		return ""
	})
}

// SetCulture overrides the assembly's culture.
func (a *AssemblyDefinition) SetCulture(v string) { a.culture.Set(v) }

// PublicKey returns the assembly's full public key blob, or nil if
// unsigned.
func (a *AssemblyDefinition) PublicKey() []byte {
	return a.publicKey.Get(func() []byte {
		if a.backing == nil {
			return nil
		}
		idx := a.backing.module.backing.tables.Column(token.Assembly, a.backing.row, "PublicKey")
		r, err := a.backing.module.backing.blobs.GetBlob(idx)
		if err != nil {
			return nil
		}
		b, _ := r.ReadBytes(r.Length())
		return b
	})
}

// SetPublicKey overrides the assembly's public key.
func (a *AssemblyDefinition) SetPublicKey(v []byte) { a.publicKey.Set(v) }

// HashAlgorithm is the algorithm used to hash this assembly's files.
func (a *AssemblyDefinition) HashAlgorithm() AssemblyHashAlgorithm {
	return a.hashAlgorithm.Get(func() AssemblyHashAlgorithm {
		if a.backing == nil {
			return AssemblyHashAlgorithmNone
		}
		return AssemblyHashAlgorithm(a.backing.module.backing.tables.Column(token.Assembly, a.backing.row, "HashAlgId"))
	})
}

// Attributes is the Assembly table's Flags column.
func (a *AssemblyDefinition) Attributes() AssemblyAttributes {
	return a.attributes.Get(func() AssemblyAttributes {
		if a.backing == nil {
			return 0
		}
		return AssemblyAttributes(a.backing.module.backing.tables.Column(token.Assembly, a.backing.row, "Flags"))
	})
}

// SetAttributes overrides the assembly's attribute flags.
func (a *AssemblyDefinition) SetAttributes(v AssemblyAttributes) { a.attributes.Set(v) }

// Modules returns the assembly's owned, ordered module list (§3).
func (a *AssemblyDefinition) Modules() *lazy.OwnedCollection[*AssemblyDefinition, *ModuleDefinition] {
	return a.modules
}

// ManifestModule is modules[0], the module carrying the Assembly table
// row (§8 scenario 2).
func (a *AssemblyDefinition) ManifestModule() *ModuleDefinition {
	if a.modules.Len() == 0 {
		return nil
	}
	return a.modules.At(0)
}

// Descriptor reduces the assembly's identity to an AssemblyDescriptor,
// for use with an AssemblyResolver.
func (a *AssemblyDefinition) Descriptor() AssemblyDescriptor {
	token := a.PublicKeyToken()
	return AssemblyDescriptor{
		Name:           a.Name(),
		Version:        a.AssemblyVersion(),
		Culture:        a.Culture(),
		PublicKeyToken: token,
	}
}

// PublicKeyToken returns PublicKey() unchanged. It does not hash the key
// into the 8-byte SHA-1 token form, so a definition's own descriptor
// carries its full public key rather than a token when one is present;
// token derivation is left to callers that need it.
func (a *AssemblyDefinition) PublicKeyToken() []byte {
	return a.PublicKey()
}

// --- AssemblyReference ---

// assemblyRefBacking sources an AssemblyReference's lazy fields from an
// AssemblyRef table row.
type assemblyRefBacking struct {
	module *ModuleDefinition
	row    mdtable.Row
}

// AssemblyReference is an unresolved reference to another assembly
// (§3): it acts as an AssemblyDescriptor.
type AssemblyReference struct {
	memberBase

	owner *ModuleDefinition

	name           lazy.Cell[string]
	version        lazy.Cell[Version]
	culture        lazy.Cell[string]
	publicKeyToken lazy.Cell[[]byte]
	attributes     lazy.Cell[AssemblyAttributes]

	backing *assemblyRefBacking
}

// NewAssemblyReference creates a hand-built, unbacked assembly
// reference.
func NewAssemblyReference(tok token.Token) *AssemblyReference {
	return &AssemblyReference{memberBase: memberBase{tok: tok}}
}

func newSerializedAssemblyReference(module *ModuleDefinition, rid uint32, row mdtable.Row) *AssemblyReference {
	r := NewAssemblyReference(token.New(token.AssemblyRef, rid))
	r.backing = &assemblyRefBacking{module: module, row: row}
	return r
}

// Owner returns the module this reference belongs to (implements
// lazy.Member[*ModuleDefinition] for ModuleDefinition.AssemblyReferences).
func (r *AssemblyReference) Owner() *ModuleDefinition { return r.owner }

// SetOwner is used by lazy.OwnedCollection to synchronize ownership.
func (r *AssemblyReference) SetOwner(m *ModuleDefinition) { r.owner = m }

// Name is the referenced assembly's simple name.
func (r *AssemblyReference) Name() string {
	return r.name.Get(func() string {
		if r.backing == nil {
			return ""
		}
		idx := r.backing.module.backing.tables.Column(token.AssemblyRef, r.backing.row, "Name")
		if s := r.backing.module.backing.strings.GetString(idx); s != nil {
			return *s
		}
		return ""
	})
}

// SetName overrides the referenced assembly's name.
func (r *AssemblyReference) SetName(v string) { r.name.Set(v) }

// AssemblyVersion returns the referenced assembly's version.
func (r *AssemblyReference) AssemblyVersion() Version {
	return r.version.Get(func() Version {
		if r.backing == nil {
			return Version{}
		}
		t := token.AssemblyRef
		row := r.backing.row
		tbl := r.backing.module.backing.tables
		return Version{
			Major:    uint16(tbl.Column(t, row, "MajorVersion")),
			Minor:    uint16(tbl.Column(t, row, "MinorVersion")),
			Build:    uint16(tbl.Column(t, row, "BuildNumber")),
			Revision: uint16(tbl.Column(t, row, "RevisionNumber")),
		}
	})
}

// SetVersion overrides the referenced assembly's version.
func (r *AssemblyReference) SetVersion(v Version) { r.version.Set(v) }

// Culture is the referenced assembly's culture, or "" if neutral.
func (r *AssemblyReference) Culture() string {
	return r.culture.Get(func() string {
		if r.backing == nil {
			return ""
		}
		idx := r.backing.module.backing.tables.Column(token.AssemblyRef, r.backing.row, "Culture")
		if s := r.backing.module.backing.strings.GetString(idx); s != nil {
			return *s
		}
		return ""
	})
}

// SetCulture overrides the referenced assembly's culture.
func (r *AssemblyReference) SetCulture(v string) { r.culture.Set(v) }

// PublicKeyOrToken returns the raw PublicKeyOrToken blob: either a full
// public key or an 8-byte token, distinguished by the PublicKey bit of
// Attributes (ECMA-335 §II.23.1.2).
func (r *AssemblyReference) PublicKeyOrToken() []byte {
	return r.publicKeyToken.Get(func() []byte {
		if r.backing == nil {
			return nil
		}
		idx := r.backing.module.backing.tables.Column(token.AssemblyRef, r.backing.row, "PublicKeyOrToken")
		br, err := r.backing.module.backing.blobs.GetBlob(idx)
		if err != nil {
			return nil
		}
		b, _ := br.ReadBytes(br.Length())
		return b
	})
}

// Attributes is the AssemblyRef table's Flags column.
func (r *AssemblyReference) Attributes() AssemblyAttributes {
	return r.attributes.Get(func() AssemblyAttributes {
		if r.backing == nil {
			return 0
		}
		return AssemblyAttributes(r.backing.module.backing.tables.Column(token.AssemblyRef, r.backing.row, "Flags"))
	})
}

// Descriptor reduces the reference's identity to an AssemblyDescriptor
// for resolution (§4.H). If Attributes has the PublicKey bit clear, the
// PublicKeyOrToken blob already IS the token.
func (r *AssemblyReference) Descriptor() AssemblyDescriptor {
	return AssemblyDescriptor{
		Name:           r.Name(),
		Version:        r.AssemblyVersion(),
		Culture:        r.Culture(),
		PublicKeyToken: r.PublicKeyOrToken(),
	}
}
