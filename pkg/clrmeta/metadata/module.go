package metadata

import (
	"sync"

	"github.com/google/uuid"

	"github.com/opcode9/clrmeta/pkg/clrmeta/heaps"
	"github.com/opcode9/clrmeta/pkg/clrmeta/lazy"
	"github.com/opcode9/clrmeta/pkg/clrmeta/mdtable"
	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// moduleBacking holds everything a loaded module's lazy fields and
// LookupMember need: the tables stream and the four heaps, plus the
// Module table row that seeded this module.
type moduleBacking struct {
	tables  *mdtable.Stream
	strings *heaps.StringsStream
	blobs   *heaps.BlobStream
	guids   *heaps.GuidStream
	row     mdtable.Row
}

// ModuleDefinition is the container holding types, references, and
// metadata tables for one PE file (§3).
type ModuleDefinition struct {
	memberBase

	assembly *AssemblyDefinition // weak back-ref; nil if standalone

	name       lazy.Cell[string]
	mvid       lazy.Cell[uuid.UUID]
	encID      lazy.Cell[uuid.UUID]
	encBaseID  lazy.Cell[uuid.UUID]
	generation lazy.Cell[uint16]

	topLevelTypes      *lazy.OwnedCollection[any, *TypeDefinition]
	assemblyReferences *lazy.OwnedCollection[*ModuleDefinition, *AssemblyReference]

	backing *moduleBacking

	memberCache sync.Map // token.Token -> MetadataMember
}

// NewModuleDefinition creates a hand-built, unbacked module.
func NewModuleDefinition(tok token.Token) *ModuleDefinition {
	m := &ModuleDefinition{memberBase: memberBase{tok: tok}}
	m.topLevelTypes = lazy.NewOwnedCollection[any, *TypeDefinition](any(m))
	m.assemblyReferences = lazy.NewOwnedCollection[*ModuleDefinition, *AssemblyReference](m)
	return m
}

// newSerializedModule builds a ModuleDefinition backed by Module table
// row 1 and the tables stream's heaps, and populates its owned
// collections from the TypeDef and AssemblyRef tables (§4.G).
func newSerializedModule(tables *mdtable.Stream, strings *heaps.StringsStream, blobs *heaps.BlobStream, guids *heaps.GuidStream) (*ModuleDefinition, error) {
	row := tables.RowAt(token.Module, 1)

	m := NewModuleDefinition(token.New(token.Module, 1))
	m.backing = &moduleBacking{tables: tables, strings: strings, blobs: blobs, guids: guids, row: row}

	typeDefCount := tables.RowCount(token.TypeDef)
	for rid := uint32(1); rid <= typeDefCount; rid++ {
		td := newSerializedTypeDef(m, rid, tables.RowAt(token.TypeDef, rid))
		m.memberCache.Store(td.Token(), td)
		if nestedLo, _ := tables.FindRange(token.NestedClass, "NestedClass", rid); nestedLo == 0 {
			// not nested: top-level per §8 scenario 3's invariant.
			if err := m.topLevelTypes.Add(td); err != nil {
				return nil, err
			}
		}
	}

	// Wire declaring-type/nested-type links now that every TypeDefinition
	// exists in the cache (NestedClass rows may reference rids in either
	// order relative to their TypeDef rows).
	nestedCount := tables.RowCount(token.NestedClass)
	for rid := uint32(1); rid <= nestedCount; rid++ {
		nestedRow := tables.RowAt(token.NestedClass, rid)
		nestedRid := tables.Column(token.NestedClass, nestedRow, "NestedClass")
		enclosingRid := tables.Column(token.NestedClass, nestedRow, "EnclosingClass")

		nestedVal, ok := m.memberCache.Load(token.New(token.TypeDef, nestedRid))
		if !ok {
			continue
		}
		enclosingVal, ok := m.memberCache.Load(token.New(token.TypeDef, enclosingRid))
		if !ok {
			continue
		}
		nested := nestedVal.(*TypeDefinition)
		enclosing := enclosingVal.(*TypeDefinition)
		if err := enclosing.nestedTypes.Add(nested); err != nil {
			return nil, err
		}
	}

	assemblyRefCount := tables.RowCount(token.AssemblyRef)
	for rid := uint32(1); rid <= assemblyRefCount; rid++ {
		ref := newSerializedAssemblyReference(m, rid, tables.RowAt(token.AssemblyRef, rid))
		if err := m.assemblyReferences.Add(ref); err != nil {
			return nil, err
		}
		m.memberCache.Store(ref.Token(), ref)
	}

	methodCount := tables.RowCount(token.MethodDef)
	for rid := uint32(1); rid <= methodCount; rid++ {
		md := newSerializedMethodDef(m, rid, tables.RowAt(token.MethodDef, rid))
		m.memberCache.Store(md.Token(), md)
	}

	genericParamCount := tables.RowCount(token.GenericParam)
	for rid := uint32(1); rid <= genericParamCount; rid++ {
		gp := newSerializedGenericParam(m, rid, tables.RowAt(token.GenericParam, rid))
		m.memberCache.Store(gp.Token(), gp)
	}

	return m, nil
}

// Owner returns the assembly this module belongs to (implements
// lazy.Member[*AssemblyDefinition] for AssemblyDefinition.Modules).
func (m *ModuleDefinition) Owner() *AssemblyDefinition { return m.assembly }

// SetOwner is used by lazy.OwnedCollection to synchronize ownership.
func (m *ModuleDefinition) SetOwner(a *AssemblyDefinition) { m.assembly = a }

// Assembly is the weak back-reference to this module's owning assembly,
// or nil for a standalone module.
func (m *ModuleDefinition) Assembly() *AssemblyDefinition { return m.assembly }

// Name is the module's file name, e.g. "HelloWorld.dll".
func (m *ModuleDefinition) Name() string {
	return m.name.Get(func() string {
		if m.backing == nil {
			return ""
		}
		idx := m.backing.tables.Column(token.Module, m.backing.row, "Name")
		if s := m.backing.strings.GetString(idx); s != nil {
			return *s
		}
		return ""
	})
}

// SetName overrides the module's name.
func (m *ModuleDefinition) SetName(v string) { m.name.Set(v) }

// MVID uniquely identifies this specific compilation of the module.
func (m *ModuleDefinition) MVID() uuid.UUID {
	return m.mvid.Get(func() uuid.UUID {
		if m.backing == nil {
			return uuid.Nil
		}
		idx := m.backing.tables.Column(token.Module, m.backing.row, "Mvid")
		return m.backing.guids.GetGuid(idx)
	})
}

// EncID is the Edit-and-Continue identifier for this generation.
func (m *ModuleDefinition) EncID() uuid.UUID {
	return m.encID.Get(func() uuid.UUID {
		if m.backing == nil {
			return uuid.Nil
		}
		idx := m.backing.tables.Column(token.Module, m.backing.row, "EncId")
		return m.backing.guids.GetGuid(idx)
	})
}

// EncBaseID identifies the generation this Edit-and-Continue delta
// builds on.
func (m *ModuleDefinition) EncBaseID() uuid.UUID {
	return m.encBaseID.Get(func() uuid.UUID {
		if m.backing == nil {
			return uuid.Nil
		}
		idx := m.backing.tables.Column(token.Module, m.backing.row, "EncBaseId")
		return m.backing.guids.GetGuid(idx)
	})
}

// Generation is the Module table's Generation column, incremented once
// per Edit-and-Continue delta.
func (m *ModuleDefinition) Generation() uint16 {
	return m.generation.Get(func() uint16 {
		if m.backing == nil {
			return 0
		}
		return uint16(m.backing.tables.Column(token.Module, m.backing.row, "Generation"))
	})
}

// TopLevelTypes returns the module's owned, ordered top-level type list
// (§3: DeclaringType == nil ⇔ membership here).
func (m *ModuleDefinition) TopLevelTypes() *lazy.OwnedCollection[any, *TypeDefinition] {
	return m.topLevelTypes
}

// AssemblyReferences returns the module's owned, ordered assembly
// reference list.
func (m *ModuleDefinition) AssemblyReferences() *lazy.OwnedCollection[*ModuleDefinition, *AssemblyReference] {
	return m.assemblyReferences
}

// AllMethods returns every MethodDefinition in the module's MethodDef
// table, in rid order, fetched through LookupMember so repeat calls see
// the same cached instances. Returns nil for a non-loaded module.
func (m *ModuleDefinition) AllMethods() []*MethodDefinition {
	if m.backing == nil {
		return nil
	}
	count := m.backing.tables.RowCount(token.MethodDef)
	out := make([]*MethodDefinition, 0, count)
	for rid := uint32(1); rid <= count; rid++ {
		member, err := m.LookupMember(token.New(token.MethodDef, rid))
		if err != nil || member == nil {
			continue
		}
		if md, ok := member.(*MethodDefinition); ok {
			out = append(out, md)
		}
	}
	return out
}

// IsSerialized reports whether this module was constructed from a
// loaded image (has a backing tables stream) rather than hand-built.
func (m *ModuleDefinition) IsSerialized() bool { return m.backing != nil }

// LookupMember resolves a metadata token to its member, constructing
// and caching it on first lookup so two lookups of the same token return
// the identical pointer (§8's resolver-cache-identity rule, applied
// intra-module per spec.md §9's open question on LookupMember).
//
// Returns ErrNotSerialized if the module has no backing tables stream, or
// if tok's table is not one of Module, Assembly, TypeDef, MethodDef,
// GenericParam, or AssemblyRef.
func (m *ModuleDefinition) LookupMember(tok token.Token) (MetadataMember, error) {
	if m.backing == nil {
		return nil, ErrNotSerialized
	}
	if tok.IsNull() {
		return nil, nil
	}
	if cached, ok := m.memberCache.Load(tok); ok {
		return cached.(MetadataMember), nil
	}

	var member MetadataMember
	switch tok.Table() {
	case token.Module:
		if tok.RID() == 1 {
			member = m
		}
	case token.Assembly:
		if tok.RID() == 1 && m.assembly != nil {
			member = m.assembly
		}
	case token.TypeDef:
		row := m.backing.tables.RowAt(token.TypeDef, tok.RID())
		if row != nil {
			member = newSerializedTypeDef(m, tok.RID(), row)
		}
	case token.MethodDef:
		row := m.backing.tables.RowAt(token.MethodDef, tok.RID())
		if row != nil {
			member = newSerializedMethodDef(m, tok.RID(), row)
		}
	case token.GenericParam:
		row := m.backing.tables.RowAt(token.GenericParam, tok.RID())
		if row != nil {
			member = newSerializedGenericParam(m, tok.RID(), row)
		}
	case token.AssemblyRef:
		row := m.backing.tables.RowAt(token.AssemblyRef, tok.RID())
		if row != nil {
			member = newSerializedAssemblyReference(m, tok.RID(), row)
		}
	default:
		return nil, ErrNotSerialized
	}

	if member == nil {
		return nil, nil
	}
	actual, _ := m.memberCache.LoadOrStore(tok, member)
	return actual.(MetadataMember), nil
}
