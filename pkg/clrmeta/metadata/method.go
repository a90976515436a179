package metadata

import (
	"github.com/opcode9/clrmeta/pkg/clrmeta/lazy"
	"github.com/opcode9/clrmeta/pkg/clrmeta/mdtable"
	"github.com/opcode9/clrmeta/pkg/clrmeta/sig"
	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// MethodAttributes is the MethodDef table's Flags column (ECMA-335
// §II.23.1.10).
type MethodAttributes uint16

const (
	MethodAttributesMemberAccessMask MethodAttributes = 0x0007
	MethodAttributesPrivateScope     MethodAttributes = 0x0000
	MethodAttributesPrivate          MethodAttributes = 0x0001
	MethodAttributesFamANDAssem      MethodAttributes = 0x0002
	MethodAttributesAssembly         MethodAttributes = 0x0003
	MethodAttributesFamily           MethodAttributes = 0x0004
	MethodAttributesFamORAssem       MethodAttributes = 0x0005
	MethodAttributesPublic           MethodAttributes = 0x0006

	MethodAttributesStatic        MethodAttributes = 0x0010
	MethodAttributesFinal         MethodAttributes = 0x0020
	MethodAttributesVirtual       MethodAttributes = 0x0040
	MethodAttributesHideBySig     MethodAttributes = 0x0080
	MethodAttributesAbstract      MethodAttributes = 0x0400
	MethodAttributesSpecialName   MethodAttributes = 0x0800
	MethodAttributesRTSpecialName MethodAttributes = 0x1000
	MethodAttributesPInvokeImpl   MethodAttributes = 0x2000
)

// methodDefBacking sources a MethodDefinition's lazy fields from its
// MethodDef table row.
type methodDefBacking struct {
	module *ModuleDefinition
	rid    uint32
	row    mdtable.Row
}

// MethodDefinition is a defined method (§3): a name, a parsed
// signature, and a declaring-type back-reference. Fields, properties,
// and events are out of scope per spec.md §3's TypeDefinition note, so
// this type carries only what the spec names.
type MethodDefinition struct {
	memberBase

	name          lazy.Cell[string]
	attributes    lazy.Cell[MethodAttributes]
	implAttrs     lazy.Cell[uint16]
	rva           lazy.Cell[uint32]
	signature     lazy.Cell[*sig.MethodSignature]
	declaringType lazy.Cell[*TypeDefinition]

	backing *methodDefBacking
}

// NewMethodDefinition creates a hand-built, unbacked method.
func NewMethodDefinition(tok token.Token) *MethodDefinition {
	return &MethodDefinition{memberBase: memberBase{tok: tok}}
}

func newSerializedMethodDef(module *ModuleDefinition, rid uint32, row mdtable.Row) *MethodDefinition {
	m := NewMethodDefinition(token.New(token.MethodDef, rid))
	m.backing = &methodDefBacking{module: module, rid: rid, row: row}
	return m
}

// Name is the method's simple name, e.g. ".ctor" or "ToString".
func (m *MethodDefinition) Name() string {
	return m.name.Get(func() string {
		if m.backing == nil {
			return ""
		}
		idx := m.backing.module.backing.tables.Column(token.MethodDef, m.backing.row, "Name")
		if s := m.backing.module.backing.strings.GetString(idx); s != nil {
			return *s
		}
		return ""
	})
}

// SetName overrides the method's name.
func (m *MethodDefinition) SetName(v string) { m.name.Set(v) }

// Attributes is the MethodDef table's Flags column.
func (m *MethodDefinition) Attributes() MethodAttributes {
	return m.attributes.Get(func() MethodAttributes {
		if m.backing == nil {
			return 0
		}
		return MethodAttributes(m.backing.module.backing.tables.Column(token.MethodDef, m.backing.row, "Flags"))
	})
}

// SetAttributes overrides the method's raw attribute flags.
func (m *MethodDefinition) SetAttributes(v MethodAttributes) { m.attributes.Set(v) }

// ImplAttributes is the MethodDef table's ImplFlags column.
func (m *MethodDefinition) ImplAttributes() uint16 {
	return m.implAttrs.Get(func() uint16 {
		if m.backing == nil {
			return 0
		}
		return uint16(m.backing.module.backing.tables.Column(token.MethodDef, m.backing.row, "ImplFlags"))
	})
}

// RVA is the method body's relative virtual address, or 0 if the method
// has no IL body (abstract, P/Invoke, or runtime-implemented).
func (m *MethodDefinition) RVA() uint32 {
	return m.rva.Get(func() uint32 {
		if m.backing == nil {
			return 0
		}
		return m.backing.module.backing.tables.Column(token.MethodDef, m.backing.row, "RVA")
	})
}

// Signature is the method's parsed calling-convention/return/parameter
// signature (§4.E), decoded from the `#Blob` heap on first access.
func (m *MethodDefinition) Signature() *sig.MethodSignature {
	return m.signature.Get(func() *sig.MethodSignature {
		if m.backing == nil {
			return nil
		}
		idx := m.backing.module.backing.tables.Column(token.MethodDef, m.backing.row, "Signature")
		r, err := m.backing.module.backing.blobs.GetBlob(idx)
		if err != nil {
			return nil
		}
		parsed, err := sig.MethodSignatureFromReader(r)
		if err != nil {
			return nil
		}
		return parsed
	})
}

// SetSignature overrides the method's parsed signature.
func (m *MethodDefinition) SetSignature(v *sig.MethodSignature) { m.signature.Set(v) }

// DeclaringType is the type that owns this method, found by binary
// search over the TypeDef table's MethodList column (§4.C's
// child→parent lookup pattern).
func (m *MethodDefinition) DeclaringType() *TypeDefinition {
	return m.declaringType.Get(func() *TypeDefinition {
		if m.backing == nil {
			return nil
		}
		parentRid := m.backing.module.backing.tables.ParentOf(token.TypeDef, "MethodList", m.backing.rid)
		if parentRid == 0 {
			return nil
		}
		member, err := m.backing.module.LookupMember(token.New(token.TypeDef, parentRid))
		if err != nil || member == nil {
			return nil
		}
		td, _ := member.(*TypeDefinition)
		return td
	})
}

// IsStatic reports the Static bit.
func (m *MethodDefinition) IsStatic() bool { return m.Attributes()&MethodAttributesStatic != 0 }

// IsAbstract reports the Abstract bit.
func (m *MethodDefinition) IsAbstract() bool { return m.Attributes()&MethodAttributesAbstract != 0 }

// IsVirtual reports the Virtual bit.
func (m *MethodDefinition) IsVirtual() bool { return m.Attributes()&MethodAttributesVirtual != 0 }
