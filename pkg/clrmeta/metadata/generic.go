package metadata

import (
	"github.com/opcode9/clrmeta/pkg/clrmeta/lazy"
	"github.com/opcode9/clrmeta/pkg/clrmeta/mdtable"
	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// GenericParamAttributes is the GenericParam table's Flags column
// (ECMA-335 §II.23.1.7).
type GenericParamAttributes uint16

const (
	GenericParamAttributesVarianceMask      GenericParamAttributes = 0x0003
	GenericParamAttributesNone              GenericParamAttributes = 0x0000
	GenericParamAttributesCovariant         GenericParamAttributes = 0x0001
	GenericParamAttributesContravariant     GenericParamAttributes = 0x0002
	GenericParamAttributesReferenceTypeConstraint     GenericParamAttributes = 0x0004
	GenericParamAttributesNotNullableValueTypeConstraint GenericParamAttributes = 0x0008
	GenericParamAttributesDefaultConstructorConstraint   GenericParamAttributes = 0x0010
)

// genericParamBacking sources a GenericParameter's lazy fields from its
// GenericParam table row.
type genericParamBacking struct {
	module *ModuleDefinition
	row    mdtable.Row
}

// GenericParameter is a generic type or method parameter (§3): a name,
// its ordinal (Number), attribute flags, and an owner that is either a
// TypeDefinition or a MethodDefinition, decoded from the Owner
// TypeOrMethodDef coded index.
type GenericParameter struct {
	memberBase

	number     lazy.Cell[uint16]
	name       lazy.Cell[string]
	attributes lazy.Cell[GenericParamAttributes]
	owner      lazy.Cell[any]

	backing *genericParamBacking
}

// NewGenericParameter creates a hand-built, unbacked generic parameter.
func NewGenericParameter(tok token.Token) *GenericParameter {
	return &GenericParameter{memberBase: memberBase{tok: tok}}
}

func newSerializedGenericParam(module *ModuleDefinition, rid uint32, row mdtable.Row) *GenericParameter {
	g := NewGenericParameter(token.New(token.GenericParam, rid))
	g.backing = &genericParamBacking{module: module, row: row}
	return g
}

// Number is the parameter's zero-based ordinal within its owner's
// generic parameter list.
func (g *GenericParameter) Number() uint16 {
	return g.number.Get(func() uint16 {
		if g.backing == nil {
			return 0
		}
		return uint16(g.backing.module.backing.tables.Column(token.GenericParam, g.backing.row, "Number"))
	})
}

// Name is the generic parameter's source name, e.g. "T" or "TKey".
func (g *GenericParameter) Name() string {
	return g.name.Get(func() string {
		if g.backing == nil {
			return ""
		}
		idx := g.backing.module.backing.tables.Column(token.GenericParam, g.backing.row, "Name")
		if s := g.backing.module.backing.strings.GetString(idx); s != nil {
			return *s
		}
		return ""
	})
}

// SetName overrides the parameter's name.
func (g *GenericParameter) SetName(v string) { g.name.Set(v) }

// Attributes is the GenericParam table's Flags column (variance and
// special constraints).
func (g *GenericParameter) Attributes() GenericParamAttributes {
	return g.attributes.Get(func() GenericParamAttributes {
		if g.backing == nil {
			return 0
		}
		return GenericParamAttributes(g.backing.module.backing.tables.Column(token.GenericParam, g.backing.row, "Flags"))
	})
}

// SetAttributes overrides the parameter's raw attribute flags.
func (g *GenericParameter) SetAttributes(v GenericParamAttributes) { g.attributes.Set(v) }

// Owner returns the TypeDefinition or MethodDefinition this generic
// parameter belongs to, decoded from the Owner TypeOrMethodDef coded
// index (§4.D).
func (g *GenericParameter) Owner() any {
	return g.owner.Get(func() any {
		if g.backing == nil {
			return nil
		}
		tok, err := g.backing.module.backing.tables.CodedIndexAt(token.GenericParam, g.backing.row, "Owner")
		if err != nil || tok.IsNull() {
			return nil
		}
		member, err := g.backing.module.LookupMember(tok)
		if err != nil {
			return nil
		}
		return member
	})
}

// SetOwner overrides the parameter's owner.
func (g *GenericParameter) SetOwner(v any) { g.owner.Set(v) }

// IsCovariant reports the Covariant variance bit.
func (g *GenericParameter) IsCovariant() bool {
	return g.Attributes()&GenericParamAttributesVarianceMask == GenericParamAttributesCovariant
}

// IsContravariant reports the Contravariant variance bit.
func (g *GenericParameter) IsContravariant() bool {
	return g.Attributes()&GenericParamAttributesVarianceMask == GenericParamAttributesContravariant
}
