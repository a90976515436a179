package metadata

import (
	"github.com/opcode9/clrmeta/pkg/clrmeta/lazy"
	"github.com/opcode9/clrmeta/pkg/clrmeta/mdtable"
	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// TypeAttributes is the TypeDef table's Flags column (ECMA-335
// §II.23.1.15).
type TypeAttributes uint32

const (
	TypeAttributesVisibilityMask       TypeAttributes = 0x00000007
	TypeAttributesNotPublic            TypeAttributes = 0x00000000
	TypeAttributesPublic               TypeAttributes = 0x00000001
	TypeAttributesNestedPublic         TypeAttributes = 0x00000002
	TypeAttributesNestedPrivate        TypeAttributes = 0x00000003
	TypeAttributesNestedFamily         TypeAttributes = 0x00000004
	TypeAttributesNestedAssembly       TypeAttributes = 0x00000005
	TypeAttributesNestedFamANDAssem    TypeAttributes = 0x00000006
	TypeAttributesNestedFamORAssem     TypeAttributes = 0x00000007

	TypeAttributesLayoutMask      TypeAttributes = 0x00000018
	TypeAttributesAutoLayout      TypeAttributes = 0x00000000
	TypeAttributesSequentialLayout TypeAttributes = 0x00000008
	TypeAttributesExplicitLayout  TypeAttributes = 0x00000010

	TypeAttributesClassSemanticsMask TypeAttributes = 0x00000020
	TypeAttributesClass             TypeAttributes = 0x00000000
	TypeAttributesInterface         TypeAttributes = 0x00000020

	TypeAttributesAbstract  TypeAttributes = 0x00000080
	TypeAttributesSealed    TypeAttributes = 0x00000100
	TypeAttributesSpecialName TypeAttributes = 0x00000400
	TypeAttributesImport    TypeAttributes = 0x00001000
	TypeAttributesSerializable TypeAttributes = 0x00002000

	TypeAttributesStringFormatMask  TypeAttributes = 0x00030000
	TypeAttributesAnsiClass         TypeAttributes = 0x00000000
	TypeAttributesUnicodeClass      TypeAttributes = 0x00010000
	TypeAttributesAutoClass         TypeAttributes = 0x00020000
	TypeAttributesCustomFormatClass TypeAttributes = 0x00030000

	TypeAttributesBeforeFieldInit TypeAttributes = 0x00100000
	TypeAttributesRTSpecialName   TypeAttributes = 0x00000800
	TypeAttributesHasSecurity     TypeAttributes = 0x00040000
	TypeAttributesForwarder       TypeAttributes = 0x00200000
)

// typeDefBacking sources a TypeDefinition's lazy fields from its TypeDef
// table row.
type typeDefBacking struct {
	module *ModuleDefinition
	row    mdtable.Row
}

// TypeDefinition is a defined type: a class, interface, struct, or enum
// (§3). DeclaringType is nil exactly when the type is in its module's
// TopLevelTypes — enforced structurally here by using a single owner
// slot (module or declaring type) rather than two independent fields.
type TypeDefinition struct {
	memberBase

	owner any // *ModuleDefinition (top-level) or *TypeDefinition (nested); nil if unparented

	namespace lazy.Cell[string]
	name      lazy.Cell[string]
	flags     lazy.Cell[TypeAttributes]
	baseType  lazy.Cell[token.Token]
	fullName  lazy.Cell[string]

	nestedTypes *lazy.OwnedCollection[any, *TypeDefinition]

	backing *typeDefBacking
}

// NewTypeDefinition creates a hand-built, unbacked type.
func NewTypeDefinition(tok token.Token) *TypeDefinition {
	t := &TypeDefinition{memberBase: memberBase{tok: tok}}
	t.nestedTypes = lazy.NewOwnedCollection[any, *TypeDefinition](any(t))
	return t
}

func newSerializedTypeDef(module *ModuleDefinition, rid uint32, row mdtable.Row) *TypeDefinition {
	t := NewTypeDefinition(token.New(token.TypeDef, rid))
	t.backing = &typeDefBacking{module: module, row: row}
	return t
}

// Owner returns this type's container: a *ModuleDefinition if top-level,
// a *TypeDefinition if nested, or nil if unparented. Implements
// lazy.Member[any] for both TopLevelTypes and NestedTypes collections.
func (t *TypeDefinition) Owner() any { return t.owner }

// SetOwner is used by lazy.OwnedCollection to synchronize ownership.
func (t *TypeDefinition) SetOwner(o any) {
	t.owner = o
	t.invalidateFullName()
}

// DeclaringType returns the enclosing type if this type is nested, or
// nil if it is top-level (§3).
func (t *TypeDefinition) DeclaringType() *TypeDefinition {
	if dt, ok := t.owner.(*TypeDefinition); ok {
		return dt
	}
	return nil
}

// Module climbs the declaring-type chain to the owning module.
func (t *TypeDefinition) Module() *ModuleDefinition {
	switch o := t.owner.(type) {
	case *ModuleDefinition:
		return o
	case *TypeDefinition:
		return o.Module()
	default:
		return nil
	}
}

// Namespace is the type's namespace, or "" for the global namespace.
func (t *TypeDefinition) Namespace() string {
	return t.namespace.Get(func() string {
		if t.backing == nil {
			return ""
		}
		idx := t.backing.module.backing.tables.Column(token.TypeDef, t.backing.row, "Namespace")
		if s := t.backing.module.backing.strings.GetString(idx); s != nil {
			return *s
		}
		return ""
	})
}

// SetNamespace overrides the type's namespace and invalidates FullName.
func (t *TypeDefinition) SetNamespace(v string) {
	t.namespace.Set(v)
	t.invalidateFullName()
}

// Name is the type's simple (unqualified) name.
func (t *TypeDefinition) Name() string {
	return t.name.Get(func() string {
		if t.backing == nil {
			return ""
		}
		idx := t.backing.module.backing.tables.Column(token.TypeDef, t.backing.row, "Name")
		if s := t.backing.module.backing.strings.GetString(idx); s != nil {
			return *s
		}
		return ""
	})
}

// SetName overrides the type's simple name and invalidates FullName.
func (t *TypeDefinition) SetName(v string) {
	t.name.Set(v)
	t.invalidateFullName()
}

// FullName is a pure function of the declaring-type chain and names
// (§3, §8): "Namespace.Name" for a top-level type, "Outer/Inner" nested
// under it otherwise. Cached until Name, Namespace, or the owner changes
// (SetName/SetNamespace/SetOwner all call invalidateFullName).
func (t *TypeDefinition) FullName() string {
	return t.fullName.Get(func() string {
		if declaring := t.DeclaringType(); declaring != nil {
			return declaring.FullName() + "/" + t.Name()
		}
		if ns := t.Namespace(); ns != "" {
			return ns + "." + t.Name()
		}
		return t.Name()
	})
}

// invalidateFullName resets this type's cached FullName and, since a
// nested type's FullName is derived from its declaring type's, every
// descendant's too — otherwise a descendant's already-read FullName
// would stay stale after an ancestor's name or owner changes.
func (t *TypeDefinition) invalidateFullName() {
	t.fullName.Reset()
	for _, nested := range t.nestedTypes.Items() {
		nested.invalidateFullName()
	}
}

// Attributes is the TypeDef table's Flags column.
func (t *TypeDefinition) Attributes() TypeAttributes {
	return t.flags.Get(func() TypeAttributes {
		if t.backing == nil {
			return 0
		}
		return TypeAttributes(t.backing.module.backing.tables.Column(token.TypeDef, t.backing.row, "Flags"))
	})
}

// SetAttributes overrides the type's raw attribute flags.
func (t *TypeDefinition) SetAttributes(v TypeAttributes) { t.flags.Set(v) }

// BaseType is the type's nullable base-type reference (a TypeDefOrRef
// token; token.Null if the type has none, e.g. System.Object or an
// interface).
func (t *TypeDefinition) BaseType() token.Token {
	return t.baseType.Get(func() token.Token {
		if t.backing == nil {
			return token.Null
		}
		tok, err := t.backing.module.backing.tables.CodedIndexAt(token.TypeDef, t.backing.row, "Extends")
		if err != nil {
			return token.Null
		}
		return tok
	})
}

// SetBaseType overrides the type's base-type reference.
func (t *TypeDefinition) SetBaseType(v token.Token) { t.baseType.Set(v) }

// NestedTypes returns the type's owned, ordered nested-type list (§3).
func (t *TypeDefinition) NestedTypes() *lazy.OwnedCollection[any, *TypeDefinition] {
	return t.nestedTypes
}

// IsNotPublic reports whether the type's visibility is NotPublic.
func (t *TypeDefinition) IsNotPublic() bool {
	return t.Attributes()&TypeAttributesVisibilityMask == TypeAttributesNotPublic
}

// SetIsNotPublic sets the visibility mask to NotPublic when true;
// otherwise it leaves Attributes untouched (asymmetric with the other
// visibility setters — carried as-is per spec.md §9's open question,
// since the source's behavior here is deliberately not "fixed").
func (t *TypeDefinition) SetIsNotPublic(v bool) {
	if v {
		t.SetAttributes(t.Attributes()&^TypeAttributesVisibilityMask | TypeAttributesNotPublic)
	}
}

// IsClass reports whether the type's class-semantics bit is Class
// (as opposed to Interface).
func (t *TypeDefinition) IsClass() bool {
	return t.Attributes()&TypeAttributesClassSemanticsMask == TypeAttributesClass
}

// SetIsClass sets the class-semantics bit to Class when true; a no-op
// when false (same asymmetry as SetIsNotPublic, per spec.md §9).
func (t *TypeDefinition) SetIsClass(v bool) {
	if v {
		t.SetAttributes(t.Attributes()&^TypeAttributesClassSemanticsMask | TypeAttributesClass)
	}
}

// IsAutoLayout reports whether the type's layout is AutoLayout.
func (t *TypeDefinition) IsAutoLayout() bool {
	return t.Attributes()&TypeAttributesLayoutMask == TypeAttributesAutoLayout
}

// SetIsAutoLayout sets the layout mask to AutoLayout when true; a no-op
// when false (same asymmetry, per spec.md §9).
func (t *TypeDefinition) SetIsAutoLayout(v bool) {
	if v {
		t.SetAttributes(t.Attributes()&^TypeAttributesLayoutMask | TypeAttributesAutoLayout)
	}
}

// IsAnsiClass reports whether the type's string format is AnsiClass.
func (t *TypeDefinition) IsAnsiClass() bool {
	return t.Attributes()&TypeAttributesStringFormatMask == TypeAttributesAnsiClass
}

// SetIsAnsiClass sets the string-format mask to AnsiClass when true; a
// no-op when false (same asymmetry, per spec.md §9).
func (t *TypeDefinition) SetIsAnsiClass(v bool) {
	if v {
		t.SetAttributes(t.Attributes()&^TypeAttributesStringFormatMask | TypeAttributesAnsiClass)
	}
}

// IsAbstract reports the Abstract bit.
func (t *TypeDefinition) IsAbstract() bool { return t.Attributes()&TypeAttributesAbstract != 0 }

// IsSealed reports the Sealed bit.
func (t *TypeDefinition) IsSealed() bool { return t.Attributes()&TypeAttributesSealed != 0 }

// IsInterface reports whether the class-semantics bit is Interface.
func (t *TypeDefinition) IsInterface() bool {
	return t.Attributes()&TypeAttributesClassSemanticsMask == TypeAttributesInterface
}

// IsRuntimeSpecialName reports the RTSpecialName bit (0x0800). Split
// from IsForwarder per spec.md §9's open-question decision: the source
// conflates these two distinct ECMA-335 bits, and this implementation
// does not.
func (t *TypeDefinition) IsRuntimeSpecialName() bool {
	return t.Attributes()&TypeAttributesRTSpecialName != 0
}

// SetIsRuntimeSpecialName sets or clears the RTSpecialName bit only.
func (t *TypeDefinition) SetIsRuntimeSpecialName(v bool) {
	if v {
		t.SetAttributes(t.Attributes() | TypeAttributesRTSpecialName)
	} else {
		t.SetAttributes(t.Attributes() &^ TypeAttributesRTSpecialName)
	}
}

// IsForwarder reports the Forwarder bit (0x00200000), distinct from
// IsRuntimeSpecialName (§9's open-question decision).
func (t *TypeDefinition) IsForwarder() bool {
	return t.Attributes()&TypeAttributesForwarder != 0
}

// SetIsForwarder sets or clears the Forwarder bit only.
func (t *TypeDefinition) SetIsForwarder(v bool) {
	if v {
		t.SetAttributes(t.Attributes() | TypeAttributesForwarder)
	} else {
		t.SetAttributes(t.Attributes() &^ TypeAttributesForwarder)
	}
}
