package mdtable

import "github.com/opcode9/clrmeta/pkg/clrmeta/token"

// ColumnKind classifies how a table column's on-disk width is derived.
type ColumnKind int

const (
	// KindU8/KindU16/KindU32 are fixed-size scalar columns.
	KindU8 ColumnKind = iota
	KindU16
	KindU32
	// KindStringsIndex/KindBlobIndex/KindGuidIndex are heap indices whose
	// width (2 or 4 bytes) depends on the tables-stream header's
	// heap-size flags.
	KindStringsIndex
	KindBlobIndex
	KindGuidIndex
	// KindSimpleIndex references a single other table; width depends on
	// that table's row count (2 bytes unless it overflows 16 bits).
	KindSimpleIndex
	// KindCodedIndex is a CodedIndex column; width depends on the coded
	// index kind's Width rule.
	KindCodedIndex
)

// Column describes one table column's shape before its runtime width is
// resolved.
type Column struct {
	Name  string
	Kind  ColumnKind
	Table token.TableIndex     // for KindSimpleIndex
	Coded token.CodedIndexKind // for KindCodedIndex
}

func u8(name string) Column  { return Column{Name: name, Kind: KindU8} }
func u16(name string) Column { return Column{Name: name, Kind: KindU16} }
func u32(name string) Column { return Column{Name: name, Kind: KindU32} }
func str(name string) Column { return Column{Name: name, Kind: KindStringsIndex} }
func blob(name string) Column { return Column{Name: name, Kind: KindBlobIndex} }
func guid(name string) Column { return Column{Name: name, Kind: KindGuidIndex} }
func simple(name string, t token.TableIndex) Column {
	return Column{Name: name, Kind: KindSimpleIndex, Table: t}
}
func coded(name string, k token.CodedIndexKind) Column {
	return Column{Name: name, Kind: KindCodedIndex, Coded: k}
}

// Schema returns the ordered column list for a table index, per
// ECMA-335 §II.22.
func Schema(t token.TableIndex) []Column {
	switch t {
	case token.Module:
		return []Column{u16("Generation"), str("Name"), guid("Mvid"), guid("EncId"), guid("EncBaseId")}
	case token.TypeRef:
		return []Column{coded("ResolutionScope", token.ResolutionScope), str("Name"), str("Namespace")}
	case token.TypeDef:
		return []Column{
			u32("Flags"), str("Name"), str("Namespace"),
			coded("Extends", token.TypeDefOrRef),
			simple("FieldList", token.Field),
			simple("MethodList", token.MethodDef),
		}
	case token.FieldPtr:
		return []Column{simple("Field", token.Field)}
	case token.Field:
		return []Column{u16("Flags"), str("Name"), blob("Signature")}
	case token.MethodPtr:
		return []Column{simple("Method", token.MethodDef)}
	case token.MethodDef:
		return []Column{
			u32("RVA"), u16("ImplFlags"), u16("Flags"), str("Name"),
			blob("Signature"), simple("ParamList", token.Param),
		}
	case token.ParamPtr:
		return []Column{simple("Param", token.Param)}
	case token.Param:
		return []Column{u16("Flags"), u16("Sequence"), str("Name")}
	case token.InterfaceImpl:
		return []Column{simple("Class", token.TypeDef), coded("Interface", token.TypeDefOrRef)}
	case token.MemberRef:
		return []Column{coded("Class", token.MemberRefParent), str("Name"), blob("Signature")}
	case token.Constant:
		return []Column{u8("Type"), u8("Padding"), coded("Parent", token.HasConstant), blob("Value")}
	case token.CustomAttribute:
		return []Column{
			coded("Parent", token.HasCustomAttribute),
			coded("Type", token.CustomAttributeType),
			blob("Value"),
		}
	case token.FieldMarshal:
		return []Column{coded("Parent", token.HasFieldMarshal), blob("NativeType")}
	case token.DeclSecurity:
		return []Column{u16("Action"), coded("Parent", token.HasDeclSecurity), blob("PermissionSet")}
	case token.ClassLayout:
		return []Column{u16("PackingSize"), u32("ClassSize"), simple("Parent", token.TypeDef)}
	case token.FieldLayout:
		return []Column{u32("Offset"), simple("Field", token.Field)}
	case token.StandAloneSig:
		return []Column{blob("Signature")}
	case token.EventMap:
		return []Column{simple("Parent", token.TypeDef), simple("EventList", token.Event)}
	case token.EventPtr:
		return []Column{simple("Event", token.Event)}
	case token.Event:
		return []Column{u16("EventFlags"), str("Name"), coded("EventType", token.TypeDefOrRef)}
	case token.PropertyMap:
		return []Column{simple("Parent", token.TypeDef), simple("PropertyList", token.Property)}
	case token.PropertyPtr:
		return []Column{simple("Property", token.Property)}
	case token.Property:
		return []Column{u16("Flags"), str("Name"), blob("Type")}
	case token.MethodSemantics:
		return []Column{u16("Semantics"), simple("Method", token.MethodDef), coded("Association", token.HasSemantics)}
	case token.MethodImpl:
		return []Column{
			simple("Class", token.TypeDef),
			coded("MethodBody", token.MethodDefOrRef),
			coded("MethodDeclaration", token.MethodDefOrRef),
		}
	case token.ModuleRef:
		return []Column{str("Name")}
	case token.TypeSpec:
		return []Column{blob("Signature")}
	case token.ImplMap:
		return []Column{
			u16("MappingFlags"),
			coded("MemberForwarded", token.MemberForwarded),
			str("ImportName"),
			simple("ImportScope", token.ModuleRef),
		}
	case token.FieldRVA:
		return []Column{u32("RVA"), simple("Field", token.Field)}
	case token.ENCLog:
		return []Column{u32("Token"), u32("FuncCode")}
	case token.ENCMap:
		return []Column{u32("Token")}
	case token.Assembly:
		return []Column{
			u32("HashAlgId"), u16("MajorVersion"), u16("MinorVersion"),
			u16("BuildNumber"), u16("RevisionNumber"), u32("Flags"),
			blob("PublicKey"), str("Name"), str("Culture"),
		}
	case token.AssemblyProcessor:
		return []Column{u32("Processor")}
	case token.AssemblyOS:
		return []Column{u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion")}
	case token.AssemblyRef:
		return []Column{
			u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"),
			u16("RevisionNumber"), u32("Flags"), blob("PublicKeyOrToken"),
			str("Name"), str("Culture"), blob("HashValue"),
		}
	case token.AssemblyRefProcessor:
		return []Column{u32("Processor"), simple("AssemblyRef", token.AssemblyRef)}
	case token.AssemblyRefOS:
		return []Column{
			u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion"),
			simple("AssemblyRef", token.AssemblyRef),
		}
	case token.File:
		return []Column{u32("Flags"), str("Name"), blob("HashValue")}
	case token.ExportedType:
		return []Column{
			u32("Flags"), u32("TypeDefId"), str("TypeName"), str("TypeNamespace"),
			coded("Implementation", token.Implementation),
		}
	case token.ManifestResource:
		return []Column{u32("Offset"), u32("Flags"), str("Name"), coded("Implementation", token.Implementation)}
	case token.NestedClass:
		return []Column{simple("NestedClass", token.TypeDef), simple("EnclosingClass", token.TypeDef)}
	case token.GenericParam:
		return []Column{
			u16("Number"), u16("Flags"), coded("Owner", token.TypeOrMethodDef), str("Name"),
		}
	case token.MethodSpec:
		return []Column{coded("Method", token.MethodDefOrRef), blob("Instantiation")}
	case token.GenericParamConstraint:
		return []Column{simple("Owner", token.GenericParam), coded("Constraint", token.TypeDefOrRef)}
	default:
		return nil
	}
}

// SortedTables lists tables that the `sorted` header bitmask may mark as
// sorted by their first column (a parent pointer), enabling FindRange's
// binary search.
var SortedTables = map[token.TableIndex]bool{
	token.InterfaceImpl:          true,
	token.Constant:               true,
	token.CustomAttribute:        true,
	token.FieldMarshal:           true,
	token.DeclSecurity:           true,
	token.ClassLayout:            true,
	token.FieldLayout:            true,
	token.EventMap:               true,
	token.PropertyMap:            true,
	token.MethodSemantics:        true,
	token.MethodImpl:             true,
	token.ImplMap:                true,
	token.FieldRVA:               true,
	token.NestedClass:            true,
	token.GenericParam:           true,
	token.GenericParamConstraint: true,
}

// AllTableIndices lists every table the tables stream can describe, in
// ascending order — the order their row-count entries and row bodies are
// laid out.
var AllTableIndices = []token.TableIndex{
	token.Module, token.TypeRef, token.TypeDef, token.FieldPtr, token.Field,
	token.MethodPtr, token.MethodDef, token.ParamPtr, token.Param,
	token.InterfaceImpl, token.MemberRef, token.Constant, token.CustomAttribute,
	token.FieldMarshal, token.DeclSecurity, token.ClassLayout, token.FieldLayout,
	token.StandAloneSig, token.EventMap, token.EventPtr, token.Event,
	token.PropertyMap, token.PropertyPtr, token.Property, token.MethodSemantics,
	token.MethodImpl, token.ModuleRef, token.TypeSpec, token.ImplMap,
	token.FieldRVA, token.ENCLog, token.ENCMap, token.Assembly,
	token.AssemblyProcessor, token.AssemblyOS, token.AssemblyRef,
	token.AssemblyRefProcessor, token.AssemblyRefOS, token.File,
	token.ExportedType, token.ManifestResource, token.NestedClass,
	token.GenericParam, token.MethodSpec, token.GenericParamConstraint,
}
