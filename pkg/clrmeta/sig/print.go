package sig

import (
	"fmt"
	"strings"
)

// primitiveNames mirrors the teacher's GetBuiltinTypeName table: a flat
// switch from element-type code to its C#-ish rendered name.
var primitiveNames = map[ElementType]string{
	ElementTypeVoid:    "void",
	ElementTypeBoolean: "bool",
	ElementTypeChar:    "char",
	ElementTypeI1:      "sbyte",
	ElementTypeU1:      "byte",
	ElementTypeI2:      "short",
	ElementTypeU2:      "ushort",
	ElementTypeI4:      "int",
	ElementTypeU4:      "uint",
	ElementTypeI8:      "long",
	ElementTypeU8:      "ulong",
	ElementTypeR4:      "float",
	ElementTypeR8:      "double",
	ElementTypeString:  "string",
	ElementTypeI:       "nint",
	ElementTypeU:       "nuint",
	ElementTypeObject:  "object",
	ElementTypeTypedByRef: "TypedReference",
}

// String renders a TypeSignature as a C#-ish type name. Because this
// package never sees the metadata tables, a CLASS/VALUETYPE/GENERICINST
// operand prints its raw token rather than a resolved name — callers
// that want resolved names look the token up via a ModuleDefinition and
// substitute it (sig has no dependency on metadata, so it cannot do this
// itself).
func (ts *TypeSignature) String() string {
	var b strings.Builder
	ts.writeTo(&b)
	return b.String()
}

func (ts *TypeSignature) writeTo(b *strings.Builder) {
	for _, m := range ts.Modifiers {
		if m.Required {
			fmt.Fprintf(b, "modreq(%s) ", m.Type)
		} else {
			fmt.Fprintf(b, "modopt(%s) ", m.Type)
		}
	}

	if name, ok := primitiveNames[ts.ElementType]; ok {
		b.WriteString(name)
		return
	}

	switch ts.ElementType {
	case ElementTypeClass, ElementTypeValueType:
		if ts.Type != nil {
			fmt.Fprintf(b, "%s", *ts.Type)
		} else {
			b.WriteString("<unknown type>")
		}

	case ElementTypePtr:
		ts.Element.writeTo(b)
		b.WriteString("*")

	case ElementTypeByRef:
		b.WriteString("ref ")
		ts.Element.writeTo(b)

	case ElementTypePinned:
		ts.Element.writeTo(b)
		b.WriteString(" pinned")

	case ElementTypeSZArray:
		ts.Element.writeTo(b)
		b.WriteString("[]")

	case ElementTypeArray:
		ts.Element.writeTo(b)
		b.WriteString("[")
		for i := uint32(0); i < ts.Rank; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			if int(i) < len(ts.Sizes) {
				fmt.Fprintf(b, "%d", ts.Sizes[i])
			}
		}
		b.WriteString("]")

	case ElementTypeGenericInst:
		if ts.GenericType != nil {
			fmt.Fprintf(b, "%s", *ts.GenericType)
		}
		b.WriteString("<")
		for i, arg := range ts.GenericArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			arg.writeTo(b)
		}
		b.WriteString(">")

	case ElementTypeVar:
		fmt.Fprintf(b, "!%d", ts.Index)

	case ElementTypeMVar:
		fmt.Fprintf(b, "!!%d", ts.Index)

	case ElementTypeFnPtr:
		if ts.Method != nil {
			b.WriteString("method ")
			b.WriteString(ts.Method.String())
		} else {
			b.WriteString("method <?>")
		}

	default:
		fmt.Fprintf(b, "<element 0x%x>", byte(ts.ElementType))
	}
}

// String renders a MethodSignature as "ReturnType (Param1, Param2, ...)",
// matching the teacher's plain-concatenation demangled-name style.
func (ms *MethodSignature) String() string {
	var b strings.Builder

	if ms.Generic {
		fmt.Fprintf(&b, "<%d generic params> ", ms.GenericParamCount)
	}

	b.WriteString(ms.ReturnType.String())
	b.WriteString(" (")
	for i, p := range ms.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if ms.SentinelIndex == i {
			b.WriteString("..., ")
		}
		b.WriteString(p.String())
	}
	if ms.SentinelIndex == len(ms.Params) {
		if len(ms.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteString(")")
	return b.String()
}

// String renders a field's declared type.
func (fs *FieldSignature) String() string {
	return fs.Type.String()
}

// String renders a property signature as "Type this[Param1, Param2]" for
// an indexer, or plain "Type" otherwise.
func (ps *PropertySignature) String() string {
	if len(ps.Params) == 0 {
		return ps.Type.String()
	}
	var b strings.Builder
	b.WriteString(ps.Type.String())
	b.WriteString(" this[")
	for i, p := range ps.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString("]")
	return b.String()
}

// String renders a local-variable signature as a parenthesized type
// list, mirroring MethodSignature.String's param rendering.
func (lv *LocalVarSignature) String() string {
	var b strings.Builder
	b.WriteString("(")
	for i, l := range lv.Locals {
		if i > 0 {
			b.WriteString(", ")
		}
		if l.Pinned {
			b.WriteString("pinned ")
		}
		if l.ByRef {
			b.WriteString("ref ")
		}
		b.WriteString(l.Type.String())
	}
	b.WriteString(")")
	return b.String()
}
