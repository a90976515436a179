// Package sig decodes the ECMA-335 §II.23.2 signature grammar stored in
// the `#Blob` heap: method, field, property, and local-variable
// signatures, and the recursive type signatures they embed.
package sig

import (
	"github.com/pkg/errors"

	"github.com/opcode9/clrmeta/pkg/clrmeta/bio"
	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// ErrBadImageFormat signals a signature blob that does not match the
// ECMA-335 grammar at the byte offset where decoding failed.
var ErrBadImageFormat = errors.New("sig: bad image format")

// ElementType is a single-byte type code per ECMA-335 §II.23.1.16.
type ElementType byte

const (
	ElementTypeEnd         ElementType = 0x00
	ElementTypeVoid        ElementType = 0x01
	ElementTypeBoolean     ElementType = 0x02
	ElementTypeChar        ElementType = 0x03
	ElementTypeI1          ElementType = 0x04
	ElementTypeU1          ElementType = 0x05
	ElementTypeI2          ElementType = 0x06
	ElementTypeU2          ElementType = 0x07
	ElementTypeI4          ElementType = 0x08
	ElementTypeU4          ElementType = 0x09
	ElementTypeI8          ElementType = 0x0A
	ElementTypeU8          ElementType = 0x0B
	ElementTypeR4          ElementType = 0x0C
	ElementTypeR8          ElementType = 0x0D
	ElementTypeString      ElementType = 0x0E
	ElementTypePtr         ElementType = 0x0F
	ElementTypeByRef       ElementType = 0x10
	ElementTypeValueType   ElementType = 0x11
	ElementTypeClass       ElementType = 0x12
	ElementTypeVar         ElementType = 0x13
	ElementTypeArray       ElementType = 0x14
	ElementTypeGenericInst ElementType = 0x15
	ElementTypeTypedByRef  ElementType = 0x16
	ElementTypeI           ElementType = 0x18
	ElementTypeU           ElementType = 0x19
	ElementTypeFnPtr       ElementType = 0x1B
	ElementTypeObject      ElementType = 0x1C
	ElementTypeSZArray     ElementType = 0x1D
	ElementTypeMVar        ElementType = 0x1E
	ElementTypeCModReqd    ElementType = 0x1F
	ElementTypeCModOpt     ElementType = 0x20
	ElementTypeInternal    ElementType = 0x21
	ElementTypeSentinel    ElementType = 0x41
	ElementTypePinned      ElementType = 0x45
)

// calling-convention byte bits, ECMA-335 §II.23.2.1.
const (
	callingConvKindMask  = 0x0F
	callingConvGeneric   = 0x10
	callingConvHasThis   = 0x20
	callingConvExplicit  = 0x40
)

// CallingConvention is the low-nibble calling-convention kind of a
// method signature's leading byte.
type CallingConvention byte

const (
	CallDefault  CallingConvention = 0x0
	CallC        CallingConvention = 0x1
	CallStdCall  CallingConvention = 0x2
	CallThisCall CallingConvention = 0x3
	CallFastCall CallingConvention = 0x4
	CallVarArg   CallingConvention = 0x5
)

// CustomModifier is a CMOD_REQD/CMOD_OPT prefix naming a modifier type
// (always a TypeDef/TypeRef/TypeSpec token).
type CustomModifier struct {
	Required bool
	Type     token.Token
}

// TypeSignature is a recursively-decoded ECMA-335 §II.23.2.12 Type
// production. Which fields are meaningful depends on ElementType.
type TypeSignature struct {
	Modifiers   []CustomModifier
	ElementType ElementType

	Type *token.Token // CLASS / VALUETYPE: the referenced TypeDefOrRefOrSpec

	Element *TypeSignature // PTR / BYREF / SZARRAY / ARRAY element type

	Rank     uint32  // ARRAY
	Sizes    []uint32
	LoBounds []int32

	GenericType *token.Token    // GENERICINST: the instantiated generic type
	GenericArgs []TypeSignature // GENERICINST: the type arguments

	Index uint32 // VAR / MVAR: the generic parameter number

	Method *MethodSignature // FNPTR
}

// decodeTypeDefOrRefOrSpec reads a compressed TypeDefOrRefOrSpec encoded
// token (§4.E): raw = compressed_uint; tag = raw & 3; rid = raw >> 2;
// table ∈ {TypeDef, TypeRef, TypeSpec}[tag].
func decodeTypeDefOrRefOrSpec(r *bio.Reader) (token.Token, error) {
	raw, err := r.ReadCompressedUInt32()
	if err != nil {
		return token.Null, err
	}
	tag := raw & 3
	rid := raw >> 2
	var table token.TableIndex
	switch tag {
	case 0:
		table = token.TypeDef
	case 1:
		table = token.TypeRef
	case 2:
		table = token.TypeSpec
	default:
		return token.Null, errors.Wrapf(ErrBadImageFormat, "TypeDefOrRefOrSpec tag %d out of range", tag)
	}
	return token.New(table, rid), nil
}

// readModifiers consumes a leading run of CMOD_REQD/CMOD_OPT prefixes,
// each followed by a compressed TypeDefOrRefOrSpec token (§4.E).
func readModifiers(r *bio.Reader) ([]CustomModifier, error) {
	var mods []CustomModifier
	for {
		b, err := r.PeekByte()
		if err != nil {
			return nil, err
		}
		et := ElementType(b)
		if et != ElementTypeCModReqd && et != ElementTypeCModOpt {
			return mods, nil
		}
		if _, err := r.ReadU8(); err != nil {
			return nil, err
		}
		tok, err := decodeTypeDefOrRefOrSpec(r)
		if err != nil {
			return nil, err
		}
		mods = append(mods, CustomModifier{Required: et == ElementTypeCModReqd, Type: tok})
	}
}

// TypeSignatureFromReader decodes one Type production, switching on the
// element-type byte and recursing into its operands (§4.E).
func TypeSignatureFromReader(r *bio.Reader) (*TypeSignature, error) {
	mods, err := readModifiers(r)
	if err != nil {
		return nil, err
	}

	offset := r.Position()
	b, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	et := ElementType(b)
	ts := &TypeSignature{Modifiers: mods, ElementType: et}

	switch et {
	case ElementTypeVoid, ElementTypeBoolean, ElementTypeChar,
		ElementTypeI1, ElementTypeU1, ElementTypeI2, ElementTypeU2,
		ElementTypeI4, ElementTypeU4, ElementTypeI8, ElementTypeU8,
		ElementTypeR4, ElementTypeR8, ElementTypeString, ElementTypeI,
		ElementTypeU, ElementTypeObject, ElementTypeTypedByRef:
		// primitive: no operand.

	case ElementTypeClass, ElementTypeValueType:
		tok, err := decodeTypeDefOrRefOrSpec(r)
		if err != nil {
			return nil, err
		}
		ts.Type = &tok

	case ElementTypePtr, ElementTypeByRef, ElementTypeSZArray:
		elem, err := TypeSignatureFromReader(r)
		if err != nil {
			return nil, err
		}
		ts.Element = elem

	case ElementTypePinned:
		elem, err := TypeSignatureFromReader(r)
		if err != nil {
			return nil, err
		}
		ts.Element = elem

	case ElementTypeArray:
		elem, err := TypeSignatureFromReader(r)
		if err != nil {
			return nil, err
		}
		ts.Element = elem

		rank, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, err
		}
		ts.Rank = rank

		numSizes, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, err
		}
		ts.Sizes = make([]uint32, numSizes)
		for i := range ts.Sizes {
			ts.Sizes[i], err = r.ReadCompressedUInt32()
			if err != nil {
				return nil, err
			}
		}

		numLoBounds, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, err
		}
		ts.LoBounds = make([]int32, numLoBounds)
		for i := range ts.LoBounds {
			ts.LoBounds[i], err = r.ReadCompressedInt32()
			if err != nil {
				return nil, err
			}
		}

	case ElementTypeGenericInst:
		kindByte, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		if ElementType(kindByte) != ElementTypeClass && ElementType(kindByte) != ElementTypeValueType {
			return nil, errors.Wrapf(ErrBadImageFormat, "GENERICINST kind byte 0x%x at offset %d is neither CLASS nor VALUETYPE", kindByte, offset)
		}
		tok, err := decodeTypeDefOrRefOrSpec(r)
		if err != nil {
			return nil, err
		}
		ts.GenericType = &tok

		argCount, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, err
		}
		ts.GenericArgs = make([]TypeSignature, argCount)
		for i := range ts.GenericArgs {
			arg, err := TypeSignatureFromReader(r)
			if err != nil {
				return nil, err
			}
			ts.GenericArgs[i] = *arg
		}

	case ElementTypeVar, ElementTypeMVar:
		idx, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, err
		}
		ts.Index = idx

	case ElementTypeFnPtr:
		method, err := MethodSignatureFromReader(r)
		if err != nil {
			return nil, err
		}
		ts.Method = method

	default:
		return nil, errors.Wrapf(ErrBadImageFormat, "unrecognized element type 0x%x at blob offset %d", b, offset)
	}

	return ts, nil
}

// MethodSignature is a decoded ECMA-335 §II.23.2.1 MethodDefSig /
// MethodRefSig.
type MethodSignature struct {
	HasThis           bool
	ExplicitThis      bool
	CallingConvention CallingConvention
	Generic           bool
	GenericParamCount uint32

	ReturnType TypeSignature
	Params     []TypeSignature

	// SentinelIndex is the index within Params where a VARARG call site's
	// extra arguments begin (ECMA-335 §II.23.2.2's SENTINEL marker), or -1
	// if the signature has no sentinel.
	SentinelIndex int
}

// MethodSignatureFromReader decodes a method signature: calling
// convention byte, optional generic-param count, param count, return
// type, then that many parameter types, with SENTINEL (0x41) marking the
// boundary before vararg extras (§4.E).
func MethodSignatureFromReader(r *bio.Reader) (*MethodSignature, error) {
	convByte, err := r.ReadU8()
	if err != nil {
		return nil, err
	}

	ms := &MethodSignature{
		HasThis:           convByte&callingConvHasThis != 0,
		ExplicitThis:      convByte&callingConvExplicit != 0,
		CallingConvention: CallingConvention(convByte & callingConvKindMask),
		Generic:           convByte&callingConvGeneric != 0,
		SentinelIndex:     -1,
	}

	if ms.Generic {
		ms.GenericParamCount, err = r.ReadCompressedUInt32()
		if err != nil {
			return nil, err
		}
	}

	paramCount, err := r.ReadCompressedUInt32()
	if err != nil {
		return nil, err
	}

	retType, err := TypeSignatureFromReader(r)
	if err != nil {
		return nil, err
	}
	ms.ReturnType = *retType

	ms.Params = make([]TypeSignature, 0, paramCount)
	for i := uint32(0); i < paramCount; i++ {
		b, err := r.PeekByte()
		if err != nil {
			return nil, err
		}
		if ElementType(b) == ElementTypeSentinel {
			if _, err := r.ReadU8(); err != nil {
				return nil, err
			}
			ms.SentinelIndex = len(ms.Params)
		}
		p, err := TypeSignatureFromReader(r)
		if err != nil {
			return nil, err
		}
		ms.Params = append(ms.Params, *p)
	}

	return ms, nil
}

// FieldSignature is a decoded ECMA-335 §II.23.2.4 FieldSig: a leading
// 0x06 marker, optional custom modifiers, then a Type.
type FieldSignature struct {
	Modifiers []CustomModifier
	Type      TypeSignature
}

const fieldSignatureCallingConvention = 0x06

// FieldSignatureFromReader decodes a field signature.
func FieldSignatureFromReader(r *bio.Reader) (*FieldSignature, error) {
	b, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if b != fieldSignatureCallingConvention {
		return nil, errors.Wrapf(ErrBadImageFormat, "field signature has bad leading byte 0x%x", b)
	}
	ty, err := TypeSignatureFromReader(r)
	if err != nil {
		return nil, err
	}
	return &FieldSignature{Modifiers: ty.Modifiers, Type: *ty}, nil
}

// PropertySignature is a decoded ECMA-335 §II.23.2.5 PropertySig.
type PropertySignature struct {
	HasThis bool
	Type    TypeSignature
	Params  []TypeSignature
}

const (
	propertySignatureCallingConvention = 0x08
	propertySignatureHasThis           = 0x20
)

// PropertySignatureFromReader decodes a property signature: a leading
// marker byte (with the HASTHIS bit set for instance properties), a
// compressed param count, the property's type, then that many indexer
// parameter types.
func PropertySignatureFromReader(r *bio.Reader) (*PropertySignature, error) {
	b, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if b&^propertySignatureHasThis != propertySignatureCallingConvention {
		return nil, errors.Wrapf(ErrBadImageFormat, "property signature has bad leading byte 0x%x", b)
	}
	ps := &PropertySignature{HasThis: b&propertySignatureHasThis != 0}

	paramCount, err := r.ReadCompressedUInt32()
	if err != nil {
		return nil, err
	}
	ty, err := TypeSignatureFromReader(r)
	if err != nil {
		return nil, err
	}
	ps.Type = *ty

	ps.Params = make([]TypeSignature, paramCount)
	for i := range ps.Params {
		p, err := TypeSignatureFromReader(r)
		if err != nil {
			return nil, err
		}
		ps.Params[i] = *p
	}
	return ps, nil
}

// LocalVar is one entry of a local-variable signature: an optional
// custom-modifier list, a pinned/byref flag, and the variable's type.
type LocalVar struct {
	Modifiers []CustomModifier
	Pinned    bool
	ByRef     bool
	Type      TypeSignature
}

// LocalVarSignature is a decoded ECMA-335 §II.23.2.6 LocalVarSig: a
// leading 0x07 marker, a compressed count, then that many LocalVar
// entries.
type LocalVarSignature struct {
	Locals []LocalVar
}

const localVarSignatureCallingConvention = 0x07

// LocalVarSignatureFromReader decodes a standalone local-variable
// signature (the kind StandAloneSig rows of a method body point at).
func LocalVarSignatureFromReader(r *bio.Reader) (*LocalVarSignature, error) {
	b, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if b != localVarSignatureCallingConvention {
		return nil, errors.Wrapf(ErrBadImageFormat, "local var signature has bad leading byte 0x%x", b)
	}
	count, err := r.ReadCompressedUInt32()
	if err != nil {
		return nil, err
	}

	lv := &LocalVarSignature{Locals: make([]LocalVar, count)}
	for i := range lv.Locals {
		mods, err := readModifiers(r)
		if err != nil {
			return nil, err
		}
		local := LocalVar{Modifiers: mods}

		for {
			peek, err := r.PeekByte()
			if err != nil {
				return nil, err
			}
			if ElementType(peek) == ElementTypePinned {
				r.ReadU8()
				local.Pinned = true
				continue
			}
			if ElementType(peek) == ElementTypeByRef {
				r.ReadU8()
				local.ByRef = true
				continue
			}
			break
		}

		ty, err := TypeSignatureFromReader(r)
		if err != nil {
			return nil, err
		}
		local.Type = *ty
		lv.Locals[i] = local
	}
	return lv, nil
}
