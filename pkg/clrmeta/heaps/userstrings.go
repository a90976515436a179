package heaps

import (
	"unicode/utf16"

	"github.com/opcode9/clrmeta/pkg/clrmeta/bio"
)

// UserStringsStream decodes the #US heap: length-prefixed UTF-16 blobs,
// used for string literals embedded in IL (ldstr operands).
type UserStringsStream struct {
	data []byte
}

// NewUserStringsStream wraps the raw #US heap bytes.
func NewUserStringsStream(data []byte) *UserStringsStream {
	return &UserStringsStream{data: data}
}

// GetString decodes the UTF-16 string at index. The blob's length prefix
// counts bytes, including a trailing marker byte (the low bit of which
// flags whether the string contains characters needing special handling
// on decode back to IL) that is consumed but not interpreted here, per
// spec.md §9's silence on that bit's semantics.
func (u *UserStringsStream) GetString(index uint32) (string, error) {
	if index == 0 || int(index) >= len(u.data) {
		return "", nil
	}
	r := bio.NewReader(u.data[index:])
	length, err := r.ReadCompressedUInt32()
	if err != nil {
		return "", err
	}
	body, err := r.ReadBytes(int(length))
	if err != nil {
		return "", err
	}

	charBytes := body
	if len(charBytes)%2 == 1 {
		charBytes = charBytes[:len(charBytes)-1] // drop trailing marker byte
	}

	units := make([]uint16, len(charBytes)/2)
	for i := range units {
		units[i] = uint16(charBytes[2*i]) | uint16(charBytes[2*i+1])<<8
	}
	return string(utf16.Decode(units)), nil
}
