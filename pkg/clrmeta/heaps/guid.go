package heaps

import "github.com/google/uuid"

// GuidStream decodes the #GUID heap: a 1-based array of 16-byte values.
type GuidStream struct {
	data []byte
}

// NewGuidStream wraps the raw #GUID heap bytes.
func NewGuidStream(data []byte) *GuidStream {
	return &GuidStream{data: data}
}

// GetGuid returns the GUID at the given 1-based index. Index 0 returns
// the zero GUID (§4.B).
func (g *GuidStream) GetGuid(index uint32) uuid.UUID {
	if index == 0 {
		return uuid.Nil
	}
	offset := int(index-1) * 16
	if offset < 0 || offset+16 > len(g.data) {
		return uuid.Nil
	}
	return fromWindowsGUIDBytes(g.data[offset : offset+16])
}

// fromWindowsGUIDBytes converts a little-endian Windows GUID byte layout
// (the on-disk layout of a .NET System.Guid) into uuid.UUID's RFC 4122
// big-endian field order.
func fromWindowsGUIDBytes(b []byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:16])
	return u
}
