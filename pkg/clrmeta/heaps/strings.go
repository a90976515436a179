package heaps

import "bytes"

// StringsStream decodes the #Strings heap: UTF-8 strings terminated by a
// NUL byte, indexed by byte offset.
type StringsStream struct {
	data []byte
}

// NewStringsStream wraps the raw #Strings heap bytes.
func NewStringsStream(data []byte) *StringsStream {
	return &StringsStream{data: data}
}

// GetString returns the string at index, or nil for index 0 (§4.B).
func (s *StringsStream) GetString(index uint32) *string {
	if index == 0 || int(index) >= len(s.data) {
		return nil
	}
	rest := s.data[index:]
	end := bytes.IndexByte(rest, 0)
	var str string
	if end == -1 {
		str = string(rest)
	} else {
		str = string(rest[:end])
	}
	return &str
}
