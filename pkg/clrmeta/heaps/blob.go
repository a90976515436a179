package heaps

import (
	"github.com/opcode9/clrmeta/pkg/clrmeta/bio"
)

// BlobStream decodes the #Blob heap: each entry is a compressed-uint32
// length prefix followed by that many raw bytes.
type BlobStream struct {
	data []byte
}

// NewBlobStream wraps the raw #Blob heap bytes.
func NewBlobStream(data []byte) *BlobStream {
	return &BlobStream{data: data}
}

// GetBlob returns a reader over the length-prefixed blob at index. Index
// 0 yields an empty reader (§4.B).
func (b *BlobStream) GetBlob(index uint32) (*bio.Reader, error) {
	if index == 0 || int(index) >= len(b.data) {
		return bio.NewReader(nil), nil
	}
	r := bio.NewReader(b.data[index:])
	length, err := r.ReadCompressedUInt32()
	if err != nil {
		return nil, err
	}
	body, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	return bio.NewReader(body), nil
}
