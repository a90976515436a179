// Package heaps decodes the CLI metadata root and its four named heaps:
// #Strings, #Blob, #GUID, and #US.
package heaps

import (
	"github.com/pkg/errors"

	"github.com/opcode9/clrmeta/pkg/clrmeta/bio"
)

// ErrBadImageFormat signals a malformed metadata root: bad signature,
// truncated stream-header array, or a missing required stream.
var ErrBadImageFormat = errors.New("heaps: bad image format")

const metadataRootSignature = 0x424A5342

// RootStreams is the name → byte-range map decoded from the metadata
// root's stream header array. Names are the raw 4-byte-aligned tags
// (e.g. "#~", "#Strings", "#Blob", "#GUID", "#US").
type RootStreams map[string][]byte

// ParseRoot decodes the metadata root blob (ECMA-335 §II.24.2.1): magic,
// version string, flags, and the stream-header array, returning a map of
// stream name to its raw bytes sliced from the root blob.
func ParseRoot(data []byte) (RootStreams, error) {
	r := bio.NewReader(data)

	sig, err := r.ReadU32()
	if err != nil {
		return nil, errors.Wrap(ErrBadImageFormat, "truncated metadata root")
	}
	if sig != metadataRootSignature {
		return nil, errors.Wrapf(ErrBadImageFormat, "bad metadata root signature 0x%x", sig)
	}

	if _, err := r.ReadU16(); err != nil { // major version
		return nil, errors.Wrap(ErrBadImageFormat, "truncated metadata root version")
	}
	if _, err := r.ReadU16(); err != nil { // minor version
		return nil, errors.Wrap(ErrBadImageFormat, "truncated metadata root version")
	}
	if _, err := r.ReadU32(); err != nil { // reserved
		return nil, errors.Wrap(ErrBadImageFormat, "truncated metadata root reserved field")
	}

	versionLen, err := r.ReadU32()
	if err != nil {
		return nil, errors.Wrap(ErrBadImageFormat, "truncated metadata version length")
	}
	if _, err := r.ReadBytes(int(versionLen)); err != nil {
		return nil, errors.Wrap(ErrBadImageFormat, "truncated metadata version string")
	}

	if _, err := r.ReadU16(); err != nil { // flags
		return nil, errors.Wrap(ErrBadImageFormat, "truncated metadata root flags")
	}
	numStreams, err := r.ReadU16()
	if err != nil {
		return nil, errors.Wrap(ErrBadImageFormat, "truncated stream count")
	}

	streams := make(RootStreams, numStreams)
	for i := uint16(0); i < numStreams; i++ {
		offset, err := r.ReadU32()
		if err != nil {
			return nil, errors.Wrapf(ErrBadImageFormat, "truncated stream header %d offset", i)
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, errors.Wrapf(ErrBadImageFormat, "truncated stream header %d size", i)
		}
		name, err := readAlignedName(r)
		if err != nil {
			return nil, errors.Wrapf(ErrBadImageFormat, "truncated stream header %d name", i)
		}

		end := uint64(offset) + uint64(size)
		if end > uint64(len(data)) {
			return nil, errors.Wrapf(ErrBadImageFormat, "stream %q extends past end of metadata root (offset %d, size %d, root length %d)", name, offset, size, len(data))
		}
		streams[name] = data[offset:end]
	}

	return streams, nil
}

// readAlignedName reads a NUL-terminated stream name padded to a
// 4-byte boundary, per ECMA-335 §II.24.2.2.
func readAlignedName(r *bio.Reader) (string, error) {
	start := r.Position()
	var nameBytes []byte
	for {
		b, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		nameBytes = append(nameBytes, b)
	}
	consumed := r.Position() - start
	padded := (consumed + 3) &^ 3
	if pad := padded - consumed; pad > 0 {
		if _, err := r.ReadBytes(pad); err != nil {
			return "", err
		}
	}
	return string(nameBytes), nil
}
