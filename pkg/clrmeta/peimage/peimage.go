// Package peimage implements the external IPEImage capability named in
// spec.md §6: enough of a PE/COFF reader to locate the CLR runtime
// header and, from it, the CLI metadata root blob. Full PE layout
// (sections, relocations, resource directories) is explicitly out of
// scope per spec.md §1; this package only walks what is needed to find
// one data directory.
package peimage

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrBadImageFormat signals a structural PE/CLI violation: bad magic,
// missing data directory, or an otherwise malformed image.
var ErrBadImageFormat = errors.New("peimage: bad image format")

const (
	dosHeaderSize        = 64
	peSignature          = "PE\x00\x00"
	clrHeaderDirIndex     = 14 // IMAGE_DIRECTORY_ENTRY_COMHEADER
	cliMetadataSignature = 0x424A5342
)

// section describes one IMAGE_SECTION_HEADER entry relevant to RVA
// translation.
type section struct {
	virtualAddress uint32
	virtualSize    uint32
	rawOffset      uint32
	rawSize        uint32
}

// Image is a loaded PE image with its CLR metadata root located.
type Image struct {
	data         []byte
	sections     []section
	metadataRVA  uint32
	metadataSize uint32
}

// Open parses a PE image from raw bytes and locates its .NET directory.
func Open(data []byte) (*Image, error) {
	img := &Image{data: data}
	if err := img.parse(); err != nil {
		return nil, err
	}
	return img, nil
}

func (img *Image) parse() error {
	if len(img.data) < dosHeaderSize {
		return errors.Wrap(ErrBadImageFormat, "file too small for MS-DOS header")
	}
	if img.data[0] != 'M' || img.data[1] != 'Z' {
		return errors.Wrap(ErrBadImageFormat, "missing MZ signature")
	}

	peOffset := binary.LittleEndian.Uint32(img.data[0x3C:])
	if uint64(peOffset)+24 > uint64(len(img.data)) {
		return errors.Wrap(ErrBadImageFormat, "PE header offset out of range")
	}
	if string(img.data[peOffset:peOffset+4]) != peSignature {
		return errors.Wrap(ErrBadImageFormat, "missing PE signature")
	}

	coffOffset := peOffset + 4
	numberOfSections := binary.LittleEndian.Uint16(img.data[coffOffset+2:])
	sizeOfOptionalHeader := binary.LittleEndian.Uint16(img.data[coffOffset+16:])
	optOffset := coffOffset + 20

	if uint64(optOffset)+uint64(sizeOfOptionalHeader) > uint64(len(img.data)) {
		return errors.Wrap(ErrBadImageFormat, "optional header out of range")
	}
	magic := binary.LittleEndian.Uint16(img.data[optOffset:])

	var dataDirOffset uint32
	switch magic {
	case 0x10b: // PE32
		dataDirOffset = optOffset + 96
	case 0x20b: // PE32+
		dataDirOffset = optOffset + 112
	default:
		return errors.Wrapf(ErrBadImageFormat, "unrecognized optional header magic 0x%x", magic)
	}

	dirEntryOffset := dataDirOffset + uint32(clrHeaderDirIndex)*8
	if uint64(dirEntryOffset)+8 > uint64(len(img.data)) {
		return errors.Wrap(ErrBadImageFormat, "missing CLR header data directory")
	}
	clrRVA := binary.LittleEndian.Uint32(img.data[dirEntryOffset:])
	clrSize := binary.LittleEndian.Uint32(img.data[dirEntryOffset+4:])
	if clrRVA == 0 || clrSize == 0 {
		return errors.Wrap(ErrBadImageFormat, "image has no CLR runtime header")
	}

	sectionTableOffset := optOffset + uint32(sizeOfOptionalHeader)
	img.sections = make([]section, 0, numberOfSections)
	for i := uint16(0); i < numberOfSections; i++ {
		base := sectionTableOffset + uint32(i)*40
		if uint64(base)+40 > uint64(len(img.data)) {
			return errors.Wrap(ErrBadImageFormat, "section table truncated")
		}
		img.sections = append(img.sections, section{
			virtualSize:    binary.LittleEndian.Uint32(img.data[base+8:]),
			virtualAddress: binary.LittleEndian.Uint32(img.data[base+12:]),
			rawSize:        binary.LittleEndian.Uint32(img.data[base+16:]),
			rawOffset:      binary.LittleEndian.Uint32(img.data[base+20:]),
		})
	}

	clrOffset, err := img.rvaToOffset(clrRVA)
	if err != nil {
		return err
	}
	if uint64(clrOffset)+72 > uint64(len(img.data)) {
		return errors.Wrap(ErrBadImageFormat, "CLR header truncated")
	}
	metadataRVA := binary.LittleEndian.Uint32(img.data[clrOffset+8:])
	metadataSize := binary.LittleEndian.Uint32(img.data[clrOffset+12:])
	if metadataRVA == 0 || metadataSize == 0 {
		return errors.Wrap(ErrBadImageFormat, "CLR header has no metadata directory")
	}

	img.metadataRVA = metadataRVA
	img.metadataSize = metadataSize
	return nil
}

// rvaToOffset translates a relative virtual address to a file offset by
// finding the section whose virtual range contains it.
func (img *Image) rvaToOffset(rva uint32) (uint32, error) {
	for _, s := range img.sections {
		if rva >= s.virtualAddress && rva < s.virtualAddress+max32(s.virtualSize, s.rawSize) {
			return s.rawOffset + (rva - s.virtualAddress), nil
		}
	}
	return 0, errors.Wrapf(ErrBadImageFormat, "RVA 0x%x not contained in any section", rva)
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// MetadataBlob returns the raw CLI metadata root blob bytes.
func (img *Image) MetadataBlob() ([]byte, error) {
	offset, err := img.rvaToOffset(img.metadataRVA)
	if err != nil {
		return nil, err
	}
	end := uint64(offset) + uint64(img.metadataSize)
	if end > uint64(len(img.data)) {
		return nil, errors.Wrap(ErrBadImageFormat, "metadata root extends past end of file")
	}
	if img.metadataSize < 4 || binary.LittleEndian.Uint32(img.data[offset:]) != cliMetadataSignature {
		return nil, errors.Wrap(ErrBadImageFormat, "bad CLI metadata root signature")
	}
	return img.data[offset:end], nil
}
