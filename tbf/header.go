// Package tbf reads application images in the Tock Binary Format, version 2.
//
// An image starts with a 16 byte base header followed by type-length-value
// entries, then the application itself:
//
//	u16 version
//	u16 header size
//	u32 total size
//	u32 flags
//	u32 checksum
//	{ u16 type, u16 length, value padded to 4 bytes }...
//
// The checksum is the XOR of every header word except the checksum itself.
// Images are placed back to back in flash. An image with no entries is
// padding between applications.
package tbf

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/ezrec/uproc/internal"
)

const (
	VERSION   = 2
	BASE_SIZE = 16

	FLAG_ENABLED = uint32(1 << 0)

	TLV_MAIN                    = uint16(1)
	TLV_WRITEABLE_FLASH_REGIONS = uint16(2)
	TLV_PACKAGE_NAME            = uint16(3)
	TLV_FIXED_ADDRESSES         = uint16(5)

	NO_FIXED_ADDRESS = ^uint32(0)

	MAX_WRITEABLE_FLASH_REGIONS = 4
)

// Main is the entry of an image that runs.
type Main struct {
	InitOffset    uint32 `yaml:"init_offset"`    // Entry point, from the image start.
	ProtectedSize uint32 `yaml:"protected_size"` // Bytes after the header the process may not write.
	MinimumRAM    uint32 `yaml:"minimum_ram"`    // RAM the process needs.
}

// WriteableFlashRegion is a span of the image the process may write.
type WriteableFlashRegion struct {
	Offset uint32 `yaml:"offset"`
	Size   uint32 `yaml:"size"`
}

// FixedAddresses pins an image to a RAM or flash address.
type FixedAddresses struct {
	RAM   uint32 `yaml:"ram"`
	Flash uint32 `yaml:"flash"`
}

// Header is a parsed image header.
type Header struct {
	Version    uint16 `yaml:"version"`
	HeaderSize uint16 `yaml:"header_size"`
	TotalSize  uint32 `yaml:"total_size"`
	Flags      uint32 `yaml:"flags"`
	Checksum   uint32 `yaml:"checksum"`

	Main                  *Main                  `yaml:"main,omitempty"`
	PackageName           string                 `yaml:"package_name,omitempty"`
	WriteableFlashRegions []WriteableFlashRegion `yaml:"writeable_flash_regions,omitempty"`
	FixedAddresses        *FixedAddresses        `yaml:"fixed_addresses,omitempty"`
}

// Padding reports whether the image only fills space between applications.
func (h *Header) Padding() bool {
	return h.HeaderSize == BASE_SIZE
}

// Enabled reports whether the image should be started.
func (h *Header) Enabled() bool {
	return !h.Padding() && h.Flags&FLAG_ENABLED != 0
}

// InitOffset is the entry point offset, or zero without a main entry.
func (h *Header) InitOffset() uint32 {
	if h.Main == nil {
		return 0
	}
	return h.Main.InitOffset
}

// MinimumRAM is the RAM the process needs, or zero without a main entry.
func (h *Header) MinimumRAM() uint32 {
	if h.Main == nil {
		return 0
	}
	return h.Main.MinimumRAM
}

// ParseLengths reads the version, header size and total size from the
// start of an image. ErrEndOfImages means data does not start an image. Any
// other error still returns a trustworthy total size so the image can be
// skipped.
func ParseLengths(data []byte) (version uint16, headerSize uint16, totalSize uint32, err error) {
	if len(data) < 8 {
		err = ErrEndOfImages
		return
	}

	version = binary.LittleEndian.Uint16(data[0:])
	if version != VERSION {
		err = ErrEndOfImages
		return
	}

	headerSize = binary.LittleEndian.Uint16(data[2:])
	totalSize = binary.LittleEndian.Uint32(data[4:])
	if totalSize < BASE_SIZE || uint32(headerSize) > totalSize || headerSize < BASE_SIZE {
		err = ErrNotEnoughData
		return
	}

	return
}

// checksum is the XOR of every header word except the checksum word.
func checksum(header []byte) (sum uint32) {
	for n := 0; n+4 <= len(header); n += 4 {
		if n == 12 {
			continue
		}
		sum ^= binary.LittleEndian.Uint32(header[n:])
	}
	return
}

// Parse reads the header at the start of data.
func Parse(data []byte) (h Header, err error) {
	if len(data) >= 2 {
		if version := binary.LittleEndian.Uint16(data); version != VERSION {
			err = ErrVersion(version)
			return
		}
	}

	version, headerSize, totalSize, err := ParseLengths(data)
	if err != nil {
		return
	}
	if len(data) < int(headerSize) {
		err = ErrNotEnoughData
		return
	}

	header := data[:headerSize]
	h = Header{
		Version:    version,
		HeaderSize: headerSize,
		TotalSize:  totalSize,
		Flags:      binary.LittleEndian.Uint32(header[8:]),
		Checksum:   binary.LittleEndian.Uint32(header[12:]),
	}

	if sum := checksum(header); sum != h.Checksum {
		err = ErrChecksum{Stored: h.Checksum, Computed: sum}
		return
	}

	remaining := header[BASE_SIZE:]
	for len(remaining) > 0 {
		if len(remaining) < 4 {
			err = ErrNotEnoughData
			return
		}

		kind := binary.LittleEndian.Uint16(remaining[0:])
		length := binary.LittleEndian.Uint16(remaining[2:])
		remaining = remaining[4:]
		if len(remaining) < int(length) {
			err = ErrNotEnoughData
			return
		}
		value := remaining[:length]

		switch kind {
		case TLV_MAIN:
			if length != 12 {
				err = ErrBadTLV(kind)
				return
			}
			h.Main = &Main{
				InitOffset:    binary.LittleEndian.Uint32(value[0:]),
				ProtectedSize: binary.LittleEndian.Uint32(value[4:]),
				MinimumRAM:    binary.LittleEndian.Uint32(value[8:]),
			}
		case TLV_WRITEABLE_FLASH_REGIONS:
			if length%8 != 0 {
				err = ErrBadTLV(kind)
				return
			}
			for n := 0; n < int(length) && len(h.WriteableFlashRegions) < MAX_WRITEABLE_FLASH_REGIONS; n += 8 {
				h.WriteableFlashRegions = append(h.WriteableFlashRegions, WriteableFlashRegion{
					Offset: binary.LittleEndian.Uint32(value[n:]),
					Size:   binary.LittleEndian.Uint32(value[n+4:]),
				})
			}
		case TLV_PACKAGE_NAME:
			if !utf8.Valid(value) {
				err = ErrBadName
				return
			}
			h.PackageName = string(value)
		case TLV_FIXED_ADDRESSES:
			if length != 8 {
				err = ErrBadTLV(kind)
				return
			}
			h.FixedAddresses = &FixedAddresses{
				RAM:   binary.LittleEndian.Uint32(value[0:]),
				Flash: binary.LittleEndian.Uint32(value[4:]),
			}
		}

		skip := int(internal.AlignUp(uint64(length), 4))
		if skip > len(remaining) {
			err = ErrNotEnoughData
			return
		}
		remaining = remaining[skip:]
	}

	return
}

func appendTLV(data []byte, kind uint16, value []byte) []byte {
	data = binary.LittleEndian.AppendUint16(data, kind)
	data = binary.LittleEndian.AppendUint16(data, uint16(len(value)))
	data = append(data, value...)
	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	return data
}

// Marshal encodes the header, filling in HeaderSize and Checksum.
// TotalSize and Flags are taken as given.
func (h *Header) Marshal() (data []byte) {
	data = make([]byte, BASE_SIZE, 64)

	if h.Main != nil {
		value := binary.LittleEndian.AppendUint32(nil, h.Main.InitOffset)
		value = binary.LittleEndian.AppendUint32(value, h.Main.ProtectedSize)
		value = binary.LittleEndian.AppendUint32(value, h.Main.MinimumRAM)
		data = appendTLV(data, TLV_MAIN, value)
	}
	if len(h.WriteableFlashRegions) > 0 {
		var value []byte
		for _, wfr := range h.WriteableFlashRegions {
			value = binary.LittleEndian.AppendUint32(value, wfr.Offset)
			value = binary.LittleEndian.AppendUint32(value, wfr.Size)
		}
		data = appendTLV(data, TLV_WRITEABLE_FLASH_REGIONS, value)
	}
	if h.PackageName != "" {
		data = appendTLV(data, TLV_PACKAGE_NAME, []byte(h.PackageName))
	}
	if h.FixedAddresses != nil {
		value := binary.LittleEndian.AppendUint32(nil, h.FixedAddresses.RAM)
		value = binary.LittleEndian.AppendUint32(value, h.FixedAddresses.Flash)
		data = appendTLV(data, TLV_FIXED_ADDRESSES, value)
	}

	h.Version = VERSION
	h.HeaderSize = uint16(len(data))

	binary.LittleEndian.PutUint16(data[0:], h.Version)
	binary.LittleEndian.PutUint16(data[2:], h.HeaderSize)
	binary.LittleEndian.PutUint32(data[4:], h.TotalSize)
	binary.LittleEndian.PutUint32(data[8:], h.Flags)

	h.Checksum = checksum(data)
	binary.LittleEndian.PutUint32(data[12:], h.Checksum)

	return
}
