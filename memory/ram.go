package memory

import (
	"encoding/binary"
)

// RAM is the backing store of a span of physical memory, little endian.
type RAM struct {
	Start uint32
	Data  []byte
}

// NewRAM creates size zeroed bytes of RAM at start.
func NewRAM(start uint32, size uint32) *RAM {
	return &RAM{
		Start: start,
		Data:  make([]byte, size),
	}
}

// End returns the first address past the RAM.
func (ram *RAM) End() uint64 {
	return uint64(ram.Start) + uint64(len(ram.Data))
}

// Slice returns the bytes of [addr, addr+length).
func (ram *RAM) Slice(addr uint32, length uint32) (data []byte, err error) {
	if addr < ram.Start || uint64(addr)+uint64(length) > ram.End() {
		err = ErrAccess{Addr: addr, Length: length}
		return
	}

	offset := addr - ram.Start
	data = ram.Data[offset : offset+length : offset+length]
	return
}

// ReadWord loads the 32-bit word at addr.
func (ram *RAM) ReadWord(addr uint32) (value uint32, err error) {
	data, err := ram.Slice(addr, 4)
	if err != nil {
		return
	}

	value = binary.LittleEndian.Uint32(data)
	return
}

// WriteWord stores value at addr.
func (ram *RAM) WriteWord(addr uint32, value uint32) (err error) {
	data, err := ram.Slice(addr, 4)
	if err != nil {
		return
	}

	binary.LittleEndian.PutUint32(data, value)
	return
}

// WriteWords stores values at consecutive words starting at addr. Either
// every word is written or none is.
func (ram *RAM) WriteWords(addr uint32, values []uint32) (err error) {
	data, err := ram.Slice(addr, uint32(len(values))*4)
	if err != nil {
		return
	}

	for n, value := range values {
		binary.LittleEndian.PutUint32(data[n*4:], value)
	}
	return
}
