package memory

// ReadWriteBuffer is process memory shared with a driver for reading and
// writing. It can only be made by NewReadWriteBuffer, which checks that the
// memory belongs to the process.
type ReadWriteBuffer struct {
	ptr    uint32
	length uint32
	data   []byte
}

// ReadOnlyBuffer is process memory shared with a driver for reading.
type ReadOnlyBuffer struct {
	ptr    uint32
	length uint32
	data   []byte
}

// validate checks that [ptr, ptr+length) is process-owned and returns its
// bytes. A zero length buffer is valid at any address and has no bytes.
func validate(layout *Layout, ram *RAM, ptr uint32, length uint32) (data []byte, err error) {
	if length == 0 {
		return
	}

	if !layout.InAppMemory(ptr, length) {
		err = ErrOutOfBounds
		return
	}

	data, err = ram.Slice(ptr, length)
	if err != nil {
		return
	}

	layout.RaiseAllowHighWater(ptr + length)
	return
}

// NewReadWriteBuffer validates [ptr, ptr+length) against the process layout.
func NewReadWriteBuffer(layout *Layout, ram *RAM, ptr uint32, length uint32) (buf ReadWriteBuffer, err error) {
	data, err := validate(layout, ram, ptr, length)
	if err != nil {
		return
	}

	buf = ReadWriteBuffer{ptr: ptr, length: length, data: data}
	return
}

// NewReadOnlyBuffer validates [ptr, ptr+length) against the process layout.
func NewReadOnlyBuffer(layout *Layout, ram *RAM, ptr uint32, length uint32) (buf ReadOnlyBuffer, err error) {
	data, err := validate(layout, ram, ptr, length)
	if err != nil {
		return
	}

	buf = ReadOnlyBuffer{ptr: ptr, length: length, data: data}
	return
}

func (buf ReadWriteBuffer) Ptr() uint32 { return buf.ptr }
func (buf ReadWriteBuffer) Len() uint32 { return buf.length }

// Bytes returns the shared memory. Writes land in process RAM.
func (buf ReadWriteBuffer) Bytes() []byte {
	return buf.data
}

func (buf ReadOnlyBuffer) Ptr() uint32 { return buf.ptr }
func (buf ReadOnlyBuffer) Len() uint32 { return buf.length }

// CopyTo copies the shared memory into dst and returns the number of bytes
// copied.
func (buf ReadOnlyBuffer) CopyTo(dst []byte) int {
	return copy(dst, buf.data)
}
