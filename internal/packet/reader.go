package packet

import (
	"fmt"
)

type Reader struct {
	buffer []byte
	offset int
}

func NewReader(buffer []byte) *Reader {
	return &Reader{buffer, 0}
}

func (r *Reader) ReadByte() byte {
	v := r.buffer[r.offset]
	r.offset++
	return v
}

func (r *Reader) ReadUint32() uint32 {
	v := networkOrder.Uint32(r.buffer[r.offset:])
	r.offset += 4
	return v
}

func (r *Reader) ReadSlice(n int) []byte {
	v := r.buffer[r.offset : r.offset+n]
	r.offset += n
	return v
}

func (r *Reader) Skip(n int) {
	r.offset += n
}

func (r *Reader) ReadRemaining() []byte {
	v := r.buffer[r.offset:]
	r.offset += len(v)
	return v
}

// Remaining returns the number of bytes left in the buffer.
func (r *Reader) Remaining() int {
	return len(r.buffer) - r.offset
}

func (r *Reader) CheckRemaining(needed int) error {
	if r.Remaining() < needed {
		return fmt.Errorf("%d bytes remaining, %d needed", r.Remaining(), needed)
	}
	return nil
}
