// Package packet provides bounds-aware helpers for assembling and parsing
// fixed-layout binary messages in network byte order.
package packet

import (
	"encoding/binary"
	"fmt"
)

var networkOrder = binary.BigEndian

type Writer struct {
	buffer []byte
	offset int
}

func NewWriter(buffer []byte) *Writer {
	return &Writer{buffer, 0}
}

func NewWriterSize(n int) *Writer {
	return NewWriter(make([]byte, n))
}

func (w *Writer) WriteByte(v byte) {
	w.buffer[w.offset] = v
	w.offset++
}

func (w *Writer) WriteUint32(v uint32) {
	networkOrder.PutUint32(w.buffer[w.offset:], v)
	w.offset += 4
}

// WriteSlice writes the given bytes, if there is enough room left.
func (w *Writer) WriteSlice(p []byte) error {
	if err := w.CheckCapacity(len(p)); err != nil {
		return err
	}
	w.offset += copy(w.buffer[w.offset:], p)
	return nil
}

// Length returns the number of bytes written so far.
func (w *Writer) Length() int {
	return w.offset
}

// Capacity returns the total size of the underlying buffer.
func (w *Writer) Capacity() int {
	return len(w.buffer)
}

// CheckCapacity verifies that 'needed' more bytes fit behind the write offset.
func (w *Writer) CheckCapacity(needed int) error {
	if w.Capacity()-w.offset < needed {
		return fmt.Errorf("%d bytes available, %d needed", w.Capacity()-w.offset, needed)
	}
	return nil
}

// Bytes returns a slice of the bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buffer[0:w.offset]
}

func (w *Writer) Reset() {
	w.offset = 0
}
