// Package mmio maps device memory regions into the process and provides
// bounds-checked access to registers and raw storage inside them.
//
// Two kinds of regions are mapped here: UIO register windows (offset 0 of
// the uio character device) and physical frame storage (offset = physical
// address of /dev/mem).
package mmio

import (
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Device registers are accessed in host byte order.
var nativeEndian binary.ByteOrder

func init() {
	probe := uint16(1)
	if (*[2]byte)(unsafe.Pointer(&probe))[0] == 1 {
		nativeEndian = binary.LittleEndian
	} else {
		nativeEndian = binary.BigEndian
	}
}

// Window is a memory-mapped view of a device region.
type Window struct {
	data   []byte
	mapped bool
}

// Map opens path and maps size bytes starting at offset. For UIO devices the
// offset selects the map index times the page size (0 for map0); for
// /dev/mem it is the physical address. The file descriptor is closed before
// returning; the mapping outlives it.
func Map(path string, offset int64, size int, writable bool) (*Window, error) {
	mode := os.O_RDONLY
	prot := unix.PROT_READ
	if writable {
		mode = os.O_RDWR | unix.O_SYNC
		prot |= unix.PROT_WRITE
	}

	f, err := os.OpenFile(path, mode, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), offset, size, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s offset 0x%x size 0x%x", path, offset, size)
	}

	return &Window{data: data, mapped: true}, nil
}

// NewWindow wraps an already-resident byte region in a Window. Closing it
// does not unmap anything.
func NewWindow(data []byte) *Window {
	return &Window{data: data}
}

func (w *Window) Close() error {
	if !w.mapped {
		w.data = nil
		return nil
	}
	err := unix.Munmap(w.data)
	w.data = nil
	w.mapped = false
	return err
}

// Size returns the length of the mapped region in bytes.
func (w *Window) Size() int {
	return len(w.data)
}

// ReadReg32 reads the 32-bit register at the given byte offset.
func (w *Window) ReadReg32(off uint32) uint32 {
	return nativeEndian.Uint32(w.data[off : off+4])
}

// WriteReg32 writes the 32-bit register at the given byte offset.
func (w *Window) WriteReg32(off uint32, v uint32) {
	nativeEndian.PutUint32(w.data[off:off+4], v)
}

// View returns a read-only slice of the region, with the offset and length
// validated against the mapped size once here rather than at each access.
func (w *Window) View(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(w.data) {
		return nil, errors.Errorf("view [%#x..%#x) outside mapped region of %#x bytes",
			off, off+n, len(w.data))
	}
	return w.data[off : off+n : off+n], nil
}
