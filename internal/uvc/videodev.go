package uvc

import (
	"encoding/binary"
	"unsafe"
)

// Kernel ABI mirror of the video device interface, limited to what the
// gadget output path touches. Layouts match videodev2.h on a 64-bit
// kernel; the size assertions live in the package tests.

var nativeEndian binary.ByteOrder

func init() {
	i := uint16(1)
	if *(*byte)(unsafe.Pointer(&i)) == 1 {
		nativeEndian = binary.LittleEndian
	} else {
		nativeEndian = binary.BigEndian
	}
}

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

const (
	V4L2_BUF_TYPE_VIDEO_OUTPUT = 2

	V4L2_FIELD_NONE = 1
)

var (
	V4L2_PIX_FMT_ABGR32 = fourcc('A', 'R', '2', '4')
	V4L2_PIX_FMT_YUYV   = fourcc('Y', 'U', 'Y', 'V')
	V4L2_PIX_FMT_UYVY   = fourcc('U', 'Y', 'V', 'Y')
)

// ioctl request encoding, _IOWR('V', nr, size) style.
const (
	iocWrite = 1
	iocRead  = 2

	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func iowr(typ, nr, size uintptr) uintptr {
	return (iocRead|iocWrite)<<iocDirShift | size<<iocSizeShift | typ<<iocTypeShift | nr<<iocNrShift
}

var VIDIOC_S_FMT = iowr('V', 5, unsafe.Sizeof(v4l2_format{}))

type v4l2_pix_format struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
}

func (f *v4l2_pix_format) marshal() (out [200]byte) {
	nativeEndian.PutUint32(out[0:], f.width)
	nativeEndian.PutUint32(out[4:], f.height)
	nativeEndian.PutUint32(out[8:], f.pixelformat)
	nativeEndian.PutUint32(out[12:], f.field)
	nativeEndian.PutUint32(out[16:], f.bytesperline)
	nativeEndian.PutUint32(out[20:], f.sizeimage)
	nativeEndian.PutUint32(out[24:], f.colorspace)
	nativeEndian.PutUint32(out[28:], f.priv)
	return
}

// v4l2_format embeds a 200-byte union whose largest member forces 8-byte
// alignment in the kernel, hence the explicit pad after typ.
type v4l2_format struct {
	typ uint32
	_   uint32
	fmt [200]byte
}
