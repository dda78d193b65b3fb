package uvc

import (
	"testing"
	"unsafe"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
)

// The ioctl request number embeds the struct size, so a layout drift would
// make the kernel reject every call with ENOTTY. Pin the ABI here.
func TestFormatStructMatchesKernelABI(t *testing.T) {
	if size := unsafe.Sizeof(v4l2_format{}); size != 208 {
		t.Fatalf("v4l2_format is %d bytes, kernel expects 208", size)
	}
	if off := unsafe.Offsetof(v4l2_format{}.fmt); off != 8 {
		t.Fatalf("format union starts at offset %d, kernel expects 8", off)
	}
	if VIDIOC_S_FMT != 0xc0d05605 {
		t.Fatalf("VIDIOC_S_FMT encoded as %#x, want 0xc0d05605", VIDIOC_S_FMT)
	}
}

func TestFourccValues(t *testing.T) {
	if V4L2_PIX_FMT_ABGR32 != 0x34325241 {
		t.Errorf("ABGR32 fourcc %#x, want 'AR24'", V4L2_PIX_FMT_ABGR32)
	}
	if V4L2_PIX_FMT_YUYV != 0x56595559 {
		t.Errorf("YUYV fourcc %#x", V4L2_PIX_FMT_YUYV)
	}
}

func TestPixFormatMarshalOffsets(t *testing.T) {
	pfmt := v4l2_pix_format{
		width:       640,
		height:      480,
		pixelformat: V4L2_PIX_FMT_ABGR32,
		field:       V4L2_FIELD_NONE,
		sizeimage:   640 * 480 * 4,
	}
	buf := pfmt.marshal()

	if got := nativeEndian.Uint32(buf[0:]); got != 640 {
		t.Errorf("width at offset 0 is %d", got)
	}
	if got := nativeEndian.Uint32(buf[4:]); got != 480 {
		t.Errorf("height at offset 4 is %d", got)
	}
	if got := nativeEndian.Uint32(buf[8:]); got != V4L2_PIX_FMT_ABGR32 {
		t.Errorf("pixelformat at offset 8 is %#x", got)
	}
	if got := nativeEndian.Uint32(buf[20:]); got != 640*480*4 {
		t.Errorf("sizeimage at offset 20 is %d", got)
	}
}

func TestFourccForEveryFormat(t *testing.T) {
	for _, f := range []pixel.Format{pixel.RGBA, pixel.YUYV, pixel.UYVY} {
		if _, err := fourccFor(f); err != nil {
			t.Errorf("%v: %v", f, err)
		}
	}
	if _, err := fourccFor(pixel.Format(99)); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
