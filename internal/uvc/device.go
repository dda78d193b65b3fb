// Package uvc feeds raw frames to a USB video gadget through its video
// device node. The gadget side must already be configured (configfs and
// the UDC binding happen in a boot script before this process starts).
package uvc

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
)

// DefaultPath is where the gadget's output node usually appears.
const DefaultPath = "/dev/video0"

// Config describes the video mode negotiated with the gadget.
type Config struct {
	Path   string
	Width  int
	Height int
	Format pixel.Format
}

// Device is an open gadget output node. Writes are non-blocking: a full
// USB request queue surfaces as unix.EAGAIN from WriteFrame.
type Device struct {
	cfg Config
	fd  int
}

// Open opens the device node and programs the video format on it.
func Open(cfg Config) (*Device, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	format, err := fourccFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(cfg.Path, unix.O_RDWR|unix.O_NONBLOCK, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s (is the gadget configured?)", cfg.Path)
	}

	d := &Device{cfg: cfg, fd: fd}
	if err := d.setFormat(format); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "set video format")
	}

	log.Info("gadget %s configured for %dx%d %s", cfg.Path, cfg.Width, cfg.Height, cfg.Format)
	return d, nil
}

func (d *Device) ioctl(request uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		uintptr(d.fd),
		request,
		uintptr(arg),
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *Device) setFormat(format uint32) error {
	pfmt := v4l2_pix_format{
		width:       uint32(d.cfg.Width),
		height:      uint32(d.cfg.Height),
		pixelformat: format,
		field:       V4L2_FIELD_NONE,
		sizeimage:   uint32(d.FrameSize()),
	}
	fmt := v4l2_format{
		typ: V4L2_BUF_TYPE_VIDEO_OUTPUT,
		fmt: pfmt.marshal(),
	}
	return d.ioctl(VIDIOC_S_FMT, unsafe.Pointer(&fmt))
}

// FrameSize is the byte length of one frame in the configured mode.
func (d *Device) FrameSize() int {
	return d.cfg.Width * d.cfg.Height * d.cfg.Format.BytesPerPixel()
}

// WriteFrame pushes one frame to the host. Errors pass through untouched
// so the caller can tell a full queue (unix.EAGAIN) from a dead gadget.
func (d *Device) WriteFrame(p []byte) (int, error) {
	return unix.Write(d.fd, p)
}

// Close releases the device node.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

func fourccFor(f pixel.Format) (uint32, error) {
	switch f {
	case pixel.RGBA:
		return V4L2_PIX_FMT_ABGR32, nil
	case pixel.YUYV:
		return V4L2_PIX_FMT_YUYV, nil
	case pixel.UYVY:
		return V4L2_PIX_FMT_UYVY, nil
	default:
		return 0, errors.Errorf("no fourcc for pixel format %d", int(f))
	}
}
