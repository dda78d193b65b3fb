// Package vidf implements the VIDF raw-frame streaming protocol: a fixed
// 32-byte big-endian header per frame, followed by the frame's pixel data,
// carried over either a datagram or a stream transport.
package vidf

import (
	"fmt"
	"time"

	errors "golang.org/x/xerrors"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/packet"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
)

/*
Every frame on the wire starts with this header. All fields are unsigned
32-bit integers in network byte order.

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                        magic = "VIDF"                         |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                           frame_seq                           |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                             width                             |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                             height                            |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                          pixel_format                         |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                          payload_len                          |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                             ts_sec                            |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                            ts_usec                            |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

payload_len bytes of raw pixel data follow immediately. The receiver is
expected to validate payload_len against the advertised geometry and drop
malformed frames; partial payload delivery is tolerated on datagram links.
*/

// Magic spells "VIDF" and identifies a frame header.
const Magic = 0x56494446

// HeaderSize is the fixed wire size of the header.
const HeaderSize = 32

// Wire values of the pixel_format field. The internal pixel.Format type is
// converted to and from these only here, at the protocol boundary.
const (
	wireRGBA = 0
	wireYUYV = 1
	wireUYVY = 2
)

type errBadMagic uint32

func (e errBadMagic) Error() string {
	return fmt.Sprintf("not a VIDF header (magic 0x%08x)", uint32(e))
}

type errBadFormat uint32

func (e errBadFormat) Error() string {
	return fmt.Sprintf("unknown pixel format tag %d", uint32(e))
}

// Header describes one frame. It is constructed immediately before sending
// and never persisted.
type Header struct {
	Seq        uint32
	Width      uint32
	Height     uint32
	Format     pixel.Format
	PayloadLen uint32
	Timestamp  time.Time
}

func formatToWire(f pixel.Format) uint32 {
	switch f {
	case pixel.YUYV:
		return wireYUYV
	case pixel.UYVY:
		return wireUYVY
	default:
		return wireRGBA
	}
}

func formatFromWire(v uint32) (pixel.Format, error) {
	switch v {
	case wireRGBA:
		return pixel.RGBA, nil
	case wireYUYV:
		return pixel.YUYV, nil
	case wireUYVY:
		return pixel.UYVY, nil
	default:
		return 0, errBadFormat(v)
	}
}

func (h *Header) writeTo(w *packet.Writer) error {
	if err := w.CheckCapacity(HeaderSize); err != nil {
		return errors.Errorf("short buffer: %v", err)
	}
	w.WriteUint32(Magic)
	w.WriteUint32(h.Seq)
	w.WriteUint32(h.Width)
	w.WriteUint32(h.Height)
	w.WriteUint32(formatToWire(h.Format))
	w.WriteUint32(h.PayloadLen)
	w.WriteUint32(uint32(h.Timestamp.Unix()))
	w.WriteUint32(uint32(h.Timestamp.Nanosecond() / 1000))
	return nil
}

func (h *Header) readFrom(r *packet.Reader) error {
	if err := r.CheckRemaining(HeaderSize); err != nil {
		return errors.Errorf("short header: %v", err)
	}
	if magic := r.ReadUint32(); magic != Magic {
		return errBadMagic(magic)
	}
	h.Seq = r.ReadUint32()
	h.Width = r.ReadUint32()
	h.Height = r.ReadUint32()

	format, err := formatFromWire(r.ReadUint32())
	if err != nil {
		return err
	}
	h.Format = format

	h.PayloadLen = r.ReadUint32()
	sec := r.ReadUint32()
	usec := r.ReadUint32()
	h.Timestamp = time.Unix(int64(sec), int64(usec)*1000)
	return nil
}

// ParseHeader decodes a header from the start of buf.
func ParseHeader(buf []byte) (Header, error) {
	var h Header
	err := h.readFrom(packet.NewReader(buf))
	return h, err
}
