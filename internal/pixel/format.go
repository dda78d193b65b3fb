// Package pixel defines the closed set of pixel packings the capture
// pipeline produces, and a heuristic that recovers the packed 4:2:2 byte
// order from raw frame bytes when configuration does not assert one.
package pixel

import "github.com/pkg/errors"

// Format identifies the byte packing of a raw frame.
type Format int

const (
	// RGBA is 32-bit color, four bytes per pixel.
	RGBA Format = iota
	// YUYV is packed 4:2:2 with luma on even byte positions (Y0 U Y1 V).
	YUYV
	// UYVY is packed 4:2:2 with luma on odd byte positions (U Y0 V Y1).
	UYVY
)

func (f Format) String() string {
	switch f {
	case RGBA:
		return "rgba"
	case YUYV:
		return "yuyv"
	case UYVY:
		return "uyvy"
	default:
		return "invalid"
	}
}

// BytesPerPixel returns the storage cost of one pixel.
func (f Format) BytesPerPixel() int {
	if f == RGBA {
		return 4
	}
	return 2
}

// Parse maps a configuration string to a Format.
func Parse(s string) (Format, error) {
	switch s {
	case "rgba":
		return RGBA, nil
	case "yuyv":
		return YUYV, nil
	case "uyvy":
		return UYVY, nil
	}
	return 0, errors.Errorf("unknown pixel format %q", s)
}
