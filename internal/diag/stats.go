// Package diag inspects raw frame bytes when the pipeline needs eyes on
// what the hardware actually wrote: byte histograms, channel means, and
// positional hex windows for comparing against a known test pattern.
package diag

import (
	"fmt"
	"strings"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
)

// Report summarizes the byte content of one frame buffer.
type Report struct {
	Format pixel.Format
	Size   int

	// ZeroBytes and FullBytes count 0x00 and 0xFF bytes. A frame that is
	// all one or the other means the producer is not writing real video.
	ZeroBytes int
	FullBytes int

	// ChannelNames and ChannelMeans hold per-channel byte averages:
	// red/green/blue/alpha for RGBA frames, luma/chroma for the packed
	// 4:2:2 formats.
	ChannelNames []string
	ChannelMeans []float64
}

// Analyze walks the whole frame once and fills a Report.
func Analyze(data []byte, format pixel.Format) Report {
	r := Report{Format: format, Size: len(data)}
	if len(data) == 0 {
		return r
	}

	if format == pixel.RGBA {
		var sums [4]uint64
		for i, b := range data {
			r.tally(b)
			sums[i%4] += uint64(b)
		}
		samples := float64((len(data) + 3) / 4)
		r.ChannelNames = []string{"red", "green", "blue", "alpha"}
		for _, s := range sums {
			r.ChannelMeans = append(r.ChannelMeans, float64(s)/samples)
		}
		return r
	}

	lumaAt := 0
	if format == pixel.UYVY {
		lumaAt = 1
	}
	var lumaSum, chromaSum uint64
	for i, b := range data {
		r.tally(b)
		if i%2 == lumaAt {
			lumaSum += uint64(b)
		} else {
			chromaSum += uint64(b)
		}
	}
	samples := float64((len(data) + 1) / 2)
	r.ChannelNames = []string{"luma", "chroma"}
	r.ChannelMeans = []float64{float64(lumaSum) / samples, float64(chromaSum) / samples}
	return r
}

func (r *Report) tally(b byte) {
	switch b {
	case 0x00:
		r.ZeroBytes++
	case 0xFF:
		r.FullBytes++
	}
}

// PercentZero reports the share of 0x00 bytes.
func (r Report) PercentZero() float64 {
	if r.Size == 0 {
		return 0
	}
	return 100 * float64(r.ZeroBytes) / float64(r.Size)
}

// PercentFull reports the share of 0xFF bytes.
func (r Report) PercentFull() float64 {
	if r.Size == 0 {
		return 0
	}
	return 100 * float64(r.FullBytes) / float64(r.Size)
}

// Assessment gives the operator a one-line verdict on the frame.
func (r Report) Assessment() string {
	switch {
	case r.Size == 0:
		return "empty buffer"
	case r.ZeroBytes == r.Size:
		return "all zeroes, the producer has never written this slot"
	case r.PercentFull() > 90:
		return "saturated high, check the upstream pipeline"
	case r.PercentZero() > 90:
		return "mostly zeroes, the producer may be emitting a blank image"
	default:
		return "varied data, looks like live video"
	}
}

// Window is one probed location inside a frame.
type Window struct {
	Label  string
	Offset int
	Bytes  []byte
}

// windowSize is how many raw bytes each probe shows.
const windowSize = 16

// Windows probes a handful of rows spread across the frame. Rows past the
// end of a short frame are dropped; duplicate offsets keep the first label.
func Windows(data []byte, width int, format pixel.Format) []Window {
	rowBytes := width * format.BytesPerPixel()
	if rowBytes <= 0 || len(data) < rowBytes {
		return nil
	}
	rows := len(data) / rowBytes

	probes := []struct {
		label string
		row   int
	}{
		{"row 0", 0},
		{"row 1", 1},
		{"row 100", 100},
		{"middle row", rows / 2},
		{"last row", rows - 1},
	}

	var out []Window
	seen := make(map[int]bool)
	for _, p := range probes {
		if p.row < 0 || p.row >= rows {
			continue
		}
		off := p.row * rowBytes
		if seen[off] {
			continue
		}
		seen[off] = true

		end := off + windowSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, Window{Label: p.label, Offset: off, Bytes: data[off:end]})
	}
	return out
}

// DescribeGroups renders the first n pixel groups in the given packing,
// the way you would eyeball them in a hex dump.
func DescribeGroups(data []byte, format pixel.Format, n int) string {
	const group = 4
	var b strings.Builder
	for g := 0; g < n; g++ {
		off := g * group
		if off+group > len(data) {
			break
		}
		if g > 0 {
			b.WriteByte(' ')
		}
		switch format {
		case pixel.RGBA:
			fmt.Fprintf(&b, "(R=%d G=%d B=%d A=%d)", data[off], data[off+1], data[off+2], data[off+3])
		case pixel.UYVY:
			fmt.Fprintf(&b, "(U=%d Y0=%d V=%d Y1=%d)", data[off], data[off+1], data[off+2], data[off+3])
		default:
			fmt.Fprintf(&b, "(Y0=%d U=%d Y1=%d V=%d)", data[off], data[off+1], data[off+2], data[off+3])
		}
	}
	return b.String()
}
