package diag

import (
	"fmt"
	"io"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
)

// WriteReport renders a full slot inspection: verdict, histograms, channel
// means, first pixel groups, and the probed hex windows.
func WriteReport(w io.Writer, slot int, data []byte, width int, format pixel.Format) {
	r := Analyze(data, format)

	fmt.Fprintf(w, "\n--- slot %d (%d bytes, %s): %s\n", slot, r.Size, format, r.Assessment())
	fmt.Fprintf(w, "    0x00 bytes %.1f%%, 0xFF bytes %.1f%%\n", r.PercentZero(), r.PercentFull())
	for i, name := range r.ChannelNames {
		fmt.Fprintf(w, "    %-6s mean %6.1f\n", name, r.ChannelMeans[i])
	}
	if groups := DescribeGroups(data, format, 4); groups != "" {
		fmt.Fprintf(w, "    head: %s\n", groups)
	}
	for _, win := range Windows(data, width, format) {
		fmt.Fprintf(w, "    %-10s +0x%06X: % X\n", win.Label, win.Offset, win.Bytes)
	}
}

// PlaybackHint returns the ffplay invocation that renders a saved dump.
func PlaybackHint(format pixel.Format, width, height int, file string) string {
	name := "rgba"
	switch format {
	case pixel.YUYV:
		name = "yuyv422"
	case pixel.UYVY:
		name = "uyvy422"
	}
	return fmt.Sprintf("ffplay -f rawvideo -pixel_format %s -video_size %dx%d %s",
		name, width, height, file)
}
