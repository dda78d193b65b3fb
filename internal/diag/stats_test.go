package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
)

func TestAnalyzeAllZeroFrame(t *testing.T) {
	r := Analyze(make([]byte, 4096), pixel.RGBA)
	require.Equal(t, 4096, r.ZeroBytes)
	require.Zero(t, r.FullBytes)
	require.InDelta(t, 100.0, r.PercentZero(), 0.01)
	require.Contains(t, r.Assessment(), "never written")
}

func TestAnalyzeSaturatedFrame(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = 0xFF
	}
	r := Analyze(data, pixel.YUYV)
	require.Equal(t, 4096, r.FullBytes)
	require.InDelta(t, 100.0, r.PercentFull(), 0.01)
	require.Contains(t, r.Assessment(), "saturated")
}

func TestAnalyzeRGBAChannelMeans(t *testing.T) {
	data := make([]byte, 400)
	for i := 0; i < len(data); i += 4 {
		data[i] = 10
		data[i+1] = 20
		data[i+2] = 30
		data[i+3] = 40
	}
	r := Analyze(data, pixel.RGBA)
	require.Equal(t, []string{"red", "green", "blue", "alpha"}, r.ChannelNames)
	require.InDelta(t, 10.0, r.ChannelMeans[0], 0.01)
	require.InDelta(t, 20.0, r.ChannelMeans[1], 0.01)
	require.InDelta(t, 30.0, r.ChannelMeans[2], 0.01)
	require.InDelta(t, 40.0, r.ChannelMeans[3], 0.01)
	require.Contains(t, r.Assessment(), "varied")
}

func TestAnalyzePackedChannelMeans(t *testing.T) {
	// YUYV: luma on even positions, chroma on odd
	data := make([]byte, 512)
	for i := range data {
		if i%2 == 0 {
			data[i] = 100
		} else {
			data[i] = 128
		}
	}
	r := Analyze(data, pixel.YUYV)
	require.Equal(t, []string{"luma", "chroma"}, r.ChannelNames)
	require.InDelta(t, 100.0, r.ChannelMeans[0], 0.01)
	require.InDelta(t, 128.0, r.ChannelMeans[1], 0.01)

	// UYVY swaps the assignment over the same bytes
	r = Analyze(data, pixel.UYVY)
	require.InDelta(t, 128.0, r.ChannelMeans[0], 0.01)
	require.InDelta(t, 100.0, r.ChannelMeans[1], 0.01)
}

func TestWindowsProbePositions(t *testing.T) {
	// width 4 at 2 bytes per pixel: 8-byte rows, 10 rows
	data := make([]byte, 80)
	for i := range data {
		data[i] = byte(i)
	}
	wins := Windows(data, 4, pixel.YUYV)

	byLabel := map[string]Window{}
	for _, w := range wins {
		byLabel[w.Label] = w
	}

	require.Contains(t, byLabel, "row 0")
	require.Contains(t, byLabel, "row 1")
	require.Contains(t, byLabel, "middle row")
	require.Contains(t, byLabel, "last row")
	require.NotContains(t, byLabel, "row 100", "short frames have no row 100")

	require.Equal(t, 0, byLabel["row 0"].Offset)
	require.Equal(t, 8, byLabel["row 1"].Offset)
	require.Equal(t, 40, byLabel["middle row"].Offset)
	require.Equal(t, 72, byLabel["last row"].Offset)

	require.Len(t, byLabel["row 0"].Bytes, 16)
	require.Len(t, byLabel["last row"].Bytes, 8, "the final window is clipped to the frame")
	require.Equal(t, byte(72), byLabel["last row"].Bytes[0])
}

func TestWindowsDropDuplicateOffsets(t *testing.T) {
	// a 2-row frame collapses middle row onto row 1 and keeps one of them
	data := make([]byte, 16)
	wins := Windows(data, 4, pixel.YUYV)
	offsets := map[int]int{}
	for _, w := range wins {
		offsets[w.Offset]++
	}
	for off, n := range offsets {
		require.Equal(t, 1, n, "offset %d probed more than once", off)
	}
}

func TestWindowsShortFrame(t *testing.T) {
	require.Nil(t, Windows(make([]byte, 4), 4, pixel.YUYV))
	require.Nil(t, Windows(nil, 640, pixel.RGBA))
}

func TestDescribeGroups(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	yuyv := DescribeGroups(data, pixel.YUYV, 2)
	require.Contains(t, yuyv, "(Y0=1 U=2 Y1=3 V=4)")
	require.Contains(t, yuyv, "(Y0=5 U=6 Y1=7 V=8)")

	uyvy := DescribeGroups(data, pixel.UYVY, 2)
	require.Contains(t, uyvy, "(U=1 Y0=2 V=3 Y1=4)")

	rgba := DescribeGroups(data, pixel.RGBA, 1)
	require.Equal(t, "(R=1 G=2 B=3 A=4)", rgba)

	// n larger than the data stops at the last whole group
	require.Equal(t, 1, strings.Count(DescribeGroups(data[:6], pixel.YUYV, 4), "("))
}
