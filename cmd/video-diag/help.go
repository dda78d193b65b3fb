package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagDMA      bool
	flagVPSS     bool
	flagFrames   []int
	flagAll      bool
	flagSave     string
	flagWatch    bool
	flagInterval time.Duration

	flagBase    string
	flagWidth   int
	flagHeight  int
	flagBuffers int
	flagFormat  string

	flagHelp    bool
	flagVersion bool
)

func init() {
	flag.BoolVarP(&flagDMA, "dma", "d", false, "Dump DMA engine registers")
	flag.BoolVarP(&flagVPSS, "vpss", "", false, "Dump scaler registers")
	flag.IntSliceVarP(&flagFrames, "frame", "f", nil, "Analyze one ring slot")
	flag.BoolVarP(&flagAll, "all", "a", false, "Analyze every ring slot")
	flag.StringVarP(&flagSave, "save", "s", "", "Halt the channel and save slots to FILE")
	flag.BoolVarP(&flagWatch, "watch", "w", false, "Poll the frame counter until interrupted")
	flag.DurationVarP(&flagInterval, "interval", "", 100*time.Millisecond, "Watch poll interval")

	flag.StringVarP(&flagBase, "base", "", "0x20000000", "Frame memory base")
	flag.IntVarP(&flagWidth, "width", "x", 640, "Frame width")
	flag.IntVarP(&flagHeight, "height", "y", 480, "Frame height")
	flag.IntVarP(&flagBuffers, "buffers", "b", 3, "Frame ring slots")
	flag.StringVarP(&flagFormat, "format", "", "rgba", "Pixel packing")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Inspects the capture pipeline without disturbing whoever is running it

Usage: video-diag [OPTION]...

With no selection options, dumps both register banks and analyzes every
ring slot.

Selection:
  -d, --dma              Dump DMA engine registers
      --vpss             Dump scaler registers
  -f, --frame=NUM        Analyze one ring slot (repeatable)
  -a, --all              Analyze every ring slot
  -s, --save=FILE        Halt the channel, then save each slot to FILE
  -w, --watch            Poll the frame counter until interrupted
      --interval=DUR     Watch poll interval (default: 100ms)

Layout:
      --base=ADDR        Physical frame memory base (default: 0x20000000)
  -x, --width=NUM        Frame width, in pixels (default: 640)
  -y, --height=NUM       Frame height, in pixels (default: 480)
  -b, --buffers=NUM      Frame ring slots, 1 to 4 (default: 3)
      --format=STR       Pixel packing: rgba, yuyv, uyvy (default: rgba)

Miscellaneous:
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

Saving halts the DMA channel so the dumps are self-consistent; restart the
camera application afterwards.`

// Help information is printed and program exits
func help() {
	color.New(color.FgCyan).Println("video-diag")
	fmt.Println(helpString)
}
