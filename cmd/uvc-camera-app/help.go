package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagDevice    string
	flagFrameBase string
	flagFPS       int
	flagWidth     int
	flagHeight    int
	flagBuffers   int
	flagFormat    string
	flagForce     bool
	flagHelp      bool
	flagVersion   bool
)

func init() {
	flag.StringVarP(&flagDevice, "device", "i", "/dev/video0", "Gadget output node")
	flag.StringVarP(&flagFrameBase, "frame-base", "", "0x10000000", "Frame memory base")

	flag.IntVarP(&flagFPS, "fps", "", 60, "Target frame rate")
	flag.IntVarP(&flagWidth, "width", "x", 640, "Frame width")
	flag.IntVarP(&flagHeight, "height", "y", 480, "Frame height")
	flag.IntVarP(&flagBuffers, "buffers", "b", 3, "Frame ring slots")
	flag.StringVarP(&flagFormat, "format", "", "rgba", "Pixel packing")
	flag.BoolVarP(&flagForce, "force", "f", false, "Requeue unchanged frames")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Forwards camera frames from the capture ring to a USB video gadget

Usage: uvc-camera-app [OPTION]...

Gadget:
  -i, --device=FILE      Gadget output node (default: /dev/video0)

Video source:
      --frame-base=ADDR  Physical frame memory base (default: 0x10000000)
      --fps=NUM          Target frame rate (default: 60)
  -x, --width=NUM        Frame width, in pixels (default: 640)
  -y, --height=NUM       Frame height, in pixels (default: 480)
  -b, --buffers=NUM      Frame ring slots, 1 to 4 (default: 3)
      --format=STR       Pixel packing: rgba, yuyv, uyvy (default: rgba)
  -f, --force            Requeue the current frame when no new one arrived

Miscellaneous:
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

The gadget must be configured (configfs, UDC binding) before this program
starts; a boot script normally does that.`

// Help information is printed and program exits
func help() {
	color.New(color.FgCyan).Println("uvc-camera-app")
	fmt.Println(helpString)
}
