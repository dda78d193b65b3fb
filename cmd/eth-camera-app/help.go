package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagHost    string
	flagPort    int
	flagTCP     bool
	flagTOS     int
	flagFPS     int
	flagWidth   int
	flagHeight  int
	flagBuffers int
	flagFormat  string
	flagPolicy  string
	flagForce   bool
	flagDebug   bool
	flagDiag    bool
	flagSave    string
	flagHelp    bool
	flagVersion bool
)

func init() {
	flag.StringVarP(&flagHost, "host", "H", "10.72.43.200", "Receiver address")
	flag.IntVarP(&flagPort, "port", "p", 5000, "Receiver port")
	flag.BoolVarP(&flagTCP, "tcp", "t", false, "Stream over TCP instead of UDP")
	flag.IntVarP(&flagTOS, "tos", "", 0, "IPv4 TOS byte for outgoing packets")

	flag.IntVarP(&flagFPS, "fps", "", 30, "Target frame rate")
	flag.IntVarP(&flagWidth, "width", "x", 640, "Frame width")
	flag.IntVarP(&flagHeight, "height", "y", 480, "Frame height")
	flag.IntVarP(&flagBuffers, "buffers", "b", 1, "Frame ring slots")
	flag.StringVarP(&flagFormat, "format", "", "auto", "Pixel packing")
	flag.StringVarP(&flagPolicy, "policy", "", "next", "Safe slot rule")
	flag.BoolVarP(&flagForce, "force", "f", false, "Resend unchanged frames")

	flag.BoolVarP(&flagDebug, "debug", "d", false, "Print first-frame diagnostics")
	flag.BoolVarP(&flagDiag, "diag", "D", false, "Inspect hardware state and exit")
	flag.StringVarP(&flagSave, "save", "s", "", "Save ring slots to FILE and exit")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Streams raw camera frames from the capture ring to a network receiver

Usage: eth-camera-app [OPTION]...

Network:
  -H, --host=IP          Receiver address (default: 10.72.43.200)
  -p, --port=NUM         Receiver port (default: 5000)
  -t, --tcp              Stream over TCP instead of UDP
      --tos=NUM          IPv4 TOS byte for outgoing packets (default: 0)

Video source:
      --fps=NUM          Target frame rate (default: 30)
  -x, --width=NUM        Frame width, in pixels (default: 640)
  -y, --height=NUM       Frame height, in pixels (default: 480)
  -b, --buffers=NUM      Frame ring slots, 1 to 4 (default: 1)
      --format=STR       Pixel packing: auto, yuyv, uyvy, rgba (default: auto)
      --policy=STR       Safe slot rule: next, prev (default: next)
  -f, --force            Resend the current frame when no new one arrived

Diagnostics:
  -d, --debug            Print first-frame byte diagnostics before streaming
  -D, --diag             Inspect hardware and frame state, then exit
  -s, --save=FILE        Save every ring slot to FILE and exit (implies -D)

Miscellaneous:
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

The receiving end of the wire format is implemented by stream-recv.`

// Help information is printed and program exits
func help() {
	color.New(color.FgCyan).Println("eth-camera-app")
	fmt.Println(helpString)
}
