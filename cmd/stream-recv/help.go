package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagPort      int
	flagTCP       bool
	flagSaveDir   string
	flagSaveEvery int
	flagHTTP      string
	flagHelp      bool
	flagVersion   bool
)

func init() {
	flag.IntVarP(&flagPort, "port", "p", 5000, "Listen port")
	flag.BoolVarP(&flagTCP, "tcp", "t", false, "Accept a TCP stream instead of UDP")
	flag.StringVarP(&flagSaveDir, "save-dir", "o", "", "Save received frames to DIR")
	flag.IntVarP(&flagSaveEvery, "save-every", "", 30, "Save one frame out of every NUM")
	flag.StringVarP(&flagHTTP, "http", "", "", "Serve a latest-frame preview on ADDR")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Receives a camera frame stream and reports what actually arrived

Usage: stream-recv [OPTION]...

Network:
  -p, --port=NUM         Listen port (default: 5000)
  -t, --tcp              Accept a TCP stream instead of UDP

Output:
  -o, --save-dir=DIR     Save received frames to DIR as raw dumps
      --save-every=NUM   Save one frame out of every NUM (default: 30)
      --http=ADDR        Serve a latest-frame preview on ADDR (e.g. :8080)

Miscellaneous:
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

The preview server answers GET /frame with the raw bytes of the newest
frame, GET /frame.jpg with a rendered image, and pushes frame metadata
as JSON over a websocket at /ws.`

// Help information is printed and program exits
func help() {
	color.New(color.FgCyan).Println("stream-recv")
	fmt.Println(helpString)
}
