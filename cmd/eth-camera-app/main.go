package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/capture"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/diag"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/logging"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/vdma"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/vidf"
)

var log = logging.DefaultLogger.WithTag("main")

// Populated via -ldflags="-X ...". See Makefile.
var GitRevisionId string

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("eth-camera-app", GitRevisionId)
}

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}

	if flagVersion {
		version()
		os.Exit(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context) error {
	format, detect, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}
	policy, err := parsePolicy(flagPolicy)
	if err != nil {
		return err
	}

	mode := vidf.Datagram
	if flagTCP {
		mode = vidf.Stream
	}

	cfg := vdma.DefaultConfig()
	cfg.Width = flagWidth
	cfg.Height = flagHeight
	cfg.BytesPerPixel = format.BytesPerPixel()
	cfg.Buffers = flagBuffers

	fmt.Println("=========== CameraLink network streamer ===========")
	fmt.Printf("  source: %dx%d %s, %d ring slot(s)\n", cfg.Width, cfg.Height, flagFormat, cfg.Buffers)
	fmt.Printf("  sink:   %s://%s:%d at %d fps\n", mode, flagHost, flagPort, flagFPS)
	fmt.Println("====================================================")

	fmt.Println("[1/3] bringing up the DMA engine")
	engine, err := vdma.Open(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Println("[2/3] starting capture")
	if err := engine.Start(); err != nil {
		return err
	}

	// Let the pipeline lap the ring once before the first read.
	time.Sleep(time.Second)

	ring := engine.Ring(policy)

	if flagDiag || flagSave != "" {
		return inspect(engine, format)
	}

	if flagDebug {
		dumpFirstBytes(ring, format)
	}

	fmt.Println("[3/3] connecting to the receiver")
	conn, err := vidf.Dial(mode, flagHost, flagPort, vidf.TransportOptions{TOS: flagTOS})
	if err != nil {
		return err
	}
	defer conn.Close()

	sess := vidf.NewSession(conn, vidf.Config{Mode: mode})

	loop := &capture.Loop{
		Source: ring,
		Emit:   sess.SendFrame,
		Config: capture.Config{
			Width:        flagWidth,
			Height:       flagHeight,
			FPS:          flagFPS,
			Force:        flagForce,
			Format:       format,
			DetectFormat: detect,
		},
	}

	fmt.Println("streaming, press Ctrl-C to stop")
	err = loop.Run(ctx)

	st := loop.Stats()
	fmt.Printf("\nsent %d frames (%d MiB), %d stale polls, %d backpressure drops\n",
		st.FramesEmitted, st.BytesEmitted>>20, st.StaleSkips, st.BackpressureSkips)
	return err
}

// inspect dumps the hardware state and a content report for every slot.
// With --save it also halts the channel and writes each slot to disk, so
// the dumps are internally consistent.
func inspect(engine *vdma.Engine, format pixel.Format) error {
	engine.DumpRegisters(os.Stdout)

	cfg := engine.Config()
	for i := 0; i < cfg.Buffers; i++ {
		data, err := engine.Slot(i)
		if err != nil {
			return err
		}
		diag.WriteReport(os.Stdout, i, data, cfg.Width, format)
	}

	if flagSave == "" {
		return nil
	}

	engine.Halt()
	time.Sleep(100 * time.Millisecond)

	fmt.Println()
	var last string
	for i := 0; i < cfg.Buffers; i++ {
		data, err := engine.Slot(i)
		if err != nil {
			return err
		}
		name, err := diag.SaveFrame(flagSave, i, data)
		if err != nil {
			return err
		}
		fmt.Printf("saved slot %d to %s (%d bytes)\n", i, name, len(data))
		last = name
	}

	fmt.Println("\nplay a dump back with:")
	fmt.Printf("  %s\n", diag.PlaybackHint(format, cfg.Width, cfg.Height, last))
	return nil
}

// dumpFirstBytes prints the head of the safest readable slot, a quick
// sanity check that the hardware is writing plausible pixel data.
func dumpFirstBytes(ring *vdma.Ring, format pixel.Format) {
	slot := ring.SafeReadSlot()
	if slot == vdma.CursorUnavailable {
		log.Warn("no readable slot yet, skipping first-frame dump")
		return
	}
	data, err := ring.Slot(slot)
	if err != nil {
		log.Warn("first-frame dump: %v", err)
		return
	}
	head := data
	if len(head) > 32 {
		head = head[:32]
	}
	fmt.Printf("slot %d head: % X\n", slot, head)
	fmt.Printf("          as: %s\n", diag.DescribeGroups(data, format, 4))
}

// parseFormat maps the --format flag. "auto" defers to first-frame
// classification, which distinguishes the packed 4:2:2 byte orders.
func parseFormat(s string) (pixel.Format, bool, error) {
	if s == "auto" {
		return pixel.YUYV, true, nil
	}
	f, err := pixel.Parse(s)
	return f, false, err
}

func parsePolicy(s string) (vdma.ReadPolicy, error) {
	switch s {
	case "next":
		return vdma.ReadAfterCursor, nil
	case "prev":
		return vdma.ReadBehindCursor, nil
	}
	return 0, errors.Errorf("unknown slot policy %q", s)
}
