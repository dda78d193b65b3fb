package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/capture"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/logging"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/uvc"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/vdma"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/vidf"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/vpss"
)

var log = logging.DefaultLogger.WithTag("main")

// Populated via -ldflags="-X ...". See Makefile.
var GitRevisionId string

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("uvc-camera-app", GitRevisionId)
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
	format, err := pixel.Parse(flagFormat)
	if err != nil {
		return err
	}
	base, err := strconv.ParseUint(flagFrameBase, 0, 64)
	if err != nil {
		return errors.Wrapf(err, "bad frame base %q", flagFrameBase)
	}

	cfg := vdma.DefaultConfig()
	cfg.FrameBase = base
	cfg.Width = flagWidth
	cfg.Height = flagHeight
	cfg.BytesPerPixel = format.BytesPerPixel()
	cfg.Buffers = flagBuffers

	fmt.Println("============= UVC camera gadget feeder =============")
	fmt.Printf("  source: %dx%d %s, %d ring slot(s) at 0x%08X\n",
		cfg.Width, cfg.Height, format, cfg.Buffers, cfg.FrameBase)
	fmt.Printf("  sink:   %s at %d fps\n", flagDevice, flagFPS)
	fmt.Println("====================================================")

	fmt.Println("[1/4] bringing up the scaler")
	conv, err := vpss.Open()
	if err != nil {
		return err
	}
	defer conv.Close()

	fmt.Println("[2/4] bringing up the DMA engine")
	engine, err := vdma.Open(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Println("[3/4] starting capture")
	if err := engine.Start(); err != nil {
		return err
	}

	fmt.Println("[4/4] starting the scaler")
	// The DMA engine must be accepting data before the scaler pushes any,
	// or the first lines of the stream land nowhere.
	time.Sleep(10 * time.Millisecond)
	if err := conv.Start(); err != nil {
		return err
	}

	// Let the pipeline lap the ring once before the first read.
	time.Sleep(time.Second)

	dev, err := uvc.Open(uvc.Config{
		Path:   flagDevice,
		Width:  flagWidth,
		Height: flagHeight,
		Format: format,
	})
	if err != nil {
		return err
	}
	defer dev.Close()

	loop := &capture.Loop{
		Source: engine.Ring(vdma.ReadAfterCursor),
		Emit:   gadgetEmit(dev),
		Config: capture.Config{
			Width:  flagWidth,
			Height: flagHeight,
			FPS:    flagFPS,
			Force:  flagForce,
			Format: format,
		},
	}

	fmt.Println("forwarding frames to the gadget, press Ctrl-C to stop")
	err = loop.Run(ctx)

	st := loop.Stats()
	fmt.Printf("\nqueued %d frames, %d stale polls, %d full-queue drops\n",
		st.FramesEmitted, st.StaleSkips, st.BackpressureSkips)
	return err
}

// gadgetEmit adapts the gadget's write call to the capture loop. A full
// USB request queue is backpressure, not a failure: the frame is dropped
// and the loop moves on to the next one.
func gadgetEmit(dev *uvc.Device) capture.EmitFunc {
	return func(seq uint32, data []byte, width, height int, format pixel.Format) (vidf.Outcome, error) {
		if _, err := dev.WriteFrame(data); err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return vidf.OutcomeSkipped, nil
			}
			return vidf.OutcomeSkipped, errors.Wrap(err, "queue frame to gadget")
		}
		return vidf.OutcomeSent, nil
	}
}
