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

	"github.com/hwx-sodo/petalinux-uvc-app/internal/diag"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/logging"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/vdma"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/vpss"
)

var log = logging.DefaultLogger.WithTag("main")

// Populated via -ldflags="-X ...". See Makefile.
var GitRevisionId string

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("video-diag", GitRevisionId)
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
	base, err := strconv.ParseUint(flagBase, 0, 64)
	if err != nil {
		return errors.Wrapf(err, "bad frame base %q", flagBase)
	}

	cfg := vdma.DefaultConfig()
	cfg.FrameBase = base
	cfg.Width = flagWidth
	cfg.Height = flagHeight
	cfg.BytesPerPixel = format.BytesPerPixel()
	cfg.Buffers = flagBuffers

	// No selection flags means show everything.
	everything := !flagDMA && !flagVPSS && !flagAll && !flagWatch &&
		len(flagFrames) == 0 && flagSave == ""

	engine, err := vdma.OpenInspect(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	if flagDMA || everything {
		engine.DumpRegisters(os.Stdout)
	}

	if flagVPSS || everything {
		dumpVPSS()
	}

	slots := flagFrames
	if flagAll || everything || (flagSave != "" && len(slots) == 0) {
		slots = slots[:0]
		for i := 0; i < cfg.Buffers; i++ {
			slots = append(slots, i)
		}
	}
	for _, i := range slots {
		data, err := engine.Slot(i)
		if err != nil {
			return err
		}
		diag.WriteReport(os.Stdout, i, data, cfg.Width, format)
	}

	if flagSave != "" {
		if err := save(engine, slots, format); err != nil {
			return err
		}
	}

	if flagWatch {
		return watch(ctx, engine)
	}
	return nil
}

func dumpVPSS() {
	conv, err := vpss.OpenInspect()
	if err != nil {
		log.Warn("vpss unavailable: %v", err)
		return
	}
	defer conv.Close()
	conv.DumpRegisters(os.Stdout)
}

// save halts the channel so every dump is a whole frame, then writes each
// selected slot to its own file.
func save(engine *vdma.Engine, slots []int, format pixel.Format) error {
	engine.Halt()
	time.Sleep(100 * time.Millisecond)

	cfg := engine.Config()
	fmt.Println()
	var last string
	for _, i := range slots {
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

// watch repaints one status line as the frame counter advances, the
// quickest way to see whether the hardware is producing frames at all.
func watch(ctx context.Context, engine *vdma.Engine) error {
	tick := time.NewTicker(flagInterval)
	defer tick.Stop()

	fmt.Println("watching the frame counter, press Ctrl-C to stop")
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-tick.C:
			fmt.Printf("\r  %-60s", engine.Status())
		}
	}
}
