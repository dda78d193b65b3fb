package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/diag"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/logging"
)

var log = logging.DefaultLogger.WithTag("main")

// Populated via -ldflags="-X ...". See Makefile.
var GitRevisionId string

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("stream-recv", GitRevisionId)
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
	recv := &Receiver{
		Port: flagPort,
		TCP:  flagTCP,
	}

	var preview *Preview
	if flagHTTP != "" {
		preview = NewPreview(flagHTTP)
		go preview.ListenAndServe(ctx)
	}

	var saver *frameSaver
	if flagSaveDir != "" {
		if err := os.MkdirAll(flagSaveDir, 0755); err != nil {
			return err
		}
		saver = &frameSaver{dir: flagSaveDir, every: flagSaveEvery}
	}

	if preview != nil || saver != nil {
		recv.OnFrame = func(f Frame) {
			if preview != nil {
				preview.Publish(f)
			}
			if saver != nil {
				saver.maybe(f)
			}
		}
	}

	proto := "udp"
	if flagTCP {
		proto = "tcp"
	}
	fmt.Println("=============== stream receiver ===============")
	fmt.Printf("  listening on %s port %d\n", proto, flagPort)
	if flagHTTP != "" {
		fmt.Printf("  preview on http://%s/frame\n", flagHTTP)
	}
	if flagSaveDir != "" {
		fmt.Printf("  saving 1 in %d frames to %s\n", flagSaveEvery, flagSaveDir)
	}
	fmt.Println("===============================================")

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- recv.Run(ctx) }()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	var err error
loop:
	for {
		select {
		case err = <-done:
			break loop
		case <-tick.C:
			printStats(recv.Totals(), time.Since(start))
		}
	}

	printSummary(recv.Totals(), time.Since(start))
	return err
}

// printStats writes the once-a-second progress line. Counters that are
// still zero stay out of the way.
func printStats(t Totals, elapsed time.Duration) {
	if t.Frames == 0 && t.Bytes == 0 {
		return
	}
	secs := elapsed.Seconds()
	line := fmt.Sprintf("frames %6d | fps %5.1f | %6.1f Mbps",
		t.Frames, float64(t.Frames)/secs, float64(t.Bytes)*8/secs/1e6)
	if t.Dropped > 0 {
		line += fmt.Sprintf(" | dropped %d", t.Dropped)
	}
	if t.InvalidHeaders > 0 {
		line += fmt.Sprintf(" | bad headers %d", t.InvalidHeaders)
	}
	if t.Partial > 0 {
		line += fmt.Sprintf(" | partial %d", t.Partial)
	}
	fmt.Println(line)
}

func printSummary(t Totals, elapsed time.Duration) {
	secs := elapsed.Seconds()

	fmt.Println("\n================== totals =====================")
	fmt.Printf("  frames       %d\n", t.Frames)
	fmt.Printf("  runtime      %.1fs\n", secs)
	if secs > 0 {
		fmt.Printf("  mean fps     %.1f\n", float64(t.Frames)/secs)
	}
	fmt.Printf("  received     %.1f MiB\n", float64(t.Bytes)/(1<<20))
	fmt.Printf("  dropped      %d\n", t.Dropped)
	fmt.Printf("  bad headers  %d\n", t.InvalidHeaders)
	fmt.Printf("  partial      %d\n", t.Partial)

	if t.Frames == 0 && t.Bytes > 0 {
		fmt.Println("\nbytes arrived but no frame completed:")
		fmt.Println("  - confirm the sender leads every frame with its header")
		fmt.Println("  - rerun with LOGLEVEL=debug for per-packet detail")
		fmt.Println("  - check firewalls between the two ends")
	}
}

// frameSaver writes every Nth complete frame to the save directory using
// the diagnostic dump naming, so the playback hints from the sender side
// apply to these files too.
type frameSaver struct {
	dir   string
	every int
	seen  uint64
}

func (s *frameSaver) maybe(f Frame) {
	s.seen++
	if s.every > 1 && (s.seen-1)%uint64(s.every) != 0 {
		return
	}
	base := filepath.Join(s.dir, "frame.bin")
	name, err := diag.SaveFrame(base, int(f.Header.Seq), f.Data)
	if err != nil {
		log.Warn("save frame %d: %v", f.Header.Seq, err)
		return
	}
	log.Info("saved %s (%d bytes)", name, len(f.Data))
}
