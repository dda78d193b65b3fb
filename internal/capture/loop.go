// Package capture runs the poll-and-emit loop between the acquisition ring
// and a frame sink. One goroutine owns the whole loop; the hardware is the
// only other writer anywhere in the pipeline.
package capture

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/vidf"
)

// DefaultPollInterval bounds the busy-wait when no new frame has landed.
const DefaultPollInterval = time.Millisecond

// FrameSource is the read side of the acquisition ring.
type FrameSource interface {
	// WriteCursor reports the slot the producer is currently filling,
	// or a negative value while no frame information is available.
	WriteCursor() int

	// SafeReadSlot picks the slot whose bytes are stable right now.
	SafeReadSlot() int

	// Slot exposes the raw bytes of slot i.
	Slot(i int) ([]byte, error)
}

// EmitFunc hands one frame to the sink. It matches vidf.Session.SendFrame
// so a session can be wired in directly.
type EmitFunc func(seq uint32, data []byte, width, height int, format pixel.Format) (vidf.Outcome, error)

// Config carries the loop tunables.
type Config struct {
	Width  int
	Height int

	// FPS paces emission. Zero or negative disables pacing entirely.
	FPS int

	// PollInterval is the sleep between polls when nothing changed.
	// Zero takes DefaultPollInterval.
	PollInterval time.Duration

	// Force emits on every iteration even when the write cursor has not
	// moved. Useful only for soak-testing the transport.
	Force bool

	// Format asserts the pixel packing of the incoming frames.
	Format pixel.Format

	// DetectFormat classifies the packing from the first captured frame
	// and overrides Format with the result.
	DetectFormat bool
}

// Stats are the loop counters. Owned by Run; read them after Run returns.
type Stats struct {
	// FramesEmitted counts frames fully accepted by the sink.
	FramesEmitted uint64

	// BackpressureSkips counts frames the sink refused without error.
	BackpressureSkips uint64

	// StaleSkips counts polls that found no new frame.
	StaleSkips uint64

	// BytesEmitted counts payload bytes of emitted frames.
	BytesEmitted uint64
}

// Loop couples a frame source to an emit function.
type Loop struct {
	Source FrameSource
	Emit   EmitFunc
	Config Config

	stats Stats
}

// Stats returns the counters accumulated so far.
func (l *Loop) Stats() Stats {
	return l.stats
}

// Run polls the source until ctx is canceled or the sink fails. Each
// iteration reads the write cursor, skips when it has not advanced, and
// otherwise emits the safe slot's bytes. A nil return means a clean
// shutdown.
func (l *Loop) Run(ctx context.Context) error {
	if l.Source == nil || l.Emit == nil {
		return errors.New("capture loop needs a source and an emitter")
	}

	cfg := l.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	var period time.Duration
	if cfg.FPS > 0 {
		period = time.Second / time.Duration(cfg.FPS)
	}

	format := cfg.Format
	classified := !cfg.DetectFormat

	var seq uint32
	lastCursor := -1
	start := time.Now()
	lastStat := start

	log.Info("streaming %dx%d at %d fps", cfg.Width, cfg.Height, cfg.FPS)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		iterStart := time.Now()

		cursor := l.Source.WriteCursor()
		if cursor < 0 {
			time.Sleep(cfg.PollInterval)
			continue
		}

		if cursor == lastCursor && seq > 0 && !cfg.Force {
			l.stats.StaleSkips++
			time.Sleep(cfg.PollInterval)
			continue
		}
		lastCursor = cursor

		slot := l.Source.SafeReadSlot()
		data, err := l.Source.Slot(slot)
		if err != nil {
			return errors.Wrapf(err, "read slot %d", slot)
		}

		if !classified {
			format = pixel.Classify(data)
			classified = true
			log.Info("detected %s packing from first frame", format)
		}

		outcome, err := l.Emit(seq, data, cfg.Width, cfg.Height, format)
		if err != nil {
			return errors.Wrapf(err, "emit frame %d", seq)
		}
		seq++

		if outcome == vidf.OutcomeSent {
			l.stats.FramesEmitted++
			l.stats.BytesEmitted += uint64(len(data))
		} else {
			l.stats.BackpressureSkips++
		}

		if now := time.Now(); now.Sub(lastStat) >= time.Second {
			l.logProgress(now.Sub(start))
			lastStat = now
		}

		if period > 0 {
			if spent := time.Since(iterStart); spent < period {
				time.Sleep(period - spent)
			}
		}
	}
}

func (l *Loop) logProgress(elapsed time.Duration) {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return
	}
	fps := float64(l.stats.FramesEmitted) / secs
	mbps := float64(l.stats.BytesEmitted) * 8 / secs / 1e6
	if l.stats.StaleSkips > 0 || l.stats.BackpressureSkips > 0 {
		log.Info("sent %d frames | %.1f fps | %.1f Mbps | skips: %d stale, %d backpressure",
			l.stats.FramesEmitted, fps, mbps, l.stats.StaleSkips, l.stats.BackpressureSkips)
		return
	}
	log.Info("sent %d frames | %.1f fps | %.1f Mbps", l.stats.FramesEmitted, fps, mbps)
}
