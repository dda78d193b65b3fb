// Package vpss starts and stops the video processing subsystem that feeds
// the DMA engine. The block is an HLS-style core: one control register with
// start/auto-restart bits, a sticky error register, and a version register.
package vpss

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/logging"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/mmio"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/uio"
)

var log = logging.DefaultLogger.WithTag("vpss")

const (
	regCtrl    = 0x00
	regStatus  = 0x04
	regError   = 0x08
	regVersion = 0x10

	ctrlStart       = 1 << 0
	ctrlAutoRestart = 1 << 7

	startSettle = 10 * time.Millisecond
)

// The device tree names the node differently across board revisions.
var nodeNames = []string{"v_proc_ss", "vpss", "VPSS", "video_proc"}

const defaultSpan = 0x10000

// Converter is the mapped VPSS control interface.
type Converter struct {
	regs  *mmio.Window
	owned bool
}

// Open locates the VPSS UIO node by name and maps its registers. The caller
// owns the core: Close stops it.
func Open() (*Converter, error) {
	c, err := open()
	if err != nil {
		return nil, err
	}
	c.owned = true
	return c, nil
}

// OpenInspect maps the core without taking ownership, so a diagnostic tool
// can read its registers while some other process drives it. Close leaves
// the control register untouched.
func OpenInspect() (*Converter, error) {
	return open()
}

func open() (*Converter, error) {
	dev, err := uio.FindByName(nodeNames...)
	if err != nil {
		return nil, errors.Wrap(err, "locate vpss")
	}

	span := dev.Size
	if span == 0 {
		span = defaultSpan
	}
	regs, err := mmio.Map(dev.Path, 0, span, true)
	if err != nil {
		return nil, errors.Wrap(err, "map vpss registers")
	}

	c := &Converter{regs: regs}
	log.Info("vpss on %s (%s), version 0x%08x", dev.Path, dev.Name, c.Version())
	return c, nil
}

// Start clears any sticky errors and enables processing with auto-restart,
// so the core re-arms itself at every frame without software involvement.
func (c *Converter) Start() error {
	if c.regs == nil {
		return errors.New("vpss not mapped")
	}

	if e := c.regs.ReadReg32(regError); e != 0 {
		log.Warn("clearing vpss errors: 0x%08x", e)
		c.regs.WriteReg32(regError, 0xFFFFFFFF)
	}

	c.regs.WriteReg32(regCtrl, ctrlStart|ctrlAutoRestart)
	time.Sleep(startSettle)

	if e := c.regs.ReadReg32(regError); e != 0 {
		return errors.Errorf("vpss reports error 0x%08x after start", e)
	}

	log.Info("vpss running, status 0x%08x", c.regs.ReadReg32(regStatus))
	return nil
}

// Stop clears the control register; the core halts after the current frame.
func (c *Converter) Stop() {
	if c.regs == nil {
		return
	}
	c.regs.WriteReg32(regCtrl, 0)
	time.Sleep(startSettle)
	log.Info("vpss stopped")
}

// Running reports whether the start bit is set.
func (c *Converter) Running() bool {
	return c.regs != nil && c.regs.ReadReg32(regCtrl)&ctrlStart != 0
}

// Version returns the core's version register.
func (c *Converter) Version() uint32 {
	if c.regs == nil {
		return 0
	}
	return c.regs.ReadReg32(regVersion)
}

// DumpRegisters writes the control interface state, used by the diagnostic
// tool.
func (c *Converter) DumpRegisters(w io.Writer) {
	if c.regs == nil {
		fmt.Fprintln(w, "vpss: register window not mapped")
		return
	}

	ctrl := c.regs.ReadReg32(regCtrl)

	fmt.Fprintln(w, "=============== VPSS registers ==============")
	fmt.Fprintf(w, "  CTRL    (0x00): 0x%08X  start=%d auto_restart=%d\n",
		ctrl, ctrl&ctrlStart, (ctrl&ctrlAutoRestart)>>7)
	fmt.Fprintf(w, "  STATUS  (0x04): 0x%08X\n", c.regs.ReadReg32(regStatus))
	fmt.Fprintf(w, "  ERROR   (0x08): 0x%08X\n", c.regs.ReadReg32(regError))
	fmt.Fprintf(w, "  VERSION (0x10): 0x%08X\n", c.regs.ReadReg32(regVersion))

	if ctrl&ctrlStart != 0 {
		fmt.Fprintln(w, "  [ok] core running")
	} else {
		fmt.Fprintln(w, "  [warn] core stopped")
	}
	if e := c.regs.ReadReg32(regError); e != 0 {
		fmt.Fprintf(w, "  [err] sticky error 0x%08X\n", e)
	}
	fmt.Fprintln(w, "=============================================")
}

// Close releases the mapping, stopping the core first when this process
// owns it.
func (c *Converter) Close() error {
	if c.regs == nil {
		return nil
	}
	if c.owned {
		c.Stop()
	}
	err := c.regs.Close()
	c.regs = nil
	return err
}
