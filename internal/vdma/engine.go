// Package vdma drives the AXI Video DMA stream-to-memory channel: one-time
// bring-up into circular frame-buffer mode, status decoding, and the ring
// coordinator that decides which frame slot software may read while the
// hardware keeps writing.
package vdma

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/mmio"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/uio"
)

const devMem = "/dev/mem"

const (
	resetTimeout     = time.Second
	resetPoll        = time.Millisecond
	startSettle      = time.Millisecond
	startVerifyDelay = 10 * time.Millisecond
	stopSettle       = 10 * time.Millisecond
)

// Config describes the hardware layout of the capture pipeline.
type Config struct {
	RegisterBase uint64 // physical base of the VDMA register window
	RegisterSpan int    // size of the register window

	FrameBase  uint64 // physical address of frame slot 0
	SlotStride int64  // spacing between consecutive slot bases

	Buffers       int // slot count N
	Width         int // pixels per line
	Height        int // lines per frame
	BytesPerPixel int
}

// DefaultConfig matches the shipped device tree: registers at 0x80020000,
// reserved frame memory at 0x20000000 with slots 16 MiB apart, 640x480 at
// two bytes per pixel.
func DefaultConfig() Config {
	return Config{
		RegisterBase:  0x80020000,
		RegisterSpan:  0x10000,
		FrameBase:     0x20000000,
		SlotStride:    16 << 20,
		Buffers:       1,
		Width:         640,
		Height:        480,
		BytesPerPixel: 2,
	}
}

// FrameSize returns the byte length of one frame.
func (c Config) FrameSize() int {
	return c.Width * c.Height * c.BytesPerPixel
}

// LineStride returns the byte length of one line.
func (c Config) LineStride() int {
	return c.Width * c.BytesPerPixel
}

func (c Config) validate() error {
	if c.Buffers < 1 || c.Buffers > maxSlots {
		return errors.Errorf("buffer count %d outside 1..%d", c.Buffers, maxSlots)
	}
	if c.Width <= 0 || c.Height <= 0 || c.BytesPerPixel <= 0 {
		return errors.Errorf("bad geometry %dx%dx%d", c.Width, c.Height, c.BytesPerPixel)
	}
	if int64(c.FrameSize()) > c.SlotStride {
		return errors.Errorf("frame of %d bytes exceeds slot stride %d", c.FrameSize(), c.SlotStride)
	}
	return nil
}

// Engine owns the mapped register window and the frame storage views.
type Engine struct {
	cfg     Config
	regs    *mmio.Window
	store   *mmio.Window
	slots   [][]byte
	running bool
}

// Open locates the VDMA's UIO node, maps its registers and the reserved
// frame memory, soft-resets the channel and programs the circular-mode
// layout. The engine is not running until Start.
func Open(cfg Config) (*Engine, error) {
	e, err := open(cfg)
	if err != nil {
		return nil, err
	}

	if err := e.reset(); err != nil {
		e.Close()
		return nil, err
	}
	e.program()

	log.Info("vdma ready: %d slot(s) of %d bytes at 0x%08x",
		cfg.Buffers, cfg.FrameSize(), cfg.FrameBase)
	return e, nil
}

// OpenInspect maps the registers and frame memory without resetting or
// reprogramming the channel, so a diagnostic tool can observe a pipeline
// some other process owns. Close leaves the control register untouched.
func OpenInspect(cfg Config) (*Engine, error) {
	e, err := open(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("vdma inspection view: %s", e.Status())
	return e, nil
}

func open(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dev, err := uio.FindByAddr(cfg.RegisterBase)
	if err != nil {
		return nil, errors.Wrap(err, "locate vdma")
	}
	log.Debug("vdma registers on %s (%s)", dev.Path, dev.Name)

	regs, err := mmio.Map(dev.Path, 0, cfg.RegisterSpan, true)
	if err != nil {
		return nil, errors.Wrap(err, "map vdma registers")
	}

	span := int(int64(cfg.Buffers-1)*cfg.SlotStride) + cfg.FrameSize()
	store, err := mmio.Map(devMem, int64(cfg.FrameBase), span, false)
	if err != nil {
		regs.Close()
		return nil, errors.Wrapf(err, "map frame storage at 0x%08x", cfg.FrameBase)
	}

	e := &Engine{cfg: cfg, regs: regs, store: store}
	for i := 0; i < cfg.Buffers; i++ {
		slot, err := store.View(int(int64(i)*cfg.SlotStride), cfg.FrameSize())
		if err != nil {
			e.Close()
			return nil, errors.Wrapf(err, "slot %d", i)
		}
		e.slots = append(e.slots, slot)
	}
	return e, nil
}

// reset soft-resets the S2MM channel and waits for the bit to self-clear.
func (e *Engine) reset() error {
	e.regs.WriteReg32(regDMACR, dmacrReset)

	deadline := time.Now().Add(resetTimeout)
	for time.Now().Before(deadline) {
		if e.regs.ReadReg32(regDMACR)&dmacrReset == 0 {
			return nil
		}
		time.Sleep(resetPoll)
	}
	return errors.New("vdma reset did not complete")
}

// program writes the circular-mode frame layout. VSize stays unwritten;
// writing it is what arms the channel, so it belongs to Start.
func (e *Engine) program() {
	e.regs.WriteReg32(regFrmStore, uint32(e.cfg.Buffers-1))

	for i := 0; i < e.cfg.Buffers; i++ {
		addr := uint32(e.cfg.FrameBase + uint64(i)*uint64(e.cfg.SlotStride))
		lsb := uint32(regStartAddr0 + 4*i)
		e.regs.WriteReg32(lsb, addr)
		// Zero the MSB word; on 64-bit capable cores it sits at +4 and may
		// hold residue from a previous run.
		e.regs.WriteReg32(lsb+4, 0)
		log.Debug("slot %d at 0x%08x", i, addr)
	}

	e.regs.WriteReg32(regHSize, uint32(e.cfg.LineStride()))
	e.regs.WriteReg32(regFrmdlyStride, uint32(e.cfg.LineStride()))
}

// Start clears sticky errors, enables circular run mode and arms the channel
// by writing VSize, then verifies the channel actually left the halted state.
func (e *Engine) Start() error {
	if e.regs == nil {
		return errors.New("vdma not mapped")
	}

	e.regs.WriteReg32(regDMASR, dmasrErrMask)
	e.regs.WriteReg32(regDMACR, dmacrRunStop|dmacrCircular)
	time.Sleep(startSettle)

	e.regs.WriteReg32(regVSize, uint32(e.cfg.Height))
	time.Sleep(startVerifyDelay)

	st := e.Status()
	if st.Halted || len(st.Errors) > 0 {
		log.Error("vdma failed to start: %s", st)
		return errors.Errorf("vdma halted after start: %s", st)
	}

	e.running = true
	log.Info("vdma running: %s", st)
	return nil
}

// Stop clears the run bit and lets the channel halt at the frame boundary.
// It is a no-op unless this engine started the channel.
func (e *Engine) Stop() {
	if !e.running {
		return
	}
	e.Halt()
}

// Halt clears the run bit regardless of who started the channel. The
// diagnostic tool uses it to freeze frame memory before saving dumps.
func (e *Engine) Halt() {
	if e.regs == nil {
		return
	}
	ctrl := e.regs.ReadReg32(regDMACR)
	e.regs.WriteReg32(regDMACR, ctrl&^uint32(dmacrRunStop))
	time.Sleep(stopSettle)
	e.running = false
	log.Info("vdma stopped")
}

// Close stops the channel and releases both mappings.
func (e *Engine) Close() error {
	e.Stop()
	var first error
	if e.store != nil {
		first = e.store.Close()
		e.store = nil
		e.slots = nil
	}
	if e.regs != nil {
		if err := e.regs.Close(); first == nil {
			first = err
		}
		e.regs = nil
	}
	return first
}

// Slot returns the mapped bytes of one frame slot.
func (e *Engine) Slot(i int) ([]byte, error) {
	if i < 0 || i >= len(e.slots) {
		return nil, errors.Errorf("slot %d of %d", i, len(e.slots))
	}
	return e.slots[i], nil
}

// Config returns the layout the engine was opened with.
func (e *Engine) Config() Config {
	return e.cfg
}

// frameCount reads the raw frame counter from the status register. The
// second return is false when the register window is unavailable.
func (e *Engine) frameCount() (uint32, bool) {
	if e.regs == nil {
		return 0, false
	}
	sr := e.regs.ReadReg32(regDMASR)
	return (sr & dmasrFrmCntMask) >> dmasrFrmCntShift, true
}

// Ring returns the slot coordinator bound to this engine.
func (e *Engine) Ring(policy ReadPolicy) *Ring {
	return &Ring{src: e, buffers: e.cfg.Buffers, policy: policy}
}
