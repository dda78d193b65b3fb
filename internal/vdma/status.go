package vdma

import (
	"fmt"
	"io"
	"strings"
)

// Status is a decoded snapshot of the S2MM status register.
type Status struct {
	Raw        uint32
	Halted     bool
	Idle       bool
	FrameCount int
	DelayCount int
	Errors     []string
}

func decodeStatus(sr uint32) Status {
	st := Status{
		Raw:        sr,
		Halted:     sr&dmasrHalted != 0,
		Idle:       sr&dmasrIdle != 0,
		FrameCount: int((sr & dmasrFrmCntMask) >> dmasrFrmCntShift),
		DelayCount: int((sr & dmasrDlyCntMask) >> dmasrDlyCntShift),
	}
	for _, e := range []struct {
		bit  uint32
		name string
	}{
		{dmasrIntErr, "dma internal error"},
		{dmasrSlvErr, "dma slave error"},
		{dmasrDecErr, "dma decode error"},
		{dmasrSOFEarly, "start-of-frame early"},
		{dmasrEOLEarly, "end-of-line early"},
		{dmasrSOFLate, "start-of-frame late"},
		{dmasrEOLLate, "end-of-line late"},
	} {
		if sr&e.bit != 0 {
			st.Errors = append(st.Errors, e.name)
		}
	}
	return st
}

func (s Status) String() string {
	state := "running"
	if s.Halted {
		state = "halted"
	}
	if len(s.Errors) > 0 {
		return fmt.Sprintf("%s (frame=%d, errors: %s)", state, s.FrameCount,
			strings.Join(s.Errors, ", "))
	}
	return fmt.Sprintf("%s (frame=%d)", state, s.FrameCount)
}

// Status reads and decodes the channel status register.
func (e *Engine) Status() Status {
	if e.regs == nil {
		return Status{Halted: true, Errors: []string{"register window not mapped"}}
	}
	return decodeStatus(e.regs.ReadReg32(regDMASR))
}

// DumpRegisters writes a human-readable register report, used by the
// diagnostic tool and by debug startup paths.
func (e *Engine) DumpRegisters(w io.Writer) {
	if e.regs == nil {
		fmt.Fprintln(w, "vdma: register window not mapped")
		return
	}

	dmacr := e.regs.ReadReg32(regDMACR)
	st := e.Status()

	fmt.Fprintln(w, "============ VDMA S2MM registers ============")
	fmt.Fprintf(w, "  DMACR    (0x30): 0x%08X  run=%d circular=%d reset=%d\n",
		dmacr, dmacr&dmacrRunStop, (dmacr&dmacrCircular)>>1, (dmacr&dmacrReset)>>2)
	fmt.Fprintf(w, "  DMASR    (0x34): 0x%08X  halted=%v idle=%v frame=%d delay=%d\n",
		st.Raw, st.Halted, st.Idle, st.FrameCount, st.DelayCount)
	fmt.Fprintf(w, "  VSIZE    (0xA0): %d (expect %d)\n",
		e.regs.ReadReg32(regVSize), e.cfg.Height)
	fmt.Fprintf(w, "  HSIZE    (0xA4): %d (expect %d)\n",
		e.regs.ReadReg32(regHSize), e.cfg.LineStride())
	fmt.Fprintf(w, "  STRIDE   (0xA8): %d\n", e.regs.ReadReg32(regFrmdlyStride))
	fmt.Fprintf(w, "  FRMSTORE (0x48): %d (%d slot(s))\n",
		e.regs.ReadReg32(regFrmStore), e.regs.ReadReg32(regFrmStore)+1)

	fmt.Fprintf(w, "  slot addresses (%d configured):\n", e.cfg.Buffers)
	for i := 0; i < e.cfg.Buffers; i++ {
		fmt.Fprintf(w, "    [%d]: 0x%08X\n", i, e.regs.ReadReg32(uint32(regStartAddr0+4*i)))
	}

	switch {
	case st.Halted:
		fmt.Fprintln(w, "  [err] channel halted")
	case dmacr&dmacrRunStop != 0:
		fmt.Fprintln(w, "  [ok] channel running")
	default:
		fmt.Fprintln(w, "  [warn] channel stopped")
	}
	for _, e := range st.Errors {
		fmt.Fprintf(w, "  [err] %s\n", e)
	}
	fmt.Fprintln(w, "=============================================")
}
