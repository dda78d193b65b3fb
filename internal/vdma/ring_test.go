package vdma

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/mmio"
)

type fakeSource struct {
	count uint32
	ok    bool
	slots [][]byte
}

func (f *fakeSource) frameCount() (uint32, bool) {
	return f.count, f.ok
}

func (f *fakeSource) Slot(i int) ([]byte, error) {
	if i < 0 || i >= len(f.slots) {
		return nil, errors.Errorf("slot %d out of range", i)
	}
	return f.slots[i], nil
}

func TestSafeSlotNeverEqualsCursor(t *testing.T) {
	for _, policy := range []ReadPolicy{ReadAfterCursor, ReadBehindCursor} {
		for n := 2; n <= maxSlots; n++ {
			src := &fakeSource{ok: true}
			ring := &Ring{src: src, buffers: n, policy: policy}

			for raw := uint32(0); raw < 256; raw++ {
				src.count = raw
				cursor := ring.WriteCursor()
				safe := ring.SafeReadSlot()
				if safe == cursor {
					t.Fatalf("policy=%v n=%d raw=%d: safe slot %d equals write cursor",
						policy, n, raw, safe)
				}
				if safe < 0 || safe >= n {
					t.Fatalf("policy=%v n=%d raw=%d: safe slot %d out of range",
						policy, n, raw, safe)
				}
			}
		}
	}
}

func TestSingleBufferAlwaysSlotZero(t *testing.T) {
	src := &fakeSource{ok: true}
	ring := &Ring{src: src, buffers: 1, policy: ReadAfterCursor}

	for raw := uint32(0); raw < 16; raw++ {
		src.count = raw
		assert.Equal(t, 0, ring.WriteCursor())
		assert.Equal(t, 0, ring.SafeReadSlot())
	}
}

func TestWriteCursorIdempotent(t *testing.T) {
	src := &fakeSource{count: 7, ok: true}
	ring := &Ring{src: src, buffers: 3, policy: ReadAfterCursor}

	first := ring.WriteCursor()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ring.WriteCursor())
	}
}

func TestCursorSequenceScenario(t *testing.T) {
	src := &fakeSource{ok: true}
	ring := &Ring{src: src, buffers: 3, policy: ReadAfterCursor}

	cursors := []uint32{0, 0, 1, 1, 2, 0, 1}
	want := []int{1, 1, 2, 2, 0, 1, 2}

	var got []int
	for _, c := range cursors {
		src.count = c
		got = append(got, ring.SafeReadSlot())
	}
	assert.Equal(t, want, got)
}

func TestCursorUnavailable(t *testing.T) {
	ring := &Ring{src: &fakeSource{ok: false}, buffers: 3, policy: ReadAfterCursor}

	assert.Equal(t, CursorUnavailable, ring.WriteCursor())
	assert.Equal(t, CursorUnavailable, ring.SafeReadSlot())
}

func TestProgramRegisters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buffers = 3

	e := &Engine{cfg: cfg, regs: mmio.NewWindow(make([]byte, 0x100))}
	e.program()

	assert.Equal(t, uint32(2), e.regs.ReadReg32(regFrmStore))
	assert.Equal(t, uint32(0x20000000), e.regs.ReadReg32(regStartAddr0))
	assert.Equal(t, uint32(0x21000000), e.regs.ReadReg32(regStartAddr0+4))
	assert.Equal(t, uint32(0x22000000), e.regs.ReadReg32(regStartAddr0+8))
	assert.Equal(t, uint32(0), e.regs.ReadReg32(regStartAddr0+12))
	assert.Equal(t, uint32(1280), e.regs.ReadReg32(regHSize))
	assert.Equal(t, uint32(1280), e.regs.ReadReg32(regFrmdlyStride))
}

func TestFrameCountFromStatusRegister(t *testing.T) {
	e := &Engine{cfg: DefaultConfig(), regs: mmio.NewWindow(make([]byte, 0x100))}
	e.regs.WriteReg32(regDMASR, 5<<dmasrFrmCntShift|dmasrIdle)

	raw, ok := e.frameCount()
	require.True(t, ok)
	assert.Equal(t, uint32(5), raw)

	e.regs = nil
	_, ok = e.frameCount()
	assert.False(t, ok)
}

func TestStatusDecode(t *testing.T) {
	st := decodeStatus(dmasrHalted | dmasrIntErr | dmasrSOFLate | 3<<dmasrFrmCntShift)

	assert.True(t, st.Halted)
	assert.False(t, st.Idle)
	assert.Equal(t, 3, st.FrameCount)
	assert.Equal(t, []string{"dma internal error", "start-of-frame late"}, st.Errors)
	assert.Contains(t, st.String(), "halted")
	assert.Contains(t, st.String(), "dma internal error")

	ok := decodeStatus(dmasrIdle | 1<<dmasrFrmCntShift)
	assert.False(t, ok.Halted)
	assert.Empty(t, ok.Errors)
	assert.Equal(t, "running (frame=1)", ok.String())
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buffers = maxSlots + 1
	_, err := Open(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Width = 0
	require.Error(t, cfg.validate())

	cfg = DefaultConfig()
	cfg.SlotStride = 1024
	require.Error(t, cfg.validate())
}
