package vdma

// AXI VDMA S2MM channel register offsets, per Xilinx PG020 (v6.3).
const (
	regDMACR        = 0x30 // control
	regDMASR        = 0x34 // status
	regIndex        = 0x44 // frame store register bank index
	regFrmStore     = 0x48 // number of frame stores minus one
	regThreshold    = 0x4C // line buffer threshold
	regVSize        = 0xA0 // lines per frame; writing arms the transfer
	regHSize        = 0xA4 // bytes per line
	regFrmdlyStride = 0xA8 // frame delay / line stride
	regStartAddr0   = 0xAC // slot 0 start address; slots at +4 each
)

// DMACR bits.
const (
	dmacrRunStop  = 1 << 0
	dmacrCircular = 1 << 1
	dmacrReset    = 1 << 2
	dmacrGenlock  = 1 << 3
	dmacrFrmCntEn = 1 << 4
	dmacrErrIRQ   = 1 << 14
)

// DMASR bits.
const (
	dmasrHalted   = 1 << 0
	dmasrIdle     = 1 << 1
	dmasrIntErr   = 1 << 4
	dmasrSlvErr   = 1 << 5
	dmasrDecErr   = 1 << 6
	dmasrSOFEarly = 1 << 7
	dmasrEOLEarly = 1 << 8
	dmasrSOFLate  = 1 << 11
	dmasrEOLLate  = 1 << 12

	dmasrErrMask = dmasrIntErr | dmasrSlvErr | dmasrDecErr |
		dmasrSOFEarly | dmasrEOLEarly | dmasrSOFLate | dmasrEOLLate

	dmasrFrmCntShift = 16
	dmasrFrmCntMask  = 0x00FF0000
	dmasrDlyCntShift = 24
	dmasrDlyCntMask  = 0xFF000000
)

// The S2MM channel exposes four direct-register frame store slots.
const maxSlots = 4
