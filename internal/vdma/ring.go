package vdma

// The hardware fills slots strictly in round-robin order and a completed
// slot stays byte-stable until the cursor wraps back around to it. That
// guarantee lets an offset-by-one read rule replace a lock: software simply
// never reads the slot the cursor currently points at.

// ReadPolicy selects the safe slot relative to the write cursor. Which
// off-by-one is correct depends on how the core's completion signaling is
// configured, so the rule is selectable rather than hardwired.
type ReadPolicy int

const (
	// ReadAfterCursor selects (cursor + 1) mod N: with the frame counter
	// reporting the slot currently being written, the next slot is the one
	// completed longest ago on the previous lap.
	ReadAfterCursor ReadPolicy = iota

	// ReadBehindCursor selects (cursor + N - 1) mod N: the slot the
	// hardware finished immediately before the one it is writing now.
	ReadBehindCursor
)

func (p ReadPolicy) String() string {
	switch p {
	case ReadAfterCursor:
		return "next"
	case ReadBehindCursor:
		return "prev"
	default:
		return "unknown"
	}
}

// CursorUnavailable is reported while the status register cannot be read.
// Callers treat it as "no frame available yet".
const CursorUnavailable = -1

type ringSource interface {
	frameCount() (uint32, bool)
	Slot(i int) ([]byte, error)
}

// Ring decides, at any instant, which slot is safe to read without racing
// the hardware writer. It holds no state of its own; every answer is
// recomputed from the polled frame counter.
type Ring struct {
	src     ringSource
	buffers int
	policy  ReadPolicy
}

// Buffers returns the slot count N.
func (r *Ring) Buffers() int {
	return r.buffers
}

// WriteCursor returns the slot the hardware is currently targeting, derived
// from the polled frame counter, or CursorUnavailable.
func (r *Ring) WriteCursor() int {
	raw, ok := r.src.frameCount()
	if !ok {
		return CursorUnavailable
	}
	return int(raw) % r.buffers
}

// SafeReadSlot applies the read policy to the current write cursor. With a
// single buffer there is nothing to isolate: slot 0 is returned and the
// caller accepts possible tearing.
func (r *Ring) SafeReadSlot() int {
	cursor := r.WriteCursor()
	if cursor == CursorUnavailable {
		return CursorUnavailable
	}
	return r.safeSlotFor(cursor)
}

func (r *Ring) safeSlotFor(cursor int) int {
	if r.buffers == 1 {
		return 0
	}
	switch r.policy {
	case ReadBehindCursor:
		return (cursor + r.buffers - 1) % r.buffers
	default:
		return (cursor + 1) % r.buffers
	}
}

// Slot returns the mapped bytes of the given slot.
func (r *Ring) Slot(i int) ([]byte, error) {
	return r.src.Slot(i)
}
