package vidf

import (
	"time"

	"golang.org/x/sys/unix"
	errors "golang.org/x/xerrors"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/packet"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
)

// Outcome is the per-frame result of SendFrame.
type Outcome int

const (
	// OutcomeSent means the header and the complete payload were accepted
	// by the transport.
	OutcomeSent Outcome = iota

	// OutcomeSkipped means the transport would have blocked on the header
	// write. The frame is abandoned whole so the receiver never sees a
	// payload without its header.
	OutcomeSkipped
)

// Mode selects the transport flavor of a session.
type Mode int

const (
	Datagram Mode = iota
	Stream
)

func (m Mode) String() string {
	if m == Stream {
		return "tcp"
	}
	return "udp"
}

// Sender is the non-blocking write side of a transport. A full socket
// buffer must surface as unix.EAGAIN rather than blocking the caller.
type Sender interface {
	Send(p []byte) (int, error)
}

const (
	// DefaultChunkSize keeps each datagram under the usual 1500-byte
	// ethernet MTU once UDP and IP headers are added.
	DefaultChunkSize = 1400

	// defaultRetryWait is how long to back off when the socket buffer is
	// full mid-payload.
	defaultRetryWait = 100 * time.Microsecond
)

// Config carries the tunable parts of a session.
type Config struct {
	Mode Mode

	// ChunkSize bounds each datagram payload write. Ignored in stream
	// mode, where the kernel segments freely.
	ChunkSize int

	// RetryWait is the backoff between attempts when a payload write
	// returns EAGAIN.
	RetryWait time.Duration
}

// Stats is a snapshot of the session counters.
type Stats struct {
	FramesSent    uint64
	FramesSkipped uint64
	BytesSent     uint64
}

// Session streams VIDF frames over a single connected transport. It is not
// safe for concurrent use; the capture loop is its only caller.
type Session struct {
	conn Sender
	cfg  Config
	hdr  *packet.Writer

	framesSent    uint64
	framesSkipped uint64
	bytesSent     uint64
}

// NewSession wraps conn. Zero Config fields take their defaults.
func NewSession(conn Sender, cfg Config) *Session {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	return &Session{
		conn: conn,
		cfg:  cfg,
		hdr:  packet.NewWriterSize(HeaderSize),
	}
}

// SendFrame writes one frame. The header goes out in a single write; if
// that write would block, the whole frame is skipped and the session stays
// healthy. Once the header is on the wire the payload must follow
// completely, so payload writes retry on EAGAIN. Any other transport error
// is fatal to the session.
func (s *Session) SendFrame(seq uint32, data []byte, width, height int, format pixel.Format) (Outcome, error) {
	h := Header{
		Seq:        seq,
		Width:      uint32(width),
		Height:     uint32(height),
		Format:     format,
		PayloadLen: uint32(len(data)),
		Timestamp:  time.Now(),
	}
	s.hdr.Reset()
	if err := h.writeTo(s.hdr); err != nil {
		return 0, err
	}

	n, err := s.conn.Send(s.hdr.Bytes())
	if isWouldBlock(err) {
		s.framesSkipped++
		log.Debug("frame %d skipped, transport backlogged", seq)
		return OutcomeSkipped, nil
	}
	if err != nil {
		return 0, errors.Errorf("send header: %v", err)
	}
	if n != HeaderSize {
		// A partial header on a stream leaves the receiver unable to
		// find the next frame boundary.
		return 0, errors.Errorf("short header write (%d of %d)", n, HeaderSize)
	}

	var sent int
	if s.cfg.Mode == Datagram {
		sent, err = s.sendChunked(data)
	} else {
		sent, err = s.sendStream(data)
	}
	if err != nil {
		return 0, err
	}

	s.framesSent++
	s.bytesSent += uint64(HeaderSize + sent)
	return OutcomeSent, nil
}

// sendChunked slices the payload into ChunkSize datagrams. Each datagram
// is all-or-nothing at the socket.
func (s *Session) sendChunked(data []byte) (int, error) {
	total := 0
	for off := 0; off < len(data); {
		end := off + s.cfg.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		n, err := s.conn.Send(data[off:end])
		if isWouldBlock(err) {
			time.Sleep(s.cfg.RetryWait)
			continue
		}
		if err != nil {
			return total, errors.Errorf("send chunk at offset %d: %v", off, err)
		}
		total += n
		off = end
	}
	return total, nil
}

// sendStream pushes the payload through a byte stream, resuming after
// partial writes.
func (s *Session) sendStream(data []byte) (int, error) {
	total := 0
	for total < len(data) {
		n, err := s.conn.Send(data[total:])
		if isWouldBlock(err) {
			time.Sleep(s.cfg.RetryWait)
			continue
		}
		if err != nil {
			return total, errors.Errorf("send payload at offset %d: %v", total, err)
		}
		total += n
	}
	return total, nil
}

// Stats returns the counters accumulated so far.
func (s *Session) Stats() Stats {
	return Stats{
		FramesSent:    s.framesSent,
		FramesSkipped: s.framesSkipped,
		BytesSent:     s.bytesSent,
	}
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
