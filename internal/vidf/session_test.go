package vidf

import (
	"bytes"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
)

type sendResult struct {
	n   int // -1 accepts the whole write
	err error
}

// scriptedSender replays queued results, one per Send call, then accepts
// everything. It records a copy of every attempted write.
type scriptedSender struct {
	script []sendResult
	calls  [][]byte
}

func (s *scriptedSender) Send(p []byte) (int, error) {
	s.calls = append(s.calls, append([]byte(nil), p...))
	if len(s.script) > 0 {
		r := s.script[0]
		s.script = s.script[1:]
		if r.err != nil {
			return 0, r.err
		}
		if r.n >= 0 {
			return r.n, nil
		}
	}
	return len(p), nil
}

func TestSendFrameChunksDatagramPayload(t *testing.T) {
	conn := &scriptedSender{}
	sess := NewSession(conn, Config{Mode: Datagram})

	data := make([]byte, 614400)
	out, err := sess.SendFrame(7, data, 640, 480, pixel.YUYV)
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeSent {
		t.Fatalf("outcome %d, want sent", out)
	}

	// one header write plus ceil(614400/1400) = 439 chunk writes
	if got := len(conn.calls); got != 1+439 {
		t.Fatalf("%d writes, want %d", got, 1+439)
	}
	if len(conn.calls[0]) != HeaderSize {
		t.Errorf("first write %d bytes, want header of %d", len(conn.calls[0]), HeaderSize)
	}
	for i := 1; i < len(conn.calls)-1; i++ {
		if len(conn.calls[i]) != DefaultChunkSize {
			t.Fatalf("chunk %d is %d bytes, want %d", i, len(conn.calls[i]), DefaultChunkSize)
		}
	}
	if last := len(conn.calls[len(conn.calls)-1]); last != 614400-438*DefaultChunkSize {
		t.Errorf("final chunk %d bytes, want %d", last, 614400-438*DefaultChunkSize)
	}

	st := sess.Stats()
	if st.FramesSent != 1 || st.FramesSkipped != 0 {
		t.Errorf("stats %+v", st)
	}
	if want := uint64(HeaderSize + len(data)); st.BytesSent != want {
		t.Errorf("bytes sent %d, want %d", st.BytesSent, want)
	}
}

func TestSendFrameSkipsWhenHeaderWouldBlock(t *testing.T) {
	conn := &scriptedSender{script: []sendResult{{err: unix.EAGAIN}}}
	sess := NewSession(conn, Config{Mode: Datagram})

	data := make([]byte, 4096)
	out, err := sess.SendFrame(1, data, 64, 32, pixel.RGBA)
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeSkipped {
		t.Fatalf("outcome %d, want skipped", out)
	}
	if len(conn.calls) != 1 {
		t.Fatalf("%d writes after a skipped header, want 1", len(conn.calls))
	}
	st := sess.Stats()
	if st.FramesSkipped != 1 || st.FramesSent != 0 || st.BytesSent != 0 {
		t.Errorf("stats %+v", st)
	}

	// the session stays usable for the next frame
	out, err = sess.SendFrame(2, data, 64, 32, pixel.RGBA)
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeSent {
		t.Fatalf("second frame outcome %d, want sent", out)
	}
}

func TestSendFrameRetriesPayloadBackpressure(t *testing.T) {
	conn := &scriptedSender{script: []sendResult{
		{n: -1},            // header
		{err: unix.EAGAIN}, // first chunk blocked once
	}}
	sess := NewSession(conn, Config{Mode: Datagram, RetryWait: time.Microsecond})

	data := make([]byte, 3000)
	for i := range data {
		data[i] = byte(i)
	}
	out, err := sess.SendFrame(3, data, 50, 30, pixel.YUYV)
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeSent {
		t.Fatalf("outcome %d, want sent", out)
	}

	// header, blocked attempt, then chunks of 1400, 1400, 200
	if len(conn.calls) != 5 {
		t.Fatalf("%d writes, want 5", len(conn.calls))
	}
	if !bytes.Equal(conn.calls[1], conn.calls[2]) {
		t.Error("retry sent different bytes than the blocked attempt")
	}
	if st := sess.Stats(); st.FramesSkipped != 0 {
		t.Errorf("payload backpressure must not count as a skip: %+v", st)
	}
}

func TestSendFrameStreamResumesPartialWrites(t *testing.T) {
	conn := &scriptedSender{script: []sendResult{
		{n: -1}, // header
		{n: 1000},
		{n: 1000},
	}}
	sess := NewSession(conn, Config{Mode: Stream, RetryWait: time.Microsecond})

	data := make([]byte, 2500)
	for i := range data {
		data[i] = byte(i)
	}
	out, err := sess.SendFrame(4, data, 25, 25, pixel.UYVY)
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeSent {
		t.Fatalf("outcome %d, want sent", out)
	}

	// header plus payload writes resuming at 0, 1000, 2000
	if len(conn.calls) != 4 {
		t.Fatalf("%d writes, want 4", len(conn.calls))
	}
	if conn.calls[2][0] != data[1000] || conn.calls[3][0] != data[2000] {
		t.Error("resumed writes did not continue at the partial-write offsets")
	}
	if want := uint64(HeaderSize + len(data)); sess.Stats().BytesSent != want {
		t.Errorf("bytes sent %d, want %d", sess.Stats().BytesSent, want)
	}
}

func TestSendFrameFatalPayloadError(t *testing.T) {
	conn := &scriptedSender{script: []sendResult{
		{n: -1},
		{err: unix.ECONNREFUSED},
	}}
	sess := NewSession(conn, Config{Mode: Datagram})

	_, err := sess.SendFrame(5, make([]byte, 100), 10, 5, pixel.RGBA)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if st := sess.Stats(); st.FramesSent != 0 {
		t.Errorf("frame counted despite failure: %+v", st)
	}
}

func TestSendFrameFatalHeaderError(t *testing.T) {
	conn := &scriptedSender{script: []sendResult{{err: unix.EPIPE}}}
	sess := NewSession(conn, Config{Mode: Stream})

	if _, err := sess.SendFrame(6, make([]byte, 100), 10, 5, pixel.RGBA); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestSendFrameShortHeaderIsFatal(t *testing.T) {
	conn := &scriptedSender{script: []sendResult{{n: 10}}}
	sess := NewSession(conn, Config{Mode: Stream})

	if _, err := sess.SendFrame(8, make([]byte, 100), 10, 5, pixel.RGBA); err == nil {
		t.Fatal("a partial header write must be fatal, the stream is desynced")
	}
}
