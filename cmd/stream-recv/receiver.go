package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/vidf"
)

const recvBufferSize = 8 << 20

// Frame is one reassembled video frame with its wire header.
type Frame struct {
	Header vidf.Header
	Data   []byte
}

// Totals is a snapshot of the receive counters.
type Totals struct {
	Frames         uint64
	Bytes          uint64
	Dropped        uint64
	InvalidHeaders uint64
	Partial        uint64
}

// Receiver listens for a frame stream on one port and reassembles frames
// from it. Datagram transport may lose or reorder chunks; a frame that
// cannot be completed before the next header arrives is abandoned.
type Receiver struct {
	Port    int
	TCP     bool
	Timeout time.Duration

	// OnFrame is called from the receive goroutine with each completed
	// frame. The data is the callback's to keep.
	OnFrame func(Frame)

	frames  uint64
	bytes   uint64
	dropped uint64
	invalid uint64
	partial uint64

	lastSeq int64

	// Datagram reassembly state, touched only by the receive goroutine.
	asmHdr     vidf.Header
	asm        []byte
	assembling bool
}

// Totals returns a consistent snapshot of the counters.
func (r *Receiver) Totals() Totals {
	return Totals{
		Frames:         atomic.LoadUint64(&r.frames),
		Bytes:          atomic.LoadUint64(&r.bytes),
		Dropped:        atomic.LoadUint64(&r.dropped),
		InvalidHeaders: atomic.LoadUint64(&r.invalid),
		Partial:        atomic.LoadUint64(&r.partial),
	}
}

// Run listens and receives until the context is canceled.
func (r *Receiver) Run(ctx context.Context) error {
	if r.Timeout == 0 {
		r.Timeout = time.Second
	}
	r.lastSeq = -1

	if r.TCP {
		return r.runTCP(ctx)
	}
	return r.runUDP(ctx)
}

func (r *Receiver) runUDP(ctx context.Context) error {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", fmt.Sprintf(":%d", r.Port))
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	defer pc.Close()

	if uc, ok := pc.(*net.UDPConn); ok {
		if err := uc.SetReadBuffer(recvBufferSize); err != nil {
			log.Warn("set receive buffer: %v", err)
		}
	}
	log.Info("listening on udp port %d", r.Port)

	buf := make([]byte, 65536)
	for {
		if ctx.Err() != nil {
			return nil
		}
		pc.SetReadDeadline(time.Now().Add(r.Timeout))
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// The sender went quiet mid-frame.
				r.abandon()
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read")
		}
		atomic.AddUint64(&r.bytes, uint64(n))
		r.feedPacket(buf[:n])
	}
}

// feedPacket advances datagram reassembly by one packet. A packet that
// parses as a header starts a new frame, abandoning any half-built one;
// anything else extends the frame in progress.
func (r *Receiver) feedPacket(pkt []byte) {
	if h, err := vidf.ParseHeader(pkt); err == nil {
		r.abandon()
		r.noteSeq(h.Seq)
		r.asmHdr = h
		r.asm = r.asm[:0]
		if len(pkt) > vidf.HeaderSize {
			r.asm = append(r.asm, pkt[vidf.HeaderSize:]...)
		}
		r.assembling = true
	} else if r.assembling {
		r.asm = append(r.asm, pkt...)
	} else {
		// A chunk with no frame in progress, most likely the tail of a
		// frame whose header datagram was lost.
		atomic.AddUint64(&r.invalid, 1)
	}

	if r.assembling && uint32(len(r.asm)) >= r.asmHdr.PayloadLen {
		r.complete(r.asmHdr, r.asm[:r.asmHdr.PayloadLen])
		r.assembling = false
	}
}

// abandon gives up on the frame being assembled, if any.
func (r *Receiver) abandon() {
	if !r.assembling {
		return
	}
	atomic.AddUint64(&r.partial, 1)
	log.Debug("abandoned frame %d at %d of %d bytes",
		r.asmHdr.Seq, len(r.asm), r.asmHdr.PayloadLen)
	r.assembling = false
}

func (r *Receiver) runTCP(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", r.Port))
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Info("listening on tcp port %d", r.Port)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accept")
		}
		log.Info("connection from %s", conn.RemoteAddr())
		r.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		log.Info("waiting for the next connection")
	}
}

// serve consumes one TCP stream until the sender closes it.
func (r *Receiver) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	br := bufio.NewReaderSize(conn, 1<<16)
	hdrBuf := make([]byte, vidf.HeaderSize)
	var payload []byte

	for {
		hdr, err := r.readHeader(br, hdrBuf)
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				log.Warn("header read: %v", err)
			}
			return
		}
		r.noteSeq(hdr.Seq)

		if cap(payload) < int(hdr.PayloadLen) {
			payload = make([]byte, hdr.PayloadLen)
		}
		payload = payload[:hdr.PayloadLen]
		if _, err := io.ReadFull(br, payload); err != nil {
			atomic.AddUint64(&r.partial, 1)
			return
		}

		atomic.AddUint64(&r.bytes, uint64(vidf.HeaderSize)+uint64(hdr.PayloadLen))
		r.complete(hdr, payload)
	}
}

// readHeader reads the next frame header. On a magic mismatch it slides
// the stream one byte at a time until a header lines up again; the sender
// never splits headers, so this only happens when joining mid-frame.
func (r *Receiver) readHeader(br *bufio.Reader, buf []byte) (vidf.Header, error) {
	if _, err := io.ReadFull(br, buf); err != nil {
		return vidf.Header{}, err
	}
	hdr, err := vidf.ParseHeader(buf)
	if err == nil {
		return hdr, nil
	}

	atomic.AddUint64(&r.invalid, 1)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return vidf.Header{}, err
		}
		copy(buf, buf[1:])
		buf[len(buf)-1] = b
		if hdr, err := vidf.ParseHeader(buf); err == nil {
			return hdr, nil
		}
	}
}

// noteSeq tracks sequence numbers to count frames the sender emitted but
// this end never completed.
func (r *Receiver) noteSeq(seq uint32) {
	if r.lastSeq >= 0 {
		if expected := uint32(r.lastSeq) + 1; seq > expected {
			atomic.AddUint64(&r.dropped, uint64(seq-expected))
		}
	}
	r.lastSeq = int64(seq)
}

func (r *Receiver) complete(hdr vidf.Header, payload []byte) {
	atomic.AddUint64(&r.frames, 1)
	if r.OnFrame != nil {
		data := make([]byte, len(payload))
		copy(data, payload)
		r.OnFrame(Frame{Header: hdr, Data: data})
	}
}
