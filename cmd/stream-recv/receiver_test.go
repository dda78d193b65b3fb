package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/vidf"
)

// wireHeader builds a frame header the way the sender lays it out on the
// wire: eight big-endian 32-bit words.
func wireHeader(seq, width, height, format, payloadLen uint32) []byte {
	buf := make([]byte, vidf.HeaderSize)
	binary.BigEndian.PutUint32(buf[0:], vidf.Magic)
	binary.BigEndian.PutUint32(buf[4:], seq)
	binary.BigEndian.PutUint32(buf[8:], width)
	binary.BigEndian.PutUint32(buf[12:], height)
	binary.BigEndian.PutUint32(buf[16:], format)
	binary.BigEndian.PutUint32(buf[20:], payloadLen)
	binary.BigEndian.PutUint32(buf[24:], uint32(time.Now().Unix()))
	binary.BigEndian.PutUint32(buf[28:], 0)
	return buf
}

func newTestReceiver(sink *[]Frame) *Receiver {
	r := &Receiver{lastSeq: -1}
	r.OnFrame = func(f Frame) { *sink = append(*sink, f) }
	return r
}

func TestFeedPacketReassembles(t *testing.T) {
	var got []Frame
	r := newTestReceiver(&got)

	payload := bytes.Repeat([]byte{0x5a}, 3000)
	r.feedPacket(wireHeader(0, 640, 480, 1, 3000))
	r.feedPacket(payload[:1400])
	r.feedPacket(payload[1400:2800])
	r.feedPacket(payload[2800:])

	require.Len(t, got, 1)
	require.EqualValues(t, 0, got[0].Header.Seq)
	require.Equal(t, payload, got[0].Data)
	require.EqualValues(t, 1, r.Totals().Frames)
	require.EqualValues(t, 0, r.Totals().Partial)
}

func TestFeedPacketAbandonsOnNewHeader(t *testing.T) {
	var got []Frame
	r := newTestReceiver(&got)

	payload := bytes.Repeat([]byte{7}, 2000)
	r.feedPacket(wireHeader(0, 640, 480, 1, 2000))
	r.feedPacket(payload[:1400])
	// The last chunk of frame 0 never arrives.
	r.feedPacket(wireHeader(1, 640, 480, 1, 2000))
	r.feedPacket(payload[:1400])
	r.feedPacket(payload[1400:])

	require.Len(t, got, 1)
	require.EqualValues(t, 1, got[0].Header.Seq)
	require.EqualValues(t, 1, r.Totals().Partial)
}

func TestFeedPacketCountsOrphanChunks(t *testing.T) {
	var got []Frame
	r := newTestReceiver(&got)

	r.feedPacket(bytes.Repeat([]byte{3}, 1400))
	r.feedPacket(bytes.Repeat([]byte{4}, 1400))

	require.Empty(t, got)
	require.EqualValues(t, 2, r.Totals().InvalidHeaders)
}

func TestFeedPacketCountsSequenceGaps(t *testing.T) {
	var got []Frame
	r := newTestReceiver(&got)

	payload := []byte{1, 2, 3, 4}
	r.feedPacket(append(wireHeader(0, 2, 1, 1, 4), payload...))
	r.feedPacket(append(wireHeader(5, 2, 1, 1, 4), payload...))

	require.Len(t, got, 2)
	require.EqualValues(t, 4, r.Totals().Dropped)
}

func TestServeReassemblesStream(t *testing.T) {
	var got []Frame
	r := newTestReceiver(&got)

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		r.serve(context.Background(), server)
		close(done)
	}()

	payload := bytes.Repeat([]byte{1, 2, 3, 4}, 256)
	for seq := uint32(0); seq < 2; seq++ {
		_, err := client.Write(wireHeader(seq, 32, 8, 2, uint32(len(payload))))
		require.NoError(t, err)
		_, err = client.Write(payload)
		require.NoError(t, err)
	}
	client.Close()
	<-done

	require.Len(t, got, 2)
	require.EqualValues(t, 0, got[0].Header.Seq)
	require.EqualValues(t, 1, got[1].Header.Seq)
	require.Equal(t, payload, got[0].Data)
	require.EqualValues(t, 2, r.Totals().Frames)
}

func TestServeResyncsMidFrame(t *testing.T) {
	var got []Frame
	r := newTestReceiver(&got)

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		r.serve(context.Background(), server)
		close(done)
	}()

	// Joining a running stream lands mid-frame: stray payload bytes
	// precede the first header.
	payload := bytes.Repeat([]byte{0x11}, 512)
	_, err := client.Write(bytes.Repeat([]byte{0xEE}, 50))
	require.NoError(t, err)
	_, err = client.Write(wireHeader(7, 32, 8, 1, uint32(len(payload))))
	require.NoError(t, err)
	_, err = client.Write(payload)
	require.NoError(t, err)
	client.Close()
	<-done

	require.Len(t, got, 1)
	require.EqualValues(t, 7, got[0].Header.Seq)
	require.Equal(t, payload, got[0].Data)
	require.EqualValues(t, 1, r.Totals().InvalidHeaders)
}

func TestFrameSaverSavesEveryNth(t *testing.T) {
	dir := t.TempDir()
	s := &frameSaver{dir: dir, every: 3}

	for seq := uint32(0); seq < 7; seq++ {
		s.maybe(Frame{
			Header: vidf.Header{Seq: seq, PayloadLen: 4},
			Data:   []byte{1, 2, 3, 4},
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}
