package main

import (
	"bytes"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
	"github.com/hwx-sodo/petalinux-uvc-app/internal/vidf"
)

func TestPreviewServesLatestFrame(t *testing.T) {
	p := NewPreview(":0")

	rec := httptest.NewRecorder()
	p.handleFrame(rec, httptest.NewRequest("GET", "/frame", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	data := []byte{9, 8, 7, 6}
	p.Publish(Frame{
		Header: vidf.Header{
			Seq:        41,
			Width:      2,
			Height:     1,
			Format:     pixel.YUYV,
			PayloadLen: 4,
			Timestamp:  time.Now(),
		},
		Data: data,
	})

	rec = httptest.NewRecorder()
	p.handleFrame(rec, httptest.NewRequest("GET", "/frame", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, data, rec.Body.Bytes())
	require.Equal(t, "41", rec.Header().Get("X-Frame-Seq"))
	require.Equal(t, "yuyv", rec.Header().Get("X-Frame-Format"))
}

func TestPreviewRendersJPEG(t *testing.T) {
	p := NewPreview(":0")

	p.Publish(Frame{
		Header: vidf.Header{
			Seq:        1,
			Width:      4,
			Height:     2,
			Format:     pixel.YUYV,
			PayloadLen: 16,
			Timestamp:  time.Now(),
		},
		Data: bytes.Repeat([]byte{0x80}, 16),
	})

	rec := httptest.NewRecorder()
	p.handleFrameJPEG(rec, httptest.NewRequest("GET", "/frame.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	img, err := jpeg.Decode(rec.Body)
	require.NoError(t, err)
	require.Equal(t, 4, img.Bounds().Dx())
	require.Equal(t, 2, img.Bounds().Dy())
}

func TestPreviewDropsNotesForSlowViewers(t *testing.T) {
	p := NewPreview(":0")

	// A viewer that never drains its channel must not block Publish.
	notes := make(chan frameNote, 1)
	p.viewers[nil] = notes

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Publish(Frame{Header: vidf.Header{Seq: uint32(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a stalled viewer")
	}
	require.Len(t, notes, 1)
}
