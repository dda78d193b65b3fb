package main

import (
	"context"
	"image/jpeg"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hwx-sodo/petalinux-uvc-app/internal/pixel"
)

// Preview serves the newest frame over HTTP so a laptop can sanity-check
// the stream without a custom player: GET /frame returns the raw bytes,
// /frame.jpg a rendered image, and /ws pushes frame metadata as JSON
// after every completed frame.
type Preview struct {
	addr     string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	latest  Frame
	have    bool
	viewers map[*websocket.Conn]chan frameNote
}

// frameNote is the JSON message pushed to websocket viewers.
type frameNote struct {
	Seq    uint32 `json:"seq"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Format string `json:"format"`
	Bytes  uint32 `json:"bytes"`
	Sent   int64  `json:"sent_unix_us"`
}

func NewPreview(addr string) *Preview {
	return &Preview{
		addr: addr,
		upgrader: websocket.Upgrader{
			// The preview is a bench tool; any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		viewers: make(map[*websocket.Conn]chan frameNote),
	}
}

// Publish replaces the newest frame and notifies viewers. A viewer that
// cannot keep up misses notes rather than stalling the receive path.
func (p *Preview) Publish(f Frame) {
	note := frameNote{
		Seq:    f.Header.Seq,
		Width:  f.Header.Width,
		Height: f.Header.Height,
		Format: f.Header.Format.String(),
		Bytes:  f.Header.PayloadLen,
		Sent:   f.Header.Timestamp.UnixNano() / 1000,
	}

	p.mu.Lock()
	p.latest = f
	p.have = true
	for _, ch := range p.viewers {
		select {
		case ch <- note:
		default:
		}
	}
	p.mu.Unlock()
}

// ListenAndServe runs the preview server until the context is canceled.
func (p *Preview) ListenAndServe(ctx context.Context) {
	router := http.NewServeMux()
	router.HandleFunc("/frame", p.handleFrame)
	router.HandleFunc("/frame.jpg", p.handleFrameJPEG)
	router.HandleFunc("/ws", p.handleWebsocket)

	server := &http.Server{Addr: p.addr, Handler: router}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	log.Info("preview on http://%s", p.addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("preview server: %v", err)
	}
}

func (p *Preview) handleFrame(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	f, ok := p.latest, p.have
	p.mu.Unlock()

	if !ok {
		http.Error(w, "no frame received yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(uint64(f.Header.Seq), 10))
	w.Header().Set("X-Frame-Width", strconv.Itoa(int(f.Header.Width)))
	w.Header().Set("X-Frame-Height", strconv.Itoa(int(f.Header.Height)))
	w.Header().Set("X-Frame-Format", f.Header.Format.String())
	w.Write(f.Data)
}

func (p *Preview) handleFrameJPEG(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	f, ok := p.latest, p.have
	p.mu.Unlock()

	if !ok {
		http.Error(w, "no frame received yet", http.StatusServiceUnavailable)
		return
	}

	img := pixel.ToImage(f.Data, int(f.Header.Width), int(f.Header.Height), f.Header.Format)
	w.Header().Set("Content-Type", "image/jpeg")
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 85}); err != nil {
		log.Warn("encode frame %d: %v", f.Header.Seq, err)
	}
}

func (p *Preview) handleWebsocket(w http.ResponseWriter, req *http.Request) {
	ws, err := p.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}

	notes := make(chan frameNote, 8)
	p.mu.Lock()
	p.viewers[ws] = notes
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.viewers, ws)
		p.mu.Unlock()
		ws.Close()
	}()

	// Drain the read side so pings and the close handshake are processed.
	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readerGone:
			return
		case note := <-notes:
			if err := ws.WriteJSON(note); err != nil {
				return
			}
		}
	}
}
