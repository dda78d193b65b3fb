package vidf

import (
	"net"
	"strconv"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
	errors "golang.org/x/xerrors"
)

// sendBufferSize asks the kernel for enough socket buffer to absorb a few
// full frames before backpressure reaches the capture loop.
const sendBufferSize = 4 << 20

// Transport is a connected socket prepared for the session's non-blocking
// writes.
type Transport struct {
	conn net.Conn
	raw  syscall.RawConn
}

// TransportOptions carries optional socket tuning.
type TransportOptions struct {
	// TOS marks outgoing IPv4 packets with the given type-of-service
	// byte. Zero leaves the system default.
	TOS int
}

// Dial connects to host:port in the given mode and applies the socket
// options the streaming path relies on: a large send buffer and, in stream
// mode, TCP_NODELAY.
func Dial(mode Mode, host string, port int, opts TransportOptions) (*Transport, error) {
	network := "udp"
	if mode == Stream {
		network = "tcp"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, errors.Errorf("dial %s %s: %v", network, addr, err)
	}

	sc, ok := conn.(syscall.Conn)
	if !ok {
		conn.Close()
		return nil, errors.New("connection does not expose a raw descriptor")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, errors.Errorf("raw descriptor: %v", err)
	}

	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, sendBufferSize)
		if sockErr != nil {
			return
		}
		if actual, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF); err == nil {
			log.Debug("send buffer %d bytes", actual)
		}
	}); err != nil {
		conn.Close()
		return nil, err
	}
	if sockErr != nil {
		conn.Close()
		return nil, errors.Errorf("set send buffer: %v", sockErr)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, errors.Errorf("disable nagle: %v", err)
		}
	}

	if opts.TOS != 0 {
		if err := ipv4.NewConn(conn).SetTOS(opts.TOS); err != nil {
			log.Warn("tos 0x%02x not applied: %v", opts.TOS, err)
		}
	}

	log.Info("connected to %s over %s", conn.RemoteAddr(), network)
	return &Transport{conn: conn, raw: raw}, nil
}

// Send attempts a single write. The net package keeps its descriptors in
// non-blocking mode, so a full socket buffer surfaces as unix.EAGAIN
// instead of parking the goroutine in the poller.
func (t *Transport) Send(p []byte) (int, error) {
	var (
		n    int
		werr error
	)
	err := t.raw.Write(func(fd uintptr) bool {
		n, werr = unix.Write(int(fd), p)
		return true
	})
	if err != nil {
		return 0, err
	}
	return n, werr
}

// Close releases the socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// RemoteAddr reports the connected peer.
func (t *Transport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
