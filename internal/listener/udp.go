// Package listener implements the datagram listener: binds UDP, reads one
// datagram at a time, hands it to the protocol handler, and writes back the
// (at most one) reply, fanning out across a fixed worker pool with panic
// recovery per datagram.
package listener

import (
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/sauerbraten/srpauth/internal/authproto"
	"github.com/sauerbraten/srpauth/internal/logging"
)

// maxDatagramSize is comfortably above the largest well-formed packet this
// protocol defines; anything larger is rejected at the decode stage by
// virtue of never fitting the expected shape. No fragmentation above the
// underlying datagram MTU is attempted.
const maxDatagramSize = 2048

// Listener binds one UDP socket and dispatches every inbound datagram to a
// Handler from a fixed-size worker pool.
type Listener struct {
	conn    *net.UDPConn
	handler *authproto.Handler
	log     logging.Logger
	workers int
}

// Bind opens a UDP socket on port and returns a Listener ready to Serve.
func Bind(port int, handler *authproto.Handler, log logging.Logger, workers int) (*Listener, error) {
	if workers < 1 {
		workers = 1
	}
	laddr, err := net.ResolveUDPAddr("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn, handler: handler, log: log, workers: workers}, nil
}

// Close releases the underlying socket.
func (l *Listener) Close() error { return l.conn.Close() }

type datagram struct {
	buf  []byte
	addr *net.UDPAddr
}

// Serve reads datagrams until ctx is canceled or the socket is closed
// (typically by Close from another goroutine), fanning them out across
// the worker pool. It returns nil on a clean shutdown.
func (l *Listener) Serve(ctx context.Context) error {
	datagrams := make(chan datagram, l.workers*4)
	done := make(chan struct{})

	for i := 0; i < l.workers; i++ {
		go l.worker(ctx, datagrams)
	}

	go func() {
		<-ctx.Done()
		l.conn.Close()
		close(done)
	}()

	for {
		buf := make([]byte, maxDatagramSize)
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-done:
				close(datagrams)
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					close(datagrams)
					return nil
				}
				l.log.Warn(ctx, "read from udp failed", "err", err)
				continue
			}
		}
		select {
		case datagrams <- datagram{buf: buf[:n], addr: addr}:
		default:
			l.log.Warn(ctx, "dropping datagram: worker pool saturated", "addr", addr.String())
		}
	}
}

func (l *Listener) worker(ctx context.Context, datagrams <-chan datagram) {
	for d := range datagrams {
		l.handleOne(ctx, d)
	}
}

// handleOne dispatches a single datagram, recovering from any panic raised
// inside the handler or the stores it calls into. A handler failure must
// never crash the worker; unhandled panics are logged and the offending
// datagram is dropped.
func (l *Listener) handleOne(ctx context.Context, d datagram) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error(ctx, "panic in handler, dropping datagram", "recovered", r, "addr", d.addr.String())
		}
	}()

	reply := l.handler.Handle(ctx, d.addr.IP, d.buf)
	if reply == nil {
		return
	}

	if _, err := l.conn.WriteToUDP(reply, d.addr); err != nil {
		l.log.Warn(ctx, "write to udp failed", "err", err, "addr", d.addr.String())
	}
}
