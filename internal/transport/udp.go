package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

const (
	maxDatagram  = 1024
	pollInterval = 250 * time.Millisecond
)

// Listener receives bus datagrams. Receive blocks until a datagram arrives or
// ctx is done; the short read deadline only exists so cancellation is seen.
type Listener struct {
	conn *net.UDPConn
	buf  []byte
}

func Listen(addr string) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", addr, err)
	}
	return &Listener{conn: conn, buf: make([]byte, maxDatagram)}, nil
}

func (l *Listener) Receive(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return nil, err
		}

		n, _, err := l.conn.ReadFromUDP(l.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return nil, err
		}

		out := make([]byte, n)
		copy(out, l.buf[:n])
		return out, nil
	}
}

func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

func (l *Listener) Close() error {
	return l.conn.Close()
}

// Sender writes datagrams to a fixed target.
type Sender struct {
	conn net.Conn
}

func Dial(target string) (*Sender, error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	return &Sender{conn: conn}, nil
}

func (s *Sender) Send(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

func (s *Sender) Close() error {
	return s.conn.Close()
}
