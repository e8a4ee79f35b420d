// Package transport provides command-framed connections to INDI servers:
// the native TCP stream and a WebSocket bridge carrying one command per text
// frame.
package transport

import (
	"context"
	"io"
	"net"

	"indiclient/pkg/indi"
)

// DefaultPort is the port INDI servers conventionally listen on.
const DefaultPort = "7624"

// StreamConn frames commands over a byte stream, the protocol's native
// transport.
type StreamConn struct {
	rwc io.ReadWriteCloser
	dec *indi.Decoder
	enc *indi.Encoder
}

// NewStreamConn wraps an established byte stream.
func NewStreamConn(rwc io.ReadWriteCloser) *StreamConn {
	return &StreamConn{
		rwc: rwc,
		dec: indi.NewDecoder(rwc),
		enc: indi.NewEncoder(rwc),
	}
}

// DialTCP connects to an INDI server. An address without a port gets the
// default one.
func DialTCP(ctx context.Context, addr string) (*StreamConn, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewStreamConn(conn), nil
}

// Read returns the next command from the stream.
func (c *StreamConn) Read() (indi.Command, error) {
	return c.dec.Next()
}

// Write sends one command.
func (c *StreamConn) Write(cmd indi.Command) error {
	return c.enc.Write(cmd)
}

// Close shuts the stream down. TCP connections get a half-close first so the
// peer sees a clean end of stream.
func (c *StreamConn) Close() error {
	if tcp, ok := c.rwc.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	return c.rwc.Close()
}
