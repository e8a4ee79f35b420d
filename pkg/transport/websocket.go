package transport

import (
	"context"
	"io"

	"github.com/gorilla/websocket"

	"indiclient/pkg/indi"
)

// WebSocketConn frames one command per text message, for servers reachable
// through a WebSocket bridge rather than a raw TCP stream.
type WebSocketConn struct {
	conn *websocket.Conn
}

// NewWebSocketConn wraps an established WebSocket connection.
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{conn: conn}
}

// DialWebSocket connects to a WebSocket INDI bridge at url
// (e.g. ws://host:8080/indi).
func DialWebSocket(ctx context.Context, url string) (*WebSocketConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewWebSocketConn(conn), nil
}

// Read returns the command carried by the next message.
func (c *WebSocketConn) Read() (indi.Command, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return indi.ParseCommand(data)
}

// Write sends one command as a text message.
func (c *WebSocketConn) Write(cmd indi.Command) error {
	data, err := indi.MarshalCommand(cmd)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close announces a normal closure and drops the connection.
func (c *WebSocketConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
	return c.conn.Close()
}
