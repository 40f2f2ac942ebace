package stream

import (
	"time"

	"github.com/gorilla/websocket"
)

// WsConn адаптирует веб-сокет gorilla к интерфейсу Conn.
type WsConn struct {
	conn *websocket.Conn
}

func NewWsConn(conn *websocket.Conn) *WsConn {
	return &WsConn{conn: conn}
}

func (w *WsConn) ReadJSON(v any) error {
	return w.conn.ReadJSON(v)
}

func (w *WsConn) WriteJSON(v any) error {
	return w.conn.WriteJSON(v)
}

func (w *WsConn) WriteBinary(data []byte) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (w *WsConn) SetWriteDeadline(t time.Time) error {
	return w.conn.SetWriteDeadline(t)
}

func (w *WsConn) Close() error {
	return w.conn.Close()
}
