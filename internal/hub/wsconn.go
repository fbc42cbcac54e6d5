package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pullsense/pullsense/pkg/idgen"
)

// writeTimeout bounds how long a slow client can stall a broadcast.
const writeTimeout = 10 * time.Second

// WSConn adapts a gorilla websocket to the Conn interface. The write
// mutex serializes broadcast writes with echo replies.
type WSConn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

// NewWSConn wraps a websocket connection with a generated client ID.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{id: idgen.NewClientID(), ws: ws}
}

func (c *WSConn) ID() string {
	return c.id
}

func (c *WSConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *WSConn) Close() error {
	return c.ws.Close()
}

// ReadLoop echoes inbound text frames back to the client and unregisters
// the connection when the client goes away. It blocks until the
// connection errors or closes.
func (c *WSConn) ReadLoop(h *Hub) {
	defer func() {
		h.Unregister(c)
		_ = c.Close()
	}()
	for {
		msgType, msg, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := c.Send(append([]byte("Echo: "), msg...)); err != nil {
			return
		}
	}
}
