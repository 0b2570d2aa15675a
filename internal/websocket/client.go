package websocket

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rejdeboer/collab-server/internal/abuse"
	"github.com/rejdeboer/collab-server/internal/sync"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client is one websocket connection. ReadPump and WritePump are its only
// users of Conn; Send is closed by the room when the session ends.
type Client struct {
	Context
	Room *Room
	Conn *websocket.Conn
	Send chan []byte

	guard *abuse.Guard
	state atomic.Int32
}

func NewClient(ctx Context, conn *websocket.Conn, guard *abuse.Guard, sendBuffer int) *Client {
	return &Client{
		Context: ctx,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		guard:   guard,
	}
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(state State) {
	c.state.Store(int32(state))
}

// ReadPump runs the abuse guard over every inbound frame and forwards the
// decoded messages to the room. It returns when the connection fails or the
// guard ends the session.
func (c *Client) ReadPump(maxMessageBytes int) {
	defer c.Room.leave(c)

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		data, err := c.readFrame(maxMessageBytes)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.Log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		if err := c.guard.CheckMessage(len(data)); err != nil {
			c.Room.rejectMessage(c, err.(*abuse.Violation))
			return
		}

		msg, ok := sync.Decode(data)
		if !ok {
			continue
		}

		if msg.Type == sync.MsgUpdate && msg.HasContent {
			if err := c.guard.AdmitUpdate(); err != nil {
				c.Room.rejectMessage(c, err.(*abuse.Violation))
				return
			}
			if err := c.guard.CheckContent(msg.Content); err != nil {
				c.Room.rejectMessage(c, err.(*abuse.Violation))
				continue
			}
		}

		c.Room.dispatch(c, msg)
	}
}

// readFrame reads at most limit+1 bytes of the next message, enough to tell
// an oversized frame apart without buffering all of it.
func (c *Client) readFrame(limit int) ([]byte, error) {
	_, r, err := c.Conn.NextReader()
	if err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(r, int64(limit)+1))
}

// WritePump drains Send onto the connection. A closed Send ends the session
// with a close frame that carries no status code.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Log.Debug().Err(err).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
