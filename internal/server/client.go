package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/interlinked/interlinked/internal/types"
	"github.com/teris-io/shortid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Client is one live WebSocket connection. The user identity comes from the
// HTTP session at upgrade time, but the connection only joins the registry
// once the client sends an authenticate frame naming the same user.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	log       *log.Logger
	sessionId string
	user      types.User
	// registered is only touched on the read goroutine
	registered bool
	send       chan *ServerFrame
	cursorsMu  sync.Mutex
	cursors    map[int]*ReadCursor
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, hub *Hub, l *log.Logger) *Client {
	sid, err := shortid.Generate()
	if err != nil {
		sid = "-"
	}

	return &Client{
		conn:      conn,
		hub:       hub,
		log:       l,
		sessionId: sid,
		user:      user,
		send:      make(chan *ServerFrame, 256),
		cursors:   make(map[int]*ReadCursor),
		stop:      make(chan struct{}),
	}
}

func (c *Client) Write() {
	pingTicker := time.NewTicker(pingInterval)
	flushTicker := time.NewTicker(readFlushInterval)
	defer func() {
		pingTicker.Stop()
		flushTicker.Stop()
		c.conn.Close()
		c.log.Printf("session %s: write exiting", c.sessionId)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(frame)
			if err != nil {
				c.log.Println("failed to serialize frame:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-flushTicker.C:
			c.flushCursors()
		case <-pingTicker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("session %s: read exiting", c.sessionId)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// malformed frames are dropped, the connection stays open
			c.log.Printf("session %s: error parsing frame: %v", c.sessionId, err)
			continue
		}

		if frame.Type != FrameAuthenticate && !c.registered {
			c.log.Printf("session %s: %q frame before authenticate, dropping", c.sessionId, frame.Type)
			continue
		}

		switch frame.Type {
		case FrameAuthenticate:
			c.handleAuthenticate(&frame)
		case FrameMessageSend:
			c.hub.HandleChatMessage(c, &frame)
		case FrameTypingStart:
			c.hub.HandleTyping(c, &frame, true)
		case FrameTypingStop:
			c.hub.HandleTyping(c, &frame, false)
		case FrameReadStatusUpdate:
			c.hub.HandleReadStatus(c, &frame)
		default:
			c.log.Printf("session %s: unknown frame type %q", c.sessionId, frame.Type)
		}
	}
}

func (c *Client) handleAuthenticate(frame *ClientFrame) {
	if frame.UserId != c.user.Id {
		c.log.Printf("session %s: authenticate user %d does not match session user %d",
			c.sessionId, frame.UserId, c.user.Id)
		return
	}

	if c.registered {
		return
	}

	c.registered = true
	c.hub.Register(c)
}

// cursor returns the read cursor for a conversation, creating it on first
// use. Broadcasts from the cursor relay through the hub.
func (c *Client) cursor(conversationId int) *ReadCursor {
	c.cursorsMu.Lock()
	defer c.cursorsMu.Unlock()

	cur, ok := c.cursors[conversationId]
	if !ok {
		cur = NewReadCursor(conversationId, readBroadcastThrottle, func(convId int, messageId int64) {
			c.hub.relayReadStatus(c, convId, messageId)
		})
		c.cursors[conversationId] = cur
	}
	return cur
}

// flushCursors persists every cursor that advanced since its last flush.
func (c *Client) flushCursors() {
	c.cursorsMu.Lock()
	cursors := make([]*ReadCursor, 0, len(c.cursors))
	for _, cur := range c.cursors {
		cursors = append(cursors, cur)
	}
	c.cursorsMu.Unlock()

	for _, cur := range cursors {
		messageId, ok := cur.Flush()
		if !ok {
			continue
		}

		if err := c.hub.db.UpsertReadStatus(cur.ConversationId(), c.user.Id, messageId); err != nil {
			c.log.Printf("session %s: flush read status: %v", c.sessionId, err)
		}
	}
}

func (c *Client) queueFrame(frame *ServerFrame) bool {
	select {
	case c.send <- frame:
	default:
		c.log.Printf("session %s: send channel full, dropping frame", c.sessionId)
		return false
	}

	return true
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.flushCursors()

	c.cursorsMu.Lock()
	for _, cur := range c.cursors {
		cur.Stop()
	}
	c.cursorsMu.Unlock()

	if c.registered {
		c.hub.Unregister(c)
	}
	c.stopClient()
}
