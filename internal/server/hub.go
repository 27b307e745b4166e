package server

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/interlinked/interlinked/internal/database"
	"github.com/interlinked/interlinked/internal/stats"
	"github.com/interlinked/interlinked/internal/types"
)

const (
	StatActiveConnections  = "NumActiveConnections"
	StatMessagesDelivered  = "NumMessagesDelivered"
	StatPresenceBroadcasts = "NumPresenceBroadcasts"
	StatTypingEvents       = "NumTypingEvents"
	StatReadReceipts       = "NumReadReceipts"
)

// Hub owns the registry of live connections, keyed by user id. At most one
// connection per user is tracked; a later authenticate for the same user
// silently replaces the entry. The superseded socket is not closed here, the
// pong deadline reaps it.
type Hub struct {
	log   *log.Logger
	db    database.Repository
	stats stats.StatsProvider

	clientsLock sync.RWMutex
	clients     map[int]*Client
}

func NewHub(logger *log.Logger, db database.Repository, su stats.StatsProvider) (*Hub, error) {
	h := &Hub{
		log:     logger,
		db:      db,
		stats:   su,
		clients: make(map[int]*Client),
	}

	for _, name := range []string{
		StatActiveConnections,
		StatMessagesDelivered,
		StatPresenceBroadcasts,
		StatTypingEvents,
		StatReadReceipts,
	} {
		su.RegisterMetric(name)
	}

	return h, nil
}

// Register adds an authenticated connection to the registry, announces the
// user to their connected friends and sends the new connection a one-time
// snapshot of every friend's current status.
func (h *Hub) Register(c *Client) {
	h.clientsLock.Lock()
	old := h.clients[c.user.Id]
	h.clients[c.user.Id] = c
	h.clientsLock.Unlock()

	if old != nil {
		h.log.Printf("session %s replaces session %s for user %d", c.sessionId, old.sessionId, c.user.Id)
	} else {
		h.stats.Incr(StatActiveConnections)
	}

	h.log.Printf("registered connection for user %q (session %s)", c.user.Username, c.sessionId)
	h.broadcastStatus(c, StatusOnline)
	h.sendFriendSnapshot(c)
}

// Unregister removes a connection if it still owns the registry entry. A
// connection replaced by a newer one must not evict its successor when it
// finally closes.
func (h *Hub) Unregister(c *Client) {
	h.clientsLock.Lock()
	cur, ok := h.clients[c.user.Id]
	if ok && cur == c {
		delete(h.clients, c.user.Id)
	}
	h.clientsLock.Unlock()

	if !ok || cur != c {
		return
	}

	h.stats.Decr(StatActiveConnections)
	h.log.Printf("removed connection for user %q (session %s)", c.user.Username, c.sessionId)
	h.broadcastStatus(c, StatusOffline)
}

func (h *Hub) Lookup(userId int) (*Client, bool) {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()

	c, ok := h.clients[userId]
	return c, ok
}

func (h *Hub) IsOnline(userId int) bool {
	_, ok := h.Lookup(userId)
	return ok
}

func (h *Hub) numClients() int {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()
	return len(h.clients)
}

// broadcastStatus pushes an online/offline event to every currently
// connected friend of the client's user. A failed friend lookup aborts this
// broadcast only.
func (h *Hub) broadcastStatus(c *Client, status string) {
	friends, err := h.db.GetFriends(c.user.Id)
	if err != nil {
		h.log.Println("GetFriends:", err)
		return
	}

	frame := StatusUpdateFrame(c.user, status)
	for _, friend := range friends {
		if friendClient, ok := h.Lookup(friend.Id); ok {
			friendClient.queueFrame(frame)
		}
	}

	h.stats.Incr(StatPresenceBroadcasts)
}

// sendFriendSnapshot sends the client one status frame per friend. This is a
// one-time snapshot, not a subscription; later changes arrive as their own
// broadcasts.
func (h *Hub) sendFriendSnapshot(c *Client) {
	friends, err := h.db.GetFriends(c.user.Id)
	if err != nil {
		h.log.Println("GetFriends:", err)
		return
	}

	for _, friend := range friends {
		status := StatusOffline
		if h.IsOnline(friend.Id) {
			status = StatusOnline
		}

		c.queueFrame(StatusUpdateFrame(friendUser(friend), status))
	}
}

// HandleChatMessage persists an inbound chat message and fans it out to
// every connected conversation member, the sender included. Validation and
// authorization failures drop the frame silently.
func (h *Hub) HandleChatMessage(c *Client, frame *ClientFrame) {
	body := strings.TrimSpace(frame.Message)
	if frame.ConversationId == 0 || body == "" {
		c.log.Printf("session %s: invalid message_send frame, dropping", c.sessionId)
		return
	}

	membership, err := h.db.CheckMembership(frame.ConversationId, c.user.Id)
	if err != nil {
		h.log.Println("CheckMembership:", err)
		return
	}
	if !membership.Exists || !membership.IsMember {
		c.log.Printf("session %s: user %d not a member of conversation %d, dropping message",
			c.sessionId, c.user.Id, frame.ConversationId)
		return
	}

	messageId, err := h.db.CreateMessage(database.CreateMessageParams{
		ConversationId: frame.ConversationId,
		SenderId:       c.user.Id,
		Body:           body,
		Attachment:     frame.Attachment,
		ReplyTo:        frame.Reply,
	})
	if err != nil {
		h.log.Println("CreateMessage:", err)
		return
	}

	msg, err := h.db.GetMessage(messageId)
	if err != nil {
		h.log.Println("GetMessage:", err)
		return
	}

	// sending implies having read up to your own message
	if err := h.db.UpsertReadStatus(frame.ConversationId, c.user.Id, messageId); err != nil {
		h.log.Println("UpsertReadStatus:", err)
	}
	c.cursor(frame.ConversationId).Update(messageId, false)

	h.DeliverMessage(membership.MemberIds, MessagePayload(msg))
}

// DeliverMessage fans a message_received event out to every connected
// member. Fire and forget: closed or missing connections are skipped.
func (h *Hub) DeliverMessage(memberIds []int, msg *types.Message) {
	frame := MessageReceivedFrame(msg)
	for _, memberId := range memberIds {
		if member, ok := h.Lookup(memberId); ok {
			member.queueFrame(frame)
		}
	}

	h.stats.Incr(StatMessagesDelivered)
}

// HandleTyping relays a typing start/stop to the other conversation
// members. Nothing is stored; the relay is stateless.
func (h *Hub) HandleTyping(c *Client, frame *ClientFrame, typing bool) {
	if frame.ConversationId == 0 {
		return
	}

	membership, err := h.db.CheckMembership(frame.ConversationId, c.user.Id)
	if err != nil {
		h.log.Println("CheckMembership:", err)
		return
	}
	if !membership.Exists || !membership.IsMember {
		return
	}

	out := TypingFrame(frame.ConversationId, c.user, typing)
	for _, memberId := range membership.MemberIds {
		if memberId == c.user.Id {
			continue
		}
		if member, ok := h.Lookup(memberId); ok {
			member.queueFrame(out)
		}
	}

	h.stats.Incr(StatTypingEvents)
}

// HandleReadStatus advances the client's live read cursor for the
// conversation. The cursor takes care of the monotonic-forward check and the
// throttled relay to other members.
func (h *Hub) HandleReadStatus(c *Client, frame *ClientFrame) {
	if frame.ConversationId == 0 || frame.MessageId == 0 {
		return
	}

	membership, err := h.db.CheckMembership(frame.ConversationId, c.user.Id)
	if err != nil {
		h.log.Println("CheckMembership:", err)
		return
	}
	if !membership.Exists || !membership.IsMember {
		return
	}

	c.cursor(frame.ConversationId).Update(frame.MessageId, true)
}

// relayReadStatus is the cursor broadcast target: it pushes the position to
// every other connected member of the conversation.
func (h *Hub) relayReadStatus(c *Client, conversationId int, messageId int64) {
	membership, err := h.db.CheckMembership(conversationId, c.user.Id)
	if err != nil {
		h.log.Println("CheckMembership:", err)
		return
	}
	if !membership.Exists || !membership.IsMember {
		return
	}

	frame := ReadStatusFrame(conversationId, messageId, c.user)
	for _, memberId := range membership.MemberIds {
		if memberId == c.user.Id {
			continue
		}
		if member, ok := h.Lookup(memberId); ok {
			member.queueFrame(frame)
		}
	}

	h.stats.Incr(StatReadReceipts)
}

// Shutdown stops every live connection and waits for the registry to drain.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Println("shutting down connection hub")

	h.clientsLock.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsLock.RUnlock()

	for _, c := range clients {
		c.stopClient()
	}

	for h.numClients() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	return nil
}

func friendUser(u database.User) types.User {
	return types.User{
		Id:       u.Id,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}
