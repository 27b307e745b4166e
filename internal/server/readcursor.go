package server

import (
	"sync"
	"time"
)

const (
	// minimum gap between read_status_update broadcasts per conversation
	readBroadcastThrottle = 2 * time.Second
	// how often dirty cursors are flushed to durable storage
	readFlushInterval = 30 * time.Second
)

// ReadCursor tracks the furthest message one session has read in one
// conversation. Updates only ever move forward; broadcasts are throttled to
// at most one per throttle window, coalescing superseded positions so only
// the latest message id goes out when the window elapses. The dirty flag
// records that the position has advanced past what durable storage holds.
type ReadCursor struct {
	conversationId int
	throttle       time.Duration
	broadcast      func(conversationId int, messageId int64)

	mu       sync.Mutex
	current  int64
	dirty    bool
	lastSent time.Time
	timer    *time.Timer
}

func NewReadCursor(conversationId int, throttle time.Duration, broadcast func(conversationId int, messageId int64)) *ReadCursor {
	return &ReadCursor{
		conversationId: conversationId,
		throttle:       throttle,
		broadcast:      broadcast,
	}
}

func (rc *ReadCursor) ConversationId() int {
	return rc.conversationId
}

func (rc *ReadCursor) Current() int64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.current
}

// Update advances the cursor to messageId. Positions at or behind the
// current one are rejected. When send is true the new position is broadcast,
// subject to the throttle window: an update inside the window arms a single
// timer which fires once with whatever position is current at that point.
func (rc *ReadCursor) Update(messageId int64, send bool) bool {
	rc.mu.Lock()
	if messageId <= rc.current {
		rc.mu.Unlock()
		return false
	}

	rc.current = messageId
	rc.dirty = true

	var sendNow bool
	if send && rc.broadcast != nil {
		now := time.Now()
		if elapsed := now.Sub(rc.lastSent); elapsed >= rc.throttle {
			rc.lastSent = now
			sendNow = true
		} else if rc.timer == nil {
			rc.timer = time.AfterFunc(rc.throttle-elapsed, rc.fire)
		}
	}
	rc.mu.Unlock()

	if sendNow {
		rc.broadcast(rc.conversationId, messageId)
	}
	return true
}

func (rc *ReadCursor) fire() {
	rc.mu.Lock()
	rc.timer = nil
	rc.lastSent = time.Now()
	messageId := rc.current
	rc.mu.Unlock()

	rc.broadcast(rc.conversationId, messageId)
}

// Flush reports the current position if it has advanced since the last
// flush, clearing the dirty flag. The caller persists the returned id.
func (rc *ReadCursor) Flush() (int64, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.dirty {
		return 0, false
	}

	rc.dirty = false
	return rc.current, true
}

// Stop cancels any pending broadcast timer.
func (rc *ReadCursor) Stop() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.timer != nil {
		rc.timer.Stop()
		rc.timer = nil
	}
}
