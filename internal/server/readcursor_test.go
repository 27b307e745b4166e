package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type broadcastRecorder struct {
	mu    sync.Mutex
	calls []int64
}

func (br *broadcastRecorder) record(_ int, messageId int64) {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.calls = append(br.calls, messageId)
}

func (br *broadcastRecorder) snapshot() []int64 {
	br.mu.Lock()
	defer br.mu.Unlock()
	return append([]int64(nil), br.calls...)
}

func TestReadCursor_Update(t *testing.T) {
	rc := NewReadCursor(1, time.Second, nil)

	assert.True(t, rc.Update(5, false), "expected advance to 5 to be accepted")
	assert.Equal(t, int64(5), rc.Current())

	assert.False(t, rc.Update(5, false), "expected equal position to be rejected")
	assert.False(t, rc.Update(3, false), "expected stale position to be rejected")
	assert.Equal(t, int64(5), rc.Current(), "expected rejected updates to leave position unchanged")

	assert.True(t, rc.Update(6, false), "expected forward advance to be accepted")
	assert.Equal(t, int64(6), rc.Current())
}

func TestReadCursor_ThrottleCoalesces(t *testing.T) {
	br := &broadcastRecorder{}
	rc := NewReadCursor(1, 50*time.Millisecond, br.record)
	defer rc.Stop()

	// first update is outside any window and goes out immediately
	rc.Update(1, true)
	assert.Equal(t, []int64{1}, br.snapshot(), "expected first position to broadcast immediately")

	// rapid advances inside the window coalesce into one deferred broadcast
	rc.Update(2, true)
	rc.Update(3, true)
	rc.Update(4, true)

	assert.Eventually(t, func() bool {
		return len(br.snapshot()) == 2
	}, time.Second, 5*time.Millisecond, "expected exactly one deferred broadcast")

	calls := br.snapshot()
	assert.Equal(t, int64(4), calls[1], "expected the deferred broadcast to carry the latest position")

	// nothing else pending
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, br.snapshot(), 2, "expected no further broadcasts")
}

func TestReadCursor_UpdateWithoutSendNeverBroadcasts(t *testing.T) {
	br := &broadcastRecorder{}
	rc := NewReadCursor(1, 10*time.Millisecond, br.record)
	defer rc.Stop()

	rc.Update(1, false)
	rc.Update(2, false)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, br.snapshot(), "expected silent updates not to broadcast")
	assert.Equal(t, int64(2), rc.Current())
}

func TestReadCursor_Flush(t *testing.T) {
	rc := NewReadCursor(1, time.Second, nil)

	_, ok := rc.Flush()
	assert.False(t, ok, "expected a fresh cursor to have nothing to flush")

	rc.Update(3, false)
	messageId, ok := rc.Flush()
	assert.True(t, ok, "expected an advanced cursor to be dirty")
	assert.Equal(t, int64(3), messageId)

	_, ok = rc.Flush()
	assert.False(t, ok, "expected flush to clear the dirty flag")

	rc.Update(4, false)
	messageId, ok = rc.Flush()
	assert.True(t, ok, "expected a later advance to mark the cursor dirty again")
	assert.Equal(t, int64(4), messageId)
}

func TestReadCursor_StopCancelsPendingBroadcast(t *testing.T) {
	br := &broadcastRecorder{}
	rc := NewReadCursor(1, 50*time.Millisecond, br.record)

	rc.Update(1, true)
	rc.Update(2, true) // armed for a deferred broadcast
	rc.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []int64{1}, br.snapshot(), "expected the pending broadcast to be cancelled")
}
