package server

import (
	"context"
	"testing"
	"time"

	"github.com/interlinked/interlinked/internal/database"
	"github.com/interlinked/interlinked/internal/stats"
	"github.com/interlinked/interlinked/internal/testutil"
	"github.com/interlinked/interlinked/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, repo database.Repository) *Hub {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(5)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	hub, err := NewHub(testutil.TestLogger(t), repo, su)
	require.NoError(t, err, "failed to create hub")
	return hub
}

func newTestClient(t *testing.T, hub *Hub, id int, username string) *Client {
	return NewClient(types.User{Id: id, Username: username}, nil, hub, testutil.TestLogger(t))
}

// drainFrames empties a client's send channel without blocking.
func drainFrames(c *Client) []*ServerFrame {
	var frames []*ServerFrame
	for {
		select {
		case f := <-c.send:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	mockRepo := &database.MockRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("GetFriends", 1).Return([]database.User{}, nil).Times(3)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Times(5)
	su.On("Incr", StatActiveConnections).Once()
	su.On("Incr", StatPresenceBroadcasts).Twice()
	su.On("Decr", StatActiveConnections).Once()

	hub, err := NewHub(testutil.TestLogger(t), mockRepo, su)
	require.NoError(t, err)

	c := newTestClient(t, hub, 1, "alice")

	hub.Register(c)
	assert.True(t, hub.IsOnline(1), "expected user to be online after register")
	assert.Equal(t, 1, hub.numClients())

	hub.Unregister(c)
	assert.False(t, hub.IsOnline(1), "expected user to be offline after unregister")
	assert.Equal(t, 0, hub.numClients())
}

func TestHub_RegisterReplacesExistingSession(t *testing.T) {
	mockRepo := &database.MockRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("GetFriends", 1).Return([]database.User{}, nil).Times(4)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Times(5)
	su.On("Incr", StatActiveConnections).Once()
	su.On("Incr", StatPresenceBroadcasts).Twice()

	hub, err := NewHub(testutil.TestLogger(t), mockRepo, su)
	require.NoError(t, err)

	c1 := newTestClient(t, hub, 1, "alice")
	c2 := newTestClient(t, hub, 1, "alice")

	hub.Register(c1)
	hub.Register(c2)

	cur, ok := hub.Lookup(1)
	assert.True(t, ok)
	assert.Same(t, c2, cur, "expected the newer session to own the registry entry")

	// the superseded session going away must not evict its successor
	hub.Unregister(c1)
	cur, ok = hub.Lookup(1)
	assert.True(t, ok, "expected user to remain online")
	assert.Same(t, c2, cur)
}

func TestHub_DisconnectBroadcastsOfflineOncePerFriend(t *testing.T) {
	mockRepo := &database.MockRepository{}
	defer mockRepo.AssertExpectations(t)

	bob := database.User{Id: 2, Username: "bob"}
	aliceRow := database.User{Id: 1, Username: "alice"}
	mockRepo.On("GetFriends", 1).Return([]database.User{bob}, nil).Times(3)
	mockRepo.On("GetFriends", 2).Return([]database.User{aliceRow}, nil).Times(2)

	hub := newTestHub(t, mockRepo)

	alice := newTestClient(t, hub, 1, "alice")
	bobClient := newTestClient(t, hub, 2, "bob")

	hub.Register(alice)
	hub.Register(bobClient)
	drainFrames(alice)
	drainFrames(bobClient)

	hub.Unregister(alice)

	var offline int
	for _, f := range drainFrames(bobClient) {
		if f.Type == FrameStatusUpdate && f.User != nil && f.User.Id == 1 && f.User.Status == StatusOffline {
			offline++
		}
	}
	assert.Equal(t, 1, offline, "expected exactly one offline broadcast for the disconnecting friend")
	assert.Empty(t, drainFrames(alice), "expected the disconnected client to receive nothing")
}

func TestHub_HandleChatMessage(t *testing.T) {
	mockRepo := &database.MockRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetFriends", mock.Anything).Return([]database.User{}, nil).Times(6)
	mockRepo.On("CheckMembership", 10, 1).Return(database.MembershipResult{
		Exists:    true,
		IsMember:  true,
		MemberIds: []int{1, 2},
	}, nil).Once()
	mockRepo.On("CreateMessage", mock.MatchedBy(func(params database.CreateMessageParams) bool {
		return params.ConversationId == 10 &&
			params.SenderId == 1 &&
			params.Body == "hello"
	})).Return(int64(7), nil).Once()
	mockRepo.On("GetMessage", int64(7)).Return(database.Message{
		Id:             7,
		ConversationId: 10,
		SenderId:       1,
		Body:           "hello",
		CreatedAt:      time.Now().UTC(),
		SenderName:     "alice",
	}, nil).Once()
	mockRepo.On("UpsertReadStatus", 10, 1, int64(7)).Return(nil).Once()

	hub := newTestHub(t, mockRepo)

	alice := newTestClient(t, hub, 1, "alice")
	bob := newTestClient(t, hub, 2, "bob")
	carol := newTestClient(t, hub, 3, "carol")
	hub.Register(alice)
	hub.Register(bob)
	hub.Register(carol)
	drainFrames(alice)
	drainFrames(bob)
	drainFrames(carol)

	hub.HandleChatMessage(alice, &ClientFrame{
		Type:           FrameMessageSend,
		ConversationId: 10,
		Message:        "  hello  ",
	})

	for _, c := range []*Client{alice, bob} {
		frames := drainFrames(c)
		require.Len(t, frames, 1, "expected one frame for user %d", c.user.Id)
		assert.Equal(t, FrameMessageReceived, frames[0].Type)
		require.NotNil(t, frames[0].Message)
		assert.Equal(t, int64(7), frames[0].Message.Id)
		assert.Equal(t, "hello", frames[0].Message.Body)
	}

	assert.Empty(t, drainFrames(carol), "expected the non-member to receive nothing")

	// sender's live cursor tracks their own message
	assert.Equal(t, int64(7), alice.cursor(10).Current())
}

func TestHub_HandleChatMessage_InvalidFrames(t *testing.T) {
	tcases := []struct {
		name  string
		frame *ClientFrame
	}{
		{
			name:  "whitespace only body",
			frame: &ClientFrame{Type: FrameMessageSend, ConversationId: 10, Message: "   "},
		},
		{
			name:  "empty body",
			frame: &ClientFrame{Type: FrameMessageSend, ConversationId: 10},
		},
		{
			name:  "missing conversation",
			frame: &ClientFrame{Type: FrameMessageSend, Message: "hello"},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockRepository{}
			defer mockRepo.AssertExpectations(t)

			hub := newTestHub(t, mockRepo)
			c := newTestClient(t, hub, 1, "alice")

			hub.HandleChatMessage(c, tc.frame)

			// dropped before any persistence
			mockRepo.AssertNotCalled(t, "CheckMembership", mock.Anything, mock.Anything)
			mockRepo.AssertNotCalled(t, "CreateMessage", mock.Anything)
		})
	}
}

func TestHub_HandleChatMessage_NotMember(t *testing.T) {
	mockRepo := &database.MockRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("CheckMembership", 10, 3).Return(database.MembershipResult{
		Exists:    true,
		IsMember:  false,
		MemberIds: []int{1, 2},
	}, nil).Once()

	hub := newTestHub(t, mockRepo)
	c := newTestClient(t, hub, 3, "carol")

	hub.HandleChatMessage(c, &ClientFrame{
		Type:           FrameMessageSend,
		ConversationId: 10,
		Message:        "hello",
	})

	mockRepo.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestHub_HandleTyping(t *testing.T) {
	mockRepo := &database.MockRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetFriends", mock.Anything).Return([]database.User{}, nil).Times(4)
	mockRepo.On("CheckMembership", 10, 1).Return(database.MembershipResult{
		Exists:    true,
		IsMember:  true,
		MemberIds: []int{1, 2},
	}, nil).Twice()

	hub := newTestHub(t, mockRepo)
	alice := newTestClient(t, hub, 1, "alice")
	bob := newTestClient(t, hub, 2, "bob")
	hub.Register(alice)
	hub.Register(bob)
	drainFrames(alice)
	drainFrames(bob)

	hub.HandleTyping(alice, &ClientFrame{Type: FrameTypingStart, ConversationId: 10}, true)

	frames := drainFrames(bob)
	require.Len(t, frames, 1)
	assert.Equal(t, FrameTypingStart, frames[0].Type)
	assert.Equal(t, 10, frames[0].ConversationId)
	require.NotNil(t, frames[0].User)
	assert.Equal(t, 1, frames[0].User.Id)

	assert.Empty(t, drainFrames(alice), "expected typing not to echo to the sender")

	hub.HandleTyping(alice, &ClientFrame{Type: FrameTypingStop, ConversationId: 10}, false)

	frames = drainFrames(bob)
	require.Len(t, frames, 1)
	assert.Equal(t, FrameTypingStop, frames[0].Type)
}

func TestHub_HandleReadStatus(t *testing.T) {
	mockRepo := &database.MockRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetFriends", mock.Anything).Return([]database.User{}, nil).Times(4)
	// once per HandleReadStatus call, once more for the accepted relay
	mockRepo.On("CheckMembership", 10, 1).Return(database.MembershipResult{
		Exists:    true,
		IsMember:  true,
		MemberIds: []int{1, 2},
	}, nil).Times(3)

	hub := newTestHub(t, mockRepo)
	alice := newTestClient(t, hub, 1, "alice")
	bob := newTestClient(t, hub, 2, "bob")
	hub.Register(alice)
	hub.Register(bob)
	drainFrames(alice)
	drainFrames(bob)

	hub.HandleReadStatus(alice, &ClientFrame{Type: FrameReadStatusUpdate, ConversationId: 10, MessageId: 5})

	frames := drainFrames(bob)
	require.Len(t, frames, 1)
	assert.Equal(t, FrameReadStatusUpdate, frames[0].Type)
	assert.Equal(t, int64(5), frames[0].MessageId)
	require.NotNil(t, frames[0].User)
	assert.Equal(t, 1, frames[0].User.Id)

	// a stale position is rejected by the cursor and never relayed
	hub.HandleReadStatus(alice, &ClientFrame{Type: FrameReadStatusUpdate, ConversationId: 10, MessageId: 3})
	assert.Empty(t, drainFrames(bob), "expected a stale read position not to relay")
	assert.Equal(t, int64(5), alice.cursor(10).Current())
}

func TestHub_MessagingScenario(t *testing.T) {
	mockRepo := &database.MockRepository{}
	defer mockRepo.AssertExpectations(t)

	aliceRow := database.User{Id: 1, Username: "alice"}
	bobRow := database.User{Id: 2, Username: "bob"}
	membership := database.MembershipResult{Exists: true, IsMember: true, MemberIds: []int{1, 2}}

	mockRepo.On("GetFriends", 1).Return([]database.User{bobRow}, nil).Times(2)
	mockRepo.On("GetFriends", 2).Return([]database.User{aliceRow}, nil).Times(3)
	mockRepo.On("CheckMembership", 10, 1).Return(membership, nil).Once()
	mockRepo.On("CreateMessage", mock.Anything).Return(int64(8), nil).Once()
	mockRepo.On("GetMessage", int64(8)).Return(database.Message{
		Id:             8,
		ConversationId: 10,
		SenderId:       1,
		Body:           "hi bob",
		CreatedAt:      time.Now().UTC(),
		SenderName:     "alice",
	}, nil).Once()
	mockRepo.On("UpsertReadStatus", 10, 1, int64(8)).Return(nil).Once()
	mockRepo.On("CheckMembership", 10, 2).Return(membership, nil).Twice()

	hub := newTestHub(t, mockRepo)
	alice := newTestClient(t, hub, 1, "alice")
	bob := newTestClient(t, hub, 2, "bob")
	hub.Register(alice)
	hub.Register(bob)
	drainFrames(alice)
	drainFrames(bob)

	// alice sends, both members receive the stored message
	hub.HandleChatMessage(alice, &ClientFrame{Type: FrameMessageSend, ConversationId: 10, Message: "hi bob"})

	aliceFrames := drainFrames(alice)
	bobFrames := drainFrames(bob)
	require.Len(t, aliceFrames, 1)
	require.Len(t, bobFrames, 1)
	assert.Equal(t, FrameMessageReceived, bobFrames[0].Type)
	require.NotNil(t, bobFrames[0].Message)
	assert.Equal(t, int64(8), bobFrames[0].Message.Id)

	// bob reads it, alice sees the receipt
	hub.HandleReadStatus(bob, &ClientFrame{Type: FrameReadStatusUpdate, ConversationId: 10, MessageId: 8})

	aliceFrames = drainFrames(alice)
	require.Len(t, aliceFrames, 1)
	assert.Equal(t, FrameReadStatusUpdate, aliceFrames[0].Type)
	assert.Equal(t, int64(8), aliceFrames[0].MessageId)
	require.NotNil(t, aliceFrames[0].User)
	assert.Equal(t, 2, aliceFrames[0].User.Id)

	// bob disconnects, alice sees exactly one offline broadcast
	hub.Unregister(bob)

	var offline int
	for _, f := range drainFrames(alice) {
		if f.Type == FrameStatusUpdate && f.User != nil && f.User.Id == 2 && f.User.Status == StatusOffline {
			offline++
		}
	}
	assert.Equal(t, 1, offline)
	assert.False(t, hub.IsOnline(2))
}

func TestHub_Shutdown(t *testing.T) {
	t.Run("empty hub drains immediately", func(t *testing.T) {
		mockRepo := &database.MockRepository{}
		hub := newTestHub(t, mockRepo)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, hub.Shutdown(ctx))
	})

	t.Run("waits for clients to unregister", func(t *testing.T) {
		mockRepo := &database.MockRepository{}
		mockRepo.On("GetFriends", 1).Return([]database.User{}, nil).Times(3)

		hub := newTestHub(t, mockRepo)
		c := newTestClient(t, hub, 1, "alice")
		c.registered = true
		hub.Register(c)

		// stand-in for the read pump reacting to the stop signal
		go func() {
			<-c.stop
			c.cleanup()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, hub.Shutdown(ctx))
		assert.Equal(t, 0, hub.numClients())
	})
}
