package server

import (
	"github.com/interlinked/interlinked/internal/database"
	"github.com/interlinked/interlinked/internal/types"
)

type FrameType string

const (
	// client to server
	FrameAuthenticate     FrameType = "authenticate"
	FrameMessageSend      FrameType = "message_send"
	FrameTypingStart      FrameType = "typing_start"
	FrameTypingStop       FrameType = "typing_stop"
	FrameReadStatusUpdate FrameType = "read_status_update"

	// server to client
	FrameStatusUpdate    FrameType = "status_update"
	FrameMessageReceived FrameType = "message_received"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ClientFrame is the decoded form of every inbound frame. The Type tag
// selects which fields are meaningful; dispatch happens once, in the read
// pump, over an exhaustive switch.
type ClientFrame struct {
	Type           FrameType `json:"type"`
	UserId         int       `json:"userId,omitempty"`
	ConversationId int       `json:"conversationId,omitempty"`
	Message        string    `json:"message,omitempty"`
	Attachment     *string   `json:"attachment,omitempty"`
	Reply          *int64    `json:"reply,omitempty"`
	MessageId      int64     `json:"messageId,omitempty"`
}

type ServerFrame struct {
	Type           FrameType      `json:"type"`
	ConversationId int            `json:"conversationId,omitempty"`
	MessageId      int64          `json:"messageId,omitempty"`
	User           *UserInfo      `json:"user,omitempty"`
	Message        *types.Message `json:"message,omitempty"`
}

type UserInfo struct {
	Id       int    `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Status   string `json:"status,omitempty"`
}

func StatusUpdateFrame(user types.User, status string) *ServerFrame {
	return &ServerFrame{
		Type: FrameStatusUpdate,
		User: &UserInfo{
			Id:       user.Id,
			Username: user.Username,
			Avatar:   user.Avatar,
			Status:   status,
		},
	}
}

func MessageReceivedFrame(msg *types.Message) *ServerFrame {
	return &ServerFrame{
		Type:    FrameMessageReceived,
		Message: msg,
	}
}

func TypingFrame(conversationId int, user types.User, typing bool) *ServerFrame {
	frameType := FrameTypingStop
	if typing {
		frameType = FrameTypingStart
	}

	return &ServerFrame{
		Type:           frameType,
		ConversationId: conversationId,
		User: &UserInfo{
			Id:       user.Id,
			Username: user.Username,
			Avatar:   user.Avatar,
		},
	}
}

func ReadStatusFrame(conversationId int, messageId int64, user types.User) *ServerFrame {
	return &ServerFrame{
		Type:           FrameReadStatusUpdate,
		ConversationId: conversationId,
		MessageId:      messageId,
		User: &UserInfo{
			Id:       user.Id,
			Username: user.Username,
			Avatar:   user.Avatar,
		},
	}
}

// MessagePayload converts a stored message row into its wire form.
func MessagePayload(msg database.Message) *types.Message {
	return &types.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Body:           msg.Body,
		Attachment:     msg.Attachment,
		Reactions:      msg.Reactions,
		ReplyTo:        msg.ReplyTo,
		Timestamp:      msg.CreatedAt,
		DeletedAt:      msg.DeletedAt,
		Username:       msg.SenderName,
		Avatar:         msg.SenderAvatar,
	}
}
