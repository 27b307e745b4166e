package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Friend is a friend list entry annotated with live presence.
type Friend struct {
	Id       int    `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Status   string `json:"status"`
}

type Invite struct {
	Id       int    `json:"id"`
	FromUser int    `json:"from_user"`
	ToUser   int    `json:"to_user"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

type Conversation struct {
	Id          int      `json:"id"`
	MemberIds   []int    `json:"member_ids"`
	Title       string   `json:"title,omitempty"`
	Logo        string   `json:"logo,omitempty"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

type Message struct {
	Id             int64      `json:"messageId"`
	ConversationId int        `json:"conversationId"`
	SenderId       int        `json:"senderId"`
	Body           string     `json:"message"`
	Attachment     *string    `json:"attachment,omitempty"`
	Reactions      *string    `json:"reactions,omitempty"`
	ReplyTo        *int64     `json:"reply,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	Username       string     `json:"username,omitempty"`
	Avatar         string     `json:"avatar,omitempty"`
}

type ReadStatus struct {
	ConversationId int       `json:"conversationId"`
	UserId         int       `json:"userId"`
	LastReadId     int64     `json:"lastReadMessageId"`
	LastReadAt     time.Time `json:"lastReadAt"`
}
