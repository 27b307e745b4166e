package database

import (
	"encoding/json"
	"slices"
	"time"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	Avatar       string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Invite struct {
	Id       int
	FromUser int
	ToUser   int
	// Display info of the inviting user, joined in list queries.
	Username string
	Avatar   string
}

type Conversation struct {
	Id        int
	MemberIds []int
	Title     string
	Logo      string
	CreatedAt time.Time
}

type Message struct {
	Id             int64
	ConversationId int
	SenderId       int
	Body           string
	Attachment     *string
	Reactions      *string
	ReplyTo        *int64
	CreatedAt      time.Time
	DeletedAt      *time.Time
	// Sender display info, joined on read.
	SenderName   string
	SenderAvatar string
}

type ReadStatus struct {
	Id             int
	ConversationId int
	UserId         int
	LastReadId     int64
	LastReadAt     time.Time
}

// MembershipResult is the answer to "is user U part of conversation C".
type MembershipResult struct {
	Exists    bool
	IsMember  bool
	MemberIds []int
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateConversationParams struct {
	MemberIds []int
	Title     string
	Logo      string
}

type CreateMessageParams struct {
	ConversationId int
	SenderId       int
	Body           string
	Attachment     *string
	ReplyTo        *int64
}

// encodeMembers produces the canonical member-set encoding stored in the
// conversations table: a JSON array of user ids in ascending order. Storing
// the canonical form lets duplicate-conversation checks compare encodings
// directly instead of decoding every row.
func encodeMembers(memberIds []int) (string, error) {
	sorted := slices.Clone(memberIds)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	raw, err := json.Marshal(sorted)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeMembers(raw string) ([]int, error) {
	var memberIds []int
	if err := json.Unmarshal([]byte(raw), &memberIds); err != nil {
		return nil, err
	}
	return memberIds, nil
}
