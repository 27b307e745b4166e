package database

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	createInviteQuery = "INSERT INTO invites (from_user, to_user) VALUES ($1, $2) RETURNING id, from_user, to_user"

	upsertReadStatusQuery = "INSERT INTO read_statuses (conversation_id, user_id, last_read_message_id, last_read_at) " +
		"VALUES ($1, $2, $3, $4) " +
		"ON CONFLICT (conversation_id, user_id) DO UPDATE SET " +
		"last_read_message_id = NULLIF(GREATEST(COALESCE(read_statuses.last_read_message_id, 0), COALESCE(EXCLUDED.last_read_message_id, 0)), 0), " +
		"last_read_at = EXCLUDED.last_read_at"
)

func (db *PgRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, avatar, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Avatar,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgRepository) GetAccountById(userId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, avatar FROM users "+
			"WHERE id = $1 LIMIT 1",
		userId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Avatar,
	)

	return user, err
}

func (db *PgRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, avatar, password_hash FROM users "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Avatar,
		&user.PasswordHash,
	)

	return user, err
}

func (db *PgRepository) GetAccountByUsername(username string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, avatar FROM users "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Avatar,
	)

	return user, err
}

func (db *PgRepository) UpdateAvatar(userId int, avatar string) error {
	_, err := db.conn.Exec(
		"UPDATE users SET avatar = $2, updated_at = $3 WHERE id = $1",
		userId,
		avatar,
		time.Now().UTC(),
	)

	return err
}

func (db *PgRepository) GetFriends(userId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT u.id, u.username, u.avatar FROM friendships f "+
			"JOIN users u ON (f.user1 = u.id OR f.user2 = u.id) "+
			"WHERE (f.user1 = $1 OR f.user2 = $1) AND u.id != $1",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends = make([]User, 0)
	for rows.Next() {
		var friend User
		if err = rows.Scan(&friend.Id, &friend.Username, &friend.Avatar); err != nil {
			return nil, err
		}

		friends = append(friends, friend)
	}

	return friends, rows.Err()
}

func (db *PgRepository) FriendshipExists(userA, userB int) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT 1 FROM friendships "+
			"WHERE (user1 = $1 AND user2 = $2) OR (user1 = $2 AND user2 = $1) LIMIT 1",
		userA,
		userB,
	)

	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

func (db *PgRepository) CreateInvite(fromUser, toUser int) (Invite, error) {
	res := db.conn.QueryRow(createInviteQuery, fromUser, toUser)

	var invite Invite
	err := res.Scan(
		&invite.Id,
		&invite.FromUser,
		&invite.ToUser,
	)

	return invite, err
}

func (db *PgRepository) InviteExists(fromUser, toUser int) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT 1 FROM invites WHERE from_user = $1 AND to_user = $2 LIMIT 1",
		fromUser,
		toUser,
	)

	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

func (db *PgRepository) ListInvites(toUser int) ([]Invite, error) {
	rows, err := db.conn.Query(
		"SELECT i.id, i.from_user, i.to_user, u.username, u.avatar FROM invites i "+
			"JOIN users u ON i.from_user = u.id WHERE i.to_user = $1",
		toUser,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites = make([]Invite, 0)
	for rows.Next() {
		var invite Invite
		if err = rows.Scan(&invite.Id, &invite.FromUser, &invite.ToUser, &invite.Username, &invite.Avatar); err != nil {
			return nil, err
		}

		invites = append(invites, invite)
	}

	return invites, rows.Err()
}

// AcceptInvite converts an invite into a friendship. The insert and the
// invite removal happen in one transaction so a half-applied accept can
// never leave an invite that is re-acceptable.
func (db *PgRepository) AcceptInvite(inviteId, userId int) (User, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return User{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var invite Invite
	err = tx.QueryRow(
		"SELECT id, from_user, to_user FROM invites WHERE id = $1 AND to_user = $2",
		inviteId,
		userId,
	).Scan(&invite.Id, &invite.FromUser, &invite.ToUser)
	if err != nil {
		return User{}, err
	}

	_, err = tx.Exec(
		"INSERT INTO friendships (user1, user2) VALUES ($1, $2)",
		invite.FromUser,
		invite.ToUser,
	)
	if err != nil {
		return User{}, err
	}

	_, err = tx.Exec("DELETE FROM invites WHERE id = $1", invite.Id)
	if err != nil {
		return User{}, err
	}

	var friend User
	err = tx.QueryRow(
		"SELECT id, username, avatar FROM users WHERE id = $1",
		invite.FromUser,
	).Scan(&friend.Id, &friend.Username, &friend.Avatar)
	if err != nil {
		return User{}, err
	}

	if err = tx.Commit(); err != nil {
		return User{}, err
	}

	return friend, nil
}

func (db *PgRepository) DeclineInvite(inviteId, userId int) error {
	res, err := db.conn.Exec(
		"DELETE FROM invites WHERE id = $1 AND to_user = $2",
		inviteId,
		userId,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgRepository) ListConversations(userId int) ([]Conversation, error) {
	rows, err := db.conn.Query(
		"SELECT id, members, COALESCE(title, ''), COALESCE(logo, ''), created_at FROM conversations "+
			"WHERE members::jsonb @> to_jsonb($1::int)",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var (
			conv    Conversation
			members string
		)
		if err = rows.Scan(&conv.Id, &members, &conv.Title, &conv.Logo, &conv.CreatedAt); err != nil {
			return nil, err
		}

		conv.MemberIds, err = decodeMembers(members)
		if err != nil {
			return nil, fmt.Errorf("conversation %d: decode members: %w", conv.Id, err)
		}

		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

func (db *PgRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	members, err := encodeMembers(params.MemberIds)
	if err != nil {
		return Conversation{}, err
	}

	res := db.conn.QueryRow(
		"INSERT INTO conversations (members, title, logo) VALUES ($1, NULLIF($2, ''), NULLIF($3, '')) "+
			"RETURNING id, members, COALESCE(title, ''), COALESCE(logo, ''), created_at",
		members,
		params.Title,
		params.Logo,
	)

	var (
		conv Conversation
		raw  string
	)
	err = res.Scan(&conv.Id, &raw, &conv.Title, &conv.Logo, &conv.CreatedAt)
	if err != nil {
		return Conversation{}, err
	}

	conv.MemberIds, err = decodeMembers(raw)
	return conv, err
}

// FindConversationByMembers looks up a conversation holding exactly the
// given member set. Returns sql.ErrNoRows when none exists.
func (db *PgRepository) FindConversationByMembers(memberIds []int) (Conversation, error) {
	members, err := encodeMembers(memberIds)
	if err != nil {
		return Conversation{}, err
	}

	row := db.conn.QueryRow(
		"SELECT id, members, COALESCE(title, ''), COALESCE(logo, ''), created_at FROM conversations "+
			"WHERE members = $1 LIMIT 1",
		members,
	)

	var (
		conv Conversation
		raw  string
	)
	err = row.Scan(&conv.Id, &raw, &conv.Title, &conv.Logo, &conv.CreatedAt)
	if err != nil {
		return Conversation{}, err
	}

	conv.MemberIds, err = decodeMembers(raw)
	return conv, err
}

func (db *PgRepository) CheckMembership(conversationId, userId int) (MembershipResult, error) {
	row := db.conn.QueryRow(
		"SELECT members FROM conversations WHERE id = $1 LIMIT 1",
		conversationId,
	)

	var members string
	err := row.Scan(&members)
	if errors.Is(err, sql.ErrNoRows) {
		return MembershipResult{}, nil
	}
	if err != nil {
		return MembershipResult{}, err
	}

	memberIds, err := decodeMembers(members)
	if err != nil {
		return MembershipResult{}, fmt.Errorf("conversation %d: decode members: %w", conversationId, err)
	}

	return MembershipResult{
		Exists:    true,
		IsMember:  slices.Contains(memberIds, userId),
		MemberIds: memberIds,
	}, nil
}

func (db *PgRepository) CreateMessage(params CreateMessageParams) (int64, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (conversation_id, sender_id, body, attachment, reply_to) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id",
		params.ConversationId,
		params.SenderId,
		params.Body,
		params.Attachment,
		params.ReplyTo,
	)

	var messageId int64
	err := res.Scan(&messageId)

	return messageId, err
}

// GetMessage fetches a single message joined with sender display info.
// Soft-deleted rows are returned as-is so reply previews can render an
// "unavailable" placeholder instead of failing.
func (db *PgRepository) GetMessage(messageId int64) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT m.id, m.conversation_id, m.sender_id, m.body, m.attachment, m.reactions, m.reply_to, "+
			"m.created_at, m.deleted_at, COALESCE(u.username, ''), COALESCE(u.avatar, '') "+
			"FROM messages m LEFT JOIN users u ON m.sender_id = u.id "+
			"WHERE m.id = $1 LIMIT 1",
		messageId,
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.ConversationId,
		&msg.SenderId,
		&msg.Body,
		&msg.Attachment,
		&msg.Reactions,
		&msg.ReplyTo,
		&msg.CreatedAt,
		&msg.DeletedAt,
		&msg.SenderName,
		&msg.SenderAvatar,
	)

	return msg, err
}

// ListMessages returns the latest page of non-deleted messages in
// chronological order.
func (db *PgRepository) ListMessages(conversationId, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.Query(
		"SELECT m.id, m.conversation_id, m.sender_id, m.body, m.attachment, m.reactions, m.reply_to, "+
			"m.created_at, u.username, u.avatar "+
			"FROM messages m JOIN users u ON m.sender_id = u.id "+
			"WHERE m.conversation_id = $1 AND m.deleted_at IS NULL "+
			"ORDER BY m.id DESC LIMIT $2 OFFSET $3",
		conversationId,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		err = rows.Scan(
			&msg.Id,
			&msg.ConversationId,
			&msg.SenderId,
			&msg.Body,
			&msg.Attachment,
			&msg.Reactions,
			&msg.ReplyTo,
			&msg.CreatedAt,
			&msg.SenderName,
			&msg.SenderAvatar,
		)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// GetLastMessage returns the most recent non-deleted message in a
// conversation, or sql.ErrNoRows for an empty conversation.
func (db *PgRepository) GetLastMessage(conversationId int) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT m.id, m.conversation_id, m.sender_id, m.body, m.attachment, m.reactions, m.reply_to, "+
			"m.created_at, u.username, u.avatar "+
			"FROM messages m JOIN users u ON m.sender_id = u.id "+
			"WHERE m.conversation_id = $1 AND m.deleted_at IS NULL "+
			"ORDER BY m.id DESC LIMIT 1",
		conversationId,
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.ConversationId,
		&msg.SenderId,
		&msg.Body,
		&msg.Attachment,
		&msg.Reactions,
		&msg.ReplyTo,
		&msg.CreatedAt,
		&msg.SenderName,
		&msg.SenderAvatar,
	)

	return msg, err
}

// CountUnreadMessages counts messages from other senders past the user's
// recorded read position.
func (db *PgRepository) CountUnreadMessages(conversationId, userId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages m "+
			"WHERE m.conversation_id = $1 AND m.sender_id != $2 AND m.deleted_at IS NULL "+
			"AND m.id > COALESCE((SELECT last_read_message_id FROM read_statuses "+
			"WHERE conversation_id = $1 AND user_id = $2), 0)",
		conversationId,
		userId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

func (db *PgRepository) ListReadStatuses(conversationId int) ([]ReadStatus, error) {
	rows, err := db.conn.Query(
		"SELECT id, conversation_id, user_id, COALESCE(last_read_message_id, 0), COALESCE(last_read_at, 'epoch'::timestamptz) "+
			"FROM read_statuses WHERE conversation_id = $1",
		conversationId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses = make([]ReadStatus, 0)
	for rows.Next() {
		var rs ReadStatus
		if err = rows.Scan(&rs.Id, &rs.ConversationId, &rs.UserId, &rs.LastReadId, &rs.LastReadAt); err != nil {
			return nil, err
		}

		statuses = append(statuses, rs)
	}

	return statuses, rows.Err()
}

// UpsertReadStatus records the furthest message a user has read in a
// conversation. The merge takes the max of the stored and incoming message
// ids so a stale client can never move a read position backward.
func (db *PgRepository) UpsertReadStatus(conversationId, userId int, messageId int64) error {
	lastReadAt := time.Now().UTC()

	var msgId sql.NullInt64
	if messageId > 0 {
		msgId = sql.NullInt64{Int64: messageId, Valid: true}

		var createdAt time.Time
		err := db.conn.QueryRow("SELECT created_at FROM messages WHERE id = $1", messageId).Scan(&createdAt)
		switch {
		case err == nil:
			lastReadAt = createdAt
		case errors.Is(err, sql.ErrNoRows):
			// unknown message id: record the read time only
			msgId = sql.NullInt64{}
		default:
			return err
		}
	}

	_, err := db.conn.Exec(upsertReadStatusQuery, conversationId, userId, msgId, lastReadAt)
	return err
}
