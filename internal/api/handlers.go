package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/interlinked/interlinked/internal/database"
	"github.com/interlinked/interlinked/internal/server"
	"github.com/interlinked/interlinked/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type FriendRequest struct {
	Username string `json:"username"`
}

type UpdateAvatarRequest struct {
	Avatar string `json:"avatar"`
}

type InviteActionRequest struct {
	Id int `json:"id"`
}

type CreateConversationRequest struct {
	MemberIds []int  `json:"members"`
	Title     string `json:"title"`
	Logo      string `json:"logo"`
}

type SendMessageRequest struct {
	Message    string  `json:"message"`
	Attachment *string `json:"attachment,omitempty"`
	Reply      *int64  `json:"reply,omitempty"`
}

type ReadStatusRequest struct {
	MessageId int64 `json:"messageId"`
}

type FriendRequestStatus struct {
	Status string `json:"status"`
}

// MessagePage is the response of the conversation message listing: a
// chronological page plus every member's read position.
type MessagePage struct {
	Messages     []types.Message    `json:"messages"`
	ReadStatuses []types.ReadStatus `json:"readStatuses"`
}

const (
	friendStatusNone    = "none"
	friendStatusPending = "pending"
	friendStatusFriends = "friends"
)

func (s *InterlinkedApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *InterlinkedApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *InterlinkedApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	}

	newUser, err := s.db.CreateAccount(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:           newUser.Id,
		Username:     newUser.Username,
		EmailAddress: newUser.EmailAddress,
		Avatar:       newUser.Avatar,
		CreatedAt:    newUser.CreatedAt,
		UpdatedAt:    newUser.UpdatedAt,
	})
}

func (s *InterlinkedApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u := types.User{
		Id:           dbUser.Id,
		Username:     dbUser.Username,
		EmailAddress: dbUser.EmailAddress,
		Avatar:       dbUser.Avatar,
		CreatedAt:    dbUser.CreatedAt,
		UpdatedAt:    dbUser.UpdatedAt,
	}

	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, u)
}

func (s *InterlinkedApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:           user.Id,
		Username:     user.Username,
		EmailAddress: user.EmailAddress,
		Avatar:       user.Avatar,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
}

func (s *InterlinkedApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", 0))
	w.WriteHeader(http.StatusNoContent)
}

func (s *InterlinkedApp) updateAvatar(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateAvatarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Avatar == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpdateAvatar(userId, req.Avatar); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *InterlinkedApp) getFriends(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbFriends, err := s.db.GetFriends(userId)
	if err != nil {
		s.log.Println("list friends:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	friends := make([]types.Friend, 0, len(dbFriends))
	for _, f := range dbFriends {
		status := server.StatusOffline
		if s.hub.IsOnline(f.Id) {
			status = server.StatusOnline
		}

		friends = append(friends, types.Friend{
			Id:       f.Id,
			Username: f.Username,
			Avatar:   f.Avatar,
			Status:   status,
		})
	}

	s.writeJson(w, http.StatusOK, friends)
}

func (s *InterlinkedApp) checkFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	target, err := s.db.GetAccountByUsername(req.Username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	status, err := s.friendStatus(userId, target.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, FriendRequestStatus{Status: status})
}

// friendStatus reports the relationship between two users: friends, a
// pending invite in either direction, or nothing.
func (s *InterlinkedApp) friendStatus(userId, targetId int) (string, error) {
	isFriend, err := s.db.FriendshipExists(userId, targetId)
	if err != nil {
		return "", err
	}
	if isFriend {
		return friendStatusFriends, nil
	}

	for _, pair := range [][2]int{{userId, targetId}, {targetId, userId}} {
		pending, err := s.db.InviteExists(pair[0], pair[1])
		if err != nil {
			return "", err
		}
		if pending {
			return friendStatusPending, nil
		}
	}

	return friendStatusNone, nil
}

func (s *InterlinkedApp) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	target, err := s.db.GetAccountByUsername(req.Username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if target.Id == userId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	status, err := s.friendStatus(userId, target.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if status != friendStatusNone {
		errResp := NewConflictError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	invite, err := s.db.CreateInvite(userId, target.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.Invite{
		Id:       invite.Id,
		FromUser: invite.FromUser,
		ToUser:   invite.ToUser,
	})
}

func (s *InterlinkedApp) listFriendRequests(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbInvites, err := s.db.ListInvites(userId)
	if err != nil {
		s.log.Println("list invites:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	invites := make([]types.Invite, 0, len(dbInvites))
	for _, inv := range dbInvites {
		invites = append(invites, types.Invite{
			Id:       inv.Id,
			FromUser: inv.FromUser,
			ToUser:   inv.ToUser,
			Username: inv.Username,
			Avatar:   inv.Avatar,
		})
	}

	s.writeJson(w, http.StatusOK, invites)
}

func (s *InterlinkedApp) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req InviteActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Id == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	friend, err := s.db.AcceptInvite(req.Id, userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	status := server.StatusOffline
	if s.hub.IsOnline(friend.Id) {
		status = server.StatusOnline
	}

	s.writeJson(w, http.StatusOK, types.Friend{
		Id:       friend.Id,
		Username: friend.Username,
		Avatar:   friend.Avatar,
		Status:   status,
	})
}

func (s *InterlinkedApp) declineFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req InviteActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Id == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeclineInvite(req.Id, userId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, nil)
}

func (s *InterlinkedApp) getConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbConvs, err := s.db.ListConversations(userId)
	if err != nil {
		s.log.Println("list conversations:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversations := make([]types.Conversation, 0, len(dbConvs))
	for _, dbConv := range dbConvs {
		conv := types.Conversation{
			Id:        dbConv.Id,
			MemberIds: dbConv.MemberIds,
			Title:     dbConv.Title,
			Logo:      dbConv.Logo,
		}

		last, err := s.db.GetLastMessage(dbConv.Id)
		switch {
		case err == nil:
			conv.LastMessage = server.MessagePayload(last)
		case !errors.Is(err, sql.ErrNoRows):
			s.log.Printf("last message for conversation %d: %v", dbConv.Id, err)
		}

		unread, err := s.db.CountUnreadMessages(dbConv.Id, userId)
		if err != nil {
			s.log.Printf("unread count for conversation %d: %v", dbConv.Id, err)
		}
		conv.UnreadCount = unread

		conversations = append(conversations, conv)
	}

	s.writeJson(w, http.StatusOK, conversations)
}

func (s *InterlinkedApp) createConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	memberIds := req.MemberIds
	if !slices.Contains(memberIds, userId) {
		memberIds = append(memberIds, userId)
	}

	if len(memberIds) < 2 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// groups need a display title, direct conversations derive one from
	// the other member
	if len(memberIds) > 2 && req.Title == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	for _, memberId := range memberIds {
		if memberId == userId {
			continue
		}

		isFriend, err := s.db.FriendshipExists(userId, memberId)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if !isFriend {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	_, err := s.db.FindConversationByMembers(memberIds)
	if err == nil {
		errResp := NewConflictError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.CreateConversation(database.CreateConversationParams{
		MemberIds: memberIds,
		Title:     req.Title,
		Logo:      req.Logo,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.Conversation{
		Id:        conv.Id,
		MemberIds: conv.MemberIds,
		Title:     conv.Title,
		Logo:      conv.Logo,
	})
}

// requireMembership resolves the {id} path value and checks the requester
// belongs to that conversation. A nil result means the response was already
// written.
func (s *InterlinkedApp) requireMembership(w http.ResponseWriter, r *http.Request) (int, *database.MembershipResult) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return 0, nil
	}

	conversationId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || conversationId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return 0, nil
	}

	membership, err := s.db.CheckMembership(conversationId, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return 0, nil
	}

	if !membership.Exists {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return 0, nil
	}

	if !membership.IsMember {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return 0, nil
	}

	return conversationId, &membership
}

func (s *InterlinkedApp) getMessages(w http.ResponseWriter, r *http.Request) {
	conversationId, membership := s.requireMembership(w, r)
	if membership == nil {
		return
	}

	var limit, offset int
	var err error

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	offsetStr := r.URL.Query().Get("offset")
	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	dbMessages, err := s.db.ListMessages(conversationId, limit, offset)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbStatuses, err := s.db.ListReadStatuses(conversationId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page := MessagePage{
		Messages:     make([]types.Message, 0, len(dbMessages)),
		ReadStatuses: make([]types.ReadStatus, 0, len(dbStatuses)),
	}
	for _, msg := range dbMessages {
		page.Messages = append(page.Messages, *server.MessagePayload(msg))
	}
	for _, rs := range dbStatuses {
		page.ReadStatuses = append(page.ReadStatuses, types.ReadStatus{
			ConversationId: rs.ConversationId,
			UserId:         rs.UserId,
			LastReadId:     rs.LastReadId,
			LastReadAt:     rs.LastReadAt,
		})
	}

	s.writeJson(w, http.StatusOK, page)
}

func (s *InterlinkedApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	conversationId, membership := s.requireMembership(w, r)
	if membership == nil {
		return
	}

	userId, _ := UserId(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	body := strings.TrimSpace(req.Message)
	if body == "" && req.Attachment == nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messageId, err := s.db.CreateMessage(database.CreateMessageParams{
		ConversationId: conversationId,
		SenderId:       userId,
		Body:           body,
		Attachment:     req.Attachment,
		ReplyTo:        req.Reply,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.GetMessage(messageId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// the sender has read their own message
	if err := s.db.UpsertReadStatus(conversationId, userId, messageId); err != nil {
		s.log.Printf("upsert read status for user %d: %v", userId, err)
	}

	payload := server.MessagePayload(msg)
	s.hub.DeliverMessage(membership.MemberIds, payload)

	s.writeJson(w, http.StatusCreated, payload)
}

func (s *InterlinkedApp) updateReadStatus(w http.ResponseWriter, r *http.Request) {
	conversationId, membership := s.requireMembership(w, r)
	if membership == nil {
		return
	}

	userId, _ := UserId(r.Context())

	// messageId is optional: without one the conversation is marked read
	// as of now, which covers conversations with no messages yet
	var req ReadStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageId < 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpsertReadStatus(conversationId, userId, req.MessageId); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *InterlinkedApp) getMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messageId, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || messageId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.GetMessage(messageId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	membership, err := s.db.CheckMembership(msg.ConversationId, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !membership.IsMember {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// soft-deleted messages come back with deletedAt set so reply previews
	// can render a placeholder
	s.writeJson(w, http.StatusOK, server.MessagePayload(msg))
}

func (s *InterlinkedApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(types.User{
		Id:           user.Id,
		Username:     user.Username,
		EmailAddress: user.EmailAddress,
		Avatar:       user.Avatar,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}, conn, s.hub, s.log)

	go client.Write()
	go client.Read()
}
