package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountByUsername(username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) UpdateAvatar(userId int, avatar string) error {
	args := m.Called(userId, avatar)
	return args.Error(0)
}
func (m *MockRepository) GetFriends(userId int) ([]User, error) {
	args := m.Called(userId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRepository) FriendshipExists(userA, userB int) (bool, error) {
	args := m.Called(userA, userB)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) CreateInvite(fromUser, toUser int) (Invite, error) {
	args := m.Called(fromUser, toUser)
	return args.Get(0).(Invite), args.Error(1)
}
func (m *MockRepository) InviteExists(fromUser, toUser int) (bool, error) {
	args := m.Called(fromUser, toUser)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) ListInvites(toUser int) ([]Invite, error) {
	args := m.Called(toUser)
	return args.Get(0).([]Invite), args.Error(1)
}
func (m *MockRepository) AcceptInvite(inviteId, userId int) (User, error) {
	args := m.Called(inviteId, userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) DeclineInvite(inviteId, userId int) error {
	args := m.Called(inviteId, userId)
	return args.Error(0)
}
func (m *MockRepository) ListConversations(userId int) ([]Conversation, error) {
	args := m.Called(userId)
	return args.Get(0).([]Conversation), args.Error(1)
}
func (m *MockRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	args := m.Called(params)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) FindConversationByMembers(memberIds []int) (Conversation, error) {
	args := m.Called(memberIds)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) CheckMembership(conversationId, userId int) (MembershipResult, error) {
	args := m.Called(conversationId, userId)
	return args.Get(0).(MembershipResult), args.Error(1)
}
func (m *MockRepository) CreateMessage(params CreateMessageParams) (int64, error) {
	args := m.Called(params)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockRepository) GetMessage(messageId int64) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) ListMessages(conversationId, limit, offset int) ([]Message, error) {
	args := m.Called(conversationId, limit, offset)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) GetLastMessage(conversationId int) (Message, error) {
	args := m.Called(conversationId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) CountUnreadMessages(conversationId, userId int) (int, error) {
	args := m.Called(conversationId, userId)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) ListReadStatuses(conversationId int) ([]ReadStatus, error) {
	args := m.Called(conversationId)
	return args.Get(0).([]ReadStatus), args.Error(1)
}
func (m *MockRepository) UpsertReadStatus(conversationId, userId int, messageId int64) error {
	args := m.Called(conversationId, userId, messageId)
	return args.Error(0)
}
