package database

type Repository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(userId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	GetAccountByUsername(username string) (User, error)
	UpdateAvatar(userId int, avatar string) error

	GetFriends(userId int) ([]User, error)
	FriendshipExists(userA, userB int) (bool, error)
	CreateInvite(fromUser, toUser int) (Invite, error)
	InviteExists(fromUser, toUser int) (bool, error)
	ListInvites(toUser int) ([]Invite, error)
	AcceptInvite(inviteId, userId int) (User, error)
	DeclineInvite(inviteId, userId int) error

	ListConversations(userId int) ([]Conversation, error)
	CreateConversation(params CreateConversationParams) (Conversation, error)
	FindConversationByMembers(memberIds []int) (Conversation, error)
	CheckMembership(conversationId, userId int) (MembershipResult, error)

	CreateMessage(params CreateMessageParams) (int64, error)
	GetMessage(messageId int64) (Message, error)
	ListMessages(conversationId, limit, offset int) ([]Message, error)
	GetLastMessage(conversationId int) (Message, error)
	CountUnreadMessages(conversationId, userId int) (int, error)

	ListReadStatuses(conversationId int) ([]ReadStatus, error)
	UpsertReadStatus(conversationId, userId int, messageId int64) error
}
