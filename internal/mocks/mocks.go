package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-hub/internal/models"
	"chat-hub/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, username, passwordHash string) (models.User, error) {
	args := m.Called(ctx, username, passwordHash)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) UpdateStatus(ctx context.Context, userID, status string) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListDirectMessages(ctx context.Context, userID, contactID string) ([]models.Message, error) {
	args := m.Called(ctx, userID, contactID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListChannelMessages(ctx context.Context, channelID string) ([]models.Message, error) {
	args := m.Called(ctx, channelID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type ChannelRepositoryMock struct {
	mock.Mock
}

func (m *ChannelRepositoryMock) CreateChannel(ctx context.Context, ch models.NewChannel) (models.Channel, error) {
	args := m.Called(ctx, ch)
	var out models.Channel
	if val := args.Get(0); val != nil {
		out = val.(models.Channel)
	}
	return out, args.Error(1)
}

func (m *ChannelRepositoryMock) GetChannel(ctx context.Context, channelID string) (models.Channel, error) {
	args := m.Called(ctx, channelID)
	var out models.Channel
	if val := args.Get(0); val != nil {
		out = val.(models.Channel)
	}
	return out, args.Error(1)
}

func (m *ChannelRepositoryMock) ListChannels(ctx context.Context) ([]models.Channel, error) {
	args := m.Called(ctx)
	var list []models.Channel
	if val := args.Get(0); val != nil {
		list = val.([]models.Channel)
	}
	return list, args.Error(1)
}

func (m *ChannelRepositoryMock) ListUserChannels(ctx context.Context, userID string) ([]models.Channel, error) {
	args := m.Called(ctx, userID)
	var list []models.Channel
	if val := args.Get(0); val != nil {
		list = val.([]models.Channel)
	}
	return list, args.Error(1)
}

func (m *ChannelRepositoryMock) AddMember(ctx context.Context, channelID, userID string) error {
	args := m.Called(ctx, channelID, userID)
	return args.Error(0)
}

func (m *ChannelRepositoryMock) RemoveMember(ctx context.Context, channelID, userID string) error {
	args := m.Called(ctx, channelID, userID)
	return args.Error(0)
}

func (m *ChannelRepositoryMock) ListMembers(ctx context.Context, channelID string) ([]models.User, error) {
	args := m.Called(ctx, channelID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *ChannelRepositoryMock) IsMember(ctx context.Context, channelID, userID string) (bool, error) {
	args := m.Called(ctx, channelID, userID)
	return args.Bool(0), args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) AddReaction(ctx context.Context, messageID, userID, emoji string) (models.Reaction, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	var out models.Reaction
	if val := args.Get(0); val != nil {
		out = val.(models.Reaction)
	}
	return out, args.Error(1)
}

func (m *ReactionRepositoryMock) ListReactions(ctx context.Context, messageID string) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID)
	var list []models.Reaction
	if val := args.Get(0); val != nil {
		list = val.([]models.Reaction)
	}
	return list, args.Error(1)
}

func (m *ReactionRepositoryMock) RemoveReaction(ctx context.Context, reactionID string) error {
	args := m.Called(ctx, reactionID)
	return args.Error(0)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) CreateNotification(ctx context.Context, n models.NewNotification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var out models.Notification
	if val := args.Get(0); val != nil {
		out = val.(models.Notification)
	}
	return out, args.Error(1)
}

func (m *NotificationRepositoryMock) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, notificationID, userID string) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

var (
	_ repositories.UserRepository         = (*UserRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
	_ repositories.ChannelRepository      = (*ChannelRepositoryMock)(nil)
	_ repositories.ReactionRepository     = (*ReactionRepositoryMock)(nil)
	_ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
)
