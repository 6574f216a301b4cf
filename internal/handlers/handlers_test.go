package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-hub/internal/auth"
	"chat-hub/internal/middleware"
	"chat-hub/internal/mocks"
	"chat-hub/internal/models"
	"chat-hub/internal/repositories"
	"chat-hub/internal/telemetry"
	"chat-hub/internal/ws"
)

type fakeReactionRouter struct {
	got      models.ReactionEvent
	reaction models.Reaction
	err      error
}

func (f *fakeReactionRouter) RouteReaction(_ context.Context, userID string, ev models.ReactionEvent) (models.Reaction, error) {
	f.got = ev
	if f.err != nil {
		return models.Reaction{}, f.err
	}
	return f.reaction, nil
}

type handlerFixture struct {
	users         *mocks.UserRepositoryMock
	messages      *mocks.MessageRepositoryMock
	channels      *mocks.ChannelRepositoryMock
	reactions     *mocks.ReactionRepositoryMock
	notifications *mocks.NotificationRepositoryMock
	router        *fakeReactionRouter
	tokens        *auth.TokenManager
	engine        *gin.Engine
}

// newHandlerFixture mounts the REST surface with every request authenticated
// as callerID.
func newHandlerFixture(t *testing.T, callerID string) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	f := &handlerFixture{
		users:         new(mocks.UserRepositoryMock),
		messages:      new(mocks.MessageRepositoryMock),
		channels:      new(mocks.ChannelRepositoryMock),
		reactions:     new(mocks.ReactionRepositoryMock),
		notifications: new(mocks.NotificationRepositoryMock),
		router:        &fakeReactionRouter{},
		tokens:        tokens,
		engine:        gin.New(),
	}
	Handlers{
		Auth:          NewAuthHandler(f.users, tokens, nil),
		Messages:      NewMessageHandler(f.users, f.messages, f.reactions, f.router),
		Channels:      NewChannelHandler(f.channels, f.messages, f.users, nil),
		Notifications: NewNotificationHandler(f.notifications),
	}.Register(f.engine, func(c *gin.Context) {
		c.Set(middleware.UserIDKey, callerID)
		c.Next()
	})
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func strPtr(s string) *string { return &s }

func TestRegisterSuccess(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.users.On("CreateUser", mock.Anything, "alice", mock.MatchedBy(func(hash string) bool {
		return auth.CheckPassword(hash, "secret123") == nil
	})).Return(models.User{ID: "u1", Username: "alice", PasswordHash: "hash", Status: models.StatusOffline}, nil).Once()

	rec := f.do(t, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secret123"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hash")
	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.User.ID)
	f.users.AssertExpectations(t)
}

func TestRegisterUsernameTaken(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.users.On("CreateUser", mock.Anything, "alice", mock.Anything).Return(nil, repositories.ErrUsernameTaken).Once()

	rec := f.do(t, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secret123"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterInvalidPayload(t *testing.T) {
	f := newHandlerFixture(t, "")

	for _, body := range []string{`{"username":"al","password":"secret123"}`, `{"username":"alice","password":"123"}`, `nope`} {
		rec := f.do(t, http.MethodPost, "/api/auth/register", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		f := newHandlerFixture(t, "")
		f.users.On("GetUserByUsername", mock.Anything, "alice").
			Return(models.User{ID: "u1", Username: "alice", PasswordHash: hash}, nil).Once()

		rec := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret123"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			User  models.User `json:"user"`
			Token string      `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		userID, err := f.tokens.VerifyToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", userID)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newHandlerFixture(t, "")
		f.users.On("GetUserByUsername", mock.Anything, "alice").
			Return(models.User{ID: "u1", Username: "alice", PasswordHash: hash}, nil).Once()

		rec := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong-one"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newHandlerFixture(t, "")
		f.users.On("GetUserByUsername", mock.Anything, "ghost").Return(nil, repositories.ErrUserNotFound).Once()

		rec := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"ghost","password":"whatever"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestListUsersEmptyIsArray(t *testing.T) {
	f := newHandlerFixture(t, "u1")
	f.users.On("ListUsers", mock.Anything).Return(nil, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/users", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDirectHistoryUsesCaller(t *testing.T) {
	f := newHandlerFixture(t, "u1")
	f.messages.On("ListDirectMessages", mock.Anything, "u1", "u2").
		Return([]models.Message{{ID: "m1", SenderID: "u2", ReceiverID: strPtr("u1")}}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/messages/u2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	f.messages.AssertExpectations(t)
}

func TestListReactionsError(t *testing.T) {
	f := newHandlerFixture(t, "u1")
	f.reactions.On("ListReactions", mock.Anything, "m1").Return(nil, assert.AnError).Once()

	rec := f.do(t, http.MethodGet, "/api/messages/m1/reactions", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMarkMessageRead(t *testing.T) {
	t.Run("receiver", func(t *testing.T) {
		f := newHandlerFixture(t, "u1")
		f.messages.On("GetMessage", mock.Anything, "m1").
			Return(models.Message{ID: "m1", SenderID: "u2", ReceiverID: strPtr("u1")}, nil).Once()
		f.messages.On("MarkRead", mock.Anything, "m1").Return(nil).Once()

		rec := f.do(t, http.MethodPatch, "/api/messages/m1/read", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		f.messages.AssertExpectations(t)
	})

	t.Run("not receiver", func(t *testing.T) {
		f := newHandlerFixture(t, "u2")
		f.messages.On("GetMessage", mock.Anything, "m1").
			Return(models.Message{ID: "m1", SenderID: "u2", ReceiverID: strPtr("u1")}, nil).Once()

		rec := f.do(t, http.MethodPatch, "/api/messages/m1/read", "")

		assert.Equal(t, http.StatusForbidden, rec.Code)
		f.messages.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
	})

	t.Run("missing", func(t *testing.T) {
		f := newHandlerFixture(t, "u1")
		f.messages.On("GetMessage", mock.Anything, "nope").Return(nil, repositories.ErrMessageNotFound).Once()

		rec := f.do(t, http.MethodPatch, "/api/messages/nope/read", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAddReactionDerivesConversation(t *testing.T) {
	cases := []struct {
		name     string
		message  models.Message
		receiver string
		channel  string
	}{
		{name: "received direct", message: models.Message{ID: "m1", SenderID: "u2", ReceiverID: strPtr("u1")}, receiver: "u2"},
		{name: "sent direct", message: models.Message{ID: "m1", SenderID: "u1", ReceiverID: strPtr("u3")}, receiver: "u3"},
		{name: "channel", message: models.Message{ID: "m1", SenderID: "u2", ChannelID: strPtr("general")}, channel: "general"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newHandlerFixture(t, "u1")
			f.router.reaction = models.Reaction{ID: "r1", MessageID: "m1", UserID: "u1", Emoji: "👍"}
			f.messages.On("GetMessage", mock.Anything, "m1").Return(tc.message, nil).Once()

			rec := f.do(t, http.MethodPost, "/api/reactions", `{"messageId":"m1","emoji":"👍"}`)

			require.Equal(t, http.StatusCreated, rec.Code)
			assert.Equal(t, "u1", f.router.got.UserID)
			assert.Equal(t, tc.receiver, f.router.got.ReceiverID)
			assert.Equal(t, tc.channel, f.router.got.ChannelID)
			assert.Contains(t, rec.Body.String(), `"r1"`)
		})
	}
}

func TestAddReactionForbidden(t *testing.T) {
	f := newHandlerFixture(t, "u1")
	f.router.err = ws.ErrForbidden
	f.messages.On("GetMessage", mock.Anything, "m1").
		Return(models.Message{ID: "m1", SenderID: "u2", ChannelID: strPtr("secret")}, nil).Once()

	rec := f.do(t, http.MethodPost, "/api/reactions", `{"messageId":"m1","emoji":"👍"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateChannelUsesCallerAsCreator(t *testing.T) {
	f := newHandlerFixture(t, "u1")
	f.channels.On("CreateChannel", mock.Anything, models.NewChannel{Name: "general", Description: "all", CreatorID: "u1"}).
		Return(models.Channel{ID: "c1", Name: "general", CreatorID: "u1"}, nil).Once()

	rec := f.do(t, http.MethodPost, "/api/channels", `{"name":" general ","description":"all"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"c1"`)
	f.channels.AssertExpectations(t)

	rec = f.do(t, http.MethodPost, "/api/channels", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChannel(t *testing.T) {
	t.Run("public", func(t *testing.T) {
		f := newHandlerFixture(t, "u1")
		f.channels.On("GetChannel", mock.Anything, "c1").Return(models.Channel{ID: "c1", Name: "general"}, nil).Once()
		f.messages.On("ListChannelMessages", mock.Anything, "c1").Return(nil, nil).Once()
		f.channels.On("ListMembers", mock.Anything, "c1").Return([]models.User{{ID: "u2"}}, nil).Once()

		rec := f.do(t, http.MethodGet, "/api/channels/c1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Channel  models.Channel   `json:"channel"`
			Messages []models.Message `json:"messages"`
			Members  []models.User    `json:"members"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "c1", resp.Channel.ID)
		assert.NotNil(t, resp.Messages)
		assert.Len(t, resp.Members, 1)
	})

	t.Run("missing", func(t *testing.T) {
		f := newHandlerFixture(t, "u1")
		f.channels.On("GetChannel", mock.Anything, "nope").Return(nil, repositories.ErrChannelNotFound).Once()

		rec := f.do(t, http.MethodGet, "/api/channels/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("private non member", func(t *testing.T) {
		f := newHandlerFixture(t, "u1")
		f.channels.On("GetChannel", mock.Anything, "c1").Return(models.Channel{ID: "c1", IsPrivate: true}, nil).Once()
		f.channels.On("IsMember", mock.Anything, "c1", "u1").Return(false, nil).Once()

		rec := f.do(t, http.MethodGet, "/api/channels/c1", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		f.messages.AssertNotCalled(t, "ListChannelMessages", mock.Anything, mock.Anything)
	})
}

func TestAddMember(t *testing.T) {
	t.Run("self join public", func(t *testing.T) {
		f := newHandlerFixture(t, "u1")
		f.channels.On("GetChannel", mock.Anything, "c1").Return(models.Channel{ID: "c1"}, nil).Once()
		f.users.On("GetUser", mock.Anything, "u1").Return(models.User{ID: "u1"}, nil).Once()
		f.channels.On("AddMember", mock.Anything, "c1", "u1").Return(nil).Once()

		rec := f.do(t, http.MethodPost, "/api/channels/c1/members", `{"userId":"u1"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		f.channels.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("adding others requires membership", func(t *testing.T) {
		f := newHandlerFixture(t, "u1")
		f.channels.On("GetChannel", mock.Anything, "c1").Return(models.Channel{ID: "c1"}, nil).Once()
		f.channels.On("IsMember", mock.Anything, "c1", "u1").Return(false, nil).Once()

		rec := f.do(t, http.MethodPost, "/api/channels/c1/members", `{"userId":"u2"}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		f.channels.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newHandlerFixture(t, "u1")
		f.channels.On("GetChannel", mock.Anything, "c1").Return(models.Channel{ID: "c1"}, nil).Once()
		f.channels.On("IsMember", mock.Anything, "c1", "u1").Return(true, nil).Once()
		f.users.On("GetUser", mock.Anything, "ghost").Return(nil, repositories.ErrUserNotFound).Once()

		rec := f.do(t, http.MethodPost, "/api/channels/c1/members", `{"userId":"ghost"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRemoveMember(t *testing.T) {
	t.Run("leave", func(t *testing.T) {
		f := newHandlerFixture(t, "u2")
		f.channels.On("GetChannel", mock.Anything, "c1").Return(models.Channel{ID: "c1", CreatorID: "u1"}, nil).Once()
		f.channels.On("RemoveMember", mock.Anything, "c1", "u2").Return(nil).Once()

		rec := f.do(t, http.MethodDelete, "/api/channels/c1/members/u2", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("kick requires creator", func(t *testing.T) {
		f := newHandlerFixture(t, "u2")
		f.channels.On("GetChannel", mock.Anything, "c1").Return(models.Channel{ID: "c1", CreatorID: "u1"}, nil).Once()

		rec := f.do(t, http.MethodDelete, "/api/channels/c1/members/u3", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		f.channels.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNotifications(t *testing.T) {
	f := newHandlerFixture(t, "u1")
	owned := []models.Notification{{ID: "n1", UserID: "u1"}}
	f.notifications.On("ListNotifications", mock.Anything, "u1").Return(owned, nil)
	f.notifications.On("MarkRead", mock.Anything, "n1", "u1").Return(nil).Once()
	f.notifications.On("MarkRead", mock.Anything, "someone-elses", "u1").Return(repositories.ErrNotificationNotFound).Once()

	rec := f.do(t, http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"n1"`)

	rec = f.do(t, http.MethodPatch, "/api/notifications/n1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/notifications/someone-elses", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	f.notifications.AssertExpectations(t)
	f.notifications.AssertNumberOfCalls(t, "ListNotifications", 1)
}

func TestDebugRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	disabled := gin.New()
	RegisterDebugRoutes(disabled, nil, false)
	rec := httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.test", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Action == "audit_test" && env.RequestID == "req-1"
	})).Return(nil).Once()

	enabled := gin.New()
	RegisterDebugRoutes(enabled, telemetry.NewAuditEmitter(publisher, "audit.test", "chat-hub", "test"), true)
	req := httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec = httptest.NewRecorder()
	enabled.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
}
