package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInboundKinds(t *testing.T) {
	cases := []struct {
		raw  string
		want Inbound
	}{
		{`{"type":"auth","userId":"u1"}`, AuthEvent{UserID: "u1"}},
		{`{"type":"message","senderId":"a","senderName":"A","content":"hi","receiverId":"b"}`,
			SendMessageEvent{SenderID: "a", SenderName: "A", Content: "hi", ReceiverID: "b"}},
		{`{"type":"typing","senderId":"a","channelId":"c"}`, TypingEvent{SenderID: "a", ChannelID: "c"}},
		{`{"type":"reaction","messageId":"m","userId":"a","emoji":"👍","senderId":"a","receiverId":"b"}`,
			ReactionEvent{MessageID: "m", UserID: "a", Emoji: "👍", SenderID: "a", ReceiverID: "b"}},
		{`{"type":"getHistory","userId":"a","contactId":"b"}`, GetHistoryEvent{UserID: "a", ContactID: "b"}},
		{`{"type":"getChannelMessages","channelId":"c"}`, GetChannelMessagesEvent{ChannelID: "c"}},
	}

	for _, tc := range cases {
		got, err := DecodeInbound([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.want.Kind(), got.Kind())
	}
}

func TestDecodeInboundRejectsUnknownAndServerKinds(t *testing.T) {
	for _, raw := range []string{
		`{"type":"shout"}`,
		`{"type":"userStatus","userId":"a","status":"online"}`,
		`{"type":"history","messages":[]}`,
		`{}`,
	} {
		_, err := DecodeInbound([]byte(raw))
		assert.ErrorIs(t, err, ErrUnknownEvent, raw)
	}
}

func TestDecodeInboundValidation(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"auth"}`,
		`{"type":"message","senderId":"a","senderName":"A","content":"hi"}`,
		`{"type":"message","senderId":"a","senderName":"A","content":"hi","receiverId":"b","channelId":"c"}`,
		`{"type":"message","senderId":"a","senderName":"A","content":"","receiverId":"b"}`,
		`{"type":"typing","senderId":"a"}`,
		`{"type":"reaction","messageId":"m","userId":"a","senderId":"a","channelId":"c"}`,
		`{"type":"getHistory","userId":"a"}`,
		`{"type":"getChannelMessages"}`,
		`{"type":"auth","userId":42}`,
	} {
		_, err := DecodeInbound([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidPayload, raw)
	}
}

func TestOutboundFramesCarryType(t *testing.T) {
	frames := []any{
		NewMessageEvent(Message{ID: "m"}),
		NewHistoryEvent(nil),
		NewChannelHistoryEvent(nil),
		NewTypingNotice("a", "", "b"),
		NewReactionNotice(Reaction{ID: "r"}),
		NewUserStatusEvent("a", StatusOnline),
		NewAuthOKEvent("a"),
		NewErrorEvent(CodeForbidden, "nope", EventMessage),
	}
	want := []EventType{EventMessage, EventHistory, EventChannelHistory, EventTyping, EventReaction, EventUserStatus, EventAuthOK, EventError}

	for i, f := range frames {
		raw, err := json.Marshal(f)
		require.NoError(t, err)
		var head struct {
			Type     EventType `json:"type"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(raw, &head))
		assert.Equal(t, want[i], head.Type)
	}

	raw, _ := json.Marshal(NewHistoryEvent(nil))
	assert.JSONEq(t, `{"type":"history","messages":[]}`, string(raw))
}

func TestNewMessageValidate(t *testing.T) {
	assert.NoError(t, NewMessage{SenderID: "a", ReceiverID: "b", Content: "x"}.Validate())
	assert.NoError(t, NewMessage{SenderID: "a", ChannelID: "c", Content: "x"}.Validate())
	assert.ErrorIs(t, NewMessage{SenderID: "a", Content: "x"}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, NewMessage{SenderID: "a", ReceiverID: "b", ChannelID: "c", Content: "x"}.Validate(), ErrInvalidMessage)
}

func TestPreviewCountsRunes(t *testing.T) {
	assert.Equal(t, "héllo", Preview("héllo", 50))
	assert.Equal(t, "hé", Preview("héllo", 2))
}
