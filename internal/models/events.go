package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType discriminates websocket frames.
type EventType string

const (
	EventAuth               EventType = "auth"
	EventMessage            EventType = "message"
	EventTyping             EventType = "typing"
	EventReaction           EventType = "reaction"
	EventGetHistory         EventType = "getHistory"
	EventGetChannelMessages EventType = "getChannelMessages"

	EventUserStatus     EventType = "userStatus"
	EventHistory        EventType = "history"
	EventChannelHistory EventType = "channelHistory"
	EventAuthOK         EventType = "authOk"
	EventError          EventType = "error"
)

var (
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Inbound is a client to server frame. The set of implementations is closed:
// DecodeInbound only ever returns one of the *Event types in this file.
type Inbound interface {
	Kind() EventType
	Validate() error
}

// AuthEvent binds a user id to the connection.
type AuthEvent struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
}

func (AuthEvent) Kind() EventType { return EventAuth }

func (e AuthEvent) Validate() error {
	if e.UserID == "" {
		return missing("userId")
	}
	return nil
}

// SendMessageEvent posts a direct or channel message.
type SendMessageEvent struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId,omitempty"`
	ChannelID  string `json:"channelId,omitempty"`
	FileURL    string `json:"fileUrl,omitempty"`
}

func (SendMessageEvent) Kind() EventType { return EventMessage }

func (e SendMessageEvent) Validate() error {
	switch {
	case e.Content == "":
		return missing("content")
	case e.SenderName == "":
		return missing("senderName")
	}
	return exactlyOneTarget(e.ReceiverID, e.ChannelID)
}

// TypingEvent signals that the sender is composing a message.
type TypingEvent struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId,omitempty"`
	ChannelID  string `json:"channelId,omitempty"`
}

func (TypingEvent) Kind() EventType { return EventTyping }

func (e TypingEvent) Validate() error {
	return exactlyOneTarget(e.ReceiverID, e.ChannelID)
}

// ReactionEvent attaches an emoji to a message.
type ReactionEvent struct {
	MessageID  string `json:"messageId"`
	UserID     string `json:"userId"`
	Emoji      string `json:"emoji"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId,omitempty"`
	ChannelID  string `json:"channelId,omitempty"`
}

func (ReactionEvent) Kind() EventType { return EventReaction }

func (e ReactionEvent) Validate() error {
	switch {
	case e.MessageID == "":
		return missing("messageId")
	case e.Emoji == "":
		return missing("emoji")
	}
	return exactlyOneTarget(e.ReceiverID, e.ChannelID)
}

// GetHistoryEvent requests the direct conversation with ContactID.
type GetHistoryEvent struct {
	UserID    string `json:"userId"`
	ContactID string `json:"contactId"`
}

func (GetHistoryEvent) Kind() EventType { return EventGetHistory }

func (e GetHistoryEvent) Validate() error {
	if e.ContactID == "" {
		return missing("contactId")
	}
	return nil
}

// GetChannelMessagesEvent requests a channel's history.
type GetChannelMessagesEvent struct {
	ChannelID string `json:"channelId"`
}

func (GetChannelMessagesEvent) Kind() EventType { return EventGetChannelMessages }

func (e GetChannelMessagesEvent) Validate() error {
	if e.ChannelID == "" {
		return missing("channelId")
	}
	return nil
}

// DecodeInbound parses a client frame into its concrete event. Unknown kinds,
// including server-only kinds, yield ErrUnknownEvent; schema failures yield
// ErrInvalidPayload.
func DecodeInbound(data []byte) (Inbound, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch head.Type {
	case EventAuth:
		return decode[AuthEvent](data)
	case EventMessage:
		return decode[SendMessageEvent](data)
	case EventTyping:
		return decode[TypingEvent](data)
	case EventReaction:
		return decode[ReactionEvent](data)
	case EventGetHistory:
		return decode[GetHistoryEvent](data)
	case EventGetChannelMessages:
		return decode[GetChannelMessagesEvent](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, head.Type)
	}
}

func decode[T Inbound](data []byte) (Inbound, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidPayload, field)
}

func exactlyOneTarget(receiverID, channelID string) error {
	if (receiverID == "") == (channelID == "") {
		return fmt.Errorf("%w: exactly one of receiverId or channelId is required", ErrInvalidPayload)
	}
	return nil
}

// Outbound frames sent to clients.

// MessageEvent delivers a persisted message.
type MessageEvent struct {
	Type    EventType `json:"type"`
	Message Message   `json:"message"`
}

func NewMessageEvent(msg Message) MessageEvent {
	return MessageEvent{Type: EventMessage, Message: msg}
}

// HistoryEvent answers getHistory and getChannelMessages.
type HistoryEvent struct {
	Type     EventType `json:"type"`
	Messages []Message `json:"messages"`
}

func NewHistoryEvent(msgs []Message) HistoryEvent {
	if msgs == nil {
		msgs = []Message{}
	}
	return HistoryEvent{Type: EventHistory, Messages: msgs}
}

func NewChannelHistoryEvent(msgs []Message) HistoryEvent {
	ev := NewHistoryEvent(msgs)
	ev.Type = EventChannelHistory
	return ev
}

// TypingNotice tells peers that UserID is typing.
type TypingNotice struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"userId"`
	ChannelID  string    `json:"channelId,omitempty"`
	ReceiverID string    `json:"receiverId,omitempty"`
}

func NewTypingNotice(userID, channelID, receiverID string) TypingNotice {
	return TypingNotice{Type: EventTyping, UserID: userID, ChannelID: channelID, ReceiverID: receiverID}
}

// ReactionNotice delivers a persisted reaction.
type ReactionNotice struct {
	Type     EventType `json:"type"`
	Reaction Reaction  `json:"reaction"`
}

func NewReactionNotice(r Reaction) ReactionNotice {
	return ReactionNotice{Type: EventReaction, Reaction: r}
}

// UserStatusEvent announces a presence change.
type UserStatusEvent struct {
	Type   EventType `json:"type"`
	UserID string    `json:"userId"`
	Status string    `json:"status"`
}

func NewUserStatusEvent(userID, status string) UserStatusEvent {
	return UserStatusEvent{Type: EventUserStatus, UserID: userID, Status: status}
}

// AuthOKEvent acknowledges a successful auth.
type AuthOKEvent struct {
	Type   EventType `json:"type"`
	UserID string    `json:"userId"`
}

func NewAuthOKEvent(userID string) AuthOKEvent {
	return AuthOKEvent{Type: EventAuthOK, UserID: userID}
}

// Error codes carried by ErrorEvent.
const (
	CodeInvalidPayload   = "invalid_payload"
	CodeUnknownEvent     = "unknown_event"
	CodeUnauthenticated  = "unauthenticated"
	CodeIdentityMismatch = "identity_mismatch"
	CodeNotFound         = "not_found"
	CodeForbidden        = "forbidden"
	CodeInternal         = "internal"
)

// ErrorEvent reports a rejected frame back to its sender.
type ErrorEvent struct {
	Type        EventType `json:"type"`
	Code        string    `json:"code"`
	Error       string    `json:"error"`
	RequestType EventType `json:"requestType,omitempty"`
}

func NewErrorEvent(code, msg string, requestType EventType) ErrorEvent {
	return ErrorEvent{Type: EventError, Code: code, Error: msg, RequestType: requestType}
}

// FrameType returns the type tag of a raw frame, or "" when it has none.
func FrameType(data []byte) EventType {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	return head.Type
}
