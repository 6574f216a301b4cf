package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chat-hub/internal/models"
	"chat-hub/internal/observability"
	"chat-hub/internal/repositories"
)

var (
	ErrUnauthenticated  = errors.New("connection is not authenticated")
	ErrIdentityMismatch = errors.New("identity does not match the authenticated session")
	ErrForbidden        = errors.New("not a member of this conversation")
)

// Routing keys of domain events published after persistence.
const (
	RoutingMessageCreated  = "chat.message.created"
	RoutingReactionAdded   = "chat.reaction.added"
	RoutingPresenceChanged = "chat.presence.changed"
)

const previewLength = 50

// Stores groups the storage collaborators the router consumes.
type Stores struct {
	Users         repositories.UserRepository
	Messages      repositories.MessageRepository
	Channels      repositories.ChannelRepository
	Reactions     repositories.ReactionRepository
	Notifications repositories.NotificationRepository
}

// EventPublisher receives domain events after they are persisted.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Router resolves recipients for events and delivers them through the
// Registry.
type Router struct {
	sessions  *Registry
	typing    *TypingTracker
	stores    Stores
	publisher EventPublisher
	tracer    trace.Tracer
	presence  *userLocks
}

// NewRouter constructs a Router. publisher may be nil.
func NewRouter(sessions *Registry, typing *TypingTracker, stores Stores, publisher EventPublisher) *Router {
	return &Router{
		sessions:  sessions,
		typing:    typing,
		stores:    stores,
		publisher: publisher,
		tracer:    otel.Tracer("chat-hub/ws"),
		presence:  newUserLocks(),
	}
}

// Sessions returns the registry the router delivers through.
func (r *Router) Sessions() *Registry {
	return r.sessions
}

// Connect binds userID to conn, marks the user online and announces it to
// everyone else. A connection it replaces is closed.
func (r *Router) Connect(ctx context.Context, userID string, conn Conn) error {
	ctx, span := r.tracer.Start(ctx, "ws.connect", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if _, err := r.stores.Users.GetUser(ctx, userID); err != nil {
		return err
	}

	unlock := r.presence.lock(userID)
	defer unlock()

	if replaced := r.sessions.Register(userID, conn); replaced != nil {
		jww.INFO.Printf("session for %s replaced by a new connection", userID)
		_ = replaced.Close(CloseSessionReplaced, "session replaced")
	}

	if err := r.stores.Users.UpdateStatus(ctx, userID, models.StatusOnline); err != nil {
		jww.ERROR.Printf("update status online for %s: %v", userID, err)
	}
	r.announcePresence(ctx, userID, models.StatusOnline)
	return nil
}

// Disconnect removes the session of conn. Nothing happens when conn was
// already replaced or removed, so duplicate close events are harmless.
// Presence changes of one user are applied in order: a Connect racing with
// the cleanup of the previous connection always wins.
func (r *Router) Disconnect(ctx context.Context, userID string, conn Conn) {
	unlock := r.presence.lock(userID)
	defer unlock()

	if !r.sessions.RemoveIf(userID, conn) {
		return
	}
	ctx, span := r.tracer.Start(ctx, "ws.disconnect", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	r.markOffline(ctx, userID)
	r.announcePresence(ctx, userID, models.StatusOffline)
}

// Shutdown closes every session with code and persists each closed user as
// offline. The connections' own cleanup becomes a no-op afterwards.
func (r *Router) Shutdown(ctx context.Context, code int, reason string) int {
	ctx, span := r.tracer.Start(ctx, "ws.shutdown")
	defer span.End()

	userIDs := r.sessions.CloseAll(code, reason)
	for _, userID := range userIDs {
		unlock := r.presence.lock(userID)
		if _, ok := r.sessions.Lookup(userID); !ok {
			r.markOffline(ctx, userID)
			r.publish(ctx, RoutingPresenceChanged, "presence_changed", map[string]string{"user_id": userID, "status": models.StatusOffline})
		}
		unlock()
	}
	return len(userIDs)
}

func (r *Router) markOffline(ctx context.Context, userID string) {
	r.typing.ClearUser(userID)
	if err := r.stores.Users.UpdateStatus(ctx, userID, models.StatusOffline); err != nil {
		jww.ERROR.Printf("update status offline for %s: %v", userID, err)
	}
}

func (r *Router) announcePresence(ctx context.Context, userID, status string) {
	payload, err := json.Marshal(models.NewUserStatusEvent(userID, status))
	if err != nil {
		jww.ERROR.Printf("encode presence: %v", err)
		return
	}
	n := r.sessions.BroadcastExcept(payload, userID)
	observability.ObserveFanout(string(models.EventUserStatus), n)
	r.publish(ctx, RoutingPresenceChanged, "presence_changed", map[string]string{"user_id": userID, "status": status})
}

// RouteMessage persists a message from senderID and fans it out. Channel
// messages reach every connected member; direct messages reach the sender and
// the receiver.
func (r *Router) RouteMessage(ctx context.Context, senderID string, ev models.SendMessageEvent) (models.Message, error) {
	ctx, span := r.tracer.Start(ctx, "ws.route.message")
	defer span.End()

	var recipients []string
	if ev.ChannelID != "" {
		members, err := r.channelMembers(ctx, ev.ChannelID, senderID)
		if err != nil {
			return models.Message{}, err
		}
		recipients = members
	} else {
		if _, err := r.stores.Users.GetUser(ctx, ev.ReceiverID); err != nil {
			return models.Message{}, err
		}
		recipients = []string{senderID, ev.ReceiverID}
	}

	msg, err := r.stores.Messages.CreateMessage(ctx, models.NewMessage{
		SenderID:   senderID,
		ReceiverID: ev.ReceiverID,
		ChannelID:  ev.ChannelID,
		Content:    ev.Content,
		FileURL:    ev.FileURL,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}
	span.SetAttributes(attribute.String("message.id", msg.ID), attribute.Int("recipients", len(recipients)))

	r.deliver(models.EventMessage, recipients, models.NewMessageEvent(msg))

	kind := models.NotificationMessage
	notify := []string{ev.ReceiverID}
	if ev.ChannelID != "" {
		kind = models.NotificationChannel
		notify = without(recipients, senderID)
	}
	for _, userID := range notify {
		_, err := r.stores.Notifications.CreateNotification(ctx, models.NewNotification{
			UserID:         userID,
			SenderName:     ev.SenderName,
			MessagePreview: models.Preview(ev.Content, previewLength),
			Type:           kind,
		})
		if err != nil {
			jww.ERROR.Printf("create notification for %s: %v", userID, err)
		}
	}

	r.publish(ctx, RoutingMessageCreated, "message_created", msg)
	return msg, nil
}

// RouteTyping records the typing signal and notifies peers, never the sender.
func (r *Router) RouteTyping(ctx context.Context, senderID string, ev models.TypingEvent) error {
	ctx, span := r.tracer.Start(ctx, "ws.route.typing")
	defer span.End()

	if ev.ChannelID != "" {
		members, err := r.channelMembers(ctx, ev.ChannelID, senderID)
		if err != nil {
			return err
		}
		r.typing.MarkTyping(ChannelKey(ev.ChannelID), senderID)
		r.deliver(models.EventTyping, without(members, senderID), models.NewTypingNotice(senderID, ev.ChannelID, ""))
		return nil
	}

	r.typing.MarkTyping(DirectKey(senderID, ev.ReceiverID), senderID)
	r.deliver(models.EventTyping, without([]string{ev.ReceiverID}, senderID), models.NewTypingNotice(senderID, "", ev.ReceiverID))
	return nil
}

// RouteReaction persists a reaction by userID and delivers it to the channel
// members or to both participants of the direct conversation.
func (r *Router) RouteReaction(ctx context.Context, userID string, ev models.ReactionEvent) (models.Reaction, error) {
	ctx, span := r.tracer.Start(ctx, "ws.route.reaction")
	defer span.End()

	msg, err := r.stores.Messages.GetMessage(ctx, ev.MessageID)
	if err != nil {
		return models.Reaction{}, err
	}

	var recipients []string
	if ev.ChannelID != "" {
		if msg.ChannelID == nil || *msg.ChannelID != ev.ChannelID {
			return models.Reaction{}, ErrForbidden
		}
		if recipients, err = r.channelMembers(ctx, ev.ChannelID, userID); err != nil {
			return models.Reaction{}, err
		}
	} else {
		if !inDirectConversation(msg, userID, ev.ReceiverID) {
			return models.Reaction{}, ErrForbidden
		}
		recipients = []string{userID, ev.ReceiverID}
	}

	reaction, err := r.stores.Reactions.AddReaction(ctx, ev.MessageID, userID, ev.Emoji)
	if err != nil {
		return models.Reaction{}, fmt.Errorf("add reaction: %w", err)
	}

	r.deliver(models.EventReaction, recipients, models.NewReactionNotice(reaction))
	r.publish(ctx, RoutingReactionAdded, "reaction_added", reaction)
	return reaction, nil
}

// SendHistory replies to conn with the direct conversation between userID and
// contactID.
func (r *Router) SendHistory(ctx context.Context, conn Conn, userID, contactID string) error {
	ctx, span := r.tracer.Start(ctx, "ws.history")
	defer span.End()

	msgs, err := r.stores.Messages.ListDirectMessages(ctx, userID, contactID)
	if err != nil {
		return fmt.Errorf("list direct messages: %w", err)
	}
	return reply(conn, models.NewHistoryEvent(msgs))
}

// SendChannelHistory replies to conn with a channel's messages. userID must
// be a member.
func (r *Router) SendChannelHistory(ctx context.Context, conn Conn, userID, channelID string) error {
	ctx, span := r.tracer.Start(ctx, "ws.channel_history")
	defer span.End()

	member, err := r.stores.Channels.IsMember(ctx, channelID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return ErrForbidden
	}
	msgs, err := r.stores.Messages.ListChannelMessages(ctx, channelID)
	if err != nil {
		return fmt.Errorf("list channel messages: %w", err)
	}
	return reply(conn, models.NewChannelHistoryEvent(msgs))
}

// channelMembers returns the member ids of channelID, requiring userID to be
// one of them.
func (r *Router) channelMembers(ctx context.Context, channelID, userID string) ([]string, error) {
	members, err := r.stores.Channels.ListMembers(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("list channel members: %w", err)
	}
	ids := make([]string, 0, len(members))
	isMember := false
	for _, m := range members {
		ids = append(ids, m.ID)
		if m.ID == userID {
			isMember = true
		}
	}
	if !isMember {
		return nil, ErrForbidden
	}
	return ids, nil
}

// deliver sends frame once to each distinct registered recipient.
func (r *Router) deliver(event models.EventType, userIDs []string, frame any) int {
	payload, err := json.Marshal(frame)
	if err != nil {
		jww.ERROR.Printf("encode %s frame: %v", event, err)
		return 0
	}

	delivered := 0
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup || userID == "" {
			continue
		}
		seen[userID] = struct{}{}
		if r.sessions.Send(userID, payload) {
			delivered++
		}
	}
	observability.ObserveFanout(string(event), delivered)
	return delivered
}

func (r *Router) publish(ctx context.Context, routingKey, name string, payload any) {
	if r.publisher == nil {
		return
	}
	traceID := trace.SpanContextFromContext(ctx).TraceID().String()
	envelope := observability.NewEnvelope("domain_events", name, payload, observability.BuildHeaders("", traceID))
	if err := r.publisher.Publish(ctx, routingKey, envelope); err != nil {
		observability.IncAMQPPublishError()
		jww.WARN.Printf("publish %s: %v", routingKey, err)
	}
}

func reply(conn Conn, frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if !conn.Ready() {
		return ErrConnClosed
	}
	return conn.Send(payload)
}

func inDirectConversation(msg models.Message, a, b string) bool {
	if msg.IsChannel() || msg.ReceiverID == nil {
		return false
	}
	receiver := *msg.ReceiverID
	return (msg.SenderID == a && receiver == b) || (msg.SenderID == b && receiver == a)
}

func without(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
