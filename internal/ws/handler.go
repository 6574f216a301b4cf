package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/otel"

	"chat-hub/internal/auth"
	"chat-hub/internal/models"
	"chat-hub/internal/observability"
	"chat-hub/internal/repositories"
	"chat-hub/internal/telemetry"
)

const (
	wsKind          = "hub"
	lifecycleRoute  = "ws_events.hub"
	internalMessage = "internal error"
)

// TokenVerifier resolves a bearer token to the user id it was issued for.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// Handler upgrades HTTP requests to websocket sessions and runs the per
// connection state machine.
type Handler struct {
	router   *Router
	tokens   TokenVerifier
	audit    *telemetry.AuditEmitter
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler. With a nil tokens verifier the auth frame
// only needs a user id. An empty origins list, or one containing "*", accepts
// any origin.
func NewHandler(router *Router, tokens TokenVerifier, audit *telemetry.AuditEmitter, origins []string) *Handler {
	return &Handler{
		router: router,
		tokens: tokens,
		audit:  audit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// Handle upgrades the request and serves the connection until it closes.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-hub/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request.WithContext(ctx), nil)
	if err != nil {
		jww.WARN.Printf("websocket upgrade failed: %v", err)
		return
	}

	meta := observability.MetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)

	observability.IncWSActive(wsKind)
	observability.IncWSEvent(wsKind, "ws_connect")
	h.publishLifecycle(ctx, "ws_connect", info, "", "")
	jww.DEBUG.Printf("websocket %s connected from %s", info.ConnID, info.IP)

	// The session outlives the HTTP request that started it.
	go h.serve(context.WithoutCancel(ctx), client)
}

// session is the per connection state. Only the read loop touches it.
type session struct {
	handler *Handler
	client  *Client
	ctx     context.Context
	userID  string
}

func (s *session) authenticated() bool {
	return s.userID != ""
}

func (h *Handler) serve(ctx context.Context, client *Client) {
	s := &session{handler: h, client: client, ctx: ctx}
	done := make(chan struct{})
	var closeReason string

	defer func() {
		close(done)
		if s.authenticated() {
			h.router.Disconnect(ctx, s.userID, client)
		}
		_ = client.Close(websocket.CloseNormalClosure, "")

		info := client.Info()
		observability.DecWSActive(wsKind)
		observability.IncWSEvent(wsKind, "ws_disconnect")
		h.publishLifecycle(ctx, "ws_disconnect", info, s.userID, closeReason)
		jww.DEBUG.Printf("websocket %s (user %q) closed: %s", info.ConnID, s.userID, closeReason)
	}()

	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go keepAlive(client, done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			// A connection closed by the server (for example on replacement) is
			// not reported as an error.
			if client.Ready() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				observability.IncWSEvent(wsKind, "ws_error")
				h.publishLifecycle(ctx, "ws_error", client.Info(), s.userID, closeReason)
			}
			return
		}
		if msgType != websocket.TextMessage {
			s.replyError(models.CodeInvalidPayload, "only text frames are accepted", "")
			continue
		}
		s.handleFrame(data)
	}
}

func keepAlive(client *Client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}

// handleFrame processes one inbound frame. Failures are reported to the
// sender and never end the session.
func (s *session) handleFrame(data []byte) {
	kind := models.FrameType(data)
	defer func() {
		if r := recover(); r != nil {
			jww.ERROR.Printf("panic handling %q frame on %s: %v", kind, s.client.Info().ConnID, r)
			s.replyError(models.CodeInternal, internalMessage, kind)
		}
	}()

	ev, err := models.DecodeInbound(data)
	if err == nil {
		observability.IncWSEvent(wsKind, "frame_"+string(ev.Kind()))
		err = s.dispatch(ev)
	}
	if err != nil {
		s.fail(err, kind)
	}
}

func (s *session) dispatch(ev models.Inbound) error {
	if e, ok := ev.(models.AuthEvent); ok {
		return s.authenticate(e)
	}
	if !s.authenticated() {
		return ErrUnauthenticated
	}

	r := s.handler.router
	switch e := ev.(type) {
	case models.SendMessageEvent:
		if err := s.bind(&e.SenderID); err != nil {
			return err
		}
		_, err := r.RouteMessage(s.ctx, s.userID, e)
		return err
	case models.TypingEvent:
		if err := s.bind(&e.SenderID); err != nil {
			return err
		}
		return r.RouteTyping(s.ctx, s.userID, e)
	case models.ReactionEvent:
		if err := s.bind(&e.UserID, &e.SenderID); err != nil {
			return err
		}
		_, err := r.RouteReaction(s.ctx, s.userID, e)
		return err
	case models.GetHistoryEvent:
		if err := s.bind(&e.UserID); err != nil {
			return err
		}
		return r.SendHistory(s.ctx, s.client, s.userID, e.ContactID)
	case models.GetChannelMessagesEvent:
		return r.SendChannelHistory(s.ctx, s.client, s.userID, e.ChannelID)
	default:
		return fmt.Errorf("%w: %q", models.ErrUnknownEvent, ev.Kind())
	}
}

// bind fills omitted identity fields with the session user and rejects ones
// naming somebody else.
func (s *session) bind(fields ...*string) error {
	for _, f := range fields {
		switch *f {
		case "":
			*f = s.userID
		case s.userID:
		default:
			return ErrIdentityMismatch
		}
	}
	return nil
}

func (s *session) authenticate(e models.AuthEvent) error {
	if s.authenticated() {
		if e.UserID != s.userID {
			return ErrIdentityMismatch
		}
		return s.reply(models.NewAuthOKEvent(s.userID))
	}

	info := s.client.Info()
	if tokens := s.handler.tokens; tokens != nil {
		subject, err := tokens.VerifyToken(e.Token)
		if err != nil {
			s.handler.audit.Emit(s.ctx, "WARN", "ws_auth_failed", "invalid token", info.RequestID, e.UserID)
			return err
		}
		if subject != e.UserID {
			s.handler.audit.Emit(s.ctx, "WARN", "ws_auth_failed", "token subject mismatch", info.RequestID, e.UserID)
			return ErrIdentityMismatch
		}
	}

	if err := s.handler.router.Connect(s.ctx, e.UserID, s.client); err != nil {
		return err
	}
	s.userID = e.UserID
	s.client.info.UserID = e.UserID
	s.handler.audit.Emit(s.ctx, "INFO", "ws_auth", "websocket session authenticated", info.RequestID, e.UserID)
	return s.reply(models.NewAuthOKEvent(e.UserID))
}

func (s *session) fail(err error, kind models.EventType) {
	code := errorCode(err)
	msg := err.Error()
	if code == models.CodeInternal {
		jww.ERROR.Printf("handling %q frame for user %q: %v", kind, s.userID, err)
		msg = internalMessage
	} else {
		jww.DEBUG.Printf("rejected %q frame for user %q: %v", kind, s.userID, err)
	}
	s.replyError(code, msg, kind)
}

func (s *session) replyError(code, msg string, kind models.EventType) {
	if err := s.reply(models.NewErrorEvent(code, msg, kind)); err != nil {
		jww.DEBUG.Printf("error frame to %s not delivered: %v", s.client.Info().ConnID, err)
	}
}

func (s *session) reply(frame any) error {
	return reply(s.client, frame)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidPayload), errors.Is(err, models.ErrInvalidMessage):
		return models.CodeInvalidPayload
	case errors.Is(err, models.ErrUnknownEvent):
		return models.CodeUnknownEvent
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		return models.CodeUnauthenticated
	case errors.Is(err, ErrIdentityMismatch):
		return models.CodeIdentityMismatch
	case errors.Is(err, ErrForbidden):
		return models.CodeForbidden
	case errors.Is(err, repositories.ErrUserNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrChannelNotFound):
		return models.CodeNotFound
	default:
		return models.CodeInternal
	}
}

func (h *Handler) publishLifecycle(ctx context.Context, event string, info ConnInfo, userID, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        wsKind,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   userID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	envelope := observability.NewEnvelope("ws_events", event, payload, observability.BuildHeaders(info.RequestID, info.TraceID))
	if err := observability.PublishEvent(ctx, lifecycleRoute, envelope); err != nil {
		jww.DEBUG.Printf("publish %s: %v", event, err)
	}
}
