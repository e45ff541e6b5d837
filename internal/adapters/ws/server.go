// Package ws serves the session transport over websockets and provides a
// client for tools and Go endpoints.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	service "github.com/okian/vigil/internal/app"

	"github.com/okian/vigil/internal/adapters/transport"
	"github.com/okian/vigil/internal/adapters/wire"
	"github.com/okian/vigil/internal/auth"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Defaults.
const (
	DefaultReadLimit    = 1 << 20
	DefaultWriteTimeout = 5 * time.Second
)

// Verifier checks a room token.
type Verifier interface {
	Verify(token string) (auth.Claims, error)
}

// Dispatcher handles decoded client messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, c service.Conn, m wire.Message) error
}

// Members hands out hub memberships.
type Members interface {
	Connect() *transport.Member
	Disconnect(m *transport.Member)
}

// Handler upgrades /ws?token=... requests. The token decides the role and
// ids of the connection for its whole life.
type Handler struct {
	verifier   Verifier
	dispatcher Dispatcher
	members    Members

	readLimit    int64
	writeTimeout time.Duration
	origins      []string
	logger       logger.Logger
}

// NewHandler returns a websocket Handler.
func NewHandler(v Verifier, d Dispatcher, m Members, opts ...Option) *Handler {
	h := &Handler{
		verifier:     v,
		dispatcher:   d,
		members:      m,
		readLimit:    DefaultReadLimit,
		writeTimeout: DefaultWriteTimeout,
		logger:       logger.Get(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("ws")
	return h
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func reject(w http.ResponseWriter, status int, code string, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: code, Message: err.Error()})
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		reject(w, http.StatusUnauthorized, "unauthorized", ErrMissingToken)
		return
	}
	claims, err := h.verifier.Verify(token)
	if err != nil {
		reject(w, http.StatusUnauthorized, "unauthorized", err)
		return
	}

	// Server read/write timeouts would otherwise survive the hijack.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	conn.SetReadLimit(h.readLimit)

	member := h.members.Connect()
	metrics.AddWebsocketConnections(1)
	defer func() {
		h.members.Disconnect(member)
		metrics.AddWebsocketConnections(-1)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	fields := []logger.Field{
		logger.String("member", member.ID()),
		logger.String("role", string(claims.Role)),
		logger.MeetingID(claims.MeetingID),
	}
	h.logger.Debug(ctx, "websocket connected", fields...)

	go h.writeLoop(ctx, cancel, conn, member)
	status, reason := h.readLoop(ctx, conn, service.Conn{Claims: claims, Member: member})
	cancel()
	_ = conn.Close(status, reason)
	h.logger.Debug(ctx, "websocket closed", append(fields, logger.String("reason", reason))...)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, c service.Conn) (websocket.StatusCode, string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if s := websocket.CloseStatus(err); s != -1 {
				return websocket.StatusNormalClosure, ""
			}
			if ctx.Err() != nil {
				select {
				case <-c.Member.Done():
					return websocket.StatusPolicyViolation, "evicted"
				default:
				}
				return websocket.StatusGoingAway, "closing"
			}
			return websocket.StatusInternalError, "read failed"
		}
		metrics.RecordWebsocketMessage("in")

		msg, err := wire.DecodeFromClient(data)
		if err == nil {
			err = h.dispatcher.Dispatch(ctx, c, msg)
		}
		if err != nil {
			h.logger.Debug(ctx, "message rejected",
				logger.String("member", c.Member.ID()),
				logger.String("kind", string(msg.Kind)),
				logger.Error(err),
			)
			if werr := h.write(ctx, conn, wire.MustEncode(wire.KindError, wire.Notice{Message: err.Error()})); werr != nil {
				return websocket.StatusInternalError, "write failed"
			}
		}
	}
}

// writeLoop drains the member's frames until the connection ends or the
// hub evicts the member.
func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, m *transport.Member) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.Done():
			_ = conn.Close(websocket.StatusPolicyViolation, "evicted")
			return
		case frame := <-m.Outbound():
			if err := h.write(ctx, conn, frame); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Debug(ctx, "websocket write failed", logger.String("member", m.ID()), logger.Error(err))
				}
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return err
	}
	metrics.RecordWebsocketMessage("out")
	return nil
}
