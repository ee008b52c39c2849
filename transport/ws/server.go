package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"preview-lab/auth"
	"preview-lab/domain"
	"preview-lab/domain/event"
	"preview-lab/errors"
	"preview-lab/ratelimit"
	"preview-lab/services"
)

// Handler upgrades inbound connections and runs their lifecycle:
// authenticate within the handshake timeout, rate limit, register,
// dispatch messages, clean up on any form of disconnect.
type Handler struct {
	log              *slog.Logger
	service          services.ISessionService
	authenticator    *auth.Authenticator
	limiter          *ratelimit.Limiter
	upgrader         websocket.Upgrader
	handshakeTimeout time.Duration
	operationTimeout time.Duration
	sendBuffer       int
}

func NewHandler(log *slog.Logger, service services.ISessionService,
	authenticator *auth.Authenticator, limiter *ratelimit.Limiter,
	handshakeTimeout, operationTimeout time.Duration, sendBuffer int) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		authenticator: authenticator,
		limiter:       limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin is the normal case: the CMS frontend is
			// served from its own host.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		handshakeTimeout: handshakeTimeout,
		operationTimeout: operationTimeout,
		sendBuffer:       sendBuffer,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerFromRequest(r)

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "error", err)
		return
	}

	connectionID := uuid.NewString()
	conn := newConn(connectionID, socket, h.sendBuffer, h.log)

	// The request context dies with the upgrade; handshake and
	// operations run on their own bounded contexts. The write pump only
	// starts once the handshake holds, so a rejection can be written
	// synchronously.
	identity, err := h.handshake(token, connectionID)
	if err != nil {
		h.reject(conn, err)
		return
	}

	go conn.writePump()
	h.service.Register(identity, conn)
	h.log.Info("Connection established", "connection", connectionID, "subject", identity.SubjectID)

	conn.readPump(func(data []byte) {
		h.dispatch(conn, identity, data)
	})

	cleanupCtx, cancel := context.WithTimeout(context.Background(), h.operationTimeout)
	defer cancel()
	h.service.Disconnect(cleanupCtx, connectionID)
	conn.Close()
	h.log.Info("Connection closed", "connection", connectionID, "subject", identity.SubjectID)
}

// handshake authenticates the token and counts the connection against
// the actor's rate limit, all within the handshake timeout.
func (h *Handler) handshake(token, connectionID string) (domain.Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.handshakeTimeout)
	defer cancel()

	if token == "" {
		return domain.Identity{}, errors.ErrAuthentication
	}
	identity, err := h.authenticator.ValidateToken(token, connectionID)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := h.limiter.Allow(ctx, identity.SubjectID); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}

// reject sends exactly one error frame and closes. No room logic has
// run at this point.
func (h *Handler) reject(conn *Conn, err error) {
	evt := event.ErrorEvent{
		Meta:    event.NewMeta("", ""),
		Code:    errors.ReasonCode(err),
		Message: err.Error(),
	}
	if err := conn.writeDirect(evt); err != nil {
		h.log.Debug("Rejection frame not delivered", "connection", conn.ID(), "error", err)
	}
	conn.Close()
	h.log.Info("Handshake rejected", "connection", conn.ID(), "code", errors.ReasonCode(err))
}
