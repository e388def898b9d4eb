package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/internal/core/ports"
	"github.com/Suja2004/WebRTC/internal/core/services"
	"github.com/Suja2004/WebRTC/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options carries transport tuning knobs. Zero values fall back to the
// defaults applied in NewWebSocketServer.
type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	AllowedOrigins []string

	// Per-connection inbound message rate. Zero disables limiting.
	MessagesPerSecond float64
	Burst             int
}

type WebSocketServer struct {
	relay    ports.RelayService
	registry ports.RegistryService
	table    *ConnTable
	auth     services.AuthService // nil when auth is disabled
	recorder ports.Recorder

	upgrader websocket.Upgrader
	opts     Options

	logger *zap.SugaredLogger
}

// NewWebSocketServer wires the transport to the relay. Every dependency
// is taken at construction; nothing is registered after Handle starts
// accepting connections.
func NewWebSocketServer(
	relay ports.RelayService,
	registry ports.RegistryService,
	table *ConnTable,
	auth services.AuthService,
	recorder ports.Recorder,
	opts Options,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 64 * 1024
	}

	s := &WebSocketServer{
		relay:    relay,
		registry: registry,
		table:    table,
		auth:     auth,
		recorder: recorder,
		opts:     opts,
		logger:   logger,
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades the request, mints a participant id and runs
// the connection's event loop. All events from one connection are
// processed sequentially, so registry effects are observed in arrival
// order.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *services.GuestClaims
	if s.auth != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		var err error
		claims, err = s.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	id := domain.ParticipantID(utils.GenerateParticipantID())
	conn := s.table.Register(id, ws)
	s.recorder.ConnectionOpened()
	s.logger.Infow("participant connected", "participant_id", id, "remote", r.RemoteAddr)

	// The client needs its id before it can join a room.
	if env, err := domain.NewEnvelope(domain.EventWelcome, domain.WelcomePayload{ID: id}); err == nil {
		if err := conn.writeJSON(env); err != nil {
			s.logger.Warnw("failed to send welcome", "participant_id", id, "error", err)
		}
	}

	ws.SetReadLimit(s.opts.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})

	var limiter *rate.Limiter
	if s.opts.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.Burst)
	}

	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan domain.Envelope, 16)
	errorChan := make(chan error, 1)

	// Closed when the processing loop exits, so the reader never blocks
	// on a channel nobody drains anymore.
	readerDone := make(chan struct{})
	defer close(readerDone)

	go func() {
		for {
			var env domain.Envelope
			if err := ws.ReadJSON(&env); err != nil {
				select {
				case errorChan <- err:
				case <-readerDone:
				}
				return
			}
			ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
			select {
			case messageChan <- env:
			case <-readerDone:
				return
			}
		}
	}()

loop:
	for {
		select {
		case env := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				s.logger.Warnw("rate limit exceeded, dropping message",
					"participant_id", id,
					"type", env.Type,
				)
				continue
			}
			if err := s.dispatch(r.Context(), id, claims, env); err != nil {
				s.logger.Infow("error handling message",
					"participant_id", id,
					"type", env.Type,
					"error", err,
				)
				s.sendError(conn, err.Error())
			}

		case <-pingTicker.C:
			if err := conn.writePing(); err != nil {
				s.logger.Debugw("ping failed", "participant_id", id, "error", err)
				break loop
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read error", "participant_id", id, "error", err)
			}
			break loop
		}
	}

	s.table.Unregister(id, conn)
	s.recorder.ConnectionClosed()

	if err := s.relay.HandleDisconnect(context.Background(), id); err != nil {
		s.logger.Errorw("disconnect cleanup failed", "participant_id", id, "error", err)
	}
	s.updateRoomStats()

	s.logger.Infow("participant disconnected", "participant_id", id)
}

func (s *WebSocketServer) dispatch(ctx context.Context, id domain.ParticipantID, claims *services.GuestClaims, env domain.Envelope) error {
	if env.Type == "" {
		return fmt.Errorf("message type is required")
	}

	switch env.Type {
	case domain.EventJoinRoom:
		var payload domain.JoinRoomPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("invalid join-room payload: %w", err)
		}
		// A room-scoped guest token only admits its own room.
		if claims != nil && claims.Room != "" && claims.Room != payload.Room {
			return fmt.Errorf("token not valid for room %s", payload.Room)
		}
		if err := s.relay.HandleJoin(ctx, id, payload); err != nil {
			return err
		}
		s.updateRoomStats()
		return nil

	case domain.EventLeaveRoom:
		var payload domain.LeaveRoomPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("invalid leave-room payload: %w", err)
		}
		if err := s.relay.HandleLeave(ctx, id, payload); err != nil {
			return err
		}
		s.updateRoomStats()
		return nil

	case domain.EventSendOffer:
		var payload domain.SendOfferPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("invalid send-offer payload: %w", err)
		}
		return s.relay.HandleOffer(ctx, id, payload)

	case domain.EventSendAnswer:
		var payload domain.SendAnswerPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("invalid send-answer payload: %w", err)
		}
		return s.relay.HandleAnswer(ctx, id, payload)

	case domain.EventSendICECandidate:
		var payload domain.SendICECandidatePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("invalid send-ice-candidate payload: %w", err)
		}
		return s.relay.HandleICECandidate(ctx, id, payload)

	case domain.EventToggleVideo:
		var payload domain.ToggleVideoPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("invalid toggle-video payload: %w", err)
		}
		return s.relay.HandleToggleVideo(ctx, id, payload)

	case domain.EventToggleAudio:
		var payload domain.ToggleAudioPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("invalid toggle-audio payload: %w", err)
		}
		return s.relay.HandleToggleAudio(ctx, id, payload)

	case domain.EventToggleScreenShare:
		var payload domain.ToggleScreenSharePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("invalid toggle-screen-share payload: %w", err)
		}
		return s.relay.HandleToggleScreenShare(ctx, id, payload)

	case domain.EventChatMessage:
		var msg domain.ChatMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return fmt.Errorf("invalid chat-message payload: %w", err)
		}
		return s.relay.HandleChat(ctx, id, msg)

	default:
		return fmt.Errorf("unknown message type: %s", env.Type)
	}
}

func (s *WebSocketServer) sendError(conn *wsConn, message string) {
	env, err := domain.NewEnvelope(domain.EventError, domain.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	conn.writeJSON(env)
}

func (s *WebSocketServer) updateRoomStats() {
	rooms, participants, err := s.registry.Stats(context.Background())
	if err != nil {
		s.logger.Debugw("failed to read registry stats", "error", err)
		return
	}
	s.recorder.RoomStats(rooms, participants)
}

// HealthCheck reports connection counts for liveness probes.
func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.table.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
