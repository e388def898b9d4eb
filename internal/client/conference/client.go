package conference

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Suja2004/WebRTC/internal/client/media"
	"github.com/Suja2004/WebRTC/internal/client/peer"
	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/pkg/retry"
	"github.com/Suja2004/WebRTC/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// RemoteParticipant is the client-side view of another room member.
type RemoteParticipant struct {
	ID      domain.ParticipantID
	Name    string
	Email   string
	VideoOn bool
	AudioOn bool
	Sharing bool
}

// Events is the optional callback set an application can attach to a
// client. Every callback runs on the client's dispatch goroutine, so
// handlers must not block.
type Events struct {
	OnParticipantJoined func(p RemoteParticipant)
	OnParticipantLeft   func(id domain.ParticipantID, name string)
	OnChatMessage       func(msg domain.ChatMessage)
	OnRemoteTrack       func(id domain.ParticipantID, track *webrtc.TrackRemote)
	OnError             func(message string)
}

// Options configures a conference client.
type Options struct {
	ServerURL  string
	Name       string
	Email      string
	ICEServers []webrtc.ICEServer
	Retry      retry.Config
}

// Client is one conference participant: it speaks the signaling
// protocol over a websocket and maintains one peer connection per
// remote member. All inbound events are processed on a single
// goroutine, so handlers observe a consistent roster.
type Client struct {
	opts   Options
	events Events
	logger *zap.SugaredLogger

	conn    *websocket.Conn
	writeMu sync.Mutex

	id    domain.ParticipantID
	room  domain.RoomID
	peers *peer.Manager
	media *media.Source

	mu           sync.RWMutex
	participants map[domain.ParticipantID]*RemoteParticipant
	chat         []domain.ChatMessage

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the signaling server and waits for the welcome frame
// that assigns this client its id. The dial is retried per the retry
// configuration.
func Dial(ctx context.Context, opts Options, events Events, logger *zap.SugaredLogger) (*Client, error) {
	conn, err := retry.RetryWithResult(ctx, opts.Retry, func() (*websocket.Conn, error) {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, opts.ServerURL, nil)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.ServerURL, err)
	}

	c := &Client{
		opts:         opts,
		events:       events,
		logger:       logger,
		conn:         conn,
		participants: make(map[domain.ParticipantID]*RemoteParticipant),
		done:         make(chan struct{}),
	}

	var env domain.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read welcome: %w", err)
	}
	if env.Type != domain.EventWelcome {
		conn.Close()
		return nil, fmt.Errorf("expected welcome, got %q", env.Type)
	}
	var welcome domain.WelcomePayload
	if err := json.Unmarshal(env.Payload, &welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to decode welcome: %w", err)
	}
	c.id = welcome.ID

	source, err := media.NewSource(string(c.id), logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.media = source

	c.peers = peer.NewManager(opts.ICEServers, peer.Observers{
		OnRemoteTrack:           c.handleRemoteTrack,
		OnLocalCandidate:        c.handleLocalCandidate,
		OnRenegotiationOffer:    c.handleRenegotiationOffer,
		OnConnectionStateChange: c.handleConnectionState,
	}, logger)

	go c.readLoop()

	return c, nil
}

// ID returns the server-assigned participant id.
func (c *Client) ID() domain.ParticipantID {
	return c.id
}

// Join announces this client to a room. Peer connections are not opened
// here; existing members offer to us once they learn we joined.
func (c *Client) Join(room domain.RoomID) error {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()

	return c.send(domain.EventJoinRoom, domain.JoinRoomPayload{
		Email: c.opts.Email,
		Name:  c.opts.Name,
		Room:  room,
	})
}

// Leave tears the client out of its room. Media stops first so no
// writer touches a closing connection, then every peer connection is
// closed, then the room is told.
func (c *Client) Leave() error {
	c.mu.Lock()
	room := c.room
	c.room = ""
	c.participants = make(map[domain.ParticipantID]*RemoteParticipant)
	c.mu.Unlock()

	if room == "" {
		return nil
	}

	c.media.SetAudioEnabled(false)
	c.media.SetVideoEnabled(false)
	c.peers.CloseAll()

	return c.send(domain.EventLeaveRoom, domain.LeaveRoomPayload{Room: room})
}

// Close leaves the room if needed and releases the websocket and media
// writers. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.Leave()
		c.media.Stop()
		close(c.done)
		c.conn.Close()
	})
	return err
}

// PeerCount returns the number of live peer connections.
func (c *Client) PeerCount() int {
	return c.peers.Count()
}

// ConnectedPeerCount returns how many peer connections are fully
// established.
func (c *Client) ConnectedPeerCount() int {
	return c.peers.ConnectedCount()
}

// Participants returns a snapshot of the current roster.
func (c *Client) Participants() []RemoteParticipant {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]RemoteParticipant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, *p)
	}
	return out
}

// ChatHistory returns a copy of all chat messages seen this session,
// own messages included.
func (c *Client) ChatHistory() []domain.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.ChatMessage, len(c.chat))
	copy(out, c.chat)
	return out
}

// SendChat broadcasts a chat message to the room and appends it to the
// local history immediately; the relay does not echo to the sender.
func (c *Client) SendChat(text string) error {
	c.mu.Lock()
	room := c.room
	msg := domain.ChatMessage{
		Room:      room,
		From:      c.id,
		Name:      c.opts.Name,
		Message:   text,
		Timestamp: utils.ClockTime(time.Now()),
	}
	c.chat = append(c.chat, msg)
	c.mu.Unlock()

	if room == "" {
		return fmt.Errorf("not in a room")
	}
	return c.send(domain.EventChatMessage, msg)
}

// SetVideoEnabled toggles the outbound video writer and tells the room.
func (c *Client) SetVideoEnabled(enabled bool) error {
	c.media.SetVideoEnabled(enabled)
	return c.send(domain.EventToggleVideo, domain.ToggleVideoPayload{IsVideoOn: enabled})
}

// SetAudioEnabled toggles the outbound audio writer and tells the room.
func (c *Client) SetAudioEnabled(enabled bool) error {
	c.media.SetAudioEnabled(enabled)
	return c.send(domain.EventToggleAudio, domain.ToggleAudioPayload{IsAudioOn: enabled})
}

// SetScreenSharing announces a screen share state change. Actual track
// replacement is up to the caller via ReplaceVideoTrack.
func (c *Client) SetScreenSharing(sharing bool) error {
	return c.send(domain.EventToggleScreenShare, domain.ToggleScreenSharePayload{IsSharing: sharing})
}

// ReplaceVideoTrack swaps the outbound video track on every peer
// connection, for example when switching to a screen capture.
func (c *Client) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	return c.peers.ReplaceOutboundTrack(domain.TrackKindVideo, track)
}

func (c *Client) readLoop() {
	for {
		var env domain.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warnw("signaling connection lost", "error", err)
			}
			return
		}

		if err := c.dispatch(env); err != nil {
			c.logger.Warnw("failed to handle signaling event",
				"type", env.Type,
				"error", err,
			)
		}
	}
}

func (c *Client) dispatch(env domain.Envelope) error {
	switch env.Type {
	case domain.EventExistingParticipants:
		var members []domain.Member
		if err := json.Unmarshal(env.Payload, &members); err != nil {
			return err
		}
		return c.handleExistingParticipants(members)

	case domain.EventUserJoined:
		var payload domain.UserJoinedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		return c.handleUserJoined(payload)

	case domain.EventUserLeft:
		var payload domain.UserLeftPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		c.handleUserLeft(payload)
		return nil

	case domain.EventOffer:
		var payload domain.OfferPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		return c.handleOffer(payload)

	case domain.EventAnswer:
		var payload domain.AnswerPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		return c.handleAnswer(payload)

	case domain.EventICECandidate:
		var payload domain.ICECandidatePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		return c.handleCandidate(payload)

	case domain.EventVideoToggle:
		var payload domain.VideoTogglePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		c.updateParticipant(payload.ParticipantID, func(p *RemoteParticipant) {
			p.VideoOn = payload.IsVideoOn
		})
		return nil

	case domain.EventAudioToggle:
		var payload domain.AudioTogglePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		c.updateParticipant(payload.ParticipantID, func(p *RemoteParticipant) {
			p.AudioOn = payload.IsAudioOn
		})
		return nil

	case domain.EventScreenShareToggle:
		var payload domain.ScreenShareTogglePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		c.updateParticipant(payload.ParticipantID, func(p *RemoteParticipant) {
			p.Sharing = payload.IsSharing
		})
		return nil

	case domain.EventChatMessage:
		var msg domain.ChatMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return err
		}
		c.mu.Lock()
		c.chat = append(c.chat, msg)
		c.mu.Unlock()
		if c.events.OnChatMessage != nil {
			c.events.OnChatMessage(msg)
		}
		return nil

	case domain.EventError:
		var payload domain.ErrorPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		c.logger.Warnw("server reported error", "message", payload.Message)
		if c.events.OnError != nil {
			c.events.OnError(payload.Message)
		}
		return nil

	default:
		c.logger.Debugw("ignoring unknown event", "type", env.Type)
		return nil
	}
}

// handleExistingParticipants records the roster snapshot delivered on
// join. No connections are opened from this side; each existing member
// offers to us after seeing our user-joined event.
func (c *Client) handleExistingParticipants(members []domain.Member) error {
	c.mu.Lock()
	for _, m := range members {
		c.participants[m.ID] = &RemoteParticipant{
			ID:      m.ID,
			Name:    m.Name,
			Email:   m.Email,
			VideoOn: true,
			AudioOn: true,
		}
	}
	c.mu.Unlock()
	return nil
}

// handleUserJoined makes this client the offerer toward the newcomer.
func (c *Client) handleUserJoined(payload domain.UserJoinedPayload) error {
	remote := RemoteParticipant{
		ID:      payload.ID,
		Name:    payload.Name,
		Email:   payload.Email,
		VideoOn: true,
		AudioOn: true,
	}
	c.mu.Lock()
	c.participants[payload.ID] = &remote
	c.mu.Unlock()

	if c.events.OnParticipantJoined != nil {
		c.events.OnParticipantJoined(remote)
	}

	p, err := c.peers.CreateOrReplace(payload.ID, c.media.Tracks())
	if err != nil {
		return err
	}
	offer, err := p.CreateOffer()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return c.send(domain.EventSendOffer, domain.SendOfferPayload{
		To:    payload.ID,
		Offer: raw,
	})
}

func (c *Client) handleUserLeft(payload domain.UserLeftPayload) {
	c.peers.Remove(payload.ID)

	c.mu.Lock()
	delete(c.participants, payload.ID)
	c.mu.Unlock()

	if c.events.OnParticipantLeft != nil {
		c.events.OnParticipantLeft(payload.ID, payload.Name)
	}
}

// handleOffer makes this client the answerer toward the sender.
func (c *Client) handleOffer(payload domain.OfferPayload) error {
	c.mu.Lock()
	if existing, ok := c.participants[payload.From]; ok {
		existing.Name = payload.Name
	} else {
		c.participants[payload.From] = &RemoteParticipant{
			ID:      payload.From,
			Name:    payload.Name,
			VideoOn: true,
			AudioOn: true,
		}
	}
	c.mu.Unlock()

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload.Offer, &offer); err != nil {
		return fmt.Errorf("failed to decode offer from %s: %w", payload.From, err)
	}

	p, err := c.peers.CreateOrReplace(payload.From, c.media.Tracks())
	if err != nil {
		return err
	}
	answer, err := p.HandleRemoteOffer(offer)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return c.send(domain.EventSendAnswer, domain.SendAnswerPayload{
		To:     payload.From,
		Answer: raw,
	})
}

func (c *Client) handleAnswer(payload domain.AnswerPayload) error {
	p := c.peers.Get(payload.From)
	if p == nil {
		c.logger.Debugw("answer for unknown peer dropped", "from", payload.From)
		return nil
	}
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload.Answer, &answer); err != nil {
		return fmt.Errorf("failed to decode answer from %s: %w", payload.From, err)
	}
	return p.HandleRemoteAnswer(answer)
}

// handleCandidate drops candidates for peers with no connection yet;
// the sender's end keeps trickling and the surviving pair converges.
func (c *Client) handleCandidate(payload domain.ICECandidatePayload) error {
	p := c.peers.Get(payload.From)
	if p == nil {
		c.logger.Debugw("candidate for unknown peer dropped", "from", payload.From)
		return nil
	}
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload.Candidate, &candidate); err != nil {
		return fmt.Errorf("failed to decode candidate from %s: %w", payload.From, err)
	}
	return p.AddICECandidate(candidate)
}

func (c *Client) handleRemoteTrack(id domain.ParticipantID, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	c.logger.Infow("remote track received",
		"participant_id", id,
		"kind", track.Kind().String(),
	)
	if c.events.OnRemoteTrack != nil {
		c.events.OnRemoteTrack(id, track)
	}
}

func (c *Client) handleLocalCandidate(id domain.ParticipantID, candidate webrtc.ICECandidateInit) {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return
	}
	if err := c.send(domain.EventSendICECandidate, domain.SendICECandidatePayload{
		To:        id,
		Candidate: raw,
	}); err != nil {
		c.logger.Debugw("failed to send candidate", "to", id, "error", err)
	}
}

func (c *Client) handleRenegotiationOffer(id domain.ParticipantID, offer webrtc.SessionDescription) {
	raw, err := json.Marshal(offer)
	if err != nil {
		return
	}
	if err := c.send(domain.EventSendOffer, domain.SendOfferPayload{
		To:    id,
		Offer: raw,
	}); err != nil {
		c.logger.Warnw("failed to send renegotiation offer", "to", id, "error", err)
	}
}

func (c *Client) handleConnectionState(id domain.ParticipantID, state webrtc.PeerConnectionState) {
	if state == webrtc.PeerConnectionStateFailed {
		// Removal happens off the signaling goroutine; the roster entry
		// stays until the server reports user-left.
		go c.peers.Remove(id)
	}
}

func (c *Client) updateParticipant(id domain.ParticipantID, update func(p *RemoteParticipant)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.participants[id]; ok {
		update(p)
	}
}

func (c *Client) send(eventType string, payload interface{}) error {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}
