package peer

import (
	"fmt"
	"sync"

	"github.com/Suja2004/WebRTC/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// DefaultICEServers is the STUN-only server list used when no
// configuration overrides it. Connectivity behind symmetric NAT is out
// of scope without TURN.
var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:global.stun.twilio.com:3478"}},
}

// Observers is the complete callback set for every peer connection the
// manager creates. It is supplied once at construction; connections
// never exist without their observers attached.
type Observers struct {
	// OnRemoteTrack fires when media arrives from the remote side.
	OnRemoteTrack func(id domain.ParticipantID, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

	// OnLocalCandidate fires for every gathered ICE candidate. A nil
	// candidate marks end of gathering and is not forwarded.
	OnLocalCandidate func(id domain.ParticipantID, candidate webrtc.ICECandidateInit)

	// OnRenegotiationOffer fires with a freshly created local offer when
	// the connection needs renegotiation (for example after a track
	// replacement changes the media direction).
	OnRenegotiationOffer func(id domain.ParticipantID, offer webrtc.SessionDescription)

	// OnConnectionStateChange reports connection state transitions.
	OnConnectionStateChange func(id domain.ParticipantID, state webrtc.PeerConnectionState)
}

// Manager owns one peer connection per remote participant. All mutating
// operations on the set are serialized; operations on unknown ids are
// no-ops.
type Manager struct {
	api       *webrtc.API
	config    webrtc.Configuration
	observers Observers

	mu    sync.Mutex
	peers map[domain.ParticipantID]*ManagedPeer

	logger *zap.SugaredLogger
}

func NewManager(iceServers []webrtc.ICEServer, observers Observers, logger *zap.SugaredLogger) *Manager {
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers
	}

	// Loopback host candidates are needed when both ends run on the
	// same machine, which STUN alone never produces.
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)

	return &Manager{
		api:       webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		config:    webrtc.Configuration{ICEServers: iceServers},
		observers: observers,
		peers:     make(map[domain.ParticipantID]*ManagedPeer),
		logger:    logger,
	}
}

// ManagedPeer wraps one RTCPeerConnection for a remote participant.
type ManagedPeer struct {
	id domain.ParticipantID
	pc *webrtc.PeerConnection

	mu     sync.Mutex
	closed bool
}

// CreateOrReplace builds a connection to the remote participant, wiring
// every observer and adding the given outbound tracks before returning.
// Any existing connection for the id is closed first so a stale
// connection can never shadow the new one.
func (m *Manager) CreateOrReplace(id domain.ParticipantID, tracks []webrtc.TrackLocal) (*ManagedPeer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.peers[id]; ok {
		old.close()
		delete(m.peers, id)
	}

	pc, err := m.api.NewPeerConnection(m.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	p := &ManagedPeer{id: id, pc: pc}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if m.observers.OnRemoteTrack != nil {
			m.observers.OnRemoteTrack(id, track, receiver)
		}
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		if m.observers.OnLocalCandidate != nil {
			m.observers.OnLocalCandidate(id, candidate.ToJSON())
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.logger.Debugw("peer connection state changed",
			"participant_id", id,
			"state", state.String(),
		)
		if m.observers.OnConnectionStateChange != nil {
			m.observers.OnConnectionStateChange(id, state)
		}
	})

	pc.OnNegotiationNeeded(func() {
		// Renegotiation only makes sense once the initial exchange has
		// settled; mid-handshake the event is a byproduct of setup.
		if pc.SignalingState() != webrtc.SignalingStateStable {
			return
		}
		offer, err := p.CreateOffer()
		if err != nil {
			m.logger.Warnw("renegotiation offer failed", "participant_id", id, "error", err)
			return
		}
		if m.observers.OnRenegotiationOffer != nil {
			m.observers.OnRenegotiationOffer(id, offer)
		}
	})

	for _, track := range tracks {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add track: %w", err)
		}
	}

	m.peers[id] = p
	return p, nil
}

// Get returns the connection for the id, or nil.
func (m *Manager) Get(id domain.ParticipantID) *ManagedPeer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[id]
}

// Remove closes and forgets the connection. Unknown ids are ignored.
func (m *Manager) Remove(id domain.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.peers[id]; ok {
		p.close()
		delete(m.peers, id)
	}
}

// CloseAll tears down every connection.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.peers {
		p.close()
		delete(m.peers, id)
	}
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

// ConnectedCount returns how many connections have completed ICE and
// DTLS and are currently in the connected state.
func (m *Manager) ConnectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.peers {
		if p.ConnectionState() == webrtc.PeerConnectionStateConnected {
			n++
		}
	}
	return n
}

// ReplaceOutboundTrack swaps the outbound track of the given kind on
// every connection, without renegotiating when codecs match.
func (m *Manager) ReplaceOutboundTrack(kind domain.TrackKind, track webrtc.TrackLocal) error {
	m.mu.Lock()
	peers := make([]*ManagedPeer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		if err := p.replaceTrack(kind, track); err != nil {
			return fmt.Errorf("replace track for %s: %w", p.id, err)
		}
	}
	return nil
}

func (p *ManagedPeer) ID() domain.ParticipantID {
	return p.id
}

// CreateOffer creates and installs a local offer.
func (p *ManagedPeer) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

// HandleRemoteOffer installs the remote offer and answers it.
func (p *ManagedPeer) HandleRemoteOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

// HandleRemoteAnswer installs the remote answer. Answers arriving in
// any state other than have-local-offer are stale or duplicated and are
// dropped.
func (p *ManagedPeer) HandleRemoteAnswer(answer webrtc.SessionDescription) error {
	if p.pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		return nil
	}
	return p.pc.SetRemoteDescription(answer)
}

// AddICECandidate feeds a remote candidate into the connection.
func (p *ManagedPeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

// ConnectionState reports the current connection state.
func (p *ManagedPeer) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

func (p *ManagedPeer) replaceTrack(kind domain.TrackKind, track webrtc.TrackLocal) error {
	for _, sender := range p.pc.GetSenders() {
		current := sender.Track()
		if current == nil {
			continue
		}
		if string(kind) != current.Kind().String() {
			continue
		}
		if err := sender.ReplaceTrack(track); err != nil {
			return err
		}
	}
	return nil
}

func (p *ManagedPeer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.pc.Close()
}
