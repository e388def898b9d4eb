package ports

import (
	"context"

	"github.com/Suja2004/WebRTC/internal/core/domain"
)

// RegistryService is the session registry: room membership and
// participant identity with availability-first semantics (operations on
// unknown ids degrade to no-ops, never errors).
type RegistryService interface {
	// Join registers identity and membership and returns the snapshot of
	// other current members. Re-join with the same id replaces identity
	// without duplicating membership.
	Join(ctx context.Context, p *domain.Participant) ([]*domain.Participant, error)

	// Leave removes the participant from the named room. Returns the
	// removed participant and remaining members, or (nil, nil) when the
	// participant was not in the room.
	Leave(ctx context.Context, id domain.ParticipantID, room domain.RoomID) (*domain.Participant, []*domain.Participant, error)

	// Disconnect performs Leave on behalf of a dropped transport using
	// the participant's stored room.
	Disconnect(ctx context.Context, id domain.ParticipantID) (*domain.Participant, []*domain.Participant, error)

	Get(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error)

	// Others returns the members of the participant's room excluding the
	// participant itself; empty when the id is unknown.
	Others(ctx context.Context, id domain.ParticipantID) ([]*domain.Participant, error)

	// Members returns the current members of the named room; empty when
	// the room does not exist.
	Members(ctx context.Context, room domain.RoomID) ([]*domain.Participant, error)

	SetMediaState(ctx context.Context, id domain.ParticipantID, kind domain.TrackKind, on bool) error
	Stats(ctx context.Context) (rooms int, participants int, err error)
}

// RelayService routes signaling events between registry members. It
// never interprets offer/answer/candidate payloads; it only stamps the
// sender id (and, for offers, the sender's name) and forwards.
type RelayService interface {
	HandleJoin(ctx context.Context, id domain.ParticipantID, payload domain.JoinRoomPayload) error
	HandleLeave(ctx context.Context, id domain.ParticipantID, payload domain.LeaveRoomPayload) error
	HandleDisconnect(ctx context.Context, id domain.ParticipantID) error
	HandleOffer(ctx context.Context, from domain.ParticipantID, payload domain.SendOfferPayload) error
	HandleAnswer(ctx context.Context, from domain.ParticipantID, payload domain.SendAnswerPayload) error
	HandleICECandidate(ctx context.Context, from domain.ParticipantID, payload domain.SendICECandidatePayload) error
	HandleToggleVideo(ctx context.Context, id domain.ParticipantID, payload domain.ToggleVideoPayload) error
	HandleToggleAudio(ctx context.Context, id domain.ParticipantID, payload domain.ToggleAudioPayload) error
	HandleToggleScreenShare(ctx context.Context, id domain.ParticipantID, payload domain.ToggleScreenSharePayload) error
	HandleChat(ctx context.Context, id domain.ParticipantID, msg domain.ChatMessage) error
}

// Sender delivers an envelope to one connected participant. Implemented
// by the websocket connection table; returns domain.ErrRecipientOffline
// when the id has no live connection.
type Sender interface {
	SendTo(id domain.ParticipantID, env domain.Envelope) error
}

// Recorder receives operational counters from the relay and transport.
// The prometheus collector implements it; tests use NopRecorder.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageRelayed(eventType string)
	MessageDropped(eventType string)
	RoomJoined(size int)
	RoomStats(rooms, participants int)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) ConnectionOpened()     {}
func (NopRecorder) ConnectionClosed()     {}
func (NopRecorder) MessageRelayed(string) {}
func (NopRecorder) MessageDropped(string) {}
func (NopRecorder) RoomJoined(int)        {}
func (NopRecorder) RoomStats(int, int)    {}
