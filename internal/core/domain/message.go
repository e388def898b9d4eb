package domain

import "encoding/json"

// Event names carried in the envelope's type field. Inbound events are
// what clients send; outbound events are what the relay produces.
const (
	// Inbound
	EventJoinRoom          = "join-room"
	EventLeaveRoom         = "leave-room"
	EventSendOffer         = "send-offer"
	EventSendAnswer        = "send-answer"
	EventSendICECandidate  = "send-ice-candidate"
	EventToggleVideo       = "toggle-video"
	EventToggleAudio       = "toggle-audio"
	EventToggleScreenShare = "toggle-screen-share"
	EventChatMessage       = "chat-message"

	// Outbound
	EventWelcome              = "welcome"
	EventExistingParticipants = "existing-participants"
	EventUserJoined           = "user-joined"
	EventUserLeft             = "user-left"
	EventOffer                = "offer"
	EventAnswer               = "answer"
	EventICECandidate         = "ice-candidate"
	EventVideoToggle          = "video-toggle"
	EventAudioToggle          = "audio-toggle"
	EventScreenShareToggle    = "screen-share-toggle"
	EventError                = "error"
)

// Envelope is the wire frame for every signaling message. Payload stays
// opaque until the event type is known; offer/answer/candidate payloads
// are never interpreted at all.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(eventType string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: data}, nil
}

type WelcomePayload struct {
	ID ParticipantID `json:"id"`
}

type JoinRoomPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Room  RoomID `json:"room"`
}

type LeaveRoomPayload struct {
	Room RoomID `json:"room"`
}

type UserJoinedPayload struct {
	Email string        `json:"email"`
	Name  string        `json:"name"`
	ID    ParticipantID `json:"id"`
}

type UserLeftPayload struct {
	ID   ParticipantID `json:"id"`
	Name string        `json:"name"`
}

// SendOfferPayload is the client->server half of offer routing. The SDP
// stays a raw blob end to end.
type SendOfferPayload struct {
	To    ParticipantID   `json:"to"`
	Offer json.RawMessage `json:"offer"`
}

type OfferPayload struct {
	From  ParticipantID   `json:"from"`
	Offer json.RawMessage `json:"offer"`
	Name  string          `json:"name"`
}

type SendAnswerPayload struct {
	To     ParticipantID   `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

type AnswerPayload struct {
	From   ParticipantID   `json:"from"`
	Answer json.RawMessage `json:"answer"`
}

type SendICECandidatePayload struct {
	To        ParticipantID   `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type ICECandidatePayload struct {
	From      ParticipantID   `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

type ToggleVideoPayload struct {
	IsVideoOn bool `json:"isVideoOn"`
}

type ToggleAudioPayload struct {
	IsAudioOn bool `json:"isAudioOn"`
}

type ToggleScreenSharePayload struct {
	IsSharing bool `json:"isSharing"`
}

type VideoTogglePayload struct {
	ParticipantID ParticipantID `json:"participantId"`
	IsVideoOn     bool          `json:"isVideoOn"`
}

type AudioTogglePayload struct {
	ParticipantID ParticipantID `json:"participantId"`
	IsAudioOn     bool          `json:"isAudioOn"`
}

type ScreenShareTogglePayload struct {
	ParticipantID ParticipantID `json:"participantId"`
	IsSharing     bool          `json:"isSharing"`
}

// ChatMessage is room-scoped and never persisted; the relay fans it out
// to everyone in the room except the sender.
type ChatMessage struct {
	Room      RoomID        `json:"room,omitempty"`
	From      ParticipantID `json:"from"`
	Name      string        `json:"name"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
