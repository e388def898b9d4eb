package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/internal/core/ports"
	"github.com/Suja2004/WebRTC/pkg/tracing"
	"github.com/Suja2004/WebRTC/pkg/validation"

	"go.uber.org/zap"
)

type relayService struct {
	registry ports.RegistryService
	sender   ports.Sender
	recorder ports.Recorder
	logger   *zap.SugaredLogger
}

// NewRelayService builds the message router. Routing is pure fan-out
// over the registry: direct messages go to the named recipient with the
// sender id stamped on; room events go to every member except the
// sender. Messages to recipients without a live connection are dropped
// silently; the drop is counted and logged at debug level.
func NewRelayService(registry ports.RegistryService, sender ports.Sender, recorder ports.Recorder, logger *zap.SugaredLogger) ports.RelayService {
	return &relayService{
		registry: registry,
		sender:   sender,
		recorder: recorder,
		logger:   logger,
	}
}

func (r *relayService) HandleJoin(ctx context.Context, id domain.ParticipantID, payload domain.JoinRoomPayload) error {
	ctx, span := tracing.TraceSignalEvent(ctx, domain.EventJoinRoom, string(id))
	defer span.End()

	p := &domain.Participant{
		ID:      id,
		Email:   payload.Email,
		Name:    payload.Name,
		Room:    payload.Room,
		VideoOn: true,
		AudioOn: true,
	}

	others, err := r.registry.Join(ctx, p)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	// The joiner always gets a snapshot, even an empty one, so its
	// interface can render immediately.
	snapshot := make([]domain.Member, 0, len(others))
	for _, other := range others {
		snapshot = append(snapshot, other.Member())
	}
	r.send(id, domain.EventExistingParticipants, snapshot)

	joined := domain.UserJoinedPayload{Email: p.Email, Name: p.Name, ID: id}
	for _, other := range others {
		r.send(other.ID, domain.EventUserJoined, joined)
	}
	r.recorder.RoomJoined(len(others) + 1)

	r.logger.Infow("participant joined room",
		"participant_id", id,
		"room", payload.Room,
		"room_size", len(others)+1,
	)
	return nil
}

func (r *relayService) HandleLeave(ctx context.Context, id domain.ParticipantID, payload domain.LeaveRoomPayload) error {
	ctx, span := tracing.TraceSignalEvent(ctx, domain.EventLeaveRoom, string(id))
	defer span.End()

	removed, remaining, err := r.registry.Leave(ctx, id, payload.Room)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	if removed == nil {
		return nil
	}

	r.notifyLeft(removed, remaining)
	r.logger.Infow("participant left room",
		"participant_id", id,
		"room", payload.Room,
	)
	return nil
}

func (r *relayService) HandleDisconnect(ctx context.Context, id domain.ParticipantID) error {
	ctx, span := tracing.TraceSignalEvent(ctx, "disconnect", string(id))
	defer span.End()

	removed, remaining, err := r.registry.Disconnect(ctx, id)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	if removed == nil {
		return nil
	}

	r.notifyLeft(removed, remaining)
	r.logger.Infow("participant disconnected",
		"participant_id", id,
		"room", removed.Room,
	)
	return nil
}

func (r *relayService) HandleOffer(ctx context.Context, from domain.ParticipantID, payload domain.SendOfferPayload) error {
	ctx, span := tracing.TraceSignalEvent(ctx, domain.EventSendOffer, string(from))
	defer span.End()

	if payload.To == "" {
		return fmt.Errorf("offer requires a recipient")
	}

	// Offers carry the sender's display name so the answerer can render
	// the participant before any media arrives.
	name := ""
	if sender, err := r.registry.Get(ctx, from); err == nil {
		name = sender.Name
	}

	r.send(payload.To, domain.EventOffer, domain.OfferPayload{
		From:  from,
		Offer: payload.Offer,
		Name:  name,
	})
	return nil
}

func (r *relayService) HandleAnswer(ctx context.Context, from domain.ParticipantID, payload domain.SendAnswerPayload) error {
	ctx, span := tracing.TraceSignalEvent(ctx, domain.EventSendAnswer, string(from))
	defer span.End()

	if payload.To == "" {
		return fmt.Errorf("answer requires a recipient")
	}

	r.send(payload.To, domain.EventAnswer, domain.AnswerPayload{
		From:   from,
		Answer: payload.Answer,
	})
	return nil
}

func (r *relayService) HandleICECandidate(ctx context.Context, from domain.ParticipantID, payload domain.SendICECandidatePayload) error {
	ctx, span := tracing.TraceSignalEvent(ctx, domain.EventSendICECandidate, string(from))
	defer span.End()

	if payload.To == "" {
		return fmt.Errorf("ice candidate requires a recipient")
	}

	r.send(payload.To, domain.EventICECandidate, domain.ICECandidatePayload{
		From:      from,
		Candidate: payload.Candidate,
	})
	return nil
}

func (r *relayService) HandleToggleVideo(ctx context.Context, id domain.ParticipantID, payload domain.ToggleVideoPayload) error {
	ctx, span := tracing.TraceSignalEvent(ctx, domain.EventToggleVideo, string(id))
	defer span.End()

	if err := r.registry.SetMediaState(ctx, id, domain.TrackKindVideo, payload.IsVideoOn); err != nil {
		return err
	}
	return r.broadcast(ctx, id, domain.EventVideoToggle, domain.VideoTogglePayload{
		ParticipantID: id,
		IsVideoOn:     payload.IsVideoOn,
	})
}

func (r *relayService) HandleToggleAudio(ctx context.Context, id domain.ParticipantID, payload domain.ToggleAudioPayload) error {
	ctx, span := tracing.TraceSignalEvent(ctx, domain.EventToggleAudio, string(id))
	defer span.End()

	if err := r.registry.SetMediaState(ctx, id, domain.TrackKindAudio, payload.IsAudioOn); err != nil {
		return err
	}
	return r.broadcast(ctx, id, domain.EventAudioToggle, domain.AudioTogglePayload{
		ParticipantID: id,
		IsAudioOn:     payload.IsAudioOn,
	})
}

func (r *relayService) HandleToggleScreenShare(ctx context.Context, id domain.ParticipantID, payload domain.ToggleScreenSharePayload) error {
	ctx, span := tracing.TraceSignalEvent(ctx, domain.EventToggleScreenShare, string(id))
	defer span.End()

	// Best-effort: the flag is relayed but not stored.
	return r.broadcast(ctx, id, domain.EventScreenShareToggle, domain.ScreenShareTogglePayload{
		ParticipantID: id,
		IsSharing:     payload.IsSharing,
	})
}

func (r *relayService) HandleChat(ctx context.Context, id domain.ParticipantID, msg domain.ChatMessage) error {
	ctx, span := tracing.TraceSignalEvent(ctx, domain.EventChatMessage, string(id))
	defer span.End()

	if err := validation.ValidateChatMessage(msg.Message); err != nil {
		return fmt.Errorf("invalid chat message: %w", err)
	}

	// The sender appends its own copy locally; the relay only fans out
	// to the rest of the room.
	out := domain.ChatMessage{
		From:      id,
		Name:      msg.Name,
		Message:   msg.Message,
		Timestamp: msg.Timestamp,
	}

	// Chat is addressed to a named room; messages without one fall back
	// to the sender's stored room.
	if msg.Room == "" {
		return r.broadcast(ctx, id, domain.EventChatMessage, out)
	}

	members, err := r.registry.Members(ctx, msg.Room)
	if err != nil {
		return err
	}
	for _, member := range members {
		if member.ID == id {
			continue
		}
		r.send(member.ID, domain.EventChatMessage, out)
	}
	return nil
}

// notifyLeft fans a user-left notification out to the remaining room
// members, exactly once each.
func (r *relayService) notifyLeft(removed *domain.Participant, remaining []*domain.Participant) {
	left := domain.UserLeftPayload{ID: removed.ID, Name: removed.Name}
	for _, member := range remaining {
		r.send(member.ID, domain.EventUserLeft, left)
	}
}

func (r *relayService) broadcast(ctx context.Context, id domain.ParticipantID, eventType string, payload interface{}) error {
	others, err := r.registry.Others(ctx, id)
	if err != nil {
		return err
	}
	for _, other := range others {
		r.send(other.ID, eventType, payload)
	}
	return nil
}

// send delivers one envelope. Failures are contained here: an offline
// or failing recipient never propagates an error to the sender.
func (r *relayService) send(to domain.ParticipantID, eventType string, payload interface{}) {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		r.logger.Errorw("failed to encode envelope", "type", eventType, "error", err)
		r.recorder.MessageDropped(eventType)
		return
	}

	if err := r.sender.SendTo(to, env); err != nil {
		if errors.Is(err, domain.ErrRecipientOffline) {
			r.logger.Debugw("dropped message to offline recipient",
				"type", eventType,
				"to", to,
			)
		} else {
			r.logger.Warnw("failed to deliver message",
				"type", eventType,
				"to", to,
				"error", err,
			)
		}
		r.recorder.MessageDropped(eventType)
		return
	}
	r.recorder.MessageRelayed(eventType)
}
