package ports

import (
	"context"

	"github.com/Suja2004/WebRTC/internal/core/domain"
)

// RegistryRepository owns the room -> member-set and participant ->
// identity mappings. Every method is one logical operation: whatever
// locking an implementation needs is held for that call only, never
// across anything that touches the network.
type RegistryRepository interface {
	// Join registers the participant (replacing any identity already
	// stored under its id), adds it to its room, creating the room on
	// first use, and returns a snapshot of the other current members.
	Join(ctx context.Context, p *domain.Participant) ([]*domain.Participant, error)

	// Leave removes the participant from the room and deletes the room
	// when its member set becomes empty. The removed participant and the
	// remaining members are returned so callers can notify them.
	// Returns domain.ErrParticipantNotFound if the id is not in the room.
	Leave(ctx context.Context, id domain.ParticipantID, room domain.RoomID) (*domain.Participant, []*domain.Participant, error)

	// Disconnect is Leave using the room stored for the participant;
	// used when the transport drops without an explicit leave.
	Disconnect(ctx context.Context, id domain.ParticipantID) (*domain.Participant, []*domain.Participant, error)

	Get(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error)
	Members(ctx context.Context, room domain.RoomID) ([]*domain.Participant, error)

	// SetMediaState records the participant's current video/audio flag.
	SetMediaState(ctx context.Context, id domain.ParticipantID, kind domain.TrackKind, on bool) error

	// Stats reports current room and participant counts.
	Stats(ctx context.Context) (rooms int, participants int, err error)
}
