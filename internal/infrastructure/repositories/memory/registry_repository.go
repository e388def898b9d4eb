package memory

import (
	"context"
	"sync"

	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/internal/core/ports"
)

// MemoryRegistryRepository keeps rooms and participants in process
// memory. Rooms are created on first join and deleted when their member
// set empties, so an empty room entry never exists.
type MemoryRegistryRepository struct {
	rooms        map[domain.RoomID]map[domain.ParticipantID]struct{}
	participants map[domain.ParticipantID]*domain.Participant
	mu           sync.RWMutex
}

func NewMemoryRegistryRepository() ports.RegistryRepository {
	return &MemoryRegistryRepository{
		rooms:        make(map[domain.RoomID]map[domain.ParticipantID]struct{}),
		participants: make(map[domain.ParticipantID]*domain.Participant),
	}
}

func (r *MemoryRegistryRepository) Join(ctx context.Context, p *domain.Participant) ([]*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *p
	r.participants[p.ID] = &stored

	members, exists := r.rooms[p.Room]
	if !exists {
		members = make(map[domain.ParticipantID]struct{})
		r.rooms[p.Room] = members
	}
	members[p.ID] = struct{}{}

	return r.othersLocked(p.Room, p.ID), nil
}

func (r *MemoryRegistryRepository) Leave(ctx context.Context, id domain.ParticipantID, room domain.RoomID) (*domain.Participant, []*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.rooms[room]
	if !exists {
		return nil, nil, domain.ErrParticipantNotFound
	}
	if _, present := members[id]; !present {
		return nil, nil, domain.ErrParticipantNotFound
	}

	removed := r.participants[id]
	if removed == nil {
		removed = &domain.Participant{ID: id, Room: room}
	}

	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	delete(r.participants, id)

	return removed, r.othersLocked(room, id), nil
}

func (r *MemoryRegistryRepository) Disconnect(ctx context.Context, id domain.ParticipantID) (*domain.Participant, []*domain.Participant, error) {
	r.mu.RLock()
	p, exists := r.participants[id]
	r.mu.RUnlock()

	if !exists {
		return nil, nil, domain.ErrParticipantNotFound
	}
	return r.Leave(ctx, id, p.Room)
}

func (r *MemoryRegistryRepository) Get(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.participants[id]
	if !exists {
		return nil, domain.ErrParticipantNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *MemoryRegistryRepository) Members(ctx context.Context, room domain.RoomID) ([]*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, exists := r.rooms[room]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	result := make([]*domain.Participant, 0, len(members))
	for id := range members {
		if p, ok := r.participants[id]; ok {
			copied := *p
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *MemoryRegistryRepository) SetMediaState(ctx context.Context, id domain.ParticipantID, kind domain.TrackKind, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return domain.ErrParticipantNotFound
	}
	switch kind {
	case domain.TrackKindVideo:
		p.VideoOn = on
	case domain.TrackKindAudio:
		p.AudioOn = on
	}
	return nil
}

func (r *MemoryRegistryRepository) Stats(ctx context.Context) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.participants), nil
}

// othersLocked returns copies of every room member except id. Callers
// must hold at least a read lock.
func (r *MemoryRegistryRepository) othersLocked(room domain.RoomID, id domain.ParticipantID) []*domain.Participant {
	members := r.rooms[room]
	others := make([]*domain.Participant, 0, len(members))
	for memberID := range members {
		if memberID == id {
			continue
		}
		if p, ok := r.participants[memberID]; ok {
			copied := *p
			others = append(others, &copied)
		}
	}
	return others
}
