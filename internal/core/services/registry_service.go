package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/internal/core/ports"
	"github.com/Suja2004/WebRTC/pkg/validation"
)

type registryService struct {
	repo ports.RegistryRepository
}

// NewRegistryService wraps the repository with the registry's failure
// policy: missing ids degrade to no-ops instead of surfacing errors.
func NewRegistryService(repo ports.RegistryRepository) ports.RegistryService {
	return &registryService{repo: repo}
}

func (s *registryService) Join(ctx context.Context, p *domain.Participant) ([]*domain.Participant, error) {
	if err := validation.ValidateRoomID(string(p.Room)); err != nil {
		return nil, fmt.Errorf("invalid room: %w", err)
	}
	if err := validation.ValidateDisplayName(p.Name); err != nil {
		return nil, fmt.Errorf("invalid name: %w", err)
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	return s.repo.Join(ctx, p)
}

func (s *registryService) Leave(ctx context.Context, id domain.ParticipantID, room domain.RoomID) (*domain.Participant, []*domain.Participant, error) {
	removed, remaining, err := s.repo.Leave(ctx, id, room)
	if errors.Is(err, domain.ErrParticipantNotFound) || errors.Is(err, domain.ErrRoomNotFound) {
		return nil, nil, nil
	}
	return removed, remaining, err
}

func (s *registryService) Disconnect(ctx context.Context, id domain.ParticipantID) (*domain.Participant, []*domain.Participant, error) {
	removed, remaining, err := s.repo.Disconnect(ctx, id)
	if errors.Is(err, domain.ErrParticipantNotFound) || errors.Is(err, domain.ErrRoomNotFound) {
		return nil, nil, nil
	}
	return removed, remaining, err
}

func (s *registryService) Get(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error) {
	return s.repo.Get(ctx, id)
}

func (s *registryService) Others(ctx context.Context, id domain.ParticipantID) ([]*domain.Participant, error) {
	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrParticipantNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	members, err := s.repo.Members(ctx, p.Room)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	others := members[:0]
	for _, m := range members {
		if m.ID != id {
			others = append(others, m)
		}
	}
	return others, nil
}

func (s *registryService) Members(ctx context.Context, room domain.RoomID) ([]*domain.Participant, error) {
	members, err := s.repo.Members(ctx, room)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil, nil
	}
	return members, err
}

func (s *registryService) SetMediaState(ctx context.Context, id domain.ParticipantID, kind domain.TrackKind, on bool) error {
	err := s.repo.SetMediaState(ctx, id, kind, on)
	if errors.Is(err, domain.ErrParticipantNotFound) {
		return nil
	}
	return err
}

func (s *registryService) Stats(ctx context.Context) (int, int, error) {
	return s.repo.Stats(ctx)
}
