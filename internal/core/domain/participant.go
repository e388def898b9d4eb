package domain

import "time"

type ParticipantID string
type RoomID string

// Participant is one connected client, registered in exactly one room.
// Media flags track the last toggle event seen for it.
type Participant struct {
	ID       ParticipantID
	Email    string
	Name     string
	Room     RoomID
	VideoOn  bool
	AudioOn  bool
	JoinedAt time.Time
}

// Member is the identity slice of a Participant handed out in room
// snapshots and join notifications.
type Member struct {
	ID    ParticipantID `json:"id"`
	Email string        `json:"email"`
	Name  string        `json:"name"`
}

func (p *Participant) Member() Member {
	return Member{ID: p.ID, Email: p.Email, Name: p.Name}
}

// TrackKind names a media kind the way the browser does.
type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)
