package domain

import "errors"

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRecipientOffline    = errors.New("recipient not connected")
	ErrPeerClosed          = errors.New("peer connection closed")
)
