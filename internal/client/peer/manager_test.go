package peer

import (
	"testing"
	"time"

	"github.com/Suja2004/WebRTC/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, observers Observers) *Manager {
	t.Helper()
	m := NewManager(nil, observers, zap.NewNop().Sugar())
	t.Cleanup(m.CloseAll)
	return m
}

func audioTrack(t *testing.T, id string) *webrtc.TrackLocalStaticRTP {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		id, "test",
	)
	require.NoError(t, err)
	return track
}

func TestCreateOrReplaceClosesPrevious(t *testing.T) {
	m := newTestManager(t, Observers{})

	first, err := m.CreateOrReplace("peer-1", nil)
	require.NoError(t, err)

	second, err := m.CreateOrReplace("peer-1", nil)
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, 1, m.Count())

	require.Eventually(t, func() bool {
		return first.ConnectionState() == webrtc.PeerConnectionStateClosed
	}, 2*time.Second, 10*time.Millisecond)

	require.Same(t, second, m.Get("peer-1"))
}

func TestRemoveIsIdempotent(t *testing.T) {
	m := newTestManager(t, Observers{})

	_, err := m.CreateOrReplace("peer-1", nil)
	require.NoError(t, err)

	m.Remove("peer-1")
	m.Remove("peer-1")
	m.Remove("never-existed")

	require.Nil(t, m.Get("peer-1"))
	require.Equal(t, 0, m.Count())
}

func TestOfferAnswerExchange(t *testing.T) {
	caller := newTestManager(t, Observers{})
	callee := newTestManager(t, Observers{})

	a, err := caller.CreateOrReplace("remote-b", []webrtc.TrackLocal{audioTrack(t, "a-audio")})
	require.NoError(t, err)
	b, err := callee.CreateOrReplace("remote-a", []webrtc.TrackLocal{audioTrack(t, "b-audio")})
	require.NoError(t, err)

	offer, err := a.CreateOffer()
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeOffer, offer.Type)

	answer, err := b.HandleRemoteOffer(offer)
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	require.NoError(t, a.HandleRemoteAnswer(answer))
	require.Equal(t, webrtc.SignalingStateStable, a.pc.SignalingState())
	require.Equal(t, webrtc.SignalingStateStable, b.pc.SignalingState())
}

func TestStaleAnswerIsDropped(t *testing.T) {
	m := newTestManager(t, Observers{})

	p, err := m.CreateOrReplace("peer-1", nil)
	require.NoError(t, err)

	// No local offer pending, so any answer is stale.
	stale := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}
	require.NoError(t, p.HandleRemoteAnswer(stale))
	require.Equal(t, webrtc.SignalingStateStable, p.pc.SignalingState())
}

func TestReplaceOutboundTrack(t *testing.T) {
	m := newTestManager(t, Observers{})

	original := audioTrack(t, "original")
	p, err := m.CreateOrReplace("peer-1", []webrtc.TrackLocal{original})
	require.NoError(t, err)

	replacement := audioTrack(t, "replacement")
	require.NoError(t, m.ReplaceOutboundTrack(domain.TrackKindAudio, replacement))

	var found bool
	for _, sender := range p.pc.GetSenders() {
		if sender.Track() != nil && sender.Track().ID() == "replacement" {
			found = true
		}
	}
	require.True(t, found)
}

func TestManagerUsesConfiguredICEServers(t *testing.T) {
	custom := []webrtc.ICEServer{
		{URLs: []string{"stun:stun.example.org:3478"}},
	}
	m := NewManager(custom, Observers{}, zap.NewNop().Sugar())
	t.Cleanup(m.CloseAll)

	p, err := m.CreateOrReplace("peer-1", nil)
	require.NoError(t, err)

	servers := p.pc.GetConfiguration().ICEServers
	require.Len(t, servers, 1)
	require.Equal(t, []string{"stun:stun.example.org:3478"}, servers[0].URLs)
}

func TestCloseAll(t *testing.T) {
	m := newTestManager(t, Observers{})

	_, err := m.CreateOrReplace("peer-1", nil)
	require.NoError(t, err)
	_, err = m.CreateOrReplace("peer-2", nil)
	require.NoError(t, err)

	m.CloseAll()
	require.Equal(t, 0, m.Count())
}
