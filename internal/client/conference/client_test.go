package conference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/internal/core/ports"
	"github.com/Suja2004/WebRTC/internal/core/services"
	"github.com/Suja2004/WebRTC/internal/infrastructure/repositories/memory"
	"github.com/Suja2004/WebRTC/internal/infrastructure/signal"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startSignalServer(t *testing.T) string {
	t.Helper()

	logger := zap.NewNop().Sugar()
	registry := services.NewRegistryService(memory.NewMemoryRegistryRepository())
	table := signal.NewConnTable(5 * time.Second)
	relay := services.NewRelayService(registry, table, ports.NopRecorder{}, logger)
	server := signal.NewWebSocketServer(relay, registry, table, nil, ports.NopRecorder{}, signal.Options{
		PingInterval: 50 * time.Millisecond,
		PongTimeout:  5 * time.Second,
	}, logger)

	ts := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	t.Cleanup(ts.Close)

	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dialTestClient(t *testing.T, url, name string, events Events) *Client {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c, err := Dial(ctx, Options{
		ServerURL: url,
		Name:      name,
		Email:     strings.ToLower(name) + "@example.com",
	}, events, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NotEmpty(t, c.ID())
	return c
}

func TestClientMeshHandshake(t *testing.T) {
	url := startSignalServer(t)

	alice := dialTestClient(t, url, "Alice", Events{})
	require.NoError(t, alice.Join("standup"))

	bob := dialTestClient(t, url, "Bob", Events{})
	require.NoError(t, bob.Join("standup"))

	// Alice offers on seeing bob join; bob answers the relayed offer.
	require.Eventually(t, func() bool {
		return alice.PeerCount() == 1 && bob.PeerCount() == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(alice.Participants()) == 1 && len(bob.Participants()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, "Bob", alice.Participants()[0].Name)
	require.Equal(t, "Alice", bob.Participants()[0].Name)

	// Both sides finish ICE and DTLS over loopback host candidates.
	require.Eventually(t, func() bool {
		return alice.ConnectedPeerCount() == 1 && bob.ConnectedPeerCount() == 1
	}, 15*time.Second, 50*time.Millisecond)
}

func TestClientThreePartyMesh(t *testing.T) {
	url := startSignalServer(t)

	alice := dialTestClient(t, url, "Alice", Events{})
	require.NoError(t, alice.Join("standup"))

	bob := dialTestClient(t, url, "Bob", Events{})
	require.NoError(t, bob.Join("standup"))

	carol := dialTestClient(t, url, "Carol", Events{})
	require.NoError(t, carol.Join("standup"))

	all := []*Client{alice, bob, carol}

	// Every pair holds exactly one connection, giving each member two.
	require.Eventually(t, func() bool {
		for _, c := range all {
			if c.PeerCount() != 2 {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, c := range all {
			if c.ConnectedPeerCount() != 2 {
				return false
			}
		}
		return true
	}, 20*time.Second, 50*time.Millisecond)
}

func TestClientChatFanout(t *testing.T) {
	url := startSignalServer(t)

	received := make(chan domain.ChatMessage, 1)

	alice := dialTestClient(t, url, "Alice", Events{})
	require.NoError(t, alice.Join("standup"))

	bob := dialTestClient(t, url, "Bob", Events{
		OnChatMessage: func(msg domain.ChatMessage) { received <- msg },
	})
	require.NoError(t, bob.Join("standup"))

	require.Eventually(t, func() bool {
		return len(alice.Participants()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, alice.SendChat("morning"))

	select {
	case msg := <-received:
		require.Equal(t, "morning", msg.Message)
		require.Equal(t, "Alice", msg.Name)
		require.Equal(t, alice.ID(), msg.From)
	case <-time.After(5 * time.Second):
		t.Fatal("chat message never arrived")
	}

	// The sender keeps its own copy without a server echo.
	history := alice.ChatHistory()
	require.Len(t, history, 1)
	require.Equal(t, "morning", history[0].Message)
}

func TestClientLeaveUpdatesRoster(t *testing.T) {
	url := startSignalServer(t)

	left := make(chan string, 1)

	alice := dialTestClient(t, url, "Alice", Events{
		OnParticipantLeft: func(_ domain.ParticipantID, name string) { left <- name },
	})
	require.NoError(t, alice.Join("standup"))

	bob := dialTestClient(t, url, "Bob", Events{})
	require.NoError(t, bob.Join("standup"))

	require.Eventually(t, func() bool {
		return len(alice.Participants()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, bob.Leave())

	select {
	case name := <-left:
		require.Equal(t, "Bob", name)
	case <-time.After(5 * time.Second):
		t.Fatal("user-left never arrived")
	}
	require.Empty(t, alice.Participants())
	require.Equal(t, 0, bob.PeerCount())
}

func TestClientMediaToggles(t *testing.T) {
	url := startSignalServer(t)

	alice := dialTestClient(t, url, "Alice", Events{})
	require.NoError(t, alice.Join("standup"))

	bob := dialTestClient(t, url, "Bob", Events{})
	require.NoError(t, bob.Join("standup"))

	require.Eventually(t, func() bool {
		return len(bob.Participants()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, alice.SetVideoEnabled(false))
	require.NoError(t, alice.SetAudioEnabled(false))

	require.Eventually(t, func() bool {
		remote := bob.Participants()
		return len(remote) == 1 && !remote[0].VideoOn && !remote[0].AudioOn
	}, 5*time.Second, 20*time.Millisecond)
}
