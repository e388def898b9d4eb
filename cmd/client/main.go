package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/Suja2004/WebRTC/internal/client/conference"
	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/pkg/config"
	"github.com/Suja2004/WebRTC/pkg/logger"
	"github.com/Suja2004/WebRTC/pkg/retry"

	"github.com/pion/webrtc/v3"
)

// iceServersFromConfig maps the webrtc section of the config file onto
// pion's ICE server list. An empty list falls back to the built-in STUN
// defaults.
func iceServersFromConfig(cfg *config.Config) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	return servers
}

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "signaling server websocket URL")
	room := flag.String("room", "lobby", "room to join")
	name := flag.String("name", "guest", "display name")
	email := flag.String("email", "", "email shown to other participants")
	logLevel := flag.String("log-level", "info", "log level")
	configPath := flag.String("config", "", "path to a config file with a webrtc.ice_servers section")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			cfg = nil
		}
	}
	if cfg == nil {
		for _, path := range []string{"configs/config.yaml", "config.yaml"} {
			if loaded, err := config.Load(path); err == nil {
				cfg = loaded
				break
			}
		}
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(*logLevel)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer dialCancel()

	retryCfg := retry.DefaultConfig()
	retryCfg.Enabled = true

	events := conference.Events{
		OnParticipantJoined: func(p conference.RemoteParticipant) {
			log.Infow("participant joined", "id", p.ID, "name", p.Name)
		},
		OnParticipantLeft: func(id domain.ParticipantID, name string) {
			log.Infow("participant left", "id", id, "name", name)
		},
		OnChatMessage: func(msg domain.ChatMessage) {
			log.Infow("chat", "from", msg.Name, "message", msg.Message, "at", msg.Timestamp)
		},
		OnRemoteTrack: func(id domain.ParticipantID, track *webrtc.TrackRemote) {
			log.Infow("remote track", "from", id, "kind", track.Kind().String())
		},
		OnError: func(message string) {
			log.Warnw("server error", "message", message)
		},
	}

	client, err := conference.Dial(dialCtx, conference.Options{
		ServerURL:  *serverURL,
		Name:       *name,
		Email:      *email,
		ICEServers: iceServersFromConfig(cfg),
		Retry:      retryCfg,
	}, events, log)
	if err != nil {
		log.Fatalw("failed to connect", "server", *serverURL, "error", err)
	}
	defer client.Close()

	if err := client.Join(domain.RoomID(*room)); err != nil {
		log.Fatalw("failed to join room", "room", *room, "error", err)
	}
	log.Infow("joined room", "room", *room, "id", client.ID())

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("leaving room")
	if err := client.Leave(); err != nil {
		log.Warnw("failed to leave cleanly", "error", err)
	}
}
