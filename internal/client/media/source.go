package media

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	opusClockRate   = 48000
	vp8ClockRate    = 90000
	audioFrameEvery = 20 * time.Millisecond
	videoFrameEvery = 33 * time.Millisecond

	audioPayloadSize = 160
	videoPayloadSize = 1000
)

// Source produces a synthetic outbound media pair, one Opus audio track
// and one VP8 video track, each fed by its own RTP writer. It stands in
// for camera and microphone capture in headless clients and tests.
type Source struct {
	audio *webrtc.TrackLocalStaticRTP
	video *webrtc.TrackLocalStaticRTP

	mu           sync.Mutex
	audioEnabled bool
	videoEnabled bool

	done chan struct{}
	wg   sync.WaitGroup

	logger *zap.SugaredLogger
}

// NewSource creates the track pair and starts both writers. Writers run
// until Stop.
func NewSource(streamID string, logger *zap.SugaredLogger) (*Source, error) {
	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}

	video, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}

	s := &Source{
		audio:        audio,
		video:        video,
		audioEnabled: true,
		videoEnabled: true,
		done:         make(chan struct{}),
		logger:       logger,
	}

	s.wg.Add(2)
	go s.writeLoop(audio, audioFrameEvery, opusClockRate, audioPayloadSize, s.audioOn)
	go s.writeLoop(video, videoFrameEvery, vp8ClockRate, videoPayloadSize, s.videoOn)

	return s, nil
}

// Tracks returns the outbound tracks in audio, video order.
func (s *Source) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{s.audio, s.video}
}

func (s *Source) AudioTrack() *webrtc.TrackLocalStaticRTP { return s.audio }
func (s *Source) VideoTrack() *webrtc.TrackLocalStaticRTP { return s.video }

// SetAudioEnabled pauses or resumes the audio writer. The track stays
// attached; a muted track simply stops carrying packets.
func (s *Source) SetAudioEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioEnabled = enabled
}

// SetVideoEnabled pauses or resumes the video writer.
func (s *Source) SetVideoEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoEnabled = enabled
}

func (s *Source) AudioEnabled() bool { return s.audioOn() }
func (s *Source) VideoEnabled() bool { return s.videoOn() }

// Stop halts both writers and waits for them to exit. Safe to call
// once.
func (s *Source) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *Source) audioOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioEnabled
}

func (s *Source) videoOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoEnabled
}

func (s *Source) writeLoop(track *webrtc.TrackLocalStaticRTP, interval time.Duration, clockRate int, payloadSize int, enabled func() bool) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ssrc := rand.Uint32()
	sequence := uint16(rand.Intn(1 << 16))
	timestamp := rand.Uint32()
	step := uint32(float64(clockRate) * interval.Seconds())

	payload := make([]byte, payloadSize)

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		// The clock keeps advancing while muted so resumed streams do
		// not replay stale timestamps.
		sequence++
		timestamp += step

		if !enabled() {
			continue
		}

		packet := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				SequenceNumber: sequence,
				Timestamp:      timestamp,
				SSRC:           ssrc,
			},
			Payload: payload,
		}

		if err := track.WriteRTP(packet); err != nil {
			s.logger.Debugw("failed to write RTP packet",
				"track_id", track.ID(),
				"error", err,
			)
		}
	}
}
