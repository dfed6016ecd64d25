package rtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/domain"
)

// session implements core.MediaSession over one *webrtc.PeerConnection.
type session struct {
	pc          *webrtc.PeerConnection
	id          domain.Identity
	videoSender *webrtc.RTPSender

	mu      sync.Mutex
	held    []webrtc.ICECandidateInit // candidates that arrived before the remote description
	closed  bool
	applied bool // remote description installed
}

func (s *session) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("rtc: create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("rtc: set local offer: %w", err)
	}
	return offer, nil
}

func (s *session) CreateAnswer(remoteOffer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := s.pc.SetRemoteDescription(remoteOffer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", core.ErrBadSignalingState, err)
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("rtc: create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("rtc: set local answer: %w", err)
	}
	s.flushHeld()
	return answer, nil
}

func (s *session) ApplyAnswer(remoteAnswer webrtc.SessionDescription) error {
	if s.pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		return fmt.Errorf("%w: signaling state %s", core.ErrBadSignalingState, s.pc.SignalingState())
	}
	if err := s.pc.SetRemoteDescription(remoteAnswer); err != nil {
		return fmt.Errorf("%w: %v", core.ErrBadSignalingState, err)
	}
	s.flushHeld()
	return nil
}

// AddRemoteCandidate applies a candidate, holding it until a remote
// description exists. Trickled candidates routinely race the answer.
func (s *session) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrNoSession
	}
	if !s.applied {
		s.held = append(s.held, c)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("rtc: add candidate: %w", err)
	}
	return nil
}

func (s *session) flushHeld() {
	s.mu.Lock()
	s.applied = true
	held := s.held
	s.held = nil
	s.mu.Unlock()

	for _, c := range held {
		if err := s.pc.AddICECandidate(c); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("peer", string(s.id)).Msg("flush held candidate")
		}
	}
}

func (s *session) ReplaceOutboundVideo(track webrtc.TrackLocal) error {
	if s.videoSender == nil {
		return core.ErrNoSession
	}
	if err := s.videoSender.ReplaceTrack(track); err != nil {
		return fmt.Errorf("rtc: replace video track: %w", err)
	}
	return nil
}

func (s *session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(s.id)).Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Str("peer", string(s.id)).Msg("closed")
	}
}
