// Package rtc binds the orchestration core to pion/webrtc. One peer
// connection per remote identity, created with the local audio and video
// tracks already attached so screen-share substitution is a sender-level
// track swap with no renegotiation.
package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/domain"
)

type Engine struct {
	config webrtc.Configuration
}

func DefaultConfiguration() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// ConfigurationFor builds a webrtc configuration from STUN/TURN URLs.
func ConfigurationFor(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		return DefaultConfiguration()
	}
	return webrtc.Configuration{ICEServers: []webrtc.ICEServer{{URLs: urls}}}
}

func NewEngine(config webrtc.Configuration) *Engine {
	return &Engine{config: config}
}

func (e *Engine) NewSession(id domain.Identity, cb core.SessionCallbacks, audio, video webrtc.TrackLocal) (core.MediaSession, error) {
	pc, err := webrtc.NewPeerConnection(e.config)
	if err != nil {
		return nil, fmt.Errorf("rtc: new peer connection: %w", err)
	}

	s := &session{pc: pc, id: id}

	if audio != nil {
		if _, err := pc.AddTrack(audio); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("rtc: add audio track: %w", err)
		}
	}
	if video != nil {
		sender, err := pc.AddTrack(video)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("rtc: add video track: %w", err)
		}
		s.videoSender = sender
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && cb.OnLocalCandidate != nil {
			cb.OnLocalCandidate(cand.ToJSON())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(id)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if cb.OnRemoteTrack != nil {
			cb.OnRemoteTrack(track, receiver)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(id)).Str("state", state.String()).Msg("peer state")
		if cb.OnStateChange != nil {
			cb.OnStateChange(state)
		}
	})

	return s, nil
}
