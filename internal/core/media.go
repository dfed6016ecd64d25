package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/martian56/videoo-call/internal/domain"
)

// SessionCallbacks are the asynchronous signals a media session emits.
// They may fire on engine-internal goroutines; consumers must re-dispatch
// onto their own loop before touching shared state.
type SessionCallbacks struct {
	OnLocalCandidate func(webrtc.ICECandidateInit)
	OnRemoteTrack    func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	OnStateChange    func(webrtc.PeerConnectionState)
}

// MediaSession is the per-peer capability surface of the media engine.
// The core only calls these primitives and never inspects engine-internal
// signaling state beyond the SessionCallbacks signals.
type MediaSession interface {
	// CreateOffer produces and installs a local description.
	CreateOffer() (webrtc.SessionDescription, error)
	// CreateAnswer applies the remote offer and produces a local answer.
	// Returns ErrBadSignalingState when the remote offer cannot be applied.
	CreateAnswer(remoteOffer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	// ApplyAnswer applies the remote answer to a previously created offer.
	ApplyAnswer(remoteAnswer webrtc.SessionDescription) error
	// AddRemoteCandidate applies a remote ICE candidate. Candidates arriving
	// before a remote description are held by the engine and applied then.
	AddRemoteCandidate(webrtc.ICECandidateInit) error
	// ReplaceOutboundVideo swaps the outgoing video track without
	// renegotiation.
	ReplaceOutboundVideo(track webrtc.TrackLocal) error
	// Close releases all engine resources for this session.
	Close()
}

// MediaEngine builds one MediaSession per remote identity. Sessions are 1:1
// with peer session records and destroyed together with them.
type MediaEngine interface {
	NewSession(id domain.Identity, cb SessionCallbacks, audio, video webrtc.TrackLocal) (MediaSession, error)
}

// Devices acquires local capture tracks. Acquisition can fail (permission
// denied, hardware missing); callers decide whether that is fatal.
type Devices interface {
	Camera() (webrtc.TrackLocal, error)
	Microphone() (webrtc.TrackLocal, error)
	Screen() (webrtc.TrackLocal, error)
}

// VideoSource names which local track feeds every outbound video sender.
type VideoSource int

const (
	SourceCamera VideoSource = iota
	SourceScreen
)

func (s VideoSource) String() string {
	if s == SourceScreen {
		return "screen"
	}
	return "camera"
}
