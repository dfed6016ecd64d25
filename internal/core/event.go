package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/martian56/videoo-call/internal/domain"
)

// Event is the tagged union of everything the orchestrator reacts to:
// inbound signaling messages, media-engine callbacks, timer firings and
// channel lifecycle changes. A single dispatcher consumes events one at a
// time, which keeps all session and directory mutations race-free.
type Event interface{ isEvent() }

// Channel lifecycle.

// ChannelOpen fires after every successful (re)connect of the signaling
// channel. Reconnect is false only for the first connect.
type ChannelOpen struct{ Reconnect bool }

// ChannelClosed fires when the signaling channel drops unexpectedly.
type ChannelClosed struct{}

// Inbound signaling.

type UserJoined struct {
	ID          domain.Identity
	DisplayName string
}

type UserLeft struct{ ID domain.Identity }

// Roster carries the participants-update snapshot sent by the server after
// our own join. States may be empty when the server has no presentation
// data for an identity.
type Roster struct {
	IDs    []domain.Identity
	States []domain.Participant
}

type OfferReceived struct {
	From domain.Identity
	SDP  webrtc.SessionDescription
}

type AnswerReceived struct {
	From domain.Identity
	SDP  webrtc.SessionDescription
}

type CandidateReceived struct {
	From      domain.Identity
	Candidate webrtc.ICECandidateInit
}

type AudioToggled struct {
	ID      domain.Identity
	Enabled bool
}

type VideoToggled struct {
	ID      domain.Identity
	Enabled bool
}

type ScreenShareStarted struct{ ID domain.Identity }

type ScreenShareStopped struct{ ID domain.Identity }

type NameUpdated struct {
	ID          domain.Identity
	DisplayName string
}

// ChatReceived is handed through to the external chat consumer untouched.
type ChatReceived struct {
	From        domain.Identity
	DisplayName string
	Message     string
	Timestamp   string
}

// Media engine callbacks, re-dispatched onto the loop.

type LocalCandidate struct {
	ID        domain.Identity
	Candidate webrtc.ICECandidateInit
}

type RemoteTrack struct {
	ID    domain.Identity
	Track *webrtc.TrackRemote
}

type PeerStateChanged struct {
	ID    domain.Identity
	State webrtc.PeerConnectionState
}

// Timers. Each firing carries the session epoch it was armed under; the
// dispatcher drops firings whose epoch is no longer current.

type RetryTick struct {
	ID    domain.Identity
	Epoch uint64
}

type GraceExpired struct {
	ID    domain.Identity
	Epoch uint64
}

// Command wraps a user-initiated operation so it executes on the dispatch
// loop like any other event.
type Command struct{ Run func() }

func (ChannelOpen) isEvent()        {}
func (ChannelClosed) isEvent()      {}
func (UserJoined) isEvent()         {}
func (UserLeft) isEvent()           {}
func (Roster) isEvent()             {}
func (OfferReceived) isEvent()      {}
func (AnswerReceived) isEvent()     {}
func (CandidateReceived) isEvent()  {}
func (AudioToggled) isEvent()       {}
func (VideoToggled) isEvent()       {}
func (ScreenShareStarted) isEvent() {}
func (ScreenShareStopped) isEvent() {}
func (NameUpdated) isEvent()        {}
func (ChatReceived) isEvent()       {}
func (LocalCandidate) isEvent()     {}
func (RemoteTrack) isEvent()        {}
func (PeerStateChanged) isEvent()   {}
func (RetryTick) isEvent()          {}
func (GraceExpired) isEvent()       {}
func (Command) isEvent()            {}
