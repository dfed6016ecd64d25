// Package signaling speaks the meeting server's websocket protocol: a JSON
// envelope per message, routed by type, with the sender identity stamped by
// the server on every forwarded message.
package signaling

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Message types recognized on the wire.
const (
	TypeJoin             = "join"
	TypeLeave            = "leave"
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeICECandidate     = "ice-candidate"
	TypeUserJoined       = "user-joined"
	TypeUserLeft         = "user-left"
	TypeParticipants     = "participants-update"
	TypeAudioToggle      = "audio-toggle"
	TypeVideoToggle      = "video-toggle"
	TypeScreenShareStart = "screen-share-start"
	TypeScreenShareStop  = "screen-share-stop"
	TypeNameUpdate       = "participant-name-update"
	TypeChatMessage      = "chat-message"
	TypeChatHistory      = "chat-history"
)

// ParticipantState is the per-identity presentation snapshot the server
// includes in participants-update.
type ParticipantState struct {
	ClientID      string `json:"clientId"`
	DisplayName   string `json:"displayName,omitempty"`
	AudioEnabled  *bool  `json:"audioEnabled,omitempty"`
	VideoEnabled  *bool  `json:"videoEnabled,omitempty"`
	ScreenSharing *bool  `json:"screenSharing,omitempty"`
}

// Envelope is the wire message. Outbound messages never set From; the
// server stamps the sender identity when forwarding.
type Envelope struct {
	Type             string             `json:"type"`
	From             string             `json:"from,omitempty"`
	Target           string             `json:"target,omitempty"`
	ClientID         string             `json:"clientId,omitempty"`
	Data             json.RawMessage    `json:"data,omitempty"`
	DisplayName      string             `json:"displayName,omitempty"`
	Enabled          *bool              `json:"enabled,omitempty"`
	Message          string             `json:"message,omitempty"`
	Timestamp        string             `json:"timestamp,omitempty"`
	Participants     []string           `json:"participants,omitempty"`
	ParticipantsData []ParticipantState `json:"participantsData,omitempty"`
}

// SenderID is the identity a forwarded message came from. The server uses
// "from" for routed signals and "clientId" for broadcast notifications.
func (e *Envelope) SenderID() string {
	if e.From != "" {
		return e.From
	}
	return e.ClientID
}

// SessionDescription decodes the data field of an offer/answer envelope.
func (e *Envelope) SessionDescription() (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	err := json.Unmarshal(e.Data, &sd)
	return sd, err
}

// Candidate decodes the data field of an ice-candidate envelope.
func (e *Envelope) Candidate() (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	err := json.Unmarshal(e.Data, &c)
	return c, err
}

func Join(displayName string) Envelope {
	return Envelope{Type: TypeJoin, DisplayName: displayName}
}

func Leave() Envelope {
	return Envelope{Type: TypeLeave}
}

func Offer(target string, sd webrtc.SessionDescription) (Envelope, error) {
	data, err := json.Marshal(sd)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeOffer, Target: target, Data: data}, nil
}

func Answer(target string, sd webrtc.SessionDescription) (Envelope, error) {
	data, err := json.Marshal(sd)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeAnswer, Target: target, Data: data}, nil
}

func Candidate(target string, c webrtc.ICECandidateInit) (Envelope, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeICECandidate, Target: target, Data: data}, nil
}

func AudioToggle(enabled bool) Envelope {
	return Envelope{Type: TypeAudioToggle, Enabled: &enabled}
}

func VideoToggle(enabled bool) Envelope {
	return Envelope{Type: TypeVideoToggle, Enabled: &enabled}
}

func ScreenShareStart() Envelope {
	return Envelope{Type: TypeScreenShareStart}
}

func ScreenShareStop() Envelope {
	return Envelope{Type: TypeScreenShareStop}
}

func Chat(displayName, message string) Envelope {
	return Envelope{Type: TypeChatMessage, DisplayName: displayName, Message: message}
}
