// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 100

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

// Identity names one participant's process for the duration of one
// meeting attendance. Issued client-side at join time, opaque to the server.
type Identity string

// NewIdentity issues a fresh client identity.
func NewIdentity() Identity {
	return Identity(uuid.NewString())
}

// Participant is the last-known presentation state of one meeting member.
// Audio and video start enabled; screen sharing starts off.
type Participant struct {
	Identity      Identity `json:"clientId"`
	DisplayName   string   `json:"displayName,omitempty"`
	AudioEnabled  bool     `json:"audioEnabled"`
	VideoEnabled  bool     `json:"videoEnabled"`
	ScreenSharing bool     `json:"screenSharing"`
}

// NewParticipant avoids raw literals in adapters and keeps defaults obvious.
func NewParticipant(id Identity, displayName string) *Participant {
	return &Participant{
		Identity:     id,
		DisplayName:  displayName,
		AudioEnabled: true,
		VideoEnabled: true,
	}
}

func (p *Participant) SetDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	p.DisplayName = name
	return nil
}
