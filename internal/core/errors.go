package core

import "errors"

var (
	// ErrNoLocalMedia means offer/answer creation was attempted before the
	// local camera/microphone tracks were acquired. Recoverable by retry.
	ErrNoLocalMedia = errors.New("local media not ready")
	// ErrBadSignalingState means a remote description cannot be applied in
	// the engine's current negotiation state. The round is abandoned and
	// superseded by the next inbound event.
	ErrBadSignalingState = errors.New("bad signaling state")
	ErrNoSession         = errors.New("no media session")
	ErrChannelClosed     = errors.New("signaling channel closed")
	ErrAlreadySharing    = errors.New("screen share already active")
	ErrNotSharing        = errors.New("screen share not active")
)
