package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/signaling"
)

// StartScreenShare swaps the outbound video of every live session to a
// screen-capture track. The substitution is renegotiation-free: no session
// changes state and no offer is produced. A no-op when already sharing.
func (o *Orchestrator) StartScreenShare() error {
	return o.run(o.startScreenShare)
}

// StopScreenShare reverses the substitution back to the camera,
// re-acquiring a camera track if the original was released. A no-op when
// not sharing.
func (o *Orchestrator) StopScreenShare() error {
	return o.run(o.stopScreenShare)
}

func (o *Orchestrator) startScreenShare() error {
	if o.media.source == core.SourceScreen {
		return nil
	}

	screen, err := o.devices.Screen()
	if err != nil {
		// Fatal to this operation only; prior state is untouched.
		return fmt.Errorf("acquire screen: %w", err)
	}

	// Substitute on every current session, tolerating per-session failure:
	// one peer's broken sender must not stop the share for the rest.
	o.sessions.Each(func(ps *peerSession) {
		if !ps.negotiating() {
			return
		}
		if err := ps.media.ReplaceOutboundVideo(screen); err != nil {
			log.Error().Err(err).Str("module", "app").Str("peer", string(ps.id)).Msg("screen substitution failed")
		}
	})

	o.media.screen = screen
	o.media.source = core.SourceScreen
	o.send(signaling.ScreenShareStart())
	log.Info().Str("module", "app").Msg("screen share started")
	return nil
}

func (o *Orchestrator) stopScreenShare() error {
	if o.media.source != core.SourceScreen {
		return nil
	}

	if o.media.camera == nil {
		camera, err := o.devices.Camera()
		if err != nil {
			return fmt.Errorf("re-acquire camera: %w", err)
		}
		o.media.camera = camera
	}

	camera := o.media.camera
	o.sessions.Each(func(ps *peerSession) {
		if !ps.negotiating() {
			return
		}
		if err := ps.media.ReplaceOutboundVideo(camera); err != nil {
			log.Error().Err(err).Str("module", "app").Str("peer", string(ps.id)).Msg("camera restore failed")
		}
	})

	o.media.screen = nil
	o.media.source = core.SourceCamera
	o.send(signaling.ScreenShareStop())
	log.Info().Str("module", "app").Msg("screen share stopped")
	return nil
}

// negotiating reports whether the session carries outbound media worth
// substituting.
func (ps *peerSession) negotiating() bool {
	switch ps.state {
	case StateConnected, StateOffering, StateAnswering:
		return true
	default:
		return false
	}
}
