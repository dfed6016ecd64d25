package app

import (
	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/domain"
	"github.com/martian56/videoo-call/internal/signaling"
)

// HandleEnvelope converts one inbound wire message into a dispatch-loop
// event. It runs on the channel's read goroutine and must not touch
// orchestrator state directly.
func (o *Orchestrator) HandleEnvelope(env signaling.Envelope) {
	sender := domain.Identity(env.SenderID())
	if sender == o.self {
		// The server should never reflect our own messages; drop if it does.
		return
	}

	switch env.Type {
	case signaling.TypeUserJoined:
		o.post(core.UserJoined{ID: sender, DisplayName: env.DisplayName})

	case signaling.TypeUserLeft:
		o.post(core.UserLeft{ID: sender})

	case signaling.TypeParticipants:
		o.post(rosterEvent(env, o.self))

	case signaling.TypeOffer:
		sd, err := env.SessionDescription()
		if err != nil {
			log.Error().Err(err).Str("module", "app").Str("from", string(sender)).Msg("bad offer payload")
			return
		}
		o.post(core.OfferReceived{From: sender, SDP: sd})

	case signaling.TypeAnswer:
		sd, err := env.SessionDescription()
		if err != nil {
			log.Error().Err(err).Str("module", "app").Str("from", string(sender)).Msg("bad answer payload")
			return
		}
		o.post(core.AnswerReceived{From: sender, SDP: sd})

	case signaling.TypeICECandidate:
		c, err := env.Candidate()
		if err != nil {
			log.Error().Err(err).Str("module", "app").Str("from", string(sender)).Msg("bad candidate payload")
			return
		}
		o.post(core.CandidateReceived{From: sender, Candidate: c})

	case signaling.TypeAudioToggle:
		o.post(core.AudioToggled{ID: sender, Enabled: enabledOrDefault(env.Enabled)})

	case signaling.TypeVideoToggle:
		o.post(core.VideoToggled{ID: sender, Enabled: enabledOrDefault(env.Enabled)})

	case signaling.TypeScreenShareStart:
		o.post(core.ScreenShareStarted{ID: sender})

	case signaling.TypeScreenShareStop:
		o.post(core.ScreenShareStopped{ID: sender})

	case signaling.TypeNameUpdate:
		o.post(core.NameUpdated{ID: sender, DisplayName: env.DisplayName})

	case signaling.TypeChatMessage:
		o.post(core.ChatReceived{
			From:        sender,
			DisplayName: env.DisplayName,
			Message:     env.Message,
			Timestamp:   env.Timestamp,
		})

	case signaling.TypeChatHistory:
		// Replay envelope for the external chat collaborator, not this core.
		if o.onChatHistory != nil {
			o.onChatHistory(env)
		}

	default:
		log.Warn().Str("module", "app").Str("type", env.Type).Msg("unknown signal type")
	}
}

func enabledOrDefault(enabled *bool) bool {
	if enabled == nil {
		return true
	}
	return *enabled
}

func rosterEvent(env signaling.Envelope, self domain.Identity) core.Roster {
	ev := core.Roster{}
	for _, raw := range env.Participants {
		id := domain.Identity(raw)
		if id == self || id == "" {
			continue
		}
		ev.IDs = append(ev.IDs, id)
	}
	for _, st := range env.ParticipantsData {
		id := domain.Identity(st.ClientID)
		if id == self || id == "" {
			continue
		}
		p := domain.Participant{Identity: id, DisplayName: st.DisplayName, AudioEnabled: true, VideoEnabled: true}
		if st.AudioEnabled != nil {
			p.AudioEnabled = *st.AudioEnabled
		}
		if st.VideoEnabled != nil {
			p.VideoEnabled = *st.VideoEnabled
		}
		if st.ScreenSharing != nil {
			p.ScreenSharing = *st.ScreenSharing
		}
		ev.States = append(ev.States, p)
	}
	return ev
}

// HandleChannelOpen must be wired as the channel's OnOpen callback.
func (o *Orchestrator) HandleChannelOpen(reconnect bool) {
	o.post(core.ChannelOpen{Reconnect: reconnect})
}

// HandleChannelClosed must be wired as the channel's OnClosed callback.
func (o *Orchestrator) HandleChannelClosed() {
	o.post(core.ChannelClosed{})
}

// handleChannelOpen re-announces presence; the server has no memory of the
// previous socket.
func (o *Orchestrator) handleChannelOpen(reconnect bool) {
	log.Info().Str("module", "app").Bool("reconnect", reconnect).Msg("channel open, announcing")
	o.send(signaling.Join(o.displayName))
}

// handleChannelClosed invalidates nothing eagerly: in-flight negotiations
// are implicitly dead and will be superseded by fresh events after the
// automatic reconnect and re-join.
func (o *Orchestrator) handleChannelClosed() {
	log.Warn().Str("module", "app").Int("sessions", o.sessions.Count()).Msg("channel lost")
}

func (o *Orchestrator) handleUserJoined(id domain.Identity, displayName string) {
	o.directory.Upsert(id, displayName)
	if _, ok := o.sessions.Get(id); ok {
		// Already negotiating or connected; a stale duplicate join.
		log.Debug().Str("module", "app").Str("peer", string(id)).Msg("join for live session ignored")
		return
	}
	// Convention: existing members offer to new joiners, and we are the
	// existing member here.
	o.cancelTimer(id)
	o.initiateOffer(id)
}

func (o *Orchestrator) handleUserLeft(id domain.Identity) {
	log.Info().Str("module", "app").Str("peer", string(id)).Msg("participant left")
	o.cancelTimer(id)
	delete(o.pending, id)
	o.sessions.Remove(id)
	o.sessions.BumpEpoch(id)
	o.sessions.DropCandidates(id)
	o.directory.Remove(id)
	o.focus.ParticipantGone(id)
}

// handleRoster processes the snapshot received after our own join. For each
// already-present identity we wait a grace window for the existing member
// to offer first; only if no offer arrives do we offer ourselves. This
// breaks the deadlock of several existing members all waiting for each
// other.
func (o *Orchestrator) handleRoster(ev core.Roster) {
	states := make(map[domain.Identity]domain.Participant, len(ev.States))
	for _, st := range ev.States {
		states[st.Identity] = st
	}

	for _, id := range ev.IDs {
		p := o.directory.Upsert(id, states[id].DisplayName)
		if st, ok := states[id]; ok && p != nil {
			p.AudioEnabled = st.AudioEnabled
			p.VideoEnabled = st.VideoEnabled
			p.ScreenSharing = st.ScreenSharing
		}

		if _, ok := o.sessions.Get(id); ok {
			continue
		}
		if _, ok := o.pending[id]; ok {
			continue
		}
		if _, ok := o.timers[id]; ok {
			continue
		}

		peer := id
		epoch := o.sessions.Epoch(peer)
		o.timers[peer] = o.clock.AfterFunc(o.opts.GraceWindow, func() {
			o.post(core.GraceExpired{ID: peer, Epoch: epoch})
		})
		log.Debug().Str("module", "app").Str("peer", string(peer)).
			Dur("window", o.opts.GraceWindow).Msg("grace window armed")
	}
}

func (o *Orchestrator) handleGraceExpired(id domain.Identity, epoch uint64) {
	delete(o.timers, id)
	if epoch != o.sessions.Epoch(id) {
		log.Debug().Str("module", "app").Str("peer", string(id)).Msg("stale grace timer ignored")
		return
	}
	if _, ok := o.sessions.Get(id); ok {
		// The existing member offered within the window.
		return
	}
	if _, ok := o.directory.Get(id); !ok {
		return
	}
	log.Info().Str("module", "app").Str("peer", string(id)).Msg("grace window expired, offering")
	o.initiateOffer(id)
}
