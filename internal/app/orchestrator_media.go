package app

import (
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/domain"
	"github.com/martian56/videoo-call/internal/signaling"
)

func (o *Orchestrator) callbacksFor(id domain.Identity) core.SessionCallbacks {
	return core.SessionCallbacks{
		OnLocalCandidate: func(c webrtc.ICECandidateInit) {
			o.post(core.LocalCandidate{ID: id, Candidate: c})
		},
		OnRemoteTrack: func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			o.post(core.RemoteTrack{ID: id, Track: track})
		},
		OnStateChange: func(state webrtc.PeerConnectionState) {
			o.post(core.PeerStateChanged{ID: id, State: state})
		},
	}
}

// initiateOffer starts an outbound negotiation, or queues the identity for
// retry when it cannot be served yet.
func (o *Orchestrator) initiateOffer(id domain.Identity) {
	if err := o.offerPeer(id); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("peer", string(id)).Msg("offer deferred")
		o.queuePending(id, nil)
	}
}

// offerPeer creates a session and sends an offer. ErrNoLocalMedia is the
// transient "retry later" signal.
func (o *Orchestrator) offerPeer(id domain.Identity) error {
	if _, ok := o.sessions.Get(id); ok {
		return nil
	}
	if !o.media.ready() {
		return core.ErrNoLocalMedia
	}

	ms, err := o.engine.NewSession(id, o.callbacksFor(id), o.media.mic, o.media.outboundVideo())
	if err != nil {
		return err
	}
	offer, err := ms.CreateOffer()
	if err != nil {
		ms.Close()
		return err
	}

	ps := o.sessions.Create(id, ms)
	ps.state = StateOffering
	ps.pendingOffer = true

	env, err := signaling.Offer(string(id), offer)
	if err != nil {
		return err
	}
	o.send(env)
	o.flushCandidatesInto(ps)
	log.Info().Str("module", "app").Str("peer", string(id)).Msg("offer sent")
	return nil
}

// answerPeer creates a session for an inbound offer and answers it.
func (o *Orchestrator) answerPeer(id domain.Identity, remoteOffer webrtc.SessionDescription) error {
	if !o.media.ready() {
		return core.ErrNoLocalMedia
	}

	ms, err := o.engine.NewSession(id, o.callbacksFor(id), o.media.mic, o.media.outboundVideo())
	if err != nil {
		return err
	}
	answer, err := ms.CreateAnswer(remoteOffer)
	if err != nil {
		ms.Close()
		return err
	}

	ps := o.sessions.Create(id, ms)
	ps.state = StateAnswering

	env, err := signaling.Answer(string(id), answer)
	if err != nil {
		return err
	}
	o.send(env)
	o.flushCandidatesInto(ps)
	log.Info().Str("module", "app").Str("peer", string(id)).Msg("answer sent")
	return nil
}

func (o *Orchestrator) handleOffer(from domain.Identity, sdp webrtc.SessionDescription) {
	o.directory.Upsert(from, "")
	o.cancelTimer(from)

	if ps, ok := o.sessions.Get(from); ok {
		switch ps.state {
		case StateOffering:
			// Glare: both sides offered. The inbound offer wins; our
			// un-answered offer and its session are discarded so both ends
			// converge on a single negotiation.
			log.Debug().Str("module", "app").Str("peer", string(from)).Msg("glare, inbound offer wins")
			o.sessions.Remove(from)
		case StateConnected:
			// Re-offer on a stable session: answer in place.
			answer, err := ps.media.CreateAnswer(sdp)
			if err != nil {
				log.Warn().Err(err).Str("module", "app").Str("peer", string(from)).Msg("re-offer abandoned")
				return
			}
			env, err := signaling.Answer(string(from), answer)
			if err != nil {
				log.Error().Err(err).Str("module", "app").Str("peer", string(from)).Msg("re-answer encode")
				return
			}
			o.send(env)
			return
		default:
			log.Warn().Str("module", "app").Str("peer", string(from)).
				Str("state", ps.state.String()).Msg("offer in unexpected state, abandoned")
			return
		}
	}

	if err := o.answerPeer(from, sdp); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("peer", string(from)).Msg("answer deferred")
		o.queuePending(from, &sdp)
	} else {
		delete(o.pending, from)
	}
}

func (o *Orchestrator) handleAnswer(from domain.Identity, sdp webrtc.SessionDescription) {
	ps, ok := o.sessions.Get(from)
	if !ok || ps.state != StateOffering {
		log.Warn().Str("module", "app").Str("peer", string(from)).Msg("answer without pending offer, ignored")
		return
	}
	if err := ps.media.ApplyAnswer(sdp); err != nil {
		// Abandon the round; the next inbound event supersedes it.
		log.Warn().Err(err).Str("module", "app").Str("peer", string(from)).Msg("answer rejected")
		return
	}
	ps.pendingOffer = false
	log.Info().Str("module", "app").Str("peer", string(from)).Msg("answer applied")
}

// handleCandidate feeds a remote candidate to its session, or buffers it
// until a session exists. Candidates are never silently lost short of the
// buffer bound.
func (o *Orchestrator) handleCandidate(from domain.Identity, c webrtc.ICECandidateInit) {
	if ps, ok := o.sessions.Get(from); ok {
		if err := ps.media.AddRemoteCandidate(c); err != nil {
			log.Error().Err(err).Str("module", "app").Str("peer", string(from)).Msg("add candidate")
		}
		return
	}
	o.sessions.BufferCandidate(from, c)
}

func (o *Orchestrator) flushCandidatesInto(ps *peerSession) {
	for _, c := range o.sessions.DrainCandidates(ps.id) {
		if err := ps.media.AddRemoteCandidate(c); err != nil {
			log.Error().Err(err).Str("module", "app").Str("peer", string(ps.id)).Msg("flush candidate")
		}
	}
}

func (o *Orchestrator) handleLocalCandidate(id domain.Identity, c webrtc.ICECandidateInit) {
	if _, ok := o.sessions.Get(id); !ok {
		// Session torn down between gathering and dispatch.
		return
	}
	env, err := signaling.Candidate(string(id), c)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("peer", string(id)).Msg("candidate encode")
		return
	}
	o.send(env)
}

func (o *Orchestrator) handlePeerState(id domain.Identity, state webrtc.PeerConnectionState) {
	ps, ok := o.sessions.Get(id)
	if !ok {
		return
	}

	switch state {
	case webrtc.PeerConnectionStateConnected:
		if ps.state == StateOffering || ps.state == StateAnswering {
			ps.state = StateConnected
			ps.pendingOffer = false
			log.Info().Str("module", "app").Str("peer", string(id)).Msg("peer connected")
		}
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
		// Degraded: tear the session down but keep the directory record;
		// the participant may still be a member and may reconnect. A fresh
		// session is created only on their next join or offer.
		ps.state = StateDegraded
		log.Warn().Str("module", "app").Str("peer", string(id)).Str("state", state.String()).Msg("peer degraded")
		o.cancelTimer(id)
		delete(o.pending, id)
		o.sessions.Remove(id)
		o.directory.MarkNoMedia(id)
		o.focus.ParticipantGone(id)
	}
}

// queuePending places an identity on the pending-connection set and arms
// its retry timer. A stored remote offer means the retry answers instead
// of offering.
func (o *Orchestrator) queuePending(id domain.Identity, remoteOffer *webrtc.SessionDescription) {
	entry, ok := o.pending[id]
	if !ok {
		entry = &pendingConn{}
		o.pending[id] = entry
	}
	if remoteOffer != nil {
		entry.remoteOffer = remoteOffer
	}
	if _, armed := o.timers[id]; armed {
		return
	}
	o.scheduleRetry(id, entry.attempts)
}

func (o *Orchestrator) scheduleRetry(id domain.Identity, attempts int) {
	delay := o.opts.RetryBase * time.Duration(attempts+1)
	epoch := o.sessions.Epoch(id)
	o.timers[id] = o.clock.AfterFunc(delay, func() {
		o.post(core.RetryTick{ID: id, Epoch: epoch})
	})
	log.Debug().Str("module", "app").Str("peer", string(id)).
		Int("attempt", attempts+1).Dur("delay", delay).Msg("retry scheduled")
}

func (o *Orchestrator) handleRetryTick(id domain.Identity, epoch uint64) {
	delete(o.timers, id)
	if epoch != o.sessions.Epoch(id) {
		log.Debug().Str("module", "app").Str("peer", string(id)).Msg("stale retry ignored")
		return
	}
	entry, ok := o.pending[id]
	if !ok {
		return
	}
	if _, ok := o.sessions.Get(id); ok {
		delete(o.pending, id)
		return
	}

	entry.attempts++
	var err error
	if entry.remoteOffer != nil {
		err = o.answerPeer(id, *entry.remoteOffer)
	} else {
		err = o.offerPeer(id)
	}
	if err == nil {
		delete(o.pending, id)
		return
	}

	if entry.attempts >= o.opts.RetryCap {
		// Silent degradation: the identity is dropped from the pending set
		// and left without a session until a fresh join or offer arrives.
		log.Warn().Err(err).Str("module", "app").Str("peer", string(id)).
			Int("attempts", entry.attempts).Msg("retries exhausted, giving up")
		delete(o.pending, id)
		return
	}
	log.Debug().Err(err).Str("module", "app").Str("peer", string(id)).
		Int("attempt", entry.attempts).Msg("retry failed")
	o.scheduleRetry(id, entry.attempts)
}
