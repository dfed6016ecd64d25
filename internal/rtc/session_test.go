package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/domain"
)

// newTestSession builds a session with local tracks attached and no ICE
// servers, so nothing leaves the process.
func newTestSession(t *testing.T, id domain.Identity) *session {
	t.Helper()
	devices := NewStaticDevices()
	mic, err := devices.Microphone()
	require.NoError(t, err)
	camera, err := devices.Camera()
	require.NoError(t, err)

	engine := NewEngine(webrtc.Configuration{})
	ms, err := engine.NewSession(id, core.SessionCallbacks{}, mic, camera)
	require.NoError(t, err)
	s := ms.(*session)
	t.Cleanup(s.Close)
	return s
}

func TestOfferAnswerHandshake(t *testing.T) {
	caller := newTestSession(t, "caller")
	callee := newTestSession(t, "callee")

	offer, err := caller.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)

	answer, err := callee.CreateAnswer(offer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	require.NoError(t, caller.ApplyAnswer(answer))
	assert.Equal(t, webrtc.SignalingStateStable, caller.pc.SignalingState())
	assert.Equal(t, webrtc.SignalingStateStable, callee.pc.SignalingState())
}

func TestApplyAnswerWithoutOffer(t *testing.T) {
	s := newTestSession(t, "caller")
	err := s.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"})
	assert.ErrorIs(t, err, core.ErrBadSignalingState)
}

func TestCreateAnswerRejectsGarbage(t *testing.T) {
	s := newTestSession(t, "callee")
	_, err := s.CreateAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"})
	assert.ErrorIs(t, err, core.ErrBadSignalingState)
}

func TestCandidatesHeldUntilRemoteDescription(t *testing.T) {
	caller := newTestSession(t, "caller")
	callee := newTestSession(t, "callee")

	offer, err := caller.CreateOffer()
	require.NoError(t, err)

	idx := uint16(0)
	cand := webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host",
		SDPMLineIndex: &idx,
	}

	// Trickled candidates routinely beat the offer; they must be held, not
	// rejected.
	require.NoError(t, callee.AddRemoteCandidate(cand))
	require.Len(t, callee.held, 1)

	_, err = callee.CreateAnswer(offer)
	require.NoError(t, err)
	assert.Empty(t, callee.held)
	assert.True(t, callee.applied)

	// Later candidates go straight to the connection.
	require.NoError(t, callee.AddRemoteCandidate(cand))
	assert.Empty(t, callee.held)
}

func TestReplaceOutboundVideo(t *testing.T) {
	s := newTestSession(t, "caller")

	screen, err := NewStaticDevices().Screen()
	require.NoError(t, err)
	require.NoError(t, s.ReplaceOutboundVideo(screen))

	camera, err := NewStaticDevices().Camera()
	require.NoError(t, err)
	require.NoError(t, s.ReplaceOutboundVideo(camera))
}

func TestReplaceOutboundVideoWithoutSender(t *testing.T) {
	mic, err := NewStaticDevices().Microphone()
	require.NoError(t, err)

	engine := NewEngine(webrtc.Configuration{})
	ms, err := engine.NewSession("audio-only", core.SessionCallbacks{}, mic, nil)
	require.NoError(t, err)
	defer ms.Close()

	screen, err := NewStaticDevices().Screen()
	require.NoError(t, err)
	assert.ErrorIs(t, ms.ReplaceOutboundVideo(screen), core.ErrNoSession)
}

func TestCloseIdempotent(t *testing.T) {
	s := newTestSession(t, "caller")

	s.Close()
	s.Close()
	assert.ErrorIs(t, s.AddRemoteCandidate(webrtc.ICECandidateInit{}), core.ErrNoSession)
}

func TestConfigurationFor(t *testing.T) {
	cfg := ConfigurationFor(nil)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, DefaultConfiguration(), cfg)

	cfg = ConfigurationFor([]string{"stun:stun.example.org:3478"})
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.ICEServers[0].URLs)
}

func TestSampleWriter(t *testing.T) {
	camera, err := NewStaticDevices().Camera()
	require.NoError(t, err)

	w, err := SampleWriter(camera)
	require.NoError(t, err)
	assert.NotNil(t, w)

	_, err = SampleWriter(nil)
	assert.ErrorIs(t, err, core.ErrNoLocalMedia)
}
