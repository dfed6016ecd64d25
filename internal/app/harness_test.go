package app

import (
	"errors"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/domain"
	"github.com/martian56/videoo-call/internal/signaling"
)

// fakeSignal records outbound envelopes.
type fakeSignal struct {
	sent []signaling.Envelope
	open bool
}

func newFakeSignal() *fakeSignal { return &fakeSignal{open: true} }

func (f *fakeSignal) Send(env signaling.Envelope) error {
	if !f.open {
		return core.ErrChannelClosed
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSignal) IsOpen() bool { return f.open }

func (f *fakeSignal) byType(t string) []signaling.Envelope {
	var out []signaling.Envelope
	for _, env := range f.sent {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

// fakeSession records engine calls per peer.
type fakeSession struct {
	id             domain.Identity
	offers         int
	answers        int
	applied        []webrtc.SessionDescription
	candidates     []webrtc.ICECandidateInit
	replaced       []webrtc.TrackLocal
	closed         bool
	replaceErr     error
	createOfferErr error
}

func (s *fakeSession) CreateOffer() (webrtc.SessionDescription, error) {
	if s.createOfferErr != nil {
		return webrtc.SessionDescription{}, s.createOfferErr
	}
	s.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (s *fakeSession) CreateAnswer(remote webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	s.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (s *fakeSession) ApplyAnswer(remote webrtc.SessionDescription) error {
	s.applied = append(s.applied, remote)
	return nil
}

func (s *fakeSession) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	s.candidates = append(s.candidates, c)
	return nil
}

func (s *fakeSession) ReplaceOutboundVideo(track webrtc.TrackLocal) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced = append(s.replaced, track)
	return nil
}

func (s *fakeSession) Close() { s.closed = true }

// fakeEngine hands out fakeSessions and keeps the callbacks so tests can
// emit engine events.
type fakeEngine struct {
	sessions  map[domain.Identity][]*fakeSession
	callbacks map[domain.Identity]core.SessionCallbacks
	fail      error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		sessions:  make(map[domain.Identity][]*fakeSession),
		callbacks: make(map[domain.Identity]core.SessionCallbacks),
	}
}

func (e *fakeEngine) NewSession(id domain.Identity, cb core.SessionCallbacks, audio, video webrtc.TrackLocal) (core.MediaSession, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	s := &fakeSession{id: id}
	e.sessions[id] = append(e.sessions[id], s)
	e.callbacks[id] = cb
	return s, nil
}

// last returns the most recent session for an identity.
func (e *fakeEngine) last(id domain.Identity) *fakeSession {
	ss := e.sessions[id]
	if len(ss) == 0 {
		return nil
	}
	return ss[len(ss)-1]
}

func (e *fakeEngine) created(id domain.Identity) int { return len(e.sessions[id]) }

// connect reports the engine-level connected state for a peer.
func (e *fakeEngine) connect(id domain.Identity) {
	e.callbacks[id].OnStateChange(webrtc.PeerConnectionStateConnected)
}

func (e *fakeEngine) failPeer(id domain.Identity) {
	e.callbacks[id].OnStateChange(webrtc.PeerConnectionStateFailed)
}

// fakeDevices returns real static tracks, or errors when told to.
type fakeDevices struct {
	cameraErr error
	micErr    error
	screenErr error
	cameras   int
	screens   int
}

func (d *fakeDevices) Camera() (webrtc.TrackLocal, error) {
	if d.cameraErr != nil {
		return nil, d.cameraErr
	}
	d.cameras++
	t, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "camera", "t")
	return t, err
}

func (d *fakeDevices) Microphone() (webrtc.TrackLocal, error) {
	if d.micErr != nil {
		return nil, d.micErr
	}
	t, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "mic", "t")
	return t, err
}

func (d *fakeDevices) Screen() (webrtc.TrackLocal, error) {
	if d.screenErr != nil {
		return nil, d.screenErr
	}
	d.screens++
	t, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "screen", "t")
	return t, err
}

// fakeClock collects armed timers; tests fire them by hand.
type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	d        time.Duration
	fn       func()
	canceled bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) func() {
	t := &fakeTimer{d: d, fn: fn}
	c.timers = append(c.timers, t)
	return func() { t.canceled = true }
}

// fire runs every armed-and-unfired timer once.
func (c *fakeClock) fire() int {
	fired := 0
	for _, t := range c.timers {
		if t.fired || t.canceled {
			continue
		}
		t.fired = true
		t.fn()
		fired++
	}
	return fired
}

func (c *fakeClock) armed() int {
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.canceled {
			n++
		}
	}
	return n
}

var errDenied = errors.New("permission denied")

// fixture bundles an orchestrator with all of its fakes.
type fixture struct {
	orch    *Orchestrator
	signal  *fakeSignal
	engine  *fakeEngine
	devices *fakeDevices
	clock   *fakeClock
}

const selfID = domain.Identity("self")

func newFixture(opts Options) *fixture {
	f := &fixture{
		signal:  newFakeSignal(),
		engine:  newFakeEngine(),
		devices: &fakeDevices{},
		clock:   newFakeClock(),
	}
	f.orch = New(selfID, "Alice", f.signal, f.engine, f.devices, f.clock, opts)
	return f
}

// withMedia acquires local media; tests for the not-ready path skip it.
func (f *fixture) withMedia() *fixture {
	if err := f.orch.AcquireMedia(); err != nil {
		panic(err)
	}
	return f
}

// drain dispatches queued events until the loop is quiet, standing in for
// the Run goroutine.
func (f *fixture) drain() {
	for {
		select {
		case ev := <-f.orch.events:
			f.orch.handle(ev)
		default:
			return
		}
	}
}

// dispatch handles one event then drains any follow-ups.
func (f *fixture) dispatch(ev core.Event) {
	f.orch.handle(ev)
	f.drain()
}

func offerSDP() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 remote-offer"}
}

func answerSDP() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 remote-answer"}
}
