package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/domain"
	"github.com/martian56/videoo-call/internal/signaling"
)

// SignalPort is what the orchestrator needs from the signaling channel.
type SignalPort interface {
	Send(signaling.Envelope) error
	IsOpen() bool
}

// Options are the tunables of the connection state machine.
type Options struct {
	GraceWindow     time.Duration // wait for existing members to offer first
	RetryBase       time.Duration // backoff base; delay grows with attempt count
	RetryCap        int           // max offer attempts per pending identity
	CandidateBuffer int           // early-candidate buffer per identity
	EventBuffer     int
}

func (o Options) withDefaults() Options {
	if o.GraceWindow == 0 {
		o.GraceWindow = 3 * time.Second
	}
	if o.RetryBase == 0 {
		o.RetryBase = time.Second
	}
	if o.RetryCap == 0 {
		o.RetryCap = 5
	}
	if o.CandidateBuffer == 0 {
		o.CandidateBuffer = 32
	}
	if o.EventBuffer == 0 {
		o.EventBuffer = 256
	}
	return o
}

// localMedia is the single per-process local media state, owned by the
// dispatch loop.
type localMedia struct {
	camera webrtc.TrackLocal
	mic    webrtc.TrackLocal
	screen webrtc.TrackLocal
	source core.VideoSource
}

func (m *localMedia) ready() bool { return m.camera != nil && m.mic != nil }

func (m *localMedia) outboundVideo() webrtc.TrackLocal {
	if m.source == core.SourceScreen && m.screen != nil {
		return m.screen
	}
	return m.camera
}

// pendingConn tracks an identity we owe a connection but could not serve
// yet, usually because local media was not ready. A non-nil remoteOffer
// means we owe an answer rather than an offer.
type pendingConn struct {
	attempts    int
	remoteOffer *webrtc.SessionDescription
}

// Orchestrator drives every peer session from a single dispatch loop.
// All mutations of the session table, directory, focus and local media
// happen on that loop; external callbacks and timers only post events.
type Orchestrator struct {
	self        domain.Identity
	displayName string

	signal  SignalPort
	engine  core.MediaEngine
	devices core.Devices
	clock   core.Clock
	opts    Options

	sessions  *SessionTable
	directory *Directory
	focus     *Focus
	media     localMedia

	localAudioOn bool
	localVideoOn bool

	pending map[domain.Identity]*pendingConn
	timers  map[domain.Identity]func()

	events chan core.Event
	quit   chan struct{}
	done   chan struct{}

	onTrack       func(domain.Identity, *webrtc.TrackRemote)
	onChat        func(core.ChatReceived)
	onChatHistory func(signaling.Envelope)
}

func New(self domain.Identity, displayName string, signal SignalPort, engine core.MediaEngine, devices core.Devices, clock core.Clock, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	dir := NewDirectory(self)
	return &Orchestrator{
		self:         self,
		displayName:  displayName,
		signal:       signal,
		engine:       engine,
		devices:      devices,
		clock:        clock,
		opts:         opts,
		sessions:     NewSessionTable(opts.CandidateBuffer, clock),
		directory:    dir,
		focus:        NewFocus(dir),
		localAudioOn: true,
		localVideoOn: true,
		pending:      make(map[domain.Identity]*pendingConn),
		timers:       make(map[domain.Identity]func()),
		events:       make(chan core.Event, opts.EventBuffer),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// OnRemoteTrack registers the renderer hook. Called on the dispatch loop.
func (o *Orchestrator) OnRemoteTrack(fn func(domain.Identity, *webrtc.TrackRemote)) { o.onTrack = fn }

// OnFocusChange registers the pin-change hook.
func (o *Orchestrator) OnFocusChange(fn func(domain.FocusState)) { o.focus.OnChange(fn) }

// OnChat registers the chat consumer; chat is not consumed by this core.
func (o *Orchestrator) OnChat(fn func(core.ChatReceived)) { o.onChat = fn }

// OnChatHistory registers the consumer for the history replay envelope.
func (o *Orchestrator) OnChatHistory(fn func(signaling.Envelope)) { o.onChatHistory = fn }

// AcquireMedia obtains the local camera and microphone. Call before Run;
// failure here is fatal to joining the meeting.
func (o *Orchestrator) AcquireMedia() error {
	camera, err := o.devices.Camera()
	if err != nil {
		return fmt.Errorf("acquire camera: %w", err)
	}
	mic, err := o.devices.Microphone()
	if err != nil {
		return fmt.Errorf("acquire microphone: %w", err)
	}
	o.media.camera = camera
	o.media.mic = mic
	log.Info().Str("module", "app").Msg("local media acquired")
	return nil
}

// Run consumes events until the context is cancelled or Leave is called.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.done)
	log.Info().Str("module", "app").Str("self", string(o.self)).Msg("orchestrator running")
	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return
		case <-o.quit:
			return
		case ev := <-o.events:
			o.handle(ev)
		}
	}
}

// post delivers an event to the dispatch loop. Safe from any goroutine.
func (o *Orchestrator) post(ev core.Event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

// run executes fn on the dispatch loop and waits for it.
func (o *Orchestrator) run(fn func() error) error {
	errc := make(chan error, 1)
	o.post(core.Command{Run: func() { errc <- fn() }})
	select {
	case err := <-errc:
		return err
	case <-o.done:
		return core.ErrChannelClosed
	}
}

func (o *Orchestrator) handle(ev core.Event) {
	switch ev := ev.(type) {
	case core.ChannelOpen:
		o.handleChannelOpen(ev.Reconnect)
	case core.ChannelClosed:
		o.handleChannelClosed()
	case core.UserJoined:
		o.handleUserJoined(ev.ID, ev.DisplayName)
	case core.UserLeft:
		o.handleUserLeft(ev.ID)
	case core.Roster:
		o.handleRoster(ev)
	case core.OfferReceived:
		o.handleOffer(ev.From, ev.SDP)
	case core.AnswerReceived:
		o.handleAnswer(ev.From, ev.SDP)
	case core.CandidateReceived:
		o.handleCandidate(ev.From, ev.Candidate)
	case core.AudioToggled:
		o.directory.SetAudio(ev.ID, ev.Enabled)
	case core.VideoToggled:
		o.directory.SetVideo(ev.ID, ev.Enabled)
	case core.ScreenShareStarted:
		o.directory.SetScreenSharing(ev.ID, true)
		o.focus.ShareStarted(ev.ID)
	case core.ScreenShareStopped:
		o.directory.SetScreenSharing(ev.ID, false)
		o.focus.ShareStopped(ev.ID)
	case core.NameUpdated:
		o.directory.Upsert(ev.ID, ev.DisplayName)
	case core.ChatReceived:
		if o.onChat != nil {
			o.onChat(ev)
		}
	case core.LocalCandidate:
		o.handleLocalCandidate(ev.ID, ev.Candidate)
	case core.RemoteTrack:
		if o.onTrack != nil {
			o.onTrack(ev.ID, ev.Track)
		}
	case core.PeerStateChanged:
		o.handlePeerState(ev.ID, ev.State)
	case core.RetryTick:
		o.handleRetryTick(ev.ID, ev.Epoch)
	case core.GraceExpired:
		o.handleGraceExpired(ev.ID, ev.Epoch)
	case core.Command:
		ev.Run()
	}
}

// shutdown cancels every pending timer and releases every session. Ran on
// the dispatch loop.
func (o *Orchestrator) shutdown() {
	o.send(signaling.Leave())
	for id, cancel := range o.timers {
		cancel()
		delete(o.timers, id)
	}
	o.pending = make(map[domain.Identity]*pendingConn)
	var ids []domain.Identity
	o.sessions.Each(func(s *peerSession) { ids = append(ids, s.id) })
	for _, id := range ids {
		o.sessions.Remove(id)
	}
	log.Info().Str("module", "app").Msg("orchestrator shut down")
}

// send is fire-and-forget; delivery failures are the transport's problem.
func (o *Orchestrator) send(env signaling.Envelope) {
	if err := o.signal.Send(env); err != nil {
		log.Debug().Err(err).Str("module", "app").Str("type", env.Type).Msg("send dropped")
	}
}

func (o *Orchestrator) cancelTimer(id domain.Identity) {
	if cancel, ok := o.timers[id]; ok {
		cancel()
		delete(o.timers, id)
	}
}

// Participants returns the directory snapshot in insertion order.
func (o *Orchestrator) Participants() []domain.Participant {
	var out []domain.Participant
	_ = o.run(func() error {
		out = o.directory.Snapshot()
		return nil
	})
	return out
}

// Focused returns the current pin state.
func (o *Orchestrator) Focused() domain.FocusState {
	var out domain.FocusState
	_ = o.run(func() error {
		out = o.focus.State()
		return nil
	})
	return out
}

// Pin pins or unpins a participant manually; pinning the already-pinned
// identity unpins it.
func (o *Orchestrator) Pin(id domain.Identity) {
	_ = o.run(func() error {
		o.focus.Pin(id)
		return nil
	})
}

// Unpin always clears the pin, whoever set it.
func (o *Orchestrator) Unpin() {
	_ = o.run(func() error {
		o.focus.Pin("")
		return nil
	})
}

// ToggleAudio flips the local microphone flag and announces it.
func (o *Orchestrator) ToggleAudio(enabled bool) {
	_ = o.run(func() error {
		o.localAudioOn = enabled
		o.send(signaling.AudioToggle(enabled))
		return nil
	})
}

// ToggleVideo flips the local camera flag and announces it.
func (o *Orchestrator) ToggleVideo(enabled bool) {
	_ = o.run(func() error {
		o.localVideoOn = enabled
		o.send(signaling.VideoToggle(enabled))
		return nil
	})
}

// SendChat sends a chat line; chat content is not interpreted here.
func (o *Orchestrator) SendChat(message string) {
	_ = o.run(func() error {
		o.send(signaling.Chat(o.displayName, message))
		return nil
	})
}

// Leave announces departure, releases every session and stops the loop.
func (o *Orchestrator) Leave() {
	_ = o.run(func() error {
		o.shutdown()
		close(o.quit)
		return nil
	})
}
