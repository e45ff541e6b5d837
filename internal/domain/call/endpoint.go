package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/okian/vigil/pkg/logger"
)

// Config identifies an endpoint and wires its collaborators.
type Config struct {
	Role      Role
	MeetingID string
	SessionID string
	Media     MediaSource
	Peers     PeerFactory
	Signal    Signaler
}

// leg is one channel of the call.
type leg struct {
	channel Channel
	machine *Machine
	peer    Peer
	local   *Stream
	pending []webrtc.ICECandidateInit

	// remoteSet is true once the peer has the remote description and can
	// take candidates directly.
	remoteSet bool

	// ready records a peer_call_ready that arrived before StartCall.
	ready bool

	// gen invalidates callbacks from peers that were torn down.
	gen int
}

type stateChange struct {
	channel Channel
	state   State
}

// Endpoint is one participant's side of a call. The observer initiates the
// primary channel; the candidate initiates screen share. Each channel has
// its own state machine and failing one never touches the other.
type Endpoint struct {
	role      Role
	meetingID string
	sessionID string
	media     MediaSource
	peers     PeerFactory
	signal    Signaler

	logger           logger.Logger
	mediaTimeout     time.Duration
	handshakeTimeout time.Duration
	onLocal          func(Channel, *Stream)
	onRemote         func(Channel, *Stream)
	onState          func(Channel, State)

	mu      sync.Mutex
	legs    map[Channel]*leg
	changes []stateChange
}

// NewEndpoint validates cfg and returns an idle endpoint.
func NewEndpoint(cfg Config, opts ...Option) (*Endpoint, error) {
	if !cfg.Role.Valid() {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidConfig, cfg.Role)
	}
	if cfg.SessionID == "" || cfg.Peers == nil || cfg.Signal == nil {
		return nil, fmt.Errorf("%w: session, peers and signaler are required", ErrInvalidConfig)
	}
	e := &Endpoint{
		role:             cfg.Role,
		meetingID:        cfg.MeetingID,
		sessionID:        cfg.SessionID,
		media:            cfg.Media,
		peers:            cfg.Peers,
		signal:           cfg.Signal,
		logger:           logger.Nop(),
		mediaTimeout:     DefaultMediaTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
		legs: map[Channel]*leg{
			ChannelPrimary: {channel: ChannelPrimary, machine: NewMachine()},
			ChannelScreen:  {channel: ChannelScreen, machine: NewMachine()},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("call")
	return e, nil
}

// Role returns the endpoint role.
func (e *Endpoint) Role() Role { return e.role }

// State returns the current state of ch.
func (e *Endpoint) State(ch Channel) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.legs[ch].machine.State()
}

// StartCall acquires camera media and announces readiness. The candidate
// fails fast to error without media; the observer continues receive-only.
// A channel in ended or error may be started again.
func (e *Endpoint) StartCall(ctx context.Context) error {
	l := e.legs[ChannelPrimary]

	e.mu.Lock()
	l.machine.Reset()
	if l.machine.State() != StateIdle {
		e.mu.Unlock()
		return ErrCallActive
	}
	gen := l.gen
	e.mu.Unlock()

	stream, err := e.acquire(ctx, MediaCamera)
	if err != nil {
		if e.role == RoleCandidate {
			e.mu.Lock()
			e.transitionLocked(l, StateError)
			e.unlockAndNotify()
			return fmt.Errorf("%w: %w", ErrMediaUnavailable, err)
		}
		e.logger.Warn(ctx, "camera unavailable, joining receive-only",
			logger.SessionID(e.sessionID), logger.Error(err))
		stream = nil
	}

	e.mu.Lock()
	if l.gen != gen || l.machine.State() != StateIdle {
		e.mu.Unlock()
		stream.Release()
		return ErrCallEnded
	}
	l.local = stream
	e.transitionLocked(l, StateWaiting)
	initiate := e.role == RoleObserver && l.ready
	l.ready = false
	e.unlockAndNotify()

	if stream != nil && e.onLocal != nil {
		e.onLocal(ChannelPrimary, stream)
	}

	if e.role == RoleCandidate {
		return e.send(ctx, Message{Kind: KindCallReady, Target: RoleObserver})
	}
	if initiate {
		return e.offer(ctx, l, KindOffer)
	}
	return nil
}

// Announce re-sends call_ready while the candidate is waiting, for an
// observer that joined after the first announcement.
func (e *Endpoint) Announce(ctx context.Context) error {
	if e.role != RoleCandidate {
		return fmt.Errorf("%w: only the candidate announces", ErrUnexpected)
	}
	if e.State(ChannelPrimary) != StateWaiting {
		return fmt.Errorf("%w: announce while %s", ErrUnexpected, e.State(ChannelPrimary))
	}
	return e.send(ctx, Message{Kind: KindCallReady, Target: RoleObserver})
}

// EndCall tears down both channels and releases every local track. It is
// safe to call at any time and more than once.
func (e *Endpoint) EndCall() {
	e.teardown(e.legs[ChannelScreen], StateEnded)
	e.teardown(e.legs[ChannelPrimary], StateEnded)
}

// ToggleMute flips the local audio tracks and reports whether audio is now
// muted.
func (e *Endpoint) ToggleMute() (bool, error) {
	enabled, err := e.toggle(TrackAudio)
	if err != nil {
		return false, err
	}
	return !enabled, nil
}

// ToggleCamera flips the local video tracks and reports whether video is
// now on.
func (e *Endpoint) ToggleCamera() (bool, error) {
	return e.toggle(TrackVideo)
}

func (e *Endpoint) toggle(kind TrackKind) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	local := e.legs[ChannelPrimary].local
	if local == nil {
		return false, ErrNoLocalMedia
	}
	enabled, ok := local.toggle(kind)
	if !ok {
		return false, ErrNoLocalMedia
	}
	return enabled, nil
}

// StartScreenShare captures the screen and offers it to the observer.
// Only the candidate shares its screen.
func (e *Endpoint) StartScreenShare(ctx context.Context) error {
	if e.role != RoleCandidate {
		return fmt.Errorf("%w: %s cannot share a screen", ErrUnexpected, e.role)
	}
	l := e.legs[ChannelScreen]

	e.mu.Lock()
	l.machine.Reset()
	if l.machine.State() != StateIdle {
		e.mu.Unlock()
		return ErrCallActive
	}
	gen := l.gen
	e.mu.Unlock()

	stream, err := e.acquire(ctx, MediaScreen)
	if err != nil {
		e.mu.Lock()
		e.transitionLocked(l, StateError)
		e.unlockAndNotify()
		return fmt.Errorf("%w: %w", ErrMediaUnavailable, err)
	}

	e.mu.Lock()
	if l.gen != gen || l.machine.State() != StateIdle {
		e.mu.Unlock()
		stream.Release()
		return ErrCallEnded
	}
	l.local = stream
	e.transitionLocked(l, StateWaiting)
	e.unlockAndNotify()

	if e.onLocal != nil {
		e.onLocal(ChannelScreen, stream)
	}
	return e.offer(ctx, l, KindScreenOffer)
}

// StopScreenShare ends the screen channel and tells the observer. The
// primary channel is not touched.
func (e *Endpoint) StopScreenShare(ctx context.Context) error {
	l := e.legs[ChannelScreen]
	e.teardown(l, StateEnded)
	if e.role != RoleCandidate {
		return nil
	}
	return e.send(ctx, Message{Kind: KindScreenStopped, Target: RoleObserver})
}

// Handle applies one signaling message received from the relay.
func (e *Endpoint) Handle(ctx context.Context, msg Message) error {
	if msg.SessionID != "" && msg.SessionID != e.sessionID {
		return fmt.Errorf("%w: session %s", ErrUnexpected, msg.SessionID)
	}

	switch {
	case msg.Kind == KindPeerCallReady && e.role == RoleObserver:
		return e.handleReady(ctx)
	case msg.Kind == KindOffer && e.role == RoleCandidate:
		return e.handleOffer(ctx, e.legs[ChannelPrimary], msg, KindAnswer)
	case msg.Kind == KindScreenOffer && e.role == RoleObserver:
		return e.handleOffer(ctx, e.legs[ChannelScreen], msg, KindScreenAnswer)
	case msg.Kind == KindAnswer && e.role == RoleObserver:
		return e.handleAnswer(ctx, e.legs[ChannelPrimary], msg)
	case msg.Kind == KindScreenAnswer && e.role == RoleCandidate:
		return e.handleAnswer(ctx, e.legs[ChannelScreen], msg)
	case msg.Kind == KindICE:
		return e.handleICE(e.legs[ChannelPrimary], msg)
	case msg.Kind == KindScreenICE:
		return e.handleICE(e.legs[ChannelScreen], msg)
	case msg.Kind == KindScreenStopped && e.role == RoleObserver:
		e.teardown(e.legs[ChannelScreen], StateEnded)
		return nil
	case msg.Kind == KindSessionEnded:
		e.EndCall()
		return nil
	}
	return fmt.Errorf("%w: %s for %s", ErrUnexpected, msg.Kind, e.role)
}

func (e *Endpoint) handleReady(ctx context.Context) error {
	l := e.legs[ChannelPrimary]
	e.mu.Lock()
	switch l.machine.State() {
	case StateWaiting:
		e.mu.Unlock()
		return e.offer(ctx, l, KindOffer)
	case StateIdle:
		l.ready = true
	}
	e.mu.Unlock()
	return nil
}

func (e *Endpoint) handleOffer(ctx context.Context, l *leg, msg Message, answerKind MessageKind) error {
	if msg.SDP == nil {
		return fmt.Errorf("%w: offer without sdp", ErrUnexpected)
	}

	e.mu.Lock()
	if l.channel == ChannelScreen {
		// The receiving side of screen share has no media step.
		if l.peer != nil {
			e.mu.Unlock()
			e.teardown(l, StateEnded)
			e.mu.Lock()
		}
		l.machine.Reset()
		if l.machine.State() == StateIdle {
			e.transitionLocked(l, StateWaiting)
		}
	}
	if l.machine.State() != StateWaiting {
		st := l.machine.State()
		e.mu.Unlock()
		return fmt.Errorf("%w: offer while %s", ErrUnexpected, st)
	}
	e.unlockAndNotify()

	peer, gen, err := e.newPeer(ctx, l)
	if err != nil {
		return err
	}
	hctx, cancel := context.WithTimeout(ctx, e.handshakeTimeout)
	defer cancel()
	answer, err := peer.CreateAnswer(hctx, *msg.SDP)
	if err != nil {
		e.fail(l, gen, err)
		return fmt.Errorf("create answer: %w", err)
	}

	if !e.advance(l, gen, StateConnecting) {
		return ErrCallEnded
	}
	e.flushICE(l, gen)
	return e.send(ctx, Message{Kind: answerKind, Target: e.role.Peer(), SDP: &answer})
}

func (e *Endpoint) handleAnswer(ctx context.Context, l *leg, msg Message) error {
	if msg.SDP == nil {
		return fmt.Errorf("%w: answer without sdp", ErrUnexpected)
	}
	e.mu.Lock()
	peer, gen := l.peer, l.gen
	e.mu.Unlock()
	if peer == nil {
		return fmt.Errorf("%w: answer with no pending offer", ErrUnexpected)
	}

	hctx, cancel := context.WithTimeout(ctx, e.handshakeTimeout)
	defer cancel()
	if err := peer.SetAnswer(hctx, *msg.SDP); err != nil {
		e.fail(l, gen, err)
		return fmt.Errorf("set answer: %w", err)
	}
	e.flushICE(l, gen)
	return nil
}

func (e *Endpoint) handleICE(l *leg, msg Message) error {
	if msg.Candidate == nil {
		return fmt.Errorf("%w: ice without candidate", ErrUnexpected)
	}
	e.mu.Lock()
	peer := l.peer
	if peer == nil || !l.remoteSet {
		l.pending = append(l.pending, *msg.Candidate)
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	return peer.AddICECandidate(*msg.Candidate)
}

// offer creates the initiating side of l and sends the offer.
func (e *Endpoint) offer(ctx context.Context, l *leg, kind MessageKind) error {
	peer, gen, err := e.newPeer(ctx, l)
	if err != nil {
		return err
	}
	hctx, cancel := context.WithTimeout(ctx, e.handshakeTimeout)
	defer cancel()
	sdp, err := peer.CreateOffer(hctx)
	if err != nil {
		e.fail(l, gen, err)
		return fmt.Errorf("create offer: %w", err)
	}
	if !e.advance(l, gen, StateConnecting) {
		return ErrCallEnded
	}
	return e.send(ctx, Message{Kind: kind, Target: e.role.Peer(), SDP: &sdp})
}

func (e *Endpoint) newPeer(ctx context.Context, l *leg) (Peer, int, error) {
	e.mu.Lock()
	l.gen++
	gen := l.gen
	local := l.local
	old := l.peer
	l.peer = nil
	l.remoteSet = false
	e.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	hctx, cancel := context.WithTimeout(ctx, e.handshakeTimeout)
	defer cancel()
	peer, err := e.peers.NewPeer(hctx, PeerConfig{
		Channel: l.channel,
		Local:   local,
		OnICECandidate: func(c webrtc.ICECandidateInit) {
			e.localCandidate(l, gen, c)
		},
		OnRemoteStream: func(s *Stream) {
			e.remoteStream(l, gen, s)
		},
		OnStateChange: func(st PeerState) {
			e.peerState(l, gen, st)
		},
	})
	if err != nil {
		e.fail(l, gen, err)
		return nil, 0, fmt.Errorf("new peer: %w", err)
	}

	e.mu.Lock()
	if l.gen != gen {
		e.mu.Unlock()
		_ = peer.Close()
		return nil, 0, ErrCallEnded
	}
	l.peer = peer
	e.mu.Unlock()
	return peer, gen, nil
}

func (e *Endpoint) localCandidate(l *leg, gen int, c webrtc.ICECandidateInit) {
	e.mu.Lock()
	current := l.gen == gen
	e.mu.Unlock()
	if !current {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.handshakeTimeout)
	defer cancel()
	if err := e.send(ctx, Message{Kind: iceKind(l.channel), Target: e.role.Peer(), Candidate: &c}); err != nil {
		e.logger.Warn(ctx, "ice candidate not sent", logger.String("channel", string(l.channel)), logger.Error(err))
	}
}

func (e *Endpoint) remoteStream(l *leg, gen int, s *Stream) {
	e.mu.Lock()
	current := l.gen == gen
	e.mu.Unlock()
	if current && e.onRemote != nil {
		e.onRemote(l.channel, s)
	}
}

func (e *Endpoint) peerState(l *leg, gen int, st PeerState) {
	switch st {
	case PeerConnected:
		e.advance(l, gen, StateConnected)
	case PeerFailed:
		e.fail(l, gen, fmt.Errorf("peer connection %s", st))
	}
}

// flushICE applies candidates that arrived before the remote description.
func (e *Endpoint) flushICE(l *leg, gen int) {
	e.mu.Lock()
	if l.gen != gen || l.peer == nil {
		e.mu.Unlock()
		return
	}
	peer := l.peer
	pending := l.pending
	l.pending = nil
	l.remoteSet = true
	e.mu.Unlock()

	for _, c := range pending {
		if err := peer.AddICECandidate(c); err != nil {
			e.logger.Debug(context.Background(), "buffered ice candidate rejected", logger.Error(err))
		}
	}
}

// advance moves l to next when gen is still current.
func (e *Endpoint) advance(l *leg, gen int, next State) bool {
	e.mu.Lock()
	if l.gen != gen {
		e.mu.Unlock()
		return false
	}
	ok := e.transitionLocked(l, next)
	e.unlockAndNotify()
	return ok
}

// fail moves l to error and releases its peer and local media.
func (e *Endpoint) fail(l *leg, gen int, err error) {
	e.mu.Lock()
	current := l.gen == gen
	e.mu.Unlock()
	if !current {
		return
	}
	e.logger.Warn(context.Background(), "call channel failed",
		logger.SessionID(e.sessionID), logger.String("channel", string(l.channel)), logger.Error(err))
	e.teardown(l, StateError)
}

// teardown closes l's peer, releases its tracks and moves it to final. A
// channel that never started stays idle, but any start in flight is
// cancelled.
func (e *Endpoint) teardown(l *leg, final State) {
	e.mu.Lock()
	l.gen++
	peer := l.peer
	local := l.local
	l.peer = nil
	l.local = nil
	l.pending = nil
	l.remoteSet = false
	l.ready = false
	if l.machine.State() != StateIdle {
		e.transitionLocked(l, final)
	}
	e.unlockAndNotify()

	if peer != nil {
		_ = peer.Close()
	}
	local.Release()
}

func (e *Endpoint) acquire(ctx context.Context, kind MediaKind) (*Stream, error) {
	if e.media == nil {
		return nil, ErrNoLocalMedia
	}
	actx, cancel := context.WithTimeout(ctx, e.mediaTimeout)
	defer cancel()
	s, err := e.media.Acquire(actx, kind)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoLocalMedia
	}
	return s, nil
}

func (e *Endpoint) send(ctx context.Context, msg Message) error {
	msg.MeetingID = e.meetingID
	msg.SessionID = e.sessionID
	if err := e.signal.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind, err)
	}
	return nil
}

// transitionLocked records a state change for delivery after unlock.
// Must be called with e.mu held.
func (e *Endpoint) transitionLocked(l *leg, next State) bool {
	if l.machine.State() == next {
		return false
	}
	if err := l.machine.Transition(next); err != nil {
		return false
	}
	e.changes = append(e.changes, stateChange{channel: l.channel, state: next})
	return true
}

// unlockAndNotify releases e.mu and delivers queued state changes.
func (e *Endpoint) unlockAndNotify() {
	changes := e.changes
	e.changes = nil
	e.mu.Unlock()
	if e.onState == nil {
		return
	}
	for _, c := range changes {
		e.onState(c.channel, c.state)
	}
}
