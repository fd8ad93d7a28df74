package call

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/etelemed/etelemed-api/models"
)

// DefaultNegotiationTimeout bounds how long a session may sit in the
// negotiating state before giving up.
const DefaultNegotiationTimeout = 45 * time.Second

// Config describes one side of a call.
type Config struct {
	// Role decides who initiates: the patient creates the offer, the
	// doctor answers. Two same-role participants never negotiate.
	Role string
	// ICEServers defaults to a public STUN server when empty.
	ICEServers []webrtc.ICEServer
	// NegotiationTimeout defaults to DefaultNegotiationTimeout.
	NegotiationTimeout time.Duration
	// OnStateChange, when set, is invoked for every state transition.
	OnStateChange func(State)
}

// Session is one side of a video consultation call. It drives a Pion
// PeerConnection through offer/answer/ICE exchange over the Signaler and
// tracks a small lifecycle state machine.
type Session struct {
	cfg Config
	sig Signaler
	pc  *webrtc.PeerConnection

	mu         sync.Mutex
	state      State
	remoteSet  bool
	pendingICE []webrtc.ICECandidateInit
	failReason string

	timer    *time.Timer
	done     chan struct{}
	doneOnce sync.Once
}

// NewSession builds the PeerConnection and starts consuming relay frames.
// The session stays Idle until Start is called (patient) or an offer arrives
// (doctor).
func NewSession(sig Signaler, cfg Config) (*Session, error) {
	if cfg.NegotiationTimeout <= 0 {
		cfg.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
	if err != nil {
		return nil, err
	}
	addRecvOnlyTransceivers(pc)

	s := &Session{
		cfg:   cfg,
		sig:   sig,
		pc:    pc,
		state: StateIdle,
		done:  make(chan struct{}),
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		b, err := json.Marshal(candidate.ToJSON())
		if err != nil {
			zap.S().Errorw("failed to marshal ice candidate", "error", err)
			return
		}
		err = sig.Send(&models.SignalPayload{
			Type:      models.SignalICECandidate,
			Candidate: b,
		})
		if err != nil {
			zap.S().Debugf("failed to send ice candidate: %v", err)
		}
	})

	pc.OnConnectionStateChange(func(cs webrtc.PeerConnectionState) {
		switch cs {
		case webrtc.PeerConnectionStateFailed:
			s.fail("peer connection failed")
		case webrtc.PeerConnectionStateConnected:
			s.setState(StateConnected)
		}
	})

	go s.dispatchLoop()
	return s, nil
}

// addRecvOnlyTransceivers adds recvonly transceivers for video and audio so
// CreateOffer/CreateAnswer always produces valid m-lines with ICE
// credentials, even when no local media is captured.
func addRecvOnlyTransceivers(pc *webrtc.PeerConnection) {
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		zap.S().Errorw("failed to add video transceiver", "error", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		zap.S().Errorw("failed to add audio transceiver", "error", err)
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailReason returns why the session failed, or empty.
func (s *Session) FailReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failReason
}

// Start begins negotiation. Only the patient side sends an offer; the doctor
// side arms its timeout and waits for one.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot start from state %v", state)
	}
	s.state = StateNegotiating
	s.armTimeoutLocked()
	s.mu.Unlock()
	s.notify(StateNegotiating)

	if s.cfg.Role != models.RolePatient {
		return nil
	}

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		s.fail("failed to create offer")
		return err
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.fail("failed to set local description")
		return err
	}
	b, err := json.Marshal(s.pc.LocalDescription())
	if err != nil {
		s.fail("failed to marshal offer")
		return err
	}
	return s.sig.Send(&models.SignalPayload{Type: models.SignalOffer, SDP: b})
}

func (s *Session) dispatchLoop() {
	frames, cancel := s.sig.Subscribe()
	defer cancel()

	for {
		select {
		case <-s.done:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			s.dispatch(frame)
		}
	}
}

func (s *Session) dispatch(frame *models.SignalFrame) {
	switch frame.Event {
	case models.EventSignal:
		if frame.Signal == nil {
			return
		}
		s.handleSignal(frame.Signal)
	case models.EventPeerLeft:
		// The other participant dropped off the relay. A connected call
		// keeps its media path; a mid-negotiation session cannot finish.
		s.mu.Lock()
		negotiating := s.state == StateNegotiating
		s.mu.Unlock()
		if negotiating {
			s.fail("peer left during negotiation")
		}
	}
}

func (s *Session) handleSignal(signal *models.SignalPayload) {
	switch signal.Type {
	case models.SignalOffer:
		s.handleOffer(signal)
	case models.SignalAnswer:
		s.handleAnswer(signal)
	case models.SignalICECandidate:
		s.handleCandidate(signal)
	default:
		zap.S().Debugf("ignoring unknown signal type %q", signal.Type)
	}
}

func (s *Session) handleOffer(signal *models.SignalPayload) {
	if s.cfg.Role == models.RolePatient {
		// Both sides think they are the initiator. Nothing sane can be
		// negotiated; surface it as a failure.
		s.fail("received offer while acting as initiator")
		return
	}

	s.mu.Lock()
	if s.state == StateIdle {
		s.state = StateNegotiating
		s.armTimeoutLocked()
		s.mu.Unlock()
		s.notify(StateNegotiating)
	} else {
		s.mu.Unlock()
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(signal.SDP, &desc); err != nil {
		s.fail("malformed offer")
		return
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		s.fail("failed to apply offer")
		return
	}
	s.drainPendingCandidates()

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		s.fail("failed to create answer")
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		s.fail("failed to set local description")
		return
	}
	b, err := json.Marshal(s.pc.LocalDescription())
	if err != nil {
		s.fail("failed to marshal answer")
		return
	}
	if err := s.sig.Send(&models.SignalPayload{Type: models.SignalAnswer, SDP: b}); err != nil {
		s.fail("failed to send answer")
		return
	}
	// Negotiation is done from this side's point of view; media-level
	// connectivity is tracked by OnConnectionStateChange.
	s.setState(StateConnected)
}

func (s *Session) handleAnswer(signal *models.SignalPayload) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(signal.SDP, &desc); err != nil {
		s.fail("malformed answer")
		return
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		s.fail("failed to apply answer")
		return
	}
	s.drainPendingCandidates()
	s.setState(StateConnected)
}

// handleCandidate applies a remote ICE candidate, queueing it when it
// arrives before the remote description. Application failures are logged and
// dropped; a single bad candidate must not kill the call.
func (s *Session) handleCandidate(signal *models.SignalPayload) {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(signal.Candidate, &candidate); err != nil {
		zap.S().Debugf("dropping malformed ice candidate: %v", err)
		return
	}

	s.mu.Lock()
	if !s.remoteSet {
		s.pendingICE = append(s.pendingICE, candidate)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.pc.AddICECandidate(candidate); err != nil {
		zap.S().Debugf("failed to add ice candidate: %v", err)
	}
}

func (s *Session) drainPendingCandidates() {
	s.mu.Lock()
	s.remoteSet = true
	pending := s.pendingICE
	s.pendingICE = nil
	s.mu.Unlock()

	for _, candidate := range pending {
		if err := s.pc.AddICECandidate(candidate); err != nil {
			zap.S().Debugf("failed to add queued ice candidate: %v", err)
		}
	}
}

// armTimeoutLocked starts the negotiation deadline. Callers hold s.mu.
func (s *Session) armTimeoutLocked() {
	s.timer = time.AfterFunc(s.cfg.NegotiationTimeout, func() {
		s.mu.Lock()
		negotiating := s.state == StateNegotiating
		s.mu.Unlock()
		if negotiating {
			s.fail("negotiation timed out")
		}
	})
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.state.Terminal() || s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	if next == StateConnected && s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.notify(next)
}

func (s *Session) fail(reason string) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.failReason = reason
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	zap.S().Warnf("call session failed: %v", reason)
	s.notify(StateFailed)
	s.teardown()
}

// Close tears the session down. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	alreadyFailed := s.state == StateFailed
	s.state = StateClosed
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	if !alreadyFailed {
		s.notify(StateClosed)
	}
	s.teardown()
	return nil
}

// teardown is reachable from both fail (timer and pion callbacks) and Close
// (caller goroutine); the once keeps the concurrent paths from double-closing
// done.
func (s *Session) teardown() {
	s.doneOnce.Do(func() { close(s.done) })
	if err := s.pc.Close(); err != nil {
		zap.S().Debugf("error closing peer connection: %v", err)
	}
}

func (s *Session) notify(state State) {
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(state)
	}
}
