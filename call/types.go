// Package call manages the WebRTC side of a video consultation using Pion.
// It is coupled to the rest of the system only through the Signaler
// interface, which carries session descriptions and ICE candidates between
// the two participants of a consultation room.
package call

import (
	"github.com/etelemed/etelemed-api/models"
)

// Signaler is the only surface the call package needs from the realtime
// layer. WSSignaler implements it over the signaling relay websocket; tests
// use an in-memory pair.
type Signaler interface {
	// Send relays a connection-setup payload to the remote participant.
	Send(signal *models.SignalPayload) error
	// Subscribe returns a channel of inbound relay frames and a cancel
	// func. Each subscriber gets every frame.
	Subscribe() (<-chan *models.SignalFrame, func())
}

// State is the lifecycle state of a call session.
type State int

// Call session states. Failed and Closed are terminal.
const (
	StateIdle State = iota
	StateNegotiating
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further state changes are possible.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}
