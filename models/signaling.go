package models

import "encoding/json"

// Relay event names. Client-to-server frames carry EventJoinRoom,
// EventSendMessage or EventSignal; everything else is pushed by the relay.
// Every client frame carries an explicit roomId: broadcast scope is never
// inferred from which rooms the connection happens to have joined.
const (
	EventJoinRoom       = "join-room"
	EventSendMessage    = "send-message"
	EventSignal         = "signal"
	EventReceiveMessage = "receive-message"
	EventReceiveHistory = "receive-history"
	EventPeerJoined     = "peer-joined"
	EventPeerLeft       = "peer-left"
	EventError          = "error"
)

// Signal types relayed verbatim between peers.
const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"
)

// SignalFrame is the envelope for every frame crossing the relay websocket in
// either direction. Exactly one of Message, History, Signal or Peer is set,
// depending on Event.
type SignalFrame struct {
	Event   string         `json:"event"`
	RoomID  string         `json:"roomId,omitempty"`
	Message *ChatMessage   `json:"message,omitempty"`
	History []ChatMessage  `json:"history,omitempty"`
	Signal  *SignalPayload `json:"signal,omitempty"`
	Peer    *PeerInfo      `json:"peer,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ChatMessage is one chat line relayed to room members and buffered for late
// joiners.
type ChatMessage struct {
	SenderID   string `json:"senderID"`
	SenderRole string `json:"senderRole"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	SentAt     int64  `json:"sentAt"`
}

// SignalPayload carries connection-setup data (session description or ICE
// candidate) opaque to the relay.
type SignalPayload struct {
	Type      string          `json:"type"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// PeerInfo identifies a participant in peer-joined / peer-left pushes.
type PeerInfo struct {
	UserID string `json:"userID"`
	Role   string `json:"role"`
}
