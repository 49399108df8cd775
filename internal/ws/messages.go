package ws

import (
	"encoding/json"
	"fmt"
)

// Inbound message types.
const (
	TypeJoin       = "join"
	TypeChat       = "chat"
	TypeTyping     = "typing"
	TypeStopTyping = "stop-typing"
)

// Outbound wire formats.
const (
	FormatEnvelope = "envelope"
	FormatPlain    = "plain"
)

// Outbound-only message types.
const (
	TypeSystem   = "system"
	TypeUserList = "user-list"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Type    string          `json:"type"`              // e.g. "join"
	Payload json.RawMessage `json:"payload,omitempty"` // shape depends on Type
}

// ──────────────────────────── Inbound payloads ───────────────────────────────

// JoinRequest is the payload for "join".
type JoinRequest struct {
	RoomID   string `json:"roomId"   validate:"required"`
	Username string `json:"username" validate:"required"`
}

// ChatRequest is the payload for "chat".
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

// TypingRequest is the payload for "typing" and "stop-typing". The username the
// client claims is ignored; the membership's username is authoritative.
type TypingRequest struct {
	Username string `json:"username"`
}

// ──────────────────────────── Outbound payloads ──────────────────────────────

type SystemBody struct {
	Message string `json:"message"`
}

type UserListBody struct {
	Users []string `json:"users"`
}

type ChatBody struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Text     string `json:"text"`
	SentAt   string `json:"sentAt"`
}

type TypingBody struct {
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

// outbound is one message ready to be encoded for the wire. Text is the legacy
// plain-text rendering; empty means the message is always enveloped.
type outbound struct {
	Type string
	Body any
	Text string
}

// encoder turns outbound messages into frames.
type encoder interface {
	encode(m outbound) ([]byte, error)
}

// envelopeEncoder emits every message as a {type, payload} envelope.
type envelopeEncoder struct{}

func (envelopeEncoder) encode(m outbound) ([]byte, error) {
	body, err := json.Marshal(m.Body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return json.Marshal(Envelope{Type: m.Type, Payload: body})
}

// plainEncoder mirrors the legacy wire format: notices and chat lines go out as
// raw text, everything else stays enveloped.
type plainEncoder struct{}

func (plainEncoder) encode(m outbound) ([]byte, error) {
	if m.Text != "" {
		return []byte(m.Text), nil
	}
	return envelopeEncoder{}.encode(m)
}

func encoderFor(format string) encoder {
	if format == FormatPlain {
		return plainEncoder{}
	}
	return envelopeEncoder{}
}

func joinedNotice(username string) outbound {
	text := username + " has joined the room!"
	return outbound{Type: TypeSystem, Body: SystemBody{Message: text}, Text: text}
}

func leftNotice(username string) outbound {
	text := username + " has left the room!"
	return outbound{Type: TypeSystem, Body: SystemBody{Message: text}, Text: text}
}

func userList(users []string) outbound {
	if users == nil {
		users = []string{}
	}
	return outbound{Type: TypeUserList, Body: UserListBody{Users: users}}
}

func chatLine(username, sentAt, text string) outbound {
	line := fmt.Sprintf("%s [%s]: %s", username, sentAt, text)
	return outbound{
		Type: TypeChat,
		Body: ChatBody{Message: line, Username: username, Text: text, SentAt: sentAt},
		Text: line,
	}
}

func typingNotice(username string) outbound {
	text := username + " is typing..."
	return outbound{Type: TypeTyping, Body: TypingBody{Username: username, Message: text}, Text: text}
}

func stopTyping(username string) outbound {
	return outbound{Type: TypeStopTyping, Body: TypingBody{Username: username}}
}
