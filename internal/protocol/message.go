// Package protocol implements the line-delimited JSON wire protocol: the
// closed set of request and message types, their schema, and the framed
// reader/writer that encode and decode them over a connection.
package protocol

// MessageType is the closed enumeration carried in every envelope's "type"
// field. Unknown values are rejected at decode time rather than dispatched.
type MessageType string

const (
	// Client -> server requests.
	TypeCreateSession MessageType = "create_session"
	TypeJoinSession   MessageType = "join_session"
	TypeLeaveSession  MessageType = "leave_session"
	TypeStartTimecode MessageType = "start_timecode"
	TypeStopTimecode  MessageType = "stop_timecode"
	TypeResetTimecode MessageType = "reset_timecode"

	// Server -> client messages.
	TypeWelcome         MessageType = "welcome"
	TypeSessionCreated  MessageType = "session_created"
	TypeSessionJoined   MessageType = "session_joined"
	TypeSessionLeft     MessageType = "session_left"
	TypeTimecodeStarted MessageType = "timecode_started"
	TypeTimecodeStopped MessageType = "timecode_stopped"
	TypeTimecodeReset   MessageType = "timecode_reset"
	TypeTimecodeUpdate  MessageType = "timecode_update"
	TypeServerShutdown  MessageType = "server_shutdown"
	TypeError           MessageType = "error"
)

var requestTypes = map[MessageType]bool{
	TypeCreateSession: true,
	TypeJoinSession:   true,
	TypeLeaveSession:  true,
	TypeStartTimecode: true,
	TypeStopTimecode:  true,
	TypeResetTimecode: true,
}

// IsRequestType reports whether t is one of the six client-to-server
// request types.
func IsRequestType(t MessageType) bool {
	return requestTypes[t]
}

// Error kinds, carried in an error Message's Kind field.
const (
	KindBadRequest       = "BadRequest"
	KindUnknownFramerate = "UnknownFramerate"
	KindInvalidTimecode  = "InvalidTimecode"
	KindSessionNotFound  = "SessionNotFound"
	KindNotInSession     = "NotInSession"
	KindMessageTooLarge  = "MessageTooLarge"
	KindInternalError    = "InternalError"
)

// Request is the closed schema for every client-to-server line. Fields not
// relevant to a given Type are left zero and ignored.
type Request struct {
	Type            MessageType `json:"type"`
	Framerate       string      `json:"framerate,omitempty"`
	InitialTimecode string      `json:"initial_timecode,omitempty"`
	SessionID       string      `json:"session_id,omitempty"`
	Timecode        string      `json:"timecode,omitempty"`
}

// Message is the closed schema for every server-to-client line. A single
// flattened struct (rather than one type per variant) keeps the codec a
// single marshal call; Type determines which of the optional fields are
// populated.
type Message struct {
	Type                MessageType `json:"type"`
	ClientID            string      `json:"client_id,omitempty"`
	SupportedFramerates []string    `json:"supported_framerates,omitempty"`
	SessionID           string      `json:"session_id,omitempty"`
	Framerate           string      `json:"framerate,omitempty"`
	Timecode            string      `json:"timecode,omitempty"`
	Running             *bool       `json:"running,omitempty"`
	Kind                string      `json:"kind,omitempty"`
	Message             string      `json:"message,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// NewWelcome builds the greeting sent immediately after accept.
func NewWelcome(clientID string, supportedFramerates []string) *Message {
	return &Message{Type: TypeWelcome, ClientID: clientID, SupportedFramerates: supportedFramerates}
}

// NewSessionCreated builds the reply to create_session.
func NewSessionCreated(sessionID, framerate, tc string) *Message {
	return &Message{Type: TypeSessionCreated, SessionID: sessionID, Framerate: framerate, Timecode: tc}
}

// NewSessionJoined builds the reply to join_session (and to the target
// client of a move-join).
func NewSessionJoined(sessionID, framerate, tc string, running bool) *Message {
	return &Message{Type: TypeSessionJoined, SessionID: sessionID, Framerate: framerate, Timecode: tc, Running: boolPtr(running)}
}

// NewSessionLeft builds the final session-scoped message a leaving client
// receives.
func NewSessionLeft(sessionID string) *Message {
	return &Message{Type: TypeSessionLeft, SessionID: sessionID}
}

// NewTimecodeStarted builds the broadcast sent when a session's ticker starts.
func NewTimecodeStarted(tc string) *Message {
	return &Message{Type: TypeTimecodeStarted, Timecode: tc}
}

// NewTimecodeStopped builds the broadcast sent when a session's ticker stops.
func NewTimecodeStopped(tc string) *Message {
	return &Message{Type: TypeTimecodeStopped, Timecode: tc}
}

// NewTimecodeReset builds the broadcast sent after a reset_timecode.
func NewTimecodeReset(tc string) *Message {
	return &Message{Type: TypeTimecodeReset, Timecode: tc}
}

// NewTimecodeUpdate builds one tick's broadcast.
func NewTimecodeUpdate(tc string) *Message {
	return &Message{Type: TypeTimecodeUpdate, Timecode: tc}
}

// NewServerShutdown builds the notice sent to every connected client during
// graceful shutdown.
func NewServerShutdown() *Message {
	return &Message{Type: TypeServerShutdown}
}

// NewError builds an error reply of the given kind.
func NewError(kind, message string) *Message {
	return &Message{Type: TypeError, Kind: kind, Message: message}
}
