package registry

import "fmt"

// ErrSessionNotFound is returned by JoinSession for an unknown session id.
type ErrSessionNotFound struct {
	SessionID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("registry: session %q not found", e.SessionID)
}

// ErrNotInSession reports that a client is not joined to any session. No
// operation in this package returns it; the connection handler replies
// with protocol.KindNotInSession directly.
type ErrNotInSession struct{}

func (e *ErrNotInSession) Error() string {
	return "registry: client is not a member of any session"
}
