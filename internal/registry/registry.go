// Package registry is the process-wide owner of the session and client
// maps: the single source of truth for which sessions exist and which
// session (if any) each client currently belongs to. Mutations to these
// maps are serialized by a single lock; once a session is found, its own
// domain is entered only after this lock is released (registry domain,
// then session domain — never the reverse).
package registry

import (
	"github.com/google/uuid"

	"github.com/lanternops/timecodesvr/internal/logging"
	"github.com/lanternops/timecodesvr/internal/protocol"
	"github.com/lanternops/timecodesvr/internal/session"
	"github.com/lanternops/timecodesvr/internal/timecode"

	"sync"
)

var log = logging.L("registry")

// Registry owns the sessions and clients maps.
type Registry struct {
	queueSize int
	onTick    func()

	mu            sync.RWMutex
	sessions      map[string]*session.Session
	clients       map[string]*Client
	clientSession map[string]string // client id -> session id
}

// New creates an empty registry. queueSize bounds every client's outbound
// channel. onTick, if non-nil, is invoked once per timecode_update emitted
// by any session, for metrics; it may be nil.
func New(queueSize int, onTick func()) *Registry {
	return &Registry{
		queueSize:     queueSize,
		onTick:        onTick,
		sessions:      make(map[string]*session.Session),
		clients:       make(map[string]*Client),
		clientSession: make(map[string]string),
	}
}

// NewClient registers and returns a fresh client with a newly generated id.
func (r *Registry) NewClient() *Client {
	c := NewClient(uuid.NewString(), r.queueSize)
	r.mu.Lock()
	r.clients[c.ID()] = c
	r.mu.Unlock()
	return c
}

// CreateSession validates framerateKey and initialTimecodeText, creates a
// new session, inserts it, and auto-joins creator (silently — the caller
// sends session_created, not session_joined). If creator already belongs
// to another session, it is first detached from it, same as JoinSession —
// a client belongs to at most one session at a time.
func (r *Registry) CreateSession(creator *Client, framerateKey, initialTimecodeText string) (*session.Session, error) {
	fr, err := timecode.Lookup(framerateKey)
	if err != nil {
		return nil, err
	}

	initialFrame := int64(0)
	if initialTimecodeText != "" {
		f, err := timecode.Parse(initialTimecodeText, fr)
		if err != nil {
			return nil, err
		}
		initialFrame = f
	}

	id := uuid.NewString()
	sess := session.New(id, fr, initialFrame, r.onSlowConsumer, r.onTick)

	r.mu.Lock()
	r.sessions[id] = sess
	var prev *session.Session
	if prevID, had := r.clientSession[creator.ID()]; had {
		prev = r.sessions[prevID]
	}
	r.clientSession[creator.ID()] = id
	r.mu.Unlock()

	if prev != nil {
		prev.Leave(creator)
	}
	sess.AddMember(creator)
	log.Info("session created", "session_id", id, "framerate", framerateKey)
	return sess, nil
}

// JoinSession moves client into the session identified by sessionID,
// leaving any prior session first. Returns ErrSessionNotFound if the id is
// unknown.
func (r *Registry) JoinSession(client *Client, sessionID string) (*session.Session, error) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, &ErrSessionNotFound{SessionID: sessionID}
	}

	var prev *session.Session
	if prevID, had := r.clientSession[client.ID()]; had && prevID != sessionID {
		prev = r.sessions[prevID]
	}
	r.clientSession[client.ID()] = sessionID
	r.mu.Unlock()

	if prev != nil {
		prev.Leave(client)
	}
	sess.Join(client)
	return sess, nil
}

// LeaveSession removes client from its current session, if any.
func (r *Registry) LeaveSession(client *Client) {
	sess := r.detachCurrentSession(client)
	if sess != nil {
		sess.Leave(client)
	}
}

// CurrentSession returns the session client currently belongs to, if any.
func (r *Registry) CurrentSession(client *Client) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.clientSession[client.ID()]
	if !ok {
		return nil, false
	}
	sess, ok := r.sessions[id]
	return sess, ok
}

// OnClientDisconnect removes client from any session and from the client
// map, then closes its outbound channel.
func (r *Registry) OnClientDisconnect(client *Client) {
	sess := r.detachCurrentSession(client)

	r.mu.Lock()
	delete(r.clients, client.ID())
	r.mu.Unlock()

	if sess != nil {
		sess.RemoveMember(client)
	}
	client.Close()
}

// detachCurrentSession removes the registry-level association between
// client and its current session, returning that session (or nil). It does
// not touch the session's own member map — callers enter the session
// domain themselves, after releasing the registry lock.
func (r *Registry) detachCurrentSession(client *Client) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.clientSession[client.ID()]
	if !ok {
		return nil
	}
	delete(r.clientSession, client.ID())
	return r.sessions[id]
}

// Shutdown stops every session's ticker, broadcasts server_shutdown to
// every client, and closes every client's channel.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Shutdown()
	}

	notice := protocol.NewServerShutdown()
	for _, c := range clients {
		c.Send(notice)
		c.Close()
	}
}

// SessionCount returns the number of sessions currently held.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ClientCount returns the number of clients currently held.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// SessionStatus is a point-in-time summary of one session, for the status
// reporter. It has no protocol visibility.
type SessionStatus struct {
	IDPrefix     string `json:"id_prefix"`
	FramerateKey string `json:"framerate"`
	Running      bool   `json:"running"`
	Timecode     string `json:"timecode"`
}

// Statuses returns a summary of every session.
func (r *Registry) Statuses() []SessionStatus {
	r.mu.RLock()
	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		tc, running := s.Snapshot()
		out = append(out, SessionStatus{
			IDPrefix:     idPrefix(s.ID),
			FramerateKey: s.Framerate.Key,
			Running:      running,
			Timecode:     tc,
		})
	}
	return out
}

func idPrefix(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (r *Registry) onSlowConsumer(m session.Member) {
	c, ok := m.(*Client)
	if !ok {
		return
	}
	r.OnClientDisconnect(c)
}
