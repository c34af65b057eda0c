// Package session owns a single timecode session's state: its current
// frame, running flag, and member set, and the drift-corrected ticker that
// advances the frame while running. All mutation of a session's fields goes
// through its control lock or its state lock; broadcasts are enqueued
// outside the critical section.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/lanternops/timecodesvr/internal/logging"
	"github.com/lanternops/timecodesvr/internal/protocol"
	"github.com/lanternops/timecodesvr/internal/timecode"
)

var log = logging.L("session")

// Member is anything that can belong to a session: a connected client's
// outbound channel wrapper. Send enqueues msg and reports whether the
// enqueue succeeded; a false return triggers the slow-consumer policy.
type Member interface {
	ID() string
	Send(msg *protocol.Message) bool
}

// Session owns one timecode's state and its ticker.
type Session struct {
	ID        string
	Framerate timecode.Framerate

	// controlMu serializes Start/Stop/Reset, which each start or stop the
	// ticker goroutine; it is held across the ticker's cancel-and-wait so
	// two lifecycle transitions never race over cancelTick/tickerDone.
	controlMu sync.Mutex

	mu           sync.Mutex
	currentFrame int64
	running      bool
	epochWall    time.Time
	epochFrame   int64
	members      map[string]Member
	cancelTick   context.CancelFunc
	tickerDone   chan struct{}

	onSlowConsumer func(Member)
	onTick         func()
}

// New creates a session at the given initial frame, stopped.
// onSlowConsumer is invoked (outside the state lock) for a member whose outbound
// channel is found full during a broadcast; it is expected to disconnect
// the member. onTick, if non-nil, is invoked once per emitted
// timecode_update, for metrics; it may be nil.
func New(id string, fr timecode.Framerate, initialFrame int64, onSlowConsumer func(Member), onTick func()) *Session {
	return &Session{
		ID:             id,
		Framerate:      fr,
		currentFrame:   initialFrame,
		members:        make(map[string]Member),
		onSlowConsumer: onSlowConsumer,
		onTick:         onTick,
	}
}

// Snapshot returns the formatted current timecode and running flag.
func (s *Session) Snapshot() (tc string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return timecode.Format(s.currentFrame, s.Framerate), s.running
}

// MemberCount returns the number of clients currently joined.
func (s *Session) MemberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// AddMember adds m to the session without sending session_joined; used for
// the auto-join on session creation, where the caller sends
// session_created instead.
func (s *Session) AddMember(m Member) {
	s.mu.Lock()
	s.members[m.ID()] = m
	s.mu.Unlock()
}

// Join adds m to the session and sends it session_joined carrying the
// current timecode, framerate, and running state.
func (s *Session) Join(m Member) {
	s.mu.Lock()
	s.members[m.ID()] = m
	frame := s.currentFrame
	running := s.running
	s.mu.Unlock()

	m.Send(protocol.NewSessionJoined(s.ID, s.Framerate.Key, timecode.Format(frame, s.Framerate), running))
}

// Leave removes m from the session, if present, and sends session_left.
// It is a no-op if m is not a member. session_left is always the last
// session-scoped message a leaving member receives.
func (s *Session) Leave(m Member) {
	s.mu.Lock()
	_, ok := s.members[m.ID()]
	delete(s.members, m.ID())
	s.mu.Unlock()

	if ok {
		m.Send(protocol.NewSessionLeft(s.ID))
	}
}

// RemoveMember removes m from the session's membership without sending any
// message; used by on_client_disconnect, where the socket is already gone.
func (s *Session) RemoveMember(m Member) {
	s.mu.Lock()
	delete(s.members, m.ID())
	s.mu.Unlock()
}

// Start begins the ticker if not already running. Idempotent: starting an
// already-running session is a no-op.
func (s *Session) Start() {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.epochWall = time.Now()
	s.epochFrame = s.currentFrame
	epochWall, epochFrame := s.epochWall, s.epochFrame
	frame := s.currentFrame
	members := s.memberSnapshotLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTick = cancel
	done := make(chan struct{})
	s.tickerDone = done
	go s.runTicker(ctx, done, epochWall, epochFrame)

	s.deliver(members, protocol.NewTimecodeStarted(timecode.Format(frame, s.Framerate)))
}

// Stop cancels the ticker and waits for it to exit, then broadcasts
// timecode_stopped with the final timecode. Idempotent.
func (s *Session) Stop() {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	if !s.haltTicker() {
		return
	}

	s.mu.Lock()
	frame := s.currentFrame
	members := s.memberSnapshotLocked()
	s.mu.Unlock()

	s.deliver(members, protocol.NewTimecodeStopped(timecode.Format(frame, s.Framerate)))
}

// Reset parses text (defaulting to 00:00:00:00 when empty) under the
// session's framerate and sets the current timecode to it. Legal whether
// running or stopped; does not toggle running. If running, the ticker is
// restarted against a fresh epoch so it continues from the new value
// without double-emitting a frame.
func (s *Session) Reset(text string) error {
	frame := int64(0)
	if text != "" {
		f, err := timecode.Parse(text, s.Framerate)
		if err != nil {
			return err
		}
		frame = f
	}

	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	s.mu.Lock()
	s.currentFrame = frame
	wasRunning := s.running
	s.mu.Unlock()

	if wasRunning {
		s.haltTicker()

		s.mu.Lock()
		// The halted ticker may have published a frame after the store above.
		s.currentFrame = frame
		s.running = true
		s.epochWall = time.Now()
		s.epochFrame = frame
		epochWall, epochFrame := s.epochWall, s.epochFrame
		members := s.memberSnapshotLocked()
		s.mu.Unlock()

		ctx, cancel := context.WithCancel(context.Background())
		s.cancelTick = cancel
		done := make(chan struct{})
		s.tickerDone = done
		go s.runTicker(ctx, done, epochWall, epochFrame)

		s.deliver(members, protocol.NewTimecodeReset(timecode.Format(frame, s.Framerate)))
		return nil
	}

	s.mu.Lock()
	members := s.memberSnapshotLocked()
	s.mu.Unlock()
	s.deliver(members, protocol.NewTimecodeReset(timecode.Format(frame, s.Framerate)))
	return nil
}

// Shutdown halts the ticker without broadcasting timecode_stopped; used
// during server shutdown, where connections are being torn down anyway and
// a final per-session notice would race the outbound sockets closing.
func (s *Session) Shutdown() {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	s.haltTicker()
}

// haltTicker cancels and waits for the ticker goroutine if one is running,
// and clears running. Returns false if the session was already stopped.
// Caller must hold controlMu.
func (s *Session) haltTicker() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	cancel := s.cancelTick
	done := s.tickerDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return true
}

func (s *Session) memberSnapshotLocked() []Member {
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	return out
}

// deliver enqueues msg to every member, outside of s.mu, applying the
// slow-consumer policy to any member whose channel is full.
func (s *Session) deliver(members []Member, msg *protocol.Message) {
	for _, m := range members {
		if !m.Send(msg) {
			log.Warn("slow consumer, disconnecting", "session_id", s.ID, "client_id", m.ID())
			s.mu.Lock()
			delete(s.members, m.ID())
			s.mu.Unlock()
			if s.onSlowConsumer != nil {
				s.onSlowConsumer(m)
			}
		}
	}
}
