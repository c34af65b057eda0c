package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/lanternops/timecodesvr/internal/protocol"
	"github.com/lanternops/timecodesvr/internal/registry"
	"github.com/lanternops/timecodesvr/internal/session"
	"github.com/lanternops/timecodesvr/internal/timecode"
)

// connHandler owns one accepted connection: a read loop that parses and
// dispatches requests, and a writer goroutine that drains the client's
// outbound channel to the socket. Either side observing a closed socket or
// an error tears down both: cancels the peer flow, disconnects the client
// from the registry, and closes its channel.
type connHandler struct {
	conn     net.Conn
	client   *registry.Client
	registry *registry.Registry
	reader   *protocol.Reader
	writer   *protocol.Writer
}

func newConnHandler(conn net.Conn, reg *registry.Registry, maxMessageBytes int) *connHandler {
	return &connHandler{
		conn:     conn,
		client:   reg.NewClient(),
		registry: reg,
		reader:   protocol.NewReader(conn, maxMessageBytes),
		writer:   protocol.NewWriter(conn),
	}
}

func (h *connHandler) run(ctx context.Context, supportedFramerates []string) {
	defer h.conn.Close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop()
	}()

	if err := h.writer.WriteMessage(protocol.NewWelcome(h.client.ID(), supportedFramerates)); err != nil {
		log.Debug("welcome write failed", "client_id", h.client.ID(), "error", err)
		h.registry.OnClientDisconnect(h.client)
		<-writerDone
		return
	}

	h.readLoop(ctx)

	// OnClientDisconnect removes the client from its session's member map
	// (and, only then, closes its outbound channel) before this handler
	// returns, so a concurrently running session ticker can never take a
	// member snapshot that still contains this client after its channel is
	// closed.
	h.registry.OnClientDisconnect(h.client)
	<-writerDone
}

func (h *connHandler) writeLoop() {
	for msg := range h.client.Outbound() {
		if err := h.writer.WriteMessage(msg); err != nil {
			log.Debug("write failed, disconnecting", "client_id", h.client.ID(), "error", err)
			// Closing the socket unblocks the read loop so run tears down.
			h.conn.Close()
			return
		}
	}
}

func (h *connHandler) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		req, err := h.reader.ReadRequest()
		if err != nil {
			if h.handleReadError(err) {
				continue
			}
			return
		}

		h.dispatch(req)
	}
}

// handleReadError reports err to the client if appropriate and returns
// whether the read loop may continue. A malformed line (*DecodeError) is
// a BadRequest reply that leaves the connection open: the scanner already
// consumed that line internally, so the next Scan starts clean regardless
// of whether the previous line's JSON was valid.
func (h *connHandler) handleReadError(err error) bool {
	if errors.Is(err, io.EOF) {
		return false
	}

	var tooLarge *protocol.ErrMessageTooLarge
	if errors.As(err, &tooLarge) {
		_ = h.writer.WriteMessage(protocol.NewError(protocol.KindMessageTooLarge, tooLarge.Error()))
		return false
	}

	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) {
		_ = h.writer.WriteMessage(protocol.NewError(protocol.KindBadRequest, decodeErr.Error()))
		return true
	}

	log.Debug("connection read failed", "client_id", h.client.ID(), "error", err)
	return false
}

func (h *connHandler) dispatch(req *protocol.Request) {
	switch req.Type {
	case protocol.TypeCreateSession:
		h.handleCreateSession(req)
	case protocol.TypeJoinSession:
		h.handleJoinSession(req)
	case protocol.TypeLeaveSession:
		h.registry.LeaveSession(h.client)
	case protocol.TypeStartTimecode:
		h.withCurrentSession(func(s *session.Session) error {
			s.Start()
			return nil
		})
	case protocol.TypeStopTimecode:
		h.withCurrentSession(func(s *session.Session) error {
			s.Stop()
			return nil
		})
	case protocol.TypeResetTimecode:
		h.withCurrentSession(func(s *session.Session) error {
			return s.Reset(req.Timecode)
		})
	default:
		// Unreachable: protocol.Reader rejects any type outside the closed
		// request set before it reaches dispatch.
		_ = h.writer.WriteMessage(protocol.NewError(protocol.KindBadRequest, "unhandled request type"))
	}
}

func (h *connHandler) handleCreateSession(req *protocol.Request) {
	sess, err := h.registry.CreateSession(h.client, req.Framerate, req.InitialTimecode)
	if err != nil {
		_ = h.writer.WriteMessage(protocol.NewError(kindFor(err), err.Error()))
		return
	}
	tc, _ := sess.Snapshot()
	_ = h.writer.WriteMessage(protocol.NewSessionCreated(sess.ID, sess.Framerate.Key, tc))
}

func (h *connHandler) handleJoinSession(req *protocol.Request) {
	if _, err := h.registry.JoinSession(h.client, req.SessionID); err != nil {
		_ = h.writer.WriteMessage(protocol.NewError(kindFor(err), err.Error()))
	}
}

// withCurrentSession runs fn against the client's current session, or
// replies NotInSession if it has none.
func (h *connHandler) withCurrentSession(fn func(*session.Session) error) {
	sess, ok := h.registry.CurrentSession(h.client)
	if !ok {
		_ = h.writer.WriteMessage(protocol.NewError(protocol.KindNotInSession, "not a member of any session"))
		return
	}
	if err := fn(sess); err != nil {
		_ = h.writer.WriteMessage(protocol.NewError(kindFor(err), err.Error()))
	}
}

func kindFor(err error) string {
	var parseErr *timecode.ParseError
	if errors.As(err, &parseErr) {
		return protocol.KindInvalidTimecode
	}
	var unknownRate *timecode.ErrUnknownFramerate
	if errors.As(err, &unknownRate) {
		return protocol.KindUnknownFramerate
	}
	var notFound *registry.ErrSessionNotFound
	if errors.As(err, &notFound) {
		return protocol.KindSessionNotFound
	}
	return protocol.KindInternalError
}
