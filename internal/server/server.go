// Package server is the listener, accept loop, and shutdown coordinator: it
// owns nothing about timecode or session semantics itself, only the TCP
// lifecycle and the per-connection handlers that dispatch into the
// registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lanternops/timecodesvr/internal/logging"
	"github.com/lanternops/timecodesvr/internal/registry"
	"github.com/lanternops/timecodesvr/internal/status"
	"github.com/lanternops/timecodesvr/internal/timecode"
	"github.com/lanternops/timecodesvr/internal/workerpool"
)

var log = logging.L("server")

// Config collects the launcher-supplied options the core server needs. It
// never parses flags or environment variables itself.
type Config struct {
	Host                 string
	Port                 int
	MaxMessageBytes      int
	ClientSendQueueSize  int
	ShutdownTimeout      time.Duration
	MaxConnections       int
	StatusReporting      bool
	StatusReportInterval time.Duration

	// StatusAddr, if set and StatusReporting is true, binds the /status
	// websocket push and /metrics Prometheus endpoints to this address
	// alongside the main timecode listener.
	StatusAddr string

	// OnReady, if set, is called with the bound address once the listener
	// is up. Tests use it to discover an ephemeral port; production
	// launchers can leave it nil.
	OnReady func(net.Addr)
}

// Server binds a listener and dispatches accepted connections to handlers
// drawn from a bounded pool, so graceful shutdown can wait on the same
// Drain(ctx) primitive used elsewhere in this codebase.
type Server struct {
	cfg      Config
	registry *registry.Registry
	pool     *workerpool.Pool
	listener net.Listener

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// New creates a server with its own registry and connection pool.
func New(cfg Config) *Server {
	maxConns := cfg.MaxConnections
	if maxConns < 1 {
		maxConns = 4096
	}
	return &Server{
		cfg:      cfg,
		registry: registry.New(cfg.ClientSendQueueSize, status.IncTicksEmitted),
		pool:     workerpool.New(maxConns, maxConns),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Registry exposes the server's registry, chiefly for the status/metrics
// surfaces to read counts and summaries from.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Run binds the listener and blocks, accepting connections, until ctx is
// cancelled. On cancellation it closes the listener, asks the registry to
// shut down, and waits up to cfg.ShutdownTimeout for in-flight handlers to
// finish; any connection whose handler is still blocked in a socket read
// past the deadline is force-closed.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	s.listener = ln
	log.Info("listening", "addr", ln.Addr().String())
	if s.cfg.OnReady != nil {
		s.cfg.OnReady(ln.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.acceptLoop(gctx)
		return nil
	})

	if s.cfg.StatusReporting {
		g.Go(func() error {
			s.runStatusReporter(gctx)
			return nil
		})
		if s.cfg.StatusAddr != "" {
			hub := status.NewHub(s.registry, s.cfg.StatusReportInterval)
			g.Go(func() error {
				hub.Run(gctx)
				return nil
			})
			g.Go(func() error {
				if err := hub.ListenAndServe(gctx, s.cfg.StatusAddr); err != nil {
					log.Warn("status server error", "error", err)
				}
				return nil
			})
		}
	}

	<-gctx.Done()
	return s.shutdown(g)
}

func (s *Server) acceptLoop(ctx context.Context) {
	supported := timecode.SupportedKeys()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("accept error", "error", err)
			continue
		}

		s.trackConn(conn)
		h := newConnHandler(conn, s.registry, s.cfg.MaxMessageBytes)
		submitted := s.pool.Submit(func() {
			defer s.untrackConn(conn)
			h.run(ctx, supported)
		})
		if !submitted {
			log.Warn("connection pool saturated, rejecting connection", "remote_addr", conn.RemoteAddr().String())
			s.untrackConn(conn)
			s.registry.OnClientDisconnect(h.client)
			conn.Close()
		}
	}
}

func (s *Server) trackConn(c net.Conn) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(c net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

// forceCloseRemainingConns closes every connection whose handler did not
// finish within the shutdown deadline, per the server's obligation to
// force-close survivors rather than wait on them indefinitely.
func (s *Server) forceCloseRemainingConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

func (s *Server) shutdown(g *errgroup.Group) error {
	log.Info("shutting down")

	if s.listener != nil {
		s.listener.Close()
	}
	s.registry.Shutdown()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.pool.Shutdown(deadline)
	s.forceCloseRemainingConns()

	return g.Wait()
}

func (s *Server) runStatusReporter(ctx context.Context) {
	interval := s.cfg.StatusReportInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logStatus()
		}
	}
}

func (s *Server) logStatus() {
	log.Info("status", "sessions", s.registry.SessionCount(), "clients", s.registry.ClientCount())
	for _, st := range s.registry.Statuses() {
		log.Info("session status",
			"id_prefix", st.IDPrefix,
			"framerate", st.FramerateKey,
			"running", st.Running,
			"timecode", st.Timecode,
		)
	}
}
