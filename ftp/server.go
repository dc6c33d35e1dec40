package ftp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/fclairamb/go-log"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
var ErrServerClosed = errors.New("ftp: server closed")

// Server accepts control connections and runs one session goroutine per
// client.
//
// Lifecycle: build with NewServer, start with ListenAndServe or Serve, stop
// with Shutdown (closes the listener and tears down active sessions).
type Server struct {
	addr     string
	driver   Driver
	logger   log.Logger
	greeting string

	// passiveIP is the IPv4 address advertised in PASV replies. Empty means
	// the control connection's local address is used.
	passiveIP   string
	pasvMinPort int
	pasvMaxPort int

	// idleTimeout closes control connections with no traffic.
	idleTimeout time.Duration

	// nextPassivePort round-robins the starting offset inside the range so
	// concurrent sessions don't all race for the same port.
	nextPassivePort atomic.Int32

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	inShutdown atomic.Bool
}

// Option configures a Server.
type Option func(*Server) error

// WithDriver sets the authentication and file operation backend. Required.
func WithDriver(driver Driver) Option {
	return func(s *Server) error {
		s.driver = driver
		return nil
	}
}

// WithLogger sets the session logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithGreeting sets the 220 banner text.
func WithGreeting(greeting string) Option {
	return func(s *Server) error {
		s.greeting = greeting
		return nil
	}
}

// WithPassiveIP sets the IPv4 address advertised in PASV replies.
func WithPassiveIP(ip string) Option {
	return func(s *Server) error {
		s.passiveIP = ip
		return nil
	}
}

// WithPassivePortRange bounds the ports passive data listeners bind to.
func WithPassivePortRange(minPort, maxPort int) Option {
	return func(s *Server) error {
		if minPort <= 0 || maxPort < minPort {
			return fmt.Errorf("invalid passive port range [%d, %d]", minPort, maxPort)
		}
		s.pasvMinPort = minPort
		s.pasvMaxPort = maxPort
		return nil
	}
}

// WithIdleTimeout closes control connections idle for longer than d.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.idleTimeout = d
		return nil
	}
}

// NewServer builds a server listening on addr ("host:port").
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:        addr,
		greeting:    "FTP Server Ready",
		idleTimeout: 5 * time.Minute,
		conns:       make(map[net.Conn]struct{}),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.driver == nil {
		return nil, errors.New("driver is required (use WithDriver option)")
	}
	if s.logger == nil {
		return nil, errors.New("logger is required (use WithLogger option)")
	}

	return s, nil
}

// ListenAndServe starts the server on the configured address and blocks
// until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("FTP server listening", "addr", ln.Addr().String())
	return s.Serve(ln)
}

// Serve accepts control connections on l until the listener closes.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		_ = l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		_ = l.Close()
	}()

	// Accept errors other than shutdown are retried with backoff so a
	// transient condition such as fd exhaustion does not spin the loop; a
	// closed listener ends Serve.
	var retryDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			if retryDelay == 0 {
				retryDelay = 5 * time.Millisecond
			} else {
				retryDelay *= 2
			}
			if retryDelay > time.Second {
				retryDelay = time.Second
			}
			s.logger.Error("accept error", "err", err, "retryIn", retryDelay.String())
			time.Sleep(retryDelay)
			continue
		}
		retryDelay = 0

		go s.handleConnection(conn)
	}
}

// Shutdown closes the listener and every active connection.
func (s *Server) Shutdown() error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	conns := s.conns
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}

	for conn := range conns {
		_ = conn.Close()
	}

	return err
}

func (s *Server) handleConnection(conn net.Conn) {
	if !s.trackConnection(conn, true) {
		_ = conn.Close()
		return
	}
	defer s.trackConnection(conn, false)

	newSession(s, conn).serve()
}

// trackConnection returns false while shutting down.
func (s *Server) trackConnection(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inShutdown.Load() {
		_ = conn.Close()
		return false
	}

	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
	return true
}
