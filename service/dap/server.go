// Package dap implements the core of a Debug Adapter Protocol server: a
// framed JSON transport with a generic dispatcher, a debugger object
// model (files, threads, frames, scopes, variables), and a per-thread
// run/step/pause state machine driven cooperatively from instrumented
// code.
package dap

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/swiftshader/dbgserver/pkg/logflags"
)

// Server is the spec's Acceptor: a listening socket and accept loop that
// owns the live Connection set, per spec §2/§5/§6.
type Server struct {
	log      *logrus.Entry
	handlers *HandlerRegistry

	mu          sync.Mutex
	listener    net.Listener
	connections map[string]*Connection
	done        chan struct{}
	wg          sync.WaitGroup

	firstConfigDoneOnce sync.Once
	firstConfigDone     chan struct{}
}

// NewServer constructs a Server bound to listener, with the mandatory
// §4.8 handler set installed. log may be nil, in which case the
// component-gated logger from pkg/logflags is used (see Setup/--log).
func NewServer(listener net.Listener, log *logrus.Entry) *Server {
	if log == nil {
		log = logflags.Server()
	}
	s := &Server{
		log:             log.WithField("component", "server"),
		handlers:        NewHandlerRegistry(),
		listener:        listener,
		connections:     make(map[string]*Connection),
		done:            make(chan struct{}),
		firstConfigDone: make(chan struct{}),
	}
	RegisterDefaultHandlers(s.handlers)
	return s
}

// Run accepts connections until the listener is closed by Stop, serving
// each on its own goroutine pair. Run blocks until the accept loop exits.
func (s *Server) Run() {
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.WithError(err).Warn("accept error")
				return
			}
		}
		c := newConnection(s, netConn)
		s.mu.Lock()
		s.connections[c.ID] = c
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.run()
			s.mu.Lock()
			delete(s.connections, c.ID)
			s.mu.Unlock()
		}()
	}
}

// Stop closes the listener (unblocking Accept) and every live Connection,
// then waits for their goroutines to finish, per spec §5 shutdown.
func (s *Server) Stop() {
	close(s.done)
	s.listener.Close()

	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

var (
	singletonMu sync.Mutex
	singleton   *Server
)

// Get returns the process-wide Server singleton, per spec §6/§9, lazily
// constructing it on first call against addr (default ":19020"), binding
// the listener, starting its accept loop, and blocking until some
// accepted connection has issued configurationDone. Repeat calls return
// the already-configured singleton immediately. This is a thin façade
// over an explicitly constructed *Server -- tests that want to drive the
// handshake themselves should prefer NewServer directly so independent
// servers don't share state.
func Get(addr string) (*Server, error) {
	singletonMu.Lock()
	if singleton != nil {
		s := singleton
		singletonMu.Unlock()
		return s, nil
	}
	if addr == "" {
		addr = ":19020"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		singletonMu.Unlock()
		return nil, err
	}
	singleton = NewServer(listener, nil)
	s := singleton
	singletonMu.Unlock()

	go s.Run()
	s.WaitUntilConfigured()
	return s, nil
}

// markConfigured unblocks WaitUntilConfigured. Only the first call has any
// effect, matching the single-client lifecycle documented in spec §6.
func (s *Server) markConfigured() {
	s.firstConfigDoneOnce.Do(func() { close(s.firstConfigDone) })
}

// WaitUntilConfigured blocks until some accepted connection has completed
// the configurationDone handshake.
func (s *Server) WaitUntilConfigured() {
	<-s.firstConfigDone
}

// resetSingleton exists for tests that need a clean process-wide state
// between cases.
func resetSingleton() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singleton = nil
}

// AnyConnection returns one of the server's currently live connections,
// or nil if none has been accepted yet. It exists for tests that need to
// drive the runtime-facing API (runtime.go) against whatever Connection
// a daptest.Client ends up attached to.
func (s *Server) AnyConnection() *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.connections {
		return c
	}
	return nil
}
