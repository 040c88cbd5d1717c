package dap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/swiftshader/dbgserver/pkg/logflags"
	"github.com/swiftshader/dbgserver/service/dap/wire"
)

// envelope is the minimal top-level shape every inbound message must
// parse into, per spec §4.2, before the concrete argument/body type is
// constructed and deserialized against it.
type envelope struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	Command    string          `json:"command,omitempty"`
	Event      string          `json:"event,omitempty"`
	RequestSeq int             `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Message    string          `json:"message,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// pendingResponse is the continuation installed for a request the server
// itself sent, keyed by its outbound seq, per spec §4.3.
type pendingResponse struct {
	construct func() interface{}
	done      func(value interface{}, err error)
}

// dispatchJob is the payload the receive goroutine enqueues for the
// dispatch goroutine to execute, per spec §4.2 step 4.
type dispatchJob struct {
	command    string
	requestSeq int
	args       json.RawMessage
}

// Connection is one accepted client, per spec §2/§5: a receive goroutine,
// a dispatch goroutine, the outbound sequence counter, the pending-
// response table, and the send mutex, all bundled together with this
// connection's Model (the spec's "session" object graph).
type Connection struct {
	ID   string
	conn net.Conn
	log  *logrus.Entry // framing/transport activity (spec §10.1 "connection")

	// dispatchLog covers request/response/event dispatch activity (spec
	// §10.1 "dispatch") -- kept separate from log so --log-output can
	// enable one without the other.
	dispatchLog *logrus.Entry

	server *Server
	Model  *Model

	reader *bufio.Reader

	sendMu  sync.Mutex
	nextSeq int
	pending map[int]pendingResponse

	inbound chan dispatchJob
	wg      sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}

	isVisualStudio bool

	configDoneOnce sync.Once
	configDone     chan struct{}
}

func newConnection(server *Server, netConn net.Conn) *Connection {
	id := uuid.New().String()
	c := &Connection{
		ID:          id,
		conn:        netConn,
		log:         logflags.Connection().WithField("conn_id", id),
		dispatchLog: logflags.Dispatch().WithField("conn_id", id),
		server:      server,
		reader:     bufio.NewReader(netConn),
		pending:    make(map[int]pendingResponse),
		inbound:    make(chan dispatchJob, 64),
		closed:     make(chan struct{}),
		configDone: make(chan struct{}),
	}
	c.Model = NewModel(c.handleStop)
	c.Model.onThreadStart = c.handleThreadStart
	return c
}

// run starts the receive and dispatch goroutines and blocks until both
// have exited, per spec §5.
func (c *Connection) run() {
	c.wg.Add(2)
	go c.dispatchLoop()
	go c.receiveLoop()
	c.wg.Wait()
}

// Close tears the connection down: signals the closed channel and closes
// the socket (interrupting a blocked Read), then fails every request still
// awaiting a response. The receive goroutine closes the inbound channel as
// it exits; Close itself does not wait for the goroutines -- run returns
// once both have finished, and Server.Stop waits for that.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()

		c.sendMu.Lock()
		pending := c.pending
		c.pending = make(map[int]pendingResponse)
		c.sendMu.Unlock()
		for _, pr := range pending {
			pr.done(nil, fmt.Errorf("connection closed before a response arrived"))
		}
	})
}

func (c *Connection) receiveLoop() {
	defer c.wg.Done()
	defer close(c.inbound)
	for {
		raw, err := wire.ReadFrame(c.reader)
		if err != nil {
			c.log.WithError(err).Warn("framing error, closing connection")
			c.Close()
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.WithError(err).Warn("malformed message, closing connection")
			c.Close()
			return
		}
		switch env.Type {
		case "request":
			select {
			case c.inbound <- dispatchJob{command: env.Command, requestSeq: env.Seq, args: env.Arguments}:
			case <-c.closed:
				return
			}
		case "response":
			c.handleResponse(env)
		case "event":
			// The core has no registered event consumers for
			// client-originated events; log and continue.
			c.log.WithField("event", env.Event).Debug("received client event")
		default:
			c.log.WithField("type", env.Type).Warn("unknown message type, closing connection")
			c.Close()
			return
		}
	}
}

func (c *Connection) dispatchLoop() {
	defer c.wg.Done()
	for job := range c.inbound {
		c.handleRequest(job)
	}
}

func (c *Connection) handleRequest(job dispatchJob) {
	handler, ok := c.server.handlers.lookup(job.command)
	if !ok {
		c.dispatchLog.WithField("command", job.command).Warn("no handler registered for command")
		c.sendErrorResponse(job.requestSeq, job.command, newError(ErrUnknownCommand, "no handler for command %q", job.command))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.dispatchLog.WithField("command", job.command).Errorf("handler panic: %v", r)
			c.sendErrorResponse(job.requestSeq, job.command, newError(ErrInternal, "internal error handling %q", job.command))
		}
	}()

	args, derr := c.server.handlers.decodeArgs(job.command, job.args)
	if derr != nil {
		c.sendErrorResponse(job.requestSeq, job.command, derr)
		return
	}

	body, herr := handler(c, args)
	if herr != nil {
		c.sendErrorResponse(job.requestSeq, job.command, herr)
		return
	}
	c.sendResponse(job.requestSeq, job.command, body)

	if hook, ok := c.server.handlers.lookupResponseSent(job.command); ok {
		hook(c)
	}
}

func (c *Connection) handleResponse(env envelope) {
	c.sendMu.Lock()
	pr, ok := c.pending[env.RequestSeq]
	if ok {
		delete(c.pending, env.RequestSeq)
	}
	c.sendMu.Unlock()

	if !ok {
		c.log.WithField("request_seq", env.RequestSeq).Warn("response for unknown request, dropped")
		return
	}
	if !env.Success {
		pr.done(nil, fmt.Errorf("%s", env.Message))
		return
	}
	value := pr.construct()
	if len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, value); err != nil {
			pr.done(nil, err)
			return
		}
	}
	pr.done(value, nil)
}

// send frames msg with the next outbound seq, under the send mutex, per
// spec §4.3.
func (c *Connection) send(msg interface{}, setSeq func(seq int)) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.nextSeq++
	setSeq(c.nextSeq)
	return wire.WriteJSON(c.conn, msg)
}

type outResponse struct {
	Seq        int         `json:"seq"`
	Type       string      `json:"type"`
	RequestSeq int         `json:"request_seq"`
	Success    bool        `json:"success"`
	Command    string      `json:"command"`
	Message    string      `json:"message,omitempty"`
	Body       interface{} `json:"body,omitempty"`
}

func (c *Connection) sendResponse(requestSeq int, command string, body interface{}) {
	tree, err := c.server.handlers.encodeBody(body)
	if err != nil {
		c.dispatchLog.WithField("command", command).WithError(err).Error("failed to encode response body")
		c.sendErrorResponse(requestSeq, command, newError(ErrInternal, "internal error encoding response for %q", command))
		return
	}
	r := &outResponse{Type: "response", RequestSeq: requestSeq, Success: true, Command: command, Body: tree}
	if err := c.send(r, func(seq int) { r.Seq = seq }); err != nil {
		c.log.WithError(err).Warn("failed to send response")
	}
}

func (c *Connection) sendErrorResponse(requestSeq int, command string, err *Error) {
	r := &outResponse{Type: "response", RequestSeq: requestSeq, Success: false, Command: command, Message: err.Message}
	if sendErr := c.send(r, func(seq int) { r.Seq = seq }); sendErr != nil {
		c.log.WithError(sendErr).Warn("failed to send error response")
	}
}

type outEvent struct {
	Seq   int         `json:"seq"`
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Body  interface{} `json:"body,omitempty"`
}

// SendEvent emits a spontaneous event, per spec §2/§4.8.
func (c *Connection) SendEvent(event string, body interface{}) {
	e := &outEvent{Type: "event", Event: event, Body: body}
	if err := c.send(e, func(seq int) { e.Seq = seq }); err != nil {
		c.log.WithError(err).Warn("failed to send event")
	}
}

type outRequest struct {
	Seq       int         `json:"seq"`
	Type      string      `json:"type"`
	Command   string      `json:"command"`
	Arguments interface{} `json:"arguments,omitempty"`
}

// SendRequest sends a debugger-initiated request and arranges for done to
// be invoked with the deserialized response body (via construct) once a
// matching response arrives, or with an error if the response reports
// failure or never arrives before the connection closes. The pending-
// response entry is installed before the bytes are written, per spec
// §4.3, so a fast response can never race ahead of its handler.
func (c *Connection) SendRequest(command string, args interface{}, construct func() interface{}, done func(value interface{}, err error)) {
	c.sendMu.Lock()
	c.nextSeq++
	seq := c.nextSeq
	c.pending[seq] = pendingResponse{construct: construct, done: done}
	req := &outRequest{Seq: seq, Type: "request", Command: command, Arguments: args}
	err := wire.WriteJSON(c.conn, req)
	c.sendMu.Unlock()
	if err != nil {
		c.sendMu.Lock()
		delete(c.pending, seq)
		c.sendMu.Unlock()
		done(nil, err)
	}
}

// handleStop is wired into the Model as its onStop callback: it emits a
// single-thread "stopped" event naming t and the stop reason.
func (c *Connection) handleStop(t *Thread, reason StopReason) {
	c.SendEvent("stopped", stoppedBody(t, reason, false))
}
