// Package daptest provides a sample client with utilities for exercising
// a running DAP server end to end. It deliberately frames and parses
// messages itself, through the core's own wire package, rather than
// go-dap's fixed ReadProtocolMessage/WriteProtocolMessage switch, so
// that it can exercise every command this server adds beyond go-dap's
// built-in fixed set.
package daptest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/go-dap"

	"github.com/swiftshader/dbgserver/service/dap/wire"
)

// Client is a DAP client used by tests to drive a live Connection. All
// client methods are synchronous.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	seq    int
}

// NewClient creates a new Client over a TCP connection. Call Close() to
// close the connection.
func NewClient(addr string) *Client {
	fmt.Println("Connecting to server at:", addr)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatal("dialing:", err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) send(request interface{}) {
	jsonmsg, _ := json.Marshal(request)
	fmt.Println("[client -> server]", string(jsonmsg))
	if err := wire.WriteJSON(c.conn, request); err != nil {
		log.Fatal("write:", err)
	}
}

// envelope mirrors the minimal shape the core itself reads, letting this
// client distinguish response/event without depending on go-dap's fixed
// message-type switch.
type envelope struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	Event      string          `json:"event,omitempty"`
	Command    string          `json:"command,omitempty"`
	RequestSeq int             `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

func (c *Client) readEnvelope(t *testing.T) envelope {
	raw, err := wire.ReadFrame(c.reader)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	return env
}

func (c *Client) expectResponse(t *testing.T, command string, body interface{}) {
	env := c.readEnvelope(t)
	if env.Type != "response" {
		t.Fatalf("got type %q, want response", env.Type)
	}
	if env.Command != command {
		t.Fatalf("got command %q, want %q", env.Command, command)
	}
	if !env.Success {
		t.Fatalf("response for %q failed: %s", command, env.Message)
	}
	if body != nil && len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, body); err != nil {
			t.Fatal(err)
		}
	}
}

func (c *Client) expectEvent(t *testing.T, event string, body interface{}) {
	env := c.readEnvelope(t)
	if env.Type != "event" {
		t.Fatalf("got type %q, want event", env.Type)
	}
	if env.Event != event {
		t.Fatalf("got event %q, want %q", env.Event, event)
	}
	if body != nil && len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, body); err != nil {
			t.Fatal(err)
		}
	}
}

// ExpectErrorResponse reads a failed response envelope for command.
func (c *Client) ExpectErrorResponse(t *testing.T, command string) envelope {
	env := c.readEnvelope(t)
	if env.Success {
		t.Fatalf("response for %q succeeded, want failure", command)
	}
	return env
}

func (c *Client) ExpectInitializeResponse(t *testing.T) *dap.Capabilities {
	body := &dap.Capabilities{}
	c.expectResponse(t, "initialize", body)
	if !body.SupportsConfigurationDoneRequest {
		t.Errorf("got %#v, want SupportsConfigurationDoneRequest=true", body)
	}
	return body
}

func (c *Client) ExpectInitializedEvent(t *testing.T) {
	c.expectEvent(t, "initialized", nil)
}

func (c *Client) ExpectLaunchResponse(t *testing.T) {
	c.expectResponse(t, "launch", nil)
}

func (c *Client) ExpectDisconnectResponse(t *testing.T) {
	c.expectResponse(t, "disconnect", nil)
}

func (c *Client) ExpectSetExceptionBreakpointsResponse(t *testing.T) {
	c.expectResponse(t, "setExceptionBreakpoints", nil)
}

func (c *Client) ExpectSetFunctionBreakpointsResponse(t *testing.T) *dap.SetFunctionBreakpointsResponseBody {
	body := &dap.SetFunctionBreakpointsResponseBody{}
	c.expectResponse(t, "setFunctionBreakpoints", body)
	return body
}

func (c *Client) ExpectSetBreakpointsResponse(t *testing.T) *dap.SetBreakpointsResponseBody {
	body := &dap.SetBreakpointsResponseBody{}
	c.expectResponse(t, "setBreakpoints", body)
	return body
}

func (c *Client) ExpectConfigurationDoneResponse(t *testing.T) {
	c.expectResponse(t, "configurationDone", nil)
}

func (c *Client) ExpectThreadsResponse(t *testing.T) *dap.ThreadsResponseBody {
	body := &dap.ThreadsResponseBody{}
	c.expectResponse(t, "threads", body)
	return body
}

func (c *Client) ExpectStackTraceResponse(t *testing.T) *dap.StackTraceResponseBody {
	body := &dap.StackTraceResponseBody{}
	c.expectResponse(t, "stackTrace", body)
	return body
}

func (c *Client) ExpectScopesResponse(t *testing.T) *dap.ScopesResponseBody {
	body := &dap.ScopesResponseBody{}
	c.expectResponse(t, "scopes", body)
	return body
}

func (c *Client) ExpectVariablesResponse(t *testing.T) *dap.VariablesResponseBody {
	body := &dap.VariablesResponseBody{}
	c.expectResponse(t, "variables", body)
	return body
}

func (c *Client) ExpectSourceResponse(t *testing.T) *dap.SourceResponseBody {
	body := &dap.SourceResponseBody{}
	c.expectResponse(t, "source", body)
	return body
}

func (c *Client) ExpectPauseResponse(t *testing.T) {
	c.expectResponse(t, "pause", nil)
}

func (c *Client) ExpectContinueResponse(t *testing.T) *dap.ContinueResponseBody {
	body := &dap.ContinueResponseBody{}
	c.expectResponse(t, "continue", body)
	return body
}

func (c *Client) ExpectNextResponse(t *testing.T) {
	c.expectResponse(t, "next", nil)
}

func (c *Client) ExpectStepInResponse(t *testing.T) {
	c.expectResponse(t, "stepIn", nil)
}

func (c *Client) ExpectStepOutResponse(t *testing.T) {
	c.expectResponse(t, "stepOut", nil)
}

func (c *Client) ExpectEvaluateResponse(t *testing.T) *dap.EvaluateResponseBody {
	body := &dap.EvaluateResponseBody{}
	c.expectResponse(t, "evaluate", body)
	return body
}

func (c *Client) ExpectStoppedEvent(t *testing.T) *dap.StoppedEventBody {
	body := &dap.StoppedEventBody{}
	c.expectEvent(t, "stopped", body)
	return body
}

func (c *Client) ExpectThreadEvent(t *testing.T) *dap.ThreadEventBody {
	body := &dap.ThreadEventBody{}
	c.expectEvent(t, "thread", body)
	return body
}

// InitializeRequest sends an 'initialize' request.
func (c *Client) InitializeRequest() {
	c.sendRequest("initialize", dap.InitializeRequestArguments{
		AdapterID:                    "dbgserver",
		PathFormat:                   "path",
		LinesStartAt1:                true,
		ColumnsStartAt1:              true,
		SupportsVariableType:         true,
		SupportsVariablePaging:       true,
		SupportsRunInTerminalRequest: true,
		Locale:                       "en-us",
	})
}

// InitializeRequestWithClientID sends 'initialize' with an explicit
// clientID, to exercise the Visual Studio name-mangling quirk.
func (c *Client) InitializeRequestWithClientID(clientID string) {
	c.sendRequest("initialize", dap.InitializeRequestArguments{
		ClientID:      clientID,
		AdapterID:     "dbgserver",
		PathFormat:    "path",
		LinesStartAt1: true,
	})
}

// LaunchRequest sends a 'launch' request.
func (c *Client) LaunchRequest() {
	c.sendRequest("launch", struct{}{})
}

// DisconnectRequest sends a 'disconnect' request.
func (c *Client) DisconnectRequest() {
	c.sendRequest("disconnect", nil)
}

// SetBreakpointsRequest sends a 'setBreakpoints' request.
func (c *Client) SetBreakpointsRequest(file string, lines []int) {
	bps := make([]dap.SourceBreakpoint, len(lines))
	for i, l := range lines {
		bps[i].Line = l
	}
	c.sendRequest("setBreakpoints", dap.SetBreakpointsArguments{
		Source:      dap.Source{Name: filepath.Base(file), Path: file},
		Breakpoints: bps,
	})
}

// SetFunctionBreakpointsRequest sends a 'setFunctionBreakpoints' request.
func (c *Client) SetFunctionBreakpointsRequest(names []string) {
	bps := make([]dap.FunctionBreakpoint, len(names))
	for i, n := range names {
		bps[i].Name = n
	}
	c.sendRequest("setFunctionBreakpoints", dap.SetFunctionBreakpointsArguments{Breakpoints: bps})
}

// SetExceptionBreakpointsRequest sends a 'setExceptionBreakpoints' request.
func (c *Client) SetExceptionBreakpointsRequest() {
	c.sendRequest("setExceptionBreakpoints", dap.SetExceptionBreakpointsArguments{})
}

// ConfigurationDoneRequest sends a 'configurationDone' request.
func (c *Client) ConfigurationDoneRequest() {
	c.sendRequest("configurationDone", nil)
}

// ThreadsRequest sends a 'threads' request.
func (c *Client) ThreadsRequest() {
	c.sendRequest("threads", nil)
}

// StackTraceRequest sends a 'stackTrace' request.
func (c *Client) StackTraceRequest(threadID int) {
	c.sendRequest("stackTrace", dap.StackTraceArguments{ThreadId: threadID})
}

// ScopesRequest sends a 'scopes' request.
func (c *Client) ScopesRequest(frameID int) {
	c.sendRequest("scopes", dap.ScopesArguments{FrameId: frameID})
}

// VariablesRequest sends a 'variables' request.
func (c *Client) VariablesRequest(variablesReference int) {
	c.sendRequest("variables", dap.VariablesArguments{VariablesReference: variablesReference})
}

// SourceRequest sends a 'source' request.
func (c *Client) SourceRequest(sourceReference int) {
	c.sendRequest("source", dap.SourceArguments{SourceReference: sourceReference})
}

// PauseRequest sends a 'pause' request. threadID 0 requests pause of all
// threads, per spec §4.8.
func (c *Client) PauseRequest(threadID int) {
	c.sendRequest("pause", dap.PauseArguments{ThreadId: threadID})
}

// ContinueRequest sends a 'continue' request.
func (c *Client) ContinueRequest(threadID int) {
	c.sendRequest("continue", dap.ContinueArguments{ThreadId: threadID})
}

// NextRequest sends a 'next' (step over) request.
func (c *Client) NextRequest(threadID int) {
	c.sendRequest("next", dap.NextArguments{ThreadId: threadID})
}

// StepInRequest sends a 'stepIn' request.
func (c *Client) StepInRequest(threadID int) {
	c.sendRequest("stepIn", dap.StepInArguments{ThreadId: threadID})
}

// StepOutRequest sends a 'stepOut' request.
func (c *Client) StepOutRequest(threadID int) {
	c.sendRequest("stepOut", dap.StepOutArguments{ThreadId: threadID})
}

// EvaluateRequest sends an 'evaluate' request.
func (c *Client) EvaluateRequest(expression string, frameID int) {
	c.sendRequest("evaluate", dap.EvaluateArguments{Expression: expression, FrameId: frameID})
}

// UnknownRequest sends a request for a command with no registered
// handler, to exercise the server's ErrUnknownCommand path.
func (c *Client) UnknownRequest() {
	c.sendRequest("unknown", nil)
}

// ZeroLengthFrame writes a Content-Length: 0 frame directly, to exercise
// the framing layer's zero-length rejection.
func (c *Client) ZeroLengthFrame() {
	if err := wire.WriteFrame(c.conn, nil); err != nil {
		log.Fatal("write:", err)
	}
}

type outRequest struct {
	Seq       int         `json:"seq"`
	Type      string      `json:"type"`
	Command   string      `json:"command"`
	Arguments interface{} `json:"arguments,omitempty"`
}

func (c *Client) sendRequest(command string, args interface{}) {
	c.seq++
	c.send(&outRequest{Seq: c.seq, Type: "request", Command: command, Arguments: args})
}
