package dap_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftshader/dbgserver/service/dap"
	"github.com/swiftshader/dbgserver/service/dap/daptest"
)

func startServer(t *testing.T) (*dap.Server, string) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	server := dap.NewServer(listener, nil)
	go server.Run()
	t.Cleanup(server.Stop)
	return server, listener.Addr().String()
}

// TestHandshake exercises Scenario 1: the initialize response must arrive
// before the initialized event, and configurationDone must complete
// before the client tears the connection down.
func TestHandshake(t *testing.T) {
	_, addr := startServer(t)
	client := daptest.NewClient(addr)
	defer client.Close()

	client.InitializeRequest()
	client.ExpectInitializeResponse(t)
	client.ExpectInitializedEvent(t)

	client.LaunchRequest()
	client.ExpectLaunchResponse(t)

	client.SetExceptionBreakpointsRequest()
	client.ExpectSetExceptionBreakpointsResponse(t)

	client.ConfigurationDoneRequest()
	client.ExpectConfigurationDoneResponse(t)

	client.DisconnectRequest()
	client.ExpectDisconnectResponse(t)
}

func TestSetBreakpoints_VerifiedAgainstRegisteredFile(t *testing.T) {
	server, addr := startServer(t)
	client := daptest.NewClient(addr)
	defer client.Close()

	client.InitializeRequest()
	client.ExpectInitializeResponse(t)
	client.ExpectInitializedEvent(t)

	// Register the file directly through the runtime-facing API before
	// the client asks to set breakpoints in it.
	var conn *dap.Connection
	waitForConnection(t, server, &conn)
	conn.CreatePhysicalFile("main.go", "/src")

	client.SetBreakpointsRequest("/src/main.go", []int{5, 9})
	resp := client.ExpectSetBreakpointsResponse(t)
	require.Len(t, resp.Breakpoints, 2)
	require.True(t, resp.Breakpoints[0].Verified)
	require.True(t, resp.Breakpoints[1].Verified)
}

func TestSetBreakpoints_PendingUntilFileRegistered(t *testing.T) {
	server, addr := startServer(t)
	client := daptest.NewClient(addr)
	defer client.Close()

	client.InitializeRequest()
	client.ExpectInitializeResponse(t)
	client.ExpectInitializedEvent(t)

	client.SetBreakpointsRequest("/src/later.go", []int{3})
	resp := client.ExpectSetBreakpointsResponse(t)
	if len(resp.Breakpoints) != 1 || resp.Breakpoints[0].Verified {
		t.Fatalf("got %+v, want one unverified breakpoint", resp.Breakpoints)
	}

	var conn *dap.Connection
	waitForConnection(t, server, &conn)
	f := conn.CreatePhysicalFile("later.go", "/src")
	if !f.HasBreakpoint(3) {
		t.Fatal("pending breakpoint was not applied on registration")
	}
}

func TestEvaluate_FindsLocalInFrame(t *testing.T) {
	server, addr := startServer(t)
	client := daptest.NewClient(addr)
	defer client.Close()

	client.InitializeRequest()
	client.ExpectInitializeResponse(t)
	client.ExpectInitializedEvent(t)

	var conn *dap.Connection
	waitForConnection(t, server, &conn)

	file := conn.CreatePhysicalFile("main.go", "/src")
	thread := conn.CurrentThread("osthread-1", "goroutine1")
	drainThreadEvents(t, client, 1)
	frame := thread.Enter(file, "main.run", 10)
	frame.Locals().Container().Put("x", dap.NewInt(dap.KindI32, 7))

	client.ScopesRequest(frame.ID())
	scopes := client.ExpectScopesResponse(t)
	if len(scopes.Scopes) != 3 {
		t.Fatalf("got %d scopes, want 3", len(scopes.Scopes))
	}

	client.EvaluateRequest("x", frame.ID())
	eval := client.ExpectEvaluateResponse(t)
	require.Equal(t, "7", eval.Result)
}

func TestPauseAll_EmitsSingleAggregateStoppedEvent(t *testing.T) {
	server, addr := startServer(t)
	client := daptest.NewClient(addr)
	defer client.Close()

	client.InitializeRequest()
	client.ExpectInitializeResponse(t)
	client.ExpectInitializedEvent(t)

	var conn *dap.Connection
	waitForConnection(t, server, &conn)
	conn.CurrentThread("a", "t1")
	conn.CurrentThread("b", "t2")
	drainThreadEvents(t, client, 2)

	// The pause handler emits the aggregate stopped event before it
	// returns, so the event precedes the pause response on the wire.
	client.PauseRequest(0)
	stopped := client.ExpectStoppedEvent(t)
	if !stopped.AllThreadsStopped {
		t.Fatalf("got %+v, want AllThreadsStopped=true", stopped)
	}
	client.ExpectPauseResponse(t)
}

func TestVisualStudioClientQuirk_DotsBecomeUnderscores(t *testing.T) {
	server, addr := startServer(t)
	client := daptest.NewClient(addr)
	defer client.Close()

	client.InitializeRequestWithClientID("visualstudio")
	client.ExpectInitializeResponse(t)
	client.ExpectInitializedEvent(t)

	var conn *dap.Connection
	waitForConnection(t, server, &conn)
	conn.CurrentThread("a", "pkg.Goroutine.1")
	drainThreadEvents(t, client, 1)

	client.ThreadsRequest()
	threads := client.ExpectThreadsResponse(t)
	if len(threads.Threads) != 1 || threads.Threads[0].Name != "pkg_Goroutine_1" {
		t.Fatalf("got %+v, want name pkg_Goroutine_1", threads.Threads)
	}
}

// TestServer_WaitUntilConfigured_BlocksUntilClientConfigures exercises the
// §6 lifecycle contract Get() builds on: WaitUntilConfigured must not
// return until some connection has completed configurationDone.
func TestServer_WaitUntilConfigured_BlocksUntilClientConfigures(t *testing.T) {
	server, addr := startServer(t)

	done := make(chan struct{})
	go func() {
		server.WaitUntilConfigured()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitUntilConfigured returned before any client configured")
	case <-time.After(50 * time.Millisecond):
	}

	client := daptest.NewClient(addr)
	defer client.Close()
	client.InitializeRequest()
	client.ExpectInitializeResponse(t)
	client.ExpectInitializedEvent(t)
	client.ConfigurationDoneRequest()
	client.ExpectConfigurationDoneResponse(t)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitUntilConfigured did not unblock after configurationDone")
	}
}

// waitForConnection polls the server's live connection set since the
// accept loop races with the test goroutine that wants to drive the
// runtime-facing API on the freshly accepted Connection.
func waitForConnection(t *testing.T, server *dap.Server, out **dap.Connection) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c := server.AnyConnection(); c != nil {
			*out = c
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for an accepted connection")
}

func drainThreadEvents(t *testing.T, client *daptest.Client, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		client.ExpectThreadEvent(t)
	}
}
