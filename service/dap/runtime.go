package dap

import "github.com/google/go-dap"

// This file is the public API exposed to the instrumented runtime, per
// spec §6: the glue layer outside the core calls these methods (through
// the Connection obtained from a Server's accept loop) to register
// threads, files, and variable containers, and to drive a Thread's
// run/step/pause machine from the code actually being debugged.

// CurrentThread lazily creates and returns the Thread for osThreadKey,
// emitting a "thread started" event on first call from a new key.
func (c *Connection) CurrentThread(osThreadKey, name string) *Thread {
	return c.Model.CurrentThread(osThreadKey, name)
}

// File resolves a previously created File by its wire ID.
func (c *Connection) File(id int) (*File, bool) {
	return c.Model.Files.ByID(id)
}

// CreateVirtualFile registers a file whose source lives in memory.
func (c *Connection) CreateVirtualFile(name, source string) *File {
	return c.Model.Files.CreateVirtualFile(name, source)
}

// CreatePhysicalFile registers a file the client will fetch from disk.
func (c *Connection) CreatePhysicalFile(name, dir string) *File {
	return c.Model.Files.CreatePhysicalFile(name, dir, "")
}

// CreateVariableContainer allocates a new, independently addressable
// VariableContainer -- used by the instrumented runtime to build up
// locals/arguments/registers contents, or nested struct values.
func (c *Connection) CreateVariableContainer() *VariableContainer {
	return c.Model.CreateVariableContainer()
}

// WaitForConfigurationDone blocks until the client has issued
// configurationDone, per spec §6's "blocks until the client is ready"
// lifecycle contract.
func (c *Connection) WaitForConfigurationDone() {
	<-c.configDone
}

// handleThreadStart is wired as the Model's onThreadStart callback: it
// emits the "thread" event with reason "started", per spec §6.
func (c *Connection) handleThreadStart(t *Thread) {
	c.SendEvent("thread", dap.ThreadEventBody{
		Reason:   "started",
		ThreadId: t.ID(),
	})
}
