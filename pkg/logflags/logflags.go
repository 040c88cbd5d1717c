// Package logflags provides command-level control over debug server
// logging, mirroring delve's pkg/logflags: one boolean per logging
// component, a comma-separated flag value to enable them, and a shared
// output destination every component's *logrus.Entry is drawn from.
package logflags

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	connection  = false
	dispatch    = false
	threadstate = false
	objectstore = false
	server      = false

	output  io.Writer = os.Stderr
	logFile *os.File
)

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Connection returns the logger for per-connection framing activity
// (receive/send, framing errors).
func Connection() *logrus.Entry {
	return makeLogger(connection, logrus.Fields{"component": "connection"})
}

// Dispatch returns the logger for request/response/event dispatch.
func Dispatch() *logrus.Entry {
	return makeLogger(dispatch, logrus.Fields{"component": "dispatch"})
}

// ThreadState returns the logger for the per-thread run/step/pause state
// machine.
func ThreadState() *logrus.Entry {
	return makeLogger(threadstate, logrus.Fields{"component": "threadstate"})
}

// ObjectStore returns the logger for handle-table add/get/reap activity.
func ObjectStore() *logrus.Entry {
	return makeLogger(objectstore, logrus.Fields{"component": "objectstore"})
}

// Server returns the logger for accept-loop/lifecycle activity.
func Server() *logrus.Entry {
	return makeLogger(server, logrus.Fields{"component": "server"})
}

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	l := logrus.New()
	l.Out = output
	l.Formatter = new(logrus.TextFormatter)
	if flag {
		l.Level = logrus.DebugLevel
	} else {
		l.Level = logrus.InfoLevel
	}
	return l.WithFields(fields)
}

// Setup sets the logging level, the enabled components, and the output
// destination. logFlag enables logging at all; logstr is a comma
// separated list of component names to enable at debug level
// ("connection,dispatch"). An empty logstr with logFlag set enables
// every component. A non-empty logDest redirects every component's
// output to that file instead of stderr, the same way delve's --log-dest
// does; the caller should defer Close() after a successful call.
func Setup(logFlag bool, logstr string, logDest string) error {
	if !logFlag {
		logrus.SetOutput(ioutil.Discard)
		output = ioutil.Discard
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logDest != "" {
		f, err := os.Create(logDest)
		if err != nil {
			return fmt.Errorf("could not create log destination %q: %v", logDest, err)
		}
		logFile = f
		output = f
		logrus.SetOutput(f)
	}
	if logstr == "" {
		logstr = "connection,dispatch,threadstate,objectstore,server"
	}
	for _, name := range strings.Split(logstr, ",") {
		switch strings.TrimSpace(name) {
		case "connection":
			connection = true
		case "dispatch":
			dispatch = true
		case "threadstate":
			threadstate = true
		case "objectstore":
			objectstore = true
		case "server":
			server = true
		}
	}
	return nil
}

// Close releases the log destination file opened by Setup, if any.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// WriteDAPListeningMessage writes the startup banner a debug adapter
// conventionally emits once its listener is bound, the same way delve's
// dap command announces its address.
func WriteDAPListeningMessage(addr string) {
	logrus.StandardLogger().Infof("DAP server listening at: %s", addr)
}
