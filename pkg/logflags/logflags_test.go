package logflags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func resetFlags() {
	connection = false
	dispatch = false
	threadstate = false
	objectstore = false
	server = false
	output = os.Stderr
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func TestMakeLogger_levels(t *testing.T) {
	off := makeLogger(false, logrus.Fields{"component": "x"})
	if off.Logger.Level != logrus.InfoLevel {
		t.Fatalf("got level %v, want InfoLevel", off.Logger.Level)
	}
	on := makeLogger(true, logrus.Fields{"component": "x"})
	if on.Logger.Level != logrus.DebugLevel {
		t.Fatalf("got level %v, want DebugLevel", on.Logger.Level)
	}
}

func TestSetup_disabledRejectsLogstr(t *testing.T) {
	resetFlags()
	if err := Setup(false, "connection", ""); err != errLogstrWithoutLog {
		t.Fatalf("got err %v, want errLogstrWithoutLog", err)
	}
}

func TestSetup_emptyLogstrEnablesEverything(t *testing.T) {
	resetFlags()
	if err := Setup(true, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !connection || !dispatch || !threadstate || !objectstore || !server {
		t.Fatalf("expected every component enabled, got connection=%v dispatch=%v threadstate=%v objectstore=%v server=%v",
			connection, dispatch, threadstate, objectstore, server)
	}
}

func TestSetup_selectsNamedComponents(t *testing.T) {
	resetFlags()
	if err := Setup(true, "connection, objectstore", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !connection || dispatch || threadstate || !objectstore || server {
		t.Fatalf("expected only connection and objectstore enabled, got connection=%v dispatch=%v threadstate=%v objectstore=%v server=%v",
			connection, dispatch, threadstate, objectstore, server)
	}
}

func TestSetup_logDestRedirectsOutput(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	path := filepath.Join(t.TempDir(), "dbgserver.log")
	if err := Setup(true, "connection", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Connection().Debug("hello from the test")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("could not read log destination: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log destination to contain the logged line")
	}
}

func TestSetup_logDestCreateFailureIsReported(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	if err := Setup(true, "", filepath.Join(t.TempDir(), "missing-dir", "dbgserver.log")); err == nil {
		t.Fatal("expected an error creating a log destination in a missing directory")
	}
}
