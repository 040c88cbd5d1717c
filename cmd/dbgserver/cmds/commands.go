// Package cmds builds the dbgserver command tree, in the same shape as
// delve's cmd/dlv/cmds: a cobra root command, a handful of persistent
// flags bound to package vars, a loaded config.Config providing
// defaults, and New, which main.go calls to build the tree it executes.
package cmds

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/swiftshader/dbgserver/pkg/config"
	"github.com/swiftshader/dbgserver/pkg/logflags"
	"github.com/swiftshader/dbgserver/service/dap"
)

var (
	// logFlag is whether to log debug statements.
	logFlag bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path logs should go to.
	logDest string
	// addr is the server's listen address.
	addr string

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const rootCommandLongDesc = `dbgserver embeds a Debug Adapter Protocol server inside a graphics
driver's debug subsystem. It speaks DAP over a TCP listener and exposes
an API the instrumented runtime uses to register threads, files, and
variables and drive the run/step/pause state machine.`

// New returns an initialized command tree.
func New() *cobra.Command {
	conf = config.LoadConfig()

	rootCommand = &cobra.Command{
		Use:   "dbgserver",
		Short: "dbgserver is a Debug Adapter Protocol server for an instrumented runtime.",
		Long:  rootCommandLongDesc,
		RunE:  runServer,
	}

	rootCommand.PersistentFlags().StringVarP(&addr, "listen", "l", conf.ListenAddr, "DAP server listen address.")
	rootCommand.PersistentFlags().BoolVarP(&logFlag, "log", "", conf.LogFlag != "", "Enable server logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", conf.LogFlag, "Comma separated list of components that should produce debug output (connection, dispatch, threadstate, objectstore).")
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file instead of stderr.")

	return rootCommand
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(logFlag, logOutput, logDest); err != nil {
		return err
	}
	defer logflags.Close()

	logflags.WriteDAPListeningMessage(addr)

	// Get binds the listener, starts accepting in the background, and
	// blocks until the client has finished configuring the session.
	server, err := dap.Get(addr)
	if err != nil {
		return fmt.Errorf("could not create server: %v", err)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	server.Stop()
	return nil
}
