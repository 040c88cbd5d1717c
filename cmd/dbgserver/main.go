package main

import (
	"fmt"
	"os"

	"github.com/swiftshader/dbgserver/cmd/dbgserver/cmds"
)

func main() {
	root := cmds.New()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
