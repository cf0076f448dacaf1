// Command listadmin is a console dashboard for Mailman 3 list owners and
// moderators.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nhle/listadmin/internal/cli"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, sigCh)

	os.Exit(exitCode)
}
