// Package cli implements the listadmin command line: global flags, the
// subcommands and the wiring between configuration, storage and the
// Mailman server.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/nhle/listadmin/internal/model"
)

// globals holds the flags accepted before the subcommand.
type globals struct {
	configPath string
	dbPath     string
	logLevel   string
}

func parseGlobalFlags(args []string) (globals, []string, error) {
	var g globals

	fs := flag.NewFlagSet("listadmin", flag.ContinueOnError)
	fs.SetOutput(&strings.Builder{})
	fs.SetInterspersed(false)
	fs.StringVarP(&g.configPath, "config", "c", model.DefaultConfigPath(), "path to the configuration file")
	fs.StringVar(&g.dbPath, "db", "", "path to the SQLite database (overrides database.path)")
	fs.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides log.level)")

	if err := fs.Parse(args); err != nil {
		return g, nil, err
	}
	return g, fs.Args(), nil
}

// Run is the main entry point. args includes the program name. A signal on
// sigCh cancels the running command. Returns the exit code.
func Run(in io.Reader, out, errOut io.Writer, args []string, sigCh <-chan os.Signal) int {
	o := &IO{In: in, Out: out, Err: errOut}

	g, rest, err := parseGlobalFlags(args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o, nil)
			return 0
		}
		o.ErrPrintln("error:", err)
		return 1
	}

	name := "dashboard"
	if len(rest) > 0 {
		name, rest = rest[0], rest[1:]
	}

	commands := allCommands(g)
	if name == "help" {
		printUsage(o, commands)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for _, c := range commands {
		if c.Name() == name {
			return c.Run(ctx, o, rest)
		}
	}

	o.ErrPrintln("error: unknown command:", name)
	printUsage(&IO{Out: errOut}, commands)
	return 1
}

func printUsage(o *IO, commands []*Command) {
	o.Println("Usage: listadmin [--config FILE] [--db FILE] [--log-level LEVEL] <command> [flags]")
	o.Println()
	o.Println("Commands:")
	if commands == nil {
		commands = allCommands(globals{})
	}
	for _, c := range commands {
		o.Println(c.HelpLine())
	}
}
