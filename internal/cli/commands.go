package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/nhle/listadmin/internal/app"
	"github.com/nhle/listadmin/internal/credential"
	"github.com/nhle/listadmin/internal/dashboard"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/stats"
	"github.com/nhle/listadmin/internal/store"
)

func allCommands(g globals) []*Command {
	return []*Command{
		dashboardCmd(g),
		syncCmd(g),
		tasksCmd(g),
		statsCmd(g),
		checkCmd(g),
		setPasswordCmd(),
		initCmd(g),
	}
}

func dashboardCmd(g globals) *Command {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	statsOut := fs.String("stats-out", "listadmin-stats.json", "default file for the stats command of the palette")

	return &Command{
		Flags: fs,
		Usage: "dashboard [flags]",
		Short: "Open the console dashboard (default command)",
		Exec: func(ctx context.Context, _ *IO, _ []string) error {
			rt, err := openRuntime(g, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			user := rt.cfg.User()
			if user.Email == "" {
				return errors.New("viewer.email is not configured; run 'listadmin init --email you@example.com'")
			}

			m := app.New(rt.service, app.Options{
				User:      user,
				StatsPath: *statsOut,
				Timeout:   rt.timeout(),
				Config:    rt.cfg,
				Settings:  settingsSaver{path: g.configPath},
			})
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("running dashboard: %w", err)
			}
			return nil
		},
	}
}

func syncCmd(g globals) *Command {
	return &Command{
		Flags: flag.NewFlagSet("sync", flag.ContinueOnError),
		Usage: "sync",
		Short: "Mirror the Mailman queues into the local task store once",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			rt, err := openRuntime(g, o.Err)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(ctx, rt.timeout())
			defer cancel()

			res, err := rt.service.Sync(ctx)
			if err != nil {
				return err
			}
			o.Printf("%s new moderation task(s), %s new subscription task(s), %s removed\n",
				humanize.Comma(int64(len(res.NewModeration))),
				humanize.Comma(int64(len(res.NewSubscription))),
				humanize.Comma(int64(res.Removed)),
			)
			return nil
		},
	}
}

func tasksCmd(g globals) *Command {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	taskType := fs.StringP("type", "t", "", "only show tasks of this type (subscription, moderation, manual)")
	lists := fs.StringSlice("list", nil, "only show tasks of these list ids (repeatable)")
	limit := fs.IntP("limit", "n", 0, "show at most N tasks")

	return &Command{
		Flags: fs,
		Usage: "tasks [--type TYPE] [--list ID]... [--limit N]",
		Short: "Print the stored tasks you may act on, highest priority first",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			filter := store.TaskFilter{TaskType: model.TaskType(*taskType), ListIDs: *lists}
			if filter.TaskType != "" && !filter.TaskType.Valid() {
				return fmt.Errorf("unknown task type %q", *taskType)
			}

			rt, err := openRuntime(g, o.Err)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(ctx, rt.timeout())
			defer cancel()

			tasks, err := rt.service.Tasks(ctx, rt.cfg.User(), filter, *limit)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				o.Println("no pending tasks")
				return nil
			}

			now := time.Now()
			for _, t := range tasks {
				o.Printf("%-12s %-10s %-24s %s (%s)\n",
					t.TaskType, t.TaskID, t.ListID, t.Title(), dashboard.RelativeTime(t.MadeOn, now))
			}
			return nil
		},
	}
}

func statsCmd(g globals) *Command {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	out := fs.StringP("out", "o", "", "write the graph to FILE instead of standard output")
	lists := fs.StringSlice("list", nil, "restrict the graph to these list ids (repeatable)")

	return &Command{
		Flags: fs,
		Usage: "stats [--out FILE] [--list ID]...",
		Short: "Export the 31-day task graph as JSON",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			rt, err := openRuntime(g, o.Err)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(ctx, rt.timeout())
			defer cancel()

			graph, err := rt.service.Graph(ctx, rt.cfg.User(), *lists)
			if err != nil {
				return err
			}

			if *out == "" || *out == "-" {
				enc := json.NewEncoder(o.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(graph)
			}
			if err := stats.WriteFile(*out, graph); err != nil {
				return err
			}
			o.Printf("wrote %s (%s subscriptions, %s moderations)\n", *out,
				humanize.Comma(int64(graph.Subscriptions.Total())),
				humanize.Comma(int64(graph.Moderations.Total())),
			)
			return nil
		},
	}
}

func checkCmd(g globals) *Command {
	return &Command{
		Flags: flag.NewFlagSet("check", flag.ContinueOnError),
		Usage: "check",
		Short: "Verify the Mailman REST URL and credentials",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			rt, err := openRuntime(g, o.Err)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(ctx, rt.timeout())
			defer cancel()

			version, err := rt.adapter.ValidateConnection(ctx)
			if err != nil {
				return err
			}
			o.Printf("connected to %s (Mailman %s)\n", rt.cfg.Mailman.APIURL, version)
			return nil
		},
	}
}

func setPasswordCmd() *Command {
	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	remove := fs.Bool("delete", false, "remove the stored password instead")

	return &Command{
		Flags: fs,
		Usage: "set-password [--delete]",
		Short: "Store the Mailman REST password in the system keyring (read from stdin)",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			if *remove {
				if err := credential.Delete(credential.MailmanPasswordKey); err != nil {
					return err
				}
				o.Println("password removed")
				return nil
			}

			password, err := readSecret(o.In)
			if err != nil {
				return err
			}
			if err := credential.Set(credential.MailmanPasswordKey, password); err != nil {
				return err
			}
			o.Println("password stored")
			return nil
		},
	}
}

// readSecret reads the first line of r, without its line ending.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func initCmd(g globals) *Command {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing configuration file")
	apiURL := fs.String("api-url", "", "Mailman REST API root, e.g. http://localhost:8001")
	apiUser := fs.String("api-user", "", "Mailman REST user")
	email := fs.String("email", "", "your administrator address")
	superuser := fs.Bool("superuser", false, "you are a Mailman site administrator")

	return &Command{
		Flags: fs,
		Usage: "init [flags]",
		Short: "Write a configuration file",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			if _, err := os.Stat(g.configPath); err == nil && !*force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", g.configPath)
			}

			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if *apiURL != "" {
				cfg.Mailman.APIURL = strings.TrimRight(*apiURL, "/")
			}
			if *apiUser != "" {
				cfg.Mailman.APIUser = *apiUser
			}
			if *email != "" {
				cfg.Viewer.Email = *email
			}
			if fs.Changed("superuser") {
				cfg.Viewer.Superuser = *superuser
			}

			if err := model.SaveConfig(g.configPath, cfg); err != nil {
				return err
			}
			o.Println("wrote", g.configPath)
			return nil
		},
	}
}
