package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rendis/opguard/internal/actions"
	"github.com/rendis/opguard/internal/scheduler"
	"github.com/rendis/opguard/internal/store"
	"github.com/rendis/opguard/pkg/mcp"
)

const usage = `usage: opguard <command> [flags]

commands:
  serve                  serve guard actions as MCP tools over stdio
  check <action> <text>  run one action and print its JSON output ("-" reads text from stdin)
  list                   list registered actions
  history                show recorded invocations
  install                write ~/.opguard/settings.json and a sample guards file
  version                print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "serve":
		err = runServe(ctx, args)
	case "check":
		err = runCheck(ctx, args, os.Stdin, os.Stdout)
	case "list":
		err = runList(ctx, args, os.Stdout)
	case "history":
		err = runHistory(ctx, args, os.Stdout)
	case "install":
		err = runInstall(args)
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	guardsFile := fs.String("guards", "", "guards file (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := loadConfig()
	if *guardsFile != "" {
		cfg.GuardsFile = *guardsFile
	}
	// stdout carries the MCP stream; logs go to stderr.
	logger := newLogger(os.Stderr, cfg.LogLevel)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	var history mcp.History
	if a.store != nil {
		retention, _, err := cfg.durations()
		if err != nil {
			return err
		}
		job, err := scheduler.NewRetention(a.store, cfg.RetentionSchedule, retention, logger)
		if err != nil {
			return err
		}
		if err := job.Start(ctx); err != nil {
			return err
		}
		defer job.Stop()
		history = a.store
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Invoker:  a.invoker,
		Registry: a.registry,
		History:  history,
		Version:  version,
		Logger:   logger,
	})
	logger.Info("serving guard actions over stdio", "actions", a.registry.Count())
	return srv.Serve(ctx)
}

func runCheck(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	metadata := fs.String("metadata", "", "guard metadata as a JSON object")
	noLog := fs.Bool("no-log", false, "do not record the invocation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("check needs <action> <text>")
	}
	name, text := fs.Arg(0), fs.Arg(1)
	if text == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSuffix(string(data), "\n")
	}

	params := map[string]any{"text": text}
	if *metadata != "" {
		var md map[string]any
		if err := json.Unmarshal([]byte(*metadata), &md); err != nil {
			return fmt.Errorf("invalid --metadata: %w", err)
		}
		params["metadata"] = md
	}

	cfg := loadConfig()
	if *noLog {
		cfg.DBPath = ""
	}
	a, err := newApp(ctx, cfg, newLogger(os.Stderr, cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.invoker.Invoke(ctx, name, params)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(res.Output))
	return err
}

func runList(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := loadConfig()
	cfg.DBPath = ""
	a, err := newApp(ctx, cfg, newLogger(os.Stderr, cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.close()

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tGUARD\tDESCRIPTION")
	for _, info := range a.registry.List() {
		g, _ := actions.GuardNameOf(info.Name)
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, g, info.Description)
	}
	return w.Flush()
}

func runHistory(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	action := fs.String("action", "", "filter by action")
	guardName := fs.String("guard", "", "filter by guard")
	outcome := fs.String("outcome", "", "filter by outcome: passed, failed, indeterminate")
	since := fs.Duration("since", 0, "only show invocations younger than this")
	limit := fs.Int("limit", 20, "maximum rows")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := loadConfig()
	dsn := cfg.dsn()
	if dsn == "" {
		return fmt.Errorf("invocation log is disabled (db_path is empty)")
	}
	s, err := openStore(ctx, cfg.DBPath, dsn)
	if err != nil {
		return err
	}
	defer s.Close()

	filter := store.InvocationFilter{Action: *action, Guard: *guardName, Outcome: *outcome, Limit: *limit}
	if *since > 0 {
		t := time.Now().Add(-*since)
		filter.Since = &t
	}
	invs, err := s.ListInvocations(ctx, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tMS\tERROR")
	for _, inv := range invs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			inv.CreatedAt.Local().Format(time.DateTime), inv.Action, inv.Outcome, inv.DurationMs, inv.Error)
	}
	return w.Flush()
}
