package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/livyctl/internal/auth"
	"github.com/danmuck/livyctl/internal/config"
	"github.com/danmuck/livyctl/internal/livy"
	"github.com/danmuck/livyctl/internal/observability"
)

type options struct {
	mode     string
	config   string
	code     string
	file     string
	session  string
	keep     bool
	force    bool
	output   string
	logLevel string
}

func main() {
	opts := parseFlags()
	switch opts.mode {
	case "run":
		if err := runStatement(opts); err != nil {
			fatalf("%v", err)
		}
	case "list":
		if err := listSessions(opts); err != nil {
			fatalf("%v", err)
		}
	case "delete":
		if err := deleteSession(opts); err != nil {
			fatalf("%v", err)
		}
	case "init":
		if err := writeTemplate(opts); err != nil {
			fatalf("%v", err)
		}
	default:
		fatalf("unknown mode %q (supported: run, list, delete, init)", opts.mode)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.mode, "mode", "run", "mode: run | list | delete | init")
	flag.StringVar(&opts.config, "config", "livy.toml", "path to client config")
	flag.StringVar(&opts.code, "code", "1 + 1", "code to execute (run mode)")
	flag.StringVar(&opts.file, "file", "", "file with code to execute, overrides -code (run mode)")
	flag.StringVar(&opts.session, "session", "", "session id or location, e.g. /sessions/0 (delete mode)")
	flag.BoolVar(&opts.keep, "keep", false, "keep the session alive after run")
	flag.BoolVar(&opts.force, "force", false, "overwrite existing file (init mode)")
	flag.StringVar(&opts.output, "output", "livy.toml", "output path for config template (init mode)")
	flag.StringVar(&opts.logLevel, "log-level", "", "log level: trace|debug|info|warn|error")
	flag.Parse()
	return opts
}

func newLogger(opts options) (zerolog.Logger, error) {
	logger := observability.InitLogger("livyctl")
	raw := strings.TrimSpace(opts.logLevel)
	if raw == "" {
		return logger, nil
	}
	lvl, ok := observability.ParseLevel(raw)
	if !ok {
		return logger, fmt.Errorf("unknown log level %q", raw)
	}
	return logger.Level(lvl), nil
}

func newClient(ctx context.Context, path string, logger zerolog.Logger) (*livy.Client, error) {
	fileCfg, err := config.LoadClientConfig(path)
	if err != nil {
		return nil, err
	}
	cfg, err := fileCfg.Livy()
	if err != nil {
		return nil, err
	}
	creds, err := auth.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Credentials = creds
	cfg.Logger = logger
	return livy.NewClient(cfg)
}

// runStatement drives the full session round trip: create, wait ready,
// execute, report, and clean up even when a step fails.
func runStatement(opts options) error {
	logger, err := newLogger(opts)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := opts.code
	if path := strings.TrimSpace(opts.file); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read code file: %w", err)
		}
		code = string(data)
	}

	client, err := newClient(ctx, opts.config, logger)
	if err != nil {
		return err
	}

	sess, err := client.Sessions.Create(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if opts.keep {
			logger.Info().Str("location", sess.Location).Msg("session_kept")
			return
		}
		// The run context may already be canceled; cleanup gets its own.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := client.Sessions.Delete(cleanupCtx, sess); err != nil {
			logger.Warn().Err(err).Msg("session_cleanup_failed")
		}
	}()

	state, err := client.Sessions.WaitReady(ctx, sess)
	if err != nil {
		return err
	}
	if !state.Ready() {
		return fmt.Errorf("session %d entered state %q before becoming ready", sess.ID, state)
	}

	st, err := client.Statements.Submit(ctx, sess, code)
	if err != nil {
		return err
	}
	result, err := client.Statements.WaitResult(ctx, st)
	if err != nil {
		return err
	}
	printStatement(code, result)
	if !result.State.Succeeded() {
		return fmt.Errorf("statement %d finished in state %q", result.ID, result.State)
	}
	return nil
}

func listSessions(opts options) error {
	logger, err := newLogger(opts)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newClient(ctx, opts.config, logger)
	if err != nil {
		return err
	}
	list, err := client.Sessions.List(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Sessions (total=%d)\n", list.Total)
	for _, sess := range list.Sessions {
		fmt.Printf("  %4d  %-10s  kind=%s\n", sess.ID, sess.State, sess.Kind)
	}
	return nil
}

func deleteSession(opts options) error {
	location := strings.TrimSpace(opts.session)
	if location == "" {
		return errors.New("delete mode requires -session, e.g. -session /sessions/0")
	}
	if !strings.HasPrefix(location, "/") {
		location = "/sessions/" + location
	}

	logger, err := newLogger(opts)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newClient(ctx, opts.config, logger)
	if err != nil {
		return err
	}
	sess := &livy.Session{Location: location}
	if _, err := client.Sessions.Delete(ctx, sess); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", location)
	return nil
}

func writeTemplate(opts options) error {
	if err := config.WriteTemplate(opts.output, "client", opts.force); err != nil {
		return err
	}
	fmt.Printf("Wrote client config template to %s\n", opts.output)
	return nil
}

func printStatement(code string, st *livy.Statement) {
	fmt.Printf("Statement %d [%s]\n", st.ID, st.State)
	fmt.Printf("  Code:   %s\n", strings.TrimSpace(code))
	if text, ok := st.Output.Text(); ok {
		fmt.Printf("  Output: %s\n", text)
	}
	if st.Output != nil && st.Output.EValue != "" {
		fmt.Printf("  Error:  %s: %s\n", st.Output.EName, st.Output.EValue)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "livyctl: "+format+"\n", args...)
	os.Exit(1)
}
