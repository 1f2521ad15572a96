package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/FeelPulse/haven/internal/api"
	"github.com/FeelPulse/haven/internal/auth"
	"github.com/FeelPulse/haven/internal/config"
	"github.com/FeelPulse/haven/internal/logger"
	"github.com/FeelPulse/haven/internal/metrics"
	"github.com/FeelPulse/haven/internal/store"
)

const version = "0.1.0"

// errSilent marks a failure that has already been reported to the user
var errSilent = errors.New("reported")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
		return
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error loading config: %v\n", err)
		os.Exit(1)
	}
	result := cfg.Validate()
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "⚠️  %s\n", w)
	}
	if !result.IsValid() {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "❌ %s\n", e)
		}
		fmt.Fprintf(os.Stderr, "Fix %s or the HAVEN_* environment.\n", config.Path())
		os.Exit(1)
	}

	log := logger.New(&logger.Config{Level: cfg.Log.Level, Component: "haven"})
	logger.SetDefaultLogger(log)

	a, err := newApp(cfg, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	if f, ok := a.inFile.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		a.readSecret = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(a.out)
			return string(b), err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = a.run(ctx, os.Args[1], os.Args[2:])
	stop()
	a.Close()

	if err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		if errors.Is(err, errUnknownCommand) {
			printUsage(os.Stderr)
		}
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Haven AI - real estate concierge in your terminal

Usage:
  haven <command>

Commands:
  login            Sign in and store the session
  register         Create an account
  forgot-password  Email a one-time reset code
  reset-password   Set a new password with the emailed code
  logout           Clear the stored session
  status           Show the stored session
  chat             Open the chat screen
  ask <message>    Send one message and print the reply
  version          Print version
  help             Show this help

Configuration: ~/.haven/config.yaml, .env, HAVEN_* environment variables`)
}

var errUnknownCommand = errors.New("unknown command")

// app carries what every command needs
type app struct {
	cfg     *config.Config
	client  *api.Client
	kv      store.KV
	auth    *auth.Service
	metrics *metrics.Collector
	log     *logger.Logger

	inFile     io.Reader
	in         *bufio.Reader
	out        io.Writer
	readSecret func() (string, error) // nil when input is not a terminal

	configPath string // written on first login when missing
	closer     io.Closer
}

// newApp opens session storage and builds the API client from cfg
func newApp(cfg *config.Config, in io.Reader, out io.Writer) (*app, error) {
	kv, closer, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.Default()
	log := logger.GetDefaultLogger()
	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.Timeout()),
		api.WithLogger(log.WithComponent("api")),
		api.WithMetrics(m),
	)

	return &app{
		cfg:     cfg,
		client:  client,
		kv:      kv,
		auth:    auth.NewService(client, kv),
		metrics: m,
		log:     log,
		inFile:  in,
		in:      bufio.NewReader(in),
		out:     out,

		configPath: config.Path(),
		closer:     closer,
	}, nil
}

// openStore returns in-memory storage for ephemeral sessions, otherwise the
// SQLite session database with idle entries pruned
func openStore(cfg *config.Config) (store.KV, io.Closer, error) {
	if cfg.Session.Ephemeral {
		return store.NewMemory(), nil, nil
	}

	s, err := store.NewSQLiteStore(cfg.Session.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	if idle := cfg.IdleTimeout(); idle > 0 {
		if n, err := s.Prune(idle); err != nil {
			logger.Warn("Failed to prune idle session: %v", err)
		} else if n > 0 {
			logger.Info("Dropped %d idle session values", n)
		}
	}
	return s, s, nil
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx)
	case "register":
		return a.cmdRegister(ctx)
	case "forgot-password":
		return a.cmdForgotPassword(ctx)
	case "reset-password":
		return a.cmdResetPassword(ctx)
	case "logout":
		return a.cmdLogout()
	case "status":
		return a.cmdStatus()
	case "chat":
		return a.cmdChat(ctx)
	case "ask":
		return a.cmdAsk(ctx, strings.Join(args, " "))
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
}

// prompt prints label and reads one trimmed line. def is shown and returned
// for an empty answer.
func (a *app) prompt(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(a.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(a.out, "%s: ", label)
	}

	line, err := a.in.ReadString('\n')
	switch {
	case err == nil, errors.Is(err, io.EOF) && line != "":
	case errors.Is(err, io.EOF) && def != "":
		return def, nil
	default:
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// promptSecret reads a password without echo when the input is a terminal
func (a *app) promptSecret(label string) (string, error) {
	if a.readSecret == nil {
		line, err := a.prompt(label, "")
		return line, err
	}
	fmt.Fprintf(a.out, "%s: ", label)
	s, err := a.readSecret()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return s, nil
}
