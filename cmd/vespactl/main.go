// Command vespactl signs in to the shop admin backend and runs one-off
// queries against it with the stored session.
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

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"github.com/vespa-garage/vespa-admin/config"
	"github.com/vespa-garage/vespa-admin/internal/logging"
	"github.com/vespa-garage/vespa-admin/internal/setup"
	"github.com/vespa-garage/vespa-admin/internal/storage"
	"github.com/vespa-garage/vespa-admin/internal/vespa"
	"golang.org/x/term"
)

var usage = strings.TrimSpace(dedent.Dedent(`
	Usage: vespactl <command> [flags]

	Commands:
	  setup               interactive configuration wizard
	  login               sign in and store the session
	  logout              end the session
	  whoami              show the signed-in user and token expiry
	  status              dashboard, low stock and today's appointments
	  customers           list customers (-search, -page, -limit)
	  low-stock           list parts below their minimum stock level
	  export-tax-report   save a tax report as PDF (-id, -o)
	  get <endpoint>      GET any API endpoint and print the JSON (-q key=value)

	Configuration is read from the environment and from config.env in the
	user config directory. Run "vespactl setup" to create it.
`))

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	config.LoadEnvFile()

	if cmd == "setup" {
		if !setup.RunWizard(setup.Options{
			WithTelegram: len(args) > 0 && args[0] == "-telegram",
			DoneMessage:  "Run `vespactl login` to sign in.",
		}) {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	// Logs go to stderr at warn so command output stays clean.
	level := "warn"
	if os.Getenv("LOG_LEVEL") != "" {
		level = cfg.Log.Level
	}
	if err := logging.Setup(os.Stderr, level, cfg.Log.Format); err != nil {
		fail(err)
	}
	if missing := cfg.CheckRequired(false); len(missing) > 0 {
		fail(fmt.Errorf("missing required config: %s (run `vespactl setup`)", strings.Join(missing, ", ")))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		fail(err)
	}
	defer a.close()

	if err := a.run(ctx, cmd, args); err != nil {
		if errors.Is(err, errUnknownCommand) {
			fmt.Fprintln(os.Stderr, usage)
		}
		fail(err)
	}
}

func fail(err error) {
	if vespa.IsSessionExpired(err) {
		fmt.Fprintln(os.Stderr, "Session expired. Run `vespactl login` to sign in again.")
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	opts, err := cfg.StoreOptions()
	if err != nil {
		return nil, err
	}

	var key []byte
	if cfg.Store.Backend != storage.BackendMemory {
		if key, err = storage.DeriveKey(cfg.Store.TokenKey); err != nil {
			return nil, err
		}
	}

	store, err := storage.Open(ctx, opts, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	session, err := vespa.NewSession(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	client := vespa.NewClient(vespa.ClientOpts{
		BaseURL:       cfg.API.BaseURL,
		Session:       session,
		Timeout:       cfg.API.Timeout,
		RefreshLeeway: cfg.API.RefreshLeeway,
		OnSessionExpired: func(err error) {
			log.Debug().Err(err).Msg("session expired")
		},
	})

	return &app{
		client:       client,
		out:          os.Stdout,
		prompt:       promptLine(os.Stdin, os.Stderr),
		readPassword: readTerminalPassword,
		closer:       store,
	}, nil
}

func promptLine(in io.Reader, out io.Writer) func(string) (string, error) {
	reader := bufio.NewReader(in)
	return func(label string) (string, error) {
		fmt.Fprint(out, label)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}

func readTerminalPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	b, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
