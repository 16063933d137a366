package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/config"
)

// ErrUnknownCommand is returned by Run for commands it does not handle.
var ErrUnknownCommand = errors.New("unknown command")

// App runs a single authctl command against the server.
type App struct {
	client client.Client
	reader *bufio.Reader
	out    io.Writer
}

// NewApp wires an App from cfg using stdin/stdout.
func NewApp(cfg *config.Config) *App {
	return newApp(client.NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout), os.Stdin, os.Stdout)
}

func newApp(c client.Client, in io.Reader, out io.Writer) *App {
	return &App{client: c, reader: bufio.NewReader(in), out: out}
}

// Run dispatches command. Valid commands are register, login and health.
func (a *App) Run(ctx context.Context, command string) error {
	switch command {
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "health":
		return a.health(ctx)
	default:
		return fmt.Errorf("%w: %q (use register, login or health)", ErrUnknownCommand, command)
	}
}

func (a *App) credentials() (string, string, error) {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return "", "", fmt.Errorf("read email: %w", err)
	}
	pw, err := GetPassword(a.out)
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}
	defer clear(pw)
	return email, string(pw), nil
}

func (a *App) register(ctx context.Context) error {
	email, pw, err := a.credentials()
	if err != nil {
		return err
	}
	token, err := a.client.Register(ctx, email, pw)
	if err != nil {
		if errors.Is(err, client.ErrUserExists) {
			return fmt.Errorf("%s is already registered: %w", email, err)
		}
		return err
	}
	fmt.Fprintf(a.out, "Registered %s\ntoken: %s\n", email, token)
	return nil
}

func (a *App) login(ctx context.Context) error {
	email, pw, err := a.credentials()
	if err != nil {
		return err
	}
	token, err := a.client.Login(ctx, email, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\ntoken: %s\n", email, token)
	return nil
}

func (a *App) health(ctx context.Context) error {
	msg, err := a.client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}
