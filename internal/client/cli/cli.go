// Package cli консольный клиент сервиса аутентификации
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/leadsauth/internal/client/api"
	"github.com/iudanet/leadsauth/internal/client/auth"
	"github.com/iudanet/leadsauth/internal/client/iocli"
	"github.com/iudanet/leadsauth/internal/client/jar"
	"github.com/iudanet/leadsauth/internal/client/session"
	"github.com/iudanet/leadsauth/internal/client/storage/boltdb"
)

// Options глобальные флаги клиента
type Options struct {
	Server  string
	DBPath  string
	Timeout time.Duration
	Verbose bool
}

// Cli зависимости команд. Создаются перед выполнением любой команды.
type Cli struct {
	io      iocli.IO
	opts    Options
	version string

	storage *boltdb.Storage
	api     *api.Client
	auth    *auth.Service
	state   *session.State
}

// Execute выполняет команду клиента и освобождает локальное хранилище
func Execute(ctx context.Context, console iocli.IO, version string, args []string) error {
	c := &Cli{io: console, version: version}
	defer c.close()

	root := c.newRootCommand()
	root.SetArgs(args)
	root.SetOut(console)
	root.SetErr(console)

	return describe(root.ExecuteContext(ctx))
}

func (c *Cli) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "leadsauth",
		Short:         "Console client for the leadsauth authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationOffline] != "" {
				return nil
			}
			return c.setup(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.opts.Server, "server", "http://localhost:8080", "Server URL")
	flags.StringVar(&c.opts.DBPath, "db", "leadsauth-client.db", "Path to local database")
	flags.DurationVar(&c.opts.Timeout, "timeout", api.DefaultTimeout, "HTTP request timeout")
	flags.BoolVarP(&c.opts.Verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(
		c.newRegisterCommand(),
		c.newLoginCommand(),
		c.newAdminLoginCommand(),
		c.newLogoutCommand(),
		c.newWhoamiCommand(),
		c.newStatusCommand(),
		c.newVisitCommand(),
		c.newEventsCommand(),
		c.newVersionCommand(),
	)
	return cmd
}

// annotationOffline помечает команды, которым не нужны хранилище и сервер
const annotationOffline = "offline"

// setup открывает хранилище, собирает клиент и выполняет стартовую проверку сессии
func (c *Cli) setup(ctx context.Context) error {
	level := slog.LevelWarn
	if c.opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.io, &slog.HandlerOptions{Level: level}))

	store, err := boltdb.New(ctx, c.opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.storage = store

	cookies, err := jar.New(ctx, store, logger)
	if err != nil {
		return err
	}

	c.state = session.NewState()
	c.api = api.NewClient(c.opts.Server, cookies, c.state,
		api.WithTimeout(c.opts.Timeout),
		api.WithLogger(logger),
	)
	c.auth = auth.NewService(auth.Config{
		Transport: c.api,
		State:     c.state,
		Profiles:  store,
		Cookies:   cookies,
		Logger:    logger,
		Server:    c.opts.Server,
	})

	c.auth.Initialize(ctx)
	return nil
}

func (c *Cli) close() {
	if c.storage == nil {
		return
	}
	if err := c.storage.Close(); err != nil {
		c.io.Printf("Warning: failed to close database: %v\n", err)
	}
}

// describe переводит ошибки клиента в понятные пользователю сообщения
func describe(err error) error {
	if err == nil {
		return nil
	}

	var expired *api.SessionExpiredError
	if errors.As(err, &expired) {
		return fmt.Errorf("session expired, sign in again (%s)", expired.RedirectTo)
	}

	var se *api.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return errors.New(se.Message)
	}
	return err
}
