package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/extagger/internal/app/list"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	namePrefix string
	format     string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List the registered handlers.")
	c.Cmd.Flag("prefix", "Only show handlers whose name starts with this prefix.").StringVar(&c.namePrefix)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := newRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := list.NewService(list.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	handlers, err := svc.Run(ctx, list.Request{NamePrefix: c.namePrefix})
	if err != nil {
		return fmt.Errorf("could not list handlers: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintHandlerList(handlers); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
