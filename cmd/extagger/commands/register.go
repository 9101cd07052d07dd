package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/extagger/internal/app/register"
	"github.com/slok/extagger/internal/model"
	storageio "github.com/slok/extagger/internal/storage/io"
)

type RegisterCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	configFile string
	name       string
}

// NewRegisterCommand returns the register command.
func NewRegisterCommand(rootCmd *RootCommand, app *kingpin.Application) *RegisterCommand {
	c := &RegisterCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("register", "Register a named handler from a YAML definition.")
	c.Cmd.Flag("config", "Path to the handler YAML definition.").Short('f').Required().StringVar(&c.configFile)
	c.Cmd.Flag("name", "Handler name (overrides the definition name).").Short('n').StringVar(&c.name)

	return c
}

func (c RegisterCommand) Name() string { return c.Cmd.FullCommand() }

func (c RegisterCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	h, err := loadHandlerFile(ctx, c.configFile)
	if err != nil {
		return err
	}
	if c.name != "" {
		h.Name = c.name
	}

	repo, err := newRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := register.NewService(register.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	registered, err := svc.Register(ctx, register.RegisterOptions{
		Name:   h.Name,
		Config: h.Config,
	})
	if err != nil {
		return fmt.Errorf("could not register handler: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Handler registered successfully!\n")
	fmt.Fprintf(c.rootCmd.Stdout, "  ID:    %s\n", registered.ID)
	fmt.Fprintf(c.rootCmd.Stdout, "  Name:  %s\n", registered.Name)
	fmt.Fprintf(c.rootCmd.Stdout, "  Rules: %d\n", len(registered.Config.ExtractionRules))

	return nil
}

// loadHandlerFile loads a handler YAML definition from the local filesystem.
func loadHandlerFile(ctx context.Context, path string) (model.Handler, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return model.Handler{}, fmt.Errorf("invalid handler file path: %w", err)
	}

	repo := storageio.NewHandlerYAMLRepository(os.DirFS(filepath.Dir(abs)))
	h, err := repo.GetHandler(ctx, filepath.Base(abs))
	if err != nil {
		return model.Handler{}, fmt.Errorf("could not load handler %q: %w", path, err)
	}

	return h, nil
}
