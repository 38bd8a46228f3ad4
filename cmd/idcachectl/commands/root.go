// Package commands implements the idcachectl commands.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/config"
)

// Version is set at build time.
var Version = "dev"

// Opener resolves the config file at path (empty for defaults) and opens
// its backend.
type Opener func(ctx context.Context, path string) (config.File, backend.Backend, error)

// OpenFromConfig is the production Opener.
func OpenFromConfig(ctx context.Context, path string) (config.File, backend.Backend, error) {
	f := config.Default()
	if path != "" {
		var err error
		if f, err = config.Load(path); err != nil {
			return config.File{}, nil, err
		}
	}
	b, err := f.OpenBackend(ctx)
	if err != nil {
		return config.File{}, nil, err
	}
	return f, b, nil
}

// CLI is the idcachectl command tree.
type CLI struct {
	open    Opener
	rootCmd *cobra.Command

	configPath string
	namespace  string
}

func New(open Opener) *CLI {
	rootCmd := &cobra.Command{
		Use:           "idcachectl",
		Short:         "Inspect and invalidate idcache entries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &CLI{open: open, rootCmd: rootCmd}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&c.namespace, "namespace", "", "override the configured key namespace")

	rootCmd.AddCommand(c.newKeyCmd())
	rootCmd.AddCommand(c.newGetCmd())
	rootCmd.AddCommand(c.newTombstoneCmd())
	rootCmd.AddCommand(c.newVersionCmd())
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// withBackend opens the configured backend for the duration of fn.
func (c *CLI) withBackend(cmd *cobra.Command, fn func(config.File, backend.Backend) error) error {
	ctx := cmd.Context()
	f, b, err := c.open(ctx, c.configPath)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close(ctx) }()
	if c.namespace != "" {
		f.Namespace = c.namespace
	}
	return fn(f, b)
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "idcachectl %s\n", Version)
			return err
		},
	}
}
