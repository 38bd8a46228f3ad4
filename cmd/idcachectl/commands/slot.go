package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/idcache"
	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/codec"
	"github.com/unkn0wn-root/idcache/config"
)

func (c *CLI) newGetCmd() *cobra.Command {
	var showPayload bool
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Show the state of a cache slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(_ config.File, b backend.Backend) error {
				e, err := idcache.Find[[]byte](cmd.Context(), b, codec.Bytes{}, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				state := e.State().String()
				if e.Corrupt() {
					state = "corrupt"
				}
				fmt.Fprintf(out, "key:   %s\nstate: %s\n", e.Key(), state)
				if tok, ok := e.Token(); ok {
					fmt.Fprintf(out, "token: %d\n", tok)
				}
				if v, ok := e.Value(); ok {
					fmt.Fprintf(out, "bytes: %d\n", len(v))
					if showPayload {
						fmt.Fprintf(out, "payload: %s\n", v)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showPayload, "payload", false, "print the encoded payload")
	return cmd
}

func (c *CLI) newTombstoneCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "tombstone KEY...",
		Short: "Invalidate cache slots",
		Long:  "Overwrite each key with a tombstone so the next read reloads from the source of truth.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(f config.File, b backend.Backend) error {
				d := ttl
				if d <= 0 {
					d = f.TombstoneTTL
				}
				for _, key := range args {
					if err := idcache.Delete(cmd.Context(), b, key, d); err != nil {
						return fmt.Errorf("tombstone %s: %w", key, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "tombstoned %s (%s)\n", key, d)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "tombstone lifetime (default: config tombstone_ttl)")
	return cmd
}
