package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/idcache/config"
	"github.com/unkn0wn-root/idcache/keys"
)

func (c *CLI) newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache key for a blob, attribute or index lookup",
		Long: `Print a derived cache key.

Predicate values are typed by prefix: int:42, float:1.5, bool:true, nil,
str:text. Anything else is a string.`,
	}

	var columns []string
	blob := &cobra.Command{
		Use:   "blob ENTITY ID",
		Short: "Key of a whole entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := parseColumns(columns)
			if err != nil {
				return err
			}
			return c.printKey(cmd, func(d keys.Deriver) string {
				return d.Blob(args[0], keys.Fingerprint(cols), args[1])
			})
		},
	}
	blob.Flags().StringSliceVar(&columns, "columns", nil, "persisted columns as name:type (required)")
	_ = blob.MarkFlagRequired("columns")

	var attrBy []string
	attr := &cobra.Command{
		Use:   "attribute ENTITY ATTRIBUTE VALUE...",
		Short: "Key of a single-attribute lookup",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := predicate(attrBy, args[2:])
			if err != nil {
				return err
			}
			return c.printKey(cmd, func(d keys.Deriver) string {
				return d.Attribute(args[0], args[1], attrBy, values)
			})
		},
	}
	attr.Flags().StringSliceVar(&attrBy, "by", []string{"id"}, "predicate columns, in order")

	var indexBy []string
	index := &cobra.Command{
		Use:   "index ENTITY VALUE...",
		Short: "Key of a secondary-index lookup",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := predicate(indexBy, args[1:])
			if err != nil {
				return err
			}
			return c.printKey(cmd, func(d keys.Deriver) string {
				return d.Index(args[0], indexBy, values)
			})
		},
	}
	index.Flags().StringSliceVar(&indexBy, "by", nil, "predicate columns, in order (required)")
	_ = index.MarkFlagRequired("by")

	cmd.AddCommand(blob, attr, index)
	return cmd
}

// printKey derives a key under the configured namespace. Only the config
// file is read; the backend is not contacted.
func (c *CLI) printKey(cmd *cobra.Command, derive func(keys.Deriver) string) error {
	ns := c.namespace
	if ns == "" && c.configPath != "" {
		f, err := config.Load(c.configPath)
		if err != nil {
			return err
		}
		ns = f.Namespace
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), derive(keys.Deriver{Namespace: ns}))
	return err
}

func predicate(by, raw []string) ([]any, error) {
	if len(by) != len(raw) {
		return nil, fmt.Errorf("got %d values for %d columns (%s)", len(raw), len(by), strings.Join(by, ","))
	}
	out := make([]any, len(raw))
	for i, s := range raw {
		v, err := parseValue(s)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseValue(s string) (any, error) {
	switch {
	case s == "nil":
		return nil, nil
	case strings.HasPrefix(s, "int:"):
		return strconv.ParseInt(strings.TrimPrefix(s, "int:"), 10, 64)
	case strings.HasPrefix(s, "float:"):
		return strconv.ParseFloat(strings.TrimPrefix(s, "float:"), 64)
	case strings.HasPrefix(s, "bool:"):
		return strconv.ParseBool(strings.TrimPrefix(s, "bool:"))
	case strings.HasPrefix(s, "str:"):
		return strings.TrimPrefix(s, "str:"), nil
	default:
		return s, nil
	}
}

func parseColumns(specs []string) ([]keys.Column, error) {
	cols := make([]keys.Column, 0, len(specs))
	for _, s := range specs {
		name, typ, ok := strings.Cut(s, ":")
		if !ok || name == "" || typ == "" {
			return nil, fmt.Errorf("column %q: want name:type", s)
		}
		cols = append(cols, keys.Column{Name: name, Type: typ})
	}
	return cols, nil
}
