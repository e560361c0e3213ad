package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Write a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.store.Put(cmd.Context(), []byte(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK revision=%d\n", res.Revision)
			return nil
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a single key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := c.app.store.Get(cmd.Context(), []byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(val))
			return nil
		},
	}
}

func (c *cli) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <key> <value>",
		Short: "Overwrite a key only if it already exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.store.Update(cmd.Context(), []byte(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK revision=%d\n", res.Revision)
			return nil
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"delete"},
		Short:   "Delete a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.store.Delete(cmd.Context(), []byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d\n", res.Deleted)
			return nil
		},
	}
}

func (c *cli) rangeCmd() *cobra.Command {
	var keysOnly bool
	cmd := &cobra.Command{
		Use:   "range <start> [end]",
		Short: "List keys in [start, end)",
		Long:  "List keys in [start, end). Without end only start itself is read; end \"\\0\" reads every key >= start.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var end []byte
			if len(args) == 2 {
				end = []byte(args[1])
				if args[1] == `\0` {
					end = []byte{0}
				}
			}
			res, err := c.app.store.Range(cmd.Context(), []byte(args[0]), end)
			if err != nil {
				return err
			}
			printKVs(cmd, res.KVs, keysOnly)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keysOnly, "keys-only", false, "print keys only")
	return cmd
}

func (c *cli) prefixCmd() *cobra.Command {
	var keysOnly bool
	cmd := &cobra.Command{
		Use:   "prefix <prefix>",
		Short: "List keys with the given prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.store.Prefix(cmd.Context(), []byte(args[0]))
			if err != nil {
				return err
			}
			printKVs(cmd, res.KVs, keysOnly)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keysOnly, "keys-only", false, "print keys only")
	return cmd
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server-version",
		Short: "Show etcd server and cluster version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := c.app.store.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "etcdserver=%s etcdcluster=%s\n", v.Server, v.Cluster)
			return nil
		},
	}
}
