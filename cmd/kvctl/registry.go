package main

import (
	"fmt"
	"strings"

	"github.com/ceyewan/kvdiscovery/kv"
	"github.com/ceyewan/kvdiscovery/registry"
	"github.com/ceyewan/kvdiscovery/xerrors"

	"github.com/spf13/cobra"
)

func (c *cli) discoverCmd() *cobra.Command {
	var (
		all        bool
		roundRobin bool
	)
	cmd := &cobra.Command{
		Use:   "discover <service>",
		Short: "Resolve one address of a registered service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []registry.Option{registry.WithLogger(c.app.logger), registry.WithMeter(c.app.meter)}
			if roundRobin {
				opts = append(opts, registry.WithStrategy(registry.RoundRobin()))
			}
			res, err := registry.New(c.app.store, &c.app.cfg.Registry, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if all {
				nodes, err := res.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, n := range nodes {
					fmt.Fprintf(out, "%s\t%s\n", n.ID, n.Address)
				}
				return nil
			}
			addr, err := res.DiscoverAddress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, addr)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every available node")
	cmd.Flags().BoolVar(&roundRobin, "round-robin", false, "use round robin instead of random selection")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var (
		svcVersion string
		meta       []string
	)
	cmd := &cobra.Command{
		Use:   "register <service> <address>...",
		Short: "Write one registration record per address (no lease)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := parseMetadata(meta)
			if err != nil {
				return err
			}
			svc := &registry.Service{Name: args[0], Version: svcVersion}
			for _, addr := range args[1:] {
				svc.Nodes = append(svc.Nodes, &registry.Node{Address: addr, Metadata: md})
			}

			reg, err := c.app.registrar()
			if err != nil {
				return err
			}
			keys, err := reg.Register(cmd.Context(), svc)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&svcVersion, "service-version", "latest", "service version stored in the record")
	cmd.Flags().StringSliceVar(&meta, "meta", nil, "node metadata as key=value")
	return cmd
}

func (c *cli) deregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deregister <key>",
		Short: "Delete a registration record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.app.registrar()
			if err != nil {
				return err
			}
			return reg.Deregister(cmd.Context(), args[0])
		},
	}
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	md := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "metadata %q must be key=value", p)
		}
		md[k] = v
	}
	return md, nil
}

func printKVs(cmd *cobra.Command, kvs []*kv.KeyValue, keysOnly bool) {
	out := cmd.OutOrStdout()
	for _, item := range kvs {
		if keysOnly {
			fmt.Fprintln(out, string(item.Key))
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", item.Key, item.Value)
	}
}
