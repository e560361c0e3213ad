package main

import (
	"time"

	"github.com/ceyewan/kvdiscovery/xerrors"

	"github.com/spf13/cobra"
)

// cli 持有全局 flag 与当前命令的 app
type cli struct {
	configName string
	configDirs []string

	backend   string
	endpoints []string
	root      string
	timeout   time.Duration
	namespace string
	logLevel  string
	breaker   bool

	app *app
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "kvctl",
		Short:         "etcd v3 gateway client and go-micro service discovery",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.configName, "config-name", "kvctl", "config file name without extension")
	f.StringSliceVar(&c.configDirs, "config-dir", []string{".", "./config"}, "directories searched for the config file")
	f.StringVar(&c.backend, "backend", "", "kv backend: http or etcd")
	f.StringSliceVarP(&c.endpoints, "endpoints", "e", nil, "gateway URL (http) or etcd endpoints (etcd)")
	f.StringVar(&c.root, "root", "", "key prefix applied to every request")
	f.DurationVar(&c.timeout, "timeout", 0, "per request timeout")
	f.StringVarP(&c.namespace, "namespace", "n", "", "registry namespace")
	f.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
	f.BoolVar(&c.breaker, "breaker", false, "enable the circuit breaker around kv calls")

	root.AddCommand(
		c.putCmd(),
		c.getCmd(),
		c.updateCmd(),
		c.deleteCmd(),
		c.rangeCmd(),
		c.prefixCmd(),
		c.versionCmd(),
		c.discoverCmd(),
		c.registerCmd(),
		c.deregisterCmd(),
	)
	// PostRun 在 RunE 失败时不会执行，资源释放放在 RunE 的 defer 里
	for _, sub := range root.Commands() {
		if sub.RunE != nil {
			sub.RunE = c.closing(sub.RunE)
		}
	}
	return root
}

func (c *cli) closing(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if c.app != nil {
				err = xerrors.Combine(err, c.app.Close(cmd.Context()))
				c.app = nil
			}
		}()
		return run(cmd, args)
	}
}

func (c *cli) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx, c.configName, c.configDirs)
	if err != nil {
		return err
	}
	c.override(cmd, cfg)

	c.app, err = newApp(ctx, cfg, cmd.ErrOrStderr())
	return err
}

// override 命令行显式给出的 flag 覆盖配置文件
func (c *cli) override(cmd *cobra.Command, cfg *appConfig) {
	f := cmd.Flags()
	if f.Changed("backend") {
		cfg.KV.Backend = c.backend
	}
	if f.Changed("endpoints") && len(c.endpoints) > 0 {
		cfg.KV.Endpoint = c.endpoints[0]
		cfg.KV.Etcd.Endpoints = c.endpoints
	}
	if f.Changed("root") {
		cfg.KV.Root = c.root
	}
	if f.Changed("timeout") {
		cfg.KV.Timeout = c.timeout
		cfg.Registry.Timeout = c.timeout
	}
	if f.Changed("namespace") {
		cfg.Registry.Namespace = c.namespace
	}
	if f.Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if f.Changed("breaker") {
		cfg.Breaker.Enabled = c.breaker
	}
}
