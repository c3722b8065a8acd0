package commands

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/vmls/pkg/config"
	"github.com/walteh/vmls/pkg/execute"
	"github.com/walteh/vmls/pkg/inventory"
	"github.com/walteh/vmls/pkg/render"
	"github.com/walteh/vmls/pkg/virsh"
	"github.com/walteh/vmls/pkg/vm"
	"gitlab.com/tozd/go/errors"
)

// Version is set at build time.
var Version = "dev"

var (
	Debug      bool
	LogLevel   string
	ConfigPath string
	Host       string
	Output     string
)

var rootCmd = &cobra.Command{
	Use:   "vmls",
	Short: "List libvirt virtual machines",
	Long: `vmls lists the virtual machines libvirt manages on this host (or on a remote
host over SSH) with their network device, MAC and IP addresses, disks,
configuration snapshot and power state.

Without a subcommand it behaves like "vmls list".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if LogLevel != "" {
			l, err := zerolog.ParseLevel(LogLevel)
			if err != nil {
				return errors.Errorf("parsing log level: %w", err)
			}
			level = l
		}
		if Debug {
			level = zerolog.DebugLevel
		}
		// the global level is a floor under every logger
		if level < zerolog.GlobalLevel() {
			zerolog.SetGlobalLevel(level)
		}

		ctx := zerolog.Ctx(cmd.Context()).With().Str("command", cmd.Name()).Logger().Level(level).WithContext(cmd.Context())
		cmd.SetContext(ctx)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&Debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Config file (default $XDG_CONFIG_HOME/vmls/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&Host, "host", "", "Inspect a remote hypervisor over SSH: [user@]host[:port]")
	rootCmd.PersistentFlags().StringVarP(&Output, "output", "o", "text", "Output format: text, json or yaml")

	addListFlags(rootCmd)
}

func RootCmd() *cobra.Command {
	return rootCmd
}

// loadConfig reads the config file, then the environment, then the flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if Host != "" {
		if err := cfg.SSH.SetTarget(Host); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app wires the inventory described by a Config.
type app struct {
	cfg     *config.Config
	inv     *inventory.Inventory
	closers []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func newApp(ctx context.Context) (*app, error) {
	logger := zerolog.Ctx(ctx)

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	var runner execute.Runner
	if cfg.SSH.Enabled() {
		ssh, err := execute.DialSSH(ctx, execute.SSHConfig{
			Host:         cfg.SSH.Host,
			Port:         cfg.SSH.Port,
			User:         cfg.SSH.User,
			IdentityFile: cfg.SSH.IdentityFile,
			KnownHosts:   cfg.SSH.KnownHosts,
		}, cfg.Virsh.Prefix...)
		if err != nil {
			return nil, errors.Errorf("connecting to %s: %w", cfg.SSH.Host, err)
		}
		a.closers = append(a.closers, ssh.Close)
		runner = ssh
	} else {
		local := execute.NewLocalRunner(cfg.Virsh.Prefix...)
		local.Timeout = cfg.Virsh.Timeout
		runner = local
	}

	client := virsh.NewClient(runner, cfg.Virsh.Binary, cfg.Virsh.Connect)

	opts := []vm.BuilderOption{
		vm.WithStateTable(cfg.StateTable()),
		vm.WithPrivilegeCheck(cfg.Inventory.PrivilegeRequired()),
	}
	if cfg.Inventory.NeighborSource == config.NeighborsNetlink {
		opts = append(opts, vm.WithNeighborSource(vm.NewNetlinkNeighbors()))
	}
	builder := vm.NewBuilder(client, vm.NewArtifactStore(cfg.Inventory.ArtifactDir), opts...)

	var names inventory.NameSource = client
	if cfg.Inventory.Source == config.SourceRPC {
		lister, err := virsh.NewRPCLister(ctx, cfg.Inventory.LibvirtSocket)
		if err != nil {
			a.Close()
			return nil, err
		}
		names = lister
	}

	logger.Debug().
		Str("source", cfg.Inventory.Source).
		Str("neighbors", cfg.Inventory.NeighborSource).
		Str("host", cfg.SSH.Host).
		Int("concurrency", cfg.Inventory.Concurrency).
		Msg("Inventory configured")

	a.inv = inventory.New(names, builder, cfg.Inventory.Concurrency)
	return a, nil
}

func outputFormat() (render.Format, error) {
	return render.ParseFormat(Output)
}
