package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coverga/internal/config"
	"coverga/internal/logging"
	"coverga/internal/platform"
	"coverga/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globalFlags are shared by every subcommand and override the config file.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	storeKind  string
	storePath  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "coverctl",
		Short:         "Weighted set-cover optimization with a genetic algorithm",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug|info|warn|error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: auto|text|json")
	pf.StringVar(&flags.storeKind, "store", "", "store backend: memory|sqlite|badger")
	pf.StringVar(&flags.storePath, "store-path", "", "sqlite database file or badger directory")

	root.AddCommand(
		newServeCmd(flags),
		newRunCmd(flags),
		newRunsCmd(flags),
		newShowCmd(flags),
		newChartCmd(flags),
		newExportCmd(flags),
	)
	return root
}

// load reads the config file and applies the global flags that were set.
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	if changed("store") {
		cfg.Store.Kind = g.storeKind
	}
	if changed("store-path") {
		cfg.Store.Path = g.storePath
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// openCoordinator opens the configured store and an initialized coordinator
// over it. The returned close func releases the store.
func openCoordinator(ctx context.Context, cfg config.Config, pcfg platform.Config) (*platform.Coordinator, func(), error) {
	store, err := storage.NewStore(cfg.Store.Kind, cfg.Store.Path, pcfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := storage.CloseIfSupported(store); err != nil && pcfg.Logger != nil {
			pcfg.Logger.Error("close store", "error", err)
		}
	}
	pcfg.Store = store
	coordinator := platform.NewCoordinator(pcfg)
	if err := coordinator.Init(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return coordinator, closeStore, nil
}
