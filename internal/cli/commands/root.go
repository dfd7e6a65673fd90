package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/redisstore/internal/cli/ui"
	"github.com/conduit-lang/redisstore/internal/config"
	"github.com/conduit-lang/redisstore/internal/logging"
	"github.com/conduit-lang/redisstore/pkg/store"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// app carries what every command needs once flags are parsed
type app struct {
	configPath string
	noColor    bool
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "redisstore",
		Short: "Map Go structs onto Redis",
		Long: color.CyanString(`redisstore - Go structs stored as Redis hashes, lists and sets

Entities get counter-assigned or caller-supplied identities, unique and
indexed fields, and typed list and set fields. This tool runs the demo,
prints identity counters and serves a read-only inspector.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./redisstore.yaml)")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newDemoCommand(a))
	rootCmd.AddCommand(newCountersCommand(a))
	rootCmd.AddCommand(newServeCommand(a))

	return rootCmd
}

func (a *app) load() error {
	if a.noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// open connects to the configured server, or to an in-process one when
// embedded is set. The returned cleanup closes both.
func (a *app) open(ctx context.Context, embedded bool) (*store.Store, func(), error) {
	cfg := *a.cfg

	var mr *miniredis.Miniredis
	if embedded {
		var err error
		if mr, err = miniredis.Run(); err != nil {
			return nil, nil, fmt.Errorf("start embedded server: %w", err)
		}
		cfg.Redis.Addr = mr.Addr()
		a.logger.Info("started embedded server", zap.String("addr", mr.Addr()))
	}

	s, err := store.Open(ctx, &cfg, a.logger)
	if err != nil {
		if mr != nil {
			mr.Close()
		}
		return nil, nil, err
	}

	return s, func() {
		s.Close()
		if mr != nil {
			mr.Close()
		}
		a.logger.Sync()
	}, nil
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the redisstore version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			table := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			table.AddRow("redisstore version", Version)
			table.AddRow("Git commit", GitCommit)
			table.AddRow("Build date", BuildDate)
			table.AddRow("Go version", goVer)
			table.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
