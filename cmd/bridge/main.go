package main

import (
	"context"
	"domoticz-hue-emulator/internal/adapters/output/persistence"
	"domoticz-hue-emulator/internal/domain/service"
	"domoticz-hue-emulator/internal/emulator"
	"domoticz-hue-emulator/internal/infrastructure/logging"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:          "hue-emulator",
		Short:        "Philips Hue bridge emulator for Domoticz",
		Long:         "Exposes Domoticz devices and scenes as Hue lights so voice assistants can discover and control them locally.",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, logLevel)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "configuration file")
	root.Flags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and list the lights it defines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(cmd.Context(), configPath)
		},
	})
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv(persistence.EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func run(ctx context.Context, configPath, logLevel string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, lights, err := service.NewConfigService(persistence.NewYAMLConfigRepository(configPath)).Load(ctx)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := logging.New(cfg.Logging, version)
	logger.Info("configuration loaded", "path", configPath, "devices", len(cfg.Devices), "scenes", len(cfg.Scenes))

	e, err := emulator.New(ctx, cfg, lights, logger)
	if err != nil {
		return err
	}
	if err := e.Listen(); err != nil {
		return err
	}
	return e.Run(ctx)
}

func check(ctx context.Context, configPath string) error {
	_, lights, err := service.NewConfigService(persistence.NewYAMLConfigRepository(configPath)).Load(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tIDX\tKIND\tTYPE")
	for _, l := range lights {
		kind := string(l.Kind)
		if l.IsScene() && l.SupportsOff {
			kind = "group"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.Name, l.BackendID, kind, l.Capability)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%s: OK, %d lights\n", configPath, len(lights))
	return nil
}
