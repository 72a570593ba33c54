package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/halo/internal/config"
	"github.com/dyluth/halo/internal/launcher"
	"github.com/dyluth/halo/internal/logger"
	"github.com/dyluth/halo/internal/printer"
	"github.com/dyluth/halo/pkg/mesh"
)

var (
	launchProcs      int
	launchConfigPath string
	launchRedisURL   string
)

var launchCmd = &cobra.Command{
	Use:   "launch [flags] -- <input_file> <output_folder> <width> <height>",
	Short: "Run one process per member over Redis",
	Long: `Launch starts N copies of halo, one per member, that exchange row blocks
through a shared Redis server. It waits for all of them, stops the rest as
soon as one fails and removes the run's keys from Redis afterwards.

Settings come from halo.yml in the current directory when present, or from
--config. Flags override the file.`,
	Args: requireImageArgs,
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().IntVarP(&launchProcs, "procs", "n", 0, "Number of member processes (default from halo.yml, else CPU count)")
	launchCmd.Flags().StringVar(&launchConfigPath, "config", config.DefaultConfigFile, "Launcher configuration file")
	launchCmd.Flags().StringVar(&launchRedisURL, "redis-url", "", "Redis URL shared by the members (overrides halo.yml)")
	rootCmd.AddCommand(launchCmd)
}

// loadLaunchConfig reads the config file, falling back to defaults when the
// default file does not exist, and applies flag overrides.
func loadLaunchConfig(cmd *cobra.Command) (*config.LaunchConfig, error) {
	var cfg *config.LaunchConfig
	if _, err := os.Stat(launchConfigPath); errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(launchConfigPath)
		if err != nil {
			return nil, printer.ErrorWithContext(
				"invalid launcher configuration",
				err.Error(),
				map[string]string{"Config": launchConfigPath},
				nil,
			)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("procs") {
		if launchProcs < 1 {
			return nil, printer.Error("invalid --procs", fmt.Sprintf("--procs must be >= 1, got %d", launchProcs), nil)
		}
		cfg.Processes = &launchProcs
	}
	if launchRedisURL != "" {
		cfg.Redis.URL = launchRedisURL
	}
	return cfg, nil
}

func runLaunch(cmd *cobra.Command, args []string) error {
	if _, err := parseImageArgs(args); err != nil {
		return err
	}

	cfg, err := loadLaunchConfig(cmd)
	if err != nil {
		return err
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return printer.Error("invalid Redis URL", err.Error(), nil)
	}

	exe, err := os.Executable()
	if err != nil {
		return printer.Error("cannot locate halo executable", err.Error(), nil)
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return printer.Error("failed to create logger", err.Error(), nil)
	}
	defer func() { _ = log.Sync() }()

	runID := uuid.NewString()
	broker, err := mesh.NewRedisTransport(opts, runID, 0, 1)
	if err != nil {
		return printer.Error("failed to create Redis client", err.Error(), nil)
	}
	defer broker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := launcher.New(exe, args, cfg, broker,
		launcher.WithRunID(runID),
		launcher.WithLogger(log))

	printer.Step("Launching %d members (run %s) via %s\n", *cfg.Processes, runID, cfg.Redis.URL)
	if err := l.Run(ctx); err != nil {
		return printer.ErrorWithContext(
			"launch failed",
			err.Error(),
			map[string]string{
				"Run":     runID,
				"Members": fmt.Sprintf("%d", *cfg.Processes),
				"Redis":   cfg.Redis.URL,
			},
			[]string{
				fmt.Sprintf("Check that Redis is reachable at %s", cfg.Redis.URL),
				"Check the member output above for the first failure",
			},
		)
	}
	printer.Success("All %d members finished\n", *cfg.Processes)
	return nil
}
