package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/halo/internal/config"
	"github.com/dyluth/halo/internal/coordinator"
	"github.com/dyluth/halo/internal/imageio"
	"github.com/dyluth/halo/internal/logger"
	"github.com/dyluth/halo/internal/metrics"
	"github.com/dyluth/halo/internal/printer"
	"github.com/dyluth/halo/pkg/mesh"
	"github.com/dyluth/halo/pkg/raster"
)

// imageArgs are the four positional arguments of a run.
type imageArgs struct {
	inputPath string
	outputDir string
	dims      raster.Dims
}

func parseImageArgs(args []string) (*imageArgs, error) {
	width, werr := strconv.Atoi(args[2])
	height, herr := strconv.Atoi(args[3])
	dims := raster.Dims{Width: width, Height: height}
	if werr != nil || herr != nil || dims.Validate() != nil {
		return nil, printer.ErrorWithContext(
			"invalid image dimensions",
			"Width and height must be positive integers and the image must fit in memory.",
			map[string]string{"Width": args[2], "Height": args[3]},
			nil,
		)
	}
	return &imageArgs{
		inputPath: args[0],
		outputDir: args[1],
		dims:      dims,
	}, nil
}

func runEdgeDetect(cmd *cobra.Command, args []string) error {
	img, err := parseImageArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return printer.Error("invalid environment", err.Error(), nil)
	}

	log, err := logger.NewLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return printer.Error("failed to create logger", err.Error(), nil)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var report *coordinator.Report
	if cfg.Distributed() {
		report, err = runMember(ctx, cfg, img, log)
	} else {
		report, err = runInProcess(ctx, cfg, img, log)
	}

	// Only rank 0 has anything to say about the outputs.
	if report != nil && report.Rank == 0 {
		for _, saved := range report.Saved {
			printer.Saved(saved.Kind.DisplayName(), saved.Path)
		}
		printer.Timings(printer.Timing{
			Total:         report.Total,
			IO:            report.IO,
			Computation:   report.Computation,
			Communication: report.Communication,
		})
		if cfg.MetricsFile != "" {
			if merr := writeMetrics(cfg.MetricsFile, report); merr != nil {
				printer.Warning("failed to write metrics: %v\n", merr)
			}
		}
	}

	if err != nil {
		if mesh.IsAborted(err) || errors.Is(err, context.Canceled) {
			// The member that caused the abort reports the cause.
			log.Warn("Run aborted", zap.Error(err))
			return err
		}
		return printer.ErrorWithContext(
			"edge detection failed",
			err.Error(),
			map[string]string{
				"Input":   img.inputPath,
				"Output":  img.outputDir,
				"Size":    img.dims.String(),
				"Members": strconv.Itoa(cfg.GroupSize()),
			},
			nil,
		)
	}
	return nil
}

// runInProcess runs every member of the group on its own goroutine and returns
// rank 0's report.
func runInProcess(ctx context.Context, cfg *config.Config, img *imageArgs, log logger.Logger) (*coordinator.Report, error) {
	store := imageio.NewFileStore(img.inputPath, img.outputDir, log)

	var (
		mu   sync.Mutex
		root *coordinator.Report
	)
	err := mesh.RunLocal(ctx, cfg.Procs, func(ctx context.Context, comm *mesh.Comm) error {
		var s coordinator.Store
		if comm.IsRoot() {
			s = store
		}
		report, err := coordinator.New(comm, s, log).Run(ctx, coordinator.Job{Dims: img.dims})
		if comm.IsRoot() {
			mu.Lock()
			root = report
			mu.Unlock()
		}
		return err
	})
	return root, err
}

// runMember runs this process as one member of a multi-process group.
func runMember(ctx context.Context, cfg *config.Config, img *imageArgs, log logger.Logger) (*coordinator.Report, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.EnvRedisURL, err)
	}

	var transportOpts []mesh.RedisOption
	if cfg.PollInterval > 0 {
		transportOpts = append(transportOpts, mesh.WithPollInterval(cfg.PollInterval))
	}
	if cfg.KeyTTL > 0 {
		transportOpts = append(transportOpts, mesh.WithKeyTTL(cfg.KeyTTL))
	}
	transport, err := mesh.NewRedisTransport(opts, cfg.RunID, cfg.Rank, cfg.Size, transportOpts...)
	if err != nil {
		return nil, err
	}

	comm, err := mesh.New(cfg.Rank, cfg.Size, transport)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	defer comm.Close()

	if err := transport.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach Redis: %w", err)
	}

	var store coordinator.Store
	if comm.IsRoot() {
		store = imageio.NewFileStore(img.inputPath, img.outputDir, log)
	}
	log.Debug("Member starting",
		zap.Int("rank", cfg.Rank), zap.Int("size", cfg.Size), zap.String("run_id", cfg.RunID))
	return coordinator.New(comm, store, log).Run(ctx, coordinator.Job{Dims: img.dims})
}

func writeMetrics(path string, report *coordinator.Report) error {
	rec := metrics.NewRecorder()
	rec.ObservePhase(metrics.PhaseTotal, report.Total)
	rec.ObservePhase(metrics.PhaseIO, report.IO)
	rec.ObservePhase(metrics.PhaseComputation, report.Computation)
	rec.ObservePhase(metrics.PhaseCommunication, report.Communication)
	rec.SetRun(report.Members, report.Dims.Bytes())
	rec.AddOutputs(len(report.Saved))
	return rec.WriteFile(path)
}
