// Package coordinator runs one distributed edge-detection pass on a member of
// a process group.
//
// Every member calls Run with its own Comm. Rank 0 owns the input and output
// files; the others only ever see their own row block. The phases run in a
// fixed order (load, broadcast dims, scatter, halo exchange, compute, gather,
// save) and every collective step is a barrier for the whole group.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/halo/internal/decompose"
	"github.com/dyluth/halo/internal/halo"
	"github.com/dyluth/halo/internal/imageio"
	"github.com/dyluth/halo/internal/kernel"
	"github.com/dyluth/halo/internal/logger"
	"github.com/dyluth/halo/pkg/mesh"
	"github.com/dyluth/halo/pkg/raster"
)

// Store is where rank 0 reads the input and writes the results.
// imageio.FileStore is the production implementation.
type Store interface {
	Load(dims raster.Dims) (*raster.Raster, error)
	Save(outputs []imageio.Output) ([]imageio.Saved, error)
}

// Job describes one run.
type Job struct {
	// Dims are the expected input dimensions. Only rank 0's value is used;
	// every other member adopts the broadcast from rank 0.
	Dims raster.Dims
}

// Report is the outcome of a run. Timings are only measured on rank 0 and are
// zero elsewhere.
type Report struct {
	Rank    int
	Members int
	Dims    raster.Dims
	Block   raster.RowBlock
	Saved   []imageio.Saved

	IO            time.Duration
	Communication time.Duration
	Computation   time.Duration
	Total         time.Duration
}

// Coordinator drives the phases of a run for one member.
type Coordinator struct {
	comm   *mesh.Comm
	store  Store
	logger logger.Logger
	now    func() time.Time
}

// New creates a Coordinator. store is only used on rank 0 and may be nil
// elsewhere. A nil log discards messages.
func New(comm *mesh.Comm, store Store, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Coordinator{
		comm:   comm,
		store:  store,
		logger: log.With(zap.Int("rank", comm.Rank())),
		now:    time.Now,
	}
}

// stopwatch accumulates the time spent inside one kind of phase.
type stopwatch struct {
	now   func() time.Time
	total time.Duration
}

func (s *stopwatch) time(fn func() error) error {
	start := s.now()
	err := fn()
	s.total += s.now().Sub(start)
	return err
}

// Run executes the whole pipeline. Any failure before the results reach rank
// 0 aborts the group, so every other member returns mesh.ErrAborted. A failure
// while saving does not abort: the report is returned together with the joined
// write errors and lists the files that were written.
func (c *Coordinator) Run(ctx context.Context, job Job) (*Report, error) {
	start := c.now()
	report := &Report{Rank: c.comm.Rank(), Members: c.comm.Size()}
	ioTime := &stopwatch{now: c.now}
	commTime := &stopwatch{now: c.now}
	compTime := &stopwatch{now: c.now}

	outputs, err := c.distribute(ctx, job, report, ioTime, commTime, compTime)
	if err != nil {
		if !mesh.IsAborted(err) && !errors.Is(err, context.Canceled) {
			if abortErr := c.comm.Abort(context.WithoutCancel(ctx), err); abortErr != nil {
				c.logger.Warn("Failed to abort group", zap.Error(abortErr))
			}
		}
		return nil, err
	}

	if c.comm.IsRoot() {
		err = ioTime.time(func() error {
			saved, saveErr := c.store.Save(outputs)
			report.Saved = saved
			return saveErr
		})
		report.IO = ioTime.total
		report.Communication = commTime.total
		report.Computation = compTime.total
		report.Total = c.now().Sub(start)
		if err != nil {
			return report, fmt.Errorf("failed to save outputs: %w", err)
		}
	}

	c.logger.Debug("Run complete", zap.Duration("total", report.Total))
	return report, nil
}

func (c *Coordinator) distribute(ctx context.Context, job Job, report *Report, ioTime, commTime, compTime *stopwatch) ([]imageio.Output, error) {
	root := c.comm.IsRoot()

	// Load
	var img *raster.Raster
	if root {
		if c.store == nil {
			return nil, fmt.Errorf("rank 0 needs a store")
		}
		err := ioTime.time(func() error {
			var err error
			img, err = c.store.Load(job.Dims)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load input: %w", err)
		}
	}

	// Dimensions
	dimVals := []int{0, 0}
	if root {
		dimVals = []int{img.Width, img.Height}
	}
	if err := commTime.time(func() error { return c.comm.BcastInts(ctx, 0, dimVals) }); err != nil {
		return nil, fmt.Errorf("failed to broadcast dimensions: %w", err)
	}
	dims := raster.Dims{Width: dimVals[0], Height: dimVals[1]}
	if !root && job.Dims != (raster.Dims{}) && job.Dims != dims {
		c.logger.Warn("Local dimensions differ from rank 0, using rank 0's",
			zap.Stringer("local", job.Dims), zap.Stringer("broadcast", dims))
	}
	report.Dims = dims

	part, err := decompose.New(dims, c.comm.Size())
	if err != nil {
		return nil, err
	}
	block := part.Block(c.comm.Rank())
	report.Block = block
	c.logger.Debug("Partition computed",
		zap.Stringer("dims", dims), zap.Int("start_row", block.StartRow), zap.Int("rows", block.RowCount))

	// Scatter
	local := raster.NewLocalBuffer(dims, block)
	var sendbuf []byte
	if root {
		sendbuf = img.Pix
	}
	err = commTime.time(func() error {
		return c.comm.Scatterv(ctx, 0, sendbuf, part.Counts(), part.Displacements(), local.Interior())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scatter row blocks: %w", err)
	}

	// Halo
	if err := commTime.time(func() error { return halo.Exchange(ctx, c.comm, local, part) }); err != nil {
		return nil, err
	}

	// Compute
	var result *kernel.Result
	err = compTime.time(func() error {
		var err error
		result, err = kernel.ApplyPair(local)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply kernels: %w", err)
	}

	// Gather
	var outputs []imageio.Output
	for _, kind := range kernel.Kinds() {
		var gathered *raster.Raster
		var recvbuf []byte
		if root {
			gathered = raster.NewRaster(dims)
			recvbuf = gathered.Pix
		}
		err := commTime.time(func() error {
			return c.comm.Gatherv(ctx, 0, result.Output(kind).Data, recvbuf, part.Counts(), part.Displacements())
		})
		if err != nil {
			return nil, fmt.Errorf("failed to gather %s output: %w", kind, err)
		}
		if root {
			outputs = append(outputs, imageio.Output{Kind: kind, Image: gathered})
		}
	}
	c.logger.Debug("Outputs gathered")

	return outputs, nil
}
