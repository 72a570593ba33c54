// Package imageio reads input rasters and writes the per-kernel results.
//
// Files are raw interleaved RGB with no header: Width*Height*3 bytes, rows
// top to bottom.
package imageio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dyluth/halo/internal/kernel"
	"github.com/dyluth/halo/internal/logger"
	"github.com/dyluth/halo/pkg/raster"
)

// ErrTruncated is returned when the input holds fewer than Width*Height*3 bytes.
var ErrTruncated = errors.New("corrupt or truncated input")

// Read reads exactly dims.Bytes() bytes from r.
func Read(r io.Reader, dims raster.Dims) (*raster.Raster, error) {
	if err := dims.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dimensions: %w", err)
	}

	img := raster.NewRaster(dims)
	n, err := io.ReadFull(r, img.Pix)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read %d of %d bytes for %s", ErrTruncated, n, dims.Bytes(), dims)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return img, nil
}

// ReadFile opens path and reads a raster of dims from it. Bytes past
// dims.Bytes() are ignored.
func ReadFile(path string, dims raster.Dims) (*raster.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	if err := dims.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid dimensions: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat input file: %w", err)
	}
	// Regular files shorter than the image are rejected before allocating.
	if info.Mode().IsRegular() && info.Size() < int64(dims.Bytes()) {
		return nil, fmt.Errorf("%s: %w: file has %d of %d bytes for %s",
			path, ErrTruncated, info.Size(), dims.Bytes(), dims)
	}

	img, err := Read(f, dims)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// OutputPath returns the file kind's result is written to inside dir.
func OutputPath(dir string, kind kernel.Kind) string {
	return filepath.Join(dir, kind.String()+"_output.bin")
}

// WriteFile writes img to path, replacing any existing file.
func WriteFile(path string, img *raster.Raster) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if err := os.WriteFile(path, img.Pix, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Output is one kernel's gathered raster.
type Output struct {
	Kind  kernel.Kind
	Image *raster.Raster
}

// Saved records an output that reached disk.
type Saved struct {
	Kind kernel.Kind
	Path string
}

// FileStore loads the input from InputPath and saves results into OutputDir.
// OutputDir must already exist.
type FileStore struct {
	InputPath string
	OutputDir string
	Logger    logger.Logger
}

// NewFileStore creates a FileStore. A nil log discards messages.
func NewFileStore(inputPath, outputDir string, log logger.Logger) *FileStore {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &FileStore{InputPath: inputPath, OutputDir: outputDir, Logger: log}
}

// Load reads the input raster.
func (s *FileStore) Load(dims raster.Dims) (*raster.Raster, error) {
	img, err := ReadFile(s.InputPath, dims)
	if err != nil {
		return nil, err
	}
	s.Logger.Debug("Loaded input", zap.String("path", s.InputPath), zap.Stringer("dims", dims))
	return img, nil
}

// Save writes every output in order. A failing file is logged and the rest
// are still attempted; the returned error joins all failures and the returned
// list holds the files that were written.
func (s *FileStore) Save(outputs []Output) ([]Saved, error) {
	var (
		saved []Saved
		errs  []error
	)
	for _, out := range outputs {
		path := OutputPath(s.OutputDir, out.Kind)
		if err := WriteFile(path, out.Image); err != nil {
			s.Logger.Error("Failed to save output",
				zap.Stringer("kernel", out.Kind), zap.String("path", path), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s output: %w", out.Kind, err))
			continue
		}
		s.Logger.Debug("Saved output", zap.Stringer("kernel", out.Kind), zap.String("path", path))
		saved = append(saved, Saved{Kind: out.Kind, Path: path})
	}
	return saved, errors.Join(errs...)
}
