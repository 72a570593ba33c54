package kernel

import (
	"fmt"

	"github.com/dyluth/halo/pkg/raster"
	"golang.org/x/sync/errgroup"
)

// Result holds one OutputBuffer per kernel, computed from the same LocalBuffer.
type Result struct {
	Sobel   *raster.OutputBuffer
	Prewitt *raster.OutputBuffer
}

// Output returns the buffer for kind.
func (r *Result) Output(kind Kind) *raster.OutputBuffer {
	switch kind {
	case Sobel:
		return r.Sobel
	case Prewitt:
		return r.Prewitt
	default:
		return nil
	}
}

// ApplyPair runs Sobel and Prewitt over src on two goroutines. Both read the
// same LocalBuffer and write to their own OutputBuffer, so no locking is needed.
func ApplyPair(src *raster.LocalBuffer) (*Result, error) {
	res := &Result{
		Sobel:   raster.NewOutputBuffer(src.Dims, src.Block),
		Prewitt: raster.NewOutputBuffer(src.Dims, src.Block),
	}

	var g errgroup.Group
	for _, kind := range Kinds() {
		def, err := DefinitionFor(kind)
		if err != nil {
			return nil, err
		}
		dst := res.Output(kind)
		g.Go(func() error {
			if err := Apply(dst, src, def); err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// ApplyImage applies kind to a whole raster as a single block.
func ApplyImage(img *raster.Raster, kind Kind) (*raster.Raster, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	def, err := DefinitionFor(kind)
	if err != nil {
		return nil, err
	}

	block := raster.RowBlock{StartRow: 0, RowCount: img.Height, ByteOffset: 0, ByteLength: img.Bytes()}
	local := raster.NewLocalBuffer(img.Dims, block)
	copy(local.Interior(), img.Pix)

	out := raster.NewOutputBuffer(img.Dims, block)
	if err := Apply(out, local, def); err != nil {
		return nil, err
	}
	return &raster.Raster{Dims: img.Dims, Pix: out.Data}, nil
}
