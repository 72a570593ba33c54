// Package kernel implements the 3x3 gradient stencils (Sobel, Prewitt) applied
// to padded row blocks.
//
// The engine is pure: it reads a LocalBuffer and fills an OutputBuffer, with no
// knowledge of how the rows arrived. For every computed pixel the neighbourhood
// intensity is (R+G+B)/3 with truncating division, the horizontal and vertical
// responses are accumulated with the kernel's weights, and the result is encoded
// as red = min(|sumX|, 255), green = 0, blue = min(|sumY|, 255).
//
// Pixels on the image border (global row 0 and Height-1, column 0 and Width-1)
// are never computed and stay zero.
package kernel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/halo/pkg/raster"
)

// ErrSizeMismatch is returned when a buffer does not match its block.
var ErrSizeMismatch = errors.New("buffer size mismatch")

// Kind selects a kernel definition.
type Kind int

const (
	// Sobel weights the centre row/column twice.
	Sobel Kind = iota + 1

	// Prewitt weights every row/column equally.
	Prewitt
)

// Kinds lists every supported kernel in output order.
func Kinds() []Kind {
	return []Kind{Sobel, Prewitt}
}

// String returns the lowercase kernel name used in file names and logs.
func (k Kind) String() string {
	switch k {
	case Sobel:
		return "sobel"
	case Prewitt:
		return "prewitt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DisplayName returns the capitalised kernel name used in user-facing output.
func (k Kind) DisplayName() string {
	name := k.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// Matrix is a 3x3 weight matrix indexed [row offset+1][column offset+1].
type Matrix [3][3]int

// Definition is the pair of weight matrices of one kernel.
// Gy is positive when intensity increases downwards (top row negative, bottom
// row positive) for every kind.
type Definition struct {
	Kind Kind
	Gx   Matrix
	Gy   Matrix
}

var definitions = map[Kind]Definition{
	Sobel: {
		Kind: Sobel,
		Gx:   Matrix{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}},
		Gy:   Matrix{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}},
	},
	Prewitt: {
		Kind: Prewitt,
		Gx:   Matrix{{-1, 0, 1}, {-1, 0, 1}, {-1, 0, 1}},
		Gy:   Matrix{{-1, -1, -1}, {0, 0, 0}, {1, 1, 1}},
	},
}

// DefinitionFor returns the weights of kind.
func DefinitionFor(kind Kind) (Definition, error) {
	def, ok := definitions[kind]
	if !ok {
		return Definition{}, fmt.Errorf("no definition for %s", kind)
	}
	return def, nil
}

// Apply computes def over src's interior rows and writes the result into dst.
// dst is cleared first, so border pixels are zero on return.
func Apply(dst *raster.OutputBuffer, src *raster.LocalBuffer, def Definition) error {
	if err := checkBuffers(dst, src); err != nil {
		return err
	}
	clear(dst.Data)

	width, height := src.Dims.Width, src.Dims.Height
	pix := src.Data

	for y := 1; y <= src.Block.RowCount; y++ {
		global := src.Block.StartRow + y - 1
		if global == 0 || global == height-1 {
			continue
		}

		for x := 1; x < width-1; x++ {
			sumX, sumY := 0, 0
			for i := -1; i <= 1; i++ {
				rowBase := (y + i) * width
				for j := -1; j <= 1; j++ {
					idx := (rowBase + x + j) * raster.PixelSize
					intensity := (int(pix[idx]) + int(pix[idx+1]) + int(pix[idx+2])) / 3
					sumX += intensity * def.Gx[i+1][j+1]
					sumY += intensity * def.Gy[i+1][j+1]
				}
			}

			out := ((y-1)*width + x) * raster.PixelSize
			dst.Data[out] = clamp(sumX)
			dst.Data[out+1] = 0
			dst.Data[out+2] = clamp(sumY)
		}
	}

	return nil
}

func checkBuffers(dst *raster.OutputBuffer, src *raster.LocalBuffer) error {
	if dst.Dims != src.Dims || dst.Block != src.Block {
		return fmt.Errorf("%w: output covers rows [%d,%d) of %s, input covers rows [%d,%d) of %s",
			ErrSizeMismatch, dst.Block.StartRow, dst.Block.EndRow(), dst.Dims,
			src.Block.StartRow, src.Block.EndRow(), src.Dims)
	}

	rowBytes := src.Dims.RowBytes()
	if want := (src.Block.RowCount + 2) * rowBytes; len(src.Data) != want {
		return fmt.Errorf("%w: local buffer has %d bytes, want %d", ErrSizeMismatch, len(src.Data), want)
	}
	if want := src.Block.RowCount * rowBytes; len(dst.Data) != want {
		return fmt.Errorf("%w: output buffer has %d bytes, want %d", ErrSizeMismatch, len(dst.Data), want)
	}
	return nil
}

// clamp encodes a gradient response as a channel byte.
func clamp(sum int) byte {
	if sum < 0 {
		sum = -sum
	}
	if sum > 255 {
		return 255
	}
	return byte(sum)
}
