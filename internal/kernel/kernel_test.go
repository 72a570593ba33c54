package kernel

import (
	"math/rand/v2"
	"testing"

	"github.com/dyluth/halo/pkg/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grayImage builds a raster whose every channel equals intensity(x, y).
func grayImage(width, height int, intensity func(x, y int) byte) *raster.Raster {
	img := raster.NewRaster(raster.Dims{Width: width, Height: height})
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := intensity(x, y)
			img.SetPixel(x, y, v, v, v)
		}
	}
	return img
}

func randomImage(width, height int, seed uint64) *raster.Raster {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := raster.NewRaster(raster.Dims{Width: width, Height: height})
	for i := range img.Pix {
		img.Pix[i] = byte(rng.UintN(256))
	}
	return img
}

func TestClamp(t *testing.T) {
	assert.Equal(t, byte(255), clamp(400))
	assert.Equal(t, byte(40), clamp(-40))
	assert.Equal(t, byte(255), clamp(-1020))
	assert.Equal(t, byte(255), clamp(255))
	assert.Equal(t, byte(0), clamp(0))
}

func TestApply_ClampingNeighbourhood(t *testing.T) {
	t.Run("sumX of 400 saturates red", func(t *testing.T) {
		// Right column intensity 100: sumX = 100*(1+2+1) = 400.
		img := grayImage(3, 3, func(x, _ int) byte {
			if x == 2 {
				return 100
			}
			return 0
		})
		out, err := ApplyImage(img, Sobel)
		require.NoError(t, err)

		red, green, blue := out.Pixel(1, 1)
		assert.Equal(t, byte(255), red)
		assert.Equal(t, byte(0), green)
		assert.Equal(t, byte(0), blue)
	})

	t.Run("sumX of -40 takes the absolute value", func(t *testing.T) {
		// Left column intensity 10: sumX = -10*(1+2+1) = -40.
		img := grayImage(3, 3, func(x, _ int) byte {
			if x == 0 {
				return 10
			}
			return 0
		})
		out, err := ApplyImage(img, Sobel)
		require.NoError(t, err)

		red, _, blue := out.Pixel(1, 1)
		assert.Equal(t, byte(40), red)
		assert.Equal(t, byte(0), blue)
	})
}

func TestApply_IntensityTruncates(t *testing.T) {
	// (1+1+0)/3 == 0, so a column of (1,1,0) pixels produces no gradient.
	img := raster.NewRaster(raster.Dims{Width: 3, Height: 3})
	for y := 0; y < 3; y++ {
		img.SetPixel(2, y, 1, 1, 0)
	}
	out, err := ApplyImage(img, Sobel)
	require.NoError(t, err)

	red, _, _ := out.Pixel(1, 1)
	assert.Equal(t, byte(0), red)
}

func TestApply_FlatField(t *testing.T) {
	img := raster.NewRaster(raster.Dims{Width: 6, Height: 6})
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			img.SetPixel(x, y, 200, 17, 90)
		}
	}

	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			out, err := ApplyImage(img, kind)
			require.NoError(t, err)
			assert.Equal(t, make([]byte, img.Bytes()), out.Pix)
		})
	}
}

func TestApply_VerticalEdgeScenario(t *testing.T) {
	img := grayImage(5, 5, func(x, _ int) byte {
		if x >= 2 {
			return 255
		}
		return 0
	})

	out, err := ApplyImage(img, Sobel)
	require.NoError(t, err)
	require.Len(t, out.Pix, 75)

	for y := 1; y <= 3; y++ {
		for _, x := range []int{1, 2} {
			red, green, blue := out.Pixel(x, y)
			assert.Equal(t, byte(255), red, "pixel (%d,%d)", x, y)
			assert.Equal(t, byte(0), green)
			assert.Equal(t, byte(0), blue, "pixel (%d,%d)", x, y)
		}
		red, _, _ := out.Pixel(3, y)
		assert.Equal(t, byte(0), red, "column 3 only sees 255s")
	}
}

func TestApply_BorderPolicy(t *testing.T) {
	img := randomImage(9, 7, 42)

	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			out, err := ApplyImage(img, kind)
			require.NoError(t, err)

			for x := 0; x < img.Width; x++ {
				assertZeroPixel(t, out, x, 0)
				assertZeroPixel(t, out, x, img.Height-1)
			}
			for y := 0; y < img.Height; y++ {
				assertZeroPixel(t, out, 0, y)
				assertZeroPixel(t, out, img.Width-1, y)
			}
			for y := 0; y < img.Height; y++ {
				for x := 0; x < img.Width; x++ {
					_, green, _ := out.Pixel(x, y)
					assert.Equal(t, byte(0), green)
				}
			}
		})
	}
}

func assertZeroPixel(t *testing.T, img *raster.Raster, x, y int) {
	t.Helper()
	red, green, blue := img.Pixel(x, y)
	assert.Equal(t, [3]byte{}, [3]byte{red, green, blue}, "border pixel (%d,%d)", x, y)
}

func TestApply_NarrowImages(t *testing.T) {
	for _, dims := range []raster.Dims{{Width: 1, Height: 1}, {Width: 2, Height: 5}, {Width: 5, Height: 2}} {
		img := randomImage(dims.Width, dims.Height, 7)
		out, err := ApplyImage(img, Prewitt)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, dims.Bytes()), out.Pix, "%s has no interior pixels", dims)
	}
}

func TestApply_SobelAndPrewittDiffer(t *testing.T) {
	// A single bright pixel left of centre weighs 2 in Sobel and 1 in Prewitt.
	img := grayImage(3, 3, func(x, y int) byte {
		if x == 0 && y == 1 {
			return 60
		}
		return 0
	})

	sobel, err := ApplyImage(img, Sobel)
	require.NoError(t, err)
	prewitt, err := ApplyImage(img, Prewitt)
	require.NoError(t, err)

	sRed, _, _ := sobel.Pixel(1, 1)
	pRed, _, _ := prewitt.Pixel(1, 1)
	assert.Equal(t, byte(120), sRed)
	assert.Equal(t, byte(60), pRed)
}

func TestApply_VerticalGradientSign(t *testing.T) {
	// Brightness increasing downwards gives a positive Gy for both kernels;
	// the encoded blue channel is the same as for the mirrored image.
	down := grayImage(3, 3, func(_, y int) byte { return byte(y * 20) })
	up := grayImage(3, 3, func(_, y int) byte { return byte((2 - y) * 20) })

	for _, kind := range Kinds() {
		def, err := DefinitionFor(kind)
		require.NoError(t, err)
		assert.Negative(t, def.Gy[0][1])
		assert.Positive(t, def.Gy[2][1])

		a, err := ApplyImage(down, kind)
		require.NoError(t, err)
		b, err := ApplyImage(up, kind)
		require.NoError(t, err)
		assert.Equal(t, a.Pix, b.Pix)
	}
}

func TestApply_SizeMismatch(t *testing.T) {
	dims := raster.Dims{Width: 4, Height: 4}
	block := raster.RowBlock{RowCount: 4, ByteLength: dims.Bytes()}
	src := raster.NewLocalBuffer(dims, block)
	def, err := DefinitionFor(Sobel)
	require.NoError(t, err)

	t.Run("block differs", func(t *testing.T) {
		other := block
		other.RowCount = 3
		err := Apply(raster.NewOutputBuffer(dims, other), src, def)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("short output", func(t *testing.T) {
		dst := raster.NewOutputBuffer(dims, block)
		dst.Data = dst.Data[:10]
		err := Apply(dst, src, def)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("short input", func(t *testing.T) {
		short := *src
		short.Data = short.Data[:len(short.Data)-1]
		err := Apply(raster.NewOutputBuffer(dims, block), &short, def)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})
}

func TestApplyPair_MatchesSingleKernels(t *testing.T) {
	img := randomImage(11, 8, 3)
	block := raster.RowBlock{RowCount: img.Height, ByteLength: img.Bytes()}
	local := raster.NewLocalBuffer(img.Dims, block)
	copy(local.Interior(), img.Pix)

	res, err := ApplyPair(local)
	require.NoError(t, err)

	for _, kind := range Kinds() {
		want, err := ApplyImage(img, kind)
		require.NoError(t, err)
		assert.Equal(t, want.Pix, res.Output(kind).Data, kind.String())
	}
	assert.NotSame(t, &res.Sobel.Data[0], &res.Prewitt.Data[0], "outputs must not alias")
}

func TestKindNames(t *testing.T) {
	assert.Equal(t, "sobel", Sobel.String())
	assert.Equal(t, "Prewitt", Prewitt.DisplayName())

	assert.Equal(t, "kind(9)", Kind(9).String())
	_, err := DefinitionFor(Kind(9))
	assert.Error(t, err)
}
