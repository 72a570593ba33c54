package decompose

import (
	"fmt"
	"testing"

	"github.com/dyluth/halo/pkg/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Coverage(t *testing.T) {
	for height := 1; height <= 40; height++ {
		for procs := 1; procs <= 12; procs++ {
			t.Run(fmt.Sprintf("H%d_P%d", height, procs), func(t *testing.T) {
				dims := raster.Dims{Width: 3, Height: height}
				p, err := New(dims, procs)
				require.NoError(t, err)
				require.Len(t, p.Blocks, procs)

				total, minRows, maxRows := 0, height, 0
				nextRow, nextOffset := 0, 0
				for i, b := range p.Blocks {
					assert.Equal(t, i, b.Rank)
					assert.Equal(t, nextRow, b.StartRow, "blocks must be contiguous")
					assert.Equal(t, nextOffset, b.ByteOffset, "offsets are running sums")
					assert.Equal(t, b.RowCount*dims.RowBytes(), b.ByteLength)

					total += b.RowCount
					minRows = min(minRows, b.RowCount)
					maxRows = max(maxRows, b.RowCount)
					nextRow += b.RowCount
					nextOffset += b.ByteLength
				}

				assert.Equal(t, height, total)
				assert.LessOrEqual(t, maxRows-minRows, 1)
				assert.Equal(t, dims.Bytes(), nextOffset)
			})
		}
	}
}

func TestNew_RemainderGoesToFirstRanks(t *testing.T) {
	p, err := New(raster.Dims{Width: 2, Height: 10}, 4)
	require.NoError(t, err)

	rows := make([]int, 0, 4)
	for _, b := range p.Blocks {
		rows = append(rows, b.RowCount)
	}
	assert.Equal(t, []int{3, 3, 2, 2}, rows)
	assert.Equal(t, []int{18, 18, 12, 12}, p.Counts())
	assert.Equal(t, []int{0, 18, 36, 48}, p.Displacements())
}

func TestNew_MoreProcessesThanRows(t *testing.T) {
	dims := raster.Dims{Width: 5, Height: 3}
	p, err := New(dims, 5)
	require.NoError(t, err)

	for rank := 0; rank < 3; rank++ {
		assert.Equal(t, 1, p.Block(rank).RowCount)
		assert.True(t, p.Active(rank))
	}
	for rank := 3; rank < 5; rank++ {
		b := p.Block(rank)
		assert.True(t, b.Empty())
		assert.Equal(t, 0, b.ByteLength)
		assert.Equal(t, dims.Bytes(), b.ByteOffset)
		assert.False(t, p.Active(rank))
	}

	assert.True(t, p.HasLower(1))
	assert.False(t, p.HasLower(2), "rank 3 owns nothing")
	assert.False(t, p.HasUpper(3))
	assert.False(t, p.HasLower(4))
}

func TestNew_Neighbours(t *testing.T) {
	p, err := New(raster.Dims{Width: 4, Height: 8}, 3)
	require.NoError(t, err)

	assert.False(t, p.HasUpper(0))
	assert.True(t, p.HasLower(0))
	assert.True(t, p.HasUpper(1))
	assert.True(t, p.HasLower(1))
	assert.True(t, p.HasUpper(2))
	assert.False(t, p.HasLower(2))
	assert.Equal(t, 3, p.Size())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(raster.Dims{Width: 4, Height: 4}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process count must be >= 1")

	_, err = New(raster.Dims{Width: 0, Height: 4}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dimensions")
}
