// Package decompose splits an image into per-member row blocks.
package decompose

import (
	"fmt"

	"github.com/dyluth/halo/pkg/raster"
)

// Partition is the row-block layout of one run. Blocks[i] belongs to rank i.
type Partition struct {
	Dims   raster.Dims
	Blocks []raster.RowBlock
}

// New computes the row-block partition of dims over processCount members.
// Rank i receives Height/processCount rows plus one of the Height%processCount
// remainder rows when i is below the remainder. Members beyond the last image
// row (Height < processCount) receive an empty block positioned at the end of
// the buffer.
func New(dims raster.Dims, processCount int) (*Partition, error) {
	if err := dims.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dimensions: %w", err)
	}
	if processCount < 1 {
		return nil, fmt.Errorf("process count must be >= 1, got %d", processCount)
	}

	rowsPerProcess := dims.Height / processCount
	remainder := dims.Height % processCount
	rowBytes := dims.RowBytes()

	blocks := make([]raster.RowBlock, processCount)
	startRow, offset := 0, 0
	for i := range blocks {
		count := rowsPerProcess
		if i < remainder {
			count++
		}
		blocks[i] = raster.RowBlock{
			Rank:       i,
			StartRow:   startRow,
			RowCount:   count,
			ByteOffset: offset,
			ByteLength: count * rowBytes,
		}
		startRow += count
		offset += count * rowBytes
	}

	return &Partition{Dims: dims, Blocks: blocks}, nil
}

// Size returns the number of members in the partition.
func (p *Partition) Size() int {
	return len(p.Blocks)
}

// Block returns the block owned by rank.
func (p *Partition) Block(rank int) raster.RowBlock {
	return p.Blocks[rank]
}

// Counts returns the byte length of every block, indexed by rank.
func (p *Partition) Counts() []int {
	counts := make([]int, len(p.Blocks))
	for i, b := range p.Blocks {
		counts[i] = b.ByteLength
	}
	return counts
}

// Displacements returns the byte offset of every block, indexed by rank.
func (p *Partition) Displacements() []int {
	displs := make([]int, len(p.Blocks))
	for i, b := range p.Blocks {
		displs[i] = b.ByteOffset
	}
	return displs
}

// Active reports whether rank owns at least one row.
func (p *Partition) Active(rank int) bool {
	return rank >= 0 && rank < len(p.Blocks) && !p.Blocks[rank].Empty()
}

// HasUpper reports whether rank exchanges a halo with rank-1.
func (p *Partition) HasUpper(rank int) bool {
	return p.Active(rank) && p.Active(rank-1)
}

// HasLower reports whether rank exchanges a halo with rank+1.
func (p *Partition) HasLower(rank int) bool {
	return p.Active(rank) && p.Active(rank+1)
}
