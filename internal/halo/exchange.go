// Package halo fills the halo rows of a member's LocalBuffer from its row
// neighbours.
package halo

import (
	"context"
	"fmt"

	"github.com/dyluth/halo/internal/decompose"
	"github.com/dyluth/halo/pkg/mesh"
	"github.com/dyluth/halo/pkg/raster"
)

// Tag is the message tag used for halo rows. The (from, to) pair already
// tells the two directions apart.
const Tag = "halo"

// Exchange zero-fills both halo rows of local and then swaps boundary rows
// with the upper and lower neighbours that own at least one row. Rank i sends
// its first interior row to i-1 and receives i-1's last interior row into its
// halo-top; the lower side is symmetric. Members with no rows do nothing.
//
// Every active member must call Exchange exactly once per run.
func Exchange(ctx context.Context, comm *mesh.Comm, local *raster.LocalBuffer, part *decompose.Partition) error {
	rank := comm.Rank()
	if part.Size() != comm.Size() {
		return fmt.Errorf("partition has %d blocks for a group of %d", part.Size(), comm.Size())
	}
	if local.Block != part.Block(rank) {
		return fmt.Errorf("local buffer covers %+v, rank %d owns %+v", local.Block, rank, part.Block(rank))
	}

	local.ZeroHalos()
	if !part.Active(rank) {
		return nil
	}

	if part.HasUpper(rank) {
		if err := comm.Sendrecv(ctx, rank-1, Tag, local.FirstInterior(), local.HaloTop()); err != nil {
			return fmt.Errorf("halo exchange with upper neighbour: %w", err)
		}
	}
	if part.HasLower(rank) {
		if err := comm.Sendrecv(ctx, rank+1, Tag, local.LastInterior(), local.HaloBottom()); err != nil {
			return fmt.Errorf("halo exchange with lower neighbour: %w", err)
		}
	}
	return nil
}
