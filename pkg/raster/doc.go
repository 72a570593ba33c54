// Package raster defines the byte-level image types shared by every halo
// component.
//
// # Overview
//
// An image is a flat, row-major buffer of interleaved R,G,B bytes with
// dimensions fixed for a run. There is no header and no metadata: the
// dimensions travel next to the bytes, never inside them.
//
// # Buffers
//
// Raster is the full image. It exists only on the coordinating member (rank 0),
// both as the loaded input and as the two gathered results.
//
// RowBlock describes the contiguous range of rows owned by one member.
//
// LocalBuffer is a member's padded working copy of its RowBlock: one halo row
// above, the interior rows, one halo row below. Halo rows are read-only copies
// of the neighbouring member's boundary rows and are never written back.
//
// OutputBuffer holds one kernel's result for a RowBlock. Every kernel gets its
// own OutputBuffer so results cannot alias.
//
// # Layout
//
//	LocalBuffer row 0             halo-top    (zero at the top of the image)
//	LocalBuffer rows 1..RowCount  interior    (scattered from rank 0)
//	LocalBuffer row RowCount+1    halo-bottom (zero at the bottom of the image)
package raster
