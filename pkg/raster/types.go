package raster

import (
	"fmt"
	"math"
)

// PixelSize is the number of bytes per pixel (R, G, B).
const PixelSize = 3

// Dims holds the image dimensions agreed by every member of a run.
type Dims struct {
	Width  int `json:"width"`  // Pixels per row
	Height int `json:"height"` // Number of rows
}

// Validate checks that both dimensions are positive and that Bytes() fits
// in an int.
func (d Dims) Validate() error {
	if d.Width < 1 {
		return fmt.Errorf("width must be >= 1, got %d", d.Width)
	}
	if d.Height < 1 {
		return fmt.Errorf("height must be >= 1, got %d", d.Height)
	}
	if d.Width > math.MaxInt/PixelSize/d.Height {
		return fmt.Errorf("image %s is too large", d)
	}
	return nil
}

// RowBytes returns the length in bytes of one image row.
func (d Dims) RowBytes() int {
	return d.Width * PixelSize
}

// Bytes returns the length in bytes of the whole image.
func (d Dims) Bytes() int {
	return d.Height * d.RowBytes()
}

// String renders the dimensions as WxH.
func (d Dims) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Raster is a full-size image buffer.
type Raster struct {
	Dims
	Pix []byte
}

// NewRaster allocates a zeroed raster.
func NewRaster(d Dims) *Raster {
	return &Raster{Dims: d, Pix: make([]byte, d.Bytes())}
}

// Validate checks the dimensions and that Pix has exactly Bytes() bytes.
func (r *Raster) Validate() error {
	if err := r.Dims.Validate(); err != nil {
		return err
	}
	if len(r.Pix) != r.Bytes() {
		return fmt.Errorf("raster %s must hold %d bytes, got %d", r.Dims, r.Bytes(), len(r.Pix))
	}
	return nil
}

// Pixel returns the R, G, B bytes at (x, y).
func (r *Raster) Pixel(x, y int) (byte, byte, byte) {
	idx := (y*r.Width + x) * PixelSize
	return r.Pix[idx], r.Pix[idx+1], r.Pix[idx+2]
}

// SetPixel writes the R, G, B bytes at (x, y).
func (r *Raster) SetPixel(x, y int, red, green, blue byte) {
	idx := (y*r.Width + x) * PixelSize
	r.Pix[idx], r.Pix[idx+1], r.Pix[idx+2] = red, green, blue
}

// Row returns the bytes of row y. The slice aliases Pix.
func (r *Raster) Row(y int) []byte {
	n := r.RowBytes()
	return r.Pix[y*n : (y+1)*n]
}

// RowBlock is the contiguous range of rows assigned to one member.
type RowBlock struct {
	Rank       int `json:"rank"`        // Owning member
	StartRow   int `json:"start_row"`   // First global row owned
	RowCount   int `json:"row_count"`   // Rows owned (0 when the image has fewer rows than members)
	ByteOffset int `json:"byte_offset"` // Offset of StartRow in the full raster
	ByteLength int `json:"byte_length"` // RowCount * Width * 3
}

// Empty reports whether the block owns no rows.
func (b RowBlock) Empty() bool {
	return b.RowCount == 0
}

// EndRow returns the first global row past the block.
func (b RowBlock) EndRow() int {
	return b.StartRow + b.RowCount
}

// LocalBuffer is a member's padded copy of its RowBlock.
type LocalBuffer struct {
	Dims  Dims     // Full image dimensions
	Block RowBlock // Rows this buffer covers
	Data  []byte   // (RowCount+2) * Width * 3 bytes
}

// NewLocalBuffer allocates a zeroed LocalBuffer for block.
func NewLocalBuffer(d Dims, block RowBlock) *LocalBuffer {
	return &LocalBuffer{
		Dims:  d,
		Block: block,
		Data:  make([]byte, (block.RowCount+2)*d.RowBytes()),
	}
}

// Row returns padded row i, where 0 is halo-top and RowCount+1 is halo-bottom.
func (l *LocalBuffer) Row(i int) []byte {
	n := l.Dims.RowBytes()
	return l.Data[i*n : (i+1)*n]
}

// HaloTop returns the halo row above the interior.
func (l *LocalBuffer) HaloTop() []byte {
	return l.Row(0)
}

// HaloBottom returns the halo row below the interior.
func (l *LocalBuffer) HaloBottom() []byte {
	return l.Row(l.Block.RowCount + 1)
}

// Interior returns the rows owned by this member, without halos.
func (l *LocalBuffer) Interior() []byte {
	n := l.Dims.RowBytes()
	return l.Data[n : (l.Block.RowCount+1)*n]
}

// FirstInterior returns the first owned row. Callers must check Block.Empty first.
func (l *LocalBuffer) FirstInterior() []byte {
	return l.Row(1)
}

// LastInterior returns the last owned row. Callers must check Block.Empty first.
func (l *LocalBuffer) LastInterior() []byte {
	return l.Row(l.Block.RowCount)
}

// ZeroHalos clears both halo rows.
func (l *LocalBuffer) ZeroHalos() {
	clear(l.HaloTop())
	clear(l.HaloBottom())
}

// OutputBuffer holds one kernel's result for a RowBlock.
type OutputBuffer struct {
	Dims  Dims
	Block RowBlock
	Data  []byte // RowCount * Width * 3 bytes
}

// NewOutputBuffer allocates a zeroed OutputBuffer for block.
func NewOutputBuffer(d Dims, block RowBlock) *OutputBuffer {
	return &OutputBuffer{
		Dims:  d,
		Block: block,
		Data:  make([]byte, block.RowCount*d.RowBytes()),
	}
}
