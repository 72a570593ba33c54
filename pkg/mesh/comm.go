package mesh

import (
	"context"
	"fmt"
)

// Comm is one member's handle on the group. It is not safe for concurrent use:
// collectives are numbered in call order and every member must issue them in
// the same order.
type Comm struct {
	rank      int
	size      int
	transport Transport
	seq       int
}

// New creates a Comm for rank in a group of size members.
func New(rank, size int, transport Transport) (*Comm, error) {
	if size < 1 {
		return nil, fmt.Errorf("group size must be >= 1, got %d", size)
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: %d (group size %d)", ErrInvalidRank, rank, size)
	}
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	return &Comm{rank: rank, size: size, transport: transport}, nil
}

// Rank returns this member's rank.
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of members in the group.
func (c *Comm) Size() int { return c.size }

// IsRoot reports whether this member is rank 0.
func (c *Comm) IsRoot() bool { return c.rank == 0 }

// Close closes the underlying transport.
func (c *Comm) Close() error { return c.transport.Close() }

// Abort fails the whole group with cause.
func (c *Comm) Abort(ctx context.Context, cause error) error {
	reason := "aborted"
	if cause != nil {
		reason = cause.Error()
	}
	return c.transport.Abort(ctx, fmt.Sprintf("rank %d: %s", c.rank, reason))
}

func (c *Comm) checkPeer(peer int) error {
	if peer < 0 || peer >= c.size {
		return fmt.Errorf("%w: %d (group size %d)", ErrInvalidRank, peer, c.size)
	}
	return nil
}

// nextTag returns a group-unique tag for the next collective.
func (c *Comm) nextTag(op string) string {
	c.seq++
	return fmt.Sprintf("%s.%d", op, c.seq)
}

// Send delivers buf to rank `to` under tag.
func (c *Comm) Send(ctx context.Context, to int, tag string, buf []byte) error {
	if err := c.checkPeer(to); err != nil {
		return err
	}
	if err := c.transport.Send(ctx, to, tag, buf); err != nil {
		return fmt.Errorf("send to rank %d (%s): %w", to, tag, err)
	}
	return nil
}

// Recv receives exactly len(buf) bytes from rank `from` under tag into buf.
func (c *Comm) Recv(ctx context.Context, from int, tag string, buf []byte) error {
	if err := c.checkPeer(from); err != nil {
		return err
	}
	payload, err := c.transport.Recv(ctx, from, tag)
	if err != nil {
		return fmt.Errorf("recv from rank %d (%s): %w", from, tag, err)
	}
	if len(payload) != len(buf) {
		return fmt.Errorf("recv from rank %d (%s): %w: got %d bytes, want %d",
			from, tag, ErrSizeMismatch, len(payload), len(buf))
	}
	copy(buf, payload)
	return nil
}

// Sendrecv sends send to peer and receives len(recv) bytes from peer, both
// under tag. Sends never block on the receiver, so two members calling
// Sendrecv on each other cannot deadlock.
func (c *Comm) Sendrecv(ctx context.Context, peer int, tag string, send, recv []byte) error {
	if err := c.Send(ctx, peer, tag, send); err != nil {
		return err
	}
	return c.Recv(ctx, peer, tag, recv)
}

// Barrier blocks until every member of the group has called Barrier.
func (c *Comm) Barrier(ctx context.Context) error {
	arrive := c.nextTag("barrier.arrive")
	release := c.nextTag("barrier.release")

	if c.size == 1 {
		return nil
	}

	if !c.IsRoot() {
		if err := c.Send(ctx, 0, arrive, nil); err != nil {
			return err
		}
		return c.Recv(ctx, 0, release, nil)
	}

	for r := 1; r < c.size; r++ {
		if err := c.Recv(ctx, r, arrive, nil); err != nil {
			return err
		}
	}
	for r := 1; r < c.size; r++ {
		if err := c.Send(ctx, r, release, nil); err != nil {
			return err
		}
	}
	return nil
}

// Bcast copies root's buf into buf on every other member. All members must
// pass a buffer of the same length.
func (c *Comm) Bcast(ctx context.Context, root int, buf []byte) error {
	if err := c.checkPeer(root); err != nil {
		return err
	}
	tag := c.nextTag("bcast")

	if c.rank == root {
		for r := 0; r < c.size; r++ {
			if r == root {
				continue
			}
			if err := c.Send(ctx, r, tag, buf); err != nil {
				return err
			}
		}
	} else if err := c.Recv(ctx, root, tag, buf); err != nil {
		return err
	}

	return c.Barrier(ctx)
}

// Scatterv distributes sendbuf[displs[r]:displs[r]+counts[r]] from root into
// recvbuf on each rank r. counts and displs are only read on root and must
// have one entry per rank; recvbuf must hold exactly the member's count.
// Members with a zero count exchange nothing.
func (c *Comm) Scatterv(ctx context.Context, root int, sendbuf []byte, counts, displs []int, recvbuf []byte) error {
	if err := c.checkPeer(root); err != nil {
		return err
	}
	tag := c.nextTag("scatterv")

	if c.rank == root {
		if err := c.checkLayout(len(sendbuf), counts, displs); err != nil {
			return err
		}
		for r := 0; r < c.size; r++ {
			chunk := sendbuf[displs[r] : displs[r]+counts[r]]
			if r == root {
				if len(recvbuf) != len(chunk) {
					return fmt.Errorf("scatterv: %w: root receive buffer has %d bytes, want %d",
						ErrSizeMismatch, len(recvbuf), len(chunk))
				}
				copy(recvbuf, chunk)
				continue
			}
			if counts[r] == 0 {
				continue
			}
			if err := c.Send(ctx, r, tag, chunk); err != nil {
				return err
			}
		}
	} else if len(recvbuf) > 0 {
		if err := c.Recv(ctx, root, tag, recvbuf); err != nil {
			return err
		}
	}

	return c.Barrier(ctx)
}

// Gatherv is the inverse of Scatterv: each rank's sendbuf lands in
// recvbuf[displs[r]:displs[r]+counts[r]] on root.
func (c *Comm) Gatherv(ctx context.Context, root int, sendbuf, recvbuf []byte, counts, displs []int) error {
	if err := c.checkPeer(root); err != nil {
		return err
	}
	tag := c.nextTag("gatherv")

	if c.rank == root {
		if err := c.checkLayout(len(recvbuf), counts, displs); err != nil {
			return err
		}
		for r := 0; r < c.size; r++ {
			dst := recvbuf[displs[r] : displs[r]+counts[r]]
			if r == root {
				if len(sendbuf) != len(dst) {
					return fmt.Errorf("gatherv: %w: root send buffer has %d bytes, want %d",
						ErrSizeMismatch, len(sendbuf), len(dst))
				}
				copy(dst, sendbuf)
				continue
			}
			if counts[r] == 0 {
				continue
			}
			if err := c.Recv(ctx, r, tag, dst); err != nil {
				return err
			}
		}
	} else if len(sendbuf) > 0 {
		if err := c.Send(ctx, root, tag, sendbuf); err != nil {
			return err
		}
	}

	return c.Barrier(ctx)
}

// BcastInts broadcasts a fixed-length list of integers from root.
func (c *Comm) BcastInts(ctx context.Context, root int, vals []int) error {
	buf := EncodeInts(vals)
	if err := c.Bcast(ctx, root, buf); err != nil {
		return err
	}
	decoded, err := DecodeInts(buf)
	if err != nil {
		return err
	}
	copy(vals, decoded)
	return nil
}

func (c *Comm) checkLayout(bufLen int, counts, displs []int) error {
	if len(counts) != c.size || len(displs) != c.size {
		return fmt.Errorf("%w: layout has %d counts and %d displacements for %d ranks",
			ErrSizeMismatch, len(counts), len(displs), c.size)
	}
	for r := range counts {
		if counts[r] < 0 || displs[r] < 0 || displs[r]+counts[r] > bufLen {
			return fmt.Errorf("%w: rank %d chunk [%d,%d) outside %d-byte buffer",
				ErrSizeMismatch, r, displs[r], displs[r]+counts[r], bufLen)
		}
	}
	return nil
}
