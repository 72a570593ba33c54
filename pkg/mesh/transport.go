package mesh

import (
	"context"
	"errors"
)

var (
	// ErrAborted is returned by every operation once any member aborted the group.
	ErrAborted = errors.New("process group aborted")

	// ErrSizeMismatch is returned when a received payload differs from the expected size.
	ErrSizeMismatch = errors.New("message size mismatch")

	// ErrInvalidRank is returned when a peer rank is outside the group.
	ErrInvalidRank = errors.New("invalid rank")
)

// IsAborted reports whether err was caused by a group abort.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// Transport moves opaque payloads between ranks of one group.
// Implementations must not block Send on the receiver.
type Transport interface {
	// Send delivers payload to rank `to` under tag. The payload is copied.
	Send(ctx context.Context, to int, tag string, payload []byte) error

	// Recv blocks until a payload from rank `from` under tag arrives,
	// the group is aborted, or ctx is done.
	Recv(ctx context.Context, from int, tag string) ([]byte, error)

	// Abort fails the whole group. Safe to call more than once.
	Abort(ctx context.Context, reason string) error

	// Close releases transport resources. Implements io.Closer.
	Close() error
}
