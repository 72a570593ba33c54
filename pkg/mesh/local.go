package mesh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

type mailboxKey struct {
	from, to int
	tag      string
}

// localGroup is the shared state of an in-process group. Mailboxes are
// created lazily by whichever side touches them first.
type localGroup struct {
	mu        sync.Mutex
	mailboxes map[mailboxKey]chan []byte

	abortOnce   sync.Once
	aborted     chan struct{}
	abortReason string
}

func (g *localGroup) mailbox(key mailboxKey) chan []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	box, ok := g.mailboxes[key]
	if !ok {
		// Each (from, to, tag) carries one message, so a single slot means
		// Send never waits for the receiver.
		box = make(chan []byte, 1)
		g.mailboxes[key] = box
	}
	return box
}

func (g *localGroup) release(key mailboxKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.mailboxes, key)
}

func (g *localGroup) abortErr() error {
	return fmt.Errorf("%w: %s", ErrAborted, g.abortReason)
}

// LocalTransport is one member's endpoint in an in-process group.
type LocalTransport struct {
	group *localGroup
	rank  int
}

// NewLocalGroup creates size connected in-process transports, indexed by rank.
func NewLocalGroup(size int) []*LocalTransport {
	g := &localGroup{
		mailboxes: make(map[mailboxKey]chan []byte),
		aborted:   make(chan struct{}),
	}
	transports := make([]*LocalTransport, size)
	for r := range transports {
		transports[r] = &LocalTransport{group: g, rank: r}
	}
	return transports
}

// Send copies payload into the mailbox for (this rank, to, tag).
func (t *LocalTransport) Send(ctx context.Context, to int, tag string, payload []byte) error {
	msg := bytes.Clone(payload)
	if msg == nil {
		msg = []byte{}
	}
	box := t.group.mailbox(mailboxKey{from: t.rank, to: to, tag: tag})

	select {
	case <-t.group.aborted:
		return t.group.abortErr()
	case <-ctx.Done():
		return ctx.Err()
	case box <- msg:
		return nil
	}
}

// Recv waits for the payload from (from, this rank, tag).
func (t *LocalTransport) Recv(ctx context.Context, from int, tag string) ([]byte, error) {
	key := mailboxKey{from: from, to: t.rank, tag: tag}
	box := t.group.mailbox(key)

	select {
	case <-t.group.aborted:
		return nil, t.group.abortErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-box:
		t.group.release(key)
		return msg, nil
	}
}

// Abort wakes every member blocked in the group. Only the first reason is kept.
func (t *LocalTransport) Abort(_ context.Context, reason string) error {
	t.group.abortOnce.Do(func() {
		t.group.abortReason = reason
		close(t.group.aborted)
	})
	return nil
}

// Close is a no-op; the group is garbage collected with its transports.
func (t *LocalTransport) Close() error {
	return nil
}

// RunLocal runs fn once per rank on its own goroutine, each with its own Comm,
// and waits for all of them. The first failure aborts the group and is
// returned; the other members see ErrAborted or a cancelled context.
func RunLocal(ctx context.Context, size int, fn func(ctx context.Context, comm *Comm) error) error {
	if size < 1 {
		return fmt.Errorf("group size must be >= 1, got %d", size)
	}

	transports := NewLocalGroup(size)
	g, gctx := errgroup.WithContext(ctx)

	// The member that failed first is the cause; the others only report
	// that they were aborted.
	var (
		causeOnce sync.Once
		cause     error
	)

	for rank, transport := range transports {
		comm, err := New(rank, size, transport)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer comm.Close()
			if err := fn(gctx, comm); err != nil {
				if !errors.Is(err, ErrAborted) && !errors.Is(err, context.Canceled) {
					causeOnce.Do(func() { cause = err })
				}
				_ = comm.Abort(gctx, err)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if cause != nil {
		return cause
	}
	return err
}
