// Package mesh provides rank-addressed message passing for a fixed group of
// cooperating members running the same program (SPMD).
//
// # Overview
//
// A Comm gives one member its rank, the group size and a small set of
// operations:
//
//   - Send / Recv: point-to-point, addressed by peer rank and tag
//   - Sendrecv: a paired exchange with one peer, safe against circular waits
//   - Bcast, Scatterv, Gatherv: collectives rooted at one rank
//   - Barrier: block until every member has arrived
//   - Abort: fail the whole group
//
// Every collective ends with a Barrier, so no member leaves a collective step
// before all members have completed it.
//
// # Transports
//
// Comm is built on a Transport that moves opaque byte payloads between ranks:
//
//   - LocalTransport runs all members as goroutines of one process. Payloads
//     are copied on send, so members never share buffers.
//   - RedisTransport runs each member as its own process. Every (from, to, tag)
//     triple maps to a Redis list; Send is RPUSH and Recv is BLPOP.
//
// Sends never wait for the receiver (list push or buffered mailbox), which is
// what makes Sendrecv deadlock-free between adjacent ranks.
//
// # Redis Schema
//
// All keys are namespaced by run id so independent runs can share a server:
//
//	Messages: halo:{run_id}:msg:{from}:{to}:{tag}
//	Abort:    halo:{run_id}:abort:{rank}
//
// # Usage Example
//
//	err := mesh.RunLocal(ctx, 4, func(ctx context.Context, comm *mesh.Comm) error {
//		buf := make([]byte, 8)
//		if comm.IsRoot() {
//			copy(buf, "dims....")
//		}
//		return comm.Bcast(ctx, 0, buf)
//	})
//
// # Failure Model
//
// There are no timeouts and no retries. A failure on any member is turned into
// Abort, and every member blocked in (or later entering) Recv returns
// ErrAborted.
package mesh
