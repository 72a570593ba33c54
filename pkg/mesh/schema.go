package mesh

import "fmt"

// Redis key pattern helpers
//
// All Redis keys are namespaced by run id so several runs can share one
// Redis server without seeing each other's messages.
//
// Key pattern: halo:{run_id}:{entity}:...

// MessageKey returns the Redis list carrying messages from one rank to another.
// Pattern: halo:{run_id}:msg:{from}:{to}:{tag}
func MessageKey(runID string, from, to int, tag string) string {
	return fmt.Sprintf("halo:%s:msg:%d:%d:%s", runID, from, to, tag)
}

// AbortKey returns the Redis list a rank watches for a group abort.
// Pattern: halo:{run_id}:abort:{rank}
func AbortKey(runID string, rank int) string {
	return fmt.Sprintf("halo:%s:abort:%d", runID, rank)
}
