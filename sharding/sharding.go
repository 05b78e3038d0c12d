// Package sharding splits an ordered task list across cooperating worker
// processes. Every worker runs the same selection against the same list, so
// determinism here is what keeps the workers disjoint.
package sharding

import (
	"github.com/pkg/errors"
)

// TaskList returns the subset of allTasks owned by workerID, using
// round-robin assignment: task j belongs to worker j % nWorkers. Shards are
// pairwise disjoint, cover the full list, and preserve the input order.
func TaskList(allTasks []int, nWorkers, workerID int) ([]int, error) {
	if nWorkers <= 0 {
		return nil, errors.Errorf("worker count must be positive, got %d", nWorkers)
	}
	if workerID < 0 || workerID >= nWorkers {
		return nil, errors.Errorf("worker id %d out of range [0, %d)", workerID, nWorkers)
	}
	shard := []int{}
	for j := workerID; j < len(allTasks); j += nWorkers {
		shard = append(shard, allTasks[j])
	}
	return shard, nil
}
