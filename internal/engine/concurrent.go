package engine

import (
	"context"
	"sync"

	"github.com/nodeloom/core/internal/ids"
)

// runConcurrent dispatches dirty nodes across e.workers goroutines, ready
// nodes flowing through a channel as their dependencies complete. This
// mirrors the teacher's worker-pool executor (a ready channel seeded with
// zero-dependency nodes, each worker decrementing its dependents'
// in-degree and re-queuing any that reach zero) generalized from a fixed
// HCL-parsed dependency list to the Graph Store's live connections.
//
// Only nodes in the dirty set at call time are dispatched; a node that
// becomes dirty mid-run (e.g. because a concurrent node's output changed
// a downstream parameter) is left for the next Run call, since the
// dependency order computed up front would not account for it.
func (e *Engine) runConcurrent(ctx context.Context, order []ids.NodeID) RunSummary {
	inOrder := make(map[ids.NodeID]bool, len(order))
	for _, id := range order {
		inOrder[id] = true
	}

	toRun := make(map[ids.NodeID]bool)
	e.mu.Lock()
	for id := range e.dirty {
		if inOrder[id] {
			toRun[id] = true
		}
	}
	e.mu.Unlock()

	if len(toRun) == 0 {
		return RunSummary{}
	}

	inDegree := make(map[ids.NodeID]int, len(toRun))
	downstream := make(map[ids.NodeID][]ids.NodeID, len(toRun))
	for id := range toRun {
		deg := 0
		for _, up := range e.store.Upstream(id) {
			if toRun[up] {
				deg++
			}
		}
		inDegree[id] = deg
		for _, down := range e.store.Downstream(id) {
			if toRun[down] {
				downstream[id] = append(downstream[id], down)
			}
		}
	}

	ready := make(chan ids.NodeID, len(toRun))
	for id, deg := range inDegree {
		if deg == 0 {
			ready <- id
		}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		summary RunSummary
	)
	wg.Add(len(toRun))

	worker := func() {
		for id := range ready {
			outcome, _ := e.executeNode(ctx, id)
			mu.Lock()
			switch outcome {
			case outcomeExecuted:
				summary.Executed++
			case outcomeErrored:
				summary.Errored++
			case outcomeSkipped:
				summary.Skipped++
			}
			mu.Unlock()
			for _, down := range downstream[id] {
				mu.Lock()
				inDegree[down]--
				fire := inDegree[down] == 0
				mu.Unlock()
				if fire {
					ready <- down
				}
			}
			wg.Done()
		}
	}

	workers := e.workers
	if workers > len(toRun) {
		workers = len(toRun)
	}
	for i := 0; i < workers; i++ {
		go worker()
	}

	wg.Wait()
	close(ready)

	return summary
}
