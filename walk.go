package subset

import (
	"context"
	"sort"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// Walker produces the order in which HistoryWalker visits commits (spec
// §4.4): a topological order in which every commit appears after all of its
// parents, with ties between simultaneously-ready commits broken by
// ascending ObjectId so the order is fully deterministic across runs.
//
// Grounded on dfs.go's dfsBuilder, generalized from "follow first-parent
// only" to "follow every parent" and from a single emission pass to the
// discover-then-emit two-pass shape spec §4.4 calls for.
type Walker struct {
	store ObjectStore
}

// NewWalker builds a Walker over the given store.
func NewWalker(store ObjectStore) *Walker {
	return &Walker{store: store}
}

// Walk returns every commit reachable from start, parents before children,
// ties broken by ascending ObjectId.
func (w *Walker) Walk(ctx context.Context, start ObjectID) ([]ObjectID, error) {
	commits, err := w.discover(ctx, start)
	if err != nil {
		return nil, err
	}
	return topoSort(commits), nil
}

// discover runs a DFS from start over parent edges, returning every reached
// commit keyed by id. It reads each commit at most once.
func (w *Walker) discover(ctx context.Context, start ObjectID) (map[ObjectID]*object.Commit, error) {
	commits := make(map[ObjectID]*object.Commit)
	stack := []ObjectID{start}

	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := commits[id]; ok {
			continue
		}

		c, err := w.store.ReadCommit(ctx, id)
		if err != nil {
			return nil, errorf(err, "failed to read commit %s: %w", id, err)
		}
		commits[id] = c

		for _, p := range c.ParentHashes {
			if _, ok := commits[p]; !ok {
				stack = append(stack, p)
			}
		}
	}

	return commits, nil
}

// topoSort runs Kahn's algorithm over commits' parent edges: commits enter
// the ready set once every parent has been emitted, and the ready set is
// always drained in ascending-ObjectId order, so two independent branches
// that become ready simultaneously still emit in one fixed order.
func topoSort(commits map[ObjectID]*object.Commit) []ObjectID {
	inDegree := make(map[ObjectID]int, len(commits))
	children := make(map[ObjectID][]ObjectID, len(commits))
	all := make([]*object.Commit, 0, len(commits))

	for id, c := range commits {
		all = append(all, c)
		degree := 0
		for _, p := range c.ParentHashes {
			if _, ok := commits[p]; !ok {
				continue // parent falls outside the discovered set (shouldn't happen from a single root, kept defensive)
			}
			degree++
			children[p] = append(children[p], id)
		}
		inDegree[id] = degree
	}

	// The initial ready set is exactly the roots of the discovered subgraph
	// (no parent also present in it) — Roots already computes this.
	rootCommits := Roots(all)
	ready := make([]ObjectID, 0, len(rootCommits))
	for _, c := range rootCommits {
		ready = append(ready, c.Hash)
	}
	sortHashesAscending(ready)

	order := make([]ObjectID, 0, len(commits))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		newlyReady := make([]ObjectID, 0)
		for _, child := range children[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				newlyReady = append(newlyReady, child)
			}
		}
		sortHashesAscending(newlyReady)
		ready = mergeSortedHashes(ready, newlyReady)
	}

	return order
}

func sortHashesAscending(ids []ObjectID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

// mergeSortedHashes merges two already-sorted slices, keeping the combined
// ready set sorted without a full re-sort on every Kahn's-algorithm step.
func mergeSortedHashes(a, b []ObjectID) []ObjectID {
	if len(b) == 0 {
		return a
	}
	merged := make([]ObjectID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].String() <= b[j].String() {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}
