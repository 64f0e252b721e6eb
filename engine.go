package subset

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ProgressFunc is called once per source commit processed, in walk order.
// total is 0 when the walker's full commit count isn't known up front.
// Grounded on original_source/src/main.rs's process_commits status-step
// reporting.
type ProgressFunc func(done, total int, commitID ObjectID)

// RunConfig configures one invocation of Engine.Run (spec §6).
type RunConfig struct {
	// Start is the revision to walk from (a resolved ObjectID — callers
	// wanting revspec syntax should go through ObjectStore.ResolveRevision
	// first).
	Start ObjectID

	// Filter is the compiled whitelist every tree is pruned against.
	Filter Filter

	// Branch is the name of the ref moved to point at the rewritten head.
	Branch string

	// Force allows overwriting an existing branch of that name.
	Force bool

	// Concurrency, when > 1, enables the pipelined mode: tree rewrites for
	// independent commits run concurrently via errgroup, funneled through a
	// shared singleflight.Group so no source tree is read or written twice
	// (spec §5's optional parallelism). Commit rewrites themselves still
	// apply in walk order, since CommitRewriter.Rewrite depends on every
	// parent's CommitMemo entry already being present.
	Concurrency int

	// VerifyNoLeaks, when set, runs CheckFilePatchAgainstFilter against the
	// diff between every rewritten commit and its first rewritten parent,
	// failing the run if any patch touches a path the filter doesn't admit
	// (spec §8 testable property 4).
	VerifyNoLeaks bool

	// Progress, if non-nil, is called after each source commit is processed.
	Progress ProgressFunc

	// TreeMemo and CommitMemo, if non-nil, seed the rewrite with
	// previously-persisted memo state (spec §4.5's MemoStore) instead of
	// starting from empty maps — and are mutated in place, so a caller
	// that loaded them from a memostore.Store can save the same pointers
	// back afterward. Leave both nil for a from-scratch run.
	TreeMemo   *TreeMemo
	CommitMemo *CommitMemo
}

// Result is what Engine.Run reports about a completed rewrite.
type Result struct {
	// Head is the rewritten history's new head commit. When no commit maps
	// to a rewritten commit, Run fails with ErrEmptyHistory and returns no
	// Result.
	Head ObjectID

	// CommitsVisited is the number of source commits the walker produced.
	CommitsVisited int

	// CommitsEmitted is the number of distinct rewritten commits the walked
	// commits map to (collapsed and dropped commits don't count). Commits
	// taken from a warm CommitMemo count too, although this run did not
	// write them.
	CommitsEmitted int
}

// Engine wires Walker, TreeRewriter, CommitRewriter and UpdateBranch into
// the single end-to-end operation described by spec §2.
type Engine struct {
	store ObjectStore
}

// NewEngine builds an Engine over the given store.
func NewEngine(store ObjectStore) *Engine {
	return &Engine{store: store}
}

// Run performs one full rewrite: walk history from cfg.Start, rewrite every
// commit against cfg.Filter, and move cfg.Branch to the result.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if e.store == nil {
		return nil, ErrNilObjectStore
	}
	if cfg.Filter == nil {
		return nil, ErrEmptyFilter
	}

	walker := NewWalker(e.store)
	order, err := walker.Walk(ctx, cfg.Start)
	if err != nil {
		return nil, errorf(err, "failed to walk history: %w", err)
	}
	if len(order) == 0 {
		return nil, ErrEmptyHistory
	}

	treeMemo := cfg.TreeMemo
	if treeMemo == nil {
		treeMemo = NewTreeMemo()
	}
	commitMemo := cfg.CommitMemo
	if commitMemo == nil {
		commitMemo = NewCommitMemo()
	}

	var group *singleflight.Group
	if cfg.Concurrency > 1 {
		group = &singleflight.Group{}
	}
	treeRewriter := NewTreeRewriter(e.store, cfg.Filter, treeMemo, group)
	commitRewriter := NewCommitRewriter(e.store, treeRewriter, commitMemo)

	if cfg.Concurrency > 1 {
		if err := e.prefetchTrees(ctx, treeRewriter, order, cfg.Concurrency); err != nil {
			return nil, err
		}
	}

	result := &Result{CommitsVisited: len(order)}
	var lastEmitted *ObjectID
	emitted := make(HashSet)

	for i, id := range order {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		default:
		}

		newID, err := commitRewriter.Rewrite(ctx, id)
		if err != nil {
			return nil, errorf(err, "failed to rewrite commit %s: %w", id, err)
		}

		if newID != nil {
			if _, seen := emitted[*newID]; !seen {
				emitted[*newID] = empty{}
				result.CommitsEmitted++
			}
			lastEmitted = newID
		}

		if cfg.VerifyNoLeaks && newID != nil {
			if err := e.verifyCommit(ctx, *newID, cfg.Filter); err != nil {
				return nil, err
			}
		}

		if cfg.Progress != nil {
			cfg.Progress(i+1, len(order), id)
		}
	}

	if lastEmitted == nil {
		return nil, ErrEmptyHistory
	}
	result.Head = *lastEmitted

	if cfg.Branch != "" {
		if err := UpdateBranch(ctx, e.store, cfg.Branch, result.Head, cfg.Force); err != nil {
			return nil, errorf(err, "failed to update branch %s: %w", cfg.Branch, err)
		}
	}

	return result, nil
}

// prefetchTrees warms the tree memo for every commit's root tree
// concurrently, ahead of the sequential commit-rewrite pass. Tree rewrites
// have no cross-commit ordering dependency (unlike commit rewrites, which
// need their parents' CommitMemo entries), so this is the one stage spec §5
// actually permits running out of order.
func (e *Engine) prefetchTrees(ctx context.Context, tr *TreeRewriter, order []ObjectID, concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, id := range order {
		id := id
		g.Go(func() error {
			commit, err := e.store.ReadCommit(ctx, id)
			if err != nil {
				return errorf(err, "failed to read commit %s: %w", id, err)
			}
			_, err = tr.Rewrite(ctx, commit.TreeHash, nil)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return errorf(err, "failed to prefetch trees: %w", err)
	}
	return nil
}

// verifyCommit diffs a rewritten commit against its rewritten first parent
// and checks every touched path against filter, per spec §8 property 4. id
// is a rewritten commit id, not a source one — the check must run against
// what was actually produced, not against the source history.
func (e *Engine) verifyCommit(ctx context.Context, id ObjectID, filter Filter) error {
	commit, err := e.store.ReadCommit(ctx, id)
	if err != nil {
		return errorf(err, "failed to read commit %s: %w", id, err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return errorf(err, "failed to load tree for commit %s: %w", id, err)
	}

	parentTree := &object.Tree{}
	if len(commit.ParentHashes) > 0 {
		parent, err := e.store.ReadCommit(ctx, commit.ParentHashes[0])
		if err != nil {
			return errorf(err, "failed to read parent of commit %s: %w", id, err)
		}
		pt, err := parent.Tree()
		if err != nil {
			return errorf(err, "failed to load parent tree for commit %s: %w", id, err)
		}
		parentTree = pt
	}

	changes, err := parentTree.DiffContext(ctx, tree)
	if err != nil {
		return errorf(err, "failed to diff commit %s: %w", id, err)
	}

	patch, err := changes.Patch()
	if err != nil {
		return errorf(err, "failed to compute patch for commit %s: %w", id, err)
	}

	if res := CheckFilePatchAgainstFilter(patch.FilePatches(), filter); len(res.Leaks) > 0 {
		return fmt.Errorf("commit %s touches paths outside the filter: %w", id, res.ToError())
	}

	return nil
}
