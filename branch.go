package subset

import "context"

// UpdateBranch implements BranchUpdater (spec §4.6): it creates the branch
// if absent, and if present either fails with ErrBranchExists (force=false)
// or overwrites it (force=true). The update is a single atomic ref write
// delegated to the ObjectStore; no reflog contract is specified here (spec
// §9 Open Questions: left to ObjectStore policy).
func UpdateBranch(ctx context.Context, store ObjectStore, name string, target ObjectID, force bool) error {
	if store == nil {
		return ErrNilObjectStore
	}
	return store.SetRef(ctx, name, target, force)
}
