package subset

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// emptyTreeID is the canonical empty-tree ObjectId under SHA-1 git (spec
// §3's "empty tree" invariant: it is never written as a distinct object,
// just referenced by this well-known address).
var emptyTreeID = plumbing.NewHash("4b825dc642cb6eb9a060e54bf8d69288fbee4904")

// ObjectStore is the capability set the rewrite engine consumes (spec §6).
// It is deliberately small and backend-agnostic: the core never depends on
// anything beyond these seven operations.
type ObjectStore interface {
	ReadCommit(ctx context.Context, id ObjectID) (*object.Commit, error)
	ReadTree(ctx context.Context, id ObjectID) (*object.Tree, error)
	WriteTree(ctx context.Context, tree *object.Tree) (ObjectID, error)
	WriteCommit(ctx context.Context, commit *object.Commit) (ObjectID, error)
	ResolveRevision(ctx context.Context, revspec string) (ObjectID, error)
	SetRef(ctx context.Context, name string, target ObjectID, allowOverwrite bool) error
	EmptyTreeID() ObjectID
}

// GoGitObjectStore implements ObjectStore on top of a go-git repository.
// Grounded on the teacher's pervasive use of storer.Storer as the dependency
// every exported function takes (e.g. FilterCommit(..., s storer.Storer, ...));
// this type gives that ad hoc parameter an explicit, named shape.
type GoGitObjectStore struct {
	repo   *git.Repository
	storer storer.EncodedObjectStorer
	refs   storer.ReferenceStorer
}

var _ ObjectStore = (*GoGitObjectStore)(nil)

// NewGoGitObjectStore wraps an already-opened repository.
func NewGoGitObjectStore(repo *git.Repository) *GoGitObjectStore {
	return &GoGitObjectStore{
		repo:   repo,
		storer: repo.Storer,
		refs:   repo.Storer,
	}
}

func (s *GoGitObjectStore) ReadCommit(_ context.Context, id ObjectID) (*object.Commit, error) {
	c, err := object.GetCommit(s.storer, id)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: commit %s", ErrObjectNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

func (s *GoGitObjectStore) ReadTree(_ context.Context, id ObjectID) (*object.Tree, error) {
	if id == emptyTreeID {
		return &object.Tree{}, nil
	}
	t, err := object.GetTree(s.storer, id)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: tree %s", ErrObjectNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

func (s *GoGitObjectStore) WriteTree(_ context.Context, tree *object.Tree) (ObjectID, error) {
	obj := s.storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, errorf(err, "failed to encode tree: %w", err)
	}
	return s.storer.SetEncodedObject(obj)
}

func (s *GoGitObjectStore) WriteCommit(_ context.Context, commit *object.Commit) (ObjectID, error) {
	obj := s.storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, errorf(err, "failed to encode commit: %w", err)
	}
	return s.storer.SetEncodedObject(obj)
}

func (s *GoGitObjectStore) ResolveRevision(_ context.Context, revspec string) (ObjectID, error) {
	id, err := s.repo.ResolveRevision(plumbing.Revision(revspec))
	if err != nil {
		return plumbing.ZeroHash, errorf(err, "failed to resolve revision %q: %w", revspec, err)
	}
	return *id, nil
}

func (s *GoGitObjectStore) SetRef(_ context.Context, name string, target ObjectID, allowOverwrite bool) error {
	refName := plumbing.NewBranchReferenceName(name)

	_, err := s.refs.Reference(refName)
	switch {
	case err == nil:
		if !allowOverwrite {
			return fmt.Errorf("%w: %s", ErrBranchExists, name)
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Branch doesn't exist yet; fine to create.
	default:
		return errorf(err, "failed to look up ref %s: %w", name, err)
	}

	return s.refs.SetReference(plumbing.NewHashReference(refName, target))
}

func (s *GoGitObjectStore) EmptyTreeID() ObjectID {
	return emptyTreeID
}
