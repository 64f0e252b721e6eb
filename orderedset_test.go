package subset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-git/v5/plumbing/object"

	subset "github.com/jasonwhite/git-subset"
)

func TestHashSet(t *testing.T) {
	a := subset.MustDecodeObjectID("d670460b4b4aece5915caf5c68d12f560a9fe3e4")
	b := subset.MustDecodeObjectID("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d")

	set := subset.NewHashSet(a, b)
	assert.Len(t, set, 2)
	_, ok := set[a]
	assert.True(t, ok)
}

func TestNewHashSetFromStrings(t *testing.T) {
	set, err := subset.NewHashSetFromStrings(
		"d670460b4b4aece5915caf5c68d12f560a9fe3e4",
		"aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d",
	)
	require.NoError(t, err)
	assert.Len(t, set, 2)
}

func TestNewHashSetFromStrings_Error(t *testing.T) {
	_, err := subset.NewHashSetFromStrings("short")
	require.Error(t, err)
}

func TestMustNewHashSetFromStrings_Panics(t *testing.T) {
	assert.Panics(t, func() {
		subset.MustNewHashSetFromStrings("short")
	})
}

func TestSortedHashes(t *testing.T) {
	a := subset.MustDecodeObjectID("d670460b4b4aece5915caf5c68d12f560a9fe3e4")
	b := subset.MustDecodeObjectID("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d")
	c := subset.MustDecodeObjectID("000000000000000000000000000000000000000a")

	sorted := subset.SortedHashes(subset.NewHashSet(a, b, c))
	require.Len(t, sorted, 3)

	for i := 1; i < len(sorted); i++ {
		assert.Less(t, sorted[i-1].String(), sorted[i].String())
	}
}

func TestRoots(t *testing.T) {
	root := &object.Commit{Hash: subset.MustDecodeObjectID("d670460b4b4aece5915caf5c68d12f560a9fe3e4")}
	child := &object.Commit{
		Hash:         subset.MustDecodeObjectID("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"),
		ParentHashes: []subset.ObjectID{root.Hash},
	}
	// A merge commit whose second parent was never discovered (outside the
	// selection entirely) is still not a root, since its first parent is.
	merge := &object.Commit{
		Hash: subset.MustDecodeObjectID("000000000000000000000000000000000000000a"),
		ParentHashes: []subset.ObjectID{
			child.Hash,
			subset.MustDecodeObjectID("111111111111111111111111111111111111111b"),
		},
	}

	roots := subset.Roots([]*object.Commit{root, child, merge})
	require.Len(t, roots, 1)
	assert.Equal(t, root.Hash, roots[0].Hash)
}

func TestRoots_MultipleRoots(t *testing.T) {
	a := &object.Commit{Hash: subset.MustDecodeObjectID("d670460b4b4aece5915caf5c68d12f560a9fe3e4")}
	b := &object.Commit{Hash: subset.MustDecodeObjectID("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d")}

	roots := subset.Roots([]*object.Commit{a, b})
	assert.Len(t, roots, 2)
}
