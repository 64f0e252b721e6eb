package subset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	subset "github.com/jasonwhite/git-subset"
)

func TestWalker_LinearHistory(t *testing.T) {
	store := newTestStore(t)
	tree := writeTree(t, store, blob(t, store, "README.md"))

	c1 := writeCommit(t, store, tree, nil, "c1")
	c2 := writeCommit(t, store, tree, []subset.ObjectID{c1}, "c2")
	c3 := writeCommit(t, store, tree, []subset.ObjectID{c2}, "c3")

	order, err := subset.NewWalker(store).Walk(context.Background(), c3)
	require.NoError(t, err)
	assert.Equal(t, []subset.ObjectID{c1, c2, c3}, order)
}

func TestWalker_MergeCommit(t *testing.T) {
	store := newTestStore(t)
	tree := writeTree(t, store, blob(t, store, "README.md"))

	base := writeCommit(t, store, tree, nil, "base")
	left := writeCommit(t, store, tree, []subset.ObjectID{base}, "left")
	right := writeCommit(t, store, tree, []subset.ObjectID{base}, "right")
	merge := writeCommit(t, store, tree, []subset.ObjectID{left, right}, "merge")

	order, err := subset.NewWalker(store).Walk(context.Background(), merge)
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := make(map[subset.ObjectID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	assert.Less(t, pos[base], pos[left])
	assert.Less(t, pos[base], pos[right])
	assert.Less(t, pos[left], pos[merge])
	assert.Less(t, pos[right], pos[merge])

	// left and right become ready simultaneously once base is emitted; the
	// tie must break by ascending ObjectId every time this is run.
	if left.String() < right.String() {
		assert.Less(t, pos[left], pos[right])
	} else {
		assert.Less(t, pos[right], pos[left])
	}
}

func TestWalker_Deterministic(t *testing.T) {
	store := newTestStore(t)
	tree := writeTree(t, store, blob(t, store, "README.md"))

	base := writeCommit(t, store, tree, nil, "base")
	a := writeCommit(t, store, tree, []subset.ObjectID{base}, "a")
	b := writeCommit(t, store, tree, []subset.ObjectID{base}, "b")
	c := writeCommit(t, store, tree, []subset.ObjectID{base}, "c")
	tip := writeCommit(t, store, tree, []subset.ObjectID{a, b, c}, "tip")

	first, err := subset.NewWalker(store).Walk(context.Background(), tip)
	require.NoError(t, err)
	second, err := subset.NewWalker(store).Walk(context.Background(), tip)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWalker_CancelledContext(t *testing.T) {
	store := newTestStore(t)
	tree := writeTree(t, store, blob(t, store, "README.md"))
	c1 := writeCommit(t, store, tree, nil, "c1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := subset.NewWalker(store).Walk(ctx, c1)
	require.Error(t, err)
}
