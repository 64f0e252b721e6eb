package memostore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	subset "github.com/jasonwhite/git-subset"
	"github.com/jasonwhite/git-subset/memostore"
)

func openStore(t *testing.T) *memostore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memos.db")
	s, err := memostore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	store := openStore(t)

	treeID := subset.MustDecodeObjectID("d670460b4b4aece5915caf5c68d12f560a9fe3e4")
	rewrittenTreeID := subset.MustDecodeObjectID("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d")
	commitID := subset.MustDecodeObjectID("111111111111111111111111111111111111111b")
	rewrittenCommitID := subset.MustDecodeObjectID("000000000000000000000000000000000000000a")

	treeMemo := subset.NewTreeMemo()
	treeMemo.StoreIfAbsent(treeID, subset.TreeMemoEntry{ID: rewrittenTreeID})
	commitMemo := subset.NewCommitMemo()
	commitMemo.StoreIfAbsent(commitID, subset.CommitMemoEntry{ID: rewrittenCommitID, TreeID: rewrittenTreeID})

	const fingerprint = "fp-1"
	require.NoError(t, store.Save(fingerprint, treeMemo, commitMemo))

	loadedTrees, loadedCommits, err := store.Load(fingerprint)
	require.NoError(t, err)

	entry, ok := loadedTrees.Lookup(treeID)
	require.True(t, ok)
	assert.Equal(t, rewrittenTreeID, entry.ID)
	assert.False(t, entry.Dropped)

	cEntry, ok := loadedCommits.Lookup(commitID)
	require.True(t, ok)
	assert.Equal(t, rewrittenCommitID, cEntry.ID)
	assert.Equal(t, rewrittenTreeID, cEntry.TreeID)
}

func TestStore_RoundTrip_DroppedEntries(t *testing.T) {
	store := openStore(t)

	treeID := subset.MustDecodeObjectID("d670460b4b4aece5915caf5c68d12f560a9fe3e4")
	commitID := subset.MustDecodeObjectID("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d")

	treeMemo := subset.NewTreeMemo()
	treeMemo.StoreIfAbsent(treeID, subset.TreeMemoEntry{Dropped: true})
	commitMemo := subset.NewCommitMemo()
	commitMemo.StoreIfAbsent(commitID, subset.CommitMemoEntry{Dropped: true})

	require.NoError(t, store.Save("fp-drop", treeMemo, commitMemo))

	loadedTrees, loadedCommits, err := store.Load("fp-drop")
	require.NoError(t, err)

	tEntry, ok := loadedTrees.Lookup(treeID)
	require.True(t, ok)
	assert.True(t, tEntry.Dropped)

	cEntry, ok := loadedCommits.Lookup(commitID)
	require.True(t, ok)
	assert.True(t, cEntry.Dropped)
}

func TestStore_Load_FingerprintMismatchDegradesToEmpty(t *testing.T) {
	store := openStore(t)

	treeID := subset.MustDecodeObjectID("d670460b4b4aece5915caf5c68d12f560a9fe3e4")
	treeMemo := subset.NewTreeMemo()
	treeMemo.StoreIfAbsent(treeID, subset.TreeMemoEntry{ID: treeID})
	require.NoError(t, store.Save("fp-old", treeMemo, subset.NewCommitMemo()))

	loadedTrees, loadedCommits, err := store.Load("fp-new")
	require.NoError(t, err)
	assert.Zero(t, loadedTrees.Len())
	assert.Zero(t, loadedCommits.Len())
}

func TestStore_Load_NewDatabaseIsEmpty(t *testing.T) {
	store := openStore(t)

	loadedTrees, loadedCommits, err := store.Load("anything")
	require.NoError(t, err)
	assert.Zero(t, loadedTrees.Len())
	assert.Zero(t, loadedCommits.Len())
}
