package subset

import (
	"sort"

	"github.com/go-git/go-git/v5/plumbing/object"
)

type empty = struct{}

// HashSet is a set of ObjectID.
type HashSet = map[ObjectID]empty

// NewHashSet builds a HashSet from the given ids.
func NewHashSet(ids ...ObjectID) HashSet {
	result := make(HashSet, len(ids))
	for _, id := range ids {
		result[id] = empty{}
	}
	return result
}

// NewHashSetFromStrings decodes the input strings and builds a HashSet.
func NewHashSetFromStrings(strs ...string) (HashSet, error) {
	ids, err := DecodeObjectIDs(strs...)
	if err != nil {
		return nil, err
	}
	return NewHashSet(ids...), nil
}

// MustNewHashSetFromStrings decodes the input strings and builds a HashSet,
// panicking if any string fails to decode.
func MustNewHashSetFromStrings(strs ...string) HashSet {
	set, err := NewHashSetFromStrings(strs...)
	if err != nil {
		panic(err)
	}
	return set
}

// SortedHashes returns the members of a HashSet in ascending byte order,
// the same order the walker uses to break ties between ready commits.
func SortedHashes(set HashSet) []ObjectID {
	result := make([]ObjectID, 0, len(set))
	for id := range set {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})
	return result
}

// Roots returns the commits in commits that have no parent also present in
// commits — i.e. the commits that become new history roots once everything
// outside the set is discarded.
func Roots(commits []*object.Commit) []*object.Commit {
	result := make([]*object.Commit, 0, 1)
	all := make(HashSet, len(commits))
	for _, c := range commits {
		if c == nil || c.Hash.IsZero() {
			continue
		}
		all[c.Hash] = empty{}
	}

	for _, c := range commits {
		if c == nil {
			continue
		}

		inSelection := 0
		for _, p := range c.ParentHashes {
			if _, ok := all[p]; ok {
				inSelection++
			}
		}

		if inSelection == 0 {
			result = append(result, c)
		}
	}

	return result
}
