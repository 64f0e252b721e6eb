// Package memostore persists a [subset.TreeMemo]/[subset.CommitMemo] pair
// across process runs, so a second invocation against the same filter can
// resume from the first's work instead of rewriting every object again
// (spec §4.5).
package memostore

import (
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jasonwhite/git-subset"
)

var (
	treeBucket   = []byte("trees")
	commitBucket = []byte("commits")
	metaBucket   = []byte("meta")

	fingerprintKey = []byte("fingerprint")
)

// Store is a bbolt-backed durable memo pair. Grounded on svc/db.go's
// getFromDb/putToDb generics and svc/svcdb.go's setupDb (temp-path fallback,
// 0o600 permissions) — bbolt's own transactions give the durability the
// teacher's db layer relied on, so there is no hand-rolled temp-file+rename
// step here.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) a memo database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open memo database %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the persisted memos into fresh TreeMemo/CommitMemo values. If
// the stored fingerprint doesn't match fingerprint (a different filter was
// used last time, or the database is new), Load returns empty memos rather
// than an error — a fingerprint mismatch invalidates the cache, it doesn't
// fail the run (spec §4.5).
func (s *Store) Load(fingerprint string) (*subset.TreeMemo, *subset.CommitMemo, error) {
	treeMemo := subset.NewTreeMemo()
	commitMemo := subset.NewCommitMemo()

	stored, err := s.storedFingerprint()
	if err != nil {
		return nil, nil, err
	}
	if stored != fingerprint {
		return treeMemo, commitMemo, nil
	}

	if err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(treeBucket); b != nil {
			if err := b.ForEach(func(k, v []byte) error {
				id, entry, err := decodeTreeEntry(k, v)
				if err != nil {
					return err
				}
				treeMemo.StoreIfAbsent(id, entry)
				return nil
			}); err != nil {
				return err
			}
		}
		if b := tx.Bucket(commitBucket); b != nil {
			if err := b.ForEach(func(k, v []byte) error {
				id, entry, err := decodeCommitEntry(k, v)
				if err != nil {
					return err
				}
				commitMemo.StoreIfAbsent(id, entry)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", subset.ErrCorruptMemo, err)
	}

	return treeMemo, commitMemo, nil
}

// Save persists every entry of treeMemo and commitMemo, along with
// fingerprint, overwriting whatever was stored before.
func (s *Store) Save(fingerprint string, treeMemo *subset.TreeMemo, commitMemo *subset.CommitMemo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{treeBucket, commitBucket} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}

		tb, err := tx.CreateBucketIfNotExists(treeBucket)
		if err != nil {
			return err
		}
		tb.FillPercent = 1 // write-once, read-heavy afterward

		var rangeErr error
		treeMemo.Range(func(id subset.ObjectID, entry subset.TreeMemoEntry) bool {
			k, v := encodeTreeEntry(id, entry)
			if rangeErr = tb.Put(k, v); rangeErr != nil {
				return false
			}
			return true
		})
		if rangeErr != nil {
			return rangeErr
		}

		cb, err := tx.CreateBucketIfNotExists(commitBucket)
		if err != nil {
			return err
		}
		cb.FillPercent = 1

		commitMemo.Range(func(id subset.ObjectID, entry subset.CommitMemoEntry) bool {
			k, v := encodeCommitEntry(id, entry)
			if rangeErr = cb.Put(k, v); rangeErr != nil {
				return false
			}
			return true
		})
		if rangeErr != nil {
			return rangeErr
		}

		mb, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		return mb.Put(fingerprintKey, []byte(fingerprint))
	})
}

func (s *Store) storedFingerprint() (string, error) {
	var fp string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return nil
		}
		fp = string(b.Get(fingerprintKey))
		return nil
	})
	return fp, err
}

// Object ids are fixed-width (20 bytes under SHA-1), so memo values are
// encoded as a one-byte dropped flag followed by however many ids the entry
// carries, with no length prefix needed.
const hashLen = 20

func encodeTreeEntry(id subset.ObjectID, entry subset.TreeMemoEntry) (key, value []byte) {
	v := make([]byte, 1+hashLen)
	if entry.Dropped {
		v[0] = 1
	}
	copy(v[1:], entry.ID[:])
	return append([]byte(nil), id[:]...), v
}

func decodeTreeEntry(k, v []byte) (subset.ObjectID, subset.TreeMemoEntry, error) {
	var id subset.ObjectID
	if len(k) != hashLen || len(v) != 1+hashLen {
		return id, subset.TreeMemoEntry{}, fmt.Errorf("%w: malformed tree memo record", subset.ErrCorruptMemo)
	}
	copy(id[:], k)

	entry := subset.TreeMemoEntry{Dropped: v[0] != 0}
	copy(entry.ID[:], v[1:])
	return id, entry, nil
}

func encodeCommitEntry(id subset.ObjectID, entry subset.CommitMemoEntry) (key, value []byte) {
	v := make([]byte, 1+2*hashLen)
	if entry.Dropped {
		v[0] = 1
	}
	copy(v[1:1+hashLen], entry.ID[:])
	copy(v[1+hashLen:], entry.TreeID[:])
	return append([]byte(nil), id[:]...), v
}

func decodeCommitEntry(k, v []byte) (subset.ObjectID, subset.CommitMemoEntry, error) {
	var id subset.ObjectID
	if len(k) != hashLen || len(v) != 1+2*hashLen {
		return id, subset.CommitMemoEntry{}, fmt.Errorf("%w: malformed commit memo record", subset.ErrCorruptMemo)
	}
	copy(id[:], k)

	entry := subset.CommitMemoEntry{Dropped: v[0] != 0}
	copy(entry.ID[:], v[1:1+hashLen])
	copy(entry.TreeID[:], v[1+hashLen:])
	return id, entry, nil
}
