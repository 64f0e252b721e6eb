package subset

import (
	"encoding/hex"

	"github.com/go-git/go-git/v5/plumbing"
)

// ObjectID is the content address of an object in the store: a fixed-width
// hash, identity-by-value, freely copied. Realized as go-git's plumbing.Hash.
type ObjectID = plumbing.Hash

// DecodeObjectID decodes a hex encoded ObjectID. Unlike [plumbing.NewHash],
// it reports an error for malformed or short input instead of silently
// zero-padding it. Input longer than a hash is truncated to the hash width.
func DecodeObjectID(str string) (ObjectID, error) {
	v, err := hex.DecodeString(str)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if len(v) < 20 {
		return plumbing.ZeroHash, ErrHexStringTooShort
	}

	var r ObjectID
	copy(r[:], v)

	return r, nil
}

// MustDecodeObjectID decodes str and panics on error.
func MustDecodeObjectID(str string) ObjectID {
	v, err := DecodeObjectID(str)
	if err != nil {
		panic(err)
	}

	return v
}

// DecodeObjectIDs decodes a list of hex strings, failing on the first bad one.
func DecodeObjectIDs(strs ...string) ([]ObjectID, error) {
	result := make([]ObjectID, 0, len(strs))

	for _, v := range strs {
		id, err := DecodeObjectID(v)
		if err != nil {
			return nil, err
		}

		result = append(result, id)
	}

	return result, nil
}
