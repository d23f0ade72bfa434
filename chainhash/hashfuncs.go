// Copyright (c) 2015 The Decred developers
// Copyright (c) 2016-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

import (
	"golang.org/x/crypto/blake2b"
)

// HashH calculates hash(b) and returns the resulting bytes as a Hash.
func HashH(b []byte) Hash {
	return Hash(blake2b.Sum256(b))
}

// CombineHashes calculates hash(a || b). It links two commitments together,
// such as the inner parts of a block header or two merkle siblings.
func CombineHashes(a, b Hash) Hash {
	var buf [HashSize * 2]byte
	copy(buf[:HashSize], a[:])
	copy(buf[HashSize:], b[:])
	return HashH(buf[:])
}
