// Package hash provides the blake3 digests used to identify gossip payloads.
package hash

import (
	"sync"

	"github.com/zeebo/blake3"
)

// Size of a digest in bytes.
const Size = 32

var pool = &sync.Pool{
	New: func() any {
		return blake3.New()
	},
}

func getHasher() *blake3.Hasher {
	return pool.Get().(*blake3.Hasher)
}

func putHasher(hasher *blake3.Hasher) {
	hasher.Reset()
	pool.Put(hasher)
}

// Sum returns the digest of the concatenated chunks.
func Sum(chunks ...[]byte) [Size]byte {
	hasher := getHasher()
	defer putHasher(hasher)
	for _, chunk := range chunks {
		hasher.Write(chunk)
	}
	var digest [Size]byte
	hasher.Sum(digest[:0])
	return digest
}
