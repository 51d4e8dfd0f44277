package bptdb

import "github.com/spaolacci/murmur3"

const defaultHashSeed uint32 = 0xdeadbeef

// HashKey maps an arbitrary byte sequence into the tree's key space with 32-bit murmur3.
// Distinct inputs may collide and collisions are not resolved: two colliding keys share one
// entry.
func HashKey(b []byte) int32 {
	return hashWithSeed(b, defaultHashSeed)
}

func hashWithSeed(b []byte, seed uint32) int32 {
	return int32(murmur3.Sum32WithSeed(b, seed))
}
