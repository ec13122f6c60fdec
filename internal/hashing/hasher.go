// Package hashing implements the deterministic bucketing function used by
// the evaluation engine for percentage rollouts. The algorithm is part of
// the wire contract: any implementation, in any language, must produce
// bit-identical buckets for the same (flag_key, targeting_key) pair.
package hashing

import "github.com/twmb/murmur3"

// NumBuckets is the modulus applied to the raw hash, giving basis-point
// (0.01%) granularity over [0, 10000).
const NumBuckets = 10000

// Bucket returns a deterministic integer in [0, 10000) for the given flag
// key and targeting key. It hashes "{flagKey}/{targetingKey}" with
// MurmurHash3 x86 32-bit, seed 0.
func Bucket(flagKey, targetingKey string) int {
	h := Sum32(flagKey + "/" + targetingKey)
	return int(h % NumBuckets)
}

// Sum32 computes MurmurHash3 x86 32-bit with seed 0 over s.
//
// github.com/twmb/murmur3 implements the same classical algorithm; it is
// used for the hot path. sum32Reference below is a from-scratch port of
// the Rust reference implementation and is used only by the known-answer
// test, so the wire contract is pinned independent of the upstream
// package's internals.
func Sum32(s string) uint32 {
	return murmur3.SeedSum32(0, []byte(s))
}

// sum32Reference is a from-scratch implementation of the MurmurHash3 x86
// 32-bit algorithm, kept to cross-check Sum32 in tests independent of the
// upstream package's internals.
func sum32Reference(data []byte) uint32 {
	const (
		c1 = 0xcc9e2d51
		c2 = 0x1b873593
	)

	var h1 uint32
	length := len(data)
	nblocks := length / 4

	for i := 0; i < nblocks; i++ {
		k1 := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		k1 *= c1
		k1 = (k1 << 15) | (k1 >> 17)
		k1 *= c2
		h1 ^= k1
		h1 = (h1 << 13) | (h1 >> 19)
		h1 = h1*5 + 0xe6546b64
	}

	tail := data[nblocks*4:]
	var k1 uint32
	switch len(tail) {
	case 3:
		k1 ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint32(tail[0])
		k1 *= c1
		k1 = (k1 << 15) | (k1 >> 17)
		k1 *= c2
		h1 ^= k1
	}

	h1 ^= uint32(length)
	h1 ^= h1 >> 16
	h1 *= 0x85ebca6b
	h1 ^= h1 >> 13
	h1 *= 0xc2b2ae35
	h1 ^= h1 >> 16

	return h1
}
