package upstream

import (
	"encoding/base32"

	"github.com/cespare/xxhash/v2"
)

// hashKey computes the seeded 64-bit digest the consistent-hash selection
// policy uses as its bucket key; computeUID uses the same xxhash function,
// unseeded, for an upstream's stable uid. xxhash is the
// same fast, non-cryptographic hash the rest of this module's dependency
// graph already pulls in for exactly this kind of "hash a short string for
// bucketing" task.
func hashKey(s string, seed uint64) uint64 {
	return xxhash.Sum64String(s) ^ seed
}

var uidEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// computeUID derives a short, stable, log-friendly identifier from an
// upstream's name: the low 8 bytes of its hash, base32 encoded.
func computeUID(name string) string {
	h := xxhash.Sum64String(name)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (56 - 8*i))
	}
	return uidEncoding.EncodeToString(buf[:])
}

// jumpHash implements Lamping & Veach's jump consistent hash: it maps a
// 64-bit key to a bucket in [0, numBuckets) such that, as numBuckets
// changes by one, only a 1/numBuckets fraction of keys change bucket.
func jumpHash(key uint64, numBuckets int32) int32 {
	if numBuckets <= 0 {
		return 0
	}

	var b, j int64 = -1, 0
	for j < int64(numBuckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}
	return int32(b)
}
