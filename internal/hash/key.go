package hash

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// Key returns the FNV-1a hash of key.
func Key(key []byte) uint64 {
	h := uint64(fnvOffset64)
	for _, b := range key {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	return h
}

// Lane maps key to one of n lanes. n must be positive.
func Lane(key []byte, n int) int {
	// FNV's low bits only depend on the low bits of the input; fmix64 spreads them.
	h := Key(key)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return int(h % uint64(n))
}
