package debra

// Size constants for padding. Only cacheLineSize is referenced by the
// package's types.
const (
	// cacheLineSize is the size of a CPU cache line.
	// 64 bytes is standard for x86-64.
	// 128 bytes is standard for Apple Silicon (M1/M2/M3) and other ARM64.
	// We use 128 to satisfy the largest common alignment requirement.
	cacheLineSize = 128

	// atomicWordSize is the size of an atomic.Uint64 variable.
	atomicWordSize = 8
)
