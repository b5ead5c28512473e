package descriptor

import (
	"math"
	"math/bits"
	"time"

	"github.com/doeshing/riskgate/internal/domain"
)

// MaxBucket is the largest storable bucket index.
const MaxBucket = 255

// Bucket maps v to its log2 bucket: 0 for 0, otherwise the bit length of v.
// Bucket b covers the range [2^(b-1), 2^b).
func Bucket(v uint64) uint8 {
	if v == 0 {
		return 0
	}
	n := bits.Len64(v)
	if n > MaxBucket {
		n = MaxBucket
	}
	return uint8(n)
}

// LowerBound returns the smallest value that falls into bucket b.
func LowerBound(b uint8) uint64 {
	switch {
	case b == 0:
		return 0
	case b > 64:
		return math.MaxUint64
	default:
		return 1 << (b - 1)
	}
}

// BucketPerf converts a raw estimate to stored buckets. Execution time is
// bucketed in milliseconds, memory in KiB and output in bytes.
func BucketPerf(p domain.PerfEstimate) domain.PerfBuckets {
	var ms uint64
	if p.ExecTime > 0 {
		ms = uint64(p.ExecTime / time.Millisecond)
	}
	return domain.PerfBuckets{
		Exec:   Bucket(ms),
		Memory: Bucket(p.MemoryBytes / 1024),
		Output: Bucket(p.OutputBytes),
	}
}

// EstimateFromBuckets returns the lower bound of each bucket as a raw estimate.
func EstimateFromBuckets(b domain.PerfBuckets) domain.PerfEstimate {
	ms := LowerBound(b.Exec)
	exec := time.Duration(math.MaxInt64)
	if ms <= uint64(math.MaxInt64/int64(time.Millisecond)) {
		exec = time.Duration(ms) * time.Millisecond
	}
	kib := LowerBound(b.Memory)
	mem := uint64(math.MaxUint64)
	if kib <= math.MaxUint64/1024 {
		mem = kib * 1024
	}
	return domain.PerfEstimate{
		ExecTime:    exec,
		MemoryBytes: mem,
		OutputBytes: LowerBound(b.Output),
	}
}
