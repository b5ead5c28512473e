//go:build property
// +build property

package descriptor_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
)

// TestRoundTrip verifies decode(encode(C)) reproduces the encodable projection.
func TestRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("encode/decode preserves level, flags, buckets and quantized scores", prop.ForAll(
		func(level uint8, flags uint16, score, destructiveness float64, execMs, mem, out uint64) bool {
			result := domain.ClassificationResult{
				Command:         "tool",
				Level:           domain.RiskLevel(level),
				Score:           score,
				Destructiveness: destructiveness,
				Flags:           domain.FlagSet(flags),
			}
			perf := domain.PerfEstimate{
				ExecTime:    time.Duration(execMs) * time.Millisecond,
				MemoryBytes: mem,
				OutputBytes: out,
			}
			rec, err := descriptor.Encode(result, perf)
			if err != nil {
				return false
			}
			d, err := descriptor.Decode(rec[:])
			if err != nil {
				return false
			}
			back := d.Classification("tool")
			const quantum = 1.0 / 65535
			return back.Level == result.Level &&
				back.Flags == result.Flags &&
				back.Perf == descriptor.BucketPerf(perf) &&
				abs(back.Score-score) <= quantum &&
				abs(back.Destructiveness-destructiveness) <= quantum
		},
		gen.UInt8Range(0, 4),
		gen.UInt16(),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.UInt64Range(0, 1<<40),
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

// TestChecksumSensitivity verifies any single corrupted byte is rejected.
func TestChecksumSensitivity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("a corrupted byte never decodes", prop.ForAll(
		func(pos int, mask uint8) bool {
			rec, err := descriptor.Encode(domain.ClassificationResult{Command: "dd", Level: domain.RiskHigh, Score: 0.7}, domain.PerfEstimate{})
			if err != nil {
				return false
			}
			rec[pos] ^= mask
			_, err = descriptor.Decode(rec[:])
			return err != nil
		},
		gen.IntRange(0, descriptor.Size-1),
		gen.UInt8Range(1, 255),
	))

	properties.TestingRun(t)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
