package descriptor

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/riskgate/internal/domain"
)

func sampleResult() (domain.ClassificationResult, domain.PerfEstimate) {
	result := domain.ClassificationResult{
		Command:         "rm",
		Level:           domain.RiskCritical,
		Score:           0.855,
		Destructiveness: 0.855,
		Flags:           domain.NewFlagSet(domain.FlagDestructive, domain.FlagDeletesFiles, domain.FlagIrreversible),
	}
	perf := domain.PerfEstimate{
		ExecTime:    40 * time.Millisecond,
		MemoryBytes: 2 << 20,
		OutputBytes: 0,
	}
	return result, perf
}

func TestEncodeLayout(t *testing.T) {
	result, perf := sampleResult()
	rec, err := Encode(result, perf)
	require.NoError(t, err)

	assert.Equal(t, []byte("TCP"), rec[:3])
	assert.Equal(t, byte(Version), rec[OffsetVersion])
	assert.Equal(t, NameHash("rm"), binary.BigEndian.Uint32(rec[OffsetHash:]))
	assert.Equal(t, byte(domain.RiskCritical), rec[OffsetLevel])
	assert.Zero(t, rec[OffsetReservedA])
	assert.Zero(t, rec[OffsetReservedB])
	assert.Equal(t, uint16(result.Flags), binary.BigEndian.Uint16(rec[OffsetFlags:]))
	assert.Equal(t, uint16(56032), binary.BigEndian.Uint16(rec[OffsetScore:]))
	// 40ms -> bit length 6, 2MiB = 2048KiB -> bit length 12, 0 bytes -> 0
	assert.Equal(t, byte(6), rec[OffsetExec])
	assert.Equal(t, byte(12), rec[OffsetMemory])
	assert.Equal(t, byte(0), rec[OffsetOutput])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	result, perf := sampleResult()
	rec, err := Encode(result, perf)
	require.NoError(t, err)

	d, err := Decode(rec[:])
	require.NoError(t, err)
	assert.True(t, d.MatchesCommand("rm"))
	assert.False(t, d.MatchesCommand("rmdir"))

	back := d.Classification("rm")
	assert.Equal(t, result.Command, back.Command)
	assert.Equal(t, result.Level, back.Level)
	assert.Equal(t, result.Flags, back.Flags)
	assert.InDelta(t, result.Score, back.Score, 1.0/65535)
	assert.InDelta(t, result.Destructiveness, back.Destructiveness, 1.0/65535)
	assert.Equal(t, BucketPerf(perf), back.Perf)

	again, err := Encode(back, EstimateFromBuckets(back.Perf))
	require.NoError(t, err)
	assert.Equal(t, rec, again, "re-encoding a decoded descriptor must be stable")
}

func TestEncodeIsDeterministic(t *testing.T) {
	result, perf := sampleResult()
	a, err := Encode(result, perf)
	require.NoError(t, err)
	b, err := Encode(result, perf)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeNormalizesName(t *testing.T) {
	result, perf := sampleResult()
	result.Command = "cafe\u0301"
	decomposed, err := Encode(result, perf)
	require.NoError(t, err)
	result.Command = "  caf\u00e9 "
	composed, err := Encode(result, perf)
	require.NoError(t, err)
	assert.Equal(t, decomposed, composed)
}

func TestEncodeRejectsBadInput(t *testing.T) {
	result, perf := sampleResult()

	empty := result
	empty.Command = " "
	_, err := Encode(empty, perf)
	assert.Error(t, err)

	level := result
	level.Level = 9
	_, err = Encode(level, perf)
	assert.ErrorIs(t, err, ErrInvalidLevel)

	score := result
	score.Score = 1.2
	_, err = Encode(score, perf)
	assert.Error(t, err)
}

func TestDecodeRejectsEverySingleBitFlip(t *testing.T) {
	result, perf := sampleResult()
	rec, err := Encode(result, perf)
	require.NoError(t, err)

	for i := 0; i < Size*8; i++ {
		corrupt := rec
		corrupt[i/8] ^= 1 << (i % 8)
		_, err := Decode(corrupt[:])
		if !errors.Is(err, domain.ErrChecksumMismatch) {
			t.Fatalf("bit %d: expected checksum mismatch, got %v", i, err)
		}
	}
}

func TestDecodeStructuralErrors(t *testing.T) {
	result, perf := sampleResult()
	rec, err := Encode(result, perf)
	require.NoError(t, err)

	tests := []struct {
		name string
		edit func(r *Record)
		want error
	}{
		{"bad magic", func(r *Record) { r[0] = 'X' }, ErrBadMagic},
		{"old version", func(r *Record) { r[OffsetVersion] = 0x01 }, ErrUnsupportedVersion},
		{"level out of range", func(r *Record) { r[OffsetLevel] = 5 }, ErrInvalidLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := rec
			tt.edit(&mutated)
			Seal(&mutated)
			_, err := Decode(mutated[:])
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = Decode(rec[:23])
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = Decode(append(rec[:], 0))
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestDecodeChecksumErrorCarriesValues(t *testing.T) {
	result, perf := sampleResult()
	rec, err := Encode(result, perf)
	require.NoError(t, err)
	rec[OffsetLevel] = byte(domain.RiskSafe)

	_, err = Decode(rec[:])
	var mismatch *domain.ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.NotEqual(t, mismatch.Stored, mismatch.Computed)
	assert.Equal(t, binary.BigEndian.Uint32(rec[ChecksumOffset:]), mismatch.Stored)
}

func TestVerify(t *testing.T) {
	result, perf := sampleResult()
	rec, err := Encode(result, perf)
	require.NoError(t, err)
	assert.NoError(t, Verify(rec[:]))
	assert.Error(t, Verify(nil))
}
