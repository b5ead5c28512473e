// Package descriptor encodes classification results into fixed 24-byte
// records and decodes them back, refusing any record whose checksum fails.
//
// Layout (big-endian):
//
//	0..2   magic "TCP"
//	3      format version
//	4..7   command name hash
//	8      risk level
//	9      reserved
//	10..11 capability flags
//	12..13 score, quantized to 1/65535
//	14..15 destructiveness, quantized to 1/65535
//	16     execution time bucket (ms)
//	17     memory bucket (KiB)
//	18     output size bucket (bytes)
//	19     reserved
//	20..23 CRC-32 (IEEE) of bytes 0..19
package descriptor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/doeshing/riskgate/internal/domain"
)

const (
	// Size is the length of every descriptor record.
	Size = 24
	// Version is the format version written by Encode.
	Version = 0x02
	// ChecksumOffset is where the CRC-32 begins.
	ChecksumOffset = 20
)

// Magic prefixes every record.
var Magic = [3]byte{'T', 'C', 'P'}

// Field offsets, shared with the family compressor.
const (
	OffsetVersion         = 3
	OffsetHash            = 4
	OffsetLevel           = 8
	OffsetReservedA       = 9
	OffsetFlags           = 10
	OffsetScore           = 12
	OffsetDestructiveness = 14
	OffsetExec            = 16
	OffsetMemory          = 17
	OffsetOutput          = 18
	OffsetReservedB       = 19
)

// Decode errors. Checksum failures are reported as *domain.ChecksumMismatchError.
var (
	ErrInvalidLength      = errors.New("descriptor: invalid length")
	ErrBadMagic           = errors.New("descriptor: bad magic")
	ErrUnsupportedVersion = errors.New("descriptor: unsupported format version")
	ErrInvalidLevel       = errors.New("descriptor: invalid risk level")
)

// Record is the raw wire form.
type Record [Size]byte

// Descriptor is a decoded, checksum-validated record.
type Descriptor struct {
	Version         uint8
	CommandHash     uint32
	Level           domain.RiskLevel
	Flags           domain.FlagSet
	Score           uint16
	Destructiveness uint16
	Perf            domain.PerfBuckets
	Reserved        [2]byte
	Checksum        uint32
	Record          Record
}

// Encode packs a classification and its performance estimate into a record.
// It fails only on inputs the classifier never produces.
func Encode(result domain.ClassificationResult, perf domain.PerfEstimate) (Record, error) {
	var rec Record
	name := domain.NormalizeCommand(result.Command)
	if name == "" {
		return rec, fmt.Errorf("descriptor: encode: empty command name")
	}
	if !result.Level.Valid() {
		return rec, fmt.Errorf("descriptor: encode %q: %w", name, ErrInvalidLevel)
	}
	score, err := Quantize(result.Score)
	if err != nil {
		return rec, fmt.Errorf("descriptor: encode %q score: %w", name, err)
	}
	destructiveness, err := Quantize(result.Destructiveness)
	if err != nil {
		return rec, fmt.Errorf("descriptor: encode %q destructiveness: %w", name, err)
	}
	buckets := BucketPerf(perf)

	copy(rec[:3], Magic[:])
	rec[OffsetVersion] = Version
	binary.BigEndian.PutUint32(rec[OffsetHash:], NameHash(name))
	rec[OffsetLevel] = byte(result.Level)
	binary.BigEndian.PutUint16(rec[OffsetFlags:], uint16(result.Flags))
	binary.BigEndian.PutUint16(rec[OffsetScore:], score)
	binary.BigEndian.PutUint16(rec[OffsetDestructiveness:], destructiveness)
	rec[OffsetExec] = buckets.Exec
	rec[OffsetMemory] = buckets.Memory
	rec[OffsetOutput] = buckets.Output
	Seal(&rec)
	return rec, nil
}

// Seal writes the checksum of bytes 0..19 into bytes 20..23.
func Seal(rec *Record) {
	binary.BigEndian.PutUint32(rec[ChecksumOffset:], crc32.ChecksumIEEE(rec[:ChecksumOffset]))
}

// Decode validates and unpacks a record. The checksum is verified before any
// other field is interpreted; on error no partial descriptor is returned.
func Decode(data []byte) (Descriptor, error) {
	if len(data) != Size {
		return Descriptor{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(data), Size)
	}
	stored := binary.BigEndian.Uint32(data[ChecksumOffset:])
	computed := crc32.ChecksumIEEE(data[:ChecksumOffset])
	if stored != computed {
		return Descriptor{}, &domain.ChecksumMismatchError{Stored: stored, Computed: computed}
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrBadMagic, data[:3])
	}
	if data[OffsetVersion] != Version {
		return Descriptor{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedVersion, data[OffsetVersion])
	}
	level := domain.RiskLevel(data[OffsetLevel])
	if !level.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %d", ErrInvalidLevel, data[OffsetLevel])
	}

	d := Descriptor{
		Version:         data[OffsetVersion],
		CommandHash:     binary.BigEndian.Uint32(data[OffsetHash:]),
		Level:           level,
		Flags:           domain.FlagSet(binary.BigEndian.Uint16(data[OffsetFlags:])),
		Score:           binary.BigEndian.Uint16(data[OffsetScore:]),
		Destructiveness: binary.BigEndian.Uint16(data[OffsetDestructiveness:]),
		Perf: domain.PerfBuckets{
			Exec:   data[OffsetExec],
			Memory: data[OffsetMemory],
			Output: data[OffsetOutput],
		},
		Reserved: [2]byte{data[OffsetReservedA], data[OffsetReservedB]},
		Checksum: stored,
	}
	copy(d.Record[:], data)
	return d, nil
}

// Verify reports whether data is a valid descriptor without returning it.
func Verify(data []byte) error {
	_, err := Decode(data)
	return err
}

// MatchesCommand reports whether the stored hash belongs to name.
func (d Descriptor) MatchesCommand(name string) bool {
	return d.CommandHash == NameHash(name)
}

// ScoreValue returns the dequantized risk score.
func (d Descriptor) ScoreValue() float64 {
	return Dequantize(d.Score)
}

// DestructivenessValue returns the dequantized destructiveness.
func (d Descriptor) DestructivenessValue() float64 {
	return Dequantize(d.Destructiveness)
}

// Classification projects the record back to a classification result. The
// evidence list is not stored and comes back empty.
func (d Descriptor) Classification(command string) domain.ClassificationResult {
	return domain.ClassificationResult{
		Command:         domain.NormalizeCommand(command),
		Level:           d.Level,
		Score:           d.ScoreValue(),
		Destructiveness: d.DestructivenessValue(),
		Flags:           d.Flags,
		Perf:            d.Perf,
	}
}

// Bytes returns a copy of the raw record.
func (d Descriptor) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d.Record[:])
	return out
}

// Quantize maps a value in [0,1] onto 16 bits.
func Quantize(v float64) (uint16, error) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("value %g outside [0,1]", v)
	}
	return uint16(math.Round(v * math.MaxUint16)), nil
}

// Dequantize is the inverse of Quantize up to 1/65535.
func Dequantize(q uint16) float64 {
	return float64(q) / math.MaxUint16
}
