package family

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
)

const (
	// ParentSize is the length of a parent record.
	ParentSize = 20
	// ParentVersion distinguishes parent records from member descriptors.
	ParentVersion = 0x03

	parentChecksumOffset = 16
)

// Parent errors.
var (
	ErrInvalidParent = errors.New("family: invalid parent record")
)

// Parent is the consensus descriptor shared by every member of a family.
//
// Layout (big-endian): magic "TCP", version 0x03, family hash (4), baseline
// flags (2), level (1), member count (1), exec/memory/output buckets (3),
// reserved (1), CRC-32 of bytes 0..15 (4).
type Parent struct {
	FamilyHash  uint32
	Baseline    domain.FlagSet
	Level       domain.RiskLevel
	MemberCount uint8
	Perf        domain.PerfBuckets
	Checksum    uint32
	Record      [ParentSize]byte
}

func encodeParent(p Parent) [ParentSize]byte {
	var rec [ParentSize]byte
	copy(rec[:3], descriptor.Magic[:])
	rec[3] = ParentVersion
	binary.BigEndian.PutUint32(rec[4:], p.FamilyHash)
	binary.BigEndian.PutUint16(rec[8:], uint16(p.Baseline))
	rec[10] = byte(p.Level)
	rec[11] = p.MemberCount
	rec[12] = p.Perf.Exec
	rec[13] = p.Perf.Memory
	rec[14] = p.Perf.Output
	binary.BigEndian.PutUint32(rec[parentChecksumOffset:], crc32.ChecksumIEEE(rec[:parentChecksumOffset]))
	return rec
}

// DecodeParent validates and unpacks a parent record, checksum first.
func DecodeParent(data []byte) (Parent, error) {
	if len(data) != ParentSize {
		return Parent{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidParent, len(data), ParentSize)
	}
	stored := binary.BigEndian.Uint32(data[parentChecksumOffset:])
	computed := crc32.ChecksumIEEE(data[:parentChecksumOffset])
	if stored != computed {
		return Parent{}, &domain.ChecksumMismatchError{Stored: stored, Computed: computed}
	}
	if data[0] != descriptor.Magic[0] || data[1] != descriptor.Magic[1] || data[2] != descriptor.Magic[2] {
		return Parent{}, fmt.Errorf("%w: bad magic", ErrInvalidParent)
	}
	if data[3] != ParentVersion {
		return Parent{}, fmt.Errorf("%w: version 0x%02x", ErrInvalidParent, data[3])
	}
	level := domain.RiskLevel(data[10])
	if !level.Valid() {
		return Parent{}, fmt.Errorf("%w: level %d", ErrInvalidParent, data[10])
	}
	p := Parent{
		FamilyHash:  binary.BigEndian.Uint32(data[4:]),
		Baseline:    domain.FlagSet(binary.BigEndian.Uint16(data[8:])),
		Level:       level,
		MemberCount: data[11],
		Perf:        domain.PerfBuckets{Exec: data[12], Memory: data[13], Output: data[14]},
		Checksum:    stored,
	}
	copy(p.Record[:], data)
	return p, nil
}

// MatchesFamily reports whether the parent belongs to the named family.
func (p Parent) MatchesFamily(name string) bool {
	return p.FamilyHash == descriptor.NameHash(name)
}

// buildParent derives consensus values from decoded members. A flag joins
// the baseline only when count*den > n*num. Level and perf buckets take the
// modal value, ties going to the higher value.
func buildParent(family string, members []descriptor.Descriptor, num, den int) Parent {
	n := len(members)
	var flagCounts [domain.FlagCount]int
	var levelCounts [int(domain.MaxRiskLevel) + 1]int
	var execCounts, memCounts, outCounts [256]int
	for _, m := range members {
		for _, f := range m.Flags.Flags() {
			flagCounts[f]++
		}
		levelCounts[m.Level]++
		execCounts[m.Perf.Exec]++
		memCounts[m.Perf.Memory]++
		outCounts[m.Perf.Output]++
	}

	var baseline domain.FlagSet
	for bit, count := range flagCounts {
		if count*den > n*num {
			baseline = baseline.With(domain.CapabilityFlag(bit))
		}
	}

	count := n
	if count > 255 {
		count = 255
	}
	p := Parent{
		FamilyHash:  descriptor.NameHash(family),
		Baseline:    baseline,
		Level:       domain.RiskLevel(modeHigh(levelCounts[:])),
		MemberCount: uint8(count),
		Perf: domain.PerfBuckets{
			Exec:   uint8(modeHigh(execCounts[:])),
			Memory: uint8(modeHigh(memCounts[:])),
			Output: uint8(modeHigh(outCounts[:])),
		},
	}
	p.Record = encodeParent(p)
	p.Checksum = binary.BigEndian.Uint32(p.Record[parentChecksumOffset:])
	return p
}

// modeHigh returns the index with the highest count, preferring the
// larger index on ties.
func modeHigh(counts []int) int {
	best := 0
	for i, c := range counts {
		if c >= counts[best] && c > 0 {
			best = i
		}
	}
	return best
}
