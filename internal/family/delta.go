package family

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
)

// Patch header bits. The high bit marks a patch; a standalone delta starts
// with the 'T' of the descriptor magic instead.
const (
	patchMarker     = 0x80
	patchFlags      = 1 << 0
	patchLevel      = 1 << 1
	patchPerf       = 1 << 2
	patchScores     = 1 << 3
	patchKnownBits  = patchFlags | patchLevel | patchPerf | patchScores
	patchFixedBytes = 1 + 4 + 4
)

// ErrCorruptDelta reports a delta that cannot be parsed.
var ErrCorruptDelta = errors.New("family: corrupt delta")

// DeltaKind distinguishes patch and standalone deltas.
type DeltaKind int

const (
	DeltaPatch DeltaKind = iota
	DeltaStandalone
)

func (k DeltaKind) String() string {
	if k == DeltaStandalone {
		return "standalone"
	}
	return "patch"
}

// KindOf classifies a raw delta by its first byte.
func KindOf(delta []byte) (DeltaKind, error) {
	switch {
	case len(delta) == 0:
		return 0, fmt.Errorf("%w: empty", ErrCorruptDelta)
	case delta[0] == descriptor.Magic[0]:
		return DeltaStandalone, nil
	case delta[0]&patchMarker != 0:
		return DeltaPatch, nil
	default:
		return 0, fmt.Errorf("%w: unknown header 0x%02x", ErrCorruptDelta, delta[0])
	}
}

// encodeDelta emits the smallest lossless delta for member against parent.
func encodeDelta(p Parent, member descriptor.Descriptor) []byte {
	if member.Reserved != [2]byte{} {
		return member.Bytes()
	}

	var header byte = patchMarker
	body := make([]byte, 0, descriptor.Size)
	body = binary.BigEndian.AppendUint32(body, member.CommandHash)
	if diff := member.Flags ^ p.Baseline; diff != 0 {
		header |= patchFlags
		body = binary.BigEndian.AppendUint16(body, uint16(diff))
	}
	if member.Level != p.Level {
		header |= patchLevel
		body = append(body, byte(member.Level))
	}
	if member.Perf != p.Perf {
		header |= patchPerf
		body = append(body, member.Perf.Exec, member.Perf.Memory, member.Perf.Output)
	}
	if member.Score != 0 || member.Destructiveness != 0 {
		header |= patchScores
		body = binary.BigEndian.AppendUint16(body, member.Score)
		body = binary.BigEndian.AppendUint16(body, member.Destructiveness)
	}
	body = binary.BigEndian.AppendUint32(body, member.Checksum)

	patch := append([]byte{header}, body...)
	if len(patch) >= descriptor.Size {
		return member.Bytes()
	}
	return patch
}

// Expand rebuilds a member's 24-byte record from the parent record and its
// delta. Any inconsistency yields *domain.FamilyReconstructionError.
func Expand(parentRecord, delta []byte) (descriptor.Record, error) {
	parent, err := DecodeParent(parentRecord)
	if err != nil {
		return descriptor.Record{}, reconstructionError("", "", err)
	}
	return expandWith(parent, delta)
}

func expandWith(p Parent, delta []byte) (descriptor.Record, error) {
	var rec descriptor.Record
	kind, err := KindOf(delta)
	if err != nil {
		return rec, reconstructionError("", "", err)
	}
	if kind == DeltaStandalone {
		d, err := descriptor.Decode(delta)
		if err != nil {
			return rec, reconstructionError("", "", err)
		}
		return d.Record, nil
	}

	header := delta[0]
	if header&^(patchMarker|patchKnownBits) != 0 {
		return rec, reconstructionError("", "", fmt.Errorf("%w: unknown header bits 0x%02x", ErrCorruptDelta, header))
	}
	want := patchFixedBytes
	if header&patchFlags != 0 {
		want += 2
	}
	if header&patchLevel != 0 {
		want++
	}
	if header&patchPerf != 0 {
		want += 3
	}
	if header&patchScores != 0 {
		want += 4
	}
	if len(delta) != want {
		return rec, reconstructionError("", "", fmt.Errorf("%w: got %d bytes, header requires %d", ErrCorruptDelta, len(delta), want))
	}

	copy(rec[:3], descriptor.Magic[:])
	rec[descriptor.OffsetVersion] = descriptor.Version
	copy(rec[descriptor.OffsetHash:descriptor.OffsetHash+4], delta[1:5])
	pos := 5

	flags := p.Baseline
	if header&patchFlags != 0 {
		flags ^= domain.FlagSet(binary.BigEndian.Uint16(delta[pos:]))
		pos += 2
	}
	binary.BigEndian.PutUint16(rec[descriptor.OffsetFlags:], uint16(flags))

	rec[descriptor.OffsetLevel] = byte(p.Level)
	if header&patchLevel != 0 {
		rec[descriptor.OffsetLevel] = delta[pos]
		pos++
	}

	rec[descriptor.OffsetExec], rec[descriptor.OffsetMemory], rec[descriptor.OffsetOutput] = p.Perf.Exec, p.Perf.Memory, p.Perf.Output
	if header&patchPerf != 0 {
		rec[descriptor.OffsetExec], rec[descriptor.OffsetMemory], rec[descriptor.OffsetOutput] = delta[pos], delta[pos+1], delta[pos+2]
		pos += 3
	}

	if header&patchScores != 0 {
		copy(rec[descriptor.OffsetScore:descriptor.OffsetScore+4], delta[pos:pos+4])
		pos += 4
	}

	// The member's own checksum travels in the patch; Decode recomputes it.
	copy(rec[descriptor.ChecksumOffset:], delta[pos:pos+4])
	if _, err := descriptor.Decode(rec[:]); err != nil {
		return descriptor.Record{}, reconstructionError("", "", err)
	}
	return rec, nil
}

func reconstructionError(family, member string, err error) error {
	var existing *domain.FamilyReconstructionError
	if errors.As(err, &existing) {
		if existing.Family == "" {
			existing.Family = family
		}
		if existing.Member == "" {
			existing.Member = member
		}
		return existing
	}
	return &domain.FamilyReconstructionError{Family: family, Member: member, Err: err}
}
