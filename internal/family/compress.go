// Package family compresses groups of related command descriptors into one
// consensus parent plus a small per-member delta, and expands them back
// without loss.
package family

import (
	"errors"
	"fmt"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
)

// ErrEmptyFamily is returned when compressing a family without members.
var ErrEmptyFamily = errors.New("family: no members")

// Member is one command of a family with its encoded descriptor.
type Member struct {
	Name   string
	Record []byte
}

// Family is a compressed family. Members and Deltas share indexes and keep
// the order given to Compress.
type Family struct {
	Name    string
	Parent  Parent
	Members []string
	Deltas  [][]byte
}

// Stats summarizes the space saved by compression.
type Stats struct {
	Members         int
	Patches         int
	Standalone      int
	OriginalBytes   int
	CompressedBytes int
	Ratio           float64
}

// Compressor builds families using a consensus ratio num/den.
type Compressor struct {
	num, den int
}

// NewCompressor builds a compressor from config, defaulting to strict majority.
func NewCompressor(cfg domain.FamilyConfig) *Compressor {
	num, den := cfg.ConsensusRatio()
	return &Compressor{num: num, den: den}
}

// Compress validates every member record and builds the parent and deltas.
// A single invalid member fails the whole family.
func (c *Compressor) Compress(name string, members []Member) (Family, error) {
	name = domain.NormalizeCommand(name)
	if name == "" {
		return Family{}, fmt.Errorf("family: empty family name")
	}
	if len(members) == 0 {
		return Family{}, fmt.Errorf("%w: %s", ErrEmptyFamily, name)
	}

	decoded := make([]descriptor.Descriptor, len(members))
	names := make([]string, len(members))
	seen := make(map[string]struct{}, len(members))
	for i, m := range members {
		memberName := domain.NormalizeCommand(m.Name)
		if _, dup := seen[memberName]; dup {
			return Family{}, fmt.Errorf("family %s: duplicate member %q", name, memberName)
		}
		seen[memberName] = struct{}{}
		d, err := descriptor.Decode(m.Record)
		if err != nil {
			return Family{}, fmt.Errorf("family %s: member %q: %w", name, memberName, err)
		}
		if !d.MatchesCommand(memberName) {
			return Family{}, fmt.Errorf("family %s: member %q: record hash %08x belongs to another command", name, memberName, d.CommandHash)
		}
		decoded[i] = d
		names[i] = memberName
	}

	parent := buildParent(name, decoded, c.num, c.den)
	deltas := make([][]byte, len(decoded))
	for i, d := range decoded {
		deltas[i] = encodeDelta(parent, d)
	}
	return Family{Name: name, Parent: parent, Members: names, Deltas: deltas}, nil
}

// Restore rebuilds a Family from its stored parts, validating the parent.
func Restore(name string, parentRecord []byte, members []string, deltas [][]byte) (Family, error) {
	if len(members) != len(deltas) {
		return Family{}, reconstructionError(name, "", fmt.Errorf("%w: %d members but %d deltas", ErrCorruptDelta, len(members), len(deltas)))
	}
	parent, err := DecodeParent(parentRecord)
	if err != nil {
		return Family{}, reconstructionError(name, "", err)
	}
	if !parent.MatchesFamily(name) {
		return Family{}, reconstructionError(name, "", fmt.Errorf("%w: parent hash %08x does not match family", ErrInvalidParent, parent.FamilyHash))
	}
	return Family{Name: domain.NormalizeCommand(name), Parent: parent, Members: members, Deltas: deltas}, nil
}

// Expand rebuilds the record of one member by name.
func (f Family) Expand(member string) (descriptor.Record, error) {
	member = domain.NormalizeCommand(member)
	for i, name := range f.Members {
		if name == member {
			return f.expandAt(i)
		}
	}
	return descriptor.Record{}, &domain.UnknownCommandError{Command: member}
}

// ExpandAll rebuilds every member record in member order.
func (f Family) ExpandAll() ([]descriptor.Record, error) {
	out := make([]descriptor.Record, len(f.Members))
	for i := range f.Members {
		rec, err := f.expandAt(i)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

func (f Family) expandAt(i int) (descriptor.Record, error) {
	rec, err := expandWith(f.Parent, f.Deltas[i])
	if err != nil {
		return descriptor.Record{}, reconstructionError(f.Name, f.Members[i], err)
	}
	d, err := descriptor.Decode(rec[:])
	if err != nil || !d.MatchesCommand(f.Members[i]) {
		return descriptor.Record{}, reconstructionError(f.Name, f.Members[i], fmt.Errorf("%w: expanded record belongs to another command", ErrCorruptDelta))
	}
	return rec, nil
}

// Stats reports member counts and the compression ratio.
func (f Family) Stats() Stats {
	s := Stats{
		Members:         len(f.Members),
		OriginalBytes:   len(f.Members) * descriptor.Size,
		CompressedBytes: ParentSize,
	}
	for _, d := range f.Deltas {
		s.CompressedBytes += len(d)
		if kind, err := KindOf(d); err == nil && kind == DeltaStandalone {
			s.Standalone++
		} else {
			s.Patches++
		}
	}
	if s.CompressedBytes > 0 {
		s.Ratio = float64(s.OriginalBytes) / float64(s.CompressedBytes)
	}
	return s
}
