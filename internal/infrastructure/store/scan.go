package store

import (
	"context"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/family"
	"github.com/doeshing/riskgate/internal/ports"
)

// Finding is one stored record that failed validation.
type Finding struct {
	Kind string // "descriptor" or "family"
	Name string
	Err  error
}

// ScanReport summarizes an integrity scan.
type ScanReport struct {
	Descriptors int
	Families    int
	Findings    []Finding
}

// Clean reports whether nothing failed.
func (r ScanReport) Clean() bool {
	return len(r.Findings) == 0
}

// Scan re-validates every stored descriptor checksum and expands every
// stored family.
func Scan(ctx context.Context, s ports.Store) (ScanReport, error) {
	var report ScanReport
	descriptors, err := s.List(ctx)
	if err != nil {
		return report, err
	}
	for _, d := range descriptors {
		report.Descriptors++
		if err := descriptor.Verify(d.Record); err != nil {
			report.Findings = append(report.Findings, Finding{Kind: "descriptor", Name: d.Command, Err: err})
		}
	}
	families, err := s.ListFamilies(ctx)
	if err != nil {
		return report, err
	}
	for _, f := range families {
		report.Families++
		fam, err := family.Restore(f.Family, f.Parent, f.Members, f.Deltas)
		if err == nil {
			_, err = fam.ExpandAll()
		}
		if err != nil {
			report.Findings = append(report.Findings, Finding{Kind: "family", Name: f.Family, Err: err})
		}
	}
	return report, nil
}

// GetVerified reads one descriptor and validates its checksum before
// returning it.
func GetVerified(ctx context.Context, s ports.DescriptorStore, command string) (descriptor.Descriptor, bool, error) {
	stored, ok, err := s.Get(ctx, command)
	if err != nil || !ok {
		return descriptor.Descriptor{}, ok, err
	}
	d, err := descriptor.Decode(stored.Record)
	if err != nil {
		return descriptor.Descriptor{}, true, err
	}
	return d, true, nil
}
