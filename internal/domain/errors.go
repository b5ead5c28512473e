package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Typed errors below unwrap to
// one of these so callers can branch with errors.Is.
var (
	ErrMalformedEvidence    = errors.New("malformed evidence")
	ErrChecksumMismatch     = errors.New("descriptor checksum mismatch")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrFamilyReconstruction = errors.New("family reconstruction failed")
)

// MalformedEvidenceError pinpoints the invalid input. Index is -1 when the
// problem is not tied to a single evidence item.
type MalformedEvidenceError struct {
	Command string
	Index   int
	Field   string
	Reason  string
}

func (e *MalformedEvidenceError) Error() string {
	where := e.Field
	if e.Index >= 0 {
		where = fmt.Sprintf("evidence[%d].%s", e.Index, e.Field)
	}
	if e.Command != "" {
		return fmt.Sprintf("%s: %s: %s: %s", ErrMalformedEvidence, e.Command, where, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedEvidence, where, e.Reason)
}

func (e *MalformedEvidenceError) Unwrap() error { return ErrMalformedEvidence }

// ChecksumMismatchError reports the stored and recomputed checksums.
type ChecksumMismatchError struct {
	Stored   uint32
	Computed uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: stored %08x, computed %08x", ErrChecksumMismatch, e.Stored, e.Computed)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// FamilyReconstructionError reports which member of which family failed.
type FamilyReconstructionError struct {
	Family string
	Member string
	Err    error
}

func (e *FamilyReconstructionError) Error() string {
	msg := fmt.Sprintf("%s: family %q", ErrFamilyReconstruction, e.Family)
	if e.Member != "" {
		msg += fmt.Sprintf(" member %q", e.Member)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *FamilyReconstructionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFamilyReconstruction}
	}
	return []error{ErrFamilyReconstruction, e.Err}
}

// UnknownCommandError names the command that has no descriptor.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownCommand, e.Command)
}

func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }
