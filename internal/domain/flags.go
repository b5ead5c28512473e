package domain

import (
	"fmt"
	"math/bits"
	"strings"
)

// CapabilityFlag is a bit position inside a FlagSet.
type CapabilityFlag uint8

const (
	FlagDestructive CapabilityFlag = iota
	FlagRequiresElevatedPrivilege
	FlagModifiesFiles
	FlagNetworkAccess
	FlagRecursive
	FlagForcedOperation
	FlagSpawnsProcesses
	FlagMountsFilesystems
	FlagModifiesSystem
	FlagDeletesFiles
	FlagIrreversible
	FlagProcessControl
	FlagPrivilegeEscalation
	FlagReadsSensitiveData
	flagReserved14
	// FlagUnverified marks a result built without any documentation evidence.
	FlagUnverified
)

// FlagCount is the number of bits a FlagSet can carry.
const FlagCount = 16

var flagNames = [FlagCount]string{
	FlagDestructive:               "destructive",
	FlagRequiresElevatedPrivilege: "requires-elevated-privilege",
	FlagModifiesFiles:             "modifies-files",
	FlagNetworkAccess:             "network-access",
	FlagRecursive:                 "recursive",
	FlagForcedOperation:           "forced-operation",
	FlagSpawnsProcesses:           "spawns-processes",
	FlagMountsFilesystems:         "mounts-filesystems",
	FlagModifiesSystem:            "modifies-system",
	FlagDeletesFiles:              "deletes-files",
	FlagIrreversible:              "irreversible",
	FlagProcessControl:            "process-control",
	FlagPrivilegeEscalation:       "privilege-escalation",
	FlagReadsSensitiveData:        "reads-sensitive-data",
	flagReserved14:                "reserved-14",
	FlagUnverified:                "unverified",
}

// String returns the kebab-case flag name.
func (f CapabilityFlag) String() string {
	if int(f) >= FlagCount {
		return fmt.Sprintf("flag-%d", uint8(f))
	}
	return flagNames[f]
}

// ParseCapabilityFlag resolves a flag by name.
func ParseCapabilityFlag(name string) (CapabilityFlag, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	needle = strings.ReplaceAll(needle, "_", "-")
	for i, candidate := range flagNames {
		if candidate == needle && CapabilityFlag(i) != flagReserved14 {
			return CapabilityFlag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown capability flag %q", name)
}

// FlagSet is the 16-bit capability bitmap carried by every descriptor.
type FlagSet uint16

// NewFlagSet builds a set from individual flags.
func NewFlagSet(flags ...CapabilityFlag) FlagSet {
	var set FlagSet
	for _, f := range flags {
		set = set.With(f)
	}
	return set
}

// Has reports whether f is set.
func (s FlagSet) Has(f CapabilityFlag) bool {
	return int(f) < FlagCount && s&(1<<f) != 0
}

// With returns a copy of s with f set.
func (s FlagSet) With(f CapabilityFlag) FlagSet {
	if int(f) >= FlagCount {
		return s
	}
	return s | 1<<f
}

// Without returns a copy of s with f cleared.
func (s FlagSet) Without(f CapabilityFlag) FlagSet {
	if int(f) >= FlagCount {
		return s
	}
	return s &^ (1 << f)
}

// Len returns the number of set flags.
func (s FlagSet) Len() int {
	return bits.OnesCount16(uint16(s))
}

// Flags lists the set flags in bit order.
func (s FlagSet) Flags() []CapabilityFlag {
	out := make([]CapabilityFlag, 0, s.Len())
	for i := 0; i < FlagCount; i++ {
		if s.Has(CapabilityFlag(i)) {
			out = append(out, CapabilityFlag(i))
		}
	}
	return out
}

// Names lists the set flag names in bit order.
func (s FlagSet) Names() []string {
	flags := s.Flags()
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.String()
	}
	return names
}

// String renders the set as "a|b|c", or "none".
func (s FlagSet) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), "|")
}
