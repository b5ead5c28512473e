package domain

import "time"

// PerfEstimate is a raw performance estimate supplied alongside evidence.
type PerfEstimate struct {
	ExecTime    time.Duration `json:"exec_time" yaml:"exec_time"`
	MemoryBytes uint64        `json:"memory_bytes" yaml:"memory_bytes"`
	OutputBytes uint64        `json:"output_bytes" yaml:"output_bytes"`
}

// PerfBuckets holds log2-bucketed performance estimates as stored in a
// descriptor: execution time in milliseconds, memory in KiB, output in bytes.
type PerfBuckets struct {
	Exec   uint8 `json:"exec"`
	Memory uint8 `json:"memory"`
	Output uint8 `json:"output"`
}

// ClassificationResult is the classifier's verdict on one command. It is
// superseded, never mutated, when the command is re-classified.
type ClassificationResult struct {
	Command         string         `json:"command"`
	Level           RiskLevel      `json:"level"`
	Score           float64        `json:"score"`
	Destructiveness float64        `json:"destructiveness"`
	Flags           FlagSet        `json:"flags"`
	Evidence        []EvidenceItem `json:"evidence"`
	// Contributions[i] is the clamped weighted contribution of Evidence[i].
	Contributions   []float64      `json:"contributions"`
	Perf            PerfBuckets    `json:"perf"`
}

// Unverified reports whether the result was built without evidence.
func (r ClassificationResult) Unverified() bool {
	return r.Flags.Has(FlagUnverified)
}
