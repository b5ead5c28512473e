// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// The application core (classifier, codec, family compressor, decision engine)
// depends only on these contracts. Storage backends, the config file, the
// decision journal and telemetry are adapters living in internal/infrastructure.
package ports

import (
	"context"
	"time"

	"github.com/doeshing/riskgate/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.riskgate/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// StoredDescriptor is one persisted 24-byte record plus the metadata the
// registry needs to decide whether a newer classification supersedes it.
// Audit is the canonical audit JSON of the classification behind Record;
// it may be empty for records written without one.
type StoredDescriptor struct {
	Command     string
	Family      string
	ToolVersion string
	Record      []byte
	Audit       []byte
	UpdatedAt   time.Time
}

// StoredFamily is one persisted compressed family: the 20-byte parent and
// one delta per member, in member order.
type StoredFamily struct {
	Family    string
	Parent    []byte
	Members   []string
	Deltas    [][]byte
	UpdatedAt time.Time
}

// DescriptorStore persists descriptors keyed by normalized command name.
// Get returns found=false rather than an error when the command is absent.
type DescriptorStore interface {
	Put(ctx context.Context, d StoredDescriptor) error
	Get(ctx context.Context, command string) (StoredDescriptor, bool, error)
	List(ctx context.Context) ([]StoredDescriptor, error)
	Delete(ctx context.Context, command string) error
}

// FamilyStore persists compressed families keyed by family name.
type FamilyStore interface {
	PutFamily(ctx context.Context, f StoredFamily) error
	GetFamily(ctx context.Context, family string) (StoredFamily, bool, error)
	ListFamilies(ctx context.Context) ([]StoredFamily, error)
}

// Store is the combination most backends implement.
type Store interface {
	DescriptorStore
	FamilyStore
	Close() error
}

// DecisionJournal records every decision served by the gateway.
type DecisionJournal interface {
	Append(ctx context.Context, record domain.DecisionRecord) error
	Recent(ctx context.Context, limit int) ([]domain.DecisionRecord, error)
	Prune(ctx context.Context, before time.Time) (int, error)
}

// EvidenceSource yields evidence documents for batch classification.
type EvidenceSource interface {
	Documents(ctx context.Context) ([]domain.EvidenceDocument, error)
}

// Metrics receives decision-path measurements.
type Metrics interface {
	RecordDecision(ctx context.Context, decision domain.Decision, elapsed time.Duration)
	RecordIntegrityViolation(ctx context.Context, command string)
	RecordClassification(ctx context.Context, level domain.RiskLevel)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
