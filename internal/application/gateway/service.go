// Package gateway is the query surface consumers call before running a
// command: lookup, decide and explain.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/riskgate/internal/application/registry"
	"github.com/doeshing/riskgate/internal/audit"
	"github.com/doeshing/riskgate/internal/decision"
	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/ports"
)

// Service wires the registry to the decision engine. Journal and Metrics
// are optional.
type Service struct {
	Registry *registry.Registry
	Engine   *decision.Engine
	Journal  ports.DecisionJournal
	Metrics  ports.Metrics
	Logger   ports.Logger
	Clock    func() time.Time
}

func (s *Service) ready() error {
	if s.Registry == nil || s.Engine == nil || s.Logger == nil {
		return errors.New("gateway.Service dependencies not satisfied")
	}
	return nil
}

// resolve finds a command by its full name first, then by base name so
// "/usr/bin/rm" finds "rm". A quarantined record under either name is
// returned instead of an entry.
func (s *Service) resolve(name string) (registry.Entry, *registry.Quarantine) {
	name = domain.NormalizeCommand(name)
	candidates := []string{name}
	if base := path.Base(name); base != name {
		candidates = append(candidates, base)
	}
	for _, c := range candidates {
		if e, ok := s.Registry.Lookup(c); ok {
			return e, nil
		}
		if q, ok := s.Registry.Quarantined(c); ok {
			return registry.Entry{}, &q
		}
	}
	return registry.Entry{}, nil
}

// Lookup returns the validated descriptor for a command. A command whose
// stored record failed its integrity check is reported as an error wrapping
// the cause, never as unknown.
func (s *Service) Lookup(_ context.Context, name string) (descriptor.Descriptor, bool, error) {
	if err := s.ready(); err != nil {
		return descriptor.Descriptor{}, false, err
	}
	e, q := s.resolve(name)
	if q != nil {
		return descriptor.Descriptor{}, false, fmt.Errorf("%s: %w", q.Command, q.Err)
	}
	if e.Command == "" {
		return descriptor.Descriptor{}, false, nil
	}
	return e.Descriptor, true, nil
}

// Decide returns the verdict for one invocation. Unknown commands require
// human approval, quarantined ones are rejected; every decision is journaled
// when a journal is configured.
func (s *Service) Decide(ctx context.Context, name string, args []string) domain.Verdict {
	if err := s.ready(); err != nil {
		return domain.Verdict{
			Decision:       domain.DecisionReject,
			Reason:         err.Error(),
			StoredLevel:    domain.RiskCritical,
			EffectiveLevel: domain.RiskCritical,
		}
	}
	command := domain.NormalizeCommand(name)

	var v domain.Verdict
	e, q := s.resolve(command)
	switch {
	case q != nil:
		v = s.Engine.DecideCorrupt(ctx, command, q.Err)
	case e.Command != "":
		v = s.Engine.DecideContext(ctx, e.Descriptor.Bytes(), decision.Request{Command: command, Args: args})
	default:
		start := time.Now()
		v = s.Engine.DecideUnknown(command)
		if s.Metrics != nil {
			s.Metrics.RecordDecision(ctx, v.Decision, time.Since(start))
		}
		s.Logger.Warn("no descriptor for command", map[string]interface{}{
			"command": command,
		})
	}

	s.Logger.Debug("decision served", map[string]interface{}{
		"command":  command,
		"args":     strings.Join(args, " "),
		"decision": v.Decision.String(),
		"level":    v.EffectiveLevel.String(),
	})
	s.journal(ctx, command, args, v)
	return v
}

func (s *Service) journal(ctx context.Context, command string, args []string, v domain.Verdict) {
	if s.Journal == nil {
		return
	}
	now := time.Now
	if s.Clock != nil {
		now = s.Clock
	}
	rec := domain.NewDecisionRecord(uuid.NewString(), now().UTC(), command, args, v)
	if err := s.Journal.Append(ctx, rec); err != nil {
		s.Logger.Warn("decision journal append failed", map[string]interface{}{
			"command": command,
			"error":   err.Error(),
		})
	}
}

// Explain renders the audit view of a stored descriptor. The evidence trail
// stored with the record is used when present; otherwise only the record's
// projection is shown.
func (s *Service) Explain(_ context.Context, name string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	e, q := s.resolve(name)
	if q != nil {
		return "", fmt.Errorf("%s: %w", q.Command, q.Err)
	}
	if e.Command == "" {
		return "", &domain.UnknownCommandError{Command: domain.NormalizeCommand(name)}
	}
	if e.Audit != nil {
		return e.Audit.Text(), nil
	}
	return audit.Render(e.Descriptor.Classification(e.Command), e.Descriptor.Checksum), nil
}
