// Package classify turns batches of evidence documents into stored
// descriptors.
package classify

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/doeshing/riskgate/internal/application/registry"
	"github.com/doeshing/riskgate/internal/classifier"
	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/ports"
)

// Service classifies documents on a bounded worker pool. Registry, Metrics
// and Limiter are optional; without a registry results are encoded only.
type Service struct {
	Classifier *classifier.Classifier
	Registry   *registry.Registry
	Metrics    ports.Metrics
	Logger     ports.Logger
	Workers    int
	Limiter    *rate.Limiter
}

// Outcome is the result for one document. Err is per command and never
// aborts the rest of the batch.
type Outcome struct {
	Command    string
	Family     string
	Result     domain.ClassificationResult
	Record     descriptor.Record
	// Superseded is set when the registry already holds a descriptor built
	// from a newer tool version.
	Superseded bool
	Err        error
}

// Summary aggregates a batch.
type Summary struct {
	Outcomes   []Outcome
	Succeeded  int
	Superseded int
	Failed     int
}

// NewLimiter paces calls at settings.RatePerSecond; nil means unpaced.
func NewLimiter(settings domain.ClassifySettings) *rate.Limiter {
	if settings.RatePerSecond <= 0 {
		return nil
	}
	burst := settings.Burst
	if burst <= 0 {
		burst = domain.DefaultClassifyBurst
	}
	return rate.NewLimiter(rate.Limit(settings.RatePerSecond), burst)
}

// ClassifyAll reads every document from source and classifies it.
func (s *Service) ClassifyAll(ctx context.Context, source ports.EvidenceSource) (Summary, error) {
	docs, err := source.Documents(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read evidence: %w", err)
	}
	return s.ClassifyDocuments(ctx, docs)
}

// ClassifyDocuments fans out over docs. Outcomes keep input order. The
// returned error is non-nil only when ctx ends before the batch completes.
func (s *Service) ClassifyDocuments(ctx context.Context, docs []domain.EvidenceDocument) (Summary, error) {
	if s.Classifier == nil || s.Logger == nil {
		return Summary{}, errors.New("classify.Service dependencies not satisfied")
	}
	workers := s.Workers
	if workers <= 0 {
		workers = domain.DefaultClassifyWorkers
	}

	outcomes := make([]Outcome, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			if s.Limiter != nil {
				if err := s.Limiter.Wait(gctx); err != nil {
					outcomes[i] = Outcome{Command: doc.Command, Family: doc.Family, Err: err}
					return nil
				}
			}
			outcomes[i] = s.classifyOne(gctx, doc)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Superseded:
			summary.Superseded++
		case o.Err != nil:
			summary.Failed++
		default:
			summary.Succeeded++
		}
	}
	s.Logger.Info("classification batch finished", map[string]interface{}{
		"documents":  len(docs),
		"succeeded":  summary.Succeeded,
		"superseded": summary.Superseded,
		"failed":     summary.Failed,
	})
	return summary, ctx.Err()
}

func (s *Service) classifyOne(ctx context.Context, doc domain.EvidenceDocument) Outcome {
	out := Outcome{
		Command: domain.NormalizeCommand(doc.Command),
		Family:  domain.NormalizeCommand(doc.Family),
	}
	result, err := s.Classifier.Classify(doc.Command, doc.Evidence)
	if err != nil {
		out.Err = err
		s.Logger.Warn("classification rejected", map[string]interface{}{
			"command": out.Command,
			"error":   err.Error(),
		})
		return out
	}
	out.Result = result
	rec, err := descriptor.Encode(result, doc.Perf)
	if err != nil {
		out.Err = fmt.Errorf("encode %s: %w", out.Command, err)
		return out
	}
	out.Record = rec
	if s.Metrics != nil {
		s.Metrics.RecordClassification(ctx, result.Level)
	}
	if s.Registry == nil {
		return out
	}
	err = s.Registry.Put(ctx, registry.PutRequest{
		Command:     out.Command,
		Family:      out.Family,
		ToolVersion: doc.ToolVersion,
		Record:      rec,
		Result:      &result,
	})
	if errors.Is(err, registry.ErrStaleVersion) {
		out.Superseded = true
		s.Logger.Info("newer descriptor already stored", map[string]interface{}{
			"command": out.Command,
			"version": doc.ToolVersion,
		})
		return out
	}
	out.Err = err
	return out
}
