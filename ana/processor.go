// Cross-event parallel analysis driver. One EventInfo per event; instances
// never share mutable state, so events fan out freely across workers.

package ana

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EventResult holds the derived scalars of one analyzed event.
type EventResult struct {
	ID           EventID
	HasBJetPair  bool
	HasVBFPair   bool
	NBTaggedJets int
	HiggsBBMass  float64
	KinFitMass   float64
	KinFitProb   float64
	MT2          float64
	HT           float64
}

// Report aggregates a processor run.
type Report struct {
	JobID        string
	Processed    int
	Skipped      int
	WithBJetPair int
	WithVBFPair  int
	Results      []EventResult
}

// Processor fans the derived-object analysis out over events.
type Processor struct {
	Period   Period
	Ordering JetOrdering
	Workers  int // 0 = GOMAXPROCS
	Summary  *SummaryInfo
	Solver   FitSolver
	Log      *logrus.Logger
}

// Run analyzes the first candidate pair of every record. Events without
// candidate pairs are skipped with a warning. Legitimate undefined-pair
// outcomes are recorded via the predicates; only structural errors abort.
func (p *Processor) Run(ctx context.Context, records []*EventRecord) (*Report, error) {
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	jobID := uuid.NewString()
	log.WithFields(logrus.Fields{
		"job":      jobID,
		"events":   len(records),
		"workers":  workers,
		"period":   p.Period.String(),
		"ordering": p.Ordering.String(),
	}).Info("starting analysis")

	results := make([]*EventResult, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if rec.NPairs() == 0 {
				log.WithField("event", rec.ID.String()).Warn("no candidate pairs, skipping")
				return nil
			}
			result, err := p.analyzeEvent(rec)
			if err != nil {
				return fmt.Errorf("event %s: %w", rec.ID, err)
			}
			results[i] = &result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{JobID: jobID}
	for _, result := range results {
		if result == nil {
			report.Skipped++
			continue
		}
		report.Processed++
		if result.HasBJetPair {
			report.WithBJetPair++
		}
		if result.HasVBFPair {
			report.WithVBFPair++
		}
		report.Results = append(report.Results, *result)
	}
	log.WithFields(logrus.Fields{
		"job":         jobID,
		"processed":   report.Processed,
		"skipped":     report.Skipped,
		"b_jet_pairs": report.WithBJetPair,
		"vbf_pairs":   report.WithVBFPair,
	}).Info("analysis complete")
	return report, nil
}

func (p *Processor) analyzeEvent(rec *EventRecord) (EventResult, error) {
	info, err := NewEventInfo(rec, 0, p.Period, p.Ordering, EventOptions{
		Summary: p.Summary,
		Solver:  p.Solver,
	})
	if err != nil {
		return EventResult{}, err
	}

	result := EventResult{
		ID:           info.EventID(),
		HasBJetPair:  info.HasBJetPair(),
		HasVBFPair:   info.HasVBFPair(),
		NBTaggedJets: info.Selection().NBTaggedJets,
	}
	result.HT, err = info.HT(true, true)
	if err != nil {
		return EventResult{}, err
	}
	if !result.HasBJetPair {
		return result, nil
	}

	hbb, err := info.HiggsBB()
	if err != nil {
		return EventResult{}, err
	}
	result.HiggsBBMass = hbb.Momentum().M()

	fit, err := info.KinFitResult()
	switch {
	case err == nil:
		result.KinFitMass = fit.Mass
		result.KinFitProb = fit.Probability
	case errors.Is(err, ErrMissingPrerequisite):
		// No side-table entry and no solver configured: leave zeroed.
	default:
		return EventResult{}, err
	}

	result.MT2, err = info.MT2()
	if err != nil {
		return EventResult{}, err
	}
	return result, nil
}
