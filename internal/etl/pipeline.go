package etl

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metrolab/tripline/internal/model"
	"github.com/metrolab/tripline/internal/store"
)

// DefaultBatchSize bounds how many accepted rows accumulate in memory before
// a write to the store.
const DefaultBatchSize = 50000

// Pipeline wires the zone loader, validation engine, ledger writer, and
// persistence layer into one single-pass run.
type Pipeline struct {
	Store      store.Store
	TripsPath  string
	ZonesPath  string
	LedgerPath string
	Thresholds Thresholds
	BatchSize  int
}

// Run executes the full pipeline: load and replace zones, classify every
// trip row, replace the trips relation transactionally, rewrite the ledger,
// and record the run. Row-level problems are ledgered and never abort the
// run; missing inputs and store-write failures do, leaving the affected
// relation in its pre-run state.
func (p *Pipeline) Run(ctx context.Context) (*model.PipelineRun, error) {
	started := time.Now().UTC()

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	zones, zoneSet, err := LoadZones(p.ZonesPath)
	if err != nil {
		return nil, err
	}
	if err := p.Store.ReplaceZones(ctx, zones); err != nil {
		return nil, err
	}
	zap.L().Info("zones loaded", zap.Int("count", len(zones)))

	tripsFile, err := os.Open(p.TripsPath)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: open trips file %s", p.TripsPath)
	}
	defer tripsFile.Close() //nolint:errcheck

	ledger, err := NewLedger(p.LedgerPath)
	if err != nil {
		return nil, err
	}

	validator := NewValidator(p.Thresholds, zoneSet)

	loader, err := p.Store.BeginTripLoad(ctx)
	if err != nil {
		ledger.Close() //nolint:errcheck
		return nil, err
	}

	var accepted, total int64
	batch := make([]model.EnrichedTrip, 0, batchSize)

	abort := func(cause error) (*model.PipelineRun, error) {
		loader.Rollback(ctx) //nolint:errcheck
		ledger.Close()       //nolint:errcheck
		return nil, cause
	}

	rowCh, errCh := StreamTrips(ctx, tripsFile)
	for raw := range rowCh {
		total++

		trip, reason := validator.Classify(raw)
		if trip == nil {
			if err := ledger.Append(model.RejectionRecord{Raw: raw, Reason: reason}); err != nil {
				return abort(err)
			}
			continue
		}

		accepted++
		batch = append(batch, *trip)
		if len(batch) >= batchSize {
			if err := loader.Insert(ctx, batch); err != nil {
				return abort(err)
			}
			batch = batch[:0]
			zap.L().Debug("batch written", zap.Int64("processed", total))
		}
	}
	if err := <-errCh; err != nil {
		return abort(err)
	}

	if len(batch) > 0 {
		if err := loader.Insert(ctx, batch); err != nil {
			return abort(err)
		}
	}
	if err := loader.Commit(ctx); err != nil {
		ledger.Close() //nolint:errcheck
		return nil, err
	}
	if err := ledger.Close(); err != nil {
		return nil, err
	}

	run := &model.PipelineRun{
		ID:           uuid.New().String(),
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		TotalRows:    total,
		Accepted:     accepted,
		Rejected:     ledger.Count(),
		QualityScore: QualityScore(accepted, ledger.Count()),
		Breakdown:    ledger.Breakdown(),
	}
	if err := p.Store.RecordRun(ctx, run); err != nil {
		return nil, err
	}

	zap.L().Info("pipeline complete",
		zap.Int64("total", run.TotalRows),
		zap.Int64("accepted", run.Accepted),
		zap.Int64("rejected", run.Rejected),
		zap.Float64("quality_score", run.QualityScore),
	)
	return run, nil
}
