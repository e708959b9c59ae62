// Package orchestrator drives evaluations across (task, report) pairs,
// persisting incremental records so interrupted runs resume where they left
// off.
package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/verify"
	"github.com/arbiterhq/arbiter/internal/worker"
)

// RubricSource produces (or fetches) the rubric for a task.
type RubricSource interface {
	Generate(ctx context.Context, task model.Task) (*model.Rubric, error)
}

// Scorer applies a rubric to a report.
type Scorer interface {
	Score(ctx context.Context, task model.Task, rubric *model.Rubric, report model.CandidateReport) (*model.JudgeResult, error)
}

// ClaimSource extracts checkable claims from a report.
type ClaimSource interface {
	Extract(ctx context.Context, report model.CandidateReport) ([]model.Claim, error)
}

// Verifier checks claims and returns one verdict per claim.
type Verifier interface {
	VerifyAll(ctx context.Context, claims []model.Claim) []model.ClaimVerdict
}

// Pair is one unit of evaluation work.
type Pair struct {
	Task   model.Task
	Report model.CandidateReport
}

// Orchestrator evaluates pairs across a bounded worker pool. Within a pair,
// the rubric/judge branch and the extract/verify branch run concurrently and
// fail independently: a dead branch is recorded as such, never hiding the
// surviving branch's result.
type Orchestrator struct {
	rubrics  RubricSource
	scorer   Scorer
	claims   ClaimSource
	verifier Verifier
	records  *RecordStore

	workers               int
	unverifiableThreshold int
}

// New wires an orchestrator.
func New(rubrics RubricSource, scorer Scorer, claims ClaimSource, verifier Verifier, records *RecordStore, workers, unverifiableThreshold int) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		rubrics:  rubrics,
		scorer:   scorer,
		claims:   claims,
		verifier: verifier,
		records:  records,

		workers:               workers,
		unverifiableThreshold: unverifiableThreshold,
	}
}

type evalJob struct {
	o     *Orchestrator
	pair  Pair
	runID string
}

type evalResult struct {
	record *model.EvaluationRecord
	err    error
}

func (r evalResult) Err() error { return r.err }

func (j evalJob) Execute(ctx context.Context) worker.Result {
	rec, err := j.o.evaluate(ctx, j.pair, j.runID)
	return evalResult{record: rec, err: err}
}

// Run evaluates every pair, skipping pairs whose record is already COMPLETE.
// It returns the final record for each pair in input order. A ctx deadline
// finalizes unfinished records as PARTIAL rather than discarding them.
func (o *Orchestrator) Run(ctx context.Context, pairs []Pair) ([]*model.EvaluationRecord, error) {
	runID := uuid.NewString()

	pool := worker.NewPool(ctx, o.workers)
	pool.Start()
	for _, pair := range pairs {
		if rec, ok := o.records.Get(pair.Task.ID, pair.Report.Method); ok && rec.Status == model.StatusComplete {
			continue
		}
		pool.Submit(evalJob{o: o, pair: pair, runID: runID})
	}
	results := pool.Wait()

	var firstErr error
	for _, r := range results {
		if err := r.Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	out := make([]*model.EvaluationRecord, 0, len(pairs))
	for _, pair := range pairs {
		if rec, ok := o.records.Get(pair.Task.ID, pair.Report.Method); ok {
			out = append(out, rec)
		}
	}
	return out, firstErr
}

// evaluate runs both branches for one pair and persists the record at every
// transition. A resumed PARTIAL record only recomputes missing branches.
func (o *Orchestrator) evaluate(ctx context.Context, pair Pair, runID string) (*model.EvaluationRecord, error) {
	rec, known := o.records.Get(pair.Task.ID, pair.Report.Method)
	if known && rec.Status == model.StatusComplete {
		return rec, nil
	}
	if !known {
		rec = &model.EvaluationRecord{
			TaskID: pair.Task.ID,
			Method: pair.Report.Method,
			Status: model.StatusPending,
		}
	}
	rec.RunID = runID
	if !known {
		if err := o.records.Put(rec); err != nil {
			return rec, err
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	checkpoint := func() {
		if !rec.Status.Terminal() {
			rec.Status = model.StatusPartial
		}
		// Best effort; the final Put below reports persistence failures.
		_ = o.records.Put(rec)
	}

	if rec.Judge == nil && rec.JudgeErr == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := o.judgeBranch(ctx, pair)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rec.Judge = result
			case ctx.Err() != nil:
				// Deadline or cancellation: leave the branch missing so a
				// resumed run recomputes it.
				return
			default:
				rec.JudgeErr = err.Error()
			}
			checkpoint()
		}()
	}

	if rec.Facts == nil && rec.FactsErr == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := o.factsBranch(ctx, pair)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rec.Facts = result
			case ctx.Err() != nil:
				return
			default:
				rec.FactsErr = err.Error()
			}
			checkpoint()
		}()
	}

	wg.Wait()

	judgeDone := rec.Judge != nil || rec.JudgeErr != ""
	factsDone := rec.Facts != nil || rec.FactsErr != ""
	switch {
	case rec.Judge != nil && rec.Facts != nil:
		rec.Status = model.StatusComplete
	case judgeDone && factsDone:
		rec.Status = model.StatusFailed
	default:
		rec.Status = model.StatusPartial
	}

	err := o.records.Put(rec)
	return rec, err
}

func (o *Orchestrator) judgeBranch(ctx context.Context, pair Pair) (*model.JudgeResult, error) {
	r, err := o.rubrics.Generate(ctx, pair.Task)
	if err != nil {
		return nil, err
	}
	return o.scorer.Score(ctx, pair.Task, r, pair.Report)
}

func (o *Orchestrator) factsBranch(ctx context.Context, pair Pair) (*model.FactCheckResult, error) {
	claims, err := o.claims.Extract(ctx, pair.Report)
	if err != nil {
		return nil, err
	}

	var verdicts []model.ClaimVerdict
	if len(claims) > 0 {
		verdicts = o.verifier.VerifyAll(ctx, claims)
	}
	return &model.FactCheckResult{
		Summary:  verify.Summarize(verdicts, o.unverifiableThreshold),
		Verdicts: verdicts,
	}, nil
}
