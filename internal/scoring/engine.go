package scoring

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Engine evaluates the component scorers for a validated applicant and aggregates them.
type Engine struct {
	params     Params
	aggregator *Aggregator
}

// NewEngine returns an engine bound to p and agg. p is assumed validated.
func NewEngine(p Params, agg *Aggregator) *Engine {
	return &Engine{params: p, aggregator: agg}
}

func (e *Engine) Aggregator() *Aggregator { return e.aggregator }

// Prepare validates rec against the engine's parameters.
func (e *Engine) Prepare(rec ApplicantRecord) (Applicant, error) {
	return rec.ValidateWith(e.params)
}

// Evaluate runs the six scorers concurrently. The scorers are pure, so the result
// equals ScoreComponents for the same input.
func (e *Engine) Evaluate(ctx context.Context, a Applicant) (Result, error) {
	var (
		mu  sync.Mutex
		set ComponentScoreSet
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range Components() {
		c := c
		fn := componentFuncs[c]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v := fn(a, e.params)
			mu.Lock()
			set.set(c, v)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	score, risk, err := e.aggregator.Aggregate(set)
	if err != nil {
		return Result{}, err
	}

	return Result{
		YECSScore:       score,
		RiskLevel:       risk,
		ComponentScores: set,
		Demographics:    a.Snapshot(),
	}, nil
}
