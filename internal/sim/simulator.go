package sim

import (
	"context"
	"iter"
	"log/slog"

	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/timestep"
)

type Option[F any] func(*Run[F])

func WithLogger[F any](l *slog.Logger) Option[F] {
	return func(r *Run[F]) {
		if l != nil {
			r.log = l
		}
	}
}

func WithObserver[F any](o Observer[F]) Option[F] {
	return func(r *Run[F]) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// Run is a lazy, finite, non-restartable sequence of steps over an
// interval. No work happens until Next is called and every step completes
// before Next returns. Between two steps the solver advances its previous
// state to the current one, so fields returned by one Next stay untouched
// until the following call.
type Run[F any] struct {
	ctx     context.Context
	solver  Steppable[F]
	stepper *timestep.Stepper

	log       *slog.Logger
	observers []Observer[F]

	iv      dynamo.Interval
	steps   int
	started bool
	done    bool
	err     error
}

// Start validates the schedule and returns a run positioned before the
// first step. Schedule errors are reported here, before any stepping.
// A nil ctx means context.Background.
func Start[F any](ctx context.Context, s Steppable[F], iv dynamo.Interval, sched timestep.Schedule, opts ...Option[F]) (*Run[F], error) {
	stepper, err := timestep.New(iv, sched)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r := &Run[F]{
		ctx:     ctx,
		solver:  s,
		stepper: stepper,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Next performs one step. It returns false when the interval is exhausted,
// the context is done or a step failed; Err tells these apart.
func (r *Run[F]) Next() bool {
	if r.done {
		return false
	}

	select {
	case <-r.ctx.Done():
		return r.fail(r.ctx.Err())
	default:
	}

	iv, ok := r.stepper.Next()
	if !ok {
		r.done = true
		return false
	}

	if r.started {
		if err := r.solver.Advance(); err != nil {
			return r.fail(err)
		}
	}
	r.started = true

	r.log.Debug("solving", "t0", iv.T0, "t1", iv.T1)
	if err := r.solver.Step(iv); err != nil {
		r.log.Error("step failed", "t0", iv.T0, "t1", iv.T1, "err", err)
		return r.fail(err)
	}

	r.iv = iv
	r.steps++
	fields := r.solver.SolutionFields()
	for _, o := range r.observers {
		o.OnStep(iv, fields)
	}
	return true
}

func (r *Run[F]) fail(err error) bool {
	r.err = err
	r.done = true
	return false
}

// Interval is the interval of the last completed step.
func (r *Run[F]) Interval() dynamo.Interval { return r.iv }

func (r *Run[F]) Fields() F { return r.solver.SolutionFields() }

func (r *Run[F]) Err() error { return r.err }

// StepsTaken counts completed steps.
func (r *Run[F]) StepsTaken() int { return r.steps }

// Steps ranges over the remaining steps. Check Err after the loop.
func (r *Run[F]) Steps() iter.Seq2[dynamo.Interval, F] {
	return func(yield func(dynamo.Interval, F) bool) {
		for r.Next() {
			if !yield(r.iv, r.solver.SolutionFields()) {
				return
			}
		}
	}
}

// Drain runs to the end and returns the last fields.
func (r *Run[F]) Drain() (F, error) {
	for r.Next() {
	}
	return r.solver.SolutionFields(), r.err
}
