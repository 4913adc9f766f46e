// Package sweeps runs the periodic consistency pass that converges lot and
// car statuses after missed triggers or partial cascades.
package sweeps

import (
	"context"
	"errors"
	"sync"
	"time"

	"autolot-backend/internal/application/lots"
	"autolot-backend/internal/infrastructure/database"
	"autolot-backend/internal/pkg/apperr"

	"github.com/rs/zerolog/log"
)

const DefaultInterval = time.Minute

var ErrSweeperStarted = errors.New("sweeper already started")

// Refresher recomputes every lot that may have drifted.
type Refresher interface {
	RefreshAll(ctx context.Context) (lots.RefreshSummary, error)
}

// ProcedureCaller invokes a server-side sweep procedure by name.
type ProcedureCaller interface {
	Call(ctx context.Context, name string) error
}

// Procedure outcomes recorded in a Report.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeRetry   = "retry"
	OutcomeFailed  = "failed"
)

type ProcedureResult struct {
	Name     string `json:"name"`
	Outcome  string `json:"outcome"`
	Category string `json:"category,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report describes one sweep.
type Report struct {
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Lots       lots.RefreshSummary `json:"lots"`
	LotsError  string              `json:"lots_error,omitempty"`
	Procedures []ProcedureResult   `json:"procedures"`
}

// Healthy reports whether the sweep finished without a fatal error.
func (r Report) Healthy() bool {
	if r.LotsError != "" {
		return false
	}
	for _, p := range r.Procedures {
		if p.Outcome == OutcomeFailed {
			return false
		}
	}
	return true
}

type Sweeper struct {
	Lots       Refresher
	Procedures ProcedureCaller
	Interval   time.Duration
	// Timeout bounds one sweep; zero means Interval.
	Timeout time.Duration

	mu      sync.Mutex
	last    *Report
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

var sweepProcedures = []string{database.ProcRefreshCarStatuses, database.ProcFixCarsInClosedLots}

// RunOnce refreshes all lots and then calls each sweep procedure once.
// Permission and missing-procedure errors are swallowed; transient errors
// wait for the next tick.
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	rep := Report{StartedAt: time.Now().UTC(), Procedures: []ProcedureResult{}}

	if s.Lots != nil {
		summary, err := s.Lots.RefreshAll(ctx)
		rep.Lots = summary
		if err != nil {
			rep.LotsError = err.Error()
			log.Error().Err(err).Int("checked", summary.Checked).Strs("failed", summary.Failed).Msg("Lot refresh sweep incomplete")
		} else if summary.Changed > 0 {
			log.Info().Int("checked", summary.Checked).Int("changed", summary.Changed).Msg("Lot refresh sweep corrected statuses")
		}
	}

	if s.Procedures != nil {
		for _, name := range sweepProcedures {
			rep.Procedures = append(rep.Procedures, s.callProcedure(ctx, name))
		}
	}

	rep.FinishedAt = time.Now().UTC()
	s.mu.Lock()
	s.last = &rep
	s.mu.Unlock()
	return rep
}

func (s *Sweeper) callProcedure(ctx context.Context, name string) ProcedureResult {
	err := s.Procedures.Call(ctx, name)
	if err == nil {
		return ProcedureResult{Name: name, Outcome: OutcomeOK}
	}
	cat := apperr.Classify(err)
	res := ProcedureResult{Name: name, Category: cat.String(), Error: err.Error()}
	switch {
	case apperr.IsNonFatal(err):
		res.Outcome = OutcomeSkipped
		log.Debug().Err(err).Str("procedure", name).Str("category", cat.String()).Msg("Sweep procedure skipped")
	case cat == apperr.CategoryTransient:
		res.Outcome = OutcomeRetry
		log.Warn().Err(err).Str("procedure", name).Msg("Sweep procedure unavailable, retrying next tick")
	case name == database.ProcRefreshCarStatuses:
		// The lot pass already recomputed car statuses; this call is advisory.
		res.Outcome = OutcomeSkipped
		log.Warn().Err(err).Str("procedure", name).Str("category", cat.String()).Msg("Sweep procedure error ignored")
	default:
		res.Outcome = OutcomeFailed
		log.Error().Err(err).Str("procedure", name).Msg("Sweep procedure failed")
	}
	return res
}

// LastReport returns the most recent sweep, if any.
func (s *Sweeper) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// Start runs one sweep immediately and then one per Interval until ctx is
// cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSweeperStarted
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.mu.Unlock()

	go s.loop(ctx, interval)
	log.Info().Dur("interval", interval).Msg("Status sweeper started")
	return nil
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, interval)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context, interval time.Duration) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = interval
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	s.RunOnce(runCtx)
}

// Stop cancels the loop and waits for the sweep in flight to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.started = false
	s.mu.Unlock()

	cancel()
	<-done
	log.Info().Msg("Status sweeper stopped")
}
