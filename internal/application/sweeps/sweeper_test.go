package sweeps

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"autolot-backend/internal/application/lots"
	"autolot-backend/internal/infrastructure/database"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeRefresher struct {
	calls   atomic.Int32
	summary lots.RefreshSummary
	err     error
}

func (f *fakeRefresher) RefreshAll(ctx context.Context) (lots.RefreshSummary, error) {
	f.calls.Add(1)
	return f.summary, f.err
}

type fakeProcedures struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (f *fakeProcedures) Call(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.errs[name]
}

func (f *fakeProcedures) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestRunOnce_CallsEverythingInOrder(t *testing.T) {
	ref := &fakeRefresher{summary: lots.RefreshSummary{Checked: 3, Changed: 1}}
	procs := &fakeProcedures{}
	s := &Sweeper{Lots: ref, Procedures: procs}

	rep := s.RunOnce(context.Background())
	assert.Equal(t, int32(1), ref.calls.Load())
	assert.Equal(t, []string{database.ProcRefreshCarStatuses, database.ProcFixCarsInClosedLots}, procs.called())
	assert.Equal(t, 3, rep.Lots.Checked)
	require.Len(t, rep.Procedures, 2)
	for _, p := range rep.Procedures {
		assert.Equal(t, OutcomeOK, p.Outcome)
	}
	assert.True(t, rep.Healthy())
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))

	last, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, rep.Lots, last.Lots)
}

func TestRunOnce_SwallowsPermissionDenied(t *testing.T) {
	procs := &fakeProcedures{errs: map[string]error{
		database.ProcRefreshCarStatuses: &pgconn.PgError{Code: "42501", Message: "permission denied for function refresh_car_statuses"},
	}}
	s := &Sweeper{Procedures: procs}

	rep := s.RunOnce(context.Background())
	require.Len(t, rep.Procedures, 2)
	assert.Equal(t, OutcomeSkipped, rep.Procedures[0].Outcome)
	assert.Equal(t, "permission", rep.Procedures[0].Category)
	assert.Equal(t, OutcomeOK, rep.Procedures[1].Outcome)
	assert.True(t, rep.Healthy())
}

func TestRunOnce_MissingProcedureIsSkipped(t *testing.T) {
	procs := &fakeProcedures{errs: map[string]error{
		database.ProcFixCarsInClosedLots: &pgconn.PgError{Code: "42883", Message: "function fix_cars_in_closed_lots() does not exist"},
	}}
	rep := (&Sweeper{Procedures: procs}).RunOnce(context.Background())
	assert.Equal(t, OutcomeSkipped, rep.Procedures[1].Outcome)
	assert.True(t, rep.Healthy())
}

func TestRunOnce_TransientAndFatal(t *testing.T) {
	procs := &fakeProcedures{errs: map[string]error{
		database.ProcRefreshCarStatuses:  &pgconn.PgError{Code: "08006"},
		database.ProcFixCarsInClosedLots: &pgconn.PgError{Code: "23505"},
	}}
	rep := (&Sweeper{Procedures: procs}).RunOnce(context.Background())
	assert.Equal(t, OutcomeRetry, rep.Procedures[0].Outcome)
	assert.Equal(t, OutcomeFailed, rep.Procedures[1].Outcome)
	assert.False(t, rep.Healthy())
}

func TestRunOnce_CarStatusRefreshErrorsAreIgnored(t *testing.T) {
	procs := &fakeProcedures{errs: map[string]error{
		database.ProcRefreshCarStatuses: errors.New("boom"),
	}}
	rep := (&Sweeper{Procedures: procs}).RunOnce(context.Background())
	require.Len(t, rep.Procedures, 2)
	assert.Equal(t, OutcomeSkipped, rep.Procedures[0].Outcome)
	assert.Equal(t, "boom", rep.Procedures[0].Error)
	assert.Equal(t, OutcomeOK, rep.Procedures[1].Outcome)
	assert.True(t, rep.Healthy())

	procs.errs[database.ProcFixCarsInClosedLots] = errors.New("boom")
	rep = (&Sweeper{Procedures: procs}).RunOnce(context.Background())
	assert.Equal(t, OutcomeFailed, rep.Procedures[1].Outcome)
	assert.False(t, rep.Healthy())
}

func TestRunOnce_RefreshErrorDoesNotStopProcedures(t *testing.T) {
	ref := &fakeRefresher{err: errors.New("lot 1: boom"), summary: lots.RefreshSummary{Checked: 1, Failed: []string{"1"}}}
	procs := &fakeProcedures{}
	rep := (&Sweeper{Lots: ref, Procedures: procs}).RunOnce(context.Background())
	assert.Equal(t, "lot 1: boom", rep.LotsError)
	assert.Len(t, procs.called(), 2)
	assert.False(t, rep.Healthy())
}

func TestLastReport_EmptyBeforeFirstRun(t *testing.T) {
	_, ok := (&Sweeper{}).LastReport()
	assert.False(t, ok)
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ref := &fakeRefresher{}
	s := &Sweeper{Lots: ref, Procedures: &fakeProcedures{}, Interval: 10 * time.Millisecond}
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSweeperStarted)

	require.Eventually(t, func() bool { return ref.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	n := ref.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, ref.calls.Load())
	_, ok := s.LastReport()
	assert.True(t, ok)
}

func TestStart_StopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	ref := &fakeRefresher{}
	s := &Sweeper{Lots: ref, Interval: time.Hour}
	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return ref.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Stop()
}
