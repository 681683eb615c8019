package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/schoolportal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePurger struct {
	retention time.Duration
	err       error
}

func (f *fakePurger) PurgeRead(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return 3, f.err
}

type fakeReindexer struct{ calls int }

func (f *fakeReindexer) Reindex(context.Context) (int, error) {
	f.calls++
	return 7, nil
}

func TestRunNow_CountsOutcomes(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	p := &fakePurger{}
	r := &fakeReindexer{}
	require.NoError(t, s.Register(PurgeNotifications(p, 48*time.Hour, zap.NewNop())))
	require.NoError(t, s.Register(ReindexAnnouncements(r, zap.NewNop())))

	okBefore := testutil.ToFloat64(metrics.JobRuns.WithLabelValues(PurgeNotificationsJob, "ok"))
	require.NoError(t, s.RunNow(context.Background(), PurgeNotificationsJob))
	assert.Equal(t, 48*time.Hour, p.retention)
	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.JobRuns.WithLabelValues(PurgeNotificationsJob, "ok")))

	p.err = errors.New("db down")
	errBefore := testutil.ToFloat64(metrics.JobRuns.WithLabelValues(PurgeNotificationsJob, "error"))
	assert.Error(t, s.RunNow(context.Background(), PurgeNotificationsJob))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(metrics.JobRuns.WithLabelValues(PurgeNotificationsJob, "error")))

	require.NoError(t, s.RunNow(context.Background(), ReindexAnnouncementsJob))
	assert.Equal(t, 1, r.calls)
}

func TestRegister_Rejects(t *testing.T) {
	s := NewScheduler(nil)
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Register(Job{Name: "broken", Spec: "not a spec", Run: noop}))
	assert.Error(t, s.Register(Job{Spec: "@hourly", Run: noop}))

	require.NoError(t, s.Register(Job{Name: "manual", Run: noop}))
	assert.Error(t, s.Register(Job{Name: "manual", Run: noop}))
	assert.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestStop_ReturnsWhenIdle(t *testing.T) {
	s := NewScheduler(nil)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
