package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	deny     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.deny || f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type scriptedJob struct {
	name     string
	affected int64
	err      error
	runs     int
}

func (j *scriptedJob) Name() string { return j.name }

func (j *scriptedJob) Run(context.Context) (Result, error) {
	j.runs++
	return Result{Affected: j.affected}, j.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &scriptedJob{name: "ok", affected: 4}
	first := &scriptedJob{name: "first", err: errors.New("boom")}
	second := &scriptedJob{name: "second", err: errors.New("bang")}
	lock := &fakeLock{}
	svc := newTestService(t, lock, first, ok, second)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorContains(t, err, "first: boom")
	assert.ErrorContains(t, err, "second: bang")

	for _, job := range []*scriptedJob{ok, first, second} {
		assert.Equal(t, 1, job.runs, job.name)
	}
	assert.False(t, lock.held)
	assert.Equal(t, 1, lock.releases)
}

func TestRunOnceSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &scriptedJob{name: "ok"}
	lock := &fakeLock{deny: true}
	svc := newTestService(t, lock, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

func TestNewServiceDefaults(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)

	svc, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, svc.interval)
	assert.Empty(t, svc.jobs)
	require.NoError(t, svc.RunOnce(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &scriptedJob{name: "ok"}
	svc := newTestService(t, &fakeLock{}, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs, "first cycle runs before the loop waits")
}
