package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interval fires at a sub-second period, which @every cannot express.
type interval time.Duration

func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

func everyMillis(n int) cron.Schedule {
	return interval(time.Duration(n) * time.Millisecond)
}

func TestPoller_TickStopsAtTerminalStatus(t *testing.T) {
	batch := newFakeBatch()
	m, _ := newTestManager(batch, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []Status
	p := NewPoller(m, WithUpdateHook(func(j *DocumentJob) {
		mu.Lock()
		seen = append(seen, j.Status)
		mu.Unlock()
	}))

	res, err := m.StartJob(ctx, startRequest("poll-1"))
	require.NoError(t, err)
	require.True(t, p.Watch(res.Job.ID))
	assert.False(t, p.Watch(res.Job.ID))

	batch.set(res.Job.ProviderJobID, ProviderStatus{Status: StatusInProgress, Progress: 50})
	p.Tick(ctx)
	assert.Equal(t, []string{res.Job.ID}, p.Active())

	batch.set(res.Job.ProviderJobID, ProviderStatus{Status: StatusStopped})
	p.Tick(ctx)
	assert.Empty(t, p.Active())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusInProgress, StatusStopped}, seen)
}

func TestPoller_PollErrorKeepsWatching(t *testing.T) {
	batch := newFakeBatch()
	m, store := newTestManager(batch, nil)
	ctx := context.Background()
	p := NewPoller(m)

	res, err := m.StartJob(ctx, startRequest("poll-2"))
	require.NoError(t, err)
	p.Watch(res.Job.ID)

	batch.statusErr = errors.New("connection reset")
	p.Tick(ctx)
	assert.Equal(t, []string{res.Job.ID}, p.Active())

	stored, err := store.GetJob(ctx, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, stored.Status)
}

func TestPoller_ProviderMissingJobKeepsWatching(t *testing.T) {
	batch := newFakeBatch()
	m, store := newTestManager(batch, nil)
	ctx := context.Background()
	p := NewPoller(m)

	res, err := m.StartJob(ctx, startRequest("poll-lost"))
	require.NoError(t, err)
	p.Watch(res.Job.ID)

	batch.forget(res.Job.ProviderJobID)
	p.Tick(ctx)
	assert.Equal(t, []string{res.Job.ID}, p.Active())

	batch.set(res.Job.ProviderJobID, ProviderStatus{Status: StatusCompleted, DownloadURL: "https://files/late.pdf"})
	p.Tick(ctx)
	assert.Empty(t, p.Active())

	stored, err := store.GetJob(ctx, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
}

func TestPoller_UnknownJobIsUnwatched(t *testing.T) {
	m, _ := newTestManager(newFakeBatch(), nil)
	p := NewPoller(m)

	p.Watch("missing")
	p.Tick(context.Background())
	assert.Empty(t, p.Active())
}

func TestPoller_StopPollingLeavesProviderJob(t *testing.T) {
	batch := newFakeBatch()
	m, store := newTestManager(batch, nil)
	ctx := context.Background()
	p := NewPoller(m)

	res, err := m.StartJob(ctx, startRequest("poll-3"))
	require.NoError(t, err)
	p.Watch(res.Job.ID)

	assert.True(t, p.Stop(res.Job.ID))
	assert.False(t, p.Stop(res.Job.ID))

	polls := batch.polls.Load()
	p.Tick(ctx)
	assert.Equal(t, polls, batch.polls.Load())

	stored, err := store.GetJob(ctx, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, stored.Status)
}

func TestPoller_ScheduledPollingCompletesJob(t *testing.T) {
	batch := newFakeBatch()
	m, store := newTestManager(batch, nil)
	ctx := context.Background()

	p := NewPoller(m, WithSchedule(everyMillis(20)))
	p.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, p.Shutdown(sctx))
	}()

	res, err := m.StartJob(ctx, startRequest("poll-4"))
	require.NoError(t, err)
	batch.set(res.Job.ProviderJobID, ProviderStatus{Status: StatusCompleted, DownloadURL: "https://files/done.pdf"})
	p.Watch(res.Job.ID)

	require.Eventually(t, func() bool {
		job, err := store.GetJob(ctx, res.Job.ID)
		return err == nil && job.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(p.Active()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestPoller_Resume(t *testing.T) {
	batch := newFakeBatch()
	m, _ := newTestManager(batch, nil)
	ctx := context.Background()

	a, err := m.StartJob(ctx, startRequest("resume-a"))
	require.NoError(t, err)
	b, err := m.StartJob(ctx, startRequest("resume-b"))
	require.NoError(t, err)
	batch.set(b.Job.ProviderJobID, ProviderStatus{Status: StatusFailed})
	_, err = m.PollStatus(ctx, b.Job.ID)
	require.NoError(t, err)

	p := NewPoller(m)
	n, err := p.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{a.Job.ID}, p.Active())
}
