package jobs

import (
	"context"
	"sort"
	"sync"

	"github.com/MimeLyc/seabridge/internal/errs"
)

// MemoryStore is an in-process Store. Records are kept for the life of the
// process, terminal ones included.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*DocumentJob
	active map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]*DocumentJob),
		active: make(map[string]string),
	}
}

func activeKey(messageKey, targetLanguage string) string {
	return messageKey + "|" + targetLanguage
}

func (m *MemoryStore) CreateJob(_ context.Context, job *DocumentJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := activeKey(job.MessageKey, job.TargetLanguage)
	if !job.Status.Terminal() {
		if id, ok := m.active[key]; ok && id != job.ID {
			return ErrActiveJobExists
		}
		m.active[key] = job.ID
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *MemoryStore) UpsertJob(_ context.Context, job *DocumentJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := activeKey(job.MessageKey, job.TargetLanguage)
	if job.Status.Terminal() {
		if id, ok := m.active[key]; ok && id == job.ID {
			delete(m.active, key)
		}
	} else {
		m.active[key] = job.ID
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id string) (*DocumentJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, errs.New(errs.JobNotFound, "job not found").WithContext("job_id", id)
	}
	return cloneJob(job), nil
}

func (m *MemoryStore) LatestJob(_ context.Context, messageKey, targetLanguage string) (*DocumentJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *DocumentJob
	for _, job := range m.jobs {
		if job.MessageKey != messageKey || job.TargetLanguage != targetLanguage || job.SupersededBy != "" {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	return cloneJob(latest), nil
}

func (m *MemoryStore) ListActiveJobs(_ context.Context) ([]*DocumentJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make([]*DocumentJob, 0, len(m.active))
	for _, id := range m.active {
		if job, ok := m.jobs[id]; ok {
			ret = append(ret, cloneJob(job))
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret, nil
}
