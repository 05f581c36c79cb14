package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/model"
)

// InMemoryStore keeps jobs in process memory. Claim semantics mirror
// what a SQL conditional update gives across processes.
type InMemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*model.SubmissionJob
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{jobs: make(map[string]*model.SubmissionJob)}
}

func (s *InMemoryStore) Enqueue(_ context.Context, job model.SubmissionJob) (model.SubmissionJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.DocumentID == job.DocumentID && j.Kind == job.Kind && j.Status.Active() {
			return *j, false, nil
		}
	}

	cp := job
	s.jobs[job.ID] = &cp
	return cp, true, nil
}

func (s *InMemoryStore) Due(_ context.Context, now time.Time, limit int) ([]model.SubmissionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.SubmissionJob
	for _, j := range s.jobs {
		if j.Status == model.JobQueued && !j.NextRunAt.After(now) {
			due = append(due, *j)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].NextRunAt.Before(due[k].NextRunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *InMemoryStore) Claim(_ context.Context, id string) (model.SubmissionJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return model.SubmissionJob{}, false, cpe.ErrNotFound
	}
	if j.Status != model.JobQueued {
		return *j, false, nil
	}
	j.Status = model.JobProcessing
	return *j, true, nil
}

func (s *InMemoryStore) Update(_ context.Context, job model.SubmissionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return cpe.ErrNotFound
	}
	cp := job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindActive(_ context.Context, documentID string, kind model.JobKind) (model.SubmissionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.DocumentID == documentID && j.Kind == kind && j.Status.Active() {
			return *j, nil
		}
	}
	return model.SubmissionJob{}, cpe.ErrNotFound
}

func (s *InMemoryStore) ByDocument(_ context.Context, documentID string, limit int) ([]model.SubmissionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.SubmissionJob
	for _, j := range s.jobs {
		if j.DocumentID == documentID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
