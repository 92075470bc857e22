package jobs

import (
	"sort"
	"sync"
	"time"
)

// Store keeps job records keyed by identity. It enforces at-most-one-active
// job per identity and retains a bounded count of terminal records per class
// so status stays queryable without unbounded growth.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]Job
	retain   map[Class]int
	fallback int
}

// NewStore constructs a Store. retain maps each class to how many terminal
// jobs to keep; classes absent from the map use fallback.
func NewStore(retain map[Class]int, fallback int) *Store {
	if fallback <= 0 {
		fallback = 100
	}
	return &Store{
		jobs:     make(map[string]Job),
		retain:   retain,
		fallback: fallback,
	}
}

// Create registers a queued job for the identity. When an active job with
// the same identity already exists, Create returns it with created=false so
// the caller can collapse onto it. A terminal record for the identity is
// replaced: the retention window has fulfilled its purpose once the caller
// explicitly re-submits.
func (s *Store) Create(job Job) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[job.Identity]; ok && !existing.State.Terminal() {
		return existing, false
	}
	job.State = StateQueued
	s.jobs[job.Identity] = job
	s.evictLocked(job.Class)
	return job, true
}

// Get fetches a job by identity.
func (s *Store) Get(identity string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[identity]
	return job, ok
}

// MarkRunning transitions a job to running and counts the attempt.
func (s *Store) MarkRunning(identity string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[identity]
	if !ok {
		return
	}
	job.State = StateRunning
	job.Attempts++
	if job.Started == nil {
		started := now
		job.Started = &started
	}
	s.jobs[identity] = job
}

// MarkSucceeded finishes a job with its result.
func (s *Store) MarkSucceeded(identity string, result Result, now time.Time) {
	s.finish(identity, StateSucceeded, &result, "", now)
}

// MarkFailed finishes a job with an operator-visible reason.
func (s *Store) MarkFailed(identity string, reason string, now time.Time) {
	s.finish(identity, StateFailed, nil, reason, now)
}

func (s *Store) finish(identity string, state State, result *Result, reason string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[identity]
	if !ok {
		return
	}
	job.State = state
	job.Result = result
	job.FailureReason = reason
	finished := now
	job.Finished = &finished
	s.jobs[identity] = job
}

// evictLocked drops the oldest terminal jobs of a class beyond its
// retention bound. In-flight jobs are never evicted.
func (s *Store) evictLocked(class Class) {
	limit, ok := s.retain[class]
	if !ok {
		limit = s.fallback
	}
	var terminal []Job
	for _, job := range s.jobs {
		if job.Class == class && job.State.Terminal() {
			terminal = append(terminal, job)
		}
	}
	if len(terminal) <= limit {
		return
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].Submitted.Before(terminal[j].Submitted)
	})
	for _, job := range terminal[:len(terminal)-limit] {
		delete(s.jobs, job.Identity)
	}
}
