package jobs

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreCollapsesActiveIdentity(t *testing.T) {
	t.Parallel()

	s := NewStore(nil, 10)
	now := time.Unix(1000, 0)

	first, created := s.Create(Job{Identity: "ingest:abc", Class: ClassIngest, Submitted: now})
	require.True(t, created)
	require.Equal(t, StateQueued, first.State)

	// Same identity while active: collapses, not a new job.
	_, created = s.Create(Job{Identity: "ingest:abc", Class: ClassIngest, Submitted: now.Add(time.Second)})
	require.False(t, created)

	s.MarkRunning("ingest:abc", now)
	_, created = s.Create(Job{Identity: "ingest:abc", Class: ClassIngest})
	require.False(t, created)

	// After a terminal state an explicit re-submit creates a fresh run.
	s.MarkSucceeded("ingest:abc", Result{}, now.Add(time.Minute))
	fresh, created := s.Create(Job{Identity: "ingest:abc", Class: ClassIngest, Submitted: now.Add(2 * time.Minute)})
	require.True(t, created)
	require.Equal(t, StateQueued, fresh.State)
}

func TestStoreAttemptsAndTimestamps(t *testing.T) {
	t.Parallel()

	s := NewStore(nil, 10)
	now := time.Unix(2000, 0)
	s.Create(Job{Identity: "a", Class: ClassAnalysis, Submitted: now})

	s.MarkRunning("a", now.Add(time.Second))
	s.MarkRunning("a", now.Add(2*time.Second))
	job, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, job.Attempts)
	require.NotNil(t, job.Started)
	require.Equal(t, now.Add(time.Second), *job.Started)

	s.MarkFailed("a", "fetch exhausted", now.Add(3*time.Second))
	job, _ = s.Get("a")
	require.Equal(t, StateFailed, job.State)
	require.Equal(t, "fetch exhausted", job.FailureReason)
	require.NotNil(t, job.Finished)
}

func TestStoreRetentionEvictsOldestTerminal(t *testing.T) {
	t.Parallel()

	s := NewStore(map[Class]int{ClassIngest: 2}, 10)
	base := time.Unix(3000, 0)
	for i := 0; i < 4; i++ {
		identity := fmt.Sprintf("ingest:%d", i)
		s.Create(Job{Identity: identity, Class: ClassIngest, Submitted: base.Add(time.Duration(i) * time.Second)})
		s.MarkSucceeded(identity, Result{}, base.Add(time.Duration(i)*time.Second))
	}
	// One more create triggers eviction down to the retention bound.
	s.Create(Job{Identity: "ingest:new", Class: ClassIngest, Submitted: base.Add(time.Minute)})

	_, ok := s.Get("ingest:0")
	require.False(t, ok, "oldest terminal job should be evicted")
	_, ok = s.Get("ingest:3")
	require.True(t, ok)
	_, ok = s.Get("ingest:new")
	require.True(t, ok)
}

func TestStoreNeverEvictsActiveJobs(t *testing.T) {
	t.Parallel()

	s := NewStore(map[Class]int{ClassIngest: 1}, 10)
	base := time.Unix(4000, 0)
	s.Create(Job{Identity: "active", Class: ClassIngest, Submitted: base})
	s.MarkRunning("active", base)

	for i := 0; i < 5; i++ {
		identity := fmt.Sprintf("done:%d", i)
		s.Create(Job{Identity: identity, Class: ClassIngest, Submitted: base.Add(time.Duration(i) * time.Second)})
		s.MarkSucceeded(identity, Result{}, base)
	}
	s.Create(Job{Identity: "trigger", Class: ClassIngest, Submitted: base.Add(time.Minute)})

	job, ok := s.Get("active")
	require.True(t, ok)
	require.Equal(t, StateRunning, job.State)
}
