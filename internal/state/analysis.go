package state

import (
	"sort"
	"sync"
	"time"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// Analysis is the partition for analysis jobs and AI signals.
type Analysis struct {
	mu sync.RWMutex

	jobs    map[string]*model.AnalysisJob
	signals *RingList[model.AISignal]

	changes chan struct{}
}

// NewAnalysis creates an empty analysis partition. signalsCap bounds the
// AI signal list.
func NewAnalysis(signalsCap int) *Analysis {
	return &Analysis{
		jobs:    make(map[string]*model.AnalysisJob),
		signals: NewKeyedRingList(signalsCap, func(s model.AISignal) string { return s.ID }),
		changes: make(chan struct{}, 1),
	}
}

// Track registers a job. Existing IDs are left untouched so a replayed
// start cannot reset a job that has already advanced.
func (a *Analysis) Track(job model.AnalysisJob) bool {
	if job.ID == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.jobs[job.ID]; ok {
		return false
	}

	if job.Status == "" {
		job.Status = model.StatusPending
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	job.UpdatedAt = time.Now().UTC()
	cp := job
	a.jobs[job.ID] = &cp

	a.notifyChange()
	return true
}

// ApplyProgress merges a progress point update. The update requires an
// existing job (unknown IDs are dropped, never resurrected) and is gated
// by the monotonic status order: a terminal job never moves, and a stale
// message carrying an earlier status is ignored. Progress only advances.
func (a *Analysis) ApplyProgress(id string, status model.JobStatus, progress int, message string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	job, ok := a.jobs[id]
	if !ok {
		return false
	}
	if job.Status.Terminal() {
		return false
	}

	switch {
	case status == "" || status == job.Status:
		// Same-stage progress update.
	case job.Status.CanTransition(status):
		job.Status = status
		if status.Terminal() {
			job.EndedAt = time.Now().UTC()
		}
	default:
		// Stale or unknown status, drop.
		return false
	}

	if progress > job.Progress && progress <= 100 {
		job.Progress = progress
	}
	if message != "" {
		job.Message = message
	}
	job.UpdatedAt = time.Now().UTC()

	a.notifyChange()
	return true
}

// Complete moves a job to a terminal status with its result or error.
// Already-terminal jobs are left as-is; the first terminal state wins.
func (a *Analysis) Complete(id string, status model.JobStatus, errMsg string, result *model.AnalysisResult) bool {
	if !status.Terminal() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	job, ok := a.jobs[id]
	if !ok {
		return false
	}
	if job.Status.Terminal() {
		return false
	}

	job.Status = status
	job.EndedAt = time.Now().UTC()
	job.UpdatedAt = job.EndedAt
	if status == model.StatusCompleted {
		job.Progress = 100
		job.Result = result
	}
	if errMsg != "" {
		job.Error = errMsg
	}

	a.notifyChange()
	return true
}

// ApplyJob merges a full job record from a status fetch, under the same
// monotonic guard as ApplyProgress. Unknown IDs are dropped.
func (a *Analysis) ApplyJob(fetched model.AnalysisJob) bool {
	if fetched.ID == "" {
		return false
	}

	if fetched.Status.Terminal() {
		errMsg := fetched.Error
		if applied := a.Complete(fetched.ID, fetched.Status, errMsg, fetched.Result); applied {
			return true
		}
		// Already terminal locally; still a valid no-op merge.
		a.mu.RLock()
		_, ok := a.jobs[fetched.ID]
		a.mu.RUnlock()
		return ok
	}

	return a.ApplyProgress(fetched.ID, fetched.Status, fetched.Progress, fetched.Message)
}

// Job returns one job by ID.
func (a *Analysis) Job(id string) (model.AnalysisJob, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	job, ok := a.jobs[id]
	if !ok {
		return model.AnalysisJob{}, false
	}
	return *job, true
}

// Jobs returns all jobs, newest first.
func (a *Analysis) Jobs() []model.AnalysisJob {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]model.AnalysisJob, 0, len(a.jobs))
	for _, job := range a.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AddSignal inserts an AI signal at the front of the bounded list.
// Redelivered signal IDs are moved to the front, not duplicated.
func (a *Analysis) AddSignal(sig model.AISignal) {
	if sig.ID == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.signals.PushFront(sig)
	a.notifyChange()
}

// ReplaceSignals replaces the signal list (front first).
func (a *Analysis) ReplaceSignals(signals []model.AISignal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.signals.Replace(signals)
	a.notifyChange()
}

// Signals returns the signal list, newest first.
func (a *Analysis) Signals() []model.AISignal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.signals.Items()
}

// Changes returns the coalescing change signal channel.
func (a *Analysis) Changes() <-chan struct{} {
	return a.changes
}

func (a *Analysis) notifyChange() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}
