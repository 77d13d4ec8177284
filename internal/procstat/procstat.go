// Package procstat samples resource usage of the supervised worker process.
package procstat

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/satproc/warpinit/internal/metrics"
)

// Sample is a single observation of the worker's resource usage.
type Sample struct {
	CPUPercent float64   `json:"cpuPercent"`
	RSSBytes   uint64    `json:"rssBytes"`
	SampledAt  time.Time `json:"sampledAt"`
}

// Sampler periodically observes a process identified by a pid callback and
// retains the most recent sample. Sampling errors are discarded: the worker
// may legitimately exit between the pid lookup and the observation.
type Sampler struct {
	mu     sync.Mutex
	latest Sample
	valid  bool
}

// Run samples the process until the context is cancelled or pidFn reports
// zero, meaning there is no live worker left to observe.
func (s *Sampler) Run(ctx context.Context, pidFn func() int, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pid := pidFn()
			if pid <= 0 {
				return
			}
			s.observe(pid)
		}
	}
}

// Latest returns the most recent sample, if any has been taken.
func (s *Sampler) Latest() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.valid
}

func (s *Sampler) observe(pid int) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}
	sample := Sample{SampledAt: time.Now()}
	if cpu, err := proc.CPUPercent(); err == nil {
		sample.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		sample.RSSBytes = mem.RSS
	}

	s.mu.Lock()
	s.latest = sample
	s.valid = true
	s.mu.Unlock()

	metrics.SetWorkerResources(sample.CPUPercent, sample.RSSBytes)
}
