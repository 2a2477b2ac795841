package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks annotation runs across builds.
type BuildMetrics struct {
	mutex sync.RWMutex

	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	CacheHits        int64
	// Directives counts #line directives in rendered output.
	Directives      int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records a build result in the metrics
func (bm *BuildMetrics) RecordBuild(result BuildResult) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += result.Duration
	bm.Directives += int64(result.Directives)

	if result.CacheHit {
		bm.CacheHits++
	}
	if result.Error != nil {
		bm.FailedBuilds++
	} else {
		bm.SuccessfulBuilds++
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// Snapshot returns a copy of the current metrics.
func (bm *BuildMetrics) Snapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		CacheHits:        bm.CacheHits,
		Directives:       bm.Directives,
		TotalDuration:    bm.TotalDuration,
		AverageDuration:  bm.AverageDuration,
	}
}

// Reset resets all metrics
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()
	bm.TotalBuilds = 0
	bm.SuccessfulBuilds = 0
	bm.FailedBuilds = 0
	bm.CacheHits = 0
	bm.Directives = 0
	bm.TotalDuration = 0
	bm.AverageDuration = 0
}

// CacheHitRate returns the cache hit rate as a percentage
func (bm *BuildMetrics) CacheHitRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	if bm.TotalBuilds == 0 {
		return 0
	}
	return float64(bm.CacheHits) / float64(bm.TotalBuilds) * 100
}

// SuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) SuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	if bm.TotalBuilds == 0 {
		return 0
	}
	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100
}
