package logging

import "strings"

// ProgressSampler suppresses repetitive render progress logs, emitting only
// when the percentage crosses a bucket boundary or the group changes.
type ProgressSampler struct {
	bucketSize float64
	lastGroup  string
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percent (default 25).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 25
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress update for group at percent should be
// logged. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(group string, percent float64) bool {
	if s == nil {
		return true
	}
	group = strings.TrimSpace(group)
	if group != s.lastGroup {
		s.lastGroup = group
		s.lastBucket = -1
	}
	bucket := int(min(percent, 100) / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}

// Reset clears the sampler state when a new job starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastGroup = ""
	s.lastBucket = -1
}
