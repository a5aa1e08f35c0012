// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"fmt"
	"time"
)

// Statistics tracks receive counters and rates
type Statistics struct {
	StartTime time.Time

	// Counters
	Edges          uint64
	SyncCandidates uint64
	SyncRepeats    uint64
	DecodeAttempts uint64
	Decoded        uint64
	NoMatch        uint64
	Overflows      uint64
	Dropped        uint64

	// Rates (calculated)
	EdgeRate   float64 // edges/sec
	DecodeRate float64 // codes/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// CalculateRates calculates edge and decode rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.EdgeRate = float64(s.Edges) / elapsed
		s.DecodeRate = float64(s.Decoded) / elapsed
	}
}

// SuccessRate returns the share of decode attempts that produced a code
func (s *Statistics) SuccessRate() float64 {
	if s.DecodeAttempts == 0 {
		return 0
	}
	return float64(s.Decoded) * 100.0 / float64(s.DecodeAttempts)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Edges:           %8d\n", s.Edges)
	result += fmt.Sprintf("Sync Candidates: %8d\n", s.SyncCandidates)
	result += fmt.Sprintf("Sync Repeats:    %8d\n", s.SyncRepeats)
	result += fmt.Sprintf("Decode Attempts: %8d\n", s.DecodeAttempts)
	result += fmt.Sprintf("Decoded Codes:   %8d (%.1f%%)\n", s.Decoded, s.SuccessRate())

	if s.NoMatch > 0 {
		result += fmt.Sprintf("No Match:        %8d\n", s.NoMatch)
	}
	if s.Overflows > 0 {
		result += fmt.Sprintf("Buffer Resets:   %8d\n", s.Overflows)
	}
	if s.Dropped > 0 {
		result += fmt.Sprintf("Dropped Edges:   %8d\n", s.Dropped)
	}

	result += fmt.Sprintf("Edge Rate:       %8.1f edges/sec\n", s.EdgeRate)
	result += fmt.Sprintf("Decode Rate:     %8.2f codes/sec\n", s.DecodeRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = Statistics{StartTime: time.Now()}
}
