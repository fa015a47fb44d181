package agentsdb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    appendCounter   prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAppend(duration time.Duration, err error) {
//	    p.appendCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordAppend is called after each Append/Edit/Remove.
	RecordAppend(duration time.Duration, err error)
	// RecordSearch is called after each Search. k is the requested result
	// count.
	RecordSearch(k int, duration time.Duration, err error)
	// RecordPromote is called after each Promote. Accept reports only
	// through RecordProposal, including the promote it performs.
	RecordPromote(duration time.Duration, err error)
	// RecordProposal is called after each Propose/Accept/Reject.
	RecordProposal(duration time.Duration, err error)
	// RecordExport is called after each Export.
	RecordExport(duration time.Duration, err error)
	// RecordImport is called after each Import.
	RecordImport(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAppend(time.Duration, error)          {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordPromote(time.Duration, error)         {}
func (NoopMetricsCollector) RecordProposal(time.Duration, error)        {}
func (NoopMetricsCollector) RecordExport(time.Duration, error)          {}
func (NoopMetricsCollector) RecordImport(time.Duration, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AppendCount      atomic.Int64
	AppendErrors     atomic.Int64
	AppendTotalNanos atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	PromoteCount     atomic.Int64
	PromoteErrors    atomic.Int64
	ProposalCount    atomic.Int64
	ProposalErrors   atomic.Int64
	ExportCount      atomic.Int64
	ExportErrors     atomic.Int64
	ImportCount      atomic.Int64
	ImportErrors     atomic.Int64
}

func (b *BasicMetricsCollector) RecordAppend(duration time.Duration, err error) {
	b.AppendCount.Add(1)
	b.AppendTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AppendErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordPromote(duration time.Duration, err error) {
	b.PromoteCount.Add(1)
	if err != nil {
		b.PromoteErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordProposal(duration time.Duration, err error) {
	b.ProposalCount.Add(1)
	if err != nil {
		b.ProposalErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordExport(duration time.Duration, err error) {
	b.ExportCount.Add(1)
	if err != nil {
		b.ExportErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordImport(duration time.Duration, err error) {
	b.ImportCount.Add(1)
	if err != nil {
		b.ImportErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AppendCount:    b.AppendCount.Load(),
		AppendErrors:   b.AppendErrors.Load(),
		AppendAvgNanos: b.avg(b.AppendTotalNanos.Load(), b.AppendCount.Load()),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: b.avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		PromoteCount:   b.PromoteCount.Load(),
		PromoteErrors:  b.PromoteErrors.Load(),
		ProposalCount:  b.ProposalCount.Load(),
		ProposalErrors: b.ProposalErrors.Load(),
		ExportCount:    b.ExportCount.Load(),
		ExportErrors:   b.ExportErrors.Load(),
		ImportCount:    b.ImportCount.Load(),
		ImportErrors:   b.ImportErrors.Load(),
	}
}

func (b *BasicMetricsCollector) avg(totalNanos, count int64) int64 {
	if count == 0 {
		return 0
	}
	return totalNanos / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AppendCount    int64
	AppendErrors   int64
	AppendAvgNanos int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	PromoteCount   int64
	PromoteErrors  int64
	ProposalCount  int64
	ProposalErrors int64
	ExportCount    int64
	ExportErrors   int64
	ImportCount    int64
	ImportErrors   int64
}
