// Package metrics implements the job engine's counter bundle: a
// mutex-protected set of totals, mirrored into Prometheus collectors
// via promauto.
package metrics

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LatencyBuckets is the shared histogram bucket set so that per-job
// latency histograms are comparable across deployments.
var LatencyBuckets = []float64{
	.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60,
}

var jobLabels = []string{"job_name"}

var (
	recordsReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbsync_records_read_total",
		Help: "the number of records read from the source",
	}, jobLabels)
	recordsTransformedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbsync_records_transformed_total",
		Help: "the number of records that passed through the transform chain",
	}, jobLabels)
	batchesWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbsync_batches_written_total",
		Help: "the number of batches successfully written to the sink",
	}, jobLabels)
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbsync_errors_total",
		Help: "the number of errors encountered during the job",
	}, jobLabels)
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dbsync_job_duration_seconds",
		Help:    "the wall-clock duration of completed jobs",
		Buckets: LatencyBuckets,
	}, jobLabels)
)

// Handle is a per-job counter bundle. The zero value is not usable;
// construct one with New.
type Handle struct {
	jobName string

	mu                 sync.Mutex
	startedAt          time.Time
	endedAt            time.Time
	recordsRead        int64
	recordsTransformed int64
	batchesWritten     int64
	errors             int64
}

// New returns a Handle for the named job and marks its start time.
func New(jobName string) *Handle {
	return &Handle{jobName: jobName, startedAt: time.Now()}
}

// IncRecordsRead records n records having been read from the source.
func (h *Handle) IncRecordsRead(n int) {
	h.mu.Lock()
	h.recordsRead += int64(n)
	h.mu.Unlock()
	recordsReadTotal.WithLabelValues(h.jobName).Add(float64(n))
}

// IncRecordsTransformed records n records having passed through the
// transform chain.
func (h *Handle) IncRecordsTransformed(n int) {
	h.mu.Lock()
	h.recordsTransformed += int64(n)
	h.mu.Unlock()
	recordsTransformedTotal.WithLabelValues(h.jobName).Add(float64(n))
}

// IncBatchesWritten records one batch having been durably written.
func (h *Handle) IncBatchesWritten() {
	h.mu.Lock()
	h.batchesWritten++
	h.mu.Unlock()
	batchesWrittenTotal.WithLabelValues(h.jobName).Inc()
}

// IncErrors records one error having been observed.
func (h *Handle) IncErrors() {
	h.mu.Lock()
	h.errors++
	h.mu.Unlock()
	errorsTotal.WithLabelValues(h.jobName).Inc()
}

// MarkEnd records the job's end time and observes the total duration.
// It is safe to call more than once; only the first call is recorded.
func (h *Handle) MarkEnd() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.endedAt.IsZero() {
		return
	}
	h.endedAt = time.Now()
	jobDuration.WithLabelValues(h.jobName).Observe(h.endedAt.Sub(h.startedAt).Seconds())
}

// Snapshot is a point-in-time, non-locking copy of a Handle's counters.
type Snapshot struct {
	JobName            string
	StartedAt          time.Time
	EndedAt            time.Time
	RecordsRead        int64
	RecordsTransformed int64
	BatchesWritten     int64
	Errors             int64
}

// Snapshot returns a consistent copy of the current counters.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	end := h.endedAt
	if end.IsZero() {
		end = time.Now()
	}
	return Snapshot{
		JobName:            h.jobName,
		StartedAt:          h.startedAt,
		EndedAt:            end,
		RecordsRead:        h.recordsRead,
		RecordsTransformed: h.recordsTransformed,
		BatchesWritten:     h.batchesWritten,
		Errors:             h.errors,
	}
}

// PrintSummary writes duration, per-counter totals, and derived
// throughput to w. It is always safe to call, including after a failed
// job, so operators can see how far the job got.
func (h *Handle) PrintSummary(w io.Writer) {
	s := h.Snapshot()
	elapsed := s.EndedAt.Sub(s.StartedAt)
	throughput := 0.0
	if elapsed.Seconds() > 0 {
		throughput = float64(s.RecordsRead) / elapsed.Seconds()
	}
	fmt.Fprintf(w, "job %q summary:\n", s.JobName)
	fmt.Fprintf(w, "  duration:            %s\n", elapsed)
	fmt.Fprintf(w, "  records read:        %d\n", s.RecordsRead)
	fmt.Fprintf(w, "  records transformed: %d\n", s.RecordsTransformed)
	fmt.Fprintf(w, "  batches written:     %d\n", s.BatchesWritten)
	fmt.Fprintf(w, "  errors:              %d\n", s.Errors)
	fmt.Fprintf(w, "  throughput:          %.1f records/sec\n", throughput)
}
