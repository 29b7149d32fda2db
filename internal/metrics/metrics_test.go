package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleAccumulatesCounters(t *testing.T) {
	h := New("test-job-counters")
	h.IncRecordsRead(10)
	h.IncRecordsRead(5)
	h.IncRecordsTransformed(12)
	h.IncBatchesWritten()
	h.IncBatchesWritten()
	h.IncErrors()

	snap := h.Snapshot()
	assert.EqualValues(t, 15, snap.RecordsRead)
	assert.EqualValues(t, 12, snap.RecordsTransformed)
	assert.EqualValues(t, 2, snap.BatchesWritten)
	assert.EqualValues(t, 1, snap.Errors)
	assert.Equal(t, "test-job-counters", snap.JobName)
}

func TestMarkEndIsIdempotent(t *testing.T) {
	h := New("test-job-markend")
	h.MarkEnd()
	first := h.Snapshot().EndedAt
	h.MarkEnd()
	second := h.Snapshot().EndedAt
	assert.True(t, first.Equal(second), "MarkEnd should only record the first call's time: first=%v second=%v", first, second)
}

func TestSnapshotWithoutMarkEndStillHasAnEndTime(t *testing.T) {
	h := New("test-job-snapshot")
	snap := h.Snapshot()
	assert.False(t, snap.EndedAt.Before(snap.StartedAt), "expected Snapshot to synthesize a non-zero end time before MarkEnd is called")
}

func TestPrintSummaryIncludesAllCounters(t *testing.T) {
	h := New("test-job-summary")
	h.IncRecordsRead(100)
	h.IncRecordsTransformed(100)
	h.IncBatchesWritten()
	h.MarkEnd()

	var buf bytes.Buffer
	h.PrintSummary(&buf)
	out := buf.String()

	for _, want := range []string{"test-job-summary", "records read", "100", "batches written", "throughput"} {
		assert.Contains(t, out, want)
	}
}

func TestPrintSummarySafeWithZeroElapsedTime(t *testing.T) {
	h := New("test-job-zero-elapsed")
	h.MarkEnd()
	var buf bytes.Buffer
	assert.NotPanics(t, func() { h.PrintSummary(&buf) })
	assert.NotEmpty(t, buf.String())
}
