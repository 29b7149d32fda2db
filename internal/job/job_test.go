package job

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsync/dbsync/internal/connector"
	"github.com/dbsync/dbsync/internal/jobctx"
	"github.com/dbsync/dbsync/internal/types"
)

// memSource is an unsharded in-memory Source backed by a fixed slice of
// records, split into pages of maxSize on each ReadBatch call.
type memSource struct {
	all    []types.Record
	offset int
}

func newMemSource(n int) *memSource {
	recs := make([]types.Record, n)
	for i := range recs {
		recs[i] = types.Record{
			"id": {Name: "id", Value: types.IntValue(int64(i)), Type: types.BigInt()},
		}
	}
	return &memSource{all: recs}
}

func (s *memSource) Init(ctx context.Context, jc *jobctx.Context) error { return nil }

func (s *memSource) ReadBatch(ctx context.Context, maxSize int) (types.Batch, bool, error) {
	if s.offset >= len(s.all) {
		return nil, false, nil
	}
	end := s.offset + maxSize
	if end > len(s.all) {
		end = len(s.all)
	}
	batch := types.Batch(s.all[s.offset:end])
	s.offset = end
	return batch, true, nil
}

func (s *memSource) Close() error                                     { return nil }
func (s *memSource) AsSharded() (connector.ShardedSource, bool)       { return nil, false }
func (s *memSource) Clone() connector.Source {
	return &memSource{all: s.all}
}

var _ connector.Source = (*memSource)(nil)

// memSink records every batch it is handed, guarded by a mutex since
// multiple worker clones may write concurrently.
type memSink struct {
	mu      sync.Mutex
	batches []types.Batch
}

func (s *memSink) Init(ctx context.Context, jc *jobctx.Context) error { return nil }

func (s *memSink) WriteBatch(ctx context.Context, batch types.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

func (s *memSink) Commit(ctx context.Context) error      { return nil }
func (s *memSink) Close() error                          { return nil }
func (s *memSink) AsPooled() (connector.PooledSink, bool) { return nil, false }
func (s *memSink) Clone() connector.Sink                 { return s }

func (s *memSink) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

var _ connector.Sink = (*memSink)(nil)

func TestJobRunDirectCopiesEveryRecord(t *testing.T) {
	src := newMemSource(250)
	sink := &memSink{}
	j := &Job{
		Name:      "test-direct",
		Source:    src,
		Sink:      sink,
		Workers:   1,
		BatchSize: 40,
	}

	jc, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, sink.recordCount(), "sink should receive every source record")

	snap := jc.Metrics.Snapshot()
	assert.EqualValues(t, 250, snap.RecordsRead)
	assert.Zero(t, snap.Errors)
}

func TestJobRunFanOutCopiesEveryRecord(t *testing.T) {
	src := newMemSource(500)
	sink := &memSink{}
	j := &Job{
		Name:        "test-fanout",
		Source:      src,
		Sink:        sink,
		Workers:     1,
		BatchSize:   50,
		FanOut:      true,
		SinkWorkers: 4,
		ChannelSize: 2,
	}

	_, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500, sink.recordCount())
}

func TestJobRunPropagatesSourceInitError(t *testing.T) {
	j := &Job{
		Name:   "test-init-fail",
		Source: &failingInitSource{},
		Sink:   &memSink{},
	}
	_, err := j.Run(context.Background())
	assert.Error(t, err, "expected Run to propagate a source Init error")
}

type failingInitSource struct{ memSource }

func (s *failingInitSource) Init(ctx context.Context, jc *jobctx.Context) error {
	return context.DeadlineExceeded
}
func (s *failingInitSource) Clone() connector.Source { return s }

// failingSink errors on every WriteBatch call.
type failingSink struct{ memSink }

func (s *failingSink) WriteBatch(ctx context.Context, batch types.Batch) error {
	return context.DeadlineExceeded
}
func (s *failingSink) Clone() connector.Sink { return s }

func TestJobRunSetsShutdownFlagOnWorkerError(t *testing.T) {
	src := newMemSource(100)
	j := &Job{
		Name:      "test-write-fail",
		Source:    src,
		Sink:      &failingSink{},
		Workers:   1,
		BatchSize: 10,
	}

	jc, err := j.Run(context.Background())
	require.Error(t, err, "expected Run to propagate a sink write error")
	assert.True(t, jc.ShuttingDown(), "a worker error should set the shared shutdown flag")
}
