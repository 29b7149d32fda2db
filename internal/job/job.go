// Package job implements the sync job engine: init, shard-and-read,
// transform, fanned-out write, commit, close. It is the component that
// ties a Source, a chain of Transforms, and a Sink together into one
// run, generalized from a single consumer to W parallel shard workers.
package job

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dbsync/dbsync/internal/connector"
	"github.com/dbsync/dbsync/internal/dbsyncerr"
	"github.com/dbsync/dbsync/internal/jobctx"
	"github.com/dbsync/dbsync/internal/types"
)

// Default tuning values, overridable per Job.
const (
	DefaultWorkers     = 3
	DefaultSinkWorkers = 5
	DefaultChannelSize = 10
	DefaultBatchSize   = 1000
)

// workerState names the per-worker state machine steps. Only the
// Failing and Done states are logged; the others are tracked but not
// logged.
type workerState string

const (
	stateIdle         workerState = "Idle"
	stateReading      workerState = "Reading"
	stateTransforming workerState = "Transforming"
	stateWriting      workerState = "Writing"
	stateClosing      workerState = "Closing"
	stateFailing      workerState = "Failing"
	stateDone         workerState = "Done"
)

// Job describes one synchronization run: a source, a sequence of
// transforms applied in order, and a sink, plus its concurrency knobs.
type Job struct {
	Name string

	Source     connector.Source
	Transforms []connector.Transform
	Sink       connector.Sink

	// Workers is the number of source-side shard workers (W). Defaults
	// to DefaultWorkers.
	Workers int

	// FanOut selects the write strategy: false writes each batch
	// directly on the worker's own sink clone; true routes batches
	// through a bounded channel into a pool of SinkWorkers.
	FanOut bool

	// SinkWorkers is the size of the sink worker pool (S) when FanOut is
	// true. Defaults to DefaultSinkWorkers.
	SinkWorkers int

	// ChannelSize bounds the buffered channel between source workers and
	// the sink pool when FanOut is true. Defaults to DefaultChannelSize.
	ChannelSize int

	// BatchSize is the maximum number of records requested per read.
	// Defaults to DefaultBatchSize.
	BatchSize int
}

func (j *Job) workers() int {
	if j.Workers > 0 {
		return j.Workers
	}
	return DefaultWorkers
}

func (j *Job) sinkWorkers() int {
	if j.SinkWorkers > 0 {
		return j.SinkWorkers
	}
	return DefaultSinkWorkers
}

func (j *Job) channelSize() int {
	if j.ChannelSize > 0 {
		return j.ChannelSize
	}
	return DefaultChannelSize
}

func (j *Job) batchSize() int {
	if j.BatchSize > 0 {
		return j.BatchSize
	}
	return DefaultBatchSize
}

// Run executes the transfer to completion, failing the entire job on
// the first unrecoverable error. The job's metrics are populated on
// jc.Metrics regardless of outcome.
func (j *Job) Run(ctx context.Context) (*jobctx.Context, error) {
	runID := uuid.NewString()
	logger := log.WithFields(log.Fields{"job": j.Name, "run_id": runID})

	jc := jobctx.New(j.Name)
	defer jc.Metrics.MarkEnd()

	// Phase 1: Init.
	if err := j.Source.Init(ctx, jc); err != nil {
		return jc, dbsyncerr.Wrap(dbsyncerr.Connection, err, "source init")
	}
	if err := j.Sink.Init(ctx, jc); err != nil {
		j.Source.Close()
		return jc, dbsyncerr.Wrap(dbsyncerr.Connection, err, "sink init")
	}

	// Phase 2: Plan.
	shards, single := j.plan(ctx, logger)

	// Phase 3/4: Pipeline and Finalize.
	err := j.runPipeline(ctx, jc, logger, shards, single)

	// Finalize regardless of pipeline outcome so partial progress is
	// still committed per-batch-transaction semantics.
	if commitErr := j.Sink.Commit(ctx); commitErr != nil && err == nil {
		err = dbsyncerr.Wrap(dbsyncerr.Write, commitErr, "sink commit")
	}
	if closeErr := j.Sink.Close(); closeErr != nil && err == nil {
		err = dbsyncerr.Wrap(dbsyncerr.Connection, closeErr, "sink close")
	}
	if closeErr := j.Source.Close(); closeErr != nil && err == nil {
		err = dbsyncerr.Wrap(dbsyncerr.Connection, closeErr, "source close")
	}

	if err != nil {
		jc.Metrics.IncErrors()
	}
	return jc, err
}

// plan obtains the shard list when the source supports ShardedSource.
// single is true when the source does not support sharding and a
// single full-range read should be performed instead (W effectively 1).
func (j *Job) plan(ctx context.Context, logger *log.Entry) (shards []Shard, single bool) {
	sharded, ok := j.Source.AsSharded()
	if !ok {
		return nil, true
	}
	min, max, err := sharded.KeyRange(ctx)
	if err != nil {
		logger.WithError(err).Warn("could not determine key range, falling back to single full-range read")
		return nil, true
	}
	shards = planShards(min, max, j.workers())
	logger.WithFields(log.Fields{"min": min, "max": max, "shards": len(shards)}).Info("planned shards")
	return shards, false
}

// runPipeline spawns source workers (one per shard, or one for a
// non-sharded source), optionally routes their output through a sink
// worker pool, and waits for everything to finish.
func (j *Job) runPipeline(
	ctx context.Context, jc *jobctx.Context, logger *log.Entry, shards []Shard, single bool,
) error {
	group, gctx := errgroup.WithContext(ctx)

	if !j.FanOut {
		return j.runDirect(gctx, group, jc, logger, shards, single)
	}
	return j.runFanOut(gctx, group, jc, logger, shards, single)
}

// runDirect has each source worker write directly on its own sink
// clone: no intermediate channel.
func (j *Job) runDirect(
	ctx context.Context, group *errgroup.Group, jc *jobctx.Context, logger *log.Entry,
	shards []Shard, single bool,
) error {
	work := j.shardAssignments(shards, single)
	for i, shard := range work {
		i, shard := i, shard
		group.Go(func() error {
			sinkClone := j.Sink.Clone()
			return j.runSourceWorker(ctx, jc, logger, i, shard, func(b types.Batch) error {
				if err := sinkClone.WriteBatch(ctx, b); err != nil {
					return dbsyncerr.Wrap(dbsyncerr.Write, err, "worker %d write", i)
				}
				jc.Metrics.IncBatchesWritten()
				return nil
			})
		})
	}
	return group.Wait()
}

// runFanOut routes every source worker's output through a single
// bounded channel consumed by a pool of sink workers. The channel's
// capacity is the only buffering between read and write; once full,
// source workers block, providing backpressure.
func (j *Job) runFanOut(
	ctx context.Context, group *errgroup.Group, jc *jobctx.Context, logger *log.Entry,
	shards []Shard, single bool,
) error {
	ch := make(chan types.Batch, j.channelSize())

	var sourceWG sync.WaitGroup
	work := j.shardAssignments(shards, single)
	for i, shard := range work {
		i, shard := i, shard
		sourceWG.Add(1)
		group.Go(func() error {
			defer sourceWG.Done()
			return j.runSourceWorker(ctx, jc, logger, i, shard, func(b types.Batch) error {
				select {
				case ch <- b:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		})
	}

	// Close the channel exactly once, after every source worker has
	// finished (successfully or not).
	go func() {
		sourceWG.Wait()
		close(ch)
	}()

	for s := 0; s < j.sinkWorkers(); s++ {
		s := s
		sinkClone := j.Sink.Clone()
		group.Go(func() error {
			return j.runSinkWorker(ctx, jc, logger, s, sinkClone, ch)
		})
	}

	return group.Wait()
}

type shardAssignment struct {
	hasShard bool
	shard    Shard
}

// shardAssignments returns one assignment per worker: either a
// concrete shard, or a single unshared assignment when the source
// doesn't support sharding (W effectively collapses to 1).
func (j *Job) shardAssignments(shards []Shard, single bool) []shardAssignment {
	if single {
		return []shardAssignment{{}}
	}
	out := make([]shardAssignment, len(shards))
	for i, s := range shards {
		out[i] = shardAssignment{hasShard: true, shard: s}
	}
	return out
}

// runSourceWorker reads a shard to completion, applying transforms in
// order and handing each resulting batch to emit. A worker whose shard
// yields zero rows exits cleanly without error.
func (j *Job) runSourceWorker(
	ctx context.Context, jc *jobctx.Context, logger *log.Entry, workerIdx int, a shardAssignment,
	emit func(types.Batch) error,
) (err error) {
	wlog := logger.WithField("worker", workerIdx)
	state := stateIdle
	defer func() {
		if err != nil {
			state = stateFailing
			wlog.WithField("state", state).WithError(err).Warn("worker failing")
			jc.RequestShutdown()
		}
		state = stateDone
		wlog.WithField("state", state).Debug("worker done")
	}()

	src := j.Source.Clone()
	sharded, isSharded := src.AsSharded()
	if a.hasShard {
		if !isSharded {
			return dbsyncerr.New(dbsyncerr.Config, "worker %d assigned a shard but source is not sharded", workerIdx)
		}
		if err := sharded.Init(ctx, jc); err != nil {
			return dbsyncerr.Wrap(dbsyncerr.Connection, err, "worker %d source clone init", workerIdx)
		}
		defer sharded.Close()
	} else {
		if err := src.Init(ctx, jc); err != nil {
			return dbsyncerr.Wrap(dbsyncerr.Connection, err, "worker %d source clone init", workerIdx)
		}
		defer src.Close()
	}

	transforms := make([]connector.Transform, len(j.Transforms))
	for i, t := range j.Transforms {
		transforms[i] = t.Clone()
	}

	for {
		if jc.ShuttingDown() {
			wlog.Info("shutdown requested, draining worker")
			return nil
		}

		state = stateReading
		var batch types.Batch
		var ok bool
		var readErr error
		if a.hasShard {
			batch, ok, readErr = sharded.ReadBatchRange(ctx, a.shard.Start, a.shard.End)
		} else {
			batch, ok, readErr = src.ReadBatch(ctx, j.batchSize())
		}
		if readErr != nil {
			return dbsyncerr.Wrap(dbsyncerr.Read, readErr, "worker %d read", workerIdx)
		}
		if !ok {
			return nil
		}
		jc.Metrics.IncRecordsRead(len(batch))

		state = stateTransforming
		for _, t := range transforms {
			var terr error
			batch, terr = t.Transform(ctx, batch)
			if terr != nil {
				return dbsyncerr.Wrap(dbsyncerr.Transform, terr, "worker %d transform", workerIdx)
			}
		}
		jc.Metrics.IncRecordsTransformed(len(batch))

		state = stateWriting
		if err := emit(batch); err != nil {
			return err
		}
	}
}

// runSinkWorker consumes batches from ch until it is closed and the
// channel is drained, writing each one via sink. A single sink worker
// observes its subscribed stream in the order the channel delivered
// batches to it.
func (j *Job) runSinkWorker(
	ctx context.Context, jc *jobctx.Context, logger *log.Entry, workerIdx int, sink connector.Sink, ch <-chan types.Batch,
) error {
	wlog := logger.WithField("sink_worker", workerIdx)
	for {
		select {
		case batch, ok := <-ch:
			if !ok {
				return nil
			}
			if err := sink.WriteBatch(ctx, batch); err != nil {
				jc.RequestShutdown()
				return dbsyncerr.Wrap(dbsyncerr.Write, err, "sink worker %d write", workerIdx)
			}
			jc.Metrics.IncBatchesWritten()
		case <-ctx.Done():
			wlog.Debug("sink worker cancelled")
			return ctx.Err()
		}
	}
}
