package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanShardsEvenSplit(t *testing.T) {
	shards := planShards(0, 99, 4)
	require.Len(t, shards, 4)
	want := []Shard{{0, 25}, {25, 50}, {50, 75}, {75, 100}}
	assert.Equal(t, want, shards)
}

func TestPlanShardsRemainderAbsorbedByLastShard(t *testing.T) {
	shards := planShards(0, 9, 4)
	require.Len(t, shards, 4)
	var total int64
	for _, s := range shards {
		total += s.End - s.Start
	}
	assert.EqualValues(t, 10, total, "shards should exactly cover the 10-row range")
	assert.Equal(t, int64(10), shards[len(shards)-1].End, "last shard should absorb the remainder")
}

func TestPlanShardsFewerRowsThanWorkers(t *testing.T) {
	// 3 rows, 8 workers requested: no more than 3 shards should exist,
	// and no worker should receive an empty range.
	shards := planShards(0, 2, 8)
	assert.LessOrEqual(t, len(shards), 3)
	var total int64
	for _, s := range shards {
		assert.Less(t, s.Start, s.End, "shard %+v should not be empty", s)
		total += s.End - s.Start
	}
	assert.EqualValues(t, 3, total)
}

func TestPlanShardsSingleRow(t *testing.T) {
	shards := planShards(5, 5, 4)
	require.Len(t, shards, 1)
	assert.Equal(t, Shard{Start: 5, End: 6}, shards[0])
}

func TestPlanShardsEmptyRange(t *testing.T) {
	assert.Nil(t, planShards(10, 9, 4))
}

func TestPlanShardsZeroOrNegativeWorkersTreatedAsOne(t *testing.T) {
	shards := planShards(0, 9, 0)
	require.Len(t, shards, 1)
	assert.Equal(t, Shard{0, 10}, shards[0])
}

func TestPlanShardsDisjointAndContiguous(t *testing.T) {
	shards := planShards(100, 999, 7)
	require.NotEmpty(t, shards)
	for i := 1; i < len(shards); i++ {
		assert.Equal(t, shards[i-1].End, shards[i].Start, "gap/overlap between shard %d and %d", i-1, i)
	}
	assert.EqualValues(t, 100, shards[0].Start)
	assert.EqualValues(t, 1000, shards[len(shards)-1].End)
}
