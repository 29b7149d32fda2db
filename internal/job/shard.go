package job

// Shard is a contiguous half-open [Start, End) range over the source's
// primary ordering column, assigned to one worker.
type Shard struct {
	Start, End int64
}

// planShards partitions [min, max] into w contiguous, disjoint
// half-open shards. The final shard absorbs any remainder so the
// shards exactly cover [min, max]. If max < min, no shards are
// planned. w <= 0 is treated as 1.
func planShards(min, max int64, w int) []Shard {
	if max < min {
		return nil
	}
	if w <= 0 {
		w = 1
	}
	total := max - min + 1
	size := total / int64(w)
	if size == 0 {
		size = 1
	}
	shards := make([]Shard, 0, w)
	start := min
	for i := 0; i < w && start <= max; i++ {
		isLast := i == w-1
		end := start + size
		if isLast || end > max+1 {
			end = max + 1
		}
		if start >= end {
			break
		}
		shards = append(shards, Shard{Start: start, End: end})
		start = end
	}
	return shards
}
