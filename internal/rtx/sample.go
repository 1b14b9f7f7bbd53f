package rtx

import (
	"math/rand/v2"
	"sort"
)

// Address locates one episode: the shard file and the record offset in it.
type Address struct {
	Shard  int
	Offset int
	// Index is the episode's position across the whole split.
	Index int64
}

// Sample picks n episodes of the split, all of them when the split is
// smaller. Without shuffle the first n episodes are taken; with shuffle a
// uniform sample drawn from seed. Addresses are returned in read order.
func Sample(s *Split, n int, shuffle bool, seed uint64) []Address {
	total := s.NumEpisodes()
	if n <= 0 || total == 0 {
		return nil
	}
	if int64(n) > total {
		n = int(total)
	}

	indexes := make([]int64, 0, n)
	if shuffle {
		// Floyd's algorithm: n distinct values without materialising 0..total.
		r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		chosen := make(map[int64]bool, n)
		for j := total - int64(n); j < total; j++ {
			t := r.Int64N(j + 1)
			if chosen[t] {
				t = j
			}
			chosen[t] = true
			indexes = append(indexes, t)
		}
		sort.Slice(indexes, func(a, b int) bool { return indexes[a] < indexes[b] })
	} else {
		for i := int64(0); i < int64(n); i++ {
			indexes = append(indexes, i)
		}
	}

	addrs := make([]Address, 0, n)
	shard, start := 0, int64(0)
	for _, idx := range indexes {
		for idx >= start+int64(s.ShardLengths[shard]) {
			start += int64(s.ShardLengths[shard])
			shard++
		}
		addrs = append(addrs, Address{Shard: shard, Offset: int(idx - start), Index: idx})
	}
	return addrs
}
