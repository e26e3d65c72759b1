package retrieval

import (
	"github.com/siherrmann/wikigraph/model"
	"github.com/tidwall/btree"
)

// rankLess orders by combined score descending, then by hierarchy depth
// ascending, then by chunk id
func rankLess(a, b *model.ScoredChunk) bool {
	if a.Combined != b.Combined {
		return a.Combined > b.Combined
	}
	if a.Hit.HierarchyDepth != b.Hit.HierarchyDepth {
		return a.Hit.HierarchyDepth < b.Hit.HierarchyDepth
	}
	return a.Hit.ChunkID.String() < b.Hit.ChunkID.String()
}

// Aggregate sorts the accumulated result by rank
func Aggregate(result *model.RetrievalResult) {
	if result == nil || result.Len() < 2 {
		return
	}

	ranking := btree.NewBTreeGOptions(rankLess, btree.Options{NoLocks: true})
	for _, item := range result.Items() {
		ranking.Set(item)
	}

	ordered := make([]*model.ScoredChunk, 0, result.Len())
	ranking.Scan(func(item *model.ScoredChunk) bool {
		ordered = append(ordered, item)
		return true
	})
	result.Reorder(ordered)
}
