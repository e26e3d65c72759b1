package metrics

import (
	"math/rand/v2"
	"sort"

	"github.com/siherrmann/wikigraph/model"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
)

// linkGraph is the directed LinksTo graph with dense int64 node ids
type linkGraph struct {
	g     *simple.DirectedGraph
	index map[string]int64
	ids   []string
	edges int
}

// newLinkGraph builds the LinksTo graph. Nodes only referenced by links
// take part in shortest paths but get no score of their own.
func newLinkGraph(nodeIDs []string, linksTo map[string][]string) *linkGraph {
	lg := &linkGraph{
		g:     simple.NewDirectedGraph(),
		index: map[string]int64{},
	}

	add := func(id string) int64 {
		if i, ok := lg.index[id]; ok {
			return i
		}
		i := int64(len(lg.ids))
		lg.index[id] = i
		lg.ids = append(lg.ids, id)
		lg.g.AddNode(simple.Node(i))
		return i
	}

	for _, id := range nodeIDs {
		add(id)
	}
	for _, source := range nodeIDs {
		for _, target := range linksTo[source] {
			if target == source {
				continue
			}
			from, to := add(source), add(target)
			if lg.g.HasEdgeFromTo(from, to) {
				continue
			}
			lg.g.SetEdge(lg.g.NewEdge(simple.Node(from), simple.Node(to)))
			lg.edges++
		}
	}

	return lg
}

// betweenness returns the betweenness of every node. Graphs above
// exactLimit nodes are approximated from samples pivots.
func (lg *linkGraph) betweenness(exactLimit int, samples int, seed uint64) map[int64]float64 {
	n := len(lg.ids)
	if n == 0 || lg.edges == 0 {
		return map[int64]float64{}
	}
	if n <= exactLimit || samples >= n {
		return network.Betweenness(lg.g)
	}
	return sampledBetweenness(lg.g, n, samples, seed)
}

// sampledBetweenness runs Brandes' accumulation from k random pivots
// and scales the result by n/k.
func sampledBetweenness(g graph.Directed, n int, k int, seed uint64) map[int64]float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	pivots := rng.Perm(n)[:k]

	scores := make(map[int64]float64)
	sigma := make([]float64, n)
	dist := make([]int, n)
	delta := make([]float64, n)
	preds := make([][]int64, n)

	for _, p := range pivots {
		s := int64(p)
		for i := range n {
			sigma[i] = 0
			dist[i] = -1
			delta[i] = 0
			preds[i] = preds[i][:0]
		}
		sigma[s] = 1
		dist[s] = 0

		var stack []int64
		queue := []int64{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)

			to := g.From(v)
			for to.Next() {
				w := to.Node().ID()
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				scores[w] += delta[w]
			}
		}
	}

	scale := float64(n) / float64(k)
	for id := range scores {
		scores[id] *= scale
	}
	return scores
}

// pageRank returns the PageRank of every node, zero for a graph without links
func (lg *linkGraph) pageRank() map[int64]float64 {
	if len(lg.ids) == 0 || lg.edges == 0 {
		return map[int64]float64{}
	}
	return network.PageRank(lg.g, 0.85, 1e-6)
}

// Centrality computes the centrality score of each node in nodeIDs from
// the LinksTo graph. In and out degree count incoming and outgoing links.
// Every score is in [0,1].
func Centrality(config model.Config, nodeIDs []string, linksTo map[string][]string, linkedFrom map[string][]string) map[string]float64 {
	ids := append([]string(nil), nodeIDs...)
	sort.Strings(ids)

	lg := newLinkGraph(ids, linksTo)
	scores := make(map[string]float64, len(ids))

	if config.CentralityMode == model.CentralityPageRank {
		ranks := lg.pageRank()
		maxRank := 0.0
		for _, id := range ids {
			maxRank = max(maxRank, ranks[lg.index[id]])
		}
		for _, id := range ids {
			scores[id] = clip(ratio(ranks[lg.index[id]], maxRank))
		}
		return scores
	}

	btw := lg.betweenness(config.BetweennessExactLimit, config.BetweennessSamples, config.BetweennessSeed)

	var maxIn, maxOut, maxBtw float64
	for _, id := range ids {
		maxIn = max(maxIn, float64(len(linkedFrom[id])))
		maxOut = max(maxOut, float64(len(linksTo[id])))
		maxBtw = max(maxBtw, btw[lg.index[id]])
	}

	for _, id := range ids {
		score := config.InDegreeWeight*ratio(float64(len(linkedFrom[id])), maxIn) +
			config.OutDegreeWeight*ratio(float64(len(linksTo[id])), maxOut) +
			config.BetweennessWeight*ratio(btw[lg.index[id]], maxBtw)
		scores[id] = clip(score)
	}

	return scores
}

func ratio(value float64, maxValue float64) float64 {
	if maxValue <= 0 {
		return 0
	}
	return value / maxValue
}

func clip(value float64) float64 {
	return min(1, max(0, value))
}
