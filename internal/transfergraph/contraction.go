// Contraction implements a from-scratch contraction-hierarchy
// preprocessing pass: order nodes by a degree heuristic, contract them
// one at a time inserting shortcuts where a direct through-path is no
// longer the shortest once the node is removed, and split the result
// into upward/downward edge sets keyed by contraction rank. No CH
// library exists in the reference corpus (the original implementation
// leans on the Rust "fast_paths" crate's contract-then-query design,
// referenced in solari-transfers/src/lib.rs, but no equivalent Go
// library ships alongside it), so this is hand-built and deliberately
// simple: witness search is a bounded Dijkstra rather than a full
// two-hop search, and node ordering is a static degree heuristic rather
// than a dynamic edge-difference priority queue. Correct, not optimal.
package transfergraph

import (
	"container/heap"
	"math"
	"sort"
)

const noVia = ^uint32(0)

// CHEdge is one edge of the contracted graph, either an original street
// edge (Via == noVia) or a shortcut standing in for the two edges
// through the contracted node Via.
type CHEdge struct {
	To       uint32
	WeightMM uint64
	Via      uint32
}

// ContractedGraph is the CH image: per-node upward edges (to
// higher-rank neighbours) and downward edges (from higher-rank
// neighbours), plus the contraction rank itself.
type ContractedGraph struct {
	NumNodes uint32
	Level    []uint32 // node -> contraction rank, ascending contraction order
	Up       [][]CHEdge
	Down     [][]CHEdge
}

// Contract runs the preprocessing pass over g.
func Contract(g *InputGraph) *ContractedGraph {
	n := g.NumNodes()
	order := contractionOrder(g)
	level := make([]uint32, n)
	for rank, node := range order {
		level[node] = uint32(rank)
	}

	// working adjacency, mutated as nodes are contracted
	workOut := make([]map[uint32]uint64, n)
	workIn := make([]map[uint32]uint64, n)
	for i := range workOut {
		workOut[i] = make(map[uint32]uint64)
		workIn[i] = make(map[uint32]uint64)
	}
	for from := uint32(0); from < n; from++ {
		for _, e := range g.Neighbors(from) {
			if existing, ok := workOut[from][e.To]; !ok || e.WeightMM < existing {
				workOut[from][e.To] = e.WeightMM
				workIn[e.To][from] = e.WeightMM
			}
		}
	}

	contracted := make([]bool, n)
	up := make([][]CHEdge, n)
	down := make([][]CHEdge, n)
	shortcutVia := make(map[[2]uint32]uint32)

	for _, v := range order {
		for u, uvWeight := range workIn[v] {
			if contracted[u] {
				continue
			}
			for w, vwWeight := range workOut[v] {
				if contracted[w] || w == u {
					continue
				}
				throughWeight := uvWeight + vwWeight
				witness := boundedWitnessDistance(workOut, contracted, u, w, v, throughWeight)
				if witness > throughWeight {
					if existing, ok := workOut[u][w]; !ok || throughWeight < existing {
						workOut[u][w] = throughWeight
						workIn[w][u] = throughWeight
						shortcutVia[[2]uint32{u, w}] = v
					}
				}
			}
		}
		contracted[v] = true
	}

	// Split the fully-augmented (original + shortcut) graph into
	// up/down sets by rank. shortcutVia was populated above as each
	// shortcut was inserted, so no replay of the contraction loop is
	// needed to recover via nodes.
	for from := uint32(0); from < n; from++ {
		for to, weight := range workOut[from] {
			via := noVia
			if v, ok := shortcutVia[[2]uint32{from, to}]; ok {
				via = v
			}
			edge := CHEdge{To: to, WeightMM: weight, Via: via}
			if level[to] > level[from] {
				up[from] = append(up[from], edge)
			} else {
				down[to] = append(down[to], CHEdge{To: from, WeightMM: weight, Via: via})
			}
		}
	}

	return &ContractedGraph{NumNodes: n, Level: level, Up: up, Down: down}
}

// contractionOrder ranks nodes by ascending degree: low-degree nodes
// (dead ends, simple chains) contract first and rarely introduce
// shortcuts, while high-degree junctions contract last and stay cheap
// to search through at query time.
func contractionOrder(g *InputGraph) []uint32 {
	deg := g.degrees()
	order := make([]uint32, g.NumNodes())
	for i := range order {
		order[i] = uint32(i)
	}
	sort.Slice(order, func(i, j int) bool {
		if deg[order[i]] != deg[order[j]] {
			return deg[order[i]] < deg[order[j]]
		}
		return order[i] < order[j]
	})
	return order
}

// boundedWitnessDistance runs a capped Dijkstra from u avoiding the
// excluded (about-to-be-contracted) node, stopping as soon as it either
// reaches w, exceeds limit, or exhausts a small hop budget — a full
// witness search only needs to know whether a path cheaper than limit
// exists, not the exact shortest distance.
func boundedWitnessDistance(adj []map[uint32]uint64, contracted []bool, u, w, exclude uint32, limit uint64) uint64 {
	const hopBudget = 5
	dist := map[uint32]uint64{u: 0}
	pq := &distHeap{{node: u, dist: 0}}
	hops := 0
	for pq.Len() > 0 && hops < hopBudget*4 {
		cur := heap.Pop(pq).(distItem)
		hops++
		if cur.node == w {
			return cur.dist
		}
		if cur.dist > limit {
			continue
		}
		if d, ok := dist[cur.node]; ok && cur.dist > d {
			continue
		}
		for to, weight := range adj[cur.node] {
			if contracted[to] || to == exclude {
				continue
			}
			nd := cur.dist + weight
			if nd > limit {
				continue
			}
			if existing, ok := dist[to]; !ok || nd < existing {
				dist[to] = nd
				heap.Push(pq, distItem{node: to, dist: nd})
			}
		}
	}
	if d, ok := dist[w]; ok {
		return d
	}
	return math.MaxUint64
}

type distItem struct {
	node uint32
	dist uint64
}

type distHeap []distItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool   { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)        { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{})  { *h = append(*h, x.(distItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
