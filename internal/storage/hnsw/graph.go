package hnsw

import (
	"cmp"
	"container/heap"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/0x5457/decl-index/internal/storage"
)

const maxLevel = 16

type candidate struct {
	id   uint32
	dist float32
}

func compareCandidates(a, b candidate) int {
	if c := cmp.Compare(a.dist, b.dist); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// nearQueue pops the closest candidate first.
type nearQueue []candidate

func (q nearQueue) Len() int           { return len(q) }
func (q nearQueue) Less(i, j int) bool { return compareCandidates(q[i], q[j]) < 0 }
func (q nearQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nearQueue) Push(x any)        { *q = append(*q, x.(candidate)) }
func (q *nearQueue) Pop() any {
	old := *q
	c := old[len(old)-1]
	*q = old[:len(old)-1]
	return c
}

// farQueue pops the farthest candidate first; its top is the worst kept result.
type farQueue []candidate

func (q farQueue) Len() int           { return len(q) }
func (q farQueue) Less(i, j int) bool { return compareCandidates(q[i], q[j]) > 0 }
func (q farQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *farQueue) Push(x any)        { *q = append(*q, x.(candidate)) }
func (q *farQueue) Pop() any {
	old := *q
	c := old[len(old)-1]
	*q = old[:len(old)-1]
	return c
}

// node is one distinct vector. Rows holding an identical vector share it.
type node struct {
	vec   []float32
	rows  []int64
	links [][]uint32
}

// graph is a layered small-world graph over distinct vectors. Inserts are
// single-threaded; a built graph is read-only and safe for concurrent search.
type graph struct {
	dim            int
	m              int
	m0             int
	efConstruction int
	levelMult      float64
	rng            *rand.Rand

	nodes []*node
	entry int32
	top   int
	rows  int

	buckets map[uint64][]uint32
}

func newGraph(p Params, dim int) *graph {
	return &graph{
		dim:            dim,
		m:              p.M,
		m0:             2 * p.M,
		efConstruction: p.EfConstruction,
		levelMult:      1 / math.Log(float64(p.M)),
		rng:            rand.New(rand.NewPCG(uint64(p.M), uint64(p.EfConstruction))),
		entry:          -1,
		buckets:        make(map[uint64][]uint32),
	}
}

func (g *graph) maxLinks(level int) int {
	if level == 0 {
		return g.m0
	}
	return g.m
}

func (g *graph) randomLevel() int {
	level := int(math.Floor(-math.Log(1-g.rng.Float64()) * g.levelMult))
	return min(level, maxLevel)
}

func hashVector(v []float32) uint64 {
	h := uint64(14695981039346656037)
	for _, f := range v {
		bits := math.Float32bits(f)
		if f == 0 {
			bits = 0
		}
		h ^= uint64(bits)
		h *= 1099511628211
	}
	return h
}

func (g *graph) index(id uint32) {
	h := hashVector(g.nodes[id].vec)
	g.buckets[h] = append(g.buckets[h], id)
}

// find returns the node holding exactly v.
func (g *graph) find(v []float32) (uint32, bool) {
	for _, id := range g.buckets[hashVector(v)] {
		if slices.Equal(g.nodes[id].vec, v) {
			return id, true
		}
	}
	return 0, false
}

func (g *graph) distance(q []float32, id uint32) float32 {
	return storage.SquaredL2(q, g.nodes[id].vec)
}

func (g *graph) insert(vec []float32, row int64) {
	g.rows++
	if id, ok := g.find(vec); ok {
		g.nodes[id].rows = append(g.nodes[id].rows, row)
		return
	}

	level := g.randomLevel()
	id := uint32(len(g.nodes))
	n := &node{vec: vec, rows: []int64{row}, links: make([][]uint32, level+1)}
	g.nodes = append(g.nodes, n)
	g.index(id)

	if g.entry < 0 {
		g.entry = int32(id)
		g.top = level
		return
	}

	ep := []candidate{{id: uint32(g.entry), dist: g.distance(vec, uint32(g.entry))}}
	for l := g.top; l > level; l-- {
		ep = g.searchLayer(vec, ep, 1, l)
	}
	for l := min(level, g.top); l >= 0; l-- {
		found := g.searchLayer(vec, ep, g.efConstruction, l)
		neighbors := g.selectNeighbors(found, g.maxLinks(l))
		n.links[l] = candidateIDs(neighbors)
		for _, c := range neighbors {
			g.link(c.id, id, l)
		}
		ep = found
	}
	if level > g.top {
		g.top = level
		g.entry = int32(id)
	}
}

// link adds b to the neighbour list of a, re-selecting the list when it
// overflows.
func (g *graph) link(a, b uint32, level int) {
	n := g.nodes[a]
	n.links[level] = append(n.links[level], b)
	limit := g.maxLinks(level)
	if len(n.links[level]) <= limit {
		return
	}
	cands := make([]candidate, len(n.links[level]))
	for i, nb := range n.links[level] {
		cands[i] = candidate{id: nb, dist: g.distance(n.vec, nb)}
	}
	slices.SortFunc(cands, compareCandidates)
	n.links[level] = candidateIDs(g.selectNeighbors(cands, limit))
}

// selectNeighbors keeps up to limit candidates (sorted by distance to the
// base vector), skipping those closer to an already kept candidate than to
// the base, then fills the remaining slots with the skipped ones.
func (g *graph) selectNeighbors(cands []candidate, limit int) []candidate {
	if len(cands) <= limit {
		return cands
	}
	kept := make([]candidate, 0, limit)
	var skipped []candidate
	for _, c := range cands {
		if len(kept) >= limit {
			break
		}
		diverse := true
		for _, k := range kept {
			if storage.SquaredL2(g.nodes[c.id].vec, g.nodes[k.id].vec) < c.dist {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, c)
		} else {
			skipped = append(skipped, c)
		}
	}
	for _, c := range skipped {
		if len(kept) >= limit {
			break
		}
		kept = append(kept, c)
	}
	return kept
}

// searchLayer runs a beam of width ef over one layer from entries and returns
// the ef closest nodes it reached, nearest first.
func (g *graph) searchLayer(q []float32, entries []candidate, ef, level int) []candidate {
	visited := make(map[uint32]struct{}, 4*ef)
	cands := make(nearQueue, 0, ef)
	found := make(farQueue, 0, ef+1)
	for _, e := range entries {
		if _, ok := visited[e.id]; ok {
			continue
		}
		visited[e.id] = struct{}{}
		heap.Push(&cands, e)
		heap.Push(&found, e)
		if found.Len() > ef {
			heap.Pop(&found)
		}
	}

	for cands.Len() > 0 {
		c := heap.Pop(&cands).(candidate)
		if found.Len() >= ef && c.dist > found[0].dist {
			break
		}
		for _, nb := range g.nodes[c.id].links[level] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			d := g.distance(q, nb)
			if found.Len() < ef || d < found[0].dist {
				heap.Push(&cands, candidate{id: nb, dist: d})
				heap.Push(&found, candidate{id: nb, dist: d})
				if found.Len() > ef {
					heap.Pop(&found)
				}
			}
		}
	}

	out := []candidate(found)
	slices.SortFunc(out, compareCandidates)
	return out
}

// search returns up to ef nodes closest to q, nearest first. A node holding
// exactly q is always among them.
func (g *graph) search(q []float32, ef int) []candidate {
	if g.entry < 0 {
		return nil
	}
	if len(g.nodes) <= ef {
		return g.scan(q)
	}
	ep := []candidate{{id: uint32(g.entry), dist: g.distance(q, uint32(g.entry))}}
	for l := g.top; l > 0; l-- {
		ep = g.searchLayer(q, ep, 1, l)
	}
	if id, ok := g.find(q); ok {
		ep = append(ep, candidate{id: id, dist: g.distance(q, id)})
	}
	return g.searchLayer(q, ep, ef, 0)
}

func (g *graph) scan(q []float32) []candidate {
	out := make([]candidate, len(g.nodes))
	for i := range g.nodes {
		out[i] = candidate{id: uint32(i), dist: g.distance(q, uint32(i))}
	}
	slices.SortFunc(out, compareCandidates)
	return out
}

func candidateIDs(cs []candidate) []uint32 {
	ids := make([]uint32, len(cs))
	for i, c := range cs {
		ids[i] = c.id
	}
	return ids
}
