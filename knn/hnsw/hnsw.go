// Package hnsw provides the approximate nearest-neighbor backend: a
// Hierarchical Navigable Small World graph.
//
// Level assignment is the only randomized step; it is driven by a seeded
// generator so index construction, and therefore every downstream anchor
// set, is reproducible for a fixed seed and insertion order.
package hnsw

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/scgo/mnncorrect/internal/queue"
	"github.com/scgo/mnncorrect/knn"
)

// Compile-time check that HNSW satisfies the backend contract.
var _ knn.Index = (*HNSW)(nil)

// Node is one graph node: its vector, its top layer and per-layer links.
type Node struct {
	Connections [][]uint32
	Vector      []float64
	Layer       int
	ID          uint32
}

// Options configures graph construction and search.
type Options struct {
	// M is the number of links added per node and layer during
	// construction. Higher M improves recall on high-dimensional data at
	// the cost of memory and insert time; 12-48 covers most workloads.
	// Very small M keeps every back-link instead of pruning, so node
	// reachability never degrades on sparse graphs.
	M int

	// EFConstruction is the candidate list size while inserting.
	EFConstruction int

	// EFSearch is the candidate list size while querying. It is raised to
	// k when a query asks for more neighbors.
	EFSearch int

	// Heuristic selects the diversity-aware neighbor pruning strategy
	// instead of plain nearest-M.
	Heuristic bool

	// Seed drives randomized level assignment.
	Seed int64
}

// DefaultOptions are the default graph parameters.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	EFSearch:       100,
	Heuristic:      true,
	Seed:           1,
}

// HNSW is a layered proximity graph over float64 vectors.
type HNSW struct {
	mu       sync.RWMutex
	dim      int
	mmax     int     // max links per node per layer
	mmax0    int     // max links on layer 0
	ml       float64 // level generation normalization factor
	ep       uint32  // entry point
	maxLevel int
	nodes    []*Node
	rng      *rand.Rand
	opts     Options
}

// New creates an empty HNSW index for dim-dimensional vectors.
func New(dim int, optFns ...func(o *Options)) (*HNSW, error) {
	if dim <= 0 {
		return nil, &knn.ErrInvalidDimension{Dimension: dim}
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.M < 2 {
		// M == 1 would make the level normalization 1/log(M) divide by zero.
		opts.M = 2
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}
	if opts.EFSearch < 1 {
		opts.EFSearch = 1
	}

	return &HNSW{
		dim:   dim,
		mmax:  opts.M,
		mmax0: 2 * opts.M,
		ml:    1 / math.Log(float64(opts.M)),
		rng:   rand.New(rand.NewSource(opts.Seed)),
		opts:  opts,
	}, nil
}

// Insert adds a vector copy to the graph and returns its sequential id.
func (h *HNSW) Insert(ctx context.Context, v []float64) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, knn.ErrEmptyVector
	}
	if len(v) != h.dim {
		return 0, &knn.ErrDimensionMismatch{Expected: h.dim, Actual: len(v)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// 1 - Float64() keeps the argument of Log in (0, 1].
	layer := int(math.Floor(-math.Log(1-h.rng.Float64()) * h.ml))

	id := uint32(len(h.nodes))
	node := &Node{
		ID:          id,
		Vector:      slices.Clone(v),
		Layer:       layer,
		Connections: make([][]uint32, layer+1),
	}

	if len(h.nodes) == 0 {
		h.nodes = append(h.nodes, node)
		h.ep = id
		h.maxLevel = layer
		return id, nil
	}

	// Greedy descent through layers above the node's top layer.
	entryID, entryDist := h.descend(node.Vector, h.ep, h.maxLevel, layer+1)

	for level := min(layer, h.maxLevel); level >= 0; level-- {
		candidates := h.searchLayer(node.Vector, entryID, entryDist, h.opts.EFConstruction, level)

		maxConns := h.mmax
		if level == 0 {
			maxConns = h.mmax0
		}
		node.Connections[level] = h.selectNeighbors(node.Vector, candidates, maxConns)

		if len(candidates) > 0 {
			entryID, entryDist = candidates[0].ID, candidates[0].Distance
		}
	}

	h.nodes = append(h.nodes, node)

	// Link neighbors back, pruning overflowing connection lists.
	for level := min(layer, h.maxLevel); level >= 0; level-- {
		for _, neighbor := range node.Connections[level] {
			h.link(neighbor, id, level)
		}
	}

	if layer > h.maxLevel {
		h.ep = id
		h.maxLevel = layer
	}

	return id, nil
}

// KNNSearch returns up to k approximate nearest neighbors of q, ascending
// by distance. Recall depends on EFSearch and M.
func (h *HNSW) KNNSearch(ctx context.Context, q []float64, k int) ([]knn.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, knn.ErrInvalidK
	}
	if len(q) != h.dim {
		return nil, &knn.ErrDimensionMismatch{Expected: h.dim, Actual: len(q)}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 {
		return nil, nil
	}

	entryID, entryDist := h.descend(q, h.ep, h.maxLevel, 1)

	ef := max(h.opts.EFSearch, k)
	candidates := h.searchLayer(q, entryID, entryDist, ef, 0)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]knn.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = knn.SearchResult{ID: c.ID, Distance: c.Distance}
	}
	return results, nil
}

// Len returns the number of inserted vectors.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Dimension returns the configured dimensionality.
func (h *HNSW) Dimension() int { return h.dim }

// descend walks greedily from the entry point down to (but excluding)
// stopLevel, returning the nearest node found and its distance.
func (h *HNSW) descend(q []float64, epID uint32, fromLevel, stopLevel int) (uint32, float64) {
	currID := epID
	currDist := knn.SquaredL2(q, h.nodes[currID].Vector)

	for level := fromLevel; level >= stopLevel; level-- {
		for changed := true; changed; {
			changed = false
			curr := h.nodes[currID]
			if level >= len(curr.Connections) {
				continue
			}
			for _, nid := range curr.Connections[level] {
				if d := knn.SquaredL2(q, h.nodes[nid].Vector); d < currDist {
					currID, currDist = nid, d
					changed = true
				}
			}
		}
	}
	return currID, currDist
}

// searchLayer runs a best-first search on one layer, returning up to ef
// candidates ascending by (distance, id).
func (h *HNSW) searchLayer(q []float64, epID uint32, epDist float64, ef, level int) []queue.Item {
	var visited bitset.BitSet
	visited.Set(uint(epID))

	candidates := queue.NewMin(ef)
	candidates.Push(queue.Item{ID: epID, Distance: epDist})

	results := queue.NewMax(ef)
	results.Push(queue.Item{ID: epID, Distance: epDist})

	for candidates.Len() > 0 {
		candidate, _ := candidates.Pop()
		if worst, _ := results.Top(); candidate.Distance > worst.Distance {
			break
		}

		node := h.nodes[candidate.ID]
		if level >= len(node.Connections) {
			continue
		}
		for _, nid := range node.Connections[level] {
			if visited.Test(uint(nid)) {
				continue
			}
			visited.Set(uint(nid))

			d := knn.SquaredL2(q, h.nodes[nid].Vector)
			worst, _ := results.Top()
			if results.Len() < ef || d < worst.Distance {
				item := queue.Item{ID: nid, Distance: d}
				candidates.Push(item)
				results.PushBounded(item, ef)
			}
		}
	}

	return results.Drain()
}

// selectNeighbors picks up to maxConns links for a new node from the
// ascending candidate list.
func (h *HNSW) selectNeighbors(q []float64, candidates []queue.Item, maxConns int) []uint32 {
	if !h.opts.Heuristic || len(candidates) <= maxConns {
		n := min(maxConns, len(candidates))
		out := make([]uint32, n)
		for i := 0; i < n; i++ {
			out[i] = candidates[i].ID
		}
		return out
	}

	// Diversity heuristic: keep a candidate only if it is closer to the
	// query than to every already-kept neighbor; backfill from the
	// discarded set when fewer than maxConns survive.
	kept := make([]queue.Item, 0, maxConns)
	discarded := make([]queue.Item, 0, len(candidates))

	for _, c := range candidates {
		if len(kept) >= maxConns {
			break
		}
		closerToKept := false
		for _, kc := range kept {
			if knn.SquaredL2(h.nodes[c.ID].Vector, h.nodes[kc.ID].Vector) < c.Distance {
				closerToKept = true
				break
			}
		}
		if closerToKept {
			discarded = append(discarded, c)
		} else {
			kept = append(kept, c)
		}
	}
	for _, c := range discarded {
		if len(kept) >= maxConns {
			break
		}
		kept = append(kept, c)
	}

	out := make([]uint32, len(kept))
	for i, c := range kept {
		out[i] = c.ID
	}
	return out
}

// Connection lists at or below this width are never pruned: with so few
// edges a prune can drop a node's last in-edge and leave it unreachable
// at its layer.
const pruneFloor = 4

// link connects from -> to on the given level, pruning the connection
// list when it overflows the per-level maximum. Lists narrower than
// pruneFloor grow unpruned so the layer graph stays connected.
func (h *HNSW) link(from, to uint32, level int) {
	maxConns := h.mmax
	if level == 0 {
		maxConns = h.mmax0
	}

	node := h.nodes[from]
	node.Connections[level] = append(node.Connections[level], to)
	if len(node.Connections[level]) <= maxConns || maxConns <= pruneFloor {
		return
	}

	candidates := make([]queue.Item, 0, len(node.Connections[level]))
	for _, nid := range node.Connections[level] {
		candidates = append(candidates, queue.Item{
			ID:       nid,
			Distance: knn.SquaredL2(node.Vector, h.nodes[nid].Vector),
		})
	}
	slices.SortFunc(candidates, func(a, b queue.Item) int {
		if a.Distance != b.Distance {
			if a.Distance < b.Distance {
				return -1
			}
			return 1
		}
		return int(a.ID) - int(b.ID)
	})

	node.Connections[level] = h.selectNeighbors(node.Vector, candidates, maxConns)
}
