// Package similarity links hashed images whose perceptual hashes are close
// and splits the resulting graph into connected groups.
package similarity

import (
	"runtime"
	"sort"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"photodup/internal/imageprocessing"
)

// Node is one hashed image. Its position in the slice given to Group is its
// identity, so callers must pass nodes in a stable order.
type Node struct {
	Size     int64
	Variants []imageprocessing.Variant
}

// Options controls which pairs of nodes are linked.
type Options struct {
	Threshold       uint32
	Algorithm       imageprocessing.Algorithm
	ExcludeSameSize bool
	// Workers bounds the number of comparison shards; <= 0 uses GOMAXPROCS.
	Workers int
}

// ProgressFunc receives the number of finished comparison units out of
// total. It is called from several goroutines.
type ProgressFunc func(done, total int)

// Result holds the groups as ascending node indices. Groups are ordered by
// their smallest index and always have at least two members.
type Result struct {
	Groups  [][]int
	Stopped bool
}

type edge struct{ a, b int }

// Group builds the similarity graph over nodes and returns its connected
// components of size two or more. stop may be nil. When stop is set during
// the comparison phase, the components formed by the edges found so far are
// returned with Stopped set.
func Group(nodes []Node, opts Options, stop *atomic.Bool, progress ProgressFunc) Result {
	if stop == nil {
		stop = new(atomic.Bool)
	}
	if len(nodes) < 2 {
		return Result{Stopped: stop.Load()}
	}

	var (
		edges   []edge
		stopped bool
	)
	if opts.Threshold == 0 {
		edges, stopped = exactEdges(nodes, opts, stop, progress)
	} else {
		edges, stopped = pairwiseEdges(nodes, opts, stop, progress)
	}

	uf := newUnionFind(len(nodes))
	for _, e := range edges {
		uf.union(e.a, e.b)
	}
	return Result{Groups: uf.components(), Stopped: stopped}
}

// Linked reports whether an edge exists between a and b.
func Linked(a, b Node, opts Options) bool {
	if opts.ExcludeSameSize && a.Size == b.Size {
		return false
	}
	for _, va := range a.Variants {
		for _, vb := range b.Variants {
			if opts.Threshold == 0 {
				if va.Hash.Equal(vb.Hash) {
					return true
				}
				continue
			}
			d, err := opts.Algorithm.Distance(va.Hash, vb.Hash)
			if err == nil && uint64(d) <= uint64(opts.Threshold) {
				return true
			}
		}
	}
	return false
}

// pairwiseEdges compares every pair once. Rows are dealt round-robin to the
// shards so the triangular workload stays balanced.
func pairwiseEdges(nodes []Node, opts Options, stop *atomic.Bool, progress ProgressFunc) ([]edge, bool) {
	n := len(nodes)
	shards := opts.Workers
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}
	if shards > n {
		shards = n
	}

	found := make([][]edge, shards)
	var (
		done    atomic.Int64
		stopped atomic.Bool
		g       errgroup.Group
	)
	g.SetLimit(shards)
	for s := 0; s < shards; s++ {
		s := s
		g.Go(func() error {
			var local []edge
			for i := s; i < n; i += shards {
				if stop.Load() {
					stopped.Store(true)
					break
				}
				for j := i + 1; j < n; j++ {
					if Linked(nodes[i], nodes[j], opts) {
						local = append(local, edge{i, j})
					}
				}
				if progress != nil {
					progress(int(done.Add(1)), n)
				}
			}
			found[s] = local
			return nil
		})
	}
	_ = g.Wait()

	var edges []edge
	for _, local := range found {
		edges = append(edges, local...)
	}
	return edges, stopped.Load()
}

// exactEdges handles threshold 0, where a link means two variants carry the
// same hash. Nodes are bucketed by hash so only bucket mates are paired.
func exactEdges(nodes []Node, opts Options, stop *atomic.Bool, progress ProgressFunc) ([]edge, bool) {
	buckets := make(map[string][]int)
	for i, node := range nodes {
		seen := make(map[string]bool, len(node.Variants))
		for _, v := range node.Variants {
			if v.Hash.Bits() == 0 {
				continue
			}
			key := bucketKey(v.Hash)
			if seen[key] {
				continue
			}
			seen[key] = true
			buckets[key] = append(buckets[key], i)
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var edges []edge
	for done, k := range keys {
		if stop.Load() {
			return edges, true
		}
		members := buckets[k]
		if opts.ExcludeSameSize {
			for x := 0; x < len(members); x++ {
				for y := x + 1; y < len(members); y++ {
					if nodes[members[x]].Size != nodes[members[y]].Size {
						edges = append(edges, edge{members[x], members[y]})
					}
				}
			}
		} else {
			// A chain connects the bucket as well as the full clique does.
			for x := 1; x < len(members); x++ {
				edges = append(edges, edge{members[x-1], members[x]})
			}
		}
		if progress != nil {
			progress(done+1, len(keys))
		}
	}
	return edges, false
}

func bucketKey(h imageprocessing.HashValue) string {
	return h.String() + "/" + strconv.Itoa(h.Bits())
}
