package similarity

import (
	"math/bits"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photodup/internal/imageprocessing"
)

func node(t *testing.T, size int64, words ...uint64) Node {
	t.Helper()
	n := Node{Size: size}
	for i, w := range words {
		h, err := imageprocessing.NewHashValue([]uint64{w}, 64)
		require.NoError(t, err)
		n.Variants = append(n.Variants, imageprocessing.Variant{Transform: imageprocessing.Transform(i), Hash: h})
	}
	return n
}

// flip returns w with the lowest k bits inverted.
func flip(w uint64, k int) uint64 {
	if k == 0 {
		return w
	}
	return w ^ (^uint64(0) >> (64 - k))
}

// bruteForce is the plain definition: link every pair within the threshold
// and collect components by graph search.
func bruteForce(nodes []Node, opts Options) [][]int {
	n := len(nodes)
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if Linked(nodes[i], nodes[j], opts) {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}
	seen := make([]bool, n)
	var groups [][]int
	for i := 0; i < n; i++ {
		if seen[i] {
			continue
		}
		members := make([]bool, n)
		stack := []int{i}
		seen[i] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members[cur] = true
			for _, next := range adj[cur] {
				if !seen[next] {
					seen[next] = true
					stack = append(stack, next)
				}
			}
		}
		var group []int
		for k, in := range members {
			if in {
				group = append(group, k)
			}
		}
		if len(group) >= 2 {
			groups = append(groups, group)
		}
	}
	return groups
}

func randomNodes(t *testing.T, seed int64, n int) []Node {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	bases := []uint64{rng.Uint64(), rng.Uint64(), rng.Uint64(), rng.Uint64()}
	nodes := make([]Node, n)
	for i := range nodes {
		base := bases[rng.Intn(len(bases))]
		variants := 1 + rng.Intn(2)
		words := make([]uint64, variants)
		for v := range words {
			words[v] = flip(base, rng.Intn(12))
		}
		if rng.Intn(5) == 0 {
			words[0] = rng.Uint64()
		}
		nodes[i] = node(t, int64(rng.Intn(4)), words...)
	}
	return nodes
}

func TestGroupMatchesBruteForce(t *testing.T) {
	for seed := int64(1); seed <= 6; seed++ {
		nodes := randomNodes(t, seed, 60)
		for _, threshold := range []uint32{0, 1, 4, 10} {
			for _, exclude := range []bool{false, true} {
				opts := Options{Threshold: threshold, Algorithm: imageprocessing.Gradient, ExcludeSameSize: exclude, Workers: 4}
				got := Group(nodes, opts, nil, nil)
				assert.False(t, got.Stopped)
				assert.Equal(t, bruteForce(nodes, opts), got.Groups,
					"seed %d threshold %d exclude %v", seed, threshold, exclude)
			}
		}
	}
}

func TestGroupIndependentOfWorkerCount(t *testing.T) {
	nodes := randomNodes(t, 42, 80)
	opts := Options{Threshold: 6, Algorithm: imageprocessing.Gradient}

	opts.Workers = 1
	want := Group(nodes, opts, nil, nil)
	for _, workers := range []int{2, 3, 7, 200} {
		opts.Workers = workers
		assert.Equal(t, want.Groups, Group(nodes, opts, nil, nil).Groups, "workers %d", workers)
	}
}

func TestGroupIsTransitive(t *testing.T) {
	// a~b and b~c but a and c are far apart.
	a := node(t, 1, 0)
	b := node(t, 2, flip(0, 5))
	c := node(t, 3, flip(0, 10))
	far := node(t, 4, ^uint64(0))

	got := Group([]Node{a, far, b, c}, Options{Threshold: 5, Algorithm: imageprocessing.Mean}, nil, nil)
	assert.Equal(t, [][]int{{0, 2, 3}}, got.Groups)
}

func TestGroupOrdering(t *testing.T) {
	nodes := []Node{
		node(t, 1, 0xAAAA),
		node(t, 1, 0x5555),
		node(t, 1, 0x5555),
		node(t, 1, 0xAAAA),
		node(t, 1, 0x1234),
	}
	for _, threshold := range []uint32{0, 1} {
		got := Group(nodes, Options{Threshold: threshold, Algorithm: imageprocessing.Gradient}, nil, nil)
		assert.Equal(t, [][]int{{0, 3}, {1, 2}}, got.Groups, "threshold %d", threshold)
	}
}

func TestGroupAnyVariantPairLinks(t *testing.T) {
	a := node(t, 1, 0x0F, 0xFF00)
	b := node(t, 2, 0xF0F0F0F0, 0xFF00)

	got := Group([]Node{a, b}, Options{Algorithm: imageprocessing.Gradient}, nil, nil)
	assert.Equal(t, [][]int{{0, 1}}, got.Groups)

	// A node whose own variants coincide must not be bucketed twice.
	sym := node(t, 3, 0x77, 0x77)
	got = Group([]Node{sym}, Options{Algorithm: imageprocessing.Gradient}, nil, nil)
	assert.Empty(t, got.Groups)
}

func TestGroupExcludeSameSize(t *testing.T) {
	nodes := []Node{
		node(t, 100, 0xABCD),
		node(t, 100, 0xABCD),
		node(t, 200, 0xABCD),
	}
	for _, threshold := range []uint32{0, 3} {
		opts := Options{Threshold: threshold, Algorithm: imageprocessing.Gradient, ExcludeSameSize: true}
		got := Group(nodes, opts, nil, nil)
		assert.Equal(t, [][]int{{0, 1, 2}}, got.Groups, "joined through the differently sized node")

		got = Group(nodes[:2], opts, nil, nil)
		assert.Empty(t, got.Groups, "same size pair is never linked")
	}
}

func TestGroupIgnoresMismatchedLengths(t *testing.T) {
	short, err := imageprocessing.NewHashValue([]uint64{0}, 32)
	require.NoError(t, err)
	a := Node{Size: 1, Variants: []imageprocessing.Variant{{Hash: short}}}
	b := node(t, 2, 0)

	for _, threshold := range []uint32{0, 64} {
		got := Group([]Node{a, b}, Options{Threshold: threshold, Algorithm: imageprocessing.Gradient}, nil, nil)
		assert.Empty(t, got.Groups, "threshold %d", threshold)
	}
}

func TestGroupStopped(t *testing.T) {
	nodes := randomNodes(t, 3, 30)
	var stop atomic.Bool
	stop.Store(true)

	for _, threshold := range []uint32{0, 8} {
		got := Group(nodes, Options{Threshold: threshold, Algorithm: imageprocessing.Gradient}, &stop, nil)
		assert.True(t, got.Stopped)
		assert.Empty(t, got.Groups)
	}
}

func TestGroupReportsProgress(t *testing.T) {
	nodes := randomNodes(t, 9, 20)
	var calls, last atomic.Int64
	progress := func(done, total int) {
		calls.Add(1)
		assert.LessOrEqual(t, done, total)
		last.Store(int64(total))
	}
	Group(nodes, Options{Threshold: 2, Algorithm: imageprocessing.Gradient, Workers: 3}, nil, progress)
	assert.Equal(t, int64(20), calls.Load())
	assert.Equal(t, int64(20), last.Load())
}

func TestGroupTinyInputs(t *testing.T) {
	assert.Empty(t, Group(nil, Options{}, nil, nil).Groups)
	assert.Empty(t, Group([]Node{node(t, 1, 0)}, Options{}, nil, nil).Groups)
}

func TestFlipHelper(t *testing.T) {
	for k := 0; k <= 64; k += 8 {
		assert.Equal(t, k, bits.OnesCount64(flip(0, k)))
	}
}

func TestLinkedAtZeroMatchesDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	opts := Options{Algorithm: imageprocessing.Gradient}
	for i := 0; i < 200; i++ {
		w := rng.Uint64()
		other := w
		if i%2 == 1 {
			other = flip(w, 1+rng.Intn(3))
		}
		a, b := node(t, 1, w), node(t, 2, other)
		d, err := opts.Algorithm.Distance(a.Variants[0].Hash, b.Variants[0].Hash)
		require.NoError(t, err)
		assert.Equal(t, d == 0, Linked(a, b, opts), "pair %d", i)
	}

	short, err := imageprocessing.NewHashValue([]uint64{0}, 32)
	require.NoError(t, err)
	a := node(t, 1, 0)
	b := Node{Size: 2, Variants: []imageprocessing.Variant{{Hash: short}}}
	assert.False(t, Linked(a, b, opts), "hashes of different length never match")
	assert.False(t, Linked(Node{Size: 1, Variants: []imageprocessing.Variant{{}}}, Node{Size: 2, Variants: []imageprocessing.Variant{{}}}, opts))
}
