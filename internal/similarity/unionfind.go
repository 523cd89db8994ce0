package similarity

// unionFind keeps the smallest index of each set as its root, so component
// order falls out of a single ascending scan.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		next := u.parent[x]
		u.parent[x] = root
		x = next
	}
	return root
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	switch {
	case ra == rb:
		return
	case ra < rb:
		u.parent[rb] = ra
	default:
		u.parent[ra] = rb
	}
}

// components returns every set with two or more members. Members are
// ascending and sets are ordered by their smallest member.
func (u *unionFind) components() [][]int {
	slot := make([]int, len(u.parent))
	for i := range slot {
		slot[i] = -1
	}
	var all [][]int
	for i := range u.parent {
		root := u.find(i)
		if slot[root] < 0 {
			slot[root] = len(all)
			all = append(all, nil)
		}
		all[slot[root]] = append(all[slot[root]], i)
	}

	var groups [][]int
	for _, members := range all {
		if len(members) >= 2 {
			groups = append(groups, members)
		}
	}
	return groups
}
