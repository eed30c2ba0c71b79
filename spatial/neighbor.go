package spatial

import (
	"sort"

	"github.com/pkg/errors"
)

// NeighborGraph is the fixed nearest-neighbor structure behind the NNGP
// approximation. Each site lists at most M neighbors with strictly smaller
// index, so the conditioning pattern forms a DAG over sites. The ragged
// neighbor lists are packed into a single arena (NN) addressed by per-site
// offset and count, and the reverse map (who lists me as a neighbor) is
// packed the same way. A graph is immutable once built; the sampler only
// reads it.
type NeighborGraph struct {
	J int // number of sites
	M int // max neighbors per site

	NN      []int // packed neighbor indices, site-major
	NNStart []int // offset of each site's neighbor run in NN
	NNCount []int // neighbors of each site (0 for site 0)

	U      []int // packed reverse map: sites that list i as a neighbor
	UStart []int
	UCount []int
	UPos   []int // position of i inside the referencing site's neighbor list
}

// NIndx is the total packed neighbor-pair count (the length of the B arena).
func (g *NeighborGraph) NIndx() int {
	return len(g.NN)
}

// Neighbors returns site i's neighbor index slice (shared storage, do not
// modify).
func (g *NeighborGraph) Neighbors(i int) []int {
	return g.NN[g.NNStart[i] : g.NNStart[i]+g.NNCount[i]]
}

// RefBy returns the sites that list i as a neighbor (shared storage).
func (g *NeighborGraph) RefBy(i int) []int {
	return g.U[g.UStart[i] : g.UStart[i]+g.UCount[i]]
}

// RefPos returns, aligned with RefBy(i), the position of i inside each
// referencing site's neighbor list.
func (g *NeighborGraph) RefPos(i int) []int {
	return g.UPos[g.UStart[i] : g.UStart[i]+g.UCount[i]]
}

// Check validates the graph invariants against a site count.
func (g *NeighborGraph) Check(j int) error {
	if g.J != j {
		return errors.Errorf("Neighbor graph built for %d sites but data has %d", g.J, j)
	}
	if g.M < 0 {
		return errors.Errorf("Invalid max neighbor count %d", g.M)
	}
	if len(g.NNStart) != g.J || len(g.NNCount) != g.J {
		return errors.Errorf("Neighbor index tables sized %d/%d, want %d", len(g.NNStart), len(g.NNCount), g.J)
	}
	for i := 0; i < g.J; i++ {
		if g.NNCount[i] > g.M {
			return errors.Errorf("Site %d has %d neighbors, max is %d", i, g.NNCount[i], g.M)
		}
		if i == 0 && g.NNCount[0] != 0 {
			return errors.Errorf("Site 0 must have no neighbors, has %d", g.NNCount[0])
		}
		for _, nb := range g.Neighbors(i) {
			if nb < 0 || nb >= i {
				return errors.Errorf("Site %d lists invalid neighbor %d", i, nb)
			}
		}
		refs := g.RefBy(i)
		pos := g.RefPos(i)
		for k, r := range refs {
			if r <= i || r >= g.J {
				return errors.Errorf("Reverse map for site %d lists invalid site %d", i, r)
			}
			if g.NN[g.NNStart[r]+pos[k]] != i {
				return errors.Errorf("Reverse map position for site %d inside site %d is wrong", i, r)
			}
		}
	}
	return nil
}

// BuildNeighborGraph constructs the nearest-neighbor graph for a coordinate
// ordering: site i's neighbors are the (at most) m closest sites with index
// below i, listed in increasing distance. This is the brute-force builder;
// it is quadratic in the site count and meant for model setup, not the
// sampling hot path.
func BuildNeighborGraph(coords []Coord, m int) (*NeighborGraph, error) {
	j := len(coords)
	if j < 1 {
		return nil, errors.Errorf("No coordinates supplied")
	}
	if m < 0 || m >= j {
		return nil, errors.Errorf("Max neighbors %d invalid for %d sites", m, j)
	}

	g := &NeighborGraph{
		J:       j,
		M:       m,
		NNStart: make([]int, j),
		NNCount: make([]int, j),
		UStart:  make([]int, j),
		UCount:  make([]int, j),
	}

	type cand struct {
		idx int
		d   float64
	}

	for i := 0; i < j; i++ {
		g.NNStart[i] = len(g.NN)
		n := i
		if n > m {
			n = m
		}
		g.NNCount[i] = n
		if n == 0 {
			continue
		}

		cands := make([]cand, i)
		for k := 0; k < i; k++ {
			cands[k] = cand{idx: k, d: Dist(coords[i], coords[k])}
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].d != cands[b].d {
				return cands[a].d < cands[b].d
			}
			return cands[a].idx < cands[b].idx
		})
		for k := 0; k < n; k++ {
			g.NN = append(g.NN, cands[k].idx)
		}
	}

	// Reverse map: gather the (site, position) pairs that reference each
	// site, in ascending referencing-site order.
	refs := make([][]int, j)
	poss := make([][]int, j)
	for s := 0; s < j; s++ {
		for k, nb := range g.Neighbors(s) {
			refs[nb] = append(refs[nb], s)
			poss[nb] = append(poss[nb], k)
		}
	}
	for i := 0; i < j; i++ {
		g.UStart[i] = len(g.U)
		g.UCount[i] = len(refs[i])
		g.U = append(g.U, refs[i]...)
		g.UPos = append(g.UPos, poss[i]...)
	}

	return g, nil
}
