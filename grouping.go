package pdfimages

import (
	"sort"
)

// unionFind is a disjoint-set forest with path compression and union by rank.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

// groupSettings are the thresholds used by groupOverlaps.
type groupSettings struct {
	OverlapThreshold   float64
	AdjacencyTolerance float64
}

// groupOverlaps partitions the non-background images of one page into
// groups that must be composited together. Images are joined when they
// overlap by more than the threshold, touch, or share a text line or vector
// region. Single images without text or path overlap are not returned.
func groupOverlaps(page int, images []*ImageInfo, texts, paths []ContentRegion, settings groupSettings) []OverlapGroup {
	var candidates []int
	for i, img := range images {
		if !img.Background {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	uf := newUnionFind(len(candidates))
	for a := 0; a < len(candidates); a++ {
		ra := images[candidates[a]].Area
		for b := a + 1; b < len(candidates); b++ {
			rb := images[candidates[b]].Area
			if ra.OverlapFraction(rb) > settings.OverlapThreshold || ra.IsAdjacent(rb, settings.AdjacencyTolerance) {
				uf.union(a, b)
			}
		}
	}

	textHit := make([]bool, len(candidates))
	pathHit := make([]bool, len(candidates))
	joinRegions := func(regions []ContentRegion, hit []bool) {
		for _, region := range regions {
			first := -1
			for k, idx := range candidates {
				if !images[idx].Area.Intersects(region.Area) {
					continue
				}
				hit[k] = true
				if first < 0 {
					first = k
					continue
				}
				uf.union(first, k)
			}
		}
	}
	joinRegions(texts, textHit)
	joinRegions(paths, pathHit)

	components := make(map[int]*OverlapGroup)
	var roots []int
	for k, idx := range candidates {
		root := uf.find(k)
		g, ok := components[root]
		if !ok {
			g = &OverlapGroup{Page: page, Bounds: images[idx].Area}
			components[root] = g
			roots = append(roots, root)
		}
		g.Members = append(g.Members, idx)
		g.Bounds = g.Bounds.Union(images[idx].Area)
		g.HasText = g.HasText || textHit[k]
		g.HasPath = g.HasPath || pathHit[k]
	}

	var groups []OverlapGroup
	for _, root := range roots {
		g := components[root]
		if len(g.Members) == 1 && !g.HasText && !g.HasPath {
			continue
		}
		groups = append(groups, *g)
	}

	return mergeGroups(groups)
}

// mergeGroups repeatedly merges groups whose bounds intersect until no pair
// intersects, then deduplicates and sorts member indices.
func mergeGroups(groups []OverlapGroup) []OverlapGroup {
	merged := true
	for merged {
		merged = false
		for i := 0; i < len(groups) && !merged; i++ {
			for j := i + 1; j < len(groups); j++ {
				if !groups[i].Bounds.Intersects(groups[j].Bounds) {
					continue
				}
				groups[i].Members = append(groups[i].Members, groups[j].Members...)
				groups[i].Bounds = groups[i].Bounds.Union(groups[j].Bounds)
				groups[i].HasText = groups[i].HasText || groups[j].HasText
				groups[i].HasPath = groups[i].HasPath || groups[j].HasPath
				groups = append(groups[:j], groups[j+1:]...)
				merged = true
				break
			}
		}
	}

	for i := range groups {
		groups[i].Members = uniqueSorted(groups[i].Members)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members[0] < groups[j].Members[0]
	})

	return groups
}

func uniqueSorted(values []int) []int {
	sort.Ints(values)
	out := values[:0]
	for _, v := range values {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
