// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// SampleCluster is one cluster of closely related samples, as a
// boolean mask over sample indexes, paired with its anticluster: the
// retained samples belonging to other kept clusters. Samples in no
// kept cluster appear on neither side.
type SampleCluster struct {
	Members     []bool
	Anticluster []bool
}

func (c SampleCluster) Size() int {
	n := 0
	for _, in := range c.Members {
		if in {
			n++
		}
	}
	return n
}

// ClusterSamples cuts an average-linkage hierarchical clustering of
// dist at two thresholds: maxD defines the clusters, and minD defines
// fine subclusters used to deduplicate near-identical samples — only
// one representative per subcluster is retained within each cluster.
// Clusters with more than one retained member are kept, sorted by
// descending size.
//
// dist must be a symmetric non-negative matrix with zero diagonal;
// it is otherwise opaque (any distance works, π-derived or not).
func ClusterSamples(dist mat.Matrix, minD, maxD float64) ([]SampleCluster, error) {
	n, c := dist.Dims()
	if n != c {
		return nil, fmt.Errorf("distance matrix is %dx%d, want square", n, c)
	}
	if n < 2 {
		return nil, nil
	}
	merges := averageLinkage(dist)
	coarse := cutTree(merges, n, maxD)
	fine := cutTree(merges, n, minD)

	// Retain one representative per fine subcluster within each
	// coarse cluster, in sample-index order.
	type key struct{ coarse, fine int }
	seen := map[key]bool{}
	retained := map[int][]int{} // coarse label → retained sample indexes
	for i := 0; i < n; i++ {
		k := key{coarse[i], fine[i]}
		if seen[k] {
			continue
		}
		seen[k] = true
		retained[coarse[i]] = append(retained[coarse[i]], i)
	}

	var kept [][]int
	for _, members := range retained {
		if len(members) > 1 {
			kept = append(kept, members)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if len(kept[i]) != len(kept[j]) {
			return len(kept[i]) > len(kept[j])
		}
		return kept[i][0] < kept[j][0]
	})

	inKept := make([]bool, n)
	for _, members := range kept {
		for _, i := range members {
			inKept[i] = true
		}
	}

	clusters := make([]SampleCluster, 0, len(kept))
	for _, members := range kept {
		c := SampleCluster{
			Members:     make([]bool, n),
			Anticluster: make([]bool, n),
		}
		for _, i := range members {
			c.Members[i] = true
		}
		for i := 0; i < n; i++ {
			c.Anticluster[i] = inKept[i] && !c.Members[i]
		}
		clusters = append(clusters, c)
	}
	return clusters, nil
}

type linkageMerge struct {
	a, b   int // cluster ids being merged; leaves are 0..n-1, merge k forms id n+k
	height float64
}

// averageLinkage performs agglomerative clustering with average
// (UPGMA) linkage, repeatedly merging the closest pair of clusters
// and size-weighting the merged cluster's distances to the rest.
func averageLinkage(dist mat.Matrix) []linkageMerge {
	n, _ := dist.Dims()
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := range d[i] {
			d[i][j] = dist.At(i, j)
		}
	}
	id := make([]int, n)   // current cluster id per active slot
	size := make([]int, n) // cluster size per active slot
	active := make([]bool, n)
	for i := range id {
		id[i], size[i], active[i] = i, 1, true
	}

	merges := make([]linkageMerge, 0, n-1)
	for step := 0; step < n-1; step++ {
		bi, bj, best := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d[i][j] < best {
					bi, bj, best = i, j, d[i][j]
				}
			}
		}
		merges = append(merges, linkageMerge{a: id[bi], b: id[bj], height: best})
		// merged cluster takes slot bi
		for k := 0; k < n; k++ {
			if active[k] && k != bi && k != bj {
				dk := (float64(size[bi])*d[bi][k] + float64(size[bj])*d[bj][k]) / float64(size[bi]+size[bj])
				d[bi][k], d[k][bi] = dk, dk
			}
		}
		id[bi] = n + step
		size[bi] += size[bj]
		active[bj] = false
	}
	return merges
}

// cutTree flattens a linkage into cluster labels by applying, in
// merge order, every merge whose height is at or below t. Average
// linkage heights are monotone, so this equals cutting the tree at
// cophenetic distance t.
func cutTree(merges []linkageMerge, n int, t float64) []int {
	parent := make([]int, n+len(merges))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for k, m := range merges {
		if m.height <= t {
			parent[find(m.a)] = n + k
			parent[find(m.b)] = n + k
		}
	}
	labels := make([]int, n)
	for i := range labels {
		labels[i] = find(i)
	}
	return labels
}

// PhylogeneticConsistency scores how well the selected blocks fit a
// clonal-descent model of the given clusters: for every block and
// every (cluster, anticluster) pair it tests each site for
// polymorphism independently on each side, using the same prevalence
// rule as ConsensusGenotypes, and counts the cluster-polymorphic
// sites that are also polymorphic in the anticluster as inconsistent.
func PhylogeneticConsistency(ac AlleleCountsMap, ps PassedSitesMap, clusters []SampleCluster, filter *BlockFilter) (inconsistent, polymorphic int, err error) {
	n, err := sampleCount(ps)
	if err != nil {
		return 0, 0, err
	}
	for _, cl := range clusters {
		if len(cl.Members) != n || len(cl.Anticluster) != n {
			return 0, 0, fmt.Errorf("cluster mask covers %d samples, want %d", len(cl.Members), n)
		}
	}
	var mtx sync.Mutex
	err = forEachBlock(ac, ps, filter, n, func(gene, vt string, ga *GeneAlleles, sites *mat.Dense) error {
		counts := ga.Counts
		if counts.Empty() {
			return nil
		}
		blockPoly, blockIncons := 0, 0
		for site := 0; site < counts.Sites; site++ {
			for _, cl := range clusters {
				inside, inPassed := sidePrevalence(counts, site, cl.Members)
				if !(inside > 0.5 && inside < inPassed-0.5) {
					continue
				}
				blockPoly++
				outside, outPassed := sidePrevalence(counts, site, cl.Anticluster)
				if outside > 0.5 && outside < outPassed-0.5 {
					blockIncons++
				}
			}
		}
		mtx.Lock()
		polymorphic += blockPoly
		inconsistent += blockIncons
		mtx.Unlock()
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inconsistent, polymorphic, nil
}

func sidePrevalence(counts *AlleleCounts, site int, side []bool) (prevalence, passed float64) {
	for i, in := range side {
		if !in || !counts.Covered(site, i) {
			continue
		}
		passed++
		prevalence += counts.Genotype(site, i)
	}
	return prevalence, passed
}
