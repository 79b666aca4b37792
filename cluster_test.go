// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type clusterSuite struct{}

var _ = check.Suite(&clusterSuite{})

func distanceMatrix(n int, entries map[[2]int]float64) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for pair, dist := range entries {
		d.Set(pair[0], pair[1], dist)
		d.Set(pair[1], pair[0], dist)
	}
	return d
}

func (s *clusterSuite) TestAverageLinkageHeights(c *check.C) {
	d := distanceMatrix(3, map[[2]int]float64{
		{0, 1}: 1,
		{0, 2}: 4,
		{1, 2}: 3,
	})
	merges := averageLinkage(d)
	c.Assert(merges, check.HasLen, 2)
	c.Check(merges[0].height, check.Equals, 1.0)
	// Average of d(0,2)=4 and d(1,2)=3.
	c.Check(merges[1].height, check.Equals, 3.5)
}

func (s *clusterSuite) TestTwoClusters(c *check.C) {
	// Samples {0,1,2} and {3,4} are tight groups far from each other.
	d := distanceMatrix(5, map[[2]int]float64{
		{0, 1}: 0.10, {0, 2}: 0.12, {1, 2}: 0.11,
		{3, 4}: 0.10,
		{0, 3}: 1, {0, 4}: 1, {1, 3}: 1, {1, 4}: 1, {2, 3}: 1, {2, 4}: 1,
	})
	clusters, err := ClusterSamples(d, 0.01, 0.5)
	c.Assert(err, check.IsNil)
	c.Assert(clusters, check.HasLen, 2)
	c.Check(clusters[0].Size(), check.Equals, 3)
	c.Check(clusters[1].Size(), check.Equals, 2)
	c.Check(clusters[0].Members, check.DeepEquals, []bool{true, true, true, false, false})
	c.Check(clusters[0].Anticluster, check.DeepEquals, []bool{false, false, false, true, true})
	c.Check(clusters[1].Members, check.DeepEquals, []bool{false, false, false, true, true})
	c.Check(clusters[1].Anticluster, check.DeepEquals, []bool{true, true, true, false, false})
}

func (s *clusterSuite) TestSubclusterDedup(c *check.C) {
	// Samples 1 and 2 are near-identical; only one representative
	// survives the fine cut.
	d := distanceMatrix(5, map[[2]int]float64{
		{0, 1}: 0.10, {0, 2}: 0.10, {1, 2}: 0.001,
		{3, 4}: 0.10,
		{0, 3}: 1, {0, 4}: 1, {1, 3}: 1, {1, 4}: 1, {2, 3}: 1, {2, 4}: 1,
	})
	clusters, err := ClusterSamples(d, 0.01, 0.5)
	c.Assert(err, check.IsNil)
	c.Assert(clusters, check.HasLen, 2)
	c.Check(clusters[0].Size(), check.Equals, 2)
	c.Check(clusters[1].Size(), check.Equals, 2)
	// The dedup keeps the lowest sample index of the {1,2} pair.
	c.Check(clusters[0].Members[0], check.Equals, true)
	c.Check(clusters[0].Members[1], check.Equals, true)
	c.Check(clusters[0].Members[2], check.Equals, false)
}

func (s *clusterSuite) TestClusterInvariants(c *check.C) {
	d := distanceMatrix(6, map[[2]int]float64{
		{0, 1}: 0.1, {2, 3}: 0.1, {4, 5}: 0.3,
		{0, 2}: 1, {0, 3}: 1, {0, 4}: 2, {0, 5}: 2,
		{1, 2}: 1, {1, 3}: 1, {1, 4}: 2, {1, 5}: 2,
		{2, 4}: 2, {2, 5}: 2, {3, 4}: 2, {3, 5}: 2,
	})
	clusters, err := ClusterSamples(d, 0.01, 0.5)
	c.Assert(err, check.IsNil)
	c.Assert(len(clusters) > 0, check.Equals, true)
	for i, cl := range clusters {
		c.Check(cl.Size() >= 2, check.Equals, true)
		if i > 0 {
			c.Check(clusters[i-1].Size() >= cl.Size(), check.Equals, true)
		}
		for j := range clusters {
			if i != j {
				c.Check(cl.Members, check.Not(check.DeepEquals), clusters[j].Members)
			}
		}
		// No sample is on both sides of any pair.
		for k := range cl.Members {
			c.Check(cl.Members[k] && cl.Anticluster[k], check.Equals, false)
		}
	}
}

func (s *clusterSuite) TestDegenerateInputs(c *check.C) {
	clusters, err := ClusterSamples(mat.NewDense(1, 1, nil), 0, 1)
	c.Check(err, check.IsNil)
	c.Check(clusters, check.IsNil)

	_, err = ClusterSamples(mat.NewDense(2, 3, nil), 0, 1)
	c.Check(err, check.NotNil)

	// All-zero distances collapse to one cluster of one retained
	// representative, leaving nothing to keep.
	clusters, err = ClusterSamples(mat.NewDense(4, 4, nil), 0.01, 1)
	c.Assert(err, check.IsNil)
	c.Check(clusters, check.HasLen, 0)
}

func (s *clusterSuite) TestPhylogeneticConsistency(c *check.C) {
	// Site 0 is polymorphic inside the cluster AND inside the
	// anticluster (inconsistent with clonal descent); site 1 only
	// inside the cluster.
	counts := countsFromRows([][][2]float64{
		{{4, 0}, {0, 4}, {4, 0}, {0, 4}},
		{{4, 0}, {0, 4}, {0, 4}, {0, 4}},
	})
	ac, ps := singleBlockMaps("gene1", Variant4D, counts)
	clusters := []SampleCluster{{
		Members:     []bool{true, true, false, false},
		Anticluster: []bool{false, false, true, true},
	}}
	inconsistent, polymorphic, err := PhylogeneticConsistency(ac, ps, clusters, nil)
	c.Assert(err, check.IsNil)
	c.Check(polymorphic, check.Equals, 2)
	c.Check(inconsistent, check.Equals, 1)

	badClusters := []SampleCluster{{Members: []bool{true}, Anticluster: []bool{false}}}
	_, _, err = PhylogeneticConsistency(ac, ps, badClusters, nil)
	c.Check(err, check.NotNil)
}
