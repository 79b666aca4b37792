// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"bytes"
	"io/ioutil"
	"os"

	"github.com/klauspost/pgzip"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type haplotypeSuite struct{}

var _ = check.Suite(&haplotypeSuite{})

func haplotypeFixture() (map[string]*AlleleCounts, []HaplotypeSite) {
	counts := map[string]*AlleleCounts{
		Variant4D: countsFromRows([][][2]float64{
			{{0, 2}, {2, 0}, {1, 1}},
		}),
		Variant1D: countsFromRows([][][2]float64{
			{{3, 0}, {0, 3}, {1, 2}},
		}),
	}
	sites := []HaplotypeSite{
		{Position: 20, VariantType: Variant1D, Index: 0},
		{Position: 10, VariantType: Variant4D, Index: 0},
	}
	return counts, sites
}

func (s *haplotypeSuite) TestWriteHaplotypes(c *check.C) {
	counts, sites := haplotypeFixture()
	var consensus, annotation bytes.Buffer
	err := WriteHaplotypes(&consensus, &annotation, counts, sites)
	c.Assert(err, check.IsNil)
	// Position order, consensus genotypes (freq 0.5 rounds to even),
	// and the 0-4 annotation codes: reference, fixed syn/nonsyn,
	// polymorphic syn/nonsyn.
	c.Check(consensus.String(), check.Equals, "10,0,1,0\n20,1,0,0\n")
	c.Check(annotation.String(), check.Equals, "10,0,1,3\n20,2,0,4\n")
}

func (s *haplotypeSuite) TestWriteHaplotypesMissingType(c *check.C) {
	counts, sites := haplotypeFixture()
	delete(counts, Variant1D)
	err := WriteHaplotypes(ioutil.Discard, ioutil.Discard, counts, sites)
	c.Check(err, check.ErrorMatches, `.*variant type "1D".*`)
}

func (s *haplotypeSuite) TestWriteHaplotypeFilesGzip(c *check.C) {
	counts, sites := haplotypeFixture()
	tmpdir := c.MkDir()
	consensusPath := tmpdir + "/consensus.txt.gz"
	annotationPath := tmpdir + "/anno.txt"
	c.Assert(WriteHaplotypeFiles(consensusPath, annotationPath, counts, sites), check.IsNil)

	f, err := os.Open(consensusPath)
	c.Assert(err, check.IsNil)
	defer f.Close()
	gzr, err := pgzip.NewReader(f)
	c.Assert(err, check.IsNil)
	buf, err := ioutil.ReadAll(gzr)
	c.Assert(err, check.IsNil)
	c.Check(string(buf), check.Equals, "10,0,1,0\n20,1,0,0\n")

	buf, err = ioutil.ReadFile(annotationPath)
	c.Assert(err, check.IsNil)
	c.Check(string(buf), check.Equals, "10,0,1,3\n20,2,0,4\n")
}

func (s *haplotypeSuite) TestPhylipDistanceMatrix(c *check.C) {
	dist := mat.NewDense(2, 2, []float64{
		0, 0.123456789,
		0.123456789, 0,
	})
	text, err := PhylipDistanceMatrix(dist, []string{"sampleA", "sampleB"})
	c.Assert(err, check.IsNil)
	c.Check(text, check.Equals, "2\nsampleA\t0\t0.123457\nsampleB\t0.123457\t0")

	_, err = PhylipDistanceMatrix(dist, []string{"onlyone"})
	c.Check(err, check.NotNil)
}
