// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"math"

	"gopkg.in/check.v1"
)

type ratioSuite struct{}

var _ = check.Suite(&ratioSuite{})

func (s *ratioSuite) TestSafeRatio(c *check.C) {
	c.Check(safeRatio(3, 4), check.Equals, 0.75)
	c.Check(safeRatio(0, 0), check.Equals, 0.0)
	c.Check(safeRatio(0, 5), check.Equals, 0.0)
	c.Check(safeRatio(7, 0), check.Equals, 0.0)
	for num := 0.0; num <= 10; num++ {
		for den := 0.0; den <= 10; den++ {
			r := safeRatio(num, den)
			c.Assert(math.IsNaN(r), check.Equals, false)
			c.Assert(math.IsInf(r, 0), check.Equals, false)
			if den == 0 {
				c.Assert(r, check.Equals, 0.0)
			}
		}
	}
}

func (s *ratioSuite) TestZeroFloor(c *check.C) {
	c.Check(zeroFloor(1e-11), check.Equals, 0.0)
	c.Check(zeroFloor(-0.25), check.Equals, 0.0)
	c.Check(zeroFloor(1e-9), check.Equals, 1e-9)
	c.Check(zeroFloor(0.5), check.Equals, 0.5)
}

func (s *ratioSuite) TestAltFreqNeverLeaks(c *check.C) {
	counts := countsFromRows([][][2]float64{
		{{0, 0}, {5, 0}, {0, 5}, {2, 3}},
	})
	c.Check(counts.AltFreq(0, 0), check.Equals, 0.0)
	c.Check(counts.AltFreq(0, 1), check.Equals, 1.0)
	c.Check(counts.AltFreq(0, 2), check.Equals, 0.0)
	c.Check(counts.AltFreq(0, 3), check.Equals, 0.4)
	c.Check(counts.Covered(0, 0), check.Equals, false)
}
