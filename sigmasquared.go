// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SigmaSquared computes, for every pair of sites drawn from two
// allele-count tensors over the same samples, the numerator
// (p_ab − p_a·p_b)² and denominator p_a(1−p_a)·p_b(1−p_b) of the σ²
// linkage-disequilibrium statistic. Joint and marginal frequencies
// are pooled only over samples covered at BOTH sites.
//
// σ² is a ratio of expectations, not an expectation of ratios:
// callers must average numerators and denominators separately across
// site pairs before dividing. The pointwise ratio is deliberately
// never computed here.
//
// Result matrices are [b.Sites × a.Sites]; row s2, column s1 refers
// to site s2 of b paired with site s1 of a. Both returns are nil
// when either tensor is empty.
func SigmaSquared(a, b *AlleleCounts) (num, den *mat.Dense, err error) {
	return sigmaSquared(a, b, 0, 1, false)
}

// SigmaSquaredFreqRange is SigmaSquared restricted to sites whose
// folded pooled frequency min(f, 1−f) lies in [lowFreq, highFreq].
// The restriction is applied per sample as part of the coverage
// condition, matching the frequency-spectrum conditioning of the
// estimator rather than a hard pre-filter of the site axes.
func SigmaSquaredFreqRange(a, b *AlleleCounts, lowFreq, highFreq float64) (num, den *mat.Dense, err error) {
	return sigmaSquared(a, b, lowFreq, highFreq, true)
}

func sigmaSquared(a, b *AlleleCounts, lowFreq, highFreq float64, condition bool) (num, den *mat.Dense, err error) {
	if a.Empty() || b.Empty() {
		return nil, nil, nil
	}
	if a.Samples != b.Samples {
		return nil, nil, fmt.Errorf("sample axes differ: %d vs %d", a.Samples, b.Samples)
	}
	samples := a.Samples

	// Consensus-rounded frequencies, and the per-site frequency-range
	// condition on the folded pooled frequency across all samples.
	inRange := func(c *AlleleCounts, site int) bool {
		if !condition {
			return true
		}
		pooled := 0.0
		for i := 0; i < samples; i++ {
			pooled += math.RoundToEven(c.AltFreq(site, i))
		}
		pooled /= float64(samples)
		if pooled > 0.5 {
			pooled = 1 - pooled
		}
		return pooled >= lowFreq && pooled <= highFreq
	}
	rangeA := make([]bool, a.Sites)
	for s := range rangeA {
		rangeA[s] = inRange(a, s)
	}
	rangeB := make([]bool, b.Sites)
	for s := range rangeB {
		rangeB[s] = inRange(b, s)
	}

	num = mat.NewDense(b.Sites, a.Sites, nil)
	den = mat.NewDense(b.Sites, a.Sites, nil)
	for s2 := 0; s2 < b.Sites; s2++ {
		for s1 := 0; s1 < a.Sites; s1++ {
			var joint, pab, pa, pb float64
			for i := 0; i < samples; i++ {
				if !a.Covered(s1, i) || !b.Covered(s2, i) || !rangeA[s1] || !rangeB[s2] {
					continue
				}
				f1 := math.RoundToEven(a.AltFreq(s1, i))
				f2 := math.RoundToEven(b.AltFreq(s2, i))
				joint++
				pab += f1 * f2
				pa += f1
				pb += f2
			}
			pab = zeroFloor(safeRatio(pab, joint))
			pa = zeroFloor(safeRatio(pa, joint))
			pb = zeroFloor(safeRatio(pb, joint))
			d := pab - pa*pb
			num.Set(s2, s1, d*d)
			den.Set(s2, s1, pa*(1-pa)*pb*(1-pb))
		}
	}
	return num, den, nil
}
