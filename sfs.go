// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import "math"

// PooledSite is one site's pooled (alt, ref) read counts, the input
// unit for site-frequency-spectrum estimation.
type PooledSite struct {
	Alt float64
	Ref float64
}

func (s PooledSite) depth() float64 { return s.Alt + s.Ref }

// SFSNaiveBinning estimates a site-frequency spectrum by binning each
// site's alternate-allele frequency into targetDepth+1 equal-width
// bins spanning [0,1]. Zero-depth sites are dropped.
func SFSNaiveBinning(sites []PooledSite, targetDepth int) []float64 {
	spectrum := make([]float64, targetDepth+1)
	for _, s := range sites {
		d := s.depth()
		if d <= 0 {
			continue
		}
		f := s.Alt / d
		bin := int(math.Floor(f*float64(targetDepth) + 0.5))
		if bin > targetDepth {
			bin = targetDepth
		}
		spectrum[bin]++
	}
	return spectrum
}

// SFSDownsampling estimates an unbiased site-frequency spectrum by
// hypergeometric downsampling: every site is resampled without
// replacement down to Dmin = min(min depth, targetDepth) reads, and
// the exact probability of observing k alternate alleles is added to
// bin k. The result is a continuous expected-count histogram of
// length Dmin+1; its total equals the number of covered sites.
//
// Sites with zero depth are dropped first; callers wanting a higher
// floor should threshold their input instead. Returns nil when no
// site has coverage.
func SFSDownsampling(sites []PooledSite, targetDepth int) []float64 {
	dmin := float64(targetDepth)
	any := false
	for _, s := range sites {
		if d := s.depth(); d > 0 {
			any = true
			if d < dmin {
				dmin = d
			}
		}
	}
	if !any {
		return nil
	}
	spectrum := make([]float64, int(dmin)+1)
	for _, s := range sites {
		d := s.depth()
		if d <= 0 {
			continue
		}
		for k := range spectrum {
			spectrum[k] += hypergeometricProb(s.Alt, d, float64(k), dmin)
		}
	}
	return spectrum
}

// hypergeometricProb is the probability of drawing k alternate reads
// in a sample of n reads taken without replacement from a site with a
// alternate reads out of d total, computed with log-gamma ratios so
// large depths cannot overflow. Infeasible k (k > a, or n−k > d−a)
// produces an infinite log term and an exact 0.
func hypergeometricProb(a, d, k, n float64) float64 {
	lp := lchoose(a, k) + lchoose(d-a, n-k) - lchoose(d, n)
	return math.Exp(lp)
}

func lchoose(n, k float64) float64 {
	ln, _ := math.Lgamma(n + 1)
	lk, _ := math.Lgamma(k + 1)
	lnk, _ := math.Lgamma(n - k + 1)
	return ln - lk - lnk
}

// FoldSFS folds a spectrum over unfolded bins 0..n−1 by adding each
// bin to its mirror and truncating to the minor-allele half. When the
// spectrum covers an odd number of allele-count classes the middle
// bin pairs with itself, so its doubled count is halved.
func FoldSFS(spectrum []float64) []float64 {
	n := len(spectrum) + 1
	folded := make([]float64, (n-1)/2)
	for i := range folded {
		folded[i] = spectrum[i] + spectrum[len(spectrum)-1-i]
	}
	if (n-1)%2 != 0 && len(folded) > 0 {
		folded[len(folded)-1] *= 0.5
	}
	return folded
}
