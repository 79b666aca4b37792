// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import "math"

// Allele indexes within an AlleleCounts tensor. Index 0 is the
// alternate allele, index 1 the reference allele.
const (
	alleleAlt  = 0
	alleleRef  = 1
	numAlleles = 2
)

// AlleleCounts is a [site × sample × allele] tensor of read counts,
// backed by a flat slice. Counts are non-negative; the per-(site,
// sample) sequencing depth is the sum over the allele axis, and a
// (site, sample) pair with zero depth is "not passed" everywhere
// downstream.
type AlleleCounts struct {
	Sites   int
	Samples int
	counts  []float64
}

func NewAlleleCounts(sites, samples int) *AlleleCounts {
	return &AlleleCounts{
		Sites:   sites,
		Samples: samples,
		counts:  make([]float64, sites*samples*numAlleles),
	}
}

func (a *AlleleCounts) idx(site, sample, allele int) int {
	return (site*a.Samples+sample)*numAlleles + allele
}

func (a *AlleleCounts) At(site, sample, allele int) float64 {
	return a.counts[a.idx(site, sample, allele)]
}

// Set assigns the alternate and reference read counts for one (site,
// sample) pair.
func (a *AlleleCounts) Set(site, sample int, alt, ref float64) {
	a.counts[a.idx(site, sample, alleleAlt)] = alt
	a.counts[a.idx(site, sample, alleleRef)] = ref
}

func (a *AlleleCounts) Depth(site, sample int) float64 {
	return a.counts[a.idx(site, sample, alleleAlt)] + a.counts[a.idx(site, sample, alleleRef)]
}

func (a *AlleleCounts) Covered(site, sample int) bool {
	return a.Depth(site, sample) > 0
}

// AltFreq returns the alternate-allele frequency at (site, sample),
// or 0 where there is no coverage.
func (a *AlleleCounts) AltFreq(site, sample int) float64 {
	return safeRatio(a.At(site, sample, alleleAlt), a.Depth(site, sample))
}

// Genotype returns the consensus (rounded) genotype at (site,
// sample). Frequencies of exactly 0.5 round to even, i.e. 0.
func (a *AlleleCounts) Genotype(site, sample int) float64 {
	return math.RoundToEven(a.AltFreq(site, sample))
}

// Empty reports whether the tensor has no sites. A nil receiver is
// empty: gene/variant-type blocks with no observed alleles carry a
// nil tensor but still contribute passed sites.
func (a *AlleleCounts) Empty() bool {
	return a == nil || a.Sites == 0
}

// SampleSubset returns a new tensor restricted to the given sample
// indexes, in the given order.
func (a *AlleleCounts) SampleSubset(samples []int) *AlleleCounts {
	sub := NewAlleleCounts(a.Sites, len(samples))
	for site := 0; site < a.Sites; site++ {
		for j, sample := range samples {
			sub.Set(site, j, a.At(site, sample, alleleAlt), a.At(site, sample, alleleRef))
		}
	}
	return sub
}
