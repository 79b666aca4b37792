// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import "gonum.org/v1/gonum/mat"

// ConsensusGenotypes calls consensus (rounded) genotypes from raw
// allele counts and restricts the result to polymorphic sites: sites
// whose summed genotype across covered samples is neither
// all-reference nor all-alternate (0.5 < prevalence < passed−0.5).
//
// It returns a [site × sample] genotype matrix in {0,1} and a
// same-shaped passed matrix in {0,1} marking per-sample coverage.
// Samples without coverage at a site carry genotype 0 and passed 0
// and are excluded from the prevalence sums. Frequencies of exactly
// 0.5 round to even. When no site is polymorphic (or counts is
// empty) both returns are nil.
func ConsensusGenotypes(counts *AlleleCounts) (genotypes, passed *mat.Dense) {
	if counts.Empty() {
		return nil, nil
	}
	var keep []int
	for site := 0; site < counts.Sites; site++ {
		prevalence := 0.0
		npassed := 0.0
		for sample := 0; sample < counts.Samples; sample++ {
			if !counts.Covered(site, sample) {
				continue
			}
			npassed++
			prevalence += counts.Genotype(site, sample)
		}
		if prevalence > 0.5 && prevalence < npassed-0.5 {
			keep = append(keep, site)
		}
	}
	if len(keep) == 0 {
		return nil, nil
	}
	genotypes = mat.NewDense(len(keep), counts.Samples, nil)
	passed = mat.NewDense(len(keep), counts.Samples, nil)
	for row, site := range keep {
		for sample := 0; sample < counts.Samples; sample++ {
			if counts.Covered(site, sample) {
				genotypes.Set(row, sample, counts.Genotype(site, sample))
				passed.Set(row, sample, 1)
			}
		}
	}
	return genotypes, passed
}
